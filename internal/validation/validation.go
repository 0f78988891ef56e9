// Package validation provides input validation for the poolscope APIs.
package validation

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20

// MaxQuestionLength is the maximum length for a user question
const MaxQuestionLength = 4000

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidPoolAddress checks if a string is a valid Ethereum pool address
func IsValidPoolAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

// NormalizeAddress lowercases an Ethereum address for use as a subgraph
// entity id. Subgraph ids are lowercase hex, not EIP-55 checksummed.
func NormalizeAddress(addr string) string {
	return strings.ToLower(common.HexToAddress(addr).Hex())
}

// SanitizeQuestion trims and bounds a free-text user question
func SanitizeQuestion(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > MaxQuestionLength {
		s = s[:MaxQuestionLength]
	}
	return strings.ReplaceAll(s, "\x00", "")
}
