package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPoolAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640", true},
		{"0x88E6A0C2dDD26FEEb64F039a2c41296FcB3f5640", true},
		{"88e6a0c2ddd26feeb64f039a2c41296fcb3f5640", true}, // no prefix is still hex
		{"0x88e6", false},
		{"not-an-address", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidPoolAddress(tt.addr), "addr %q", tt.addr)
	}
}

func TestNormalizeAddress(t *testing.T) {
	got := NormalizeAddress("0x88E6A0C2dDD26FEEb64F039a2c41296FcB3f5640")
	assert.Equal(t, "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640", got)
}

func TestSanitizeQuestion(t *testing.T) {
	assert.Equal(t, "hello", SanitizeQuestion("  hello\x00  "))

	long := strings.Repeat("a", MaxQuestionLength+50)
	assert.Len(t, SanitizeQuestion(long), MaxQuestionLength)
}
