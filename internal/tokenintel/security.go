// Package tokenintel implements the token intelligence agent's analyzers:
// contract security via the GoPlus API, market structure via DexScreener,
// a momentum-based sentiment heuristic, and a weighted classifier that
// folds the three into a SAFE / RISKY / DANGER verdict.
package tokenintel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poolscope/poolscope/internal/config"
)

// chainIDs maps chain names to the numeric IDs GoPlus expects.
var chainIDs = map[string]string{
	"ethereum": "1",
	"bsc":      "56",
	"polygon":  "137",
	"arbitrum": "42161",
	"optimism": "10",
	"base":     "8453",
}

// Security thresholds. Tax is a fraction, ownership a share of supply.
const (
	maxTaxRate        = 0.10
	minHolderCount    = 100
	maxOwnerShare     = 0.50
	dangerousScoreMin = 70
)

// SecurityReport is the parsed and scored GoPlus verdict for one token.
type SecurityReport struct {
	TokenName   string `json:"token_name"`
	TokenSymbol string `json:"token_symbol"`

	Honeypot          bool `json:"is_honeypot"`
	Proxy             bool `json:"is_proxy"`
	Mintable          bool `json:"is_mintable"`
	OpenSource        bool `json:"is_open_source"`
	OwnershipTakeback bool `json:"can_take_back_ownership"`
	OwnerChangeBal    bool `json:"owner_change_balance"`
	HiddenOwner       bool `json:"hidden_owner"`
	Selfdestruct      bool `json:"selfdestruct"`
	TransferPausable  bool `json:"transfer_pausable"`

	BuyTaxPct   float64 `json:"buy_tax_pct"`
	SellTaxPct  float64 `json:"sell_tax_pct"`
	HolderCount int     `json:"holder_count"`
	OwnerPct    float64 `json:"owner_percent"`
	CreatorPct  float64 `json:"creator_percent"`

	Score     int      `json:"risk_score"`
	Flags     []string `json:"risk_flags"`
	Dangerous bool     `json:"is_dangerous"`
	Err       string   `json:"error,omitempty"`
}

// goplusToken mirrors the GoPlus wire format: booleans as "0"/"1" strings,
// numbers as strings.
type goplusToken struct {
	TokenName            string `json:"token_name"`
	TokenSymbol          string `json:"token_symbol"`
	IsHoneypot           string `json:"is_honeypot"`
	IsProxy              string `json:"is_proxy"`
	IsMintable           string `json:"is_mintable"`
	IsOpenSource         string `json:"is_open_source"`
	CanTakeBackOwnership string `json:"can_take_back_ownership"`
	OwnerChangeBalance   string `json:"owner_change_balance"`
	HiddenOwner          string `json:"hidden_owner"`
	Selfdestruct         string `json:"selfdestruct"`
	TransferPausable     string `json:"transfer_pausable"`
	BuyTax               string `json:"buy_tax"`
	SellTax              string `json:"sell_tax"`
	HolderCount          string `json:"holder_count"`
	OwnerPercent         string `json:"owner_percent"`
	CreatorPercent       string `json:"creator_percent"`
}

type goplusResponse struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Result  map[string]goplusToken `json:"result"`
}

// SecurityAnalyzer queries GoPlus for contract-level risk signals.
type SecurityAnalyzer struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSecurityAnalyzer(cfg config.TokenIntelConfig, logger *slog.Logger) *SecurityAnalyzer {
	return &SecurityAnalyzer{
		baseURL:    strings.TrimSuffix(cfg.GoPlusURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Analyze fetches and scores the GoPlus security report for a token.
// Upstream failures degrade to a mid-range unknown score rather than an
// error, so the classifier always has something to weigh.
func (a *SecurityAnalyzer) Analyze(ctx context.Context, chain, tokenAddress string) SecurityReport {
	chainID, ok := resolveChainID(chain)
	if !ok {
		return SecurityReport{Err: fmt.Sprintf("unsupported chain: %s", chain), Score: 100, Flags: []string{"UNSUPPORTED_CHAIN"}}
	}

	addr := strings.ToLower(tokenAddress)
	endpoint := fmt.Sprintf("%s/token_security/%s?contract_addresses=%s", a.baseURL, chainID, url.QueryEscape(addr))

	var resp goplusResponse
	if err := a.getJSON(ctx, endpoint, &resp); err != nil {
		a.logger.Error("goplus request failed", "token", addr, "error", err)
		return unknownSecurity(err.Error())
	}
	if resp.Code != 1 {
		return unknownSecurity(fmt.Sprintf("goplus: %s", resp.Message))
	}
	token, ok := resp.Result[addr]
	if !ok {
		return unknownSecurity("token not found in GoPlus")
	}

	return scoreSecurity(token)
}

func (a *SecurityAnalyzer) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func unknownSecurity(reason string) SecurityReport {
	return SecurityReport{Err: reason, Score: 50, Flags: []string{"SECURITY_UNKNOWN"}}
}

func scoreSecurity(t goplusToken) SecurityReport {
	r := SecurityReport{
		TokenName:         t.TokenName,
		TokenSymbol:       t.TokenSymbol,
		Honeypot:          flagBool(t.IsHoneypot),
		Proxy:             flagBool(t.IsProxy),
		Mintable:          flagBool(t.IsMintable),
		OpenSource:        flagBool(t.IsOpenSource),
		OwnershipTakeback: flagBool(t.CanTakeBackOwnership),
		OwnerChangeBal:    flagBool(t.OwnerChangeBalance),
		HiddenOwner:       flagBool(t.HiddenOwner),
		Selfdestruct:      flagBool(t.Selfdestruct),
		TransferPausable:  flagBool(t.TransferPausable),
	}

	buyTax := numStr(t.BuyTax)
	sellTax := numStr(t.SellTax)
	ownerPct := numStr(t.OwnerPercent)
	creatorPct := numStr(t.CreatorPercent)
	holders, _ := strconv.Atoi(t.HolderCount)

	r.BuyTaxPct = buyTax * 100
	r.SellTaxPct = sellTax * 100
	r.OwnerPct = ownerPct * 100
	r.CreatorPct = creatorPct * 100
	r.HolderCount = holders

	score := 0
	var flags []string
	add := func(points int, flag string) {
		score += points
		flags = append(flags, flag)
	}

	if r.Honeypot {
		add(50, "HONEYPOT_DETECTED")
	}
	if r.Selfdestruct {
		add(30, "SELFDESTRUCT_FUNCTION")
	}
	if r.OwnerChangeBal {
		add(25, "OWNER_CAN_MODIFY_BALANCE")
	}
	if r.Mintable {
		add(15, "MINTABLE_TOKEN")
	}
	if r.OwnershipTakeback {
		add(15, "OWNERSHIP_RECOVERABLE")
	}
	if r.HiddenOwner {
		add(15, "HIDDEN_OWNER")
	}
	if r.TransferPausable {
		add(10, "TRANSFER_PAUSABLE")
	}
	if r.Proxy {
		add(10, "PROXY_CONTRACT")
	}
	if !r.OpenSource {
		add(10, "NOT_OPEN_SOURCE")
	}
	if buyTax > maxTaxRate || sellTax > maxTaxRate {
		add(15, "HIGH_TAX_RATE")
	}
	if sellTax > buyTax*2 {
		add(10, "SELL_TAX_HIGHER_THAN_BUY")
	}
	if holders < minHolderCount {
		add(10, "LOW_HOLDER_COUNT")
	}
	if ownerPct > maxOwnerShare || creatorPct > maxOwnerShare {
		add(15, "HIGH_OWNER_CONCENTRATION")
	}

	if score > 100 {
		score = 100
	}
	if len(flags) == 0 {
		flags = []string{"SECURITY_OK"}
	}

	r.Score = score
	r.Flags = flags
	r.Dangerous = score >= dangerousScoreMin
	return r
}

func resolveChainID(chain string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(chain))
	if c != "" && isDigits(c) {
		return c, true
	}
	id, ok := chainIDs[c]
	return id, ok
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func flagBool(s string) bool { return s == "1" }

func numStr(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
