package types

import (
	"time"

	"github.com/example/solprobe/internal/scenario"
)

// GetBalanceRequest represents the incoming payload for balance lookups.
type GetBalanceRequest struct {
	Wallets []string `json:"wallets"`
}

// BalanceEntry represents a single wallet balance response.
type BalanceEntry struct {
	Wallet    string  `json:"wallet"`
	Lamports  uint64  `json:"lamports"`
	Sol       float64 `json:"sol"`
	Source    string  `json:"source"`     // "cache" or "rpc"
	FetchedAt string  `json:"fetched_at"` // RFC3339
}

// ErrorEntry captures per-wallet errors that occurred while fetching.
type ErrorEntry struct {
	Wallet string `json:"wallet"`
	Error  string `json:"error"`
}

// GetBalanceResponse is the JSON response for the balance endpoint.
type GetBalanceResponse struct {
	Balances []BalanceEntry `json:"balances"`
	Errors   []ErrorEntry   `json:"errors"`
}

// TransferRequest asks for sol to be credited to To, by transfer or faucet.
type TransferRequest struct {
	To  string  `json:"to"`
	Sol float64 `json:"sol"`
}

type TransferResponse struct {
	To        string  `json:"to"`
	Lamports  uint64  `json:"lamports"`
	Sol       float64 `json:"sol"`
	Signature string  `json:"signature"`
}

// RunScenarioRequest overrides the amount the generated identity receives.
type RunScenarioRequest struct {
	FundSOL *float64 `json:"fund_sol,omitempty"`
}

// RunSummary is a report with its outcome counts.
type RunSummary struct {
	scenario.Report
	Passed  bool `json:"passed"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
}

type ListRunsResponse struct {
	Runs []RunSummary `json:"runs"`
}

// ConfigMarinadeRequest carries optional config_marinade fields. Fees are
// percentages such as "1.5".
type ConfigMarinadeRequest struct {
	State                   string  `json:"state"`
	RewardsFee              *string `json:"rewards_fee,omitempty"`
	SlotsForStakeDelta      *uint64 `json:"slots_for_stake_delta,omitempty"`
	MinStake                *uint64 `json:"min_stake,omitempty"`
	MinDeposit              *uint64 `json:"min_deposit,omitempty"`
	MinWithdraw             *uint64 `json:"min_withdraw,omitempty"`
	StakingSolCap           *uint64 `json:"staking_sol_cap,omitempty"`
	LiquiditySolCap         *uint64 `json:"liquidity_sol_cap,omitempty"`
	AutoAddValidatorEnabled *bool   `json:"auto_add_validator_enabled,omitempty"`
}

type SignatureResponse struct {
	Signature string `json:"signature"`
}

func NowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

// LamportsToSol converts lamports to SOL as a float.
func LamportsToSol(l uint64) float64 { return float64(l) / 1_000_000_000 }

// NewBalanceEntry creates a BalanceEntry from raw lamports and timestamp.
func NewBalanceEntry(wallet string, lamports uint64, source string, ts time.Time) BalanceEntry {
	return BalanceEntry{
		Wallet:    wallet,
		Lamports:  lamports,
		Sol:       LamportsToSol(lamports),
		Source:    source,
		FetchedAt: ts.UTC().Format(time.RFC3339),
	}
}

// NewRunSummary derives the outcome counts of r.
func NewRunSummary(r scenario.Report) RunSummary {
	return RunSummary{
		Report:  r,
		Passed:  r.Passed(),
		Failed:  r.Count(scenario.StatusFailed),
		Skipped: r.Count(scenario.StatusSkipped),
	}
}
