package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sol "github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the Marinade program deployed on mainnet and used by the local test validator.
const DefaultProgramID = "MarBmsSgKXdrN1egZf5sqe1TMai9K1rChYNDJgjq7aD"

// Config holds environment-driven configuration.
type Config struct {
	Port     string
	LogLevel string

	// Solana provider
	RPCURL               string
	SolCommitment        string
	ConfirmCommitment    string
	WalletPath           string
	ProgramID            string
	RPCRequestsPerSecond int
	ConfirmTimeout       time.Duration
	ConfirmPollInterval  time.Duration
	BlockhashTTL         time.Duration

	// Balance API
	CacheTTL       time.Duration
	BalanceTimeout time.Duration
	MaxConcurrency int
	RateLimitRPM   int
	APIKeys        []string
	AdminToken     string

	// Run history
	MongoURI string
	MongoDB  string

	// Scenario
	FundSOL     float64
	CaseTimeout time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getlist(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Load loads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:                 getenv("PORT", "8080"),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		RPCURL:               getenv("SOLANA_RPC_URL", "http://127.0.0.1:8899"),
		SolCommitment:        getenv("SOL_COMMITMENT", "finalized"),
		ConfirmCommitment:    getenv("CONFIRM_COMMITMENT", "confirmed"),
		WalletPath:           getenv("WALLET_PATH", "~/.config/solana/id.json"),
		ProgramID:            getenv("MARINADE_PROGRAM_ID", DefaultProgramID),
		RPCRequestsPerSecond: getint("RPC_RPS", 20),
		ConfirmTimeout:       getdur("CONFIRM_TIMEOUT", 90*time.Second),
		ConfirmPollInterval:  getdur("CONFIRM_POLL_INTERVAL", 500*time.Millisecond),
		BlockhashTTL:         getdur("BLOCKHASH_TTL", 20*time.Second),
		CacheTTL:             getdur("CACHE_TTL", 10*time.Second),
		BalanceTimeout:       getdur("BALANCE_TIMEOUT", 3*time.Second),
		MaxConcurrency:       getint("MAX_CONCURRENCY", 16),
		RateLimitRPM:         getint("RATE_LIMIT_RPM", 10),
		APIKeys:              getlist("API_KEYS"),
		AdminToken:           getenv("ADMIN_TOKEN", ""),
		MongoURI:             getenv("MONGO_URI", ""),
		MongoDB:              getenv("MONGO_DB", "solprobe"),
		FundSOL:              getfloat("FUND_SOL", 600),
		CaseTimeout:          getdur("CASE_TIMEOUT", 5*time.Minute),
	}
}

var commitments = map[string]bool{"processed": true, "confirmed": true, "finalized": true}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []string
	if c.RPCURL == "" {
		errs = append(errs, "SOLANA_RPC_URL is required")
	}
	if !commitments[c.SolCommitment] {
		errs = append(errs, fmt.Sprintf("SOL_COMMITMENT %q is not a commitment level", c.SolCommitment))
	}
	if !commitments[c.ConfirmCommitment] {
		errs = append(errs, fmt.Sprintf("CONFIRM_COMMITMENT %q is not a commitment level", c.ConfirmCommitment))
	}
	if _, err := sol.PublicKeyFromBase58(c.ProgramID); err != nil {
		errs = append(errs, fmt.Sprintf("MARINADE_PROGRAM_ID: %v", err))
	}
	if c.RPCRequestsPerSecond <= 0 {
		errs = append(errs, "RPC_RPS must be positive")
	}
	if c.ConfirmTimeout <= 0 || c.ConfirmPollInterval <= 0 {
		errs = append(errs, "CONFIRM_TIMEOUT and CONFIRM_POLL_INTERVAL must be positive")
	}
	if c.ConfirmPollInterval > c.ConfirmTimeout {
		errs = append(errs, "CONFIRM_POLL_INTERVAL cannot exceed CONFIRM_TIMEOUT")
	}
	if c.MaxConcurrency <= 0 || c.RateLimitRPM <= 0 {
		errs = append(errs, "MAX_CONCURRENCY and RATE_LIMIT_RPM must be positive")
	}
	if !(c.FundSOL > 0) {
		errs = append(errs, "FUND_SOL must be positive")
	}
	if c.CaseTimeout < c.ConfirmTimeout {
		errs = append(errs, "CASE_TIMEOUT cannot be shorter than CONFIRM_TIMEOUT")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Program returns the parsed program ID. Call Validate first.
func (c Config) Program() sol.PublicKey {
	pk, err := sol.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return sol.PublicKey{}
	}
	return pk
}
