package main

import (
	"fmt"
	"os"
	"time"

	"github.com/example/solprobe/internal/config"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "solprobe",
		Usage: "Marinade program integration harness",
		Description: `Drives a Solana cluster (usually a local test validator) through
funding, account provisioning and Marinade initialization, and runs the
dup_acct scenario suite.`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Commands: []*cli.Command{
			keygenCommand(),
			balanceCommand(),
			fundCommand(),
			airdropCommand(),
			initializeCommand(),
			configMarinadeCommand(),
			{
				Name:  "run",
				Usage: "Run a scenario suite",
				Subcommands: []*cli.Command{
					runDupAcctCommand(),
				},
			},
			{
				Name:  "runs",
				Usage: "Inspect recorded scenario runs",
				Subcommands: []*cli.Command{
					listRunsCommand(),
					getRunCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana JSON-RPC endpoint",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   "http://127.0.0.1:8899",
			},
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Provider keypair file (Solana CLI format)",
				EnvVars: []string{"WALLET_PATH"},
				Value:   "~/.config/solana/id.json",
			},
			&cli.StringFlag{
				Name:    "program-id",
				Usage:   "Marinade program ID",
				EnvVars: []string{"MARINADE_PROGRAM_ID"},
				Value:   config.DefaultProgramID,
			},
			&cli.StringFlag{
				Name:    "commitment",
				Usage:   "Commitment for reads and blockhashes (processed, confirmed, finalized)",
				EnvVars: []string{"SOL_COMMITMENT"},
				Value:   "finalized",
			},
			&cli.StringFlag{
				Name:    "confirm-commitment",
				Usage:   "Commitment a sent transaction is awaited at",
				EnvVars: []string{"CONFIRM_COMMITMENT"},
				Value:   "confirmed",
			},
			&cli.DurationFlag{
				Name:    "confirm-timeout",
				Usage:   "How long to wait for a transaction to confirm",
				EnvVars: []string{"CONFIRM_TIMEOUT"},
				Value:   90 * time.Second,
			},
			&cli.StringFlag{
				Name:    "mongo-uri",
				Usage:   "MongoDB URI for run history; empty keeps runs in memory",
				EnvVars: []string{"MONGO_URI"},
			},
			&cli.StringFlag{
				Name:    "mongo-db",
				Usage:   "MongoDB database for run history",
				EnvVars: []string{"MONGO_DB"},
				Value:   "solprobe",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
