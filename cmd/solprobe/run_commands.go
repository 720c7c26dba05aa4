package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/scenario"
	"github.com/example/solprobe/internal/store"
	"github.com/urfave/cli/v2"
)

// openRuns returns the Mongo run store when --mongo-uri is set. With
// requireMongo false a memory store stands in.
func openRuns(c *cli.Context, requireMongo bool) (store.RunRecorder, func(), error) {
	uri := c.String("mongo-uri")
	if uri == "" {
		if requireMongo {
			return nil, nil, fmt.Errorf("run history needs --mongo-uri")
		}
		return store.NewMemoryRunStore(), func() {}, nil
	}
	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()
	mc, err := store.Connect(ctx, uri)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	closeFn := func() { _ = mc.Disconnect(context.Background()) }
	s, err := store.NewMongoRunStore(ctx, mc, c.String("mongo-db"), time.Minute)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return s, closeFn, nil
}

func printReport(w *textWriter, r scenario.Report) {
	w.Printf("run %s (%s) started %s\n", r.RunID, r.Suite, r.StartedAt.Format(time.RFC3339))
	for _, cr := range r.Cases {
		mark := "✓"
		switch cr.Status {
		case scenario.StatusFailed:
			mark = "✗"
		case scenario.StatusSkipped:
			mark = "-"
		}
		w.Printf("  %s %s (%dms)", mark, cr.Name, cr.DurationMS)
		if cr.Error != "" {
			w.Printf(": %s", cr.Error)
		}
		w.Printf("\n")
	}
	w.Printf("%d passed, %d failed, %d skipped\n",
		r.Count(scenario.StatusPassed), r.Count(scenario.StatusFailed), r.Count(scenario.StatusSkipped))
}

func runDupAcctCommand() *cli.Command {
	return &cli.Command{
		Name:  "dup-acct",
		Usage: "Fund an identity, initialize Marinade, and check a repeated initialize is rejected",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:    "fund-sol",
				Usage:   "SOL transferred to the generated identity",
				EnvVars: []string{"FUND_SOL"},
				Value:   600,
			},
			&cli.DurationFlag{
				Name:    "case-timeout",
				Usage:   "Upper bound for each case",
				EnvVars: []string{"CASE_TIMEOUT"},
				Value:   5 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			fundSOL := c.Float64("fund-sol")
			if _, err := funding.SolToLamports(fundSOL); err != nil {
				return err
			}
			if fundSOL == 0 {
				return fmt.Errorf("--fund-sol must be positive: the identity pays for the repeated initialize")
			}
			provider, err := walletFrom(c)
			if err != nil {
				return err
			}
			program, err := programFrom(c)
			if err != nil {
				return err
			}
			cl, err := clientFrom(c)
			if err != nil {
				return err
			}
			runs, closeRuns, err := openRuns(c, false)
			if err != nil {
				return err
			}
			defer closeRuns()

			logger := loggerFrom(c)
			suite := scenario.DupAcct(scenario.DupAcctDeps{
				Cluster:  cl,
				Funder:   funding.New(cl, provider, logger),
				Provider: provider,
				Program:  program,
				FundSOL:  fundSOL,
			})
			report, err := scenario.NewRunner(runs, nil, logger, c.Duration("case-timeout")).Run(c.Context, suite)
			if err != nil {
				return err
			}
			if err := output(c, report, func(w *textWriter) { printReport(w, report) }); err != nil {
				return err
			}
			if !report.Passed() {
				return cli.Exit(fmt.Sprintf("%s: %d case(s) failed", report.Suite, report.Count(scenario.StatusFailed)), 1)
			}
			return nil
		},
	}
}

func listRunsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List recent runs, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: store.DefaultListLimit, Usage: "Maximum runs to show"},
		},
		Action: func(c *cli.Context) error {
			runs, closeRuns, err := openRuns(c, true)
			if err != nil {
				return err
			}
			defer closeRuns()
			list, err := runs.List(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			return output(c, list, func(w *textWriter) {
				if len(list) == 0 {
					w.Printf("no runs recorded\n")
					return
				}
				for _, r := range list {
					status := "passed"
					if !r.Passed() {
						status = "failed"
					}
					w.Printf("%s  %s  %-8s %s\n", r.StartedAt.Format(time.RFC3339), r.RunID, r.Suite, status)
				}
			})
		},
	}
}

func getRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one run",
		ArgsUsage: "RUN_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("run id is required")
			}
			runs, closeRuns, err := openRuns(c, true)
			if err != nil {
				return err
			}
			defer closeRuns()
			r, err := runs.Get(c.Context, c.Args().Get(0))
			if err != nil {
				return err
			}
			return output(c, r, func(w *textWriter) { printReport(w, r) })
		},
	}
}
