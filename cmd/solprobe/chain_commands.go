package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/marinade"
	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// amountArgs parses "PUBKEY SOL".
func amountArgs(c *cli.Context) (sol.PublicKey, float64, error) {
	to, err := pubkeyArg(c, 0, "pubkey")
	if err != nil {
		return sol.PublicKey{}, 0, err
	}
	if c.NArg() < 2 {
		return sol.PublicKey{}, 0, fmt.Errorf("amount in SOL is required")
	}
	amount, err := strconv.ParseFloat(c.Args().Get(1), 64)
	if err != nil {
		return sol.PublicKey{}, 0, fmt.Errorf("invalid amount %q", c.Args().Get(1))
	}
	if _, err := funding.SolToLamports(amount); err != nil {
		return sol.PublicKey{}, 0, err
	}
	return to, amount, nil
}

type transferFunc func(f *funding.Funder, ctx context.Context, to sol.PublicKey, amount float64) (funding.Transfer, error)

func transferAction(do transferFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		to, amount, err := amountArgs(c)
		if err != nil {
			return err
		}
		payer, err := walletFrom(c)
		if err != nil {
			return err
		}
		cl, err := clientFrom(c)
		if err != nil {
			return err
		}
		ctx, cancel := opContext(c)
		defer cancel()
		tr, err := do(funding.New(cl, payer, loggerFrom(c)), ctx, to, amount)
		if err != nil {
			return err
		}
		return output(c, map[string]any{
			"to":        tr.To.String(),
			"lamports":  tr.Lamports,
			"signature": tr.Signature.String(),
		}, func(w *textWriter) {
			w.Printf("sent %d lamports to %s\n", tr.Lamports, tr.To)
			w.Printf("signature: %s\n", tr.Signature)
		})
	}
}

func fundCommand() *cli.Command {
	return &cli.Command{
		Name:      "fund",
		Usage:     "Transfer SOL from the provider wallet",
		ArgsUsage: "PUBKEY SOL",
		Action:    transferAction((*funding.Funder).Fund),
	}
}

func airdropCommand() *cli.Command {
	return &cli.Command{
		Name:      "airdrop",
		Usage:     "Request SOL from the cluster faucet",
		ArgsUsage: "PUBKEY SOL",
		Action:    transferAction((*funding.Funder).Airdrop),
	}
}

// initializeData applies the initialize flags over the defaults.
func initializeData(c *cli.Context, admin sol.PublicKey) (marinade.InitializeData, error) {
	data := marinade.DefaultInitializeData(admin, admin)
	if c.IsSet("min-stake") {
		l, err := funding.SolToLamports(c.Float64("min-stake"))
		if err != nil {
			return data, errors.Wrap(err, "min-stake")
		}
		data.MinStake = l
	}
	if c.IsSet("reward-fee") {
		f, err := marinade.ParseFee(c.String("reward-fee"))
		if err != nil {
			return data, errors.Wrap(err, "reward-fee")
		}
		data.RewardFee = f
	}
	if c.IsSet("slots-for-stake-delta") {
		data.SlotsForStakeDelta = c.Uint64("slots-for-stake-delta")
	}
	return data, data.Validate()
}

func initializeCommand() *cli.Command {
	return &cli.Command{
		Name:  "initialize",
		Usage: "Provision fresh Marinade accounts and initialize the program state",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "min-stake", Usage: "Minimum stake in SOL", Value: 1},
			&cli.StringFlag{Name: "reward-fee", Usage: "Reward fee in percent", Value: "2"},
			&cli.Uint64Flag{Name: "slots-for-stake-delta", Usage: "Slots between stake-delta runs", Value: 3000},
		},
		Action: func(c *cli.Context) error {
			payer, err := walletFrom(c)
			if err != nil {
				return err
			}
			data, err := initializeData(c, payer.PublicKey())
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
			logger := loggerFrom(c)

			pctx, pcancel := opContext(c)
			prov, err := marinade.NewProvisioner(program, cl).Prepare(pctx, payer.PublicKey())
			pcancel()
			if err != nil {
				return err
			}
			for _, b := range prov.Batches {
				ctx, cancel := opContext(c)
				sig, err := cl.SendAndConfirm(ctx, b.Instructions, payer, b.Signers...)
				cancel()
				if err != nil {
					return errors.Wrapf(err, "provision %s", b.Name)
				}
				logger.Info("batch confirmed", "event", "provision", "batch", b.Name, "sig", sig.String())
			}

			ix, err := marinade.NewInitializeInstruction(program, data, prov.Accounts)
			if err != nil {
				return err
			}
			ctx, cancel := opContext(c)
			defer cancel()
			sig, err := cl.SendAndConfirm(ctx, []sol.Instruction{ix}, payer)
			if err != nil {
				return errors.Wrap(err, "initialize")
			}
			a := prov.Accounts
			return output(c, map[string]any{
				"signature":      sig.String(),
				"state":          a.State.String(),
				"msol_mint":      a.MsolMint.String(),
				"stake_list":     a.StakeList.String(),
				"validator_list": a.ValidatorList.String(),
				"treasury_msol":  a.TreasuryMsolAccount.String(),
			}, func(w *textWriter) {
				w.Printf("initialized state %s\n", a.State)
				w.Printf("  msol mint:  %s\n", a.MsolMint)
				w.Printf("  signature:  %s\n", sig)
			})
		},
	}
}

// configParams collects the config-marinade flags that were set.
func configParams(c *cli.Context) (marinade.ConfigMarinadeParams, error) {
	var p marinade.ConfigMarinadeParams
	if c.IsSet("reward-fee") {
		f, err := marinade.ParseFee(c.String("reward-fee"))
		if err != nil {
			return p, errors.Wrap(err, "reward-fee")
		}
		p.RewardsFee = &f
	}
	if c.IsSet("slots-for-stake-delta") {
		v := c.Uint64("slots-for-stake-delta")
		p.SlotsForStakeDelta = &v
	}
	for name, dst := range map[string]**uint64{
		"min-stake":         &p.MinStake,
		"min-deposit":       &p.MinDeposit,
		"min-withdraw":      &p.MinWithdraw,
		"staking-sol-cap":   &p.StakingSolCap,
		"liquidity-sol-cap": &p.LiquiditySolCap,
	} {
		if !c.IsSet(name) {
			continue
		}
		l, err := funding.SolToLamports(c.Float64(name))
		if err != nil {
			return p, errors.Wrap(err, name)
		}
		*dst = &l
	}
	if c.IsSet("auto-add-validator") {
		v := c.Bool("auto-add-validator")
		p.AutoAddValidatorEnabled = &v
	}
	if p.Empty() {
		return p, fmt.Errorf("nothing to change: set at least one parameter flag")
	}
	return p, p.Validate()
}

func configMarinadeCommand() *cli.Command {
	return &cli.Command{
		Name:  "config-marinade",
		Usage: "Update tunables on an initialized state (provider wallet must be admin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "state", Usage: "State account", Required: true},
			&cli.StringFlag{Name: "reward-fee", Usage: "Rewards fee in percent"},
			&cli.Uint64Flag{Name: "slots-for-stake-delta", Usage: "Slots between stake-delta runs"},
			&cli.Float64Flag{Name: "min-stake", Usage: "Minimum stake in SOL"},
			&cli.Float64Flag{Name: "min-deposit", Usage: "Minimum deposit in SOL"},
			&cli.Float64Flag{Name: "min-withdraw", Usage: "Minimum withdraw in SOL"},
			&cli.Float64Flag{Name: "staking-sol-cap", Usage: "Staking cap in SOL"},
			&cli.Float64Flag{Name: "liquidity-sol-cap", Usage: "Liquidity pool cap in SOL"},
			&cli.BoolFlag{Name: "auto-add-validator", Usage: "Allow validators to add themselves"},
		},
		Action: func(c *cli.Context) error {
			state, err := sol.PublicKeyFromBase58(c.String("state"))
			if err != nil {
				return fmt.Errorf("invalid state %q: %v", c.String("state"), err)
			}
			params, err := configParams(c)
			if err != nil {
				return err
			}
			admin, err := walletFrom(c)
			if err != nil {
				return err
			}
			program, err := programFrom(c)
			if err != nil {
				return err
			}
			ix, err := marinade.NewConfigMarinadeInstruction(program, params, state, admin.PublicKey())
			if err != nil {
				return err
			}
			cl, err := clientFrom(c)
			if err != nil {
				return err
			}
			ctx, cancel := opContext(c)
			defer cancel()
			sig, err := cl.SendAndConfirm(ctx, []sol.Instruction{ix}, admin)
			if err != nil {
				return err
			}
			return output(c, map[string]string{"signature": sig.String()}, func(w *textWriter) {
				w.Printf("signature: %s\n", sig)
			})
		},
	}
}
