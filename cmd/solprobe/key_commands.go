package main

import (
	"fmt"
	"os"

	"github.com/example/solprobe/internal/keys"
	sol "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate (or import) a keypair in Solana CLI format",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write the keypair to this file",
			},
			&cli.StringFlag{
				Name:  "import",
				Usage: "Base58 secret key to import instead of generating one",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing --out file",
			},
			&cli.BoolFlag{
				Name:  "show-secret",
				Usage: "Print the base58 secret key",
			},
		},
		Action: func(c *cli.Context) error {
			var (
				key sol.PrivateKey
				err error
			)
			if s := c.String("import"); s != "" {
				key, err = keys.DecodeBase58(s)
			} else {
				key, err = keys.Generate()
			}
			if err != nil {
				return err
			}

			out := c.String("out")
			if out != "" {
				p, err := keys.ExpandPath(out)
				if err != nil {
					return err
				}
				if _, err := os.Stat(p); err == nil && !c.Bool("force") {
					return fmt.Errorf("%s already exists (use --force to overwrite)", p)
				}
				if err := keys.Save(p, key); err != nil {
					return err
				}
			}

			res := map[string]string{"pubkey": key.PublicKey().String()}
			if out != "" {
				res["path"] = out
			}
			if c.Bool("show-secret") {
				res["secret"] = keys.EncodeBase58(key)
			}
			return output(c, res, func(w *textWriter) {
				w.Printf("pubkey: %s\n", res["pubkey"])
				if out != "" {
					w.Printf("saved:  %s\n", out)
				}
				if s, ok := res["secret"]; ok {
					w.Printf("secret: %s\n", s)
				}
			})
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show the balance of an account",
		ArgsUsage: "PUBKEY",
		Action: func(c *cli.Context) error {
			pk, err := pubkeyArg(c, 0, "pubkey")
			if err != nil {
				return err
			}
			cl, err := clientFrom(c)
			if err != nil {
				return err
			}
			ctx, cancel := opContext(c)
			defer cancel()
			lamports, _, err := cl.GetBalance(ctx, pk)
			if err != nil {
				return err
			}
			amount := float64(lamports) / float64(sol.LAMPORTS_PER_SOL)
			return output(c, map[string]any{"pubkey": pk.String(), "lamports": lamports, "sol": amount}, func(w *textWriter) {
				w.Printf("%s: %d lamports (%.9f SOL)\n", pk, lamports, amount)
			})
		},
	}
}
