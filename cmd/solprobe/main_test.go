package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/solprobe/internal/keys"
	"github.com/example/solprobe/internal/marinade"
	"github.com/example/solprobe/internal/scenario"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// run executes the app with args and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"solprobe"}, args...))
	return out.String(), err
}

func TestKeygenWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")

	out, err := run(t, "--json", "keygen", "--out", path)
	require.NoError(t, err)

	var res map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	key, err := keys.Load(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey().String(), res["pubkey"])
	assert.NotContains(t, res, "secret")

	_, err = run(t, "keygen", "--out", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "keygen", "--out", path, "--force")
	require.NoError(t, err)
}

func TestKeygenImport(t *testing.T) {
	key, err := sol.NewRandomPrivateKey()
	require.NoError(t, err)

	out, err := run(t, "--json", "keygen", "--import", keys.EncodeBase58(key), "--show-secret")
	require.NoError(t, err)
	var res map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, key.PublicKey().String(), res["pubkey"])
	assert.Equal(t, keys.EncodeBase58(key), res["secret"])

	_, err = run(t, "keygen", "--import", "not-base58!")
	assert.ErrorIs(t, err, keys.ErrInvalidKey)
}

func TestArgumentValidation(t *testing.T) {
	valid := sol.SystemProgramID.String()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"balance without pubkey", []string{"balance"}, "pubkey is required"},
		{"balance bad pubkey", []string{"balance", "xyz"}, "invalid pubkey"},
		{"bad commitment", []string{"--commitment", "eventual", "balance", valid}, "unknown commitment"},
		{"fund without amount", []string{"fund", valid}, "amount in SOL is required"},
		{"fund not finite", []string{"fund", valid, "NaN"}, "invalid SOL amount"},
		{"airdrop not a number", []string{"airdrop", valid, "lots"}, "invalid amount"},
		{"config-marinade empty", []string{"config-marinade", "--state", valid}, "nothing to change"},
		{"config-marinade bad state", []string{"config-marinade", "--state", "nope", "--min-stake", "1"}, "invalid state"},
		{"config-marinade fee too high", []string{"config-marinade", "--state", valid, "--reward-fee", "20"}, "fee too high"},
		{"runs list without mongo", []string{"--mongo-uri", "", "runs", "list"}, "needs --mongo-uri"},
		{"runs get without id", []string{"runs", "get"}, "run id is required"},
		{"dup-acct zero fund", []string{"run", "dup-acct", "--fund-sol", "0"}, "--fund-sol must be positive"},
		{"bad confirm commitment", []string{"--confirm-commitment", "soon", "balance", valid}, "unknown commitment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// flagApp runs action against the flags of cmd so their parsing can be
// checked without touching a cluster.
func flagApp(t *testing.T, cmd *cli.Command, action cli.ActionFunc, args ...string) {
	t.Helper()
	app := &cli.App{Name: "x", Flags: cmd.Flags, Action: action, Writer: io.Discard, ErrWriter: io.Discard}
	require.NoError(t, app.Run(append([]string{"x"}, args...)))
}

func TestInitializeDataFlags(t *testing.T) {
	admin := sol.NewWallet().PublicKey()

	var data marinade.InitializeData
	var err error
	flagApp(t, initializeCommand(), func(c *cli.Context) error {
		data, err = initializeData(c, admin)
		return nil
	}, "--min-stake", "2.5", "--reward-fee", "3%", "--slots-for-stake-delta", "10")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), data.MinStake)
	assert.Equal(t, uint32(300), data.RewardFee.BasisPoints)
	assert.Equal(t, uint64(10), data.SlotsForStakeDelta)
	assert.Equal(t, admin, data.AdminAuthority)
	assert.Equal(t, admin, data.ValidatorManagerAuthority)

	flagApp(t, initializeCommand(), func(c *cli.Context) error {
		data, err = initializeData(c, admin)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, marinade.DefaultInitializeData(admin, admin), data)

	flagApp(t, initializeCommand(), func(c *cli.Context) error {
		_, err = initializeData(c, admin)
		return nil
	}, "--reward-fee", "11")
	assert.ErrorIs(t, err, marinade.ErrFeeTooHigh)
}

func TestConfigParamsOnlySetFlags(t *testing.T) {
	var p marinade.ConfigMarinadeParams
	var err error
	flagApp(t, configMarinadeCommand(), func(c *cli.Context) error {
		p, err = configParams(c)
		return nil
	}, "--state", "x", "--min-deposit", "0.5", "--auto-add-validator")
	require.NoError(t, err)
	require.NotNil(t, p.MinDeposit)
	assert.Equal(t, uint64(500_000_000), *p.MinDeposit)
	require.NotNil(t, p.AutoAddValidatorEnabled)
	assert.True(t, *p.AutoAddValidatorEnabled)
	assert.Nil(t, p.RewardsFee)
	assert.Nil(t, p.MinStake)
	assert.Nil(t, p.SlotsForStakeDelta)
}

func TestPrintReport(t *testing.T) {
	r := scenario.Report{
		RunID:     "run-1",
		Suite:     scenario.SuiteDupAcct,
		StartedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Cases: []scenario.CaseResult{
			{Name: "can airdrop to acct", Status: scenario.StatusPassed, DurationMS: 5},
			{Name: "can set up stake accts", Status: scenario.StatusFailed, Error: "boom"},
			{Name: "rejects duplicate initialize", Status: scenario.StatusSkipped},
		},
	}
	var out bytes.Buffer
	app := &cli.App{Name: "x", Writer: &out, Action: func(c *cli.Context) error {
		printReport(&textWriter{c: c}, r)
		return nil
	}}
	require.NoError(t, app.Run([]string{"x"}))
	s := out.String()
	assert.Contains(t, s, "run run-1 (dup_acct) started 2024-05-01T00:00:00Z")
	assert.Contains(t, s, "✗ can set up stake accts (0ms): boom")
	assert.Contains(t, s, "1 passed, 1 failed, 1 skipped")
}

func TestClientCommitments(t *testing.T) {
	globals := &cli.Command{Flags: newApp().Flags}
	var read, confirm rpc.CommitmentType
	action := func(c *cli.Context) error {
		cl, err := clientFrom(c)
		require.NoError(t, err)
		read, confirm = cl.Options().Commitment, cl.Options().ConfirmCommitment
		return nil
	}

	flagApp(t, globals, action)
	assert.Equal(t, rpc.CommitmentFinalized, read)
	assert.Equal(t, rpc.CommitmentConfirmed, confirm)

	flagApp(t, globals, action, "--commitment", "confirmed", "--confirm-commitment", "FINALIZED")
	assert.Equal(t, rpc.CommitmentConfirmed, read)
	assert.Equal(t, rpc.CommitmentFinalized, confirm)
}
