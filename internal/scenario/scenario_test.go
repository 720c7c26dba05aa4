package scenario

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/marinade"
	"github.com/example/solprobe/internal/solana"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendCall struct {
	ixs     []sol.Instruction
	payer   sol.PublicKey
	signers []sol.PublicKey
}

// fakeCluster confirms every transaction unless errOn names the 1-based call.
type fakeCluster struct {
	mu       sync.Mutex
	calls    []sendCall
	errOn    map[int]error
	balances []uint64
	reads    int
}

func (f *fakeCluster) SendAndConfirm(_ context.Context, ixs []sol.Instruction, payer sol.PrivateKey, signers ...sol.PrivateKey) (sol.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := sendCall{ixs: ixs, payer: payer.PublicKey()}
	for _, s := range signers {
		c.signers = append(c.signers, s.PublicKey())
	}
	f.calls = append(f.calls, c)
	sig := sol.Signature{byte(len(f.calls))}
	if err := f.errOn[len(f.calls)]; err != nil {
		return sig, err
	}
	return sig, nil
}

func (f *fakeCluster) GetBalance(_ context.Context, _ sol.PublicKey) (uint64, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.reads
	f.reads++
	if i >= len(f.balances) {
		i = len(f.balances) - 1
	}
	return f.balances[i], time.Millisecond, nil
}

func (f *fakeCluster) RequestAirdrop(_ context.Context, _ sol.PublicKey, _ uint64) (sol.Signature, error) {
	return sol.Signature{}, errors.New("not used")
}

func (f *fakeCluster) RentExemption(_ context.Context, space uint64) (uint64, error) {
	return 890_880 + space*6_960, nil
}

type memRecorder struct {
	reports []Report
	err     error
}

func (m *memRecorder) Save(_ context.Context, r Report) error {
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

func newDeps(t *testing.T, c *fakeCluster) DupAcctDeps {
	t.Helper()
	provider, err := sol.NewRandomPrivateKey()
	require.NoError(t, err)
	f := funding.New(c, provider, nil)
	f.PollInterval = time.Millisecond
	return DupAcctDeps{
		Cluster:  c,
		Funder:   f,
		Provider: provider,
		Program:  marinade.ProgramID,
		FundSOL:  600,
	}
}

var rejected = &solana.TransactionError{Err: map[string]interface{}{"InstructionError": []interface{}{0, "AccountDiscriminatorAlreadySet"}}}

func TestDupAcctPasses(t *testing.T) {
	// fund, three provisioning batches, initialize, repeat
	c := &fakeCluster{balances: []uint64{0, 600_000_000_000}, errOn: map[int]error{6: rejected}}
	deps := newDeps(t, c)
	rec := &memRecorder{}

	rep, err := NewRunner(rec, nil, nil, time.Second).Run(context.Background(), DupAcct(deps))
	require.NoError(t, err)

	assert.True(t, rep.Passed(), "%+v", rep.Cases)
	assert.Equal(t, SuiteDupAcct, rep.Suite)
	assert.NotEmpty(t, rep.RunID)
	require.Len(t, rep.Cases, 3)
	assert.Equal(t, "can airdrop to acct", rep.Cases[0].Name)
	assert.Equal(t, "can set up stake accts", rep.Cases[1].Name)
	assert.Equal(t, "rejects duplicate initialize", rep.Cases[2].Name)
	assert.Contains(t, rep.Cases[2].Error, "AccountDiscriminatorAlreadySet")

	require.Len(t, c.calls, 6)
	provider := deps.Provider.PublicKey()
	for _, call := range c.calls[:5] {
		assert.Equal(t, provider, call.payer)
	}
	// the repeat carries the same instruction, paid by the funded identity
	assert.Same(t, c.calls[4].ixs[0], c.calls[5].ixs[0])
	assert.NotEqual(t, provider, c.calls[5].payer)
	assert.Equal(t, []sol.PublicKey{provider}, c.calls[5].signers)

	require.Len(t, rec.reports, 1)
	assert.Equal(t, rep.RunID, rec.reports[0].RunID)
}

func TestDupAcctFailsWhenRepeatLands(t *testing.T) {
	c := &fakeCluster{balances: []uint64{0, 600_000_000_000}}
	rep, err := NewRunner(nil, nil, nil, 0).Run(context.Background(), DupAcct(newDeps(t, c)))
	require.NoError(t, err)

	assert.False(t, rep.Passed())
	assert.Equal(t, StatusPassed, rep.Cases[1].Status)
	assert.Equal(t, StatusFailed, rep.Cases[2].Status)
	assert.NotEmpty(t, rep.Cases[2].Signature)
}

func TestDupAcctTransportErrorIsNotARejection(t *testing.T) {
	c := &fakeCluster{balances: []uint64{0, 600_000_000_000}, errOn: map[int]error{6: errors.New("connection reset")}}
	rep, err := NewRunner(nil, nil, nil, 0).Run(context.Background(), DupAcct(newDeps(t, c)))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rep.Cases[2].Status)
}

func simulationFailed(errPayload interface{}) error {
	return &solana.TransactionError{Preflight: true, Err: &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed",
		Data:    map[string]interface{}{"err": errPayload, "logs": []interface{}{}},
	}}
}

func TestDupAcctRepeatOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		repeat error
		want   Status
	}{
		{"landed with program error", rejected, StatusPassed},
		{"preflight program error", simulationFailed(map[string]interface{}{"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(0)}}}), StatusPassed},
		{"node unhealthy", &jsonrpc.RPCError{Code: -32005, Message: "Node is unhealthy"}, StatusFailed},
		{"fee payer cannot pay", simulationFailed("InsufficientFundsForFee"), StatusFailed},
		{"fee payer error on landed tx", &solana.TransactionError{Preflight: true, Err: "InsufficientFundsForFee"}, StatusFailed},
		{"error on another instruction", simulationFailed(map[string]interface{}{"InstructionError": []interface{}{float64(1), "InvalidArgument"}}), StatusFailed},
		{"simulation failed without payload", &solana.TransactionError{Preflight: true, Err: &jsonrpc.RPCError{Code: -32002}}, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCluster{balances: []uint64{0, 600_000_000_000}, errOn: map[int]error{6: tt.repeat}}
			rep, err := NewRunner(nil, nil, nil, 0).Run(context.Background(), DupAcct(newDeps(t, c)))
			require.NoError(t, err)
			require.Len(t, rep.Cases, 3)
			assert.Equal(t, StatusPassed, rep.Cases[1].Status)
			assert.Equal(t, tt.want, rep.Cases[2].Status, rep.Cases[2].Error)
			assert.Equal(t, tt.want == StatusPassed, rep.Passed())
		})
	}
}

func TestDupAcctRequiresFundedIdentity(t *testing.T) {
	c := &fakeCluster{balances: []uint64{0}}
	deps := newDeps(t, c)
	deps.FundSOL = 0
	rep, err := NewRunner(nil, nil, nil, 0).Run(context.Background(), DupAcct(deps))
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, rep.Cases[0].Status)
	assert.Contains(t, rep.Cases[0].Error, "invalid SOL amount")
	assert.Equal(t, StatusSkipped, rep.Cases[2].Status)
	assert.False(t, rep.Passed())
	assert.Empty(t, c.calls)
}

func TestDupAcctSkipsAfterFundingFailure(t *testing.T) {
	c := &fakeCluster{balances: []uint64{0}, errOn: map[int]error{1: errors.New("insufficient funds")}}
	rep, err := NewRunner(nil, nil, nil, 0).Run(context.Background(), DupAcct(newDeps(t, c)))
	require.NoError(t, err)

	require.Len(t, rep.Cases, 3)
	assert.Equal(t, StatusFailed, rep.Cases[0].Status)
	assert.Contains(t, rep.Cases[0].Error, "insufficient funds")
	assert.Equal(t, StatusSkipped, rep.Cases[1].Status)
	assert.Equal(t, StatusSkipped, rep.Cases[2].Status)
	assert.Equal(t, 2, rep.Count(StatusSkipped))
	assert.Len(t, c.calls, 1)
}

func TestDupAcctCatchesShortCredit(t *testing.T) {
	c := &fakeCluster{balances: []uint64{0, 599_000_000_000}}
	runner := NewRunner(nil, nil, nil, 20*time.Millisecond)
	rep, err := runner.Run(context.Background(), DupAcct(newDeps(t, c)))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rep.Cases[0].Status)
	assert.Contains(t, rep.Cases[0].Error, "balance mismatch")
}

func TestRunnerReportsRecorderError(t *testing.T) {
	suite := Suite{Name: "one", Cases: []Case{{
		Name: "noop",
		Run:  func(context.Context, *State) (sol.Signature, error) { return sol.Signature{}, nil },
	}}}
	rep, err := NewRunner(&memRecorder{err: errors.New("disk full")}, nil, nil, 0).Run(context.Background(), suite)
	assert.Error(t, err)
	assert.True(t, rep.Passed())
}

func TestRunnerUsesClock(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	r := NewRunner(nil, nil, nil, 0)
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	suite := Suite{Name: "clock", Cases: []Case{{
		Name: "one",
		Run:  func(context.Context, *State) (sol.Signature, error) { return sol.Signature{}, nil },
	}}}
	rep, err := r.Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Second), rep.StartedAt)
	assert.Equal(t, int64(1000), rep.Cases[0].DurationMS)
	assert.Equal(t, base.Add(4*time.Second), rep.FinishedAt)
}
