package scenario

import (
	"context"

	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/keys"
	"github.com/example/solprobe/internal/marinade"
	"github.com/example/solprobe/internal/solana"
	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const SuiteDupAcct = "dup_acct"

// Cluster is the provider connection the dup_acct suite drives.
type Cluster interface {
	solana.Sender
	solana.BalanceFetcher
	marinade.RentSource
}

// DupAcctDeps wires the dup_acct suite. Provider is the wallet that funds
// the generated identity and acts as both program authorities.
type DupAcctDeps struct {
	Cluster  Cluster
	Funder   *funding.Funder
	Provider sol.PrivateKey
	Program  sol.PublicKey
	FundSOL  float64
	Layout   marinade.Layout

	// Data overrides the initialize payload; nil uses the defaults with the
	// provider as admin and validator manager.
	Data *marinade.InitializeData
}

// DupAcct funds a fresh identity, initializes the program against freshly
// provisioned accounts, then checks a repeated initialize is rejected.
func DupAcct(d DupAcctDeps) Suite {
	return Suite{
		Name: SuiteDupAcct,
		Cases: []Case{
			{Name: "can airdrop to acct", Run: d.fundIdentity},
			{Name: "can set up stake accts", Run: d.initialize},
			{Name: "rejects duplicate initialize", Run: d.initializeAgain, ExpectFailure: true, FailingInstruction: 0},
		},
	}
}

func (d DupAcctDeps) fundIdentity(ctx context.Context, st *State) (sol.Signature, error) {
	// the identity pays for the repeat; unfunded it would fail on fees
	if !(d.FundSOL > 0) {
		return sol.Signature{}, errors.Wrapf(funding.ErrInvalidAmount, "identity needs a positive fund amount, got %v", d.FundSOL)
	}
	id, err := keys.Generate()
	if err != nil {
		return sol.Signature{}, errors.Wrap(err, "generate identity")
	}
	st.Identity = id

	before, _, err := d.Cluster.GetBalance(ctx, id.PublicKey())
	if err != nil {
		return sol.Signature{}, err
	}
	tr, err := d.Funder.Fund(ctx, id.PublicKey(), d.FundSOL)
	if err != nil {
		return tr.Signature, err
	}
	st.Funded = tr
	return tr.Signature, d.Funder.VerifyCredit(ctx, id.PublicKey(), before, tr.Lamports)
}

func (d DupAcctDeps) initialize(ctx context.Context, st *State) (sol.Signature, error) {
	p := marinade.NewProvisioner(d.Program, d.Cluster)
	if d.Layout != (marinade.Layout{}) {
		p.Layout = d.Layout
	}
	prov, err := p.Prepare(ctx, d.Provider.PublicKey())
	if err != nil {
		return sol.Signature{}, err
	}
	st.Provisioned = prov
	for _, b := range prov.Batches {
		if _, err := d.Cluster.SendAndConfirm(ctx, b.Instructions, d.Provider, b.Signers...); err != nil {
			return sol.Signature{}, errors.Wrapf(err, "provision %s", b.Name)
		}
	}

	data := marinade.DefaultInitializeData(d.Provider.PublicKey(), d.Provider.PublicKey())
	if d.Data != nil {
		data = *d.Data
	}
	ix, err := marinade.NewInitializeInstruction(d.Program, data, prov.Accounts)
	if err != nil {
		return sol.Signature{}, err
	}
	st.Initialize = ix
	return d.Cluster.SendAndConfirm(ctx, []sol.Instruction{ix}, d.Provider)
}

// The repeat is paid by the funded identity so its signature differs from
// the first attempt even under the same cached blockhash.
func (d DupAcctDeps) initializeAgain(ctx context.Context, st *State) (sol.Signature, error) {
	if st.Initialize == nil || st.Identity == nil {
		return sol.Signature{}, errors.New("no initialize to repeat")
	}
	return d.Cluster.SendAndConfirm(ctx, []sol.Instruction{st.Initialize}, st.Identity, d.Provider)
}
