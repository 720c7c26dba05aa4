package marinade

import (
	"context"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/pkg/errors"
)

// MsolDecimals matches SOL so one mSOL unit maps to one lamport.
const MsolDecimals = 9

// Layout sizes the accounts created ahead of initialize.
type Layout struct {
	StateSpace         uint64
	StakeListSpace     uint64
	ValidatorListSpace uint64
	MintSize           uint64
	TokenAccountSize   uint64
}

// DefaultLayout leaves room for a small validator set on a local cluster.
var DefaultLayout = Layout{
	StateSpace:         1024,
	StakeListSpace:     16 * 1024,
	ValidatorListSpace: 16 * 1024,
	MintSize:           82,
	TokenAccountSize:   165,
}

// RentSource reports the rent exempt minimum for an account size.
type RentSource interface {
	RentExemption(ctx context.Context, space uint64) (uint64, error)
}

// Batch is one transaction worth of instructions with the extra keypairs that
// must sign it besides the fee payer.
type Batch struct {
	Name         string
	Instructions []sol.Instruction
	Signers      []sol.PrivateKey
}

// Provisioned describes a fresh account set ready for initialize.
type Provisioned struct {
	Accounts InitializeAccounts
	Batches  []Batch
}

// Provisioner creates the accounts initialize expects to find: zeroed
// program-owned data accounts, funded PDAs, both mints and the token accounts.
type Provisioner struct {
	Program sol.PublicKey
	Layout  Layout
	Rent    RentSource
}

func NewProvisioner(program sol.PublicKey, rent RentSource) *Provisioner {
	return &Provisioner{Program: program, Layout: DefaultLayout, Rent: rent}
}

// Prepare generates keypairs and builds the setup batches. payer funds every
// account and doubles as the operational SOL account.
func (p *Provisioner) Prepare(ctx context.Context, payer sol.PublicKey) (*Provisioned, error) {
	if payer.IsZero() {
		return nil, errors.Wrap(ErrZeroAccount, "payer")
	}
	kp := make([]sol.PrivateKey, 7)
	for i := range kp {
		k, err := sol.NewRandomPrivateKey()
		if err != nil {
			return nil, errors.Wrap(err, "generate keypair")
		}
		kp[i] = k
	}
	state, stakeList, validatorList, msolMint, lpMint, msolLeg, treasury := kp[0], kp[1], kp[2], kp[3], kp[4], kp[5], kp[6]

	pdas := map[string]sol.PublicKey{}
	for name, derive := range map[string]func(sol.PublicKey, sol.PublicKey) (sol.PublicKey, uint8, error){
		SeedReserve:                 ReservePDA,
		SeedLiqPoolSolLeg:           LiqPoolSolLeg,
		SeedMsolMintAuthority:       MsolMintAuthority,
		SeedLiqPoolMintAuthority:    LiqPoolMintAuthority,
		SeedLiqPoolMsolLegAuthority: LiqPoolMsolLegAuthority,
	} {
		pda, _, err := derive(state.PublicKey(), p.Program)
		if err != nil {
			return nil, err
		}
		pdas[name] = pda
	}

	rent := map[uint64]uint64{}
	for _, space := range []uint64{0, p.Layout.StateSpace, p.Layout.StakeListSpace, p.Layout.ValidatorListSpace, p.Layout.MintSize, p.Layout.TokenAccountSize} {
		if _, ok := rent[space]; ok {
			continue
		}
		l, err := p.Rent.RentExemption(ctx, space)
		if err != nil {
			return nil, errors.Wrapf(err, "rent exemption for %d bytes", space)
		}
		rent[space] = l
	}

	create := func(k sol.PrivateKey, space uint64, owner sol.PublicKey) sol.Instruction {
		return system.NewCreateAccountInstruction(rent[space], space, owner, payer, k.PublicKey()).Build()
	}
	fund := func(to sol.PublicKey) sol.Instruction {
		return system.NewTransferInstruction(rent[0], payer, to).Build()
	}

	data := Batch{
		Name: "data accounts",
		Instructions: []sol.Instruction{
			create(state, p.Layout.StateSpace, p.Program),
			create(stakeList, p.Layout.StakeListSpace, p.Program),
			create(validatorList, p.Layout.ValidatorListSpace, p.Program),
			fund(pdas[SeedReserve]),
			fund(pdas[SeedLiqPoolSolLeg]),
		},
		Signers: []sol.PrivateKey{state, stakeList, validatorList},
	}

	mints := Batch{Name: "mints", Signers: []sol.PrivateKey{msolMint, lpMint}}
	for _, m := range []struct {
		key       sol.PrivateKey
		authority sol.PublicKey
	}{
		{msolMint, pdas[SeedMsolMintAuthority]},
		{lpMint, pdas[SeedLiqPoolMintAuthority]},
	} {
		ix, err := token.NewInitializeMintInstructionBuilder().
			SetDecimals(MsolDecimals).
			SetMintAuthority(m.authority).
			SetMintAccount(m.key.PublicKey()).
			SetSysVarRentPubkeyAccount(sol.SysVarRentPubkey).
			ValidateAndBuild()
		if err != nil {
			return nil, errors.Wrap(err, "initialize mint")
		}
		mints.Instructions = append(mints.Instructions, create(m.key, p.Layout.MintSize, sol.TokenProgramID), ix)
	}

	tokens := Batch{Name: "token accounts", Signers: []sol.PrivateKey{msolLeg, treasury}}
	for _, a := range []struct {
		key   sol.PrivateKey
		owner sol.PublicKey
	}{
		{msolLeg, pdas[SeedLiqPoolMsolLegAuthority]},
		{treasury, payer},
	} {
		ix, err := token.NewInitializeAccountInstruction(a.key.PublicKey(), msolMint.PublicKey(), a.owner, sol.SysVarRentPubkey).ValidateAndBuild()
		if err != nil {
			return nil, errors.Wrap(err, "initialize token account")
		}
		tokens.Instructions = append(tokens.Instructions, create(a.key, p.Layout.TokenAccountSize, sol.TokenProgramID), ix)
	}

	return &Provisioned{
		Accounts: InitializeAccounts{
			CreatorAuthority:      payer,
			State:                 state.PublicKey(),
			ReservePDA:            pdas[SeedReserve],
			StakeList:             stakeList.PublicKey(),
			ValidatorList:         validatorList.PublicKey(),
			MsolMint:              msolMint.PublicKey(),
			OperationalSolAccount: payer,
			LPMint:                lpMint.PublicKey(),
			SolLegPDA:             pdas[SeedLiqPoolSolLeg],
			MsolLeg:               msolLeg.PublicKey(),
			TreasuryMsolAccount:   treasury.PublicKey(),
		},
		Batches: []Batch{data, mints, tokens},
	}, nil
}
