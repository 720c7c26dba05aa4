package marinade

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	sol "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) sol.PublicKey {
	t.Helper()
	k, err := sol.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

func sampleAccounts(t *testing.T) InitializeAccounts {
	return InitializeAccounts{
		CreatorAuthority:      newKey(t),
		State:                 newKey(t),
		ReservePDA:            newKey(t),
		StakeList:             newKey(t),
		ValidatorList:         newKey(t),
		MsolMint:              newKey(t),
		OperationalSolAccount: newKey(t),
		LPMint:                newKey(t),
		SolLegPDA:             newKey(t),
		MsolLeg:               newKey(t),
		TreasuryMsolAccount:   newKey(t),
	}
}

func TestDiscriminator(t *testing.T) {
	assert.Equal(t, [8]byte{175, 175, 109, 31, 13, 152, 155, 237}, Discriminator(InstructionInitialize))
	assert.NotEqual(t, Discriminator(InstructionInitialize), Discriminator(InstructionConfigMarinade))
}

func TestInitializeEncoding(t *testing.T) {
	admin, vm := newKey(t), newKey(t)
	data := DefaultInitializeData(admin, vm)
	accounts := sampleAccounts(t)

	ix, err := NewInitializeInstruction(ProgramID, data, accounts)
	require.NoError(t, err)
	assert.Equal(t, ProgramID, ix.ProgramID())

	raw, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, raw, 8+112)
	disc := Discriminator(InstructionInitialize)
	assert.Equal(t, disc[:], raw[:8])
	assert.Equal(t, admin[:], raw[8:40])
	assert.Equal(t, vm[:], raw[40:72])
	assert.Equal(t, data.MinStake, binary.LittleEndian.Uint64(raw[72:80]))
	assert.Equal(t, uint32(200), binary.LittleEndian.Uint32(raw[80:84]))
	assert.Equal(t, data.LiqPool.LPLiquidityTarget, binary.LittleEndian.Uint64(raw[84:92]))
	assert.Equal(t, uint64(3_000), binary.LittleEndian.Uint64(raw[112:120]))

	back, err := DecodeInitialize(raw)
	require.NoError(t, err)
	assert.Equal(t, data, back)

	_, err = DecodeInitialize(append(raw, 0))
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestInitializeAccountOrder(t *testing.T) {
	accounts := sampleAccounts(t)
	ix, err := NewInitializeInstruction(ProgramID, DefaultInitializeData(newKey(t), newKey(t)), accounts)
	require.NoError(t, err)

	metas := ix.Accounts()
	require.Len(t, metas, 13)
	assert.Equal(t, accounts.CreatorAuthority, metas[0].PublicKey)
	assert.True(t, metas[0].IsSigner)
	assert.True(t, metas[1].IsWritable)
	assert.True(t, metas[3].IsWritable)
	assert.True(t, metas[4].IsWritable)
	assert.False(t, metas[5].IsWritable)
	assert.Equal(t, accounts.TreasuryMsolAccount, metas[10].PublicKey)
	assert.Equal(t, sol.SysVarClockPubkey, metas[11].PublicKey)
	assert.Equal(t, sol.SysVarRentPubkey, metas[12].PublicKey)
}

func TestInitializeRejectsBadInput(t *testing.T) {
	accounts := sampleAccounts(t)
	accounts.MsolLeg = sol.PublicKey{}
	_, err := NewInitializeInstruction(ProgramID, DefaultInitializeData(newKey(t), newKey(t)), accounts)
	assert.ErrorIs(t, err, ErrZeroAccount)
	assert.Contains(t, err.Error(), "msol_leg")

	data := DefaultInitializeData(newKey(t), newKey(t))
	data.RewardFee = FeeFromBasisPoints(MaxRewardFee + 1)
	_, err = NewInitializeInstruction(ProgramID, data, sampleAccounts(t))
	assert.ErrorIs(t, err, ErrFeeTooHigh)

	data = DefaultInitializeData(newKey(t), newKey(t))
	data.LiqPool.LPMinFee = FeeFromBasisPoints(400)
	assert.ErrorIs(t, data.Validate(), ErrInvalidData)

	data = DefaultInitializeData(sol.PublicKey{}, newKey(t))
	assert.ErrorIs(t, data.Validate(), ErrInvalidData)
}

func TestFee(t *testing.T) {
	f, err := FeeFromPercent(4.5)
	require.NoError(t, err)
	assert.Equal(t, uint32(450), f.BasisPoints)
	assert.Equal(t, "4.5%", f.String())

	f, err = ParseFee("2.999%")
	require.NoError(t, err)
	assert.Equal(t, uint32(299), f.BasisPoints)

	_, err = FeeFromPercent(100.01)
	assert.ErrorIs(t, err, ErrFeeTooHigh)
	_, err = FeeFromPercent(-1)
	assert.ErrorIs(t, err, ErrFeeOutOfRange)
	_, err = ParseFee("lots")
	assert.ErrorIs(t, err, ErrFeeOutOfRange)

	assert.Equal(t, uint64(45), FeeFromBasisPoints(450).Apply(1_000))
	assert.Equal(t, uint64(math.MaxUint64), FeeFromBasisPoints(10_000).Apply(math.MaxUint64))
	assert.Equal(t, uint64(math.MaxUint64/2), FeeFromBasisPoints(5_000).Apply(math.MaxUint64))
	assert.NoError(t, FeeFromBasisPoints(10_000).Check())
	assert.True(t, errors.Is(FeeFromBasisPoints(10_001).Check(), ErrFeeTooHigh))
}

func TestConfigMarinadeEncoding(t *testing.T) {
	fee := FeeFromBasisPoints(100)
	minStake := uint64(2 * sol.LAMPORTS_PER_SOL)
	enabled := true
	params := ConfigMarinadeParams{RewardsFee: &fee, MinStake: &minStake, AutoAddValidatorEnabled: &enabled}

	state, admin := newKey(t), newKey(t)
	ix, err := NewConfigMarinadeInstruction(ProgramID, params, state, admin)
	require.NoError(t, err)

	raw, err := ix.Data()
	require.NoError(t, err)
	// tag+fee, none, tag+u64, four nones, tag+bool
	assert.Len(t, raw, 8+5+1+9+4+2)

	back, err := DecodeConfigMarinade(raw)
	require.NoError(t, err)
	assert.Equal(t, params, back)

	metas := ix.Accounts()
	require.Len(t, metas, 2)
	assert.True(t, metas[0].IsWritable)
	assert.True(t, metas[1].IsSigner)

	assert.True(t, ConfigMarinadeParams{}.Empty())
	assert.False(t, params.Empty())

	tooHigh := FeeFromBasisPoints(1_001)
	_, err = NewConfigMarinadeInstruction(ProgramID, ConfigMarinadeParams{RewardsFee: &tooHigh}, state, admin)
	assert.ErrorIs(t, err, ErrFeeTooHigh)
	_, err = NewConfigMarinadeInstruction(ProgramID, params, sol.PublicKey{}, admin)
	assert.ErrorIs(t, err, ErrZeroAccount)
}

func TestChangeAuthorityEncoding(t *testing.T) {
	newAdmin := newKey(t)
	data := ChangeAuthorityData{Admin: &newAdmin}
	ix, err := NewChangeAuthorityInstruction(ProgramID, data, newKey(t), newKey(t))
	require.NoError(t, err)

	raw, err := ix.Data()
	require.NoError(t, err)
	assert.Len(t, raw, 8+33+3)

	back, err := DecodeChangeAuthority(raw)
	require.NoError(t, err)
	assert.Equal(t, data, back)

	_, err = DecodeChangeAuthority(raw[:8])
	assert.Error(t, err)
}

func TestPDAsAreDeterministic(t *testing.T) {
	state := newKey(t)
	a, bumpA, err := ReservePDA(state, ProgramID)
	require.NoError(t, err)
	b, bumpB, err := ReservePDA(state, ProgramID)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, bumpA, bumpB)

	c, _, err := LiqPoolSolLeg(state, ProgramID)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

type fakeRent struct{ calls int }

func (f *fakeRent) RentExemption(_ context.Context, space uint64) (uint64, error) {
	f.calls++
	return 890_880 + space*6_960, nil
}

func TestProvisionerPrepare(t *testing.T) {
	payer := newKey(t)
	rent := &fakeRent{}
	p, err := NewProvisioner(ProgramID, rent).Prepare(context.Background(), payer)
	require.NoError(t, err)

	require.Len(t, p.Batches, 3)
	assert.Len(t, p.Batches[0].Instructions, 5)
	assert.Len(t, p.Batches[0].Signers, 3)
	assert.Len(t, p.Batches[1].Instructions, 4)
	assert.Len(t, p.Batches[2].Instructions, 4)
	// 0, 1024, 16k, 82, 165
	assert.Equal(t, 5, rent.calls)

	acc := p.Accounts
	assert.Equal(t, payer, acc.CreatorAuthority)
	assert.Equal(t, payer, acc.OperationalSolAccount)
	assert.Equal(t, p.Batches[0].Signers[0].PublicKey(), acc.State)
	reserve, _, err := ReservePDA(acc.State, ProgramID)
	require.NoError(t, err)
	assert.Equal(t, reserve, acc.ReservePDA)

	assert.Equal(t, sol.TokenProgramID, p.Batches[1].Instructions[1].ProgramID())
	assert.Equal(t, sol.SystemProgramID, p.Batches[0].Instructions[0].ProgramID())

	_, err = NewInitializeInstruction(ProgramID, DefaultInitializeData(payer, payer), acc)
	assert.NoError(t, err)

	_, err = NewProvisioner(ProgramID, rent).Prepare(context.Background(), sol.PublicKey{})
	assert.ErrorIs(t, err, ErrZeroAccount)
}
