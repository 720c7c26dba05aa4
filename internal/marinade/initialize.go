package marinade

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// LiqPoolInitializeData configures the SOL/mSOL liquidity pool.
type LiqPoolInitializeData struct {
	LPLiquidityTarget uint64
	LPMaxFee          Fee
	LPMinFee          Fee
	LPTreasuryCut     Fee
}

// InitializeData is the argument of the initialize instruction. Field order
// is the wire order.
type InitializeData struct {
	AdminAuthority                 sol.PublicKey
	ValidatorManagerAuthority      sol.PublicKey
	MinStake                       uint64
	RewardFee                      Fee
	LiqPool                        LiqPoolInitializeData
	AdditionalStakeRecordSpace     uint32
	AdditionalValidatorRecordSpace uint32
	SlotsForStakeDelta             uint64
}

// DefaultInitializeData returns parameters a fresh local deployment accepts.
func DefaultInitializeData(admin, validatorManager sol.PublicKey) InitializeData {
	return InitializeData{
		AdminAuthority:            admin,
		ValidatorManagerAuthority: validatorManager,
		MinStake:                  sol.LAMPORTS_PER_SOL,
		RewardFee:                 FeeFromBasisPoints(200),
		LiqPool: LiqPoolInitializeData{
			LPLiquidityTarget: 10_000 * sol.LAMPORTS_PER_SOL,
			LPMaxFee:          FeeFromBasisPoints(300),
			LPMinFee:          FeeFromBasisPoints(30),
			LPTreasuryCut:     FeeFromBasisPoints(2_500),
		},
		AdditionalStakeRecordSpace:     3,
		AdditionalValidatorRecordSpace: 3,
		SlotsForStakeDelta:             3_000,
	}
}

// Validate mirrors the checks the program applies before writing state.
func (d InitializeData) Validate() error {
	if d.AdminAuthority.IsZero() {
		return errors.Wrap(ErrInvalidData, "admin authority is zero")
	}
	if d.ValidatorManagerAuthority.IsZero() {
		return errors.Wrap(ErrInvalidData, "validator manager authority is zero")
	}
	if err := d.RewardFee.CheckMax(MaxRewardFee); err != nil {
		return errors.Wrap(err, "reward fee")
	}
	lp := d.LiqPool
	for name, f := range map[string]Fee{"lp max fee": lp.LPMaxFee, "lp min fee": lp.LPMinFee, "lp treasury cut": lp.LPTreasuryCut} {
		if err := f.Check(); err != nil {
			return errors.Wrap(err, name)
		}
	}
	if lp.LPMinFee.BasisPoints > lp.LPMaxFee.BasisPoints {
		return errors.Wrapf(ErrInvalidData, "lp min fee %s above max fee %s", lp.LPMinFee, lp.LPMaxFee)
	}
	return nil
}

func (d InitializeData) MarshalWithEncoder(enc *bin.Encoder) error {
	for _, step := range []func() error{
		func() error { return enc.WriteBytes(d.AdminAuthority[:], false) },
		func() error { return enc.WriteBytes(d.ValidatorManagerAuthority[:], false) },
		func() error { return enc.WriteUint64(d.MinStake, binary.LittleEndian) },
		func() error { return d.RewardFee.MarshalWithEncoder(enc) },
		func() error { return enc.WriteUint64(d.LiqPool.LPLiquidityTarget, binary.LittleEndian) },
		func() error { return d.LiqPool.LPMaxFee.MarshalWithEncoder(enc) },
		func() error { return d.LiqPool.LPMinFee.MarshalWithEncoder(enc) },
		func() error { return d.LiqPool.LPTreasuryCut.MarshalWithEncoder(enc) },
		func() error { return enc.WriteUint32(d.AdditionalStakeRecordSpace, binary.LittleEndian) },
		func() error { return enc.WriteUint32(d.AdditionalValidatorRecordSpace, binary.LittleEndian) },
		func() error { return enc.WriteUint64(d.SlotsForStakeDelta, binary.LittleEndian) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (d *InitializeData) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if d.AdminAuthority, err = readPublicKey(dec); err != nil {
		return err
	}
	if d.ValidatorManagerAuthority, err = readPublicKey(dec); err != nil {
		return err
	}
	if d.MinStake, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if err = d.RewardFee.UnmarshalWithDecoder(dec); err != nil {
		return err
	}
	if d.LiqPool.LPLiquidityTarget, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	for _, f := range []*Fee{&d.LiqPool.LPMaxFee, &d.LiqPool.LPMinFee, &d.LiqPool.LPTreasuryCut} {
		if err = f.UnmarshalWithDecoder(dec); err != nil {
			return err
		}
	}
	if d.AdditionalStakeRecordSpace, err = dec.ReadUint32(binary.LittleEndian); err != nil {
		return err
	}
	if d.AdditionalValidatorRecordSpace, err = dec.ReadUint32(binary.LittleEndian); err != nil {
		return err
	}
	d.SlotsForStakeDelta, err = dec.ReadUint64(binary.LittleEndian)
	return err
}

// InitializeAccounts are the account roles of the initialize instruction.
type InitializeAccounts struct {
	CreatorAuthority      sol.PublicKey
	State                 sol.PublicKey
	ReservePDA            sol.PublicKey
	StakeList             sol.PublicKey
	ValidatorList         sol.PublicKey
	MsolMint              sol.PublicKey
	OperationalSolAccount sol.PublicKey
	LPMint                sol.PublicKey
	SolLegPDA             sol.PublicKey
	MsolLeg               sol.PublicKey
	TreasuryMsolAccount   sol.PublicKey
}

// Metas returns the accounts in the order the program declares them.
func (a InitializeAccounts) Metas() (sol.AccountMetaSlice, error) {
	roles := []struct {
		name          string
		key           sol.PublicKey
		write, signer bool
	}{
		{"creator_authority", a.CreatorAuthority, false, true},
		{"state", a.State, true, false},
		{"reserve_pda", a.ReservePDA, false, false},
		{"stake_list", a.StakeList, true, false},
		{"validator_list", a.ValidatorList, true, false},
		{"msol_mint", a.MsolMint, false, false},
		{"operational_sol_account", a.OperationalSolAccount, false, false},
		{"liq_pool.lp_mint", a.LPMint, false, false},
		{"liq_pool.sol_leg_pda", a.SolLegPDA, false, false},
		{"liq_pool.msol_leg", a.MsolLeg, false, false},
		{"treasury_msol_account", a.TreasuryMsolAccount, false, false},
	}
	metas := make(sol.AccountMetaSlice, 0, len(roles)+2)
	for _, r := range roles {
		if r.key.IsZero() {
			return nil, errors.Wrap(ErrZeroAccount, r.name)
		}
		metas = append(metas, sol.NewAccountMeta(r.key, r.write, r.signer))
	}
	metas = append(metas,
		sol.NewAccountMeta(sol.SysVarClockPubkey, false, false),
		sol.NewAccountMeta(sol.SysVarRentPubkey, false, false),
	)
	return metas, nil
}

// NewInitializeInstruction encodes initialize(data) against accounts.
func NewInitializeInstruction(program sol.PublicKey, data InitializeData, accounts InitializeAccounts) (sol.Instruction, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	metas, err := accounts.Metas()
	if err != nil {
		return nil, err
	}
	raw, err := encode(InstructionInitialize, data)
	if err != nil {
		return nil, err
	}
	return sol.NewInstruction(program, metas, raw), nil
}

// DecodeInitialize parses instruction data produced by NewInitializeInstruction.
func DecodeInitialize(raw []byte) (InitializeData, error) {
	var d InitializeData
	if err := decode(InstructionInitialize, raw, &d); err != nil {
		return InitializeData{}, err
	}
	return d, nil
}

type borshMarshaler interface {
	MarshalWithEncoder(enc *bin.Encoder) error
}

type borshUnmarshaler interface {
	UnmarshalWithDecoder(dec *bin.Decoder) error
}

func encode(name string, args borshMarshaler) ([]byte, error) {
	buf := new(bytes.Buffer)
	disc := Discriminator(name)
	buf.Write(disc[:])
	if err := args.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, errors.Wrapf(err, "encode %s", name)
	}
	return buf.Bytes(), nil
}

func decode(name string, raw []byte, args borshUnmarshaler) error {
	disc := Discriminator(name)
	if len(raw) < len(disc) || !bytes.Equal(raw[:len(disc)], disc[:]) {
		return errors.Wrapf(ErrInvalidData, "not a %s instruction", name)
	}
	dec := bin.NewBorshDecoder(raw[len(disc):])
	if err := args.UnmarshalWithDecoder(dec); err != nil {
		return errors.Wrapf(err, "decode %s", name)
	}
	if dec.Remaining() != 0 {
		return errors.Wrapf(ErrInvalidData, "%d trailing bytes after %s", dec.Remaining(), name)
	}
	return nil
}

func readPublicKey(dec *bin.Decoder) (sol.PublicKey, error) {
	b, err := dec.ReadNBytes(sol.PublicKeyLength)
	if err != nil {
		return sol.PublicKey{}, err
	}
	return sol.PublicKeyFromBytes(b), nil
}
