package marinade

import (
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// ConfigMarinadeParams updates tunables on an initialized state. Nil fields
// are left unchanged by the program.
type ConfigMarinadeParams struct {
	RewardsFee              *Fee
	SlotsForStakeDelta      *uint64
	MinStake                *uint64
	MinDeposit              *uint64
	MinWithdraw             *uint64
	StakingSolCap           *uint64
	LiquiditySolCap         *uint64
	AutoAddValidatorEnabled *bool
}

func (p ConfigMarinadeParams) Validate() error {
	if p.RewardsFee != nil {
		if err := p.RewardsFee.CheckMax(MaxRewardFee); err != nil {
			return errors.Wrap(err, "rewards fee")
		}
	}
	return nil
}

// Empty reports whether no field is set.
func (p ConfigMarinadeParams) Empty() bool {
	return p == ConfigMarinadeParams{}
}

func (p ConfigMarinadeParams) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeOption(enc, p.RewardsFee != nil, func() error { return p.RewardsFee.MarshalWithEncoder(enc) }); err != nil {
		return err
	}
	for _, v := range []*uint64{p.SlotsForStakeDelta, p.MinStake, p.MinDeposit, p.MinWithdraw, p.StakingSolCap, p.LiquiditySolCap} {
		v := v
		if err := writeOption(enc, v != nil, func() error { return enc.WriteUint64(*v, binary.LittleEndian) }); err != nil {
			return err
		}
	}
	b := p.AutoAddValidatorEnabled
	return writeOption(enc, b != nil, func() error { return enc.WriteBool(*b) })
}

func (p *ConfigMarinadeParams) UnmarshalWithDecoder(dec *bin.Decoder) error {
	some, err := dec.ReadBool()
	if err != nil {
		return err
	}
	if some {
		p.RewardsFee = new(Fee)
		if err := p.RewardsFee.UnmarshalWithDecoder(dec); err != nil {
			return err
		}
	}
	for _, dst := range []**uint64{&p.SlotsForStakeDelta, &p.MinStake, &p.MinDeposit, &p.MinWithdraw, &p.StakingSolCap, &p.LiquiditySolCap} {
		if *dst, err = readOptionUint64(dec); err != nil {
			return err
		}
	}
	if some, err = dec.ReadBool(); err != nil || !some {
		return err
	}
	v, err := dec.ReadBool()
	if err != nil {
		return err
	}
	p.AutoAddValidatorEnabled = &v
	return nil
}

// NewConfigMarinadeInstruction encodes config_marinade(params). admin must be
// the state's admin authority and sign the transaction.
func NewConfigMarinadeInstruction(program sol.PublicKey, params ConfigMarinadeParams, state, admin sol.PublicKey) (sol.Instruction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	metas, err := adminMetas(state, admin)
	if err != nil {
		return nil, err
	}
	raw, err := encode(InstructionConfigMarinade, params)
	if err != nil {
		return nil, err
	}
	return sol.NewInstruction(program, metas, raw), nil
}

func DecodeConfigMarinade(raw []byte) (ConfigMarinadeParams, error) {
	var p ConfigMarinadeParams
	if err := decode(InstructionConfigMarinade, raw, &p); err != nil {
		return ConfigMarinadeParams{}, err
	}
	return p, nil
}

func adminMetas(state, admin sol.PublicKey) (sol.AccountMetaSlice, error) {
	if state.IsZero() {
		return nil, errors.Wrap(ErrZeroAccount, "state")
	}
	if admin.IsZero() {
		return nil, errors.Wrap(ErrZeroAccount, "admin_authority")
	}
	return sol.AccountMetaSlice{
		sol.NewAccountMeta(state, true, false),
		sol.NewAccountMeta(admin, false, true),
	}, nil
}

// Borsh Option<T>: a one byte tag, then the value when present.
func writeOption(enc *bin.Encoder, some bool, write func() error) error {
	if err := enc.WriteBool(some); err != nil {
		return err
	}
	if !some {
		return nil
	}
	return write()
}

func readOptionUint64(dec *bin.Decoder) (*uint64, error) {
	some, err := dec.ReadBool()
	if err != nil || !some {
		return nil, err
	}
	v, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func readOptionPublicKey(dec *bin.Decoder) (*sol.PublicKey, error) {
	some, err := dec.ReadBool()
	if err != nil || !some {
		return nil, err
	}
	pk, err := readPublicKey(dec)
	if err != nil {
		return nil, err
	}
	return &pk, nil
}
