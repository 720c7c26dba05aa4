package marinade

import (
	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
)

// ChangeAuthorityData rotates the state's authorities. Nil fields are kept.
type ChangeAuthorityData struct {
	Admin                 *sol.PublicKey
	ValidatorManager      *sol.PublicKey
	OperationalSolAccount *sol.PublicKey
	TreasuryMsolAccount   *sol.PublicKey
}

func (d ChangeAuthorityData) fields() []*sol.PublicKey {
	return []*sol.PublicKey{d.Admin, d.ValidatorManager, d.OperationalSolAccount, d.TreasuryMsolAccount}
}

func (d ChangeAuthorityData) MarshalWithEncoder(enc *bin.Encoder) error {
	for _, pk := range d.fields() {
		pk := pk
		if err := writeOption(enc, pk != nil, func() error { return enc.WriteBytes(pk[:], false) }); err != nil {
			return err
		}
	}
	return nil
}

func (d *ChangeAuthorityData) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	for _, dst := range []**sol.PublicKey{&d.Admin, &d.ValidatorManager, &d.OperationalSolAccount, &d.TreasuryMsolAccount} {
		if *dst, err = readOptionPublicKey(dec); err != nil {
			return err
		}
	}
	return nil
}

// NewChangeAuthorityInstruction encodes change_authority(data) signed by the
// current admin.
func NewChangeAuthorityInstruction(program sol.PublicKey, data ChangeAuthorityData, state, admin sol.PublicKey) (sol.Instruction, error) {
	metas, err := adminMetas(state, admin)
	if err != nil {
		return nil, err
	}
	raw, err := encode(InstructionChangeAuthority, data)
	if err != nil {
		return nil, err
	}
	return sol.NewInstruction(program, metas, raw), nil
}

func DecodeChangeAuthority(raw []byte) (ChangeAuthorityData, error) {
	var d ChangeAuthorityData
	if err := decode(InstructionChangeAuthority, raw, &d); err != nil {
		return ChangeAuthorityData{}, err
	}
	return d, nil
}
