// Package marinade encodes instructions for the Marinade liquid staking
// program. Instruction data is an 8-byte Anchor discriminator followed by the
// Borsh-encoded arguments.
package marinade

import (
	"crypto/sha256"

	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// ProgramID is the deployed Marinade program.
var ProgramID = sol.MustPublicKeyFromBase58("MarBmsSgKXdrN1egZf5sqe1TMai9K1rChYNDJgjq7aD")

// Instruction names as declared by the program.
const (
	InstructionInitialize      = "initialize"
	InstructionConfigMarinade  = "config_marinade"
	InstructionChangeAuthority = "change_authority"
)

// MaxRewardFee caps the reward fee at 10%.
const MaxRewardFee uint32 = 1_000

// PDA seeds, each combined with the state account key.
const (
	SeedReserve                 = "reserve"
	SeedMsolMintAuthority       = "st_mint"
	SeedLiqPoolSolLeg           = "liq_sol"
	SeedLiqPoolMsolLegAuthority = "liq_st_sol_authority"
	SeedLiqPoolMintAuthority    = "liq_mint"
)

var (
	ErrZeroAccount = errors.New("account key is zero")
	ErrInvalidData = errors.New("invalid instruction data")
)

// Discriminator returns sha256("global:<name>")[:8].
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

func statePDA(state sol.PublicKey, seed string, program sol.PublicKey) (sol.PublicKey, uint8, error) {
	pda, bump, err := sol.FindProgramAddress([][]byte{state[:], []byte(seed)}, program)
	if err != nil {
		return sol.PublicKey{}, 0, errors.Wrapf(err, "derive %s pda", seed)
	}
	return pda, bump, nil
}

// ReservePDA holds the SOL not yet delegated.
func ReservePDA(state, program sol.PublicKey) (sol.PublicKey, uint8, error) {
	return statePDA(state, SeedReserve, program)
}

func MsolMintAuthority(state, program sol.PublicKey) (sol.PublicKey, uint8, error) {
	return statePDA(state, SeedMsolMintAuthority, program)
}

func LiqPoolSolLeg(state, program sol.PublicKey) (sol.PublicKey, uint8, error) {
	return statePDA(state, SeedLiqPoolSolLeg, program)
}

func LiqPoolMsolLegAuthority(state, program sol.PublicKey) (sol.PublicKey, uint8, error) {
	return statePDA(state, SeedLiqPoolMsolLegAuthority, program)
}

func LiqPoolMintAuthority(state, program sol.PublicKey) (sol.PublicKey, uint8, error) {
	return statePDA(state, SeedLiqPoolMintAuthority, program)
}
