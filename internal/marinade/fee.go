package marinade

import (
	"encoding/binary"
	"math"
	"math/big"
	"strconv"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

const maxBasisPoints uint32 = 10_000

var (
	ErrFeeTooHigh    = errors.New("fee too high")
	ErrFeeOutOfRange = errors.New("fee out of range")
)

// Fee is a ratio expressed in basis points (1/100 of a percent).
type Fee struct {
	BasisPoints uint32
}

func FeeFromBasisPoints(bp uint32) Fee { return Fee{BasisPoints: bp} }

// FeeFromPercent converts a percentage, flooring to whole basis points:
// 4.5 becomes 450. Negative values and values above 100% are rejected.
func FeeFromPercent(pct float64) (Fee, error) {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return Fee{}, errors.Wrapf(ErrFeeOutOfRange, "%v", pct)
	}
	bp := math.Floor(pct * 100)
	if bp < 0 || bp > math.MaxUint32 {
		return Fee{}, errors.Wrapf(ErrFeeOutOfRange, "%v%%", pct)
	}
	f := Fee{BasisPoints: uint32(bp)}
	if err := f.Check(); err != nil {
		return Fee{}, err
	}
	return f, nil
}

// ParseFee parses a percentage such as "4.5" or "4.5%".
func ParseFee(s string) (Fee, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return Fee{}, errors.Wrapf(ErrFeeOutOfRange, "parse %q", s)
	}
	return FeeFromPercent(v)
}

// CheckMax fails when the fee exceeds max basis points.
func (f Fee) CheckMax(max uint32) error {
	if f.BasisPoints > max {
		return errors.Wrapf(ErrFeeTooHigh, "%s > %s", f, Fee{BasisPoints: max})
	}
	return nil
}

// Check fails when the fee exceeds 100%.
func (f Fee) Check() error { return f.CheckMax(maxBasisPoints) }

// Apply returns the fee share of lamports, rounding down.
func (f Fee) Apply(lamports uint64) uint64 {
	n := new(big.Int).SetUint64(lamports)
	n.Mul(n, big.NewInt(int64(f.BasisPoints)))
	n.Quo(n, big.NewInt(int64(maxBasisPoints)))
	// the program truncates to u64
	return n.Uint64()
}

func (f Fee) String() string {
	return strconv.FormatFloat(float64(float32(f.BasisPoints)/100), 'f', -1, 32) + "%"
}

func (f Fee) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteUint32(f.BasisPoints, binary.LittleEndian)
}

func (f *Fee) UnmarshalWithDecoder(dec *bin.Decoder) error {
	v, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return err
	}
	f.BasisPoints = v
	return nil
}
