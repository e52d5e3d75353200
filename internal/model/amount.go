package model

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// AmountDecimals is the number of decimal places of the raw amount unit.
const AmountDecimals = 9

var (
	// ErrAmountOverflow is returned when amount arithmetic would exceed uint64.
	ErrAmountOverflow = errors.New("amount overflow")

	// ErrAmountScale is returned for a scale above AmountDecimals.
	ErrAmountScale = errors.New("amount scale too large")
)

// pow10 holds 10^i for i in [0, AmountDecimals].
var pow10 = [AmountDecimals + 1]uint64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000, 1_000_000_000,
}

// Amount is a fixed-point coin amount stored as raw units of 10^-9.
type Amount uint64

// AmountFromMantissaScale builds mantissa × 10^-scale.
// Scales above AmountDecimals and values not representable in raw units fail.
func AmountFromMantissaScale(mantissa uint64, scale uint32) (Amount, error) {
	if scale > AmountDecimals {
		return 0, fmt.Errorf("%w: %d", ErrAmountScale, scale)
	}

	hi, lo := bits.Mul64(mantissa, pow10[AmountDecimals-scale])
	if hi != 0 {
		return 0, fmt.Errorf("%w: mantissa %d scale %d", ErrAmountOverflow, mantissa, scale)
	}

	return Amount(lo), nil
}

// AmountFromRaw wraps a raw unit count.
func AmountFromRaw(raw uint64) Amount {
	return Amount(raw)
}

// Raw returns the raw unit count.
func (a Amount) Raw() uint64 {
	return uint64(a)
}

// CheckedAdd returns a + o or ErrAmountOverflow.
func (a Amount) CheckedAdd(o Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(o), 0)
	if carry != 0 {
		return 0, ErrAmountOverflow
	}

	return Amount(sum), nil
}

// CheckedMulU64 returns a × n or ErrAmountOverflow.
func (a Amount) CheckedMulU64(n uint64) (Amount, error) {
	hi, lo := bits.Mul64(uint64(a), n)
	if hi != 0 {
		return 0, ErrAmountOverflow
	}

	return Amount(lo), nil
}

// String formats the amount as a decimal without trailing zeros.
func (a Amount) String() string {
	whole := uint64(a) / pow10[AmountDecimals]
	frac := uint64(a) % pow10[AmountDecimals]

	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}

	fracText := fmt.Sprintf("%0*d", AmountDecimals, frac)

	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(fracText, "0")
}

// StorageCosts holds the ledger storage cost constants used to price datastores.
type StorageCosts struct {
	CostPerByte       Amount
	DatastoreBaseCost Amount
}

// NewStorageCosts derives the datastore entry base cost from the per-byte cost.
func NewStorageCosts(costPerByte Amount, datastoreBaseSize uint64) (StorageCosts, error) {
	base, err := costPerByte.CheckedMulU64(datastoreBaseSize)
	if err != nil {
		return StorageCosts{}, fmt.Errorf("datastore base cost:\n%w", err)
	}

	return StorageCosts{CostPerByte: costPerByte, DatastoreBaseCost: base}, nil
}

// DatastoreCost prices a datastore: for each entry the base cost plus the
// per-byte cost of key and value. Any overflow fails.
func (c StorageCosts) DatastoreCost(datastore map[string][]byte) (Amount, error) {
	var total Amount

	for key, value := range datastore {
		size := uint64(len(key)) + uint64(len(value))

		bytesCost, err := c.CostPerByte.CheckedMulU64(size)
		if err != nil {
			return 0, err
		}

		entry, err := c.DatastoreBaseCost.CheckedAdd(bytesCost)
		if err != nil {
			return 0, err
		}

		if total, err = total.CheckedAdd(entry); err != nil {
			return 0, err
		}
	}

	return total, nil
}
