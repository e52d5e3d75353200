package model

import (
	"errors"
	"math"
	"testing"
)

func TestAmountFromMantissaScale(t *testing.T) {
	tests := []struct {
		mantissa uint64
		scale    uint32
		raw      uint64
		text     string
	}{
		{15, 1, 1_500_000_000, "1.5"},
		{1, 9, 1, "0.000000001"},
		{42, 0, 42_000_000_000, "42"},
		{0, 3, 0, "0"},
	}

	for _, tt := range tests {
		got, err := AmountFromMantissaScale(tt.mantissa, tt.scale)
		if err != nil {
			t.Fatalf("AmountFromMantissaScale(%d, %d) failed: %v", tt.mantissa, tt.scale, err)
		}

		if got.Raw() != tt.raw {
			t.Errorf("raw = %d, want %d", got.Raw(), tt.raw)
		}

		if got.String() != tt.text {
			t.Errorf("String = %q, want %q", got.String(), tt.text)
		}
	}
}

func TestAmountFromMantissaScale_Errors(t *testing.T) {
	if _, err := AmountFromMantissaScale(1, 10); !errors.Is(err, ErrAmountScale) {
		t.Errorf("scale 10 err = %v, want ErrAmountScale", err)
	}

	if _, err := AmountFromMantissaScale(math.MaxUint64, 0); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("overflow err = %v, want ErrAmountOverflow", err)
	}
}

func TestAmountCheckedArithmetic(t *testing.T) {
	max := AmountFromRaw(math.MaxUint64)

	if _, err := max.CheckedAdd(AmountFromRaw(1)); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("CheckedAdd err = %v, want ErrAmountOverflow", err)
	}

	if _, err := max.CheckedMulU64(2); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("CheckedMulU64 err = %v, want ErrAmountOverflow", err)
	}

	got, err := AmountFromRaw(3).CheckedMulU64(4)
	if err != nil || got.Raw() != 12 {
		t.Errorf("3 × 4 = %d, %v, want 12", got.Raw(), err)
	}
}

func TestNewStorageCosts(t *testing.T) {
	costs, err := NewStorageCosts(AmountFromRaw(100_000), 4)
	if err != nil {
		t.Fatalf("NewStorageCosts failed: %v", err)
	}

	if costs.DatastoreBaseCost.Raw() != 400_000 {
		t.Errorf("base cost = %d, want 400000", costs.DatastoreBaseCost.Raw())
	}

	if _, err := NewStorageCosts(AmountFromRaw(math.MaxUint64/2), 4); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("overflowing base size err = %v, want ErrAmountOverflow", err)
	}
}

func TestDatastoreCost(t *testing.T) {
	costs, err := NewStorageCosts(AmountFromRaw(10), 4)
	if err != nil {
		t.Fatalf("NewStorageCosts failed: %v", err)
	}

	// Two entries: (40 + 10×2) + (40 + 10×5).
	got, err := costs.DatastoreCost(map[string][]byte{"a": []byte("b"), "key": []byte("va")})
	if err != nil {
		t.Fatalf("DatastoreCost failed: %v", err)
	}

	if got.Raw() != 150 {
		t.Errorf("cost = %d, want 150", got.Raw())
	}

	huge := StorageCosts{CostPerByte: AmountFromRaw(math.MaxUint64 / 2)}
	if _, err := huge.DatastoreCost(map[string][]byte{"abc": nil}); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("overflow err = %v, want ErrAmountOverflow", err)
	}
}
