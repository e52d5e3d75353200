package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SlotKeySize is the size of the fixed-width binary slot key.
const SlotKeySize = 9

var (
	// ErrSlotOverflow is returned when advancing past the last representable period.
	ErrSlotOverflow = errors.New("slot period overflow")

	// ErrInvalidThread is returned when a slot thread is not below the thread count.
	ErrInvalidThread = errors.New("slot thread out of range")
)

// Slot identifies one block production opportunity.
// Slots are ordered by period first, then by thread.
type Slot struct {
	Period uint64
	Thread uint8
}

// Compare returns -1, 0 or +1 depending on whether s is before, equal to or after o.
func (s Slot) Compare(o Slot) int {
	switch {
	case s.Period < o.Period:
		return -1
	case s.Period > o.Period:
		return 1
	case s.Thread < o.Thread:
		return -1
	case s.Thread > o.Thread:
		return 1
	default:
		return 0
	}
}

// Less reports whether s comes strictly before o.
func (s Slot) Less(o Slot) bool {
	return s.Compare(o) < 0
}

// After reports whether s comes strictly after o.
func (s Slot) After(o Slot) bool {
	return s.Compare(o) > 0
}

// Next returns the slot following s: the next thread of the same period,
// or thread 0 of the next period when s is on the last thread.
func (s Slot) Next(threadCount uint8) (Slot, error) {
	if s.Thread+1 < threadCount {
		return Slot{Period: s.Period, Thread: s.Thread + 1}, nil
	}

	if s.Period == math.MaxUint64 {
		return Slot{}, ErrSlotOverflow
	}

	return Slot{Period: s.Period + 1, Thread: 0}, nil
}

// SameThreadParent returns the slot one period earlier on the same thread.
// The second result is false for period 0, which has no parent.
func (s Slot) SameThreadParent() (Slot, bool) {
	if s.Period == 0 {
		return Slot{}, false
	}

	return Slot{Period: s.Period - 1, Thread: s.Thread}, true
}

// Validate checks the thread against the configured thread count.
func (s Slot) Validate(threadCount uint8) error {
	if s.Thread >= threadCount {
		return fmt.Errorf("%w: thread %d, thread count %d", ErrInvalidThread, s.Thread, threadCount)
	}

	return nil
}

// Key returns the fixed-width key: big-endian period followed by the thread.
// Byte order of keys matches slot order.
func (s Slot) Key() [SlotKeySize]byte {
	var k [SlotKeySize]byte
	binary.BigEndian.PutUint64(k[:8], s.Period)
	k[8] = s.Thread

	return k
}

// SlotFromKey decodes a key produced by Slot.Key.
func SlotFromKey(key []byte) (Slot, error) {
	if len(key) != SlotKeySize {
		return Slot{}, fmt.Errorf("%w: slot key of %d bytes", ErrInvalidEncoding, len(key))
	}

	return Slot{
		Period: binary.BigEndian.Uint64(key[:8]),
		Thread: key[8],
	}, nil
}

// ParseSlot parses "PERIOD,THREAD".
func ParseSlot(text string) (Slot, error) {
	periodText, threadText, ok := strings.Cut(text, ",")
	if !ok {
		return Slot{}, fmt.Errorf("slot must be PERIOD,THREAD, got %q", text)
	}

	period, err := strconv.ParseUint(strings.TrimSpace(periodText), 10, 64)
	if err != nil {
		return Slot{}, fmt.Errorf("slot period:\n%w", err)
	}

	thread, err := strconv.ParseUint(strings.TrimSpace(threadText), 10, 8)
	if err != nil {
		return Slot{}, fmt.Errorf("slot thread:\n%w", err)
	}

	return Slot{Period: period, Thread: uint8(thread)}, nil
}

// String formats the slot as "(period, thread)".
func (s Slot) String() string {
	return fmt.Sprintf("(%d, %d)", s.Period, s.Thread)
}

// appendSlot appends the canonical encoding: varint period, one thread byte.
func appendSlot(b []byte, s Slot) []byte {
	b = binary.AppendUvarint(b, s.Period)
	return append(b, s.Thread)
}
