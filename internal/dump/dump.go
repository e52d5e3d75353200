// Package dump reads archived block dumps keyed by slot.
//
// A dump entry is exactly one length-prefixed FilledBlock frame. Two layouts
// exist: a directory of per-slot files and a keyed store mapping the 9-byte
// slot key to the frame. Both are exposed through Backend.
package dump

import (
	"errors"
	"fmt"
	"slices"

	"SlotReplay/internal/model"
)

// Backend kinds.
const (
	KindFile  = "file"
	KindKeyed = "keyed"
)

// Keyed store engines.
const (
	EnginePebble  = "pebble"
	EngineLevelDB = "leveldb"
	EngineBadger  = "badger"
)

var (
	// ErrOpen is returned when the dump location cannot be opened.
	ErrOpen = errors.New("dump open failed")

	// ErrEnumeration is returned when an archive entry cannot be mapped to a slot.
	ErrEnumeration = errors.New("dump enumeration failed")

	// ErrUnknownKind is returned for an unsupported backend kind or engine.
	ErrUnknownKind = errors.New("unknown dump backend")
)

// Backend is a read-only view over an archive of block dumps.
type Backend interface {
	// Read returns the raw frame stored for slot, or nil when absent.
	Read(slot model.Slot) ([]byte, error)

	// ListSlots enumerates every archived slot, in no particular order.
	ListSlots() ([]model.Slot, error)

	// Close releases the underlying handles.
	Close() error
}

// Options selects the backend implementation.
type Options struct {
	Engine string // Engine is the keyed store engine, pebble when empty
}

// Open opens the dump archive at path with the given backend kind.
func Open(kind, path string, opts Options) (Backend, error) {
	switch kind {
	case KindFile, "":
		return OpenFileTree(path)
	case KindKeyed:
		return OpenKeyed(opts.Engine, path)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownKind, kind)
	}
}

// Sorted returns the archived slots in ascending order.
func Sorted(b Backend) ([]model.Slot, error) {
	slots, err := b.ListSlots()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(slots, model.Slot.Compare)

	return slots, nil
}

// Range returns the first and last archived slots and the entry count.
// An empty archive returns n == 0.
func Range(b Backend) (first, last model.Slot, n int, err error) {
	slots, err := Sorted(b)
	if err != nil {
		return model.Slot{}, model.Slot{}, 0, err
	}

	if len(slots) == 0 {
		return model.Slot{}, model.Slot{}, 0, nil
	}

	return slots[0], slots[len(slots)-1], len(slots), nil
}
