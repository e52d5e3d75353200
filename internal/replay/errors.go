package replay

import (
	"errors"
	"fmt"

	"SlotReplay/internal/model"
)

var (
	// ErrMissingParentDump is returned when the same-thread parent of a slot
	// outside the genesis period has no dump.
	ErrMissingParentDump = errors.New("missing parent dump")

	// ErrSlotMismatch is returned when a dump holds a block of another slot.
	ErrSlotMismatch = errors.New("dump slot mismatch")

	// ErrNotIdle is returned when Run is called twice.
	ErrNotIdle = errors.New("sequencer already ran")
)

// Stage names the step of a slot that failed.
type Stage string

const (
	StageRead              Stage = "read"
	StageReadParent        Stage = "read-parent"
	StageDecode            Stage = "decode"
	StageDecodeParent      Stage = "decode-parent"
	StageReconstruct       Stage = "reconstruct"
	StageReconstructParent Stage = "reconstruct-parent"
	StageNotify            Stage = "notify"
	StageApply             Stage = "apply"
)

// SlotError is a per-slot failure that aborted the run.
type SlotError struct {
	Slot  model.Slot
	Stage Stage
	Err   error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("slot %s: %s:\n%v", e.Slot, e.Stage, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}
