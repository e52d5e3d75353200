// Package replay walks archived slots in canonical order and feeds each
// block to the execution engine.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"SlotReplay/internal/dump"
	"SlotReplay/internal/execution"
	"SlotReplay/internal/logger"
	"SlotReplay/internal/metrics"
	"SlotReplay/internal/model"
	"SlotReplay/internal/reconstruct"
	"SlotReplay/internal/wire"
)

// State is the sequencer lifecycle state.
type State int32

const (
	Idle State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StopReason tells why a run completed.
type StopReason int

const (
	NoReason StopReason = iota
	BoundReached
	ArchiveExhausted
	ArchiveGap
	EmptyArchive
)

func (r StopReason) String() string {
	switch r {
	case NoReason:
		return "none"
	case BoundReached:
		return "bound reached"
	case ArchiveExhausted:
		return "archive exhausted"
	case ArchiveGap:
		return "archive gap"
	case EmptyArchive:
		return "empty archive"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Engine consumes finalization notifications asynchronously.
type Engine interface {
	// NotifyFinalized hands a notification to the engine without waiting for it to be applied.
	NotifyFinalized(n execution.Notification) error

	// Drain blocks until every notification handed so far is applied.
	Drain(ctx context.Context) error
}

// Options configures a Sequencer.
type Options struct {
	ThreadCount  uint8
	Until        *model.Slot      // Until is an inclusive upper bound, nil for none
	DrainTimeout time.Duration    // DrainTimeout bounds the exit drain, zero for none
	Metrics      *metrics.Metrics // Metrics is optional
}

// Result summarizes a run.
type Result struct {
	State      State
	Reason     StopReason
	Start      model.Slot // Start is the resume slot
	First      model.Slot // First is the first replayed slot
	Last       model.Slot // Last is the last replayed slot
	Replayed   int
	Operations int
}

// Sequencer drives the slot cursor over a dump archive.
type Sequencer struct {
	backend dump.Backend
	rec     *reconstruct.Reconstructor
	engine  Engine
	opts    Options

	state atomic.Int32
}

// New creates an idle sequencer.
func New(backend dump.Backend, rec *reconstruct.Reconstructor, engine Engine, opts Options) *Sequencer {
	return &Sequencer{
		backend: backend,
		rec:     rec,
		engine:  engine,
		opts:    opts,
	}
}

// State returns the current lifecycle state.
func (s *Sequencer) State() State {
	return State(s.state.Load())
}

// Run replays every archived slot after start, the last slot recorded in the
// restored snapshot. The engine is drained before Run returns, whatever the
// outcome. A nil error means Completed.
func (s *Sequencer) Run(ctx context.Context, start model.Slot) (*Result, error) {
	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil, ErrNotIdle
	}

	res := &Result{State: Running, Start: start}

	runErr := s.run(ctx, start, res)
	drainErr := s.drain(ctx)

	if runErr == nil && drainErr != nil {
		runErr = fmt.Errorf("drain engine:\n%w", drainErr)
	} else if drainErr != nil {
		logger.Error("drain after abort", "error", drainErr)
	}

	if runErr != nil {
		res.State = Aborted
	} else {
		res.State = Completed
	}
	s.state.Store(int32(res.State))

	logger.Info("replay finished",
		"state", res.State,
		"reason", res.Reason,
		"replayed", res.Replayed,
		"operations", res.Operations,
		"last", res.Last,
	)

	return res, runErr
}

// run is the Running loop.
func (s *Sequencer) run(ctx context.Context, start model.Slot, res *Result) error {
	if err := start.Validate(s.opts.ThreadCount); err != nil {
		return fmt.Errorf("start slot:\n%w", err)
	}

	first, last, n, err := dump.Range(s.backend)
	if err != nil {
		return fmt.Errorf("enumerate archive:\n%w", err)
	}

	if n == 0 {
		logger.Warn("dump archive is empty")
		res.Reason = EmptyArchive
		return nil
	}

	logger.Info("replay starting",
		"start", start,
		"archiveFirst", first,
		"archiveLast", last,
		"entries", n,
	)

	cursor := start

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("replay interrupted after %s:\n%w", cursor, err)
		}

		next, err := cursor.Next(s.opts.ThreadCount)
		if err != nil {
			return &SlotError{Slot: cursor, Stage: StageRead, Err: err}
		}

		if s.opts.Until != nil && next.After(*s.opts.Until) {
			res.Reason = BoundReached
			return nil
		}

		if next.After(last) {
			res.Reason = ArchiveExhausted
			return nil
		}

		ops, found, err := s.step(next)
		if err != nil {
			return err
		}

		if !found {
			logger.Warn("no dump for slot, stopping", "slot", next)
			res.Reason = ArchiveGap
			return nil
		}

		if res.Replayed == 0 {
			res.First = next
		}
		res.Last = next
		res.Replayed++
		res.Operations += ops

		s.opts.Metrics.SlotReplayed(next.Period, ops)

		cursor = next
	}
}

// step replays one slot. found is false when the archive has no dump for it.
func (s *Sequencer) step(slot model.Slot) (ops int, found bool, err error) {
	data, err := s.backend.Read(slot)
	if err != nil {
		return 0, false, &SlotError{Slot: slot, Stage: StageRead, Err: err}
	}

	if data == nil {
		return 0, false, nil
	}

	fb, err := wire.DecodeFilledBlock(data)
	if err != nil {
		return 0, true, &SlotError{Slot: slot, Stage: StageDecode, Err: err}
	}

	block, operations, err := s.rec.Block(fb)
	if err != nil {
		return 0, true, &SlotError{Slot: slot, Stage: StageReconstruct, Err: err}
	}

	if got := block.Content.Header.Content.Slot; got != slot {
		return 0, true, &SlotError{
			Slot:  slot,
			Stage: StageReconstruct,
			Err:   fmt.Errorf("%w: block is for %s", ErrSlotMismatch, got),
		}
	}

	parentCreator, err := s.parentCreator(slot)
	if err != nil {
		return 0, true, err
	}

	store := model.NewStorage()
	store.AddBlock(block)
	store.AddOperations(operations)

	n := execution.Notification{
		Finalized: map[model.Slot]model.BlockID{slot: block.ID},
		Metadata: map[model.BlockID]model.ExecutionBlockMetadata{
			block.ID: {SameThreadParentCreator: parentCreator, Storage: store},
		},
	}

	if err := s.engine.NotifyFinalized(n); err != nil {
		return 0, true, notifyError(slot, err)
	}

	logger.Debug("slot replayed",
		"slot", slot,
		"block", block.ID,
		"operations", len(operations),
	)

	return len(operations), true, nil
}

// notifyError locates an engine failure. An earlier block that failed to
// apply is reported at its own slot rather than at the notified one.
func notifyError(slot model.Slot, err error) *SlotError {
	var ae *execution.ApplyError
	if errors.As(err, &ae) {
		return &SlotError{Slot: ae.Slot, Stage: StageApply, Err: ae.Err}
	}

	return &SlotError{Slot: slot, Stage: StageNotify, Err: err}
}

// parentCreator returns the creator of the same-thread parent block.
// Slots of period 0 have no parent, and parents in period 0 are never
// dumped: both yield nil.
func (s *Sequencer) parentCreator(slot model.Slot) (*model.Address, error) {
	parent, ok := slot.SameThreadParent()
	if !ok {
		return nil, nil
	}

	data, err := s.backend.Read(parent)
	if err != nil {
		return nil, &SlotError{Slot: slot, Stage: StageReadParent, Err: err}
	}

	if data == nil {
		if parent.Period == 0 {
			logger.Debug("genesis parent not dumped", "slot", slot, "parent", parent)
			return nil, nil
		}

		return nil, &SlotError{
			Slot:  slot,
			Stage: StageReadParent,
			Err:   fmt.Errorf("%w: %s", ErrMissingParentDump, parent),
		}
	}

	fb, err := wire.DecodeFilledBlock(data)
	if err != nil {
		return nil, &SlotError{Slot: slot, Stage: StageDecodeParent, Err: err}
	}

	if fb.Header == nil {
		return nil, &SlotError{
			Slot:  slot,
			Stage: StageReconstructParent,
			Err:   &reconstruct.Error{Kind: reconstruct.ErrMissingField, Field: "block.header"},
		}
	}

	header, err := s.rec.Header(fb.Header)
	if err != nil {
		return nil, &SlotError{Slot: slot, Stage: StageReconstructParent, Err: err}
	}

	addr := header.CreatorAddress

	return &addr, nil
}

// drain waits for the engine, bounded by DrainTimeout. It ignores the
// cancellation of ctx so an interrupted run still flushes applied work.
func (s *Sequencer) drain(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	if s.opts.DrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.DrainTimeout)
		defer cancel()
	}

	start := time.Now()

	if err := s.engine.Drain(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("engine did not drain within %s:\n%w", s.opts.DrainTimeout, err)
		}

		var ae *execution.ApplyError
		if errors.As(err, &ae) {
			return &SlotError{Slot: ae.Slot, Stage: StageApply, Err: ae.Err}
		}

		return err
	}

	logger.Debug("engine drained", "elapsed", time.Since(start))

	return nil
}
