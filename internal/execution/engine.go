// Package execution applies finalized blocks to the working state database.
//
// The Engine consumes notifications on its own worker goroutine. For each
// finalized block it journals a FinalizedBlock record, indexes the executed
// operations and advances the database change id. Drain blocks until every
// notification queued before it has been applied.
package execution

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"SlotReplay/internal/logger"
	"SlotReplay/internal/metrics"
	"SlotReplay/internal/model"
	"SlotReplay/internal/snapshot"
	"SlotReplay/internal/storage"
)

const (
	// defaultBufferSize is the default notification queue capacity.
	defaultBufferSize = 64
)

var (
	// ErrClosed is returned when notifying a closed engine.
	ErrClosed = errors.New("execution engine closed")

	// ErrNonIncreasingSlot is returned when a finalized slot does not follow the last applied one.
	ErrNonIncreasingSlot = errors.New("finalized slot not after last applied slot")

	// ErrMissingContent is returned when a notification lacks the block or its operations.
	ErrMissingContent = errors.New("notification content missing")
)

// ApplyError is the failure to apply the block finalized at Slot.
// It stays the engine failure until the engine is closed.
type ApplyError struct {
	Slot model.Slot
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s:\n%v", e.Slot, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Notification tells the engine which blocks are now final.
type Notification struct {
	Finalized map[model.Slot]model.BlockID
	Pruned    map[model.BlockID]struct{} // nil in replay
	Metadata  map[model.BlockID]model.ExecutionBlockMetadata
}

// Options configures an Engine.
type Options struct {
	BufferSize   int                // BufferSize is the queue capacity, 64 when zero
	StorageCosts model.StorageCosts // StorageCosts prices ExecuteSC datastores
	Metrics      *metrics.Metrics   // Metrics is optional
}

// Stats summarizes applied work.
type Stats struct {
	Blocks      int
	Operations  int
	Fees        model.Amount
	StorageCost model.Amount
	LastSlot    model.Slot
}

// request is one queue item: a notification or a drain barrier.
type request struct {
	n       *Notification
	barrier chan error
}

// Engine applies finalized blocks asynchronously.
type Engine struct {
	db   *storage.Storage
	opts Options

	queue chan request
	stop  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	last    *model.Slot // last applied slot, nil on a fresh database
	stats   Stats
	failure error // first apply failure, sticky
	closed  bool
}

// New creates an engine over db and starts its worker.
// The last applied slot is read from the database change id when present.
func New(db *storage.Storage, opts Options) (*Engine, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}

	e := &Engine{
		db:    db,
		opts:  opts,
		queue: make(chan request, opts.BufferSize),
		stop:  make(chan struct{}),
	}

	last, err := snapshot.LastSlot(db)
	switch {
	case err == nil:
		e.last = &last
		e.stats.LastSlot = last
	case errors.Is(err, snapshot.ErrNoChangeID):
	default:
		return nil, fmt.Errorf("load last slot:\n%w", err)
	}

	e.wg.Add(1)
	go e.loop()

	return e, nil
}

// NotifyFinalized queues n for the worker. It only blocks while the queue is full.
// A previous apply failure is returned instead of queueing.
func (e *Engine) NotifyFinalized(n Notification) error {
	e.mu.Lock()
	closed, failure := e.closed, e.failure
	e.mu.Unlock()

	if closed {
		return ErrClosed
	}

	if failure != nil {
		return failure
	}

	select {
	case e.queue <- request{n: &n}:
		e.opts.Metrics.QueueLength(len(e.queue))
		return nil
	case <-e.stop:
		return ErrClosed
	}
}

// Drain waits until every notification queued before the call is applied.
// It returns the first apply failure, if any.
func (e *Engine) Drain(ctx context.Context) error {
	barrier := make(chan error, 1)

	select {
	case e.queue <- request{barrier: barrier}:
	case <-e.stop:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("drain:\n%w", ctx.Err())
	}

	select {
	case err := <-barrier:
		return err
	case <-ctx.Done():
		return fmt.Errorf("drain:\n%w", ctx.Err())
	}
}

// Stats returns a copy of the applied-work summary.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stats
}

// Close stops the worker. Queued notifications not yet applied are dropped;
// call Drain first to apply them.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	close(e.stop)
	e.wg.Wait()

	return e.db.Flush()
}

// loop is the worker goroutine.
func (e *Engine) loop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stop:
			return
		case req := <-e.queue:
			e.opts.Metrics.QueueLength(len(e.queue))

			if req.barrier != nil {
				req.barrier <- e.err()
				continue
			}

			if e.err() != nil {
				continue
			}

			if err := e.apply(req.n); err != nil {
				logger.Error("apply notification", "error", err)

				e.mu.Lock()
				e.failure = err
				e.mu.Unlock()
			}
		}
	}
}

func (e *Engine) err() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.failure
}

// apply journals every finalized block of n in slot order.
func (e *Engine) apply(n *Notification) error {
	slots := slices.SortedFunc(maps.Keys(n.Finalized), model.Slot.Compare)

	for _, slot := range slots {
		if err := e.applyBlock(slot, n.Finalized[slot], n.Metadata); err != nil {
			return &ApplyError{Slot: slot, Err: err}
		}
	}

	if len(n.Pruned) > 0 {
		logger.Debug("ignoring pruned blocks", "count", len(n.Pruned))
	}

	return nil
}

// applyBlock writes the journal entries of one block atomically.
func (e *Engine) applyBlock(slot model.Slot, id model.BlockID, metadata map[model.BlockID]model.ExecutionBlockMetadata) error {
	if e.last != nil && !slot.After(*e.last) {
		return fmt.Errorf("%w: %s after %s", ErrNonIncreasingSlot, slot, *e.last)
	}

	meta, ok := metadata[id]
	if !ok || meta.Storage == nil {
		return fmt.Errorf("%w: no metadata for block %s", ErrMissingContent, id)
	}

	block := meta.Storage.Block(id)
	if block == nil {
		return fmt.Errorf("%w: block %s", ErrMissingContent, id)
	}

	ops, err := meta.Storage.BlockOperations(id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMissingContent, err)
	}

	record := &Record{
		Slot:       slot,
		BlockID:    id,
		Creator:    block.CreatorAddress.String(),
		Operations: block.Content.Operations,
	}

	if meta.SameThreadParentCreator != nil {
		record.ParentCreator = meta.SameThreadParentCreator.String()
	}

	if record.Fees, record.StorageCost, err = e.costs(ops); err != nil {
		return err
	}

	e.mu.Lock()
	totalFees, feesErr := e.stats.Fees.CheckedAdd(record.Fees)
	totalStorage, storageErr := e.stats.StorageCost.CheckedAdd(record.StorageCost)
	e.mu.Unlock()

	if err := errors.Join(feesErr, storageErr); err != nil {
		return fmt.Errorf("running totals:\n%w", err)
	}

	slotKey := slot.Key()
	pairs := make([]storage.KeyValue, 0, len(ops)+2)
	pairs = append(pairs, storage.KeyValue{Key: finalizedKey(slot), Value: encodeRecord(record)})

	for _, op := range ops {
		pairs = append(pairs, storage.KeyValue{Key: operationKey(op.ID), Value: slotKey[:]})
	}

	pairs = append(pairs, storage.KeyValue{Key: snapshot.ChangeIDKey, Value: slotKey[:]})

	if err := e.db.SetBatch(pairs); err != nil {
		return fmt.Errorf("write journal:\n%w", err)
	}

	e.mu.Lock()
	e.last = &slot
	e.stats.Blocks++
	e.stats.Operations += len(ops)
	e.stats.LastSlot = slot
	e.stats.Fees = totalFees
	e.stats.StorageCost = totalStorage
	e.mu.Unlock()

	e.opts.Metrics.BlockApplied()

	logger.Debug("block applied",
		"slot", slot,
		"block", id,
		"operations", len(ops),
		"fees", record.Fees,
	)

	return nil
}

// costs sums operation fees and ExecuteSC datastore costs with checked arithmetic.
func (e *Engine) costs(ops []*model.SecuredOperation) (fees, storageCost model.Amount, err error) {
	for _, op := range ops {
		if fees, err = fees.CheckedAdd(op.Content.Fee); err != nil {
			return 0, 0, fmt.Errorf("fees of %s:\n%w", op.ID, err)
		}

		sc, ok := op.Content.Type.(model.ExecuteSC)
		if !ok {
			continue
		}

		cost, err := e.opts.StorageCosts.DatastoreCost(sc.Datastore)
		if err != nil {
			return 0, 0, fmt.Errorf("datastore cost of %s:\n%w", op.ID, err)
		}

		if storageCost, err = storageCost.CheckedAdd(cost); err != nil {
			return 0, 0, fmt.Errorf("storage cost of %s:\n%w", op.ID, err)
		}
	}

	return fees, storageCost, nil
}
