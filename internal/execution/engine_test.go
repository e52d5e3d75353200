package execution

import (
	"context"
	"crypto/ed25519"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"SlotReplay/internal/model"
	"SlotReplay/internal/snapshot"
	"SlotReplay/internal/storage"
)

const testChainID = 77658377

// newTestEngine creates an engine over a temporary database.
func newTestEngine(t *testing.T, opts Options) (*Engine, *storage.Storage) {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("create db: %v", err)
	}

	e, err := New(db, opts)
	if err != nil {
		db.Close()
		t.Fatalf("create engine: %v", err)
	}

	t.Cleanup(func() {
		e.Close()
		db.Close()
	})

	return e, db
}

// testKey derives a deterministic creator key.
func testKey(seed byte) (model.PublicKey, model.Address) {
	raw := make([]byte, ed25519.SeedSize)
	raw[0] = seed
	priv := ed25519.NewKeyFromSeed(raw)
	pk := model.PublicKeyFromEd25519(priv.Public().(ed25519.PublicKey))

	return pk, model.AddressFromPublicKey(pk)
}

// buildNotification creates a single-slot notification holding a block with ops.
func buildNotification(slot model.Slot, ops ...model.Operation) (Notification, *model.SecuredBlock) {
	pk, addr := testKey(1)

	secured := make([]*model.SecuredOperation, len(ops))
	ids := make([]model.OperationID, len(ops))
	for i, op := range ops {
		secured[i] = model.Secure[model.Operation, model.OperationID](op, model.Signature{}, pk, addr, testChainID)
		ids[i] = secured[i].ID
	}

	header := model.Secure[model.BlockHeader, model.BlockID](model.BlockHeader{Slot: slot}, model.Signature{}, pk, addr, testChainID)
	block := model.Secure[model.Block, model.BlockID](model.Block{Header: header, Operations: ids}, model.Signature{}, pk, addr, testChainID)

	store := model.NewStorage()
	store.AddBlock(block)
	store.AddOperations(secured)

	parent := addr

	return Notification{
		Finalized: map[model.Slot]model.BlockID{slot: block.ID},
		Metadata: map[model.BlockID]model.ExecutionBlockMetadata{
			block.ID: {SameThreadParentCreator: &parent, Storage: store},
		},
	}, block
}

func drain(t *testing.T, e *Engine) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return e.Drain(ctx)
}

func TestEngine_AppliesInOrder(t *testing.T) {
	e, db := newTestEngine(t, Options{})

	_, recipient := testKey(2)
	transfer := model.Operation{
		Fee:          model.AmountFromRaw(1500),
		ExpirePeriod: 20,
		Type:         model.Transaction{Recipient: recipient, Amount: model.AmountFromRaw(10)},
	}
	roll := model.Operation{Fee: model.AmountFromRaw(500), ExpirePeriod: 20, Type: model.RollBuy{Count: 1}}

	first := model.Slot{Period: 10, Thread: 0}
	second := model.Slot{Period: 10, Thread: 1}

	n1, b1 := buildNotification(first, transfer, roll)
	n2, _ := buildNotification(second)

	if err := e.NotifyFinalized(n1); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := e.NotifyFinalized(n2); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if err := drain(t, e); err != nil {
		t.Fatalf("drain: %v", err)
	}

	stats := e.Stats()
	if stats.Blocks != 2 || stats.Operations != 2 {
		t.Errorf("stats = %d blocks %d ops, want 2 and 2", stats.Blocks, stats.Operations)
	}
	if stats.Fees != model.AmountFromRaw(2000) {
		t.Errorf("fees = %s, want %s", stats.Fees, model.AmountFromRaw(2000))
	}

	last, err := snapshot.LastSlot(db)
	if err != nil {
		t.Fatalf("LastSlot: %v", err)
	}
	if last != second {
		t.Errorf("change id = %s, want %s", last, second)
	}

	rec, err := ReadRecord(db, first)
	if err != nil || rec == nil {
		t.Fatalf("ReadRecord = %v, %v", rec, err)
	}
	if rec.BlockID != b1.ID || len(rec.Operations) != 2 || rec.Fees != model.AmountFromRaw(2000) {
		t.Errorf("record = %+v, want block %s with 2 ops", rec, b1.ID)
	}
	if rec.ParentCreator == "" {
		t.Error("parent creator not journaled")
	}

	slot, ok, err := OperationSlot(db, rec.Operations[0])
	if err != nil || !ok || slot != first {
		t.Errorf("OperationSlot = %s, %v, %v, want %s", slot, ok, err, first)
	}

	var slots []model.Slot
	err = Records(db, func(r *Record) error {
		slots = append(slots, r.Slot)
		return nil
	})
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(slots) != 2 || slots[0] != first || slots[1] != second {
		t.Errorf("journal slots = %v, want [%s %s]", slots, first, second)
	}
}

func TestEngine_RejectsNonIncreasingSlot(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	n1, _ := buildNotification(model.Slot{Period: 5, Thread: 3})
	n2, _ := buildNotification(model.Slot{Period: 5, Thread: 2})

	if err := e.NotifyFinalized(n1); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := e.NotifyFinalized(n2); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if err := drain(t, e); !errors.Is(err, ErrNonIncreasingSlot) {
		t.Errorf("drain = %v, want ErrNonIncreasingSlot", err)
	}

	// The failure is sticky.
	n3, _ := buildNotification(model.Slot{Period: 9, Thread: 0})
	if err := e.NotifyFinalized(n3); !errors.Is(err, ErrNonIncreasingSlot) {
		t.Errorf("notify after failure = %v, want ErrNonIncreasingSlot", err)
	}
}

func TestEngine_ResumesFromChangeID(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	defer db.Close()

	if err := snapshot.SetLastSlot(db, model.Slot{Period: 7, Thread: 0}); err != nil {
		t.Fatalf("SetLastSlot: %v", err)
	}

	e, err := New(db, Options{})
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	defer e.Close()

	stale, _ := buildNotification(model.Slot{Period: 6, Thread: 31})
	if err := e.NotifyFinalized(stale); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if err := drain(t, e); !errors.Is(err, ErrNonIncreasingSlot) {
		t.Errorf("drain = %v, want ErrNonIncreasingSlot", err)
	}
}

func TestEngine_MissingContent(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	n, _ := buildNotification(model.Slot{Period: 1, Thread: 0})
	n.Metadata = nil

	if err := e.NotifyFinalized(n); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if err := drain(t, e); !errors.Is(err, ErrMissingContent) {
		t.Errorf("drain = %v, want ErrMissingContent", err)
	}
}

func TestEngine_StorageCostOverflow(t *testing.T) {
	costs := model.StorageCosts{
		CostPerByte:       model.AmountFromRaw(1 << 62),
		DatastoreBaseCost: model.AmountFromRaw(0),
	}
	e, _ := newTestEngine(t, Options{StorageCosts: costs})

	op := model.Operation{
		Fee: model.AmountFromRaw(1),
		Type: model.ExecuteSC{
			Bytecode:  []byte{0x00},
			Datastore: map[string][]byte{"key": []byte("value")},
		},
	}

	n, _ := buildNotification(model.Slot{Period: 1, Thread: 0}, op)
	if err := e.NotifyFinalized(n); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if err := drain(t, e); !errors.Is(err, model.ErrAmountOverflow) {
		t.Errorf("drain = %v, want ErrAmountOverflow", err)
	}
}

func TestEngine_RunningTotalOverflow(t *testing.T) {
	e, db := newTestEngine(t, Options{})

	big := model.Operation{Fee: model.AmountFromRaw(1 << 63), Type: model.RollBuy{Count: 1}}
	first := model.Slot{Period: 3, Thread: 0}
	second := model.Slot{Period: 3, Thread: 1}

	n1, _ := buildNotification(first, big)
	n2, _ := buildNotification(second, big)

	if err := e.NotifyFinalized(n1); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := e.NotifyFinalized(n2); err != nil {
		t.Fatalf("notify: %v", err)
	}

	err := drain(t, e)
	if !errors.Is(err, model.ErrAmountOverflow) {
		t.Fatalf("drain = %v, want ErrAmountOverflow", err)
	}

	var ae *ApplyError
	if !errors.As(err, &ae) || ae.Slot != second {
		t.Errorf("failure = %v, want ApplyError at %s", err, second)
	}

	stats := e.Stats()
	if stats.Blocks != 1 || stats.Fees != model.AmountFromRaw(1<<63) {
		t.Errorf("stats = %+v, want the first block only", stats)
	}

	last, err := snapshot.LastSlot(db)
	if err != nil || last != first {
		t.Errorf("change id = %s, %v, want %s", last, err, first)
	}
}

func TestEngine_DrainHonorsContext(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The barrier may still be queued; with a cancelled context Drain either
	// returns the cancellation or the (nil) barrier result.
	if err := e.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("drain = %v, want nil or context.Canceled", err)
	}
}

func TestEngine_NotifyAfterClose(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	n, _ := buildNotification(model.Slot{Period: 1, Thread: 0})
	if err := e.NotifyFinalized(n); !errors.Is(err, ErrClosed) {
		t.Errorf("notify after close = %v, want ErrClosed", err)
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	r := &Record{
		Slot:          model.Slot{Period: 3, Thread: 9},
		BlockID:       model.BlockID{1, 2, 3},
		Creator:       "AU1creator",
		ParentCreator: "",
		Operations:    []model.OperationID{{4}, {5}},
		Fees:          model.AmountFromRaw(42),
		StorageCost:   model.AmountFromRaw(7),
	}

	got, err := decodeRecord(encodeRecord(r))
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}

	if got.Slot != r.Slot || got.BlockID != r.BlockID || got.Creator != r.Creator {
		t.Errorf("header fields = %+v, want %+v", got, r)
	}
	if got.ParentCreator != "" {
		t.Errorf("parent creator = %q, want empty", got.ParentCreator)
	}
	if len(got.Operations) != 2 || got.Operations[1] != r.Operations[1] {
		t.Errorf("operations = %v, want %v", got.Operations, r.Operations)
	}
	if got.Fees != r.Fees || got.StorageCost != r.StorageCost {
		t.Errorf("amounts = %s/%s, want %s/%s", got.Fees, got.StorageCost, r.Fees, r.StorageCost)
	}
}
