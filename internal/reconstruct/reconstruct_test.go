package reconstruct_test

import (
	"errors"
	"math"
	"testing"

	"SlotReplay/internal/fixture"
	"SlotReplay/internal/model"
	"SlotReplay/internal/reconstruct"
	"SlotReplay/internal/wire"
)

const (
	testChainID     = 77658377
	testThreadCount = 32
)

func newReconstructor(t *testing.T, verify bool) *reconstruct.Reconstructor {
	t.Helper()

	costs, err := model.NewStorageCosts(model.AmountFromRaw(100_000), 4)
	if err != nil {
		t.Fatalf("NewStorageCosts: %v", err)
	}

	return reconstruct.New(reconstruct.Options{
		ChainID:          testChainID,
		ThreadCount:      testThreadCount,
		StorageCosts:     costs,
		VerifySignatures: verify,
	})
}

func TestBlock_RoundTripThroughWire(t *testing.T) {
	b := fixture.NewBuilder(testChainID, testThreadCount)
	s := fixture.NewSigner(1)
	recipient := fixture.NewSigner(2).Address

	slot := model.Slot{Period: 12, Thread: 7}
	fb := b.Block(s, slot, b.Transaction(s, 1000, recipient, 5), b.RollBuy(s, 10, 2))

	decoded, err := wire.DecodeFilledBlock(fixture.Frame(fb))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	block, ops, err := newReconstructor(t, true).Block(decoded)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}

	if block.Content.Header.Content.Slot != slot {
		t.Errorf("slot = %s, want %s", block.Content.Header.Content.Slot, slot)
	}

	if len(ops) != 2 || len(block.Content.Operations) != 2 {
		t.Fatalf("ops = %d, ids = %d, want 2", len(ops), len(block.Content.Operations))
	}

	for i, op := range ops {
		if block.Content.Operations[i] != op.ID {
			t.Errorf("operation id %d = %s, want %s", i, block.Content.Operations[i], op.ID)
		}

		if op.ID.String() != fb.Operations[i].OperationID {
			t.Errorf("operation %d id = %s, wire says %s", i, op.ID, fb.Operations[i].OperationID)
		}
	}

	tx, ok := ops[0].Content.Type.(model.Transaction)
	if !ok || tx.Recipient != recipient || tx.Amount != model.AmountFromRaw(5) {
		t.Errorf("transaction = %+v", ops[0].Content.Type)
	}

	if block.CreatorAddress != s.Address || block.Content.Header.CreatorPublicKey != s.PublicKey {
		t.Error("creator envelope not carried")
	}

	if len(block.Content.Header.Content.Parents) != testThreadCount {
		t.Errorf("parents = %d, want %d", len(block.Content.Header.Content.Parents), testThreadCount)
	}
}

func TestBlock_Deterministic(t *testing.T) {
	b := fixture.NewBuilder(testChainID, testThreadCount)
	s := fixture.NewSigner(1)
	endorsement := b.Endorsement(s, model.Slot{Period: 3, Thread: 1}, 0, model.BlockID{7})
	fb := &wire.FilledBlock{Header: b.Header(s, model.Slot{Period: 3, Thread: 2}, endorsement)}

	frame := fixture.Frame(fb)
	r := newReconstructor(t, true)

	var ids []model.BlockID
	for i := 0; i < 2; i++ {
		decoded, err := wire.DecodeFilledBlock(frame)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}

		block, _, err := r.Block(decoded)
		if err != nil {
			t.Fatalf("Block: %v", err)
		}

		ids = append(ids, block.ID)
	}

	if ids[0] != ids[1] {
		t.Errorf("identities differ: %s vs %s", ids[0], ids[1])
	}

	other := reconstruct.New(reconstruct.Options{ChainID: testChainID + 1, ThreadCount: testThreadCount})
	decoded, _ := wire.DecodeFilledBlock(frame)

	block, _, err := other.Block(decoded)
	if err != nil {
		t.Fatalf("Block on other chain: %v", err)
	}

	if block.ID == ids[0] {
		t.Error("chain id does not affect identity")
	}
}

func TestOperation_NoVariant(t *testing.T) {
	s := fixture.NewSigner(1)
	so := &wire.SignedOperation{
		Content: &wire.Operation{Fee: fixture.Amount(1), Op: &wire.OperationType{}},
		Signed: wire.Signed{
			Signature:        model.Signature{}.String(),
			CreatorPublicKey: s.PublicKey.String(),
			CreatorAddress:   s.Address.String(),
		},
	}

	for _, op := range []*wire.OperationType{{}, nil} {
		so.Content.Op = op

		_, err := newReconstructor(t, false).Operation(so)
		if !errors.Is(err, reconstruct.ErrUnknownOperationVariant) {
			t.Errorf("op %v: err = %v, want ErrUnknownOperationVariant", op, err)
		}
	}
}

func TestOperation_MissingFields(t *testing.T) {
	b := fixture.NewBuilder(testChainID, testThreadCount)
	s := fixture.NewSigner(1)
	recipient := fixture.NewSigner(2).Address

	cases := map[string]func(so *wire.SignedOperation){
		"content":            func(so *wire.SignedOperation) { so.Content = nil },
		"fee":                func(so *wire.SignedOperation) { so.Content.Fee = nil },
		"transaction amount": func(so *wire.SignedOperation) { so.Content.Op.Transaction.Amount = nil },
	}

	for name, mutate := range cases {
		so := b.Transaction(s, 1, recipient, 1)
		mutate(so)

		_, err := newReconstructor(t, false).Operation(so)
		if !errors.Is(err, reconstruct.ErrMissingField) {
			t.Errorf("%s: err = %v, want ErrMissingField", name, err)
		}
	}

	call := &wire.OperationType{CallSC: &wire.CallSC{TargetAddress: recipient.String()}}
	so := &wire.SignedOperation{
		Content: &wire.Operation{Fee: fixture.Amount(1), Op: call},
		Signed: wire.Signed{
			Signature:        model.Signature{}.String(),
			CreatorPublicKey: s.PublicKey.String(),
			CreatorAddress:   s.Address.String(),
		},
	}

	if _, err := newReconstructor(t, false).Operation(so); !errors.Is(err, reconstruct.ErrMissingField) {
		t.Errorf("call_sc coins: err = %v, want ErrMissingField", err)
	}
}

func TestOperation_FieldPath(t *testing.T) {
	b := fixture.NewBuilder(testChainID, testThreadCount)
	s := fixture.NewSigner(1)

	fb := b.Block(s, model.Slot{Period: 1}, b.RollBuy(s, 1, 1), b.RollBuy(s, 2, 1))
	fb.Operations[1].Operation.Content.Fee.Scale = 10

	_, _, err := newReconstructor(t, false).Block(fb)

	var re *reconstruct.Error
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *reconstruct.Error", err)
	}

	if re.Field != "block.operations[1].content.fee" {
		t.Errorf("field = %q, want block.operations[1].content.fee", re.Field)
	}

	if !errors.Is(err, reconstruct.ErrInvalidEncoding) || !errors.Is(err, model.ErrAmountScale) {
		t.Errorf("err = %v, want InvalidEncoding caused by ErrAmountScale", err)
	}
}

func TestOperation_AmountOverflow(t *testing.T) {
	b := fixture.NewBuilder(testChainID, testThreadCount)
	s := fixture.NewSigner(1)
	recipient := fixture.NewSigner(2).Address

	so := b.Transaction(s, 1, recipient, 1)
	so.Content.Op.Transaction.Amount = &wire.NativeAmount{Mantissa: math.MaxUint64, Scale: 0}

	if _, err := newReconstructor(t, false).Operation(so); !errors.Is(err, reconstruct.ErrAmountOverflow) {
		t.Errorf("err = %v, want ErrAmountOverflow", err)
	}
}

func TestOperation_ExecuteSCDatastoreOverflow(t *testing.T) {
	s := fixture.NewSigner(1)

	costs := model.StorageCosts{CostPerByte: model.AmountFromRaw(math.MaxUint64 / 2)}
	r := reconstruct.New(reconstruct.Options{ChainID: testChainID, ThreadCount: testThreadCount, StorageCosts: costs})

	so := &wire.SignedOperation{
		Content: &wire.Operation{
			Fee: fixture.Amount(1),
			Op: &wire.OperationType{ExecuteSC: &wire.ExecuteSC{
				Data:      []byte{0x00},
				Datastore: []*wire.BytesMapFieldEntry{{Key: []byte("key"), Value: []byte("value")}},
			}},
		},
		Signed: wire.Signed{
			Signature:        model.Signature{}.String(),
			CreatorPublicKey: s.PublicKey.String(),
			CreatorAddress:   s.Address.String(),
		},
	}

	if _, err := r.Operation(so); !errors.Is(err, reconstruct.ErrAmountOverflow) {
		t.Errorf("err = %v, want ErrAmountOverflow", err)
	}

	// Same operation within budget.
	if _, err := newReconstructor(t, false).Operation(so); err != nil {
		t.Errorf("in-budget execute_sc rejected: %v", err)
	}
}

func TestOperation_ExecuteSCDatastoreOrderIndependent(t *testing.T) {
	b := fixture.NewBuilder(testChainID, testThreadCount)
	s := fixture.NewSigner(1)

	entries := []*wire.BytesMapFieldEntry{
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("a"), Value: []byte("1")},
	}

	first := b.Operation(s, 1, 1, &wire.OperationType{ExecuteSC: &wire.ExecuteSC{Datastore: entries}})
	second := b.Operation(s, 1, 1, &wire.OperationType{ExecuteSC: &wire.ExecuteSC{
		Datastore: []*wire.BytesMapFieldEntry{entries[1], entries[0]},
	}})

	if first.SecureHash != second.SecureHash {
		t.Errorf("datastore order changed identity: %s vs %s", first.SecureHash, second.SecureHash)
	}
}

func TestHeader_InvalidEncoding(t *testing.T) {
	b := fixture.NewBuilder(testChainID, testThreadCount)
	s := fixture.NewSigner(1)

	cases := map[string]func(sh *wire.SignedBlockHeader){
		"parent":     func(sh *wire.SignedBlockHeader) { sh.Content.Parents[0] = "Bnotbase58!" },
		"creator":    func(sh *wire.SignedBlockHeader) { sh.CreatorAddress = "AU" },
		"public key": func(sh *wire.SignedBlockHeader) { sh.CreatorPublicKey = s.Address.String() },
		"thread":     func(sh *wire.SignedBlockHeader) { sh.Content.Slot.Thread = testThreadCount },
		"root":       func(sh *wire.SignedBlockHeader) { sh.Content.OperationsHash = "" },
	}

	for name, mutate := range cases {
		sh := b.Header(s, model.Slot{Period: 2, Thread: 1})
		mutate(sh)

		if _, err := newReconstructor(t, false).Header(sh); !errors.Is(err, reconstruct.ErrInvalidEncoding) {
			t.Errorf("%s: err = %v, want ErrInvalidEncoding", name, err)
		}
	}

	sh := b.Header(s, model.Slot{Period: 2, Thread: 1})
	sh.Content.Slot = nil
	if _, err := newReconstructor(t, false).Header(sh); !errors.Is(err, reconstruct.ErrMissingField) {
		t.Errorf("missing slot: err = %v, want ErrMissingField", err)
	}
}

func TestHeader_SignatureToggle(t *testing.T) {
	b := fixture.NewBuilder(testChainID, testThreadCount)
	s := fixture.NewSigner(1)

	sh := b.Header(s, model.Slot{Period: 4, Thread: 0})
	if _, err := newReconstructor(t, true).Header(sh); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	sh.Signature = fixture.NewSigner(9).Sign([32]byte{}).String()

	if _, err := newReconstructor(t, false).Header(sh); err != nil {
		t.Errorf("verification off: %v", err)
	}

	if _, err := newReconstructor(t, true).Header(sh); !errors.Is(err, reconstruct.ErrInvalidSignature) {
		t.Errorf("verification on: err = %v, want ErrInvalidSignature", err)
	}
}

func TestHeader_Denunciations(t *testing.T) {
	b := fixture.NewBuilder(testChainID, testThreadCount)
	s := fixture.NewSigner(1)

	sh := b.Header(s, model.Slot{Period: 4, Thread: 0})
	sh.Content.Denunciations = [][]byte{{1, 2, 3}}

	h, err := newReconstructor(t, false).Header(sh)
	if err != nil {
		t.Fatalf("lenient: %v", err)
	}

	if len(h.Content.Denunciations) != 0 {
		t.Errorf("denunciations = %d, want 0", len(h.Content.Denunciations))
	}

	strict := reconstruct.New(reconstruct.Options{
		ChainID:             testChainID,
		ThreadCount:         testThreadCount,
		StrictDenunciations: true,
	})

	if _, err := strict.Header(sh); !errors.Is(err, reconstruct.ErrUnsupportedDenunciation) {
		t.Errorf("strict: err = %v, want ErrUnsupportedDenunciation", err)
	}
}

func TestBlock_MissingHeaderAndEntries(t *testing.T) {
	r := newReconstructor(t, false)

	if _, _, err := r.Block(&wire.FilledBlock{}); !errors.Is(err, reconstruct.ErrMissingField) {
		t.Errorf("no header: err = %v, want ErrMissingField", err)
	}

	b := fixture.NewBuilder(testChainID, testThreadCount)
	fb := b.Block(fixture.NewSigner(1), model.Slot{Period: 1})
	fb.Operations = []*wire.FilledOperationEntry{{OperationID: "O1"}}

	if _, _, err := r.Block(fb); !errors.Is(err, reconstruct.ErrMissingField) {
		t.Errorf("empty entry: err = %v, want ErrMissingField", err)
	}
}

func TestReconstructor_NilMessages(t *testing.T) {
	r := newReconstructor(t, true)

	if _, err := r.Header(nil); !errors.Is(err, reconstruct.ErrMissingField) {
		t.Errorf("Header(nil): err = %v, want ErrMissingField", err)
	}

	if _, err := r.Operation(nil); !errors.Is(err, reconstruct.ErrMissingField) {
		t.Errorf("Operation(nil): err = %v, want ErrMissingField", err)
	}

	if _, err := r.Endorsement(nil); !errors.Is(err, reconstruct.ErrMissingField) {
		t.Errorf("Endorsement(nil): err = %v, want ErrMissingField", err)
	}
}
