package execution

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"SlotReplay/internal/model"
	"SlotReplay/internal/storage"
	"SlotReplay/internal/types"
)

// Journal key prefixes in the state database.
var (
	prefixFinalized = []byte("f:") // f:<slotkey> -> FinalizedBlock
	prefixOperation = []byte("o:") // o:<opid>    -> slotkey
)

// Record is a decoded FinalizedBlock journal entry.
type Record struct {
	Slot          model.Slot
	BlockID       model.BlockID
	Creator       string
	ParentCreator string // empty when the parent was not dumped
	Operations    []model.OperationID
	Fees          model.Amount
	StorageCost   model.Amount
}

// finalizedKey builds the journal key of a slot.
func finalizedKey(slot model.Slot) []byte {
	key := slot.Key()
	return append(append([]byte{}, prefixFinalized...), key[:]...)
}

// operationKey builds the executed-operation index key.
func operationKey(id model.OperationID) []byte {
	return append(append([]byte{}, prefixOperation...), id[:]...)
}

// encodeRecord builds the FlatBuffers FinalizedBlock table.
func encodeRecord(r *Record) []byte {
	builder := flatbuffers.NewBuilder(256 + len(r.Operations)*model.HashSize)

	opIDs := make([]byte, 0, len(r.Operations)*model.HashSize)
	for _, id := range r.Operations {
		opIDs = append(opIDs, id[:]...)
	}

	blockIDOffset := builder.CreateByteVector(r.BlockID[:])
	creatorOffset := builder.CreateString(r.Creator)
	opsOffset := builder.CreateByteVector(opIDs)

	var parentOffset flatbuffers.UOffsetT
	if r.ParentCreator != "" {
		parentOffset = builder.CreateString(r.ParentCreator)
	}

	types.FinalizedBlockStart(builder)
	types.FinalizedBlockAddPeriod(builder, r.Slot.Period)
	types.FinalizedBlockAddThread(builder, r.Slot.Thread)
	types.FinalizedBlockAddBlockId(builder, blockIDOffset)
	types.FinalizedBlockAddCreator(builder, creatorOffset)
	if parentOffset != 0 {
		types.FinalizedBlockAddParentCreator(builder, parentOffset)
	}
	types.FinalizedBlockAddOperationIds(builder, opsOffset)
	types.FinalizedBlockAddFees(builder, r.Fees.Raw())
	types.FinalizedBlockAddStorageCost(builder, r.StorageCost.Raw())
	types.FinalizedBlockAddOperationCount(builder, uint32(len(r.Operations)))
	offset := types.FinalizedBlockEnd(builder)

	builder.Finish(offset)

	return builder.FinishedBytes()
}

// decodeRecord reads a FinalizedBlock table.
func decodeRecord(data []byte) (*Record, error) {
	fb := types.GetRootAsFinalizedBlock(data, 0)

	r := &Record{
		Slot:          model.Slot{Period: fb.Period(), Thread: fb.Thread()},
		Creator:       string(fb.Creator()),
		ParentCreator: string(fb.ParentCreator()),
		Fees:          model.AmountFromRaw(fb.Fees()),
		StorageCost:   model.AmountFromRaw(fb.StorageCost()),
	}

	id := fb.BlockIdBytes()
	if len(id) != model.HashSize {
		return nil, fmt.Errorf("block id: %d bytes", len(id))
	}
	copy(r.BlockID[:], id)

	opIDs := fb.OperationIdsBytes()
	if len(opIDs)%model.HashSize != 0 || len(opIDs)/model.HashSize != int(fb.OperationCount()) {
		return nil, fmt.Errorf("operation ids: %d bytes for %d operations", len(opIDs), fb.OperationCount())
	}

	r.Operations = make([]model.OperationID, fb.OperationCount())
	for i := range r.Operations {
		copy(r.Operations[i][:], opIDs[i*model.HashSize:])
	}

	return r, nil
}

// ReadRecord returns the journal entry of slot, or nil when none exists.
func ReadRecord(db *storage.Storage, slot model.Slot) (*Record, error) {
	data, err := db.Get(finalizedKey(slot))
	if err != nil {
		return nil, fmt.Errorf("read journal:\n%w", err)
	}

	if data == nil {
		return nil, nil
	}

	return decodeRecord(data)
}

// OperationSlot returns the slot whose block executed the operation.
func OperationSlot(db *storage.Storage, id model.OperationID) (model.Slot, bool, error) {
	data, err := db.Get(operationKey(id))
	if err != nil {
		return model.Slot{}, false, fmt.Errorf("read operation index:\n%w", err)
	}

	if data == nil {
		return model.Slot{}, false, nil
	}

	slot, err := model.SlotFromKey(data)
	if err != nil {
		return model.Slot{}, false, err
	}

	return slot, true, nil
}

// Records iterates the journal in slot order.
func Records(db *storage.Storage, fn func(*Record) error) error {
	return db.IteratePrefix(prefixFinalized, func(_, value []byte) error {
		// value is only valid during the callback
		r, err := decodeRecord(append([]byte{}, value...))
		if err != nil {
			return err
		}

		return fn(r)
	})
}
