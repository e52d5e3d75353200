package model

import (
	"encoding/binary"
	"sort"
)

// OperationTag is the canonical type tag of an operation payload.
type OperationTag uint64

const (
	TagTransaction OperationTag = iota
	TagRollBuy
	TagRollSell
	TagExecuteSC
	TagCallSC
)

// Operation is a signed user action included in blocks.
type Operation struct {
	Fee          Amount
	ExpirePeriod uint64
	Type         OperationType
}

// OperationType is one of Transaction, RollBuy, RollSell, ExecuteSC or CallSC.
type OperationType interface {
	// Tag returns the canonical type tag.
	Tag() OperationTag

	appendPayload(b []byte) []byte
}

// Transaction moves coins to a recipient.
type Transaction struct {
	Recipient Address
	Amount    Amount
}

// RollBuy buys rolls for the sender.
type RollBuy struct {
	Count uint64
}

// RollSell sells rolls of the sender.
type RollSell struct {
	Count uint64
}

// ExecuteSC runs bytecode with an initial datastore.
type ExecuteSC struct {
	Bytecode  []byte
	MaxGas    uint64
	MaxCoins  Amount
	Datastore map[string][]byte
}

// CallSC calls a function of a deployed smart contract.
type CallSC struct {
	Target    Address
	Function  string
	Parameter []byte
	MaxGas    uint64
	Coins     Amount
}

func (Transaction) Tag() OperationTag { return TagTransaction }
func (RollBuy) Tag() OperationTag     { return TagRollBuy }
func (RollSell) Tag() OperationTag    { return TagRollSell }
func (ExecuteSC) Tag() OperationTag   { return TagExecuteSC }
func (CallSC) Tag() OperationTag      { return TagCallSC }

func (t Transaction) appendPayload(b []byte) []byte {
	b = appendAddress(b, t.Recipient)
	return binary.AppendUvarint(b, t.Amount.Raw())
}

func (r RollBuy) appendPayload(b []byte) []byte {
	return binary.AppendUvarint(b, r.Count)
}

func (r RollSell) appendPayload(b []byte) []byte {
	return binary.AppendUvarint(b, r.Count)
}

func (e ExecuteSC) appendPayload(b []byte) []byte {
	b = binary.AppendUvarint(b, e.MaxGas)
	b = binary.AppendUvarint(b, e.MaxCoins.Raw())
	b = appendBytes(b, e.Bytecode)

	// Keys in ascending byte order so the encoding does not depend on map iteration.
	keys := make([]string, 0, len(e.Datastore))
	for k := range e.Datastore {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b = binary.AppendUvarint(b, uint64(len(keys)))
	for _, k := range keys {
		b = appendBytes(b, []byte(k))
		b = appendBytes(b, e.Datastore[k])
	}

	return b
}

func (c CallSC) appendPayload(b []byte) []byte {
	b = binary.AppendUvarint(b, c.MaxGas)
	b = binary.AppendUvarint(b, c.Coins.Raw())
	b = appendAddress(b, c.Target)
	b = appendBytes(b, []byte(c.Function))
	return appendBytes(b, c.Parameter)
}

// AppendCanonical appends fee, expiry period, type tag and payload.
func (op Operation) AppendCanonical(b []byte) []byte {
	b = binary.AppendUvarint(b, op.Fee.Raw())
	b = binary.AppendUvarint(b, op.ExpirePeriod)
	b = binary.AppendUvarint(b, uint64(op.Type.Tag()))
	return op.Type.appendPayload(b)
}

// appendBytes appends a varint length followed by data.
func appendBytes(b, data []byte) []byte {
	b = binary.AppendUvarint(b, uint64(len(data)))
	return append(b, data...)
}
