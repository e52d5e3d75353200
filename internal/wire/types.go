// Package wire decodes and encodes the protobuf messages found in block dumps.
//
// The schema is owned by the node's public API; only the subset needed to
// rebuild blocks is modelled here. Unknown fields are skipped.
package wire

// Signed carries the envelope fields shared by every signed message.
type Signed struct {
	Signature        string
	CreatorPublicKey string
	CreatorAddress   string
	SecureHash       string
	SerializedSize   uint64
}

// FilledBlock is a block header with its full operations.
type FilledBlock struct {
	Header     *SignedBlockHeader
	Operations []*FilledOperationEntry
}

// FilledOperationEntry pairs an operation id with the operation.
type FilledOperationEntry struct {
	OperationID string
	Operation   *SignedOperation
}

// SignedBlockHeader is a header with its signature envelope.
type SignedBlockHeader struct {
	Content *BlockHeader
	Signed
}

// BlockHeader is the wire form of a block header.
type BlockHeader struct {
	CurrentVersion   uint32
	AnnouncedVersion *uint32
	Slot             *Slot
	Parents          []string
	OperationsHash   string
	Endorsements     []*SignedEndorsement
	Denunciations    [][]byte // raw, kept only to detect their presence
}

// Slot is the wire form of a slot.
type Slot struct {
	Period uint64
	Thread uint32
}

// SignedEndorsement is an endorsement with its signature envelope.
type SignedEndorsement struct {
	Content *Endorsement
	Signed
}

// Endorsement is the wire form of an endorsement.
type Endorsement struct {
	Slot          *Slot
	Index         uint32
	EndorsedBlock string
}

// SignedOperation is an operation with its signature envelope.
type SignedOperation struct {
	Content *Operation
	Signed
}

// Operation is the wire form of an operation.
type Operation struct {
	Fee          *NativeAmount
	ExpirePeriod uint64
	Op           *OperationType
}

// OperationType holds exactly one populated variant in a valid message.
type OperationType struct {
	Transaction *Transaction
	RollBuy     *RollBuy
	RollSell    *RollSell
	ExecuteSC   *ExecuteSC
	CallSC      *CallSC
}

// NativeAmount is a mantissa and decimal scale.
type NativeAmount struct {
	Mantissa uint64
	Scale    uint32
}

// Transaction is the wire form of a coin transfer.
type Transaction struct {
	RecipientAddress string
	Amount           *NativeAmount
}

// RollBuy is the wire form of a roll purchase.
type RollBuy struct {
	RollCount uint64
}

// RollSell is the wire form of a roll sale.
type RollSell struct {
	RollCount uint64
}

// ExecuteSC is the wire form of a bytecode execution.
// MaxCoins is a raw amount, not a NativeAmount.
type ExecuteSC struct {
	Data      []byte
	MaxCoins  uint64
	MaxGas    uint64
	Datastore []*BytesMapFieldEntry
}

// CallSC is the wire form of a smart contract call.
type CallSC struct {
	TargetAddress  string
	TargetFunction string
	Parameter      []byte
	MaxGas         uint64
	Coins          *NativeAmount
}

// BytesMapFieldEntry is one datastore entry.
type BytesMapFieldEntry struct {
	Key   []byte
	Value []byte
}
