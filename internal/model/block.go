package model

import (
	"encoding/binary"
	"fmt"
)

// Content is a domain value with a canonical binary encoding.
type Content interface {
	AppendCanonical(b []byte) []byte
}

// SecuredObject wraps content with its canonical bytes, creator and identity.
// ID is always derived from SerializedData, CreatorPublicKey and the chain id;
// SerializedData is produced by the content encoder, never copied from the wire.
type SecuredObject[C Content, ID ~[HashSize]byte] struct {
	Content          C
	SerializedData   []byte
	Signature        Signature
	CreatorPublicKey PublicKey
	CreatorAddress   Address
	ID               ID
}

// Secure encodes content and derives its identity.
func Secure[C Content, ID ~[HashSize]byte](content C, sig Signature, creator PublicKey, addr Address, chainID uint64) *SecuredObject[C, ID] {
	serialized := content.AppendCanonical(nil)

	return &SecuredObject[C, ID]{
		Content:          content,
		SerializedData:   serialized,
		Signature:        sig,
		CreatorPublicKey: creator,
		CreatorAddress:   addr,
		ID:               ID(ComputeHash(serialized, creator, chainID)),
	}
}

// VerifySignature checks the signature over the identity hash.
func (s *SecuredObject[C, ID]) VerifySignature() error {
	id := [HashSize]byte(s.ID)
	if !s.CreatorPublicKey.Verify(id[:], s.Signature) {
		return ErrInvalidSignature
	}

	return nil
}

// AppendCanonical appends the embedded form: signature, public key, content bytes.
func (s *SecuredObject[C, ID]) AppendCanonical(b []byte) []byte {
	b = append(b, s.Signature.Bytes()...)
	b = append(b, s.CreatorPublicKey.Bytes()...)
	return append(b, s.SerializedData...)
}

// Secured aliases for the four content types.
type (
	SecuredHeader      = SecuredObject[BlockHeader, BlockID]
	SecuredBlock       = SecuredObject[Block, BlockID]
	SecuredOperation   = SecuredObject[Operation, OperationID]
	SecuredEndorsement = SecuredObject[Endorsement, EndorsementID]
)

// Endorsement is a vote for the block of the previous slot in the same thread.
type Endorsement struct {
	Slot          Slot
	Index         uint32
	EndorsedBlock BlockID
}

// AppendCanonical appends slot, index and endorsed block id.
func (e Endorsement) AppendCanonical(b []byte) []byte {
	b = appendSlot(b, e.Slot)
	b = binary.AppendUvarint(b, uint64(e.Index))
	return appendID(b, e.EndorsedBlock)
}

// Denunciation is evidence of double production by a staker.
// The dumped wire format carries none in a reconstructible form.
type Denunciation struct{}

// BlockHeader is the signed part of a block.
type BlockHeader struct {
	CurrentVersion      uint32
	AnnouncedVersion    *uint32
	Slot                Slot
	Parents             []BlockID
	OperationMerkleRoot Hash
	Endorsements        []*SecuredEndorsement
	Denunciations       []Denunciation
}

// AppendCanonical appends the header fields in canonical order.
func (h BlockHeader) AppendCanonical(b []byte) []byte {
	b = binary.AppendUvarint(b, uint64(h.CurrentVersion))

	if h.AnnouncedVersion == nil {
		b = append(b, 0)
	} else {
		b = append(b, 1)
		b = binary.AppendUvarint(b, uint64(*h.AnnouncedVersion))
	}

	b = appendSlot(b, h.Slot)

	b = binary.AppendUvarint(b, uint64(len(h.Parents)))
	for _, p := range h.Parents {
		b = appendID(b, p)
	}

	b = append(b, h.OperationMerkleRoot[:]...)

	b = binary.AppendUvarint(b, uint64(len(h.Endorsements)))
	for _, e := range h.Endorsements {
		b = e.AppendCanonical(b)
	}

	return binary.AppendUvarint(b, uint64(len(h.Denunciations)))
}

// Block is a header plus the ordered ids of its operations.
type Block struct {
	Header     *SecuredHeader
	Operations []OperationID
}

// AppendCanonical appends the embedded header and the operation ids.
func (blk Block) AppendCanonical(b []byte) []byte {
	b = blk.Header.AppendCanonical(b)

	b = binary.AppendUvarint(b, uint64(len(blk.Operations)))
	for _, id := range blk.Operations {
		b = appendID(b, id)
	}

	return b
}

// Storage is the content bag handed to the execution engine with one notification.
type Storage struct {
	blocks     map[BlockID]*SecuredBlock
	operations map[OperationID]*SecuredOperation
}

// NewStorage creates an empty storage batch.
func NewStorage() *Storage {
	return &Storage{
		blocks:     make(map[BlockID]*SecuredBlock),
		operations: make(map[OperationID]*SecuredOperation),
	}
}

// AddBlock stores a block by id.
func (s *Storage) AddBlock(b *SecuredBlock) {
	s.blocks[b.ID] = b
}

// AddOperations stores operations by id.
func (s *Storage) AddOperations(ops []*SecuredOperation) {
	for _, op := range ops {
		s.operations[op.ID] = op
	}
}

// Block returns a stored block, or nil.
func (s *Storage) Block(id BlockID) *SecuredBlock {
	return s.blocks[id]
}

// Operation returns a stored operation, or nil.
func (s *Storage) Operation(id OperationID) *SecuredOperation {
	return s.operations[id]
}

// Len returns the number of blocks and operations held.
func (s *Storage) Len() (blocks, operations int) {
	return len(s.blocks), len(s.operations)
}

// BlockOperations resolves the operations of a stored block in block order.
func (s *Storage) BlockOperations(id BlockID) ([]*SecuredOperation, error) {
	blk := s.blocks[id]
	if blk == nil {
		return nil, fmt.Errorf("block %s not in storage", id)
	}

	ops := make([]*SecuredOperation, len(blk.Content.Operations))
	for i, opID := range blk.Content.Operations {
		op := s.operations[opID]
		if op == nil {
			return nil, fmt.Errorf("operation %s of block %s not in storage", opID, id)
		}
		ops[i] = op
	}

	return ops, nil
}

// ExecutionBlockMetadata is the context handed to the execution engine per block.
type ExecutionBlockMetadata struct {
	// SameThreadParentCreator is nil when the block has no dumped parent.
	SameThreadParentCreator *Address
	Storage                 *Storage
}
