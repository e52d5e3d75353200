// Package fixture builds signed wire messages and dump archives for tests
// and for the dump-writing tooling.
package fixture

import (
	"crypto/ed25519"
	"fmt"

	"SlotReplay/internal/model"
	"SlotReplay/internal/reconstruct"
	"SlotReplay/internal/wire"
)

// Signer holds an ed25519 identity.
type Signer struct {
	priv      ed25519.PrivateKey
	PublicKey model.PublicKey
	Address   model.Address
}

// NewSigner derives a deterministic signer from seed.
func NewSigner(seed byte) *Signer {
	raw := make([]byte, ed25519.SeedSize)
	raw[0] = seed
	raw[ed25519.SeedSize-1] = 0xa5

	priv := ed25519.NewKeyFromSeed(raw)
	pk := model.PublicKeyFromEd25519(priv.Public().(ed25519.PublicKey))

	return &Signer{
		priv:      priv,
		PublicKey: pk,
		Address:   model.AddressFromPublicKey(pk),
	}
}

// Sign signs an identity hash.
func (s *Signer) Sign(id [model.HashSize]byte) model.Signature {
	return model.Signature(ed25519.Sign(s.priv, id[:]))
}

func (s *Signer) envelope() wire.Signed {
	return wire.Signed{
		Signature:        model.Signature{}.String(),
		CreatorPublicKey: s.PublicKey.String(),
		CreatorAddress:   s.Address.String(),
	}
}

// Builder creates signed wire messages whose identities match what the
// reconstructor recomputes for the same chain.
type Builder struct {
	ThreadCount uint8
	rec         *reconstruct.Reconstructor
}

// NewBuilder creates a builder for chainID.
func NewBuilder(chainID uint64, threadCount uint8) *Builder {
	return &Builder{
		ThreadCount: threadCount,
		rec: reconstruct.New(reconstruct.Options{
			ChainID:     chainID,
			ThreadCount: threadCount,
		}),
	}
}

// Amount encodes a raw amount as a mantissa at full scale.
func Amount(raw uint64) *wire.NativeAmount {
	return &wire.NativeAmount{Mantissa: raw, Scale: model.AmountDecimals}
}

// Operation wraps an operation type into a signed operation.
func (b *Builder) Operation(s *Signer, fee, expire uint64, op *wire.OperationType) *wire.SignedOperation {
	so := &wire.SignedOperation{
		Content: &wire.Operation{Fee: Amount(fee), ExpirePeriod: expire, Op: op},
		Signed:  s.envelope(),
	}

	b.SignOperation(s, so)

	return so
}

// Transaction builds a signed transfer.
func (b *Builder) Transaction(s *Signer, fee uint64, recipient model.Address, amount uint64) *wire.SignedOperation {
	return b.Operation(s, fee, 100, &wire.OperationType{
		Transaction: &wire.Transaction{RecipientAddress: recipient.String(), Amount: Amount(amount)},
	})
}

// RollBuy builds a signed roll purchase.
func (b *Builder) RollBuy(s *Signer, fee, count uint64) *wire.SignedOperation {
	return b.Operation(s, fee, 100, &wire.OperationType{RollBuy: &wire.RollBuy{RollCount: count}})
}

// SignOperation recomputes the identity of so and signs it. so must be well-formed.
func (b *Builder) SignOperation(s *Signer, so *wire.SignedOperation) {
	op, err := b.rec.Operation(so)
	if err != nil {
		panic(fmt.Sprintf("fixture operation: %v", err))
	}

	so.Signature = s.Sign(op.ID).String()
	so.SecureHash = op.ID.String()
}

// Endorsement builds a signed endorsement of block at slot.
func (b *Builder) Endorsement(s *Signer, slot model.Slot, index uint32, block model.BlockID) *wire.SignedEndorsement {
	se := &wire.SignedEndorsement{
		Content: &wire.Endorsement{
			Slot:          WireSlot(slot),
			Index:         index,
			EndorsedBlock: block.String(),
		},
		Signed: s.envelope(),
	}

	e, err := b.rec.Endorsement(se)
	if err != nil {
		panic(fmt.Sprintf("fixture endorsement: %v", err))
	}

	se.Signature = s.Sign(e.ID).String()
	se.SecureHash = e.ID.String()

	return se
}

// Header builds a signed header for slot. Parents are zero block ids, one per thread.
func (b *Builder) Header(s *Signer, slot model.Slot, endorsements ...*wire.SignedEndorsement) *wire.SignedBlockHeader {
	parents := make([]string, b.ThreadCount)
	for i := range parents {
		parents[i] = model.BlockID{}.String()
	}

	sh := &wire.SignedBlockHeader{
		Content: &wire.BlockHeader{
			CurrentVersion: 1,
			Slot:           WireSlot(slot),
			Parents:        parents,
			OperationsHash: model.Hash{}.String(),
			Endorsements:   endorsements,
		},
		Signed: s.envelope(),
	}

	b.SignHeader(s, sh)

	return sh
}

// SignHeader recomputes the identity of sh and signs it.
func (b *Builder) SignHeader(s *Signer, sh *wire.SignedBlockHeader) {
	h, err := b.rec.Header(sh)
	if err != nil {
		panic(fmt.Sprintf("fixture header: %v", err))
	}

	sh.Signature = s.Sign(h.ID).String()
	sh.SecureHash = h.ID.String()
}

// Block builds a filled block for slot carrying ops.
func (b *Builder) Block(s *Signer, slot model.Slot, ops ...*wire.SignedOperation) *wire.FilledBlock {
	fb := &wire.FilledBlock{Header: b.Header(s, slot)}

	for _, op := range ops {
		fb.Operations = append(fb.Operations, &wire.FilledOperationEntry{
			OperationID: op.SecureHash,
			Operation:   op,
		})
	}

	return fb
}

// Frame returns the dump entry of fb.
func Frame(fb *wire.FilledBlock) []byte {
	return wire.Frame(fb.Marshal())
}

// WireSlot converts a slot to its wire form.
func WireSlot(slot model.Slot) *wire.Slot {
	return &wire.Slot{Period: slot.Period, Thread: uint32(slot.Thread)}
}

// Putter stores frames by slot; both dump writers implement it.
type Putter interface {
	Put(slot model.Slot, frame []byte) error
}

// WriteArchive writes one block per slot, each carrying one roll purchase.
func (b *Builder) WriteArchive(w Putter, s *Signer, slots []model.Slot) error {
	for i, slot := range slots {
		fb := b.Block(s, slot, b.RollBuy(s, uint64(i+1), 1))

		if err := w.Put(slot, Frame(fb)); err != nil {
			return fmt.Errorf("put %s:\n%w", slot, err)
		}
	}

	return nil
}
