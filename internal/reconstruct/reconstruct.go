// Package reconstruct rebuilds domain objects from wire messages.
//
// Wire bytes are only used to extract fields: every object is re-encoded with
// its canonical encoder and its identity is recomputed from those bytes, the
// creator public key and the chain id.
package reconstruct

import (
	"errors"
	"fmt"

	"SlotReplay/internal/logger"
	"SlotReplay/internal/model"
	"SlotReplay/internal/wire"
)

// Options configures a Reconstructor.
type Options struct {
	// ChainID is mixed into every identity hash.
	ChainID uint64

	// ThreadCount bounds slot threads.
	ThreadCount uint8

	// StorageCosts prices ExecuteSC datastores; overflow rejects the operation.
	StorageCosts model.StorageCosts

	// VerifySignatures checks each signature against its creator key.
	VerifySignatures bool

	// StrictDenunciations fails headers carrying denunciations instead of warning.
	StrictDenunciations bool
}

// Reconstructor converts wire messages into secured domain objects.
type Reconstructor struct {
	opts Options
}

// New creates a Reconstructor.
func New(opts Options) *Reconstructor {
	return &Reconstructor{opts: opts}
}

// envelope holds the parsed signature envelope of a signed message.
type envelope struct {
	sig  model.Signature
	pk   model.PublicKey
	addr model.Address
}

// parseEnvelope parses the signature, creator key and creator address strings.
func parseEnvelope(s wire.Signed) (envelope, error) {
	sig, err := model.ParseSignature(s.Signature)
	if err != nil {
		return envelope{}, invalid("signature", err)
	}

	pk, err := model.ParsePublicKey(s.CreatorPublicKey)
	if err != nil {
		return envelope{}, invalid("content_creator_pub_key", err)
	}

	addr, err := model.ParseAddress(s.CreatorAddress)
	if err != nil {
		return envelope{}, invalid("content_creator_address", err)
	}

	return envelope{sig: sig, pk: pk, addr: addr}, nil
}

// Block rebuilds a block and its operations. The block content only keeps
// operation ids; the operations are returned separately, in block order.
func (r *Reconstructor) Block(fb *wire.FilledBlock) (*model.SecuredBlock, []*model.SecuredOperation, error) {
	if fb == nil {
		return nil, nil, missing("block")
	}

	if fb.Header == nil {
		return nil, nil, missing("block.header")
	}

	header, err := r.Header(fb.Header)
	if err != nil {
		return nil, nil, nested("block.header", err)
	}

	ops := make([]*model.SecuredOperation, 0, len(fb.Operations))
	ids := make([]model.OperationID, 0, len(fb.Operations))

	for i, entry := range fb.Operations {
		field := fmt.Sprintf("block.operations[%d]", i)

		if entry == nil || entry.Operation == nil {
			return nil, nil, missing(field + ".operation")
		}

		op, err := r.Operation(entry.Operation)
		if err != nil {
			return nil, nil, nested(field, err)
		}

		r.checkWireID(field, entry.OperationID, op.ID.String())

		ops = append(ops, op)
		ids = append(ids, op.ID)
	}

	content := model.Block{Header: header, Operations: ids}

	// The block shares the header's envelope.
	block := model.Secure[model.Block, model.BlockID](
		content,
		header.Signature,
		header.CreatorPublicKey,
		header.CreatorAddress,
		r.opts.ChainID,
	)

	return block, ops, nil
}

// Header rebuilds a signed block header with its endorsements.
func (r *Reconstructor) Header(sh *wire.SignedBlockHeader) (*model.SecuredHeader, error) {
	if sh == nil || sh.Content == nil {
		return nil, missing("content")
	}

	env, err := parseEnvelope(sh.Signed)
	if err != nil {
		return nil, err
	}

	content, err := r.blockHeader(sh.Content)
	if err != nil {
		return nil, nested("content", err)
	}

	header := model.Secure[model.BlockHeader, model.BlockID](content, env.sig, env.pk, env.addr, r.opts.ChainID)

	if err := r.verify("signature", header.VerifySignature); err != nil {
		return nil, err
	}

	r.checkWireID("header", sh.SecureHash, header.ID.String())

	return header, nil
}

// blockHeader maps the wire header fields.
func (r *Reconstructor) blockHeader(h *wire.BlockHeader) (model.BlockHeader, error) {
	slot, err := r.slot("slot", h.Slot)
	if err != nil {
		return model.BlockHeader{}, err
	}

	parents := make([]model.BlockID, len(h.Parents))
	for i, p := range h.Parents {
		if parents[i], err = model.ParseBlockID(p); err != nil {
			return model.BlockHeader{}, invalid(fmt.Sprintf("parents[%d]", i), err)
		}
	}

	root, err := model.ParseHash(h.OperationsHash)
	if err != nil {
		return model.BlockHeader{}, invalid("operations_hash", err)
	}

	endorsements := make([]*model.SecuredEndorsement, len(h.Endorsements))
	for i, e := range h.Endorsements {
		if endorsements[i], err = r.Endorsement(e); err != nil {
			return model.BlockHeader{}, nested(fmt.Sprintf("endorsements[%d]", i), err)
		}
	}

	if n := len(h.Denunciations); n > 0 {
		if r.opts.StrictDenunciations {
			return model.BlockHeader{}, &Error{
				Kind:  ErrUnsupportedDenunciation,
				Field: "denunciations",
				Err:   fmt.Errorf("%d present", n),
			}
		}
		logger.Warn("dropping denunciations the dump format cannot represent", "slot", slot, "count", n)
	}

	var announced *uint32
	if h.AnnouncedVersion != nil {
		v := *h.AnnouncedVersion
		announced = &v
	}

	return model.BlockHeader{
		CurrentVersion:      h.CurrentVersion,
		AnnouncedVersion:    announced,
		Slot:                slot,
		Parents:             parents,
		OperationMerkleRoot: root,
		Endorsements:        endorsements,
		Denunciations:       nil,
	}, nil
}

// Endorsement rebuilds a signed endorsement.
func (r *Reconstructor) Endorsement(se *wire.SignedEndorsement) (*model.SecuredEndorsement, error) {
	if se == nil || se.Content == nil {
		return nil, missing("content")
	}

	env, err := parseEnvelope(se.Signed)
	if err != nil {
		return nil, err
	}

	slot, err := r.slot("content.slot", se.Content.Slot)
	if err != nil {
		return nil, err
	}

	endorsed, err := model.ParseBlockID(se.Content.EndorsedBlock)
	if err != nil {
		return nil, invalid("content.endorsed_block", err)
	}

	content := model.Endorsement{Slot: slot, Index: se.Content.Index, EndorsedBlock: endorsed}
	endorsement := model.Secure[model.Endorsement, model.EndorsementID](content, env.sig, env.pk, env.addr, r.opts.ChainID)

	if err := r.verify("signature", endorsement.VerifySignature); err != nil {
		return nil, err
	}

	return endorsement, nil
}

// Operation rebuilds a signed operation.
func (r *Reconstructor) Operation(so *wire.SignedOperation) (*model.SecuredOperation, error) {
	if so == nil || so.Content == nil {
		return nil, missing("content")
	}

	if so.Content.Fee == nil {
		return nil, missing("content.fee")
	}

	env, err := parseEnvelope(so.Signed)
	if err != nil {
		return nil, err
	}

	fee, err := amount("content.fee", so.Content.Fee)
	if err != nil {
		return nil, err
	}

	opType, err := r.operationType(so.Content.Op)
	if err != nil {
		return nil, nested("content.op", err)
	}

	content := model.Operation{Fee: fee, ExpirePeriod: so.Content.ExpirePeriod, Type: opType}
	op := model.Secure[model.Operation, model.OperationID](content, env.sig, env.pk, env.addr, r.opts.ChainID)

	if err := r.verify("signature", op.VerifySignature); err != nil {
		return nil, err
	}

	r.checkWireID("operation", so.SecureHash, op.ID.String())

	return op, nil
}

// operationType maps exactly one populated wire variant to its domain type.
func (r *Reconstructor) operationType(ot *wire.OperationType) (model.OperationType, error) {
	if ot == nil {
		return nil, &Error{Kind: ErrUnknownOperationVariant, Field: "type"}
	}

	switch {
	case ot.Transaction != nil:
		t := ot.Transaction

		recipient, err := model.ParseAddress(t.RecipientAddress)
		if err != nil {
			return nil, invalid("transaction.recipient_address", err)
		}

		if t.Amount == nil {
			return nil, missing("transaction.amount")
		}

		value, err := amount("transaction.amount", t.Amount)
		if err != nil {
			return nil, err
		}

		return model.Transaction{Recipient: recipient, Amount: value}, nil

	case ot.RollBuy != nil:
		return model.RollBuy{Count: ot.RollBuy.RollCount}, nil

	case ot.RollSell != nil:
		return model.RollSell{Count: ot.RollSell.RollCount}, nil

	case ot.ExecuteSC != nil:
		e := ot.ExecuteSC

		maxCoins, err := model.AmountFromMantissaScale(e.MaxCoins, model.AmountDecimals)
		if err != nil {
			return nil, amountError("execute_sc.max_coins", err)
		}

		datastore := make(map[string][]byte, len(e.Datastore))
		for i, entry := range e.Datastore {
			if entry == nil {
				return nil, missing(fmt.Sprintf("execute_sc.datastore[%d]", i))
			}
			datastore[string(entry.Key)] = entry.Value
		}

		if _, err := r.opts.StorageCosts.DatastoreCost(datastore); err != nil {
			return nil, amountError("execute_sc.datastore", err)
		}

		return model.ExecuteSC{
			Bytecode:  e.Data,
			MaxGas:    e.MaxGas,
			MaxCoins:  maxCoins,
			Datastore: datastore,
		}, nil

	case ot.CallSC != nil:
		c := ot.CallSC

		target, err := model.ParseAddress(c.TargetAddress)
		if err != nil {
			return nil, invalid("call_sc.target_address", err)
		}

		if c.Coins == nil {
			return nil, missing("call_sc.coins")
		}

		coins, err := amount("call_sc.coins", c.Coins)
		if err != nil {
			return nil, err
		}

		return model.CallSC{
			Target:    target,
			Function:  c.TargetFunction,
			Parameter: c.Parameter,
			MaxGas:    c.MaxGas,
			Coins:     coins,
		}, nil

	default:
		return nil, &Error{Kind: ErrUnknownOperationVariant, Field: "type"}
	}
}

// slot converts and validates a wire slot.
func (r *Reconstructor) slot(field string, s *wire.Slot) (model.Slot, error) {
	if s == nil {
		return model.Slot{}, missing(field)
	}

	if s.Thread > 0xff {
		return model.Slot{}, invalid(field+".thread", fmt.Errorf("thread %d", s.Thread))
	}

	slot := model.Slot{Period: s.Period, Thread: uint8(s.Thread)}
	if err := slot.Validate(r.opts.ThreadCount); err != nil {
		return model.Slot{}, invalid(field+".thread", err)
	}

	return slot, nil
}

// verify runs a signature check when verification is enabled.
func (r *Reconstructor) verify(field string, check func() error) error {
	if !r.opts.VerifySignatures {
		return nil
	}

	if err := check(); err != nil {
		return &Error{Kind: ErrInvalidSignature, Field: field, Err: err}
	}

	return nil
}

// checkWireID logs when the wire carried an identity that differs from the
// recomputed one.
func (r *Reconstructor) checkWireID(field, wireID, computed string) {
	if wireID == "" || wireID == computed {
		return
	}

	logger.Debug("recomputed identity differs from wire identity",
		"field", field,
		"wire", wireID,
		"computed", computed,
	)
}

// amount converts a mantissa and scale pair.
func amount(field string, na *wire.NativeAmount) (model.Amount, error) {
	v, err := model.AmountFromMantissaScale(na.Mantissa, na.Scale)
	if err != nil {
		return 0, amountError(field, err)
	}

	return v, nil
}

// amountError classifies a model amount failure.
func amountError(field string, err error) error {
	if errors.Is(err, model.ErrAmountOverflow) {
		return &Error{Kind: ErrAmountOverflow, Field: field, Err: err}
	}

	return invalid(field, err)
}
