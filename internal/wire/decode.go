package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned for truncated, mistyped or otherwise undecodable messages.
var ErrMalformed = errors.New("malformed wire message")

// Field numbers of the envelope shared by signed messages.
const (
	fieldSignedContent        protowire.Number = 1
	fieldSignedSignature      protowire.Number = 2
	fieldSignedCreatorPubKey  protowire.Number = 3
	fieldSignedCreatorAddress protowire.Number = 4
	fieldSignedSecureHash     protowire.Number = 5
	fieldSignedSerializedSize protowire.Number = 6
)

// field is one decoded tag with the raw bytes of its value.
type field struct {
	msg string
	num protowire.Number
	typ protowire.Type
	raw []byte
}

// walk iterates over the fields of msg, calling visit for each one.
func walk(name string, msg []byte, visit func(f field) error) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, name, protowire.ParseError(n))
		}
		msg = msg[n:]

		m := protowire.ConsumeFieldValue(num, typ, msg)
		if m < 0 {
			return fmt.Errorf("%w: %s field %d: %v", ErrMalformed, name, num, protowire.ParseError(m))
		}

		if err := visit(field{msg: name, num: num, typ: typ, raw: msg[:m]}); err != nil {
			return err
		}
		msg = msg[m:]
	}

	return nil
}

// mistyped reports a field whose wire type does not match the schema.
func (f field) mistyped(want protowire.Type) error {
	return fmt.Errorf("%w: %s field %d has wire type %d, want %d", ErrMalformed, f.msg, f.num, f.typ, want)
}

func (f field) uint64() (uint64, error) {
	if f.typ != protowire.VarintType {
		return 0, f.mistyped(protowire.VarintType)
	}

	v, _ := protowire.ConsumeVarint(f.raw)
	return v, nil
}

func (f field) uint32() (uint32, error) {
	v, err := f.uint64()
	if err != nil {
		return 0, err
	}

	return uint32(v), nil
}

func (f field) bytes() ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, f.mistyped(protowire.BytesType)
	}

	v, _ := protowire.ConsumeBytes(f.raw)
	return v, nil
}

func (f field) string() (string, error) {
	v, err := f.bytes()
	return string(v), err
}

// copyBytes returns an owned copy of a bytes field.
func (f field) copyBytes() ([]byte, error) {
	v, err := f.bytes()
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

// ReadFrame strips the varint length prefix of a dump entry.
// The frame must hold exactly one message.
func ReadFrame(data []byte) ([]byte, error) {
	msg, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, fmt.Errorf("%w: frame: %v", ErrMalformed, protowire.ParseError(n))
	}

	if n != len(data) {
		return nil, fmt.Errorf("%w: frame: %d trailing bytes", ErrMalformed, len(data)-n)
	}

	return msg, nil
}

// DecodeFilledBlock decodes a framed FilledBlock.
func DecodeFilledBlock(frame []byte) (*FilledBlock, error) {
	msg, err := ReadFrame(frame)
	if err != nil {
		return nil, err
	}

	return UnmarshalFilledBlock(msg)
}

// DecodeSignedBlockHeader decodes a framed SignedBlockHeader.
func DecodeSignedBlockHeader(frame []byte) (*SignedBlockHeader, error) {
	msg, err := ReadFrame(frame)
	if err != nil {
		return nil, err
	}

	return UnmarshalSignedBlockHeader(msg)
}

// DecodeSignedOperation decodes a framed SignedOperation.
func DecodeSignedOperation(frame []byte) (*SignedOperation, error) {
	msg, err := ReadFrame(frame)
	if err != nil {
		return nil, err
	}

	return UnmarshalSignedOperation(msg)
}

// DecodeSignedEndorsement decodes a framed SignedEndorsement.
func DecodeSignedEndorsement(frame []byte) (*SignedEndorsement, error) {
	msg, err := ReadFrame(frame)
	if err != nil {
		return nil, err
	}

	return UnmarshalSignedEndorsement(msg)
}

// UnmarshalFilledBlock decodes an unframed FilledBlock.
func UnmarshalFilledBlock(msg []byte) (*FilledBlock, error) {
	out := &FilledBlock{}

	err := walk("FilledBlock", msg, func(f field) error {
		switch f.num {
		case 1:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			out.Header, err = UnmarshalSignedBlockHeader(raw)
			return err
		case 2:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			entry, err := unmarshalFilledOperationEntry(raw)
			if err != nil {
				return err
			}
			out.Operations = append(out.Operations, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func unmarshalFilledOperationEntry(msg []byte) (*FilledOperationEntry, error) {
	out := &FilledOperationEntry{}

	err := walk("FilledOperationEntry", msg, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.OperationID, err = f.string()
		case 2:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				out.Operation, err = UnmarshalSignedOperation(raw)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// signedField decodes envelope fields 2..6. It reports false for other fields.
func signedField(s *Signed, f field) (bool, error) {
	var err error

	switch f.num {
	case fieldSignedSignature:
		s.Signature, err = f.string()
	case fieldSignedCreatorPubKey:
		s.CreatorPublicKey, err = f.string()
	case fieldSignedCreatorAddress:
		s.CreatorAddress, err = f.string()
	case fieldSignedSecureHash:
		s.SecureHash, err = f.string()
	case fieldSignedSerializedSize:
		s.SerializedSize, err = f.uint64()
	default:
		return false, nil
	}

	return true, err
}

// UnmarshalSignedBlockHeader decodes an unframed SignedBlockHeader.
func UnmarshalSignedBlockHeader(msg []byte) (*SignedBlockHeader, error) {
	out := &SignedBlockHeader{}

	err := walk("SignedBlockHeader", msg, func(f field) error {
		if f.num == fieldSignedContent {
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			out.Content, err = unmarshalBlockHeader(raw)
			return err
		}
		_, err := signedField(&out.Signed, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func unmarshalBlockHeader(msg []byte) (*BlockHeader, error) {
	out := &BlockHeader{}

	err := walk("BlockHeader", msg, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.CurrentVersion, err = f.uint32()
		case 2:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				var v uint32
				if v, err = unmarshalUInt32Value(raw); err == nil {
					out.AnnouncedVersion = &v
				}
			}
		case 3:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				out.Slot, err = unmarshalSlot(raw)
			}
		case 4:
			var parent string
			if parent, err = f.string(); err == nil {
				out.Parents = append(out.Parents, parent)
			}
		case 5:
			out.OperationsHash, err = f.string()
		case 6:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				var e *SignedEndorsement
				if e, err = UnmarshalSignedEndorsement(raw); err == nil {
					out.Endorsements = append(out.Endorsements, e)
				}
			}
		case 7:
			var raw []byte
			if raw, err = f.copyBytes(); err == nil {
				out.Denunciations = append(out.Denunciations, raw)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func unmarshalUInt32Value(msg []byte) (uint32, error) {
	var v uint32

	err := walk("UInt32Value", msg, func(f field) error {
		var err error
		if f.num == 1 {
			v, err = f.uint32()
		}
		return err
	})

	return v, err
}

func unmarshalSlot(msg []byte) (*Slot, error) {
	out := &Slot{}

	err := walk("Slot", msg, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.Period, err = f.uint64()
		case 2:
			out.Thread, err = f.uint32()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// UnmarshalSignedEndorsement decodes an unframed SignedEndorsement.
func UnmarshalSignedEndorsement(msg []byte) (*SignedEndorsement, error) {
	out := &SignedEndorsement{}

	err := walk("SignedEndorsement", msg, func(f field) error {
		if f.num == fieldSignedContent {
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			out.Content, err = unmarshalEndorsement(raw)
			return err
		}
		_, err := signedField(&out.Signed, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func unmarshalEndorsement(msg []byte) (*Endorsement, error) {
	out := &Endorsement{}

	err := walk("Endorsement", msg, func(f field) error {
		var err error
		switch f.num {
		case 1:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				out.Slot, err = unmarshalSlot(raw)
			}
		case 2:
			out.Index, err = f.uint32()
		case 3:
			out.EndorsedBlock, err = f.string()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// UnmarshalSignedOperation decodes an unframed SignedOperation.
func UnmarshalSignedOperation(msg []byte) (*SignedOperation, error) {
	out := &SignedOperation{}

	err := walk("SignedOperation", msg, func(f field) error {
		if f.num == fieldSignedContent {
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			out.Content, err = unmarshalOperation(raw)
			return err
		}
		_, err := signedField(&out.Signed, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func unmarshalOperation(msg []byte) (*Operation, error) {
	out := &Operation{}

	err := walk("Operation", msg, func(f field) error {
		var err error
		switch f.num {
		case 1:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				out.Fee, err = unmarshalNativeAmount(raw)
			}
		case 2:
			out.ExpirePeriod, err = f.uint64()
		case 3:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				out.Op, err = unmarshalOperationType(raw)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// unmarshalOperationType decodes the oneof. A later variant replaces an
// earlier one, as protobuf oneof semantics require.
func unmarshalOperationType(msg []byte) (*OperationType, error) {
	out := &OperationType{}

	err := walk("OperationType", msg, func(f field) error {
		if f.num < 1 || f.num > 5 {
			return nil
		}

		raw, err := f.bytes()
		if err != nil {
			return err
		}

		*out = OperationType{}

		switch f.num {
		case 1:
			out.Transaction, err = unmarshalTransaction(raw)
		case 2:
			var count uint64
			count, err = unmarshalRollCount("RollBuy", raw)
			out.RollBuy = &RollBuy{RollCount: count}
		case 3:
			var count uint64
			count, err = unmarshalRollCount("RollSell", raw)
			out.RollSell = &RollSell{RollCount: count}
		case 4:
			out.ExecuteSC, err = unmarshalExecuteSC(raw)
		case 5:
			out.CallSC, err = unmarshalCallSC(raw)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func unmarshalNativeAmount(msg []byte) (*NativeAmount, error) {
	out := &NativeAmount{}

	err := walk("NativeAmount", msg, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.Mantissa, err = f.uint64()
		case 2:
			out.Scale, err = f.uint32()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func unmarshalTransaction(msg []byte) (*Transaction, error) {
	out := &Transaction{}

	err := walk("Transaction", msg, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.RecipientAddress, err = f.string()
		case 2:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				out.Amount, err = unmarshalNativeAmount(raw)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func unmarshalRollCount(name string, msg []byte) (uint64, error) {
	var count uint64

	err := walk(name, msg, func(f field) error {
		var err error
		if f.num == 1 {
			count, err = f.uint64()
		}
		return err
	})

	return count, err
}

func unmarshalExecuteSC(msg []byte) (*ExecuteSC, error) {
	out := &ExecuteSC{}

	err := walk("ExecuteSC", msg, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.Data, err = f.copyBytes()
		case 2:
			out.MaxCoins, err = f.uint64()
		case 3:
			out.MaxGas, err = f.uint64()
		case 4:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				var entry *BytesMapFieldEntry
				if entry, err = unmarshalBytesMapFieldEntry(raw); err == nil {
					out.Datastore = append(out.Datastore, entry)
				}
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func unmarshalBytesMapFieldEntry(msg []byte) (*BytesMapFieldEntry, error) {
	out := &BytesMapFieldEntry{}

	err := walk("BytesMapFieldEntry", msg, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.Key, err = f.copyBytes()
		case 2:
			out.Value, err = f.copyBytes()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func unmarshalCallSC(msg []byte) (*CallSC, error) {
	out := &CallSC{}

	err := walk("CallSC", msg, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.TargetAddress, err = f.string()
		case 2:
			out.TargetFunction, err = f.string()
		case 3:
			out.Parameter, err = f.copyBytes()
		case 4:
			out.MaxGas, err = f.uint64()
		case 5:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				out.Coins, err = unmarshalNativeAmount(raw)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
