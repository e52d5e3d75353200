package wire

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func testOperation() *SignedOperation {
	return &SignedOperation{
		Content: &Operation{
			Fee:          &NativeAmount{Mantissa: 15, Scale: 1},
			ExpirePeriod: 42,
			Op: &OperationType{
				CallSC: &CallSC{
					TargetAddress:  "AS1target",
					TargetFunction: "transfer",
					Parameter:      []byte{1, 2, 3},
					MaxGas:         1_000_000,
					Coins:          &NativeAmount{Mantissa: 7, Scale: 9},
				},
			},
		},
		Signed: Signed{
			Signature:        "sig",
			CreatorPublicKey: "P1key",
			CreatorAddress:   "AU1creator",
			SecureHash:       "O1id",
			SerializedSize:   99,
		},
	}
}

func testBlock() *FilledBlock {
	announced := uint32(3)

	return &FilledBlock{
		Header: &SignedBlockHeader{
			Content: &BlockHeader{
				CurrentVersion:   2,
				AnnouncedVersion: &announced,
				Slot:             &Slot{Period: 10, Thread: 5},
				Parents:          []string{"B1a", "B1b"},
				OperationsHash:   "root",
				Endorsements: []*SignedEndorsement{{
					Content: &Endorsement{Slot: &Slot{Period: 10, Thread: 4}, Index: 1, EndorsedBlock: "B1a"},
					Signed:  Signed{Signature: "esig"},
				}},
				Denunciations: [][]byte{{0xde, 0xad}},
			},
			Signed: Signed{Signature: "hsig", CreatorAddress: "AU1creator"},
		},
		Operations: []*FilledOperationEntry{{OperationID: "O1id", Operation: testOperation()}},
	}
}

func TestDecodeFilledBlock(t *testing.T) {
	frame := Frame(testBlock().Marshal())

	fb, err := DecodeFilledBlock(frame)
	if err != nil {
		t.Fatalf("DecodeFilledBlock: %v", err)
	}

	h := fb.Header.Content
	if h.CurrentVersion != 2 || h.AnnouncedVersion == nil || *h.AnnouncedVersion != 3 {
		t.Errorf("versions = %d/%v, want 2/3", h.CurrentVersion, h.AnnouncedVersion)
	}
	if h.Slot.Period != 10 || h.Slot.Thread != 5 {
		t.Errorf("slot = %+v, want (10, 5)", h.Slot)
	}
	if len(h.Parents) != 2 || h.Parents[1] != "B1b" {
		t.Errorf("parents = %v", h.Parents)
	}
	if len(h.Endorsements) != 1 || h.Endorsements[0].Content.Index != 1 {
		t.Errorf("endorsements = %+v", h.Endorsements)
	}
	if len(h.Denunciations) != 1 || !bytes.Equal(h.Denunciations[0], []byte{0xde, 0xad}) {
		t.Errorf("denunciations = %x", h.Denunciations)
	}
	if fb.Header.Signature != "hsig" {
		t.Errorf("header signature = %q, want hsig", fb.Header.Signature)
	}

	if len(fb.Operations) != 1 {
		t.Fatalf("operations = %d, want 1", len(fb.Operations))
	}

	op := fb.Operations[0].Operation
	if op.Content.ExpirePeriod != 42 || op.Content.Fee.Mantissa != 15 || op.Content.Fee.Scale != 1 {
		t.Errorf("operation content = %+v", op.Content)
	}

	call := op.Content.Op.CallSC
	if call == nil || call.TargetFunction != "transfer" || call.Coins.Mantissa != 7 {
		t.Errorf("call_sc = %+v", call)
	}
	if op.SerializedSize != 99 {
		t.Errorf("serialized size = %d, want 99", op.SerializedSize)
	}
}

func TestDecodeSignedOperation_AllVariants(t *testing.T) {
	variants := map[string]*OperationType{
		"transaction": {Transaction: &Transaction{RecipientAddress: "AU1x", Amount: &NativeAmount{Mantissa: 1}}},
		"roll_buy":    {RollBuy: &RollBuy{RollCount: 3}},
		"roll_sell":   {RollSell: &RollSell{RollCount: 4}},
		"execute_sc": {ExecuteSC: &ExecuteSC{
			Data:      []byte{0x00, 0x61, 0x73, 0x6d},
			MaxCoins:  5,
			MaxGas:    6,
			Datastore: []*BytesMapFieldEntry{{Key: []byte("k"), Value: []byte("v")}},
		}},
		"call_sc": {CallSC: &CallSC{TargetAddress: "AS1x", Coins: &NativeAmount{}}},
	}

	for name, v := range variants {
		so := &SignedOperation{Content: &Operation{Fee: &NativeAmount{}, Op: v}}

		got, err := DecodeSignedOperation(Frame(so.Marshal()))
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}

		op := got.Content.Op
		populated := 0
		for _, set := range []bool{
			op.Transaction != nil, op.RollBuy != nil, op.RollSell != nil,
			op.ExecuteSC != nil, op.CallSC != nil,
		} {
			if set {
				populated++
			}
		}

		if populated != 1 {
			t.Errorf("%s: %d variants populated, want 1", name, populated)
		}
	}
}

func TestDecodeSignedOperation_EmptyVariant(t *testing.T) {
	so := &SignedOperation{Content: &Operation{Fee: &NativeAmount{}, Op: &OperationType{}}}

	got, err := DecodeSignedOperation(Frame(so.Marshal()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	op := got.Content.Op
	if op == nil {
		t.Fatal("op is nil, want empty type")
	}
	if op.Transaction != nil || op.RollBuy != nil || op.RollSell != nil || op.ExecuteSC != nil || op.CallSC != nil {
		t.Errorf("op = %+v, want no variant", op)
	}
}

func TestDecodeSignedEndorsement(t *testing.T) {
	se := &SignedEndorsement{
		Content: &Endorsement{Slot: &Slot{Period: 1, Thread: 2}, Index: 7, EndorsedBlock: "B1x"},
		Signed:  Signed{Signature: "s", CreatorPublicKey: "P1k"},
	}

	got, err := DecodeSignedEndorsement(Frame(se.Marshal()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Content.Index != 7 || got.Content.EndorsedBlock != "B1x" || got.CreatorPublicKey != "P1k" {
		t.Errorf("endorsement = %+v", got)
	}
}

func TestReadFrame_Errors(t *testing.T) {
	msg := testOperation().Marshal()
	frame := Frame(msg)

	cases := map[string][]byte{
		"empty":    {},
		"short":    frame[:len(frame)-1],
		"trailing": append(append([]byte{}, frame...), 0x00),
		"overlong": {0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01},
	}

	for name, data := range cases {
		if _, err := DecodeSignedOperation(data); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", name, err)
		}
	}
}

func TestUnmarshal_MistypedField(t *testing.T) {
	// Field 2 of Operation (expire_period) encoded as bytes.
	content := protowire.AppendTag(nil, 2, protowire.BytesType)
	content = protowire.AppendBytes(content, []byte("x"))

	msg := protowire.AppendTag(nil, fieldSignedContent, protowire.BytesType)
	msg = protowire.AppendBytes(msg, content)

	if _, err := UnmarshalSignedOperation(msg); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	msg := testOperation().Marshal()
	msg = protowire.AppendTag(msg, 99, protowire.VarintType)
	msg = protowire.AppendVarint(msg, 12345)
	msg = protowire.AppendTag(msg, 100, protowire.BytesType)
	msg = protowire.AppendBytes(msg, []byte("future"))

	got, err := UnmarshalSignedOperation(msg)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.SecureHash != "O1id" {
		t.Errorf("secure hash = %q, want O1id", got.SecureHash)
	}
}

func TestUnmarshal_TruncatedNested(t *testing.T) {
	msg := testBlock().Marshal()

	if _, err := UnmarshalFilledBlock(msg[:len(msg)-1]); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}
