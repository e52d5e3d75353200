package wire

import "google.golang.org/protobuf/encoding/protowire"

// AppendFrame appends msg with its varint length prefix.
func AppendFrame(b, msg []byte) []byte {
	return protowire.AppendBytes(b, msg)
}

// Frame returns msg with its varint length prefix.
func Frame(msg []byte) []byte {
	return AppendFrame(make([]byte, 0, len(msg)+protowire.SizeVarint(uint64(len(msg)))), msg)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// appendMessageField always emits the field, even for an empty message.
func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func (s *Signed) append(b []byte) []byte {
	b = appendStringField(b, fieldSignedSignature, s.Signature)
	b = appendStringField(b, fieldSignedCreatorPubKey, s.CreatorPublicKey)
	b = appendStringField(b, fieldSignedCreatorAddress, s.CreatorAddress)
	b = appendStringField(b, fieldSignedSecureHash, s.SecureHash)
	return appendVarintField(b, fieldSignedSerializedSize, s.SerializedSize)
}

// Marshal encodes the message without a frame.
func (m *FilledBlock) Marshal() []byte {
	var b []byte
	if m.Header != nil {
		b = appendMessageField(b, 1, m.Header.Marshal())
	}
	for _, op := range m.Operations {
		var entry []byte
		entry = appendStringField(entry, 1, op.OperationID)
		if op.Operation != nil {
			entry = appendMessageField(entry, 2, op.Operation.Marshal())
		}
		b = appendMessageField(b, 2, entry)
	}
	return b
}

// Marshal encodes the message without a frame.
func (m *SignedBlockHeader) Marshal() []byte {
	var b []byte
	if m.Content != nil {
		b = appendMessageField(b, fieldSignedContent, m.Content.marshal())
	}
	return m.Signed.append(b)
}

func (m *BlockHeader) marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(m.CurrentVersion))
	if m.AnnouncedVersion != nil {
		b = appendMessageField(b, 2, appendVarintField(nil, 1, uint64(*m.AnnouncedVersion)))
	}
	if m.Slot != nil {
		b = appendMessageField(b, 3, m.Slot.marshal())
	}
	for _, p := range m.Parents {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, p)
	}
	b = appendStringField(b, 5, m.OperationsHash)
	for _, e := range m.Endorsements {
		b = appendMessageField(b, 6, e.Marshal())
	}
	for _, d := range m.Denunciations {
		b = appendMessageField(b, 7, d)
	}
	return b
}

func (m *Slot) marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, m.Period)
	return appendVarintField(b, 2, uint64(m.Thread))
}

// Marshal encodes the message without a frame.
func (m *SignedEndorsement) Marshal() []byte {
	var b []byte
	if m.Content != nil {
		var c []byte
		if m.Content.Slot != nil {
			c = appendMessageField(c, 1, m.Content.Slot.marshal())
		}
		c = appendVarintField(c, 2, uint64(m.Content.Index))
		c = appendStringField(c, 3, m.Content.EndorsedBlock)
		b = appendMessageField(b, fieldSignedContent, c)
	}
	return m.Signed.append(b)
}

// Marshal encodes the message without a frame.
func (m *SignedOperation) Marshal() []byte {
	var b []byte
	if m.Content != nil {
		b = appendMessageField(b, fieldSignedContent, m.Content.marshal())
	}
	return m.Signed.append(b)
}

func (m *Operation) marshal() []byte {
	var b []byte
	if m.Fee != nil {
		b = appendMessageField(b, 1, m.Fee.marshal())
	}
	b = appendVarintField(b, 2, m.ExpirePeriod)
	if m.Op != nil {
		b = appendMessageField(b, 3, m.Op.marshal())
	}
	return b
}

func (m *OperationType) marshal() []byte {
	var b []byte
	switch {
	case m.Transaction != nil:
		var t []byte
		t = appendStringField(t, 1, m.Transaction.RecipientAddress)
		if m.Transaction.Amount != nil {
			t = appendMessageField(t, 2, m.Transaction.Amount.marshal())
		}
		b = appendMessageField(b, 1, t)
	case m.RollBuy != nil:
		b = appendMessageField(b, 2, appendVarintField(nil, 1, m.RollBuy.RollCount))
	case m.RollSell != nil:
		b = appendMessageField(b, 3, appendVarintField(nil, 1, m.RollSell.RollCount))
	case m.ExecuteSC != nil:
		var e []byte
		e = appendBytesField(e, 1, m.ExecuteSC.Data)
		e = appendVarintField(e, 2, m.ExecuteSC.MaxCoins)
		e = appendVarintField(e, 3, m.ExecuteSC.MaxGas)
		for _, entry := range m.ExecuteSC.Datastore {
			var kv []byte
			kv = appendBytesField(kv, 1, entry.Key)
			kv = appendBytesField(kv, 2, entry.Value)
			e = appendMessageField(e, 4, kv)
		}
		b = appendMessageField(b, 4, e)
	case m.CallSC != nil:
		var c []byte
		c = appendStringField(c, 1, m.CallSC.TargetAddress)
		c = appendStringField(c, 2, m.CallSC.TargetFunction)
		c = appendBytesField(c, 3, m.CallSC.Parameter)
		c = appendVarintField(c, 4, m.CallSC.MaxGas)
		if m.CallSC.Coins != nil {
			c = appendMessageField(c, 5, m.CallSC.Coins.marshal())
		}
		b = appendMessageField(b, 5, c)
	}
	return b
}

func (m *NativeAmount) marshal() []byte {
	var b []byte
	b = appendVarintField(b, 1, m.Mantissa)
	return appendVarintField(b, 2, uint64(m.Scale))
}
