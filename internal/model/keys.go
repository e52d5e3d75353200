package model

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// PublicKeySize is the size of an ed25519 public key.
	PublicKeySize = ed25519.PublicKeySize

	// SignatureSize is the size of an ed25519 signature.
	SignatureSize = ed25519.SignatureSize
)

// String prefixes of the canonical text forms.
const (
	prefixPublicKey     = "P"
	prefixUserAddress   = "AU"
	prefixSCAddress     = "AS"
	prefixBlockID       = "B"
	prefixOperationID   = "O"
	prefixEndorsementID = "E"
)

// ErrInvalidSignature is returned when a signature does not match its object.
var ErrInvalidSignature = errors.New("invalid signature")

// PublicKey is an ed25519 public key.
type PublicKey [PublicKeySize]byte

// ParsePublicKey parses "P" + base58check(version, key).
func ParsePublicKey(text string) (PublicKey, error) {
	body, err := decodePrefixed(text, prefixPublicKey, PublicKeySize)
	if err != nil {
		return PublicKey{}, err
	}

	return PublicKey(body), nil
}

// PublicKeyFromEd25519 wraps a standard library public key.
func PublicKeyFromEd25519(pk ed25519.PublicKey) PublicKey {
	var out PublicKey
	copy(out[:], pk)
	return out
}

// Bytes returns the versioned binary form: varint version followed by the key.
func (pk PublicKey) Bytes() []byte {
	b := binary.AppendUvarint(make([]byte, 0, 1+PublicKeySize), 0)
	return append(b, pk[:]...)
}

// String returns the canonical text form.
func (pk PublicKey) String() string {
	return prefixPublicKey + encodeVersioned(pk[:])
}

// Verify checks sig over message with this key.
func (pk PublicKey) Verify(message []byte, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), message, sig[:])
}

// Signature is an ed25519 signature.
type Signature [SignatureSize]byte

// ParseSignature parses base58check(version, signature).
func ParseSignature(text string) (Signature, error) {
	body, err := decodeVersioned(text, SignatureSize)
	if err != nil {
		return Signature{}, err
	}

	return Signature(body), nil
}

// Bytes returns the versioned binary form.
func (s Signature) Bytes() []byte {
	b := binary.AppendUvarint(make([]byte, 0, 1+SignatureSize), 0)
	return append(b, s[:]...)
}

// String returns the canonical text form.
func (s Signature) String() string {
	return encodeVersioned(s[:])
}

// AddressKind distinguishes user accounts from smart contracts.
type AddressKind uint8

const (
	// UserAddress is an externally owned account.
	UserAddress AddressKind = 0

	// SCAddress is a smart contract account.
	SCAddress AddressKind = 1
)

// Address identifies an account by the hash of its public key or contract origin.
type Address struct {
	Kind AddressKind
	Hash Hash
}

// AddressFromPublicKey derives the user address owned by pk.
func AddressFromPublicKey(pk PublicKey) Address {
	return Address{Kind: UserAddress, Hash: HashOf(pk.Bytes())}
}

// ParseAddress parses "AU..." or "AS..." addresses.
func ParseAddress(text string) (Address, error) {
	var kind AddressKind

	switch {
	case strings.HasPrefix(text, prefixUserAddress):
		kind = UserAddress
	case strings.HasPrefix(text, prefixSCAddress):
		kind = SCAddress
	default:
		return Address{}, fmt.Errorf("%w: address prefix", ErrInvalidEncoding)
	}

	body, err := decodeVersioned(text[2:], HashSize)
	if err != nil {
		return Address{}, err
	}

	return Address{Kind: kind, Hash: Hash(body)}, nil
}

// String returns the canonical text form.
func (a Address) String() string {
	prefix := prefixUserAddress
	if a.Kind == SCAddress {
		prefix = prefixSCAddress
	}

	return prefix + encodeVersioned(a.Hash[:])
}

// appendAddress appends varint kind, varint version and the hash.
func appendAddress(b []byte, a Address) []byte {
	b = binary.AppendUvarint(b, uint64(a.Kind))
	b = binary.AppendUvarint(b, 0)
	return append(b, a.Hash[:]...)
}

// BlockID identifies a block (the hash of its header).
type BlockID Hash

// OperationID identifies an operation.
type OperationID Hash

// EndorsementID identifies an endorsement.
type EndorsementID Hash

// ParseBlockID parses "B" + base58check(version, hash).
func ParseBlockID(text string) (BlockID, error) {
	body, err := decodePrefixed(text, prefixBlockID, HashSize)
	if err != nil {
		return BlockID{}, err
	}

	return BlockID(body), nil
}

// ParseOperationID parses "O" + base58check(version, hash).
func ParseOperationID(text string) (OperationID, error) {
	body, err := decodePrefixed(text, prefixOperationID, HashSize)
	if err != nil {
		return OperationID{}, err
	}

	return OperationID(body), nil
}

// ParseEndorsementID parses "E" + base58check(version, hash).
func ParseEndorsementID(text string) (EndorsementID, error) {
	body, err := decodePrefixed(text, prefixEndorsementID, HashSize)
	if err != nil {
		return EndorsementID{}, err
	}

	return EndorsementID(body), nil
}

func (id BlockID) String() string       { return prefixBlockID + encodeVersioned(id[:]) }
func (id OperationID) String() string   { return prefixOperationID + encodeVersioned(id[:]) }
func (id EndorsementID) String() string { return prefixEndorsementID + encodeVersioned(id[:]) }

// appendID appends a versioned 32-byte identifier.
func appendID(b []byte, id [HashSize]byte) []byte {
	b = binary.AppendUvarint(b, 0)
	return append(b, id[:]...)
}

// decodePrefixed strips a fixed text prefix and decodes the versioned body.
func decodePrefixed(text, prefix string, size int) ([]byte, error) {
	rest, ok := strings.CutPrefix(text, prefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidEncoding, prefix)
	}

	return decodeVersioned(rest, size)
}
