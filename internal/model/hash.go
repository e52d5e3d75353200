package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// HashSize is the size of a content hash.
const HashSize = 32

// ErrInvalidEncoding is returned when a string or binary form cannot be parsed.
var ErrInvalidEncoding = errors.New("invalid encoding")

// Hash is a 32-byte BLAKE3 digest.
type Hash [HashSize]byte

// ComputeHash derives the identity of a secured object.
// The digest covers the canonical content bytes, the creator public key and
// the big-endian chain id, in that order.
func ComputeHash(serialized []byte, creator PublicKey, chainID uint64) Hash {
	hasher := blake3.New()
	hasher.Write(serialized)
	hasher.Write(creator.Bytes())

	var chain [8]byte
	binary.BigEndian.PutUint64(chain[:], chainID)
	hasher.Write(chain[:])

	var h Hash
	hasher.Sum(h[:0])

	return h
}

// HashOf returns the BLAKE3 digest of data.
func HashOf(data []byte) Hash {
	return blake3.Sum256(data)
}

// ParseHash parses the base58check form of a hash.
func ParseHash(text string) (Hash, error) {
	raw, err := decodeCheck(text)
	if err != nil {
		return Hash{}, err
	}

	if len(raw) != HashSize {
		return Hash{}, fmt.Errorf("%w: hash of %d bytes", ErrInvalidEncoding, len(raw))
	}

	return Hash(raw), nil
}

// String returns the base58check form.
func (h Hash) String() string {
	return encodeCheck(h[:])
}

// encodeCheck encodes payload followed by a 4-byte double-sha256 checksum in base58.
func encodeCheck(payload []byte) string {
	sum := checksum(payload)

	buf := make([]byte, 0, len(payload)+len(sum))
	buf = append(buf, payload...)
	buf = append(buf, sum[:]...)

	return base58.Encode(buf)
}

// decodeCheck reverses encodeCheck and verifies the checksum.
func decodeCheck(text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidEncoding)
	}

	raw, err := base58.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: too short for checksum", ErrInvalidEncoding)
	}

	payload, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	want := checksum(payload)
	if !bytes.Equal(sum, want[:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidEncoding)
	}

	return payload, nil
}

// checksum returns the first four bytes of sha256(sha256(payload)).
func checksum(payload []byte) [4]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])

	var sum [4]byte
	copy(sum[:], second[:4])

	return sum
}

// decodeVersioned decodes a base58check payload made of a varint version
// followed by exactly size bytes. Only version 0 is supported.
func decodeVersioned(text string, size int) ([]byte, error) {
	payload, err := decodeCheck(text)
	if err != nil {
		return nil, err
	}

	version, n := binary.Uvarint(payload)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad version prefix", ErrInvalidEncoding)
	}

	if version != 0 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidEncoding, version)
	}

	body := payload[n:]
	if len(body) != size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidEncoding, len(body), size)
	}

	return body, nil
}

// encodeVersioned is the inverse of decodeVersioned for version 0.
func encodeVersioned(body []byte) string {
	payload := make([]byte, 0, 1+len(body))
	payload = binary.AppendUvarint(payload, 0)
	payload = append(payload, body...)

	return encodeCheck(payload)
}
