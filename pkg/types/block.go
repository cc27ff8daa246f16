package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// HashSize is the width of a block fingerprint in bytes
const HashSize = 8

// Hash is a 64-bit block fingerprint stored as big-endian two's complement
// bytes, most significant byte first. The byte order is part of the
// persisted format: fingerprints written by one build must compare equal
// to fingerprints written by another.
type Hash [HashSize]byte

// HashFromInt64 encodes a signed 64-bit fingerprint
func HashFromInt64(v int64) Hash {
	var h Hash
	binary.BigEndian.PutUint64(h[:], uint64(v))
	return h
}

// Int64 decodes the fingerprint back into its signed value
func (h Hash) Int64() int64 {
	return int64(binary.BigEndian.Uint64(h[:]))
}

// String returns the fingerprint as 16 lowercase hex characters
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes the output of Hash.String
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != HashSize*2 {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return h, nil
}

// HashFromBytes copies a stored fingerprint. Short input is zero-padded on
// the left so that the value is preserved.
func HashFromBytes(b []byte) Hash {
	var h Hash
	if len(b) > HashSize {
		b = b[len(b)-HashSize:]
	}
	copy(h[HashSize-len(b):], b)
	return h
}

// Block is a fingerprinted window of consecutive filtered statements.
// Hash depends only on the statement values inside the window.
type Block struct {
	ResourceID  string
	Hash        Hash
	IndexInFile int // 0-based ordinal of the window's first filtered statement
	StartLine   int // From the window's first statement
	EndLine     int // From the window's last statement
}

// NewBlock creates a Block for the window starting at indexInFile
func NewBlock(resourceID string, hash Hash, indexInFile, startLine, endLine int) Block {
	return Block{
		ResourceID:  resourceID,
		Hash:        hash,
		IndexInFile: indexInFile,
		StartLine:   startLine,
		EndLine:     endLine,
	}
}
