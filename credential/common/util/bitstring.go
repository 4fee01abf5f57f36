package util

import (
	"errors"
	"fmt"
)

// MinBitstringLength is the minimum status list length in bits (16KB),
// which gives group privacy to the credentials sharing a list.
const MinBitstringLength = 131072

// MaxBitstringBytes caps a decoded status list at 16MiB, or about 134M entries.
const MaxBitstringBytes = 16 << 20

// ErrIndexOutOfRange is returned when a bit index falls outside the list.
var ErrIndexOutOfRange = errors.New("bit index out of range")

// Bitstring is a status list bitstring. Index 0 is the left-most bit of the
// first byte.
type Bitstring []byte

// NewBitstring allocates a zeroed bitstring holding at least length bits.
func NewBitstring(length int) Bitstring {
	if length < 0 {
		length = 0
	}
	return make(Bitstring, (length+7)/8)
}

// Len returns the number of addressable bits.
func (b Bitstring) Len() int {
	return len(b) * 8
}

// Get returns the bit at index.
func (b Bitstring) Get(index int) (bool, error) {
	if index < 0 || index >= b.Len() {
		return false, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, b.Len())
	}
	return b[index/8]&(1<<(7-uint(index%8))) != 0, nil
}

// Set sets or clears the bit at index.
func (b Bitstring) Set(index int, value bool) error {
	if index < 0 || index >= b.Len() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, b.Len())
	}
	mask := byte(1 << (7 - uint(index%8)))
	if value {
		b[index/8] |= mask
	} else {
		b[index/8] &^= mask
	}
	return nil
}

// Encode gzip-compresses and base64url-encodes the bitstring, producing
// the encodedList value of a status list credential.
func (b Bitstring) Encode() (string, error) {
	return CompressToBase64URL(b)
}

// DecodeBitstring reverses Encode. Lists that inflate past MaxBitstringBytes
// are rejected with ErrInflateLimit.
func DecodeBitstring(encodedList string) (Bitstring, error) {
	raw, err := DecompressFromBase64URL(encodedList, MaxBitstringBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encoded list: %w", err)
	}
	return Bitstring(raw), nil
}
