// Package nodeid implements the 160-bit node identifier used by the
// routing table and the wire format: a big-endian, value-typed id with
// an XOR metric and bit-indexed access.
package nodeid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"math/bits"
	"strings"

	"github.com/MildC/kad-core/internal/kaderr"
)

// Size is the width of a NodeId in bytes (160 bits).
const Size = 20

// BitLen is the width of a NodeId in bits.
const BitLen = Size * 8

// NodeId is a 160-bit identifier, big-endian on the wire. The zero value
// is the reserved "unknown/empty" sentinel used when a field is absent.
type NodeId [Size]byte

// Zero is the empty sentinel id.
var Zero NodeId

// Generate produces a fresh random 160-bit id from a cryptographically
// strong source.
func Generate() (NodeId, error) {
	var id NodeId
	if _, err := rand.Read(id[:]); err != nil {
		return Zero, fmt.Errorf("nodeid: generate: %w", err)
	}
	return id, nil
}

// FromBytes copies b into a NodeId. b must be exactly Size bytes.
func FromBytes(b []byte) (NodeId, error) {
	var id NodeId
	if len(b) != Size {
		return Zero, fmt.Errorf("nodeid: from bytes: want %d bytes, got %d: %w", Size, len(b), kaderr.ErrParse)
	}
	copy(id[:], b)
	return id, nil
}

// FromUint64 places v into the low-order bytes of a NodeId, big-endian,
// matching the natural numeric interpretation used by spec examples
// like NodeId(0x3).
func FromUint64(v uint64) NodeId {
	var id NodeId
	for i := 0; i < 8; i++ {
		id[Size-1-i] = byte(v >> (8 * i))
	}
	return id
}

// BigInt returns the id as an unsigned big-endian integer.
func (id NodeId) BigInt() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// Bytes returns a copy of the id's raw big-endian bytes.
func (id NodeId) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, id[:])
	return out
}

// XOR returns the bitwise XOR distance between id and other.
func (id NodeId) XOR(other NodeId) NodeId {
	var out NodeId
	for i := range id {
		out[i] = id[i] ^ other[i]
	}
	return out
}

// NthBit returns the value (0 or 1) of bit i, counted from the most
// significant bit (bit 0).
func (id NodeId) NthBit(i int) (int, error) {
	if i < 0 || i >= BitLen {
		return 0, fmt.Errorf("nodeid: nth bit %d: %w", i, kaderr.ErrOutOfRange)
	}
	byteIdx := i / 8
	bitIdx := 7 - uint(i%8)
	return int((id[byteIdx] >> bitIdx) & 1), nil
}

// HasPrefix reports whether the top bitlen(p) bits of id equal p, where
// bitlen(0) is defined as 1.
func (id NodeId) HasPrefix(p uint64) bool {
	prefixLen := bits.Len64(p)
	if prefixLen == 0 {
		prefixLen = 1
	}
	for i := 0; i < prefixLen; i++ {
		want := int((p >> uint(prefixLen-1-i)) & 1)
		got, _ := id.NthBit(i) // i < prefixLen <= 64 < BitLen
		if got != want {
			return false
		}
	}
	return true
}

// Equal reports whether id and other represent the same 160-bit value.
func (id NodeId) Equal(other NodeId) bool {
	return id == other
}

// IsZero reports whether id is the empty sentinel.
func (id NodeId) IsZero() bool {
	return id == Zero
}

// Cmp compares id and other as unsigned 160-bit integers, returning -1,
// 0 or 1.
func (id NodeId) Cmp(other NodeId) int {
	for i := range id {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String returns the id's hex representation, prefixed with 0x.
func (id NodeId) String() string {
	return "0x" + strings.ToUpper(id.BigInt().Text(16))
}

// Decimal returns the id's decimal representation.
func (id NodeId) Decimal() string {
	return id.BigInt().Text(10)
}

// Parse parses s as a NodeId. Accepts 0x-prefixed hex, 0b-prefixed
// binary, and plain decimal. Fails on empty or malformed input.
func Parse(s string) (NodeId, error) {
	if s == "" {
		return Zero, fmt.Errorf("nodeid: parse %q: %w", s, kaderr.ErrParse)
	}

	var (
		base int
		body string
	)
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		base, body = 16, s[2:]
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		base, body = 2, s[2:]
	default:
		base, body = 10, s
	}

	if body == "" {
		return Zero, fmt.Errorf("nodeid: parse %q: %w", s, kaderr.ErrParse)
	}

	v, ok := new(big.Int).SetString(body, base)
	if !ok || v.Sign() < 0 {
		return Zero, fmt.Errorf("nodeid: parse %q: %w", s, kaderr.ErrParse)
	}

	max := new(big.Int).Lsh(big.NewInt(1), BitLen)
	if v.Cmp(max) >= 0 {
		return Zero, fmt.Errorf("nodeid: parse %q: value exceeds %d bits: %w", s, BitLen, kaderr.ErrParse)
	}

	raw := v.Bytes()
	var id NodeId
	copy(id[Size-len(raw):], raw)
	return id, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level constants.
func MustParse(s string) NodeId {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}
