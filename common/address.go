package common

import (
	"bytes"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressLength is the byte length of an address.
const AddressLength = 32

// ErrInvalidAddress is returned when a string or buffer is not a well-formed address.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies an account on the ledger. It is either an ed25519 public key
// (signable) or a program-derived address (never signable).
type Address [AddressLength]byte

// ZeroAddress is the all-zero address.
var ZeroAddress Address

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if s == "" {
		return a, fmt.Errorf("%w: empty string", ErrInvalidAddress)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) != AddressLength {
		return a, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalidAddress, len(b), AddressLength)
	}
	copy(a[:], b)
	return a, nil
}

// MustParseAddress is ParseAddress for constants. It panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes copies a 32 byte buffer into an address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidAddress, len(b), AddressLength)
	}
	copy(a[:], b)
	return a, nil
}

// IsAddress reports whether s is a base58 encoded 32 byte address.
func IsAddress(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) Equal(b Address) bool {
	return bytes.Equal(a[:], b[:])
}

// IsOnCurve reports whether the address decodes to a point on the ed25519 curve,
// i.e. whether a private key could exist for it.
func (a Address) IsOnCurve() bool {
	return IsOnCurve(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IsOnCurve reports whether b is a valid compressed ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != AddressLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
