package common

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

const (
	// MaxSeeds is the maximum number of seeds for a program address, bump included.
	MaxSeeds = 16
	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32
)

var (
	// ErrMaxSeedLengthExceeded is returned when a seed is too long or there are too many seeds.
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	// ErrInvalidSeeds is returned when the seeds hash to a point on the curve.
	ErrInvalidSeeds = errors.New("provided seeds do not result in a valid address")
	// ErrNoViableBump is returned when no bump in [0, 255] produces an off-curve address.
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
)

var programDerivedAddressMarker = []byte("ProgramDerivedAddress")

// CreateProgramAddress hashes seeds under programID into an address that has no
// private key. It fails if the hash lands on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return ZeroAddress, fmt.Errorf("%w: %d seeds", ErrMaxSeedLengthExceeded, len(seeds))
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return ZeroAddress, fmt.Errorf("%w: seed of %d bytes", ErrMaxSeedLengthExceeded, len(seed))
		}
		_, _ = h.Write(seed)
	}
	_, _ = h.Write(programID[:])
	_, _ = h.Write(programDerivedAddressMarker)

	var address Address
	copy(address[:], h.Sum(nil))
	if address.IsOnCurve() {
		return ZeroAddress, ErrInvalidSeeds
	}
	return address, nil
}

// FindProgramAddress appends a bump byte, from 255 downward, to seeds until
// CreateProgramAddress succeeds. It returns the address and the canonical bump.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return ZeroAddress, 0, fmt.Errorf("%w: %d seeds leaves no room for a bump", ErrMaxSeedLengthExceeded, len(seeds))
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		address, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return address, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return ZeroAddress, 0, err
		}
	}
	return ZeroAddress, 0, ErrNoViableBump
}
