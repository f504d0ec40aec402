package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgramID = MustParseAddress("57bCSmBzSiVyZEDb8n8W33tyxAcqDCcVnkb1eJ2jfnmP")

func TestFindProgramAddressDeterministic(t *testing.T) {
	seeds := [][]byte{[]byte("cert"), bytes.Repeat([]byte{1}, 32), bytes.Repeat([]byte{2}, 32)}

	a, bumpA, err := FindProgramAddress(seeds, testProgramID)
	require.NoError(t, err)
	b, bumpB, err := FindProgramAddress(seeds, testProgramID)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, bumpA, bumpB)
	assert.False(t, a.IsOnCurve(), "a program address must not be signable")
}

func TestFindProgramAddressMatchesCreate(t *testing.T) {
	seeds := [][]byte{bytes.Repeat([]byte{7}, 32)}
	address, bump, err := FindProgramAddress(seeds, testProgramID)
	require.NoError(t, err)

	created, err := CreateProgramAddress(append(seeds, []byte{bump}), testProgramID)
	require.NoError(t, err)
	assert.Equal(t, address, created)
}

func TestFindProgramAddressDoesNotMutateSeeds(t *testing.T) {
	seeds := make([][]byte, 1, 4)
	seeds[0] = []byte("seed")
	_, _, err := FindProgramAddress(seeds, testProgramID)
	require.NoError(t, err)
	assert.Len(t, seeds, 1)
}

func TestFindProgramAddressUniqueness(t *testing.T) {
	seen := make(map[Address]int)
	for i := 0; i < 64; i++ {
		seeds := [][]byte{[]byte("cert"), bytes.Repeat([]byte{byte(i)}, 32), bytes.Repeat([]byte{byte(255 - i)}, 32)}
		address, _, err := FindProgramAddress(seeds, testProgramID)
		require.NoError(t, err)
		prev, ok := seen[address]
		assert.False(t, ok, "seed set %d collides with %d", i, prev)
		seen[address] = i
	}
}

func TestProgramAddressDependsOnProgram(t *testing.T) {
	seeds := [][]byte{[]byte("stable")}
	a, _, err := FindProgramAddress(seeds, testProgramID)
	require.NoError(t, err)
	b, _, err := FindProgramAddress(seeds, ZeroAddress)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCreateProgramAddressLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{make([]byte, MaxSeedLength+1)}, testProgramID)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	tooMany := make([][]byte, MaxSeeds+1)
	for i := range tooMany {
		tooMany[i] = []byte{byte(i)}
	}
	_, err = CreateProgramAddress(tooMany, testProgramID)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	_, _, err = FindProgramAddress(tooMany[:MaxSeeds], testProgramID)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)
}
