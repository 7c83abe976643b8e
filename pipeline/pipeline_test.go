package pipeline

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dig-network/digcapsule/header"
	"github.com/dig-network/digcapsule/keyderiv"
	"github.com/dig-network/digcapsule/ladder"
)

func TestSealOpenRoundTripNoKey(t *testing.T) {
	chunk := []byte("hello world")
	sealed, err := Seal(chunk, 0, nil, ladder.Smallest)
	require.NoError(t, err)
	require.EqualValues(t, ladder.Smallest, sealed.Header.CapsuleSize)
	require.Len(t, sealed.Payload, int(ladder.Smallest)-header.Size)

	got, err := Open(sealed.Header, sealed.Payload, nil)
	require.NoError(t, err)
	require.Equal(t, chunk, got)
}

func TestSealOpenRoundTripWithKey(t *testing.T) {
	key := keyderiv.Derive("pw")
	chunk := []byte("hello world")

	sealed, err := Seal(chunk, 0, key, ladder.Smallest)
	require.NoError(t, err)

	got, err := Open(sealed.Header, sealed.Payload, key)
	require.NoError(t, err)
	require.Equal(t, chunk, got)
}

func TestSealIsDeterministic(t *testing.T) {
	chunk := []byte("some data to seal deterministically")
	key := keyderiv.Derive("pw")

	a, err := Seal(chunk, 2, key, ladder.Smallest)
	require.NoError(t, err)
	b, err := Seal(chunk, 2, key, ladder.Smallest)
	require.NoError(t, err)

	require.Equal(t, a.Payload, b.Payload)
	require.Equal(t, a.Hash, b.Hash)
}

func TestSealEncryptedDiffersFromPlain(t *testing.T) {
	chunk := []byte("hello world")
	plain, err := Seal(chunk, 0, nil, ladder.Smallest)
	require.NoError(t, err)

	key := keyderiv.Derive("pw")
	enc, err := Seal(chunk, 0, key, ladder.Smallest)
	require.NoError(t, err)

	require.NotEqual(t, plain.Payload, enc.Payload)
}

func TestOpenWrongKeyFails(t *testing.T) {
	chunk := []byte("hello world")
	key := keyderiv.Derive("pw")
	sealed, err := Seal(chunk, 0, key, ladder.Smallest)
	require.NoError(t, err)

	wrongKey := keyderiv.Derive("wrong")
	_, err = Open(sealed.Header, sealed.Payload, wrongKey)
	require.Error(t, err)
}

func TestOptimalCapsuleSizeUpgradesWhenTooSmall(t *testing.T) {
	// Incompressible random data fills the whole planned target, leaving no
	// room for the marker, footer, and 5% padding: this forces an upgrade
	// to the next ladder size.
	big := make([]byte, ladder.Smallest)
	_, err := rand.Read(big)
	require.NoError(t, err)

	sealed, err := Seal(big, 0, nil, ladder.Smallest)
	require.NoError(t, err)
	require.Greater(t, sealed.Header.CapsuleSize, uint32(ladder.Smallest))
}
