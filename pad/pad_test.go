package pad

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dig-network/digcapsule/errs"
)

func TestPadUnpadRoundTrip(t *testing.T) {
	processed := []byte("some compressed ciphertext bytes")
	out, err := Pad(processed, 1024, 7)
	require.NoError(t, err)
	require.Len(t, out, 1024)

	got := Unpad(out)
	require.Equal(t, processed, got)
}

func TestPadIsDeterministic(t *testing.T) {
	processed := []byte("hello world")
	a, err := Pad(processed, 4096, 3)
	require.NoError(t, err)
	b, err := Pad(processed, 4096, 3)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestPadDiffersByIndex(t *testing.T) {
	processed := []byte("hello world")
	a, err := Pad(processed, 4096, 3)
	require.NoError(t, err)
	b, err := Pad(processed, 4096, 4)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestPadNoRoomIsConsensusViolation(t *testing.T) {
	processed := make([]byte, 100)
	_, err := Pad(processed, 100+FrameOverhead, 0)
	require.ErrorIs(t, err, errs.ErrConsensusViolation)
}

func TestUnpadWithoutMarkerReturnsInput(t *testing.T) {
	in := []byte{1, 2, 3}
	require.Equal(t, in, Unpad(in))
}
