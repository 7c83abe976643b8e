package header

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dig-network/digcapsule/errs"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := New(3, uint32(262144), 1000, true, true)
	raw := h.Encode()
	require.Len(t, raw, Size)

	got, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDecodeFlipAnyBitBreaksChecksum(t *testing.T) {
	h := New(0, uint32(262144), 10, false, true)
	raw := h.Encode()

	for byteIdx := 0; byteIdx < Size; byteIdx++ {
		mutated := append([]byte(nil), raw...)
		mutated[byteIdx] ^= 0x01
		_, err := Decode(mutated)
		if byteIdx < len(Magic) {
			// the magic is compared before the checksum is verified
			require.ErrorIs(t, err, errs.ErrInvalidFormat, "byte %d should break the magic", byteIdx)
			continue
		}
		require.ErrorIs(t, err, errs.ErrChecksumMismatch, "byte %d should break the checksum", byteIdx)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	h := New(0, uint32(262144), 10, false, true)
	raw := h.Encode()
	raw[0] = 'X'
	_, err := Decode(raw)
	require.ErrorIs(t, err, errs.ErrInvalidFormat)
}

func TestDecodeRejectsUnsupportedSize(t *testing.T) {
	h := New(0, uint32(262144), 10, false, true)
	raw := h.Encode()
	// overwrite capsule_size with something off-ladder, then recompute
	// nothing: this must fail on size membership, not checksum, so rebuild
	// the header manually with a bad size and a consistent checksum.
	bad := New(0, 123456, 10, false, true)
	raw = bad.Encode()
	_, err := Decode(raw)
	require.ErrorIs(t, err, errs.ErrUnsupportedSize)
}

func TestFlags(t *testing.T) {
	h := New(0, uint32(262144), 10, true, false)
	require.True(t, h.IsEncrypted())
	require.False(t, h.IsCompressed())
}
