// Package pad implements the deterministic padding and unpadding routine
// described in spec section 4.5: processed bytes, a 4-byte marker, a
// hash-derived filler, and a 4-byte little-endian length footer.
package pad

import (
	"encoding/binary"

	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/xerrors"

	"github.com/dig-network/digcapsule/errs"
)

// Marker separates processed bytes from the deterministic filler.
var Marker = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}

// SeedLabel is appended to the big-endian chunk index before hashing to
// derive the padding filler.
const SeedLabel = "DIG_PADDING_SEED_V1"

// FrameOverhead is the marker plus the 4-byte size footer.
const FrameOverhead = 4 + 4

// seed returns the 32-byte deterministic filler source for chunk index i.
func seed(index uint32) [32]byte {
	var be [4]byte
	binary.BigEndian.PutUint32(be[:], index)

	h := sha256simd.New()
	h.Write(be[:])
	h.Write([]byte(SeedLabel))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Pad appends marker, filler, and footer to processed so the result is
// exactly capacity bytes long. capacity must be at least
// len(processed)+FrameOverhead+1, otherwise there is no room to pad and
// ErrConsensusViolation is returned.
func Pad(processed []byte, capacity int, index uint32) ([]byte, error) {
	padLen := capacity - len(processed) - FrameOverhead
	if padLen <= 0 {
		return nil, xerrors.Errorf("padding chunk %d into %d bytes leaves no room: %w", index, capacity, errs.ErrConsensusViolation)
	}

	out := make([]byte, 0, capacity)
	out = append(out, processed...)
	out = append(out, Marker[:]...)

	h := seed(index)
	for remaining := padLen; remaining > 0; {
		n := remaining
		if n > len(h) {
			n = len(h)
		}
		out = append(out, h[:n]...)
		remaining -= n
	}

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], uint32(len(processed)))
	out = append(out, footer[:]...)

	return out, nil
}

// Unpad reverses Pad. It scans the payload from the tail toward the head,
// excluding the final 4-byte footer, looking for the last occurrence of
// Marker preceded by at least four bytes of processed data room. The footer
// is read as the little-endian length of the processed prefix. If no marker
// is found the entire payload is returned unchanged (the defensive path
// spec section 4.5 calls out).
func Unpad(payload []byte) []byte {
	if len(payload) < FrameOverhead {
		return payload
	}

	footer := payload[len(payload)-4:]
	declaredLen := int(binary.LittleEndian.Uint32(footer))

	// i runs from len(payload)-8 down to 4 (inclusive), so a candidate
	// marker never overlaps the footer and always has at least four bytes
	// in front of it.
	for i := len(payload) - 8; i >= 4; i-- {
		if payload[i] == Marker[0] && payload[i+1] == Marker[1] && payload[i+2] == Marker[2] && payload[i+3] == Marker[3] {
			if declaredLen <= i {
				return payload[:declaredLen]
			}
		}
	}

	return payload
}
