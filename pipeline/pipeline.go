// Package pipeline implements the per-chunk forward and reverse pipelines:
// encrypt -> compress -> size-upgrade -> pad -> frame, and its inverse.
package pipeline

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/gzip"
	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/xerrors"

	"github.com/dig-network/digcapsule/errs"
	"github.com/dig-network/digcapsule/header"
	"github.com/dig-network/digcapsule/ladder"
	"github.com/dig-network/digcapsule/pad"
)

// GzipLevel is fixed for consensus: every node must produce byte-identical
// gzip streams for the same chunk.
const GzipLevel = 6

// NonceVersionMarker is embedded in every deterministic nonce.
const NonceVersionMarker = "DIG1"

// minPaddingPercent and reducedPaddingPercent implement the size-upgrade
// policy of spec section 4.4.
const (
	minPaddingPercent     = 0.05
	reducedPaddingPercent = 0.01
	reducedPaddingFloor   = 1024
)

// Sealed is the output of Seal: a framed, hashed capsule ready to be
// written to disk.
type Sealed struct {
	Header  header.Header
	Payload []byte
	Hash    [32]byte
}

// nonce derives the deterministic 12-byte AES-GCM nonce for chunk index.
func nonce(index uint32) [12]byte {
	var n [12]byte
	binary.BigEndian.PutUint32(n[0:4], index)
	copy(n[4:8], []byte(NonceVersionMarker))
	// n[8:12] stays zero (reserved).
	return n
}

// encrypt seals raw under key using the deterministic nonce for index. A
// nil key is an identity copy, matching spec section 4.2's "no passphrase"
// case.
func encrypt(raw []byte, key *[32]byte, index uint32) ([]byte, error) {
	if key == nil {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, xerrors.Errorf("building aes block cipher: %w", errs.ErrEncryptionFailed)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, xerrors.Errorf("building gcm: %w", errs.ErrEncryptionFailed)
	}

	n := nonce(index)
	ciphertext := gcm.Seal(nil, n[:], raw, nil)

	out := make([]byte, 0, len(n)+len(ciphertext))
	out = append(out, n[:]...)
	out = append(out, ciphertext...)
	return out, nil
}

// decrypt reverses encrypt, rebuilding the deterministic nonce from index
// and skipping the nonce prefix stored ahead of the ciphertext. A nil key is
// an identity copy.
func decrypt(sealed []byte, key *[32]byte, index uint32) ([]byte, error) {
	if key == nil {
		out := make([]byte, len(sealed))
		copy(out, sealed)
		return out, nil
	}

	if len(sealed) < 12 {
		return nil, xerrors.Errorf("sealed chunk shorter than a nonce: %w", errs.ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, xerrors.Errorf("building aes block cipher: %w", errs.ErrDecryptionFailed)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, xerrors.Errorf("building gcm: %w", errs.ErrDecryptionFailed)
	}

	n := nonce(index)
	plain, err := gcm.Open(nil, n[:], sealed[12:], nil)
	if err != nil {
		return nil, xerrors.Errorf("gcm authentication failed: %w", errs.ErrDecryptionFailed)
	}
	return plain, nil
}

// compress gzips raw at the fixed consensus level.
func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, GzipLevel)
	if err != nil {
		return nil, xerrors.Errorf("building gzip writer: %w", errs.ErrCompressionFailed)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, xerrors.Errorf("gzip write: %w", errs.ErrCompressionFailed)
	}
	if err := w.Close(); err != nil {
		return nil, xerrors.Errorf("gzip close: %w", errs.ErrCompressionFailed)
	}
	return buf.Bytes(), nil
}

// decompress gunzips raw.
func decompress(raw []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, xerrors.Errorf("building gzip reader: %w", errs.ErrCompressionFailed)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, xerrors.Errorf("gzip read: %w", errs.ErrCompressionFailed)
	}
	return out, nil
}

// optimalCapsuleSize implements the size-upgrade policy of spec section
// 4.4: prefer the planned target, fall back to reduced padding, then scan
// upward through the ladder, then fall back to the largest size.
func optimalCapsuleSize(compressedLen int, target uint64) uint64 {
	fits := func(size uint64, minPad int) bool {
		required := compressedLen + pad.FrameOverhead + minPad + header.Size
		return uint64(required) <= size
	}

	fivePercent := int(float64(compressedLen) * minPaddingPercent)
	if fits(target, fivePercent) {
		return target
	}

	onePercent := int(float64(compressedLen) * reducedPaddingPercent)
	if onePercent < reducedPaddingFloor {
		onePercent = reducedPaddingFloor
	}
	if fits(target, onePercent) {
		return target
	}

	for _, size := range ladder.Sizes {
		if size > target && fits(size, fivePercent) {
			return size
		}
	}

	return ladder.Largest
}

// Seal runs the forward pipeline for one chunk: encrypt, compress, choose
// the optimal capsule size, pad, and frame with a header. target is the
// planned size from ladder.Plan.
func Seal(chunk []byte, index uint32, key *[32]byte, target uint64) (*Sealed, error) {
	encrypted, err := encrypt(chunk, key, index)
	if err != nil {
		return nil, err
	}

	compressed, err := compress(encrypted)
	if err != nil {
		return nil, err
	}

	capsuleSize := optimalCapsuleSize(len(compressed), target)

	payload, err := pad.Pad(compressed, int(capsuleSize)-header.Size, index)
	if err != nil {
		return nil, err
	}

	h := header.New(index, uint32(capsuleSize), uint32(len(payload)), key != nil, true)

	hasher := sha256simd.New()
	hasher.Write(h.Encode())
	hasher.Write(payload)
	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))

	return &Sealed{Header: h, Payload: payload, Hash: hash}, nil
}

// Open runs the reverse pipeline for one already-parsed capsule: unpad,
// decompress, decrypt. h.CapsuleIndex supplies the nonce; key must match
// whatever Seal used (nil for an unencrypted set).
func Open(h header.Header, payload []byte, key *[32]byte) ([]byte, error) {
	unpadded := pad.Unpad(payload)

	decompressed, err := decompress(unpadded)
	if err != nil {
		return nil, err
	}

	plain, err := decrypt(decompressed, key, h.CapsuleIndex)
	if err != nil {
		return nil, err
	}

	return plain, nil
}
