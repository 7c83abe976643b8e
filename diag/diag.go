// Package diag implements header-only inspection and consensus-parameter
// diagnostics that do not require decrypting or decompressing a capsule.
package diag

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/xerrors"

	"github.com/dig-network/digcapsule/errs"
	"github.com/dig-network/digcapsule/header"
	"github.com/dig-network/digcapsule/ladder"
)

// FileInfo is the decoded, human-readable view of a capsule file's header.
type FileInfo struct {
	Magic        string
	Version      uint32
	CapsuleIndex uint32
	CapsuleSize  uint32
	DataSize     uint32
	IsEncrypted  bool
	IsCompressed bool
	Checksum     string
}

// readHeader reads and decodes the first header.Size bytes of path.
func readHeader(path string) (header.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return header.Header{}, xerrors.Errorf("opening %s: %w", path, errs.ErrIO)
	}
	defer f.Close()

	buf := make([]byte, header.Size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return header.Header{}, xerrors.Errorf("reading header of %s: %w", path, errs.ErrInvalidFormat)
	}

	return header.Decode(buf)
}

// IsValidCapsuleFile reports whether the first header.Size bytes of path
// parse as a well-formed, consensus-legal capsule header.
func IsValidCapsuleFile(path string) bool {
	_, err := readHeader(path)
	return err == nil
}

// GetCapsuleFileInfo returns the decoded header fields of path, or nil if
// the file does not parse as a valid capsule.
func GetCapsuleFileInfo(path string) *FileInfo {
	h, err := readHeader(path)
	if err != nil {
		return nil
	}

	return &FileInfo{
		Magic:        hex.EncodeToString(header.Magic[:]),
		Version:      h.Version,
		CapsuleIndex: h.CapsuleIndex,
		CapsuleSize:  h.CapsuleSize,
		DataSize:     h.DataSize,
		IsEncrypted:  h.IsEncrypted(),
		IsCompressed: h.IsCompressed(),
		Checksum:     fmt.Sprintf("%08x", h.HeaderChecksum),
	}
}

// minPaddingPercent mirrors the 5% minimum padding floor used by the
// size-upgrade policy, applied here to the smallest ladder entry per
// capsule as a conservative overhead estimate.
const minPaddingPercent = 0.05

// CalculateStorageOverhead estimates the percentage of on-disk storage
// spent on padding: count capsules, each assumed to carry at least 5% of
// ladder.Smallest in padding, relative to originalSize. Returns 0 when
// originalSize is 0.
func CalculateStorageOverhead(originalSize uint64, capsuleCount uint32) float64 {
	if originalSize == 0 {
		return 0
	}

	minPaddingPerCapsule := uint64(float64(ladder.Smallest) * minPaddingPercent)
	totalMinPadding := minPaddingPerCapsule * uint64(capsuleCount)

	return (float64(totalMinPadding) / float64(originalSize)) * 100
}
