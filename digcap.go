// Package digcap implements the deterministic content encapsulation
// format: input bytes become an ordered sequence of fixed-size,
// self-describing capsules whose binary contents are bit-identical across
// every node that processes the same input with the same key.
//
// The operations below are the foreign-function surface a host runtime
// would bind to (spec section 6); this package is the Go-native
// implementation of that contract, not the bridge itself.
package digcap

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/xerrors"

	"github.com/dig-network/digcapsule/capsetio"
	"github.com/dig-network/digcapsule/diag"
	"github.com/dig-network/digcapsule/errs"
	"github.com/dig-network/digcapsule/header"
	"github.com/dig-network/digcapsule/internal/mmapreader"
	"github.com/dig-network/digcapsule/keyderiv"
	"github.com/dig-network/digcapsule/ladder"
	"github.com/dig-network/digcapsule/manifest"
	"github.com/dig-network/digcapsule/pipeline"
)

// Re-exported so a single import path covers the whole operations table.
type (
	CapsuleSet      = manifest.CapsuleSet
	Capsule         = manifest.Capsule
	Metadata        = manifest.Metadata
	EncryptionInfo  = manifest.EncryptionInfo
	CompressionInfo = manifest.CompressionInfo
	CapsuleFileInfo = diag.FileInfo
)

// GetCapsuleSizes returns the five-element size ladder.
func GetCapsuleSizes() []uint64 {
	out := make([]uint64, len(ladder.Sizes))
	copy(out, ladder.Sizes[:])
	return out
}

// GetConsensusVersion returns the consensus version string every manifest
// must carry.
func GetConsensusVersion() string {
	return manifest.ConsensusVersion
}

// IsValidCapsuleFile reports whether path's header parses and validates.
func IsValidCapsuleFile(path string) bool {
	return diag.IsValidCapsuleFile(path)
}

// GetCapsuleFileInfo returns path's decoded header, or nil if invalid.
func GetCapsuleFileInfo(path string) *CapsuleFileInfo {
	return diag.GetCapsuleFileInfo(path)
}

// CalculateStorageOverhead estimates padding overhead as a percentage.
func CalculateStorageOverhead(originalSize uint64, capsuleCount uint32) float64 {
	return diag.CalculateStorageOverhead(originalSize, capsuleCount)
}

// ValidateConsensusParameters checks set's consensus-critical fields,
// returning a wrapped ErrConsensusViolation naming the first violation.
func ValidateConsensusParameters(set CapsuleSet) error {
	return set.Validate()
}

// LoadCapsuleSet loads a manifest from path, which may be the metadata
// file itself or the directory containing it.
func LoadCapsuleSet(path string) (CapsuleSet, error) {
	return manifest.Load(path)
}

// sealedChunk pairs a sealed capsule with the payload bytes capsetio needs
// to write it out.
type sealedChunk struct {
	capsule manifest.Capsule
	payload []byte
}

// buildCapsuleSet runs the forward pipeline over every chunk returned by
// read(target, index), in ascending index order, stopping early if read
// returns a nil chunk, and returns the finished manifest plus the payload
// for every capsule keyed by index.
func buildCapsuleSet(plan []uint64, passphrase string, read func(target uint64, index uint32) ([]byte, error)) (manifest.CapsuleSet, map[uint32][]byte, error) {
	key := keyderiv.Derive(passphrase)
	checksum := sha256simd.New()

	sealed := make([]sealedChunk, 0, len(plan))
	payloads := make(map[uint32][]byte, len(plan))

	var originalSize uint64
	for i, target := range plan {
		index := uint32(i)

		chunk, err := read(target, index)
		if err != nil {
			return manifest.CapsuleSet{}, nil, err
		}
		if chunk == nil {
			break
		}

		checksum.Write(chunk)
		originalSize += uint64(len(chunk))

		s, err := pipeline.Seal(chunk, index, key, target)
		if err != nil {
			return manifest.CapsuleSet{}, nil, err
		}

		sealed = append(sealed, sealedChunk{
			capsule: manifest.Capsule{
				Index:      index,
				Size:       s.Header.CapsuleSize,
				Hash:       hex.EncodeToString(s.Hash[:]),
				Encrypted:  s.Header.IsEncrypted(),
				Compressed: s.Header.IsCompressed(),
			},
			payload: s.Payload,
		})
		payloads[index] = s.Payload
	}

	id := hex.EncodeToString(checksum.Sum(nil))

	capsuleSizes := make([]uint32, len(plan))
	for i, t := range plan {
		capsuleSizes[i] = uint32(t)
	}

	capsules := make([]manifest.Capsule, len(sealed))
	for i, s := range sealed {
		capsules[i] = s.capsule
	}

	var encInfo *manifest.EncryptionInfo
	if key != nil {
		info := manifest.DefaultEncryptionInfo()
		encInfo = &info
	}

	set := manifest.CapsuleSet{
		ID:       id,
		Capsules: capsules,
		Metadata: manifest.Metadata{
			OriginalSize:      originalSize,
			CapsuleCount:      uint32(len(capsules)),
			CapsuleSizes:      capsuleSizes,
			Checksum:          id,
			ChunkingAlgorithm: manifest.ChunkingAlgorithm,
			ConsensusVersion:  manifest.ConsensusVersion,
			EncryptionInfo:    encInfo,
			CompressionInfo: &manifest.CompressionInfo{
				Algorithm:    "gzip",
				Level:        pipeline.GzipLevel,
				OriginalSize: originalSize,
			},
		},
	}

	return set, payloads, nil
}

// CreateDataCapsule builds a capsule set from an in-memory buffer and
// writes it to outputDir. postProcessPadding is accepted for
// source-compatibility with the foreign-function surface and ignored:
// padding always runs after encrypt+compress.
func CreateDataCapsule(data []byte, outputDir string, postProcessPadding bool, passphrase string) (CapsuleSet, error) {
	plan := ladder.Plan(uint64(len(data)))

	read := func(target uint64, index uint32) ([]byte, error) {
		offset := uint64(0)
		for i := uint32(0); i < index; i++ {
			offset += plan[i]
		}
		if offset >= uint64(len(data)) {
			if len(data) == 0 && index == 0 {
				return []byte{}, nil
			}
			return nil, nil
		}

		end := offset + target
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		return data[offset:end], nil
	}

	set, payloads, err := buildCapsuleSet(plan, passphrase, read)
	if err != nil {
		return CapsuleSet{}, err
	}

	if err := capsetio.Write(outputDir, set, payloads); err != nil {
		return CapsuleSet{}, err
	}

	return set, nil
}

// CreateDataCapsuleFromFile is the file-backed counterpart of
// CreateDataCapsule, memory-mapping the input for chunk extraction per
// spec section 5.
func CreateDataCapsuleFromFile(inputPath, outputDir string, postProcessPadding bool, passphrase string) (CapsuleSet, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return CapsuleSet{}, xerrors.Errorf("opening %s: %w", inputPath, errs.ErrIO)
	}
	defer f.Close()

	mapping, err := mmapreader.Open(f)
	if err != nil {
		return CapsuleSet{}, xerrors.Errorf("mapping %s: %w", inputPath, errs.ErrIO)
	}
	defer mapping.Close()

	return CreateDataCapsule(mapping.Bytes(), outputDir, postProcessPadding, passphrase)
}

// ExtractDataCapsule reconstructs the original bytes from the capsule set
// at capsuleSetPath (a manifest file or its directory).
func ExtractDataCapsule(capsuleSetPath, passphrase string) ([]byte, error) {
	set, err := manifest.Load(capsuleSetPath)
	if err != nil {
		return nil, err
	}
	dir, err := manifest.Dir(capsuleSetPath)
	if err != nil {
		return nil, err
	}

	var buf writeBuffer
	if err := reconstructInto(set, dir, passphrase, &buf); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// ExtractDataCapsuleToFile is the file-backed counterpart of
// ExtractDataCapsule.
func ExtractDataCapsuleToFile(capsuleSetPath, outputPath, passphrase string) error {
	set, err := manifest.Load(capsuleSetPath)
	if err != nil {
		return err
	}
	dir, err := manifest.Dir(capsuleSetPath)
	if err != nil {
		return err
	}

	return ReconstructFileFromCapsules(set, dir, outputPath, passphrase)
}

// ReconstructFileFromCapsules reconstructs the original bytes from an
// already-loaded manifest and a directory of capsule files, writing the
// result to outputPath.
func ReconstructFileFromCapsules(set CapsuleSet, capsulesDir, outputPath, passphrase string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return xerrors.Errorf("creating %s: %w", outputPath, errs.ErrIO)
	}
	defer out.Close()

	if err := reconstructInto(set, capsulesDir, passphrase, out); err != nil {
		return err
	}

	return out.Sync()
}

// writeBuffer is an io.Writer over a growing byte slice, used by
// ExtractDataCapsule which returns a buffer rather than writing a file.
type writeBuffer struct{ data []byte }

func (w *writeBuffer) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

// reconstructInto runs the reverse pipeline over every capsule in set, in
// ascending index order, writing plaintext to sink and verifying the
// running SHA-256 against set.Metadata.Checksum at the end.
func reconstructInto(set CapsuleSet, capsulesDir, passphrase string, sink io.Writer) error {
	key := keyderiv.Derive(passphrase)

	sorted := append([]manifest.Capsule(nil), set.Capsules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	running := sha256simd.New()

	for _, c := range sorted {
		path := filepath.Join(capsulesDir, capsetio.CapsuleFileName(set.FileNamePrefix(), c.Index))

		f, err := os.Open(path)
		if err != nil {
			return xerrors.Errorf("opening capsule %s: %w", path, errs.ErrIO)
		}

		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return xerrors.Errorf("reading capsule %s: %w", path, errs.ErrIO)
		}

		if len(raw) < header.Size {
			return xerrors.Errorf("capsule %s shorter than header: %w", path, errs.ErrInvalidFormat)
		}

		h, err := header.Decode(raw[:header.Size])
		if err != nil {
			return xerrors.Errorf("decoding header of %s: %w", path, err)
		}

		plain, err := pipeline.Open(h, raw[header.Size:], key)
		if err != nil {
			return err
		}

		if _, err := sink.Write(plain); err != nil {
			return xerrors.Errorf("writing reconstructed bytes: %w", errs.ErrIO)
		}
		running.Write(plain)
	}

	got := hex.EncodeToString(running.Sum(nil))
	if got != set.Metadata.Checksum {
		return xerrors.Errorf("reconstructed checksum %s != manifest checksum %s: %w", got, set.Metadata.Checksum, errs.ErrChecksumMismatch)
	}

	return nil
}
