// Package manifest defines the capsule-set manifest: the JSON sidecar
// describing an ordered list of capsules and how they were produced.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/dig-network/digcapsule/errs"
	"github.com/dig-network/digcapsule/ladder"
)

// ConsensusVersion and ChunkingAlgorithm are the two consensus-critical
// string constants every valid manifest must carry.
const (
	ConsensusVersion  = "DIG_CAPSULE_V1"
	ChunkingAlgorithm = "DIG_DETERMINISTIC_V1"
)

// EncryptionInfo is a descriptive label block. The algorithm, key
// derivation name, iteration count, and salt label here are retained for
// wire compatibility; the actual key derivation is the single SHA-256 pass
// in package keyderiv. See the keyderiv package documentation for why this
// mismatch is intentional.
type EncryptionInfo struct {
	Algorithm      string `json:"algorithm"`
	KeyDerivation  string `json:"key_derivation"`
	Iterations     uint32 `json:"iterations"`
	Salt           string `json:"salt"`
}

// DefaultEncryptionInfo is attached to every manifest produced with a
// passphrase.
func DefaultEncryptionInfo() EncryptionInfo {
	return EncryptionInfo{
		Algorithm:     "AES-256-GCM",
		KeyDerivation: "PBKDF2-HMAC-SHA256",
		Iterations:    100000,
		Salt:          "DIG_CAPSULE_SALT_V1",
	}
}

// CompressionInfo records the fixed gzip parameters and the pre-compression
// size of the whole input.
type CompressionInfo struct {
	Algorithm    string `json:"algorithm"`
	Level        uint32 `json:"level"`
	OriginalSize uint64 `json:"original_size"`
}

// Metadata is the descriptive envelope around a capsule set.
type Metadata struct {
	OriginalSize      uint64           `json:"original_size"`
	CapsuleCount      uint32           `json:"capsule_count"`
	CapsuleSizes      []uint32         `json:"capsule_sizes"`
	Checksum          string           `json:"checksum"`
	ChunkingAlgorithm string           `json:"chunking_algorithm"`
	ConsensusVersion  string           `json:"consensus_version"`
	EncryptionInfo    *EncryptionInfo  `json:"encryption_info,omitempty"`
	CompressionInfo   *CompressionInfo `json:"compression_info,omitempty"`
}

// Capsule is one entry in CapsuleSet.Capsules.
type Capsule struct {
	Index      uint32 `json:"index"`
	Size       uint32 `json:"size"`
	Hash       string `json:"hash"`
	Encrypted  bool   `json:"encrypted"`
	Compressed bool   `json:"compressed"`
}

// CapsuleSet is the full manifest: id, ordered capsules, and metadata.
type CapsuleSet struct {
	ID       string    `json:"id"`
	Capsules []Capsule `json:"capsules"`
	Metadata Metadata  `json:"metadata"`
}

// FileNamePrefix returns the first 16 hex characters of the manifest id,
// used as the shared prefix for every capsule file and the metadata file.
func (s CapsuleSet) FileNamePrefix() string {
	if len(s.ID) < 16 {
		return s.ID
	}
	return s.ID[:16]
}

// Validate checks the consensus-critical fields named in spec section 4.8:
// consensus_version, chunking_algorithm, and every capsule.size being on
// the ladder. It returns a wrapped ErrConsensusViolation naming the first
// field that fails.
func (s CapsuleSet) Validate() error {
	if s.Metadata.ConsensusVersion != ConsensusVersion {
		return xerrors.Errorf("consensus_version %q != %q: %w", s.Metadata.ConsensusVersion, ConsensusVersion, errs.ErrConsensusViolation)
	}

	if s.Metadata.ChunkingAlgorithm != ChunkingAlgorithm {
		return xerrors.Errorf("chunking_algorithm %q != %q: %w", s.Metadata.ChunkingAlgorithm, ChunkingAlgorithm, errs.ErrConsensusViolation)
	}

	for _, c := range s.Capsules {
		if !ladder.IsLegalSize(uint64(c.Size)) {
			return xerrors.Errorf("capsule %d has off-ladder size %d: %w", c.Index, c.Size, errs.ErrConsensusViolation)
		}
	}

	return nil
}

// Marshal renders the manifest as pretty-printed JSON, matching spec
// section 4.8.
func (s CapsuleSet) Marshal() ([]byte, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, xerrors.Errorf("marshaling manifest: %w", errs.ErrInvalidFormat)
	}
	return out, nil
}

// MetadataFileName is the manifest sidecar's filename.
func (s CapsuleSet) MetadataFileName() string {
	return s.FileNamePrefix() + "_metadata.json"
}

// Load reads a manifest from path, which may be the metadata file itself or
// a directory containing exactly one file ending in "_metadata.json".
func Load(path string) (CapsuleSet, error) {
	var empty CapsuleSet

	info, err := os.Stat(path)
	if err != nil {
		return empty, xerrors.Errorf("stat %s: %w", path, errs.ErrIO)
	}

	metadataPath := path
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return empty, xerrors.Errorf("reading directory %s: %w", path, errs.ErrIO)
		}

		found := ""
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), "_metadata.json") {
				found = e.Name()
				break
			}
		}
		if found == "" {
			return empty, xerrors.Errorf("no *_metadata.json in %s: %w", path, errs.ErrInvalidFormat)
		}
		metadataPath = filepath.Join(path, found)
	}

	raw, err := os.ReadFile(metadataPath)
	if err != nil {
		return empty, xerrors.Errorf("reading manifest %s: %w", metadataPath, errs.ErrIO)
	}

	var set CapsuleSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return empty, xerrors.Errorf("parsing manifest %s: %w", metadataPath, errs.ErrInvalidFormat)
	}

	return set, nil
}

// Dir returns the directory a loaded manifest's capsule files live in, given
// the path originally passed to Load.
func Dir(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", xerrors.Errorf("stat %s: %w", path, errs.ErrIO)
	}
	if info.IsDir() {
		return path, nil
	}
	return filepath.Dir(path), nil
}
