// Package errs defines the error taxonomy shared across the capsule
// pipeline. Every sentinel here is a value error: call sites wrap it with
// xerrors.Errorf("...: %w", ErrX) so errors.Is still finds the sentinel
// after the wrap.
package errs

import "errors"

var (
	// ErrInvalidFormat is returned when a header or manifest cannot be
	// parsed as a well-formed capsule artifact.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrUnsupportedSize is returned when a capsule_size falls outside the
	// fixed ladder.
	ErrUnsupportedSize = errors.New("unsupported capsule size")

	// ErrChecksumMismatch is returned when a header CRC32 or a manifest
	// checksum fails to verify.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrConsensusViolation is returned when a consensus-critical invariant
	// does not hold (wrong consensus_version, wrong chunking_algorithm, a
	// padding routine with no room to pad, etc).
	ErrConsensusViolation = errors.New("consensus violation")

	// ErrCompressionFailed is returned when gzip encoding or decoding fails.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrDecryptionFailed is returned when AES-256-GCM authentication fails.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrEncryptionFailed is returned when AES-256-GCM sealing fails.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrIO wraps an underlying filesystem error.
	ErrIO = errors.New("io error")
)
