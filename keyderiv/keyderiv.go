// Package keyderiv derives the 32-byte symmetric key used by the chunk
// pipeline from an optional passphrase.
//
// NETWORK CONSENSUS CRITICAL: the derivation is a single SHA-256 pass, not
// the PBKDF2-HMAC-SHA256/100000-iterations scheme the manifest's
// encryption_info labels describe. Those labels are retained for wire
// compatibility only; changing the actual derivation breaks consensus with
// every existing deployment. See manifest.EncryptionInfo.
package keyderiv

import sha256simd "github.com/minio/sha256-simd"

// Salt is appended to the passphrase before hashing.
const Salt = "DIG_CAPSULE_SALT_V1"

// Derive returns the 32-byte key for a non-empty passphrase, or nil when
// passphrase is empty — a nil key means the chunk pipeline runs encryption
// as an identity copy.
func Derive(passphrase string) *[32]byte {
	if passphrase == "" {
		return nil
	}

	h := sha256simd.New()
	h.Write([]byte(passphrase))
	h.Write([]byte(Salt))

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return &key
}
