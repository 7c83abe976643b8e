// Package mmapreader memory-maps an input file read-only for the duration
// of a capsule write operation, per spec section 5's resource note: "Large
// input files SHOULD be memory-mapped read-only for chunk extraction."
// Platform support is provided by mmapreader_linux.go; every other
// platform falls back to a buffered whole-file read in
// mmapreader_other.go.
package mmapreader

// Mapping exposes the input bytes read-only. Close releases the mapping
// (or, on the fallback path, simply drops the buffered copy).
type Mapping interface {
	Bytes() []byte
	Close() error
}
