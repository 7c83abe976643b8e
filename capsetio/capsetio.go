// Package capsetio writes a capsule set to disk: one file per capsule plus
// the pretty-printed JSON manifest, all sharing the manifest id's first 16
// hex characters as a filename prefix.
package capsetio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/dig-network/digcapsule/errs"
	"github.com/dig-network/digcapsule/header"
	"github.com/dig-network/digcapsule/manifest"
)

// pendingCapsule holds one sealed chunk in memory until the final manifest
// id is known, since every capsule's filename is keyed off that id.
type pendingCapsule struct {
	header  header.Header
	payload []byte
}

// CapsuleFileName returns the on-disk name for capsule index under a
// manifest with the given id.
func CapsuleFileName(idPrefix string, index uint32) string {
	return fmt.Sprintf("%s_%03d.capsule", idPrefix, index)
}

// Write serializes every pending capsule plus the manifest into dir. The
// directory is created if missing. Each capsule file is written, flushed,
// and closed before the next one starts, in ascending index order, so a
// crash leaves at most one partially-written file.
func Write(dir string, set manifest.CapsuleSet, payloads map[uint32][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Errorf("creating output directory %s: %w", dir, errs.ErrIO)
	}

	prefix := set.FileNamePrefix()

	for _, c := range set.Capsules {
		payload, ok := payloads[c.Index]
		if !ok {
			return xerrors.Errorf("no payload buffered for capsule %d: %w", c.Index, errs.ErrInvalidFormat)
		}

		h := header.New(c.Index, c.Size, uint32(len(payload)), c.Encrypted, c.Compressed)

		name := CapsuleFileName(prefix, c.Index)
		if err := writeCapsuleFile(dir, name, h, payload); err != nil {
			return err
		}
	}

	raw, err := set.Marshal()
	if err != nil {
		return err
	}

	metaPath := filepath.Join(dir, set.MetadataFileName())
	if err := os.WriteFile(metaPath, raw, 0o644); err != nil {
		return xerrors.Errorf("writing manifest %s: %w", metaPath, errs.ErrIO)
	}

	return nil
}

// writeCapsuleFile writes one capsule through a uniquely-named temporary
// file in dir, then renames it into place, so a crash mid-write never
// leaves a half-written file at the final path.
func writeCapsuleFile(dir, name string, h header.Header, payload []byte) error {
	tmpName := filepath.Join(dir, "."+name+"."+uuid.NewString()+".tmp")

	f, err := os.Create(tmpName)
	if err != nil {
		return xerrors.Errorf("creating temp file for %s: %w", name, errs.ErrIO)
	}

	cleanup := func() {
		f.Close()
		os.Remove(tmpName)
	}

	if _, err := f.Write(h.Encode()); err != nil {
		cleanup()
		return xerrors.Errorf("writing header for %s: %w", name, errs.ErrIO)
	}
	if _, err := f.Write(payload); err != nil {
		cleanup()
		return xerrors.Errorf("writing payload for %s: %w", name, errs.ErrIO)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return xerrors.Errorf("flushing %s: %w", name, errs.ErrIO)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return xerrors.Errorf("closing %s: %w", name, errs.ErrIO)
	}

	finalPath := filepath.Join(dir, name)
	if err := os.Rename(tmpName, finalPath); err != nil {
		os.Remove(tmpName)
		return xerrors.Errorf("renaming into place %s: %w", finalPath, errs.ErrIO)
	}

	return nil
}
