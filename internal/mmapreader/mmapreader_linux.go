//go:build linux

package mmapreader

import (
	"os"

	"golang.org/x/sys/unix"
)

type linuxMapping struct {
	data []byte
}

func (m *linuxMapping) Bytes() []byte { return m.data }

func (m *linuxMapping) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// Open memory-maps f read-only. f is not closed by Open; the caller owns
// its lifetime independently of the mapping.
func Open(f *os.File) (Mapping, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	if size == 0 {
		return &linuxMapping{data: []byte{}}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return &linuxMapping{data: data}, nil
}
