//go:build !linux

package mmapreader

import "os"

type bufferMapping struct {
	data []byte
}

func (m *bufferMapping) Bytes() []byte { return m.data }

func (m *bufferMapping) Close() error {
	m.data = nil
	return nil
}

// Open reads all of f into memory. f is not closed by Open.
func Open(f *os.File) (Mapping, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	data := make([]byte, info.Size())
	if _, err := f.ReadAt(data, 0); err != nil && len(data) > 0 {
		return nil, err
	}

	return &bufferMapping{data: data}, nil
}
