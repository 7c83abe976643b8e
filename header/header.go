// Package header encodes, decodes, and verifies the 44-byte capsule
// header described in spec section 3.
package header

import (
	"encoding/binary"
	"hash/crc32"

	"golang.org/x/xerrors"

	"github.com/dig-network/digcapsule/errs"
	"github.com/dig-network/digcapsule/ladder"
)

// Size is the total on-wire header length in bytes.
const Size = 44

// Magic identifies a capsule file.
var Magic = [8]byte{'D', 'I', 'G', 'C', 'A', 'P', '0', '1'}

// Version is the only capsule format version this module understands.
const Version = 1

// Flag bits packed into Header.Flags.
const (
	FlagEncrypted  uint32 = 1 << 0
	FlagCompressed uint32 = 1 << 1
)

// Header mirrors the byte table in spec section 3, offset for offset.
type Header struct {
	Version        uint32
	CapsuleIndex   uint32
	CapsuleSize    uint32
	DataSize       uint32
	Flags          uint32
	Reserved       [8]byte
	HeaderChecksum uint32
	DataOffset     uint32
}

// New builds a Header with the checksum already computed.
func New(index uint32, capsuleSize uint32, dataSize uint32, encrypted, compressed bool) Header {
	var flags uint32
	if encrypted {
		flags |= FlagEncrypted
	}
	if compressed {
		flags |= FlagCompressed
	}

	h := Header{
		Version:      Version,
		CapsuleIndex: index,
		CapsuleSize:  capsuleSize,
		DataSize:     dataSize,
		Flags:        flags,
		DataOffset:   Size,
	}
	h.HeaderChecksum = h.checksum()
	return h
}

func (h Header) IsEncrypted() bool  { return h.Flags&FlagEncrypted != 0 }
func (h Header) IsCompressed() bool { return h.Flags&FlagCompressed != 0 }

// checksum computes the CRC32 (IEEE) over every header field except
// HeaderChecksum itself, in on-wire order.
func (h Header) checksum() uint32 {
	buf := make([]byte, 0, Size-4)
	buf = append(buf, Magic[:]...)
	buf = appendU32(buf, h.Version)
	buf = appendU32(buf, h.CapsuleIndex)
	buf = appendU32(buf, h.CapsuleSize)
	buf = appendU32(buf, h.DataSize)
	buf = appendU32(buf, h.Flags)
	buf = append(buf, h.Reserved[:]...)
	buf = appendU32(buf, h.DataOffset)
	return crc32.ChecksumIEEE(buf)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Encode serializes h to the 44-byte on-wire form.
func (h Header) Encode() []byte {
	out := make([]byte, 0, Size)
	out = append(out, Magic[:]...)
	out = appendU32(out, h.Version)
	out = appendU32(out, h.CapsuleIndex)
	out = appendU32(out, h.CapsuleSize)
	out = appendU32(out, h.DataSize)
	out = appendU32(out, h.Flags)
	out = append(out, h.Reserved[:]...)
	out = appendU32(out, h.HeaderChecksum)
	out = appendU32(out, h.DataOffset)
	return out
}

// Decode parses and validates raw as a capsule header: magic, CRC32,
// version, capsule_size membership in the ladder, and data_offset.
func Decode(raw []byte) (Header, error) {
	var h Header

	if len(raw) < Size {
		return h, xerrors.Errorf("header is %d bytes, need %d: %w", len(raw), Size, errs.ErrInvalidFormat)
	}

	if string(raw[0:8]) != string(Magic[:]) {
		return h, xerrors.Errorf("bad magic: %w", errs.ErrInvalidFormat)
	}

	h.Version = binary.LittleEndian.Uint32(raw[8:12])
	h.CapsuleIndex = binary.LittleEndian.Uint32(raw[12:16])
	h.CapsuleSize = binary.LittleEndian.Uint32(raw[16:20])
	h.DataSize = binary.LittleEndian.Uint32(raw[20:24])
	h.Flags = binary.LittleEndian.Uint32(raw[24:28])
	copy(h.Reserved[:], raw[28:36])
	h.HeaderChecksum = binary.LittleEndian.Uint32(raw[36:40])
	h.DataOffset = binary.LittleEndian.Uint32(raw[40:44])

	if got := h.checksum(); got != h.HeaderChecksum {
		return h, xerrors.Errorf("header checksum %08x != computed %08x: %w", h.HeaderChecksum, got, errs.ErrChecksumMismatch)
	}

	if h.Version != Version {
		return h, xerrors.Errorf("unsupported header version %d: %w", h.Version, errs.ErrInvalidFormat)
	}

	if !ladder.IsLegalSize(uint64(h.CapsuleSize)) {
		return h, xerrors.Errorf("capsule_size %d not on the ladder: %w", h.CapsuleSize, errs.ErrUnsupportedSize)
	}

	if h.DataOffset != Size {
		return h, xerrors.Errorf("data_offset %d != %d: %w", h.DataOffset, Size, errs.ErrInvalidFormat)
	}

	return h, nil
}
