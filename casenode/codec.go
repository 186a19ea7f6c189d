package casenode

import (
	"encoding/binary"
	"math"
)

const (
	versionSize      = 4
	flagsSize        = 1
	headerSize       = versionSize + flagsSize
	lengthPrefixSize = 4
	dateSize         = 8
	deletedFlagsSize = 2

	errorsOccurredBit byte = 0x80
)

// Encode serializes r. Every multi-byte integer is big-endian. The version 1
// fields are written when r.Version is at least 1.
func Encode(r *Record) []byte {
	size := headerSize
	if r.Version >= 1 {
		size += lengthPrefixSize + len(r.Directory) +
			2*dateSize +
			lengthPrefixSize + len(r.Name) +
			lengthPrefixSize + len(r.DisplayName) +
			deletedFlagsSize
	}

	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, r.Version)
	var flags byte
	if r.ErrorsOccurred {
		flags |= errorsOccurredBit
	}
	buf = append(buf, flags)

	if r.Version >= 1 {
		buf = writeLengthPrefixedString(buf, r.Directory)
		buf = binary.BigEndian.AppendUint64(buf, uint64(r.CreateDate))
		buf = binary.BigEndian.AppendUint64(buf, uint64(r.LastAccessDate))
		buf = writeLengthPrefixedString(buf, r.Name)
		buf = writeLengthPrefixedString(buf, r.DisplayName)
		buf = binary.BigEndian.AppendUint16(buf, uint16(r.DeletedItemFlags))
	}
	return buf
}

// Decode parses a payload produced by Encode or by an older writer.
// The header is always read; the version 1 extension only if bytes remain.
func Decode(data []byte) (*Record, error) {
	if len(data) == 0 {
		return nil, &InvalidRecordError{Err: ErrEmptyPayload}
	}

	rd := &reader{buf: data}
	r := &Record{}
	if err := decodeHeader(rd, r); err != nil {
		return nil, err
	}
	if rd.remaining() > 0 {
		if err := decodeExtension(rd, r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// decodeHeader reads the version and flags. Reserved flag bits are ignored.
func decodeHeader(rd *reader, r *Record) error {
	version, err := rd.uint32("version")
	if err != nil {
		return err
	}
	flags, err := rd.byte("flags")
	if err != nil {
		return err
	}
	r.Version = version
	r.ErrorsOccurred = flags&errorsOccurredBit != 0
	return nil
}

// decodeExtension reads the fields added in version 1.
func decodeExtension(rd *reader, r *Record) error {
	var err error
	if r.Directory, err = readLengthPrefixedString(rd, "directory"); err != nil {
		return err
	}
	if r.CreateDate, err = rd.int64("create date"); err != nil {
		return err
	}
	if r.LastAccessDate, err = rd.int64("last access date"); err != nil {
		return err
	}
	if r.Name, err = readLengthPrefixedString(rd, "name"); err != nil {
		return err
	}
	if r.DisplayName, err = readLengthPrefixedString(rd, "display name"); err != nil {
		return err
	}
	flags, err := rd.uint16("deleted item flags")
	if err != nil {
		return err
	}
	r.DeletedItemFlags = int16(flags)
	return nil
}

func writeLengthPrefixedString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func readLengthPrefixedString(rd *reader, field string) (string, error) {
	start := rd.off
	n, err := rd.uint32(field)
	if err != nil {
		return "", err
	}
	if n > math.MaxInt32 || int(n) > rd.remaining() {
		return "", &InvalidRecordError{Field: field, Offset: start, Err: ErrBufferUnderflow}
	}
	if n == 0 {
		return "", nil
	}
	b, err := rd.next(field, int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// reader walks a payload and reports underflow with the failing field.
type reader struct {
	buf []byte
	off int
}

func (rd *reader) remaining() int {
	return len(rd.buf) - rd.off
}

func (rd *reader) next(field string, n int) ([]byte, error) {
	if n > rd.remaining() {
		return nil, &InvalidRecordError{Field: field, Offset: rd.off, Err: ErrBufferUnderflow}
	}
	b := rd.buf[rd.off : rd.off+n]
	rd.off += n
	return b, nil
}

func (rd *reader) byte(field string) (byte, error) {
	b, err := rd.next(field, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (rd *reader) uint16(field string) (uint16, error) {
	b, err := rd.next(field, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (rd *reader) uint32(field string) (uint32, error) {
	b, err := rd.next(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (rd *reader) int64(field string) (int64, error) {
	b, err := rd.next(field, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}
