package casenode

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/jathurchan/casecoord/testutil"
)

func sampleRecord() *Record {
	return &Record{
		Version:          CurrentVersion,
		ErrorsOccurred:   true,
		Directory:        `C:\Cases\Case One_20240102_030405`,
		CreateDate:       1704164645000,
		LastAccessDate:   1704250000123,
		Name:             "Case One",
		DisplayName:      "Case One (display)",
		DeletedItemFlags: int16(ContentCaseDB | ContentTextIndex),
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
	}{
		{name: "populated with errors", record: sampleRecord()},
		{
			name: "errors not occurred",
			record: func() *Record {
				r := sampleRecord()
				r.ErrorsOccurred = false
				return r
			}(),
		},
		{name: "empty strings", record: &Record{Version: CurrentVersion}},
		{
			name: "special characters in directory",
			record: &Record{
				Version:        CurrentVersion,
				Directory:      "/mnt/cases/ünïcødé dir/日本語/a\tb",
				CreateDate:     -1,
				LastAccessDate: 0,
				Name:           "n",
				DisplayName:    "ñ",
			},
		},
		{
			name: "all deleted flags",
			record: &Record{
				Version:          CurrentVersion,
				DeletedItemFlags: -1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := Encode(tt.record)
			got, err := Decode(data)
			testutil.RequireNoError(t, err)
			testutil.AssertEqual(t, tt.record, got)
		})
	}
}

func TestEncode_ExactSize(t *testing.T) {
	r := sampleRecord()
	data := Encode(r)

	expected := headerSize +
		lengthPrefixSize + len(r.Directory) +
		2*dateSize +
		lengthPrefixSize + len(r.Name) +
		lengthPrefixSize + len(r.DisplayName) +
		deletedFlagsSize
	testutil.AssertLen(t, data, expected)
}

func TestEncode_BigEndianLayout(t *testing.T) {
	r := &Record{
		Version:          1,
		Directory:        "ab",
		CreateDate:       0x0102030405060708,
		LastAccessDate:   2,
		Name:             "",
		DisplayName:      "x",
		DeletedItemFlags: 0x0102,
	}
	expected := []byte{
		0, 0, 0, 1, // version
		0x00,       // flags
		0, 0, 0, 2, 'a', 'b', // directory
		1, 2, 3, 4, 5, 6, 7, 8, // create date
		0, 0, 0, 0, 0, 0, 0, 2, // last access date
		0, 0, 0, 0, // name
		0, 0, 0, 1, 'x', // display name
		0x01, 0x02, // deleted item flags
	}
	testutil.AssertBytesEqual(t, expected, Encode(r))
}

func TestEncode_FlagsBitIsolation(t *testing.T) {
	withErrors := Encode(&Record{Version: 0, ErrorsOccurred: true})
	withoutErrors := Encode(&Record{Version: 0, ErrorsOccurred: false})

	testutil.AssertBytesEqual(t, []byte{0, 0, 0, 0, 0x80}, withErrors)
	testutil.AssertBytesEqual(t, []byte{0, 0, 0, 0, 0x00}, withoutErrors)
}

func TestDecode_ReservedFlagBitsIgnored(t *testing.T) {
	r, err := Decode([]byte{0, 0, 0, 0, 0x7f})
	testutil.RequireNoError(t, err)
	testutil.AssertFalse(t, r.ErrorsOccurred)

	r, err = Decode([]byte{0, 0, 0, 0, 0xff})
	testutil.RequireNoError(t, err)
	testutil.AssertTrue(t, r.ErrorsOccurred)
}

func TestDecode_VersionZero(t *testing.T) {
	tests := []struct {
		name           string
		data           []byte
		errorsOccurred bool
	}{
		{name: "errors occurred", data: []byte{0, 0, 0, 0, 0x80}, errorsOccurred: true},
		{name: "no errors", data: []byte{0, 0, 0, 0, 0x00}, errorsOccurred: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Decode(tt.data)
			testutil.RequireNoError(t, err)
			testutil.AssertEqual(t, uint32(0), r.Version)
			testutil.AssertEqual(t, tt.errorsOccurred, r.ErrorsOccurred)
			testutil.AssertEqual(t, "", r.Directory)
			testutil.AssertEqual(t, int64(0), r.CreateDate)
			testutil.AssertEqual(t, int64(0), r.LastAccessDate)
			testutil.AssertEqual(t, "", r.Name)
			testutil.AssertEqual(t, "", r.DisplayName)
			testutil.AssertEqual(t, int16(0), r.DeletedItemFlags)
		})
	}
}

func TestDecode_Truncation(t *testing.T) {
	full := Encode(sampleRecord())

	tests := []struct {
		name      string
		data      []byte
		underflow bool
	}{
		{name: "nil", data: nil},
		{name: "empty", data: []byte{}},
		{name: "partial version", data: []byte{0, 0}, underflow: true},
		{name: "missing flags", data: []byte{0, 0, 0, 1}, underflow: true},
		{name: "truncated directory length", data: full[:headerSize+2], underflow: true},
		{name: "truncated directory", data: full[:headerSize+lengthPrefixSize+3], underflow: true},
		{name: "missing deleted flags", data: full[:len(full)-2], underflow: true},
		{name: "half deleted flags", data: full[:len(full)-1], underflow: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Decode(tt.data)
			testutil.AssertNil(t, r)
			testutil.AssertErrorIs(t, err, ErrInvalidRecord)

			var invalid *InvalidRecordError
			testutil.AssertErrorAs(t, err, &invalid)
			testutil.AssertEqual(t, tt.underflow, errors.Is(err, ErrBufferUnderflow))
		})
	}
}

func TestDecode_BadStringLength(t *testing.T) {
	tests := []struct {
		name   string
		length uint32
	}{
		{name: "negative length", length: 0xFFFFFFFF},
		{name: "length past end", length: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte{0, 0, 0, 1, 0}
			data = binary.BigEndian.AppendUint32(data, tt.length)
			data = append(data, "abc"...)

			_, err := Decode(data)
			testutil.AssertErrorIs(t, err, ErrBufferUnderflow)

			var invalid *InvalidRecordError
			testutil.RequireTrue(t, errors.As(err, &invalid))
			testutil.AssertEqual(t, "directory", invalid.Field)
			testutil.AssertEqual(t, headerSize, invalid.Offset)
		})
	}
}

func TestDecodeHeader_StopsAtVersionBoundary(t *testing.T) {
	data := Encode(sampleRecord())
	rd := &reader{buf: data}
	r := &Record{}

	testutil.RequireNoError(t, decodeHeader(rd, r))
	testutil.AssertEqual(t, headerSize, rd.off)
	testutil.AssertEqual(t, CurrentVersion, r.Version)
	testutil.AssertEqual(t, "", r.Directory)

	testutil.RequireNoError(t, decodeExtension(rd, r))
	testutil.AssertEqual(t, 0, rd.remaining())
	testutil.AssertEqual(t, sampleRecord(), r)
}

func TestInvalidRecordError_Message(t *testing.T) {
	err := &InvalidRecordError{Field: "name", Offset: 12, Err: ErrBufferUnderflow}
	testutil.AssertContains(t, err.Error(), "name at offset 12")
	testutil.AssertContains(t, err.Error(), "buffer underflow")

	empty := &InvalidRecordError{Err: ErrEmptyPayload}
	testutil.AssertContains(t, empty.Error(), "empty payload")
}
