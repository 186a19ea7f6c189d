// Package casenode defines the data stored on a case's coordination node and
// the versioned binary format used to persist it.
package casenode

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jathurchan/casecoord/types"
)

const (
	// CurrentVersion is the version written by Encode for new records.
	CurrentVersion uint32 = 1

	// MetadataDateLayout is the layout of creation dates found in case metadata files.
	MetadataDateLayout = "2006/01/02 15:04:05 (MST)"
)

// ContentItem identifies a piece of case content that can be flagged as deleted.
type ContentItem int16

const (
	ContentCaseDB            ContentItem = 1
	ContentCaseDir           ContentItem = 2
	ContentTextIndex         ContentItem = 4
	ContentDataSources       ContentItem = 8
	ContentManifestFileNodes ContentItem = 16
)

var contentItemNames = map[ContentItem]string{
	ContentCaseDB:            "case database",
	ContentCaseDir:           "case directory",
	ContentTextIndex:         "text index",
	ContentDataSources:       "data sources",
	ContentManifestFileNodes: "manifest file nodes",
}

func (c ContentItem) String() string {
	if name, ok := contentItemNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ContentItem(%d)", int16(c))
}

// Record is the payload of a case's coordination node.
//
// Version 0 records carry only the header (Version and ErrorsOccurred). The
// remaining fields were added in version 1 and are left at their zero values
// when a version 0 payload is decoded.
type Record struct {
	Version        uint32
	ErrorsOccurred bool

	Directory        string
	CreateDate       int64 // milliseconds since the Unix epoch
	LastAccessDate   int64 // milliseconds since the Unix epoch
	Name             string
	DisplayName      string
	DeletedItemFlags int16
}

// FromCaseMetadata builds a current-version record for a case. createdDate is
// parsed with MetadataDateLayout; the last access date is set to now.
func FromCaseMetadata(caseDirectory, createdDate, name, displayName string) (*Record, error) {
	created, err := ParseCreatedDate(createdDate)
	if err != nil {
		return nil, fmt.Errorf("casenode: parse case creation date %q: %w", createdDate, err)
	}
	return &Record{
		Version:          CurrentVersion,
		ErrorsOccurred:   false,
		Directory:        caseDirectory,
		CreateDate:       created.UnixMilli(),
		LastAccessDate:   time.Now().UnixMilli(),
		Name:             name,
		DisplayName:      displayName,
		DeletedItemFlags: 0,
	}, nil
}

// zoneOffsets resolves zone abbreviations that time.Parse would otherwise
// give a zero offset when the local location does not define them.
var zoneOffsets = map[string]int{
	"UTC": 0, "UT": 0, "GMT": 0, "Z": 0, "WET": 0,
	"WEST": 1 * 3600, "BST": 1 * 3600, "CET": 1 * 3600, "WAT": 1 * 3600,
	"CEST": 2 * 3600, "EET": 2 * 3600, "SAST": 2 * 3600,
	"EEST": 3 * 3600, "MSK": 3 * 3600,
	"IST": 5*3600 + 1800,
	"AWST": 8 * 3600, "SGT": 8 * 3600, "HKT": 8 * 3600,
	"JST": 9 * 3600, "KST": 9 * 3600,
	"ACST": 9*3600 + 1800, "ACDT": 10*3600 + 1800,
	"AEST": 10 * 3600, "AEDT": 11 * 3600,
	"NZST": 12 * 3600, "NZDT": 13 * 3600,
	"NST": -(3*3600 + 1800), "NDT": -(2*3600 + 1800),
	"AST": -4 * 3600, "ADT": -3 * 3600,
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
	"AKST": -9 * 3600, "AKDT": -8 * 3600,
	"HST": -10 * 3600,
}

// ParseCreatedDate parses a case creation date in MetadataDateLayout. The zone
// abbreviation is resolved independently of the host's location; numeric
// zones such as "+0530" or "-03" are accepted too. Unknown abbreviations are
// an error.
func ParseCreatedDate(s string) (time.Time, error) {
	t, err := time.Parse(MetadataDateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	name, offset := t.Zone()
	if known, ok := zoneOffsets[name]; ok {
		offset = known
	} else if numeric, ok := parseNumericZone(name); ok {
		offset = numeric
	} else if offset == 0 {
		return time.Time{}, fmt.Errorf("unknown time zone %q", name)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0,
		time.FixedZone(name, offset)), nil
}

func parseNumericZone(name string) (int, bool) {
	if len(name) != 3 && len(name) != 5 {
		return 0, false
	}
	sign := 1
	switch name[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, false
	}
	hours, err := strconv.Atoi(name[1:3])
	if err != nil {
		return 0, false
	}
	minutes := 0
	if len(name) == 5 {
		if minutes, err = strconv.Atoi(name[3:]); err != nil {
			return 0, false
		}
	}
	return sign * (hours*3600 + minutes*60), true
}

// FromMetadata is FromCaseMetadata over a CaseMetadata snapshot.
func FromMetadata(meta types.CaseMetadata) (*Record, error) {
	return FromCaseMetadata(meta.CaseDirectory, meta.CreatedDate, meta.Name, meta.DisplayName)
}

// FromBytes decodes a node data payload.
func FromBytes(data []byte) (*Record, error) {
	return Decode(data)
}

// ToBytes encodes the record into its binary form.
func (r *Record) ToBytes() []byte {
	return Encode(r)
}

func (r *Record) CreateTime() time.Time {
	return time.UnixMilli(r.CreateDate)
}

func (r *Record) LastAccessTime() time.Time {
	return time.UnixMilli(r.LastAccessDate)
}

// Touch records an access at now.
func (r *Record) Touch(now time.Time) {
	r.LastAccessDate = now.UnixMilli()
}

func (r *Record) SetDeletedFlag(item ContentItem) {
	r.DeletedItemFlags |= int16(item)
}

func (r *Record) IsDeletedFlagSet(item ContentItem) bool {
	return r.DeletedItemFlags&int16(item) != 0
}

// Upgrade fills the version 1 fields of an older record from case metadata,
// keeping its error flag. Current records are returned unchanged.
func Upgrade(r *Record, meta types.CaseMetadata) (*Record, error) {
	if r.Version >= CurrentVersion {
		return r, nil
	}
	upgraded, err := FromMetadata(meta)
	if err != nil {
		return nil, err
	}
	upgraded.ErrorsOccurred = r.ErrorsOccurred
	return upgraded, nil
}
