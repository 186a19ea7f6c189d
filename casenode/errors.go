package casenode

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord is matched by every decoding failure.
	ErrInvalidRecord = errors.New("casenode: invalid node data")

	// ErrBufferUnderflow is returned when a field extends past the end of the payload.
	ErrBufferUnderflow = errors.New("casenode: buffer underflow")

	// ErrEmptyPayload is returned when decoding a nil or zero-length payload.
	ErrEmptyPayload = errors.New("casenode: empty payload")

	// ErrNodeDataNotFound is returned by Read when the case node has no data.
	ErrNodeDataNotFound = errors.New("casenode: node data not found")
)

// InvalidRecordError describes where decoding of a node data payload failed.
type InvalidRecordError struct {
	Field  string // field being decoded when the failure happened
	Offset int    // byte offset of that field
	Err    error  // underlying cause (ErrBufferUnderflow, ErrEmptyPayload)
}

func (e *InvalidRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %v", ErrInvalidRecord, e.Err)
	}
	return fmt.Sprintf("%v: %s at offset %d: %v", ErrInvalidRecord, e.Field, e.Offset, e.Err)
}

func (e *InvalidRecordError) Unwrap() error { return e.Err }

// Is reports ErrInvalidRecord as a match so callers need not know the cause.
func (e *InvalidRecordError) Is(target error) bool {
	return target == ErrInvalidRecord
}
