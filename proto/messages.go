package proto

import (
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Struct field names used by the Coordination messages.
const (
	FieldPath      = "path"
	FieldData      = "data"
	FieldSessionID = "session_id"
	FieldMode      = "mode"
	FieldTimeoutMs = "timeout_ms"
	FieldToken     = "token"
	FieldAcquired  = "acquired"
	FieldTTLMs     = "ttl_ms"
)

// NewPathRequest builds the parameters of GetData, DeleteNode and Children.
func NewPathRequest(path string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldPath: structpb.NewStringValue(path),
	}}
}

// NewDataRequest builds the parameters of CreateNode and SetData.
func NewDataRequest(path string, data []byte) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldPath: structpb.NewStringValue(path),
		FieldData: structpb.NewStringValue(base64.StdEncoding.EncodeToString(data)),
	}}
}

// NewSessionRequest builds the parameters of KeepAlive and CloseSession.
func NewSessionRequest(sessionID string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldSessionID: structpb.NewStringValue(sessionID),
	}}
}

// NewSessionResponse builds the OpenSession response.
func NewSessionResponse(sessionID string, ttl time.Duration) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldSessionID: structpb.NewStringValue(sessionID),
		FieldTTLMs:     structpb.NewNumberValue(float64(ttl.Milliseconds())),
	}}
}

// NewAcquireRequest builds the AcquireLock parameters. mode is "exclusive" or "shared".
func NewAcquireRequest(sessionID, path, mode string, timeout time.Duration) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldSessionID: structpb.NewStringValue(sessionID),
		FieldPath:      structpb.NewStringValue(path),
		FieldMode:      structpb.NewStringValue(mode),
		FieldTimeoutMs: structpb.NewNumberValue(float64(timeout.Milliseconds())),
	}}
}

// NewAcquireResponse builds the AcquireLock response. token is empty when not acquired.
func NewAcquireResponse(acquired bool, token string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldAcquired: structpb.NewBoolValue(acquired),
		FieldToken:    structpb.NewStringValue(token),
	}}
}

// NewReleaseRequest builds the ReleaseLock parameters.
func NewReleaseRequest(sessionID, token string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldSessionID: structpb.NewStringValue(sessionID),
		FieldToken:     structpb.NewStringValue(token),
	}}
}

// NewStringList builds a Children response.
func NewStringList(values []string) *structpb.ListValue {
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(values))}
	for _, v := range values {
		list.Values = append(list.Values, structpb.NewStringValue(v))
	}
	return list
}

// Strings returns the string elements of a Children response.
func Strings(list *structpb.ListValue) []string {
	out := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

// String returns a string field, or "" when it is absent.
func String(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// Bool returns a boolean field, or false when it is absent.
func Bool(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

// Millis returns a millisecond number field as a duration.
func Millis(s *structpb.Struct, key string) time.Duration {
	return time.Duration(s.GetFields()[key].GetNumberValue()) * time.Millisecond
}

// Bytes decodes a base64 field. An absent field is an empty payload.
func Bytes(s *structpb.Struct, key string) ([]byte, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return []byte{}, nil
	}
	data, err := base64.StdEncoding.DecodeString(v.GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", key, err)
	}
	return data, nil
}
