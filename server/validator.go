package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jathurchan/casecoord/logger"
	pb "github.com/jathurchan/casecoord/proto"
	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/types"
)

// PathRequest is a validated GetData, DeleteNode or Children request.
type PathRequest struct {
	Path string
}

// DataRequest is a validated CreateNode or SetData request.
type DataRequest struct {
	Path string
	Data []byte
}

// SessionRequest is a validated KeepAlive or CloseSession request.
type SessionRequest struct {
	SessionID types.SessionID
}

// AcquireRequest is a validated AcquireLock request.
type AcquireRequest struct {
	SessionID types.SessionID
	Path      string
	Mode      types.LockMode
	Timeout   time.Duration
}

// ReleaseRequest is a validated ReleaseLock request.
type ReleaseRequest struct {
	SessionID types.SessionID
	Token     types.LockToken
}

// RequestValidator decodes and validates the parameters of incoming Coordination requests.
// Each method returns a *ValidationError if the request is invalid.
type RequestValidator interface {
	// ValidatePathRequest validates GetData, DeleteNode and Children parameters.
	ValidatePathRequest(req *structpb.Struct) (PathRequest, error)

	// ValidateDataRequest validates CreateNode and SetData parameters.
	ValidateDataRequest(req *structpb.Struct) (DataRequest, error)

	// ValidateSessionRequest validates KeepAlive and CloseSession parameters.
	ValidateSessionRequest(req *structpb.Struct) (SessionRequest, error)

	// ValidateAcquireRequest validates AcquireLock parameters.
	ValidateAcquireRequest(req *structpb.Struct) (AcquireRequest, error)

	// ValidateReleaseRequest validates ReleaseLock parameters.
	ValidateReleaseRequest(req *structpb.Struct) (ReleaseRequest, error)
}

// requestValidator implements the RequestValidator interface.
type requestValidator struct {
	logger logger.Logger
}

// NewRequestValidator creates a new default request validator.
func NewRequestValidator(logger logger.Logger) RequestValidator {
	return &requestValidator{
		logger: logger,
	}
}

func (v *requestValidator) ValidatePathRequest(req *structpb.Struct) (PathRequest, error) {
	path := pb.String(req, pb.FieldPath)
	if err := v.validatePath(path); err != nil {
		return PathRequest{}, err
	}
	return PathRequest{Path: path}, nil
}

func (v *requestValidator) ValidateDataRequest(req *structpb.Struct) (DataRequest, error) {
	path := pb.String(req, pb.FieldPath)
	if err := v.validatePath(path); err != nil {
		return DataRequest{}, err
	}
	data, err := pb.Bytes(req, pb.FieldData)
	if err != nil {
		return DataRequest{}, NewValidationError(pb.FieldData, "<binary>", "data must be base64 encoded")
	}
	if len(data) > MaxNodeDataSize {
		return DataRequest{}, NewValidationError(pb.FieldData, fmt.Sprintf("len:%d", len(data)), fmt.Sprintf(ErrMsgDataTooLarge, MaxNodeDataSize))
	}
	return DataRequest{Path: path, Data: data}, nil
}

func (v *requestValidator) ValidateSessionRequest(req *structpb.Struct) (SessionRequest, error) {
	id, err := v.validateSessionID(pb.String(req, pb.FieldSessionID))
	if err != nil {
		return SessionRequest{}, err
	}
	return SessionRequest{SessionID: id}, nil
}

func (v *requestValidator) ValidateAcquireRequest(req *structpb.Struct) (AcquireRequest, error) {
	id, err := v.validateSessionID(pb.String(req, pb.FieldSessionID))
	if err != nil {
		return AcquireRequest{}, err
	}
	path := pb.String(req, pb.FieldPath)
	if err := v.validatePath(path); err != nil {
		return AcquireRequest{}, err
	}
	modeStr := pb.String(req, pb.FieldMode)
	mode, err := types.ParseLockMode(modeStr)
	if err != nil {
		return AcquireRequest{}, NewValidationError(pb.FieldMode, modeStr, "mode must be \"exclusive\" or \"shared\"")
	}
	timeout := pb.Millis(req, pb.FieldTimeoutMs)
	if timeout < 0 || timeout > MaxLockWaitTimeout {
		return AcquireRequest{}, NewValidationError(pb.FieldTimeoutMs, timeout.String(), fmt.Sprintf(ErrMsgInvalidTimeout, MaxLockWaitTimeout))
	}
	return AcquireRequest{SessionID: id, Path: path, Mode: mode, Timeout: timeout}, nil
}

func (v *requestValidator) ValidateReleaseRequest(req *structpb.Struct) (ReleaseRequest, error) {
	id, err := v.validateSessionID(pb.String(req, pb.FieldSessionID))
	if err != nil {
		return ReleaseRequest{}, err
	}
	token := pb.String(req, pb.FieldToken)
	if token == "" {
		return ReleaseRequest{}, NewValidationError(pb.FieldToken, token, "token cannot be empty")
	}
	if _, err := uuid.Parse(token); err != nil {
		return ReleaseRequest{}, NewValidationError(pb.FieldToken, token, "token must be a value returned by AcquireLock")
	}
	return ReleaseRequest{SessionID: id, Token: types.LockToken(token)}, nil
}

func (v *requestValidator) validatePath(path string) error {
	if path == "" {
		return NewValidationError(pb.FieldPath, path, "path cannot be empty")
	}
	if len(path) > MaxPathLength {
		return NewValidationError(pb.FieldPath, path, fmt.Sprintf(ErrMsgInvalidPath, MaxPathLength))
	}
	if strings.ContainsAny(path, "\x00\n\r\t") {
		return NewValidationError(pb.FieldPath, path, "path contains invalid characters (null, newline, tab)")
	}
	if err := store.ValidatePath(path); err != nil {
		return NewValidationError(pb.FieldPath, path, "path must be absolute without empty segments or a trailing slash")
	}
	return nil
}

func (v *requestValidator) validateSessionID(id string) (types.SessionID, error) {
	if id == "" {
		return "", NewValidationError(pb.FieldSessionID, id, "session_id cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", NewValidationError(pb.FieldSessionID, id, ErrMsgInvalidSessionID)
	}
	return types.SessionID(id), nil
}

// validationErrorType classifies a validation error for metrics.
func validationErrorType(err error) string {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return ErrorTypeInvalidFormat
	}
	switch {
	case strings.Contains(ve.Message, "cannot be empty"):
		return ErrorTypeMissingField
	case strings.Contains(ve.Message, "cannot exceed"), strings.Contains(ve.Message, "length <="):
		return ErrorTypeTooLong
	case strings.Contains(ve.Message, "between"):
		return ErrorTypeOutOfRange
	default:
		return ErrorTypeInvalidFormat
	}
}
