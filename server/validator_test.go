package server

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jathurchan/casecoord/logger"
	pb "github.com/jathurchan/casecoord/proto"
	"github.com/jathurchan/casecoord/testutil"
	"github.com/jathurchan/casecoord/types"
)

func TestRequestValidator_Path(t *testing.T) {
	v := NewRequestValidator(logger.NewNoOpLogger())

	tests := []struct {
		name      string
		path      string
		expectErr bool
	}{
		{"root", "/", false},
		{"nested", "/autopsy/cases/CASE1", false},
		{"empty", "", true},
		{"relative", "autopsy/cases", true},
		{"trailing slash", "/autopsy/", true},
		{"empty segment", "/autopsy//cases", true},
		{"control characters", "/autopsy/\ncases", true},
		{"too long", "/" + strings.Repeat("a", MaxPathLength), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := v.ValidatePathRequest(pb.NewPathRequest(tt.path))
			if tt.expectErr {
				var ve *ValidationError
				testutil.AssertErrorAs(t, err, &ve)
				testutil.AssertEqual(t, pb.FieldPath, ve.Field)
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, tt.path, r.Path)
		})
	}
}

func TestRequestValidator_Data(t *testing.T) {
	v := NewRequestValidator(logger.NewNoOpLogger())

	r, err := v.ValidateDataRequest(pb.NewDataRequest("/a", []byte{0, 1, 2}))
	testutil.RequireNoError(t, err)
	testutil.AssertBytesEqual(t, []byte{0, 1, 2}, r.Data)

	r, err = v.ValidateDataRequest(pb.NewPathRequest("/a"))
	testutil.RequireNoError(t, err)
	testutil.AssertLen(t, r.Data, 0, "absent data is an empty payload")

	bad := pb.NewPathRequest("/a")
	bad.Fields[pb.FieldData] = structpb.NewStringValue("not base64!")
	_, err = v.ValidateDataRequest(bad)
	testutil.AssertError(t, err)

	_, err = v.ValidateDataRequest(pb.NewDataRequest("/a", make([]byte, MaxNodeDataSize+1)))
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, ErrorTypeTooLong, validationErrorType(err))
}

func TestRequestValidator_Session(t *testing.T) {
	v := NewRequestValidator(logger.NewNoOpLogger())
	id := uuid.NewString()

	r, err := v.ValidateSessionRequest(pb.NewSessionRequest(id))
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, types.SessionID(id), r.SessionID)

	_, err = v.ValidateSessionRequest(pb.NewSessionRequest(""))
	testutil.AssertEqual(t, ErrorTypeMissingField, validationErrorType(err))

	_, err = v.ValidateSessionRequest(pb.NewSessionRequest("not-a-session"))
	testutil.AssertEqual(t, ErrorTypeInvalidFormat, validationErrorType(err))
}

func TestRequestValidator_Acquire(t *testing.T) {
	v := NewRequestValidator(logger.NewNoOpLogger())
	id := uuid.NewString()

	tests := []struct {
		name      string
		req       *structpb.Struct
		expectErr string
	}{
		{"exclusive", pb.NewAcquireRequest(id, "/a", "exclusive", time.Second), ""},
		{"shared without wait", pb.NewAcquireRequest(id, "/a", "shared", 0), ""},
		{"missing session", pb.NewAcquireRequest("", "/a", "shared", 0), ErrorTypeMissingField},
		{"bad path", pb.NewAcquireRequest(id, "a", "shared", 0), ErrorTypeInvalidFormat},
		{"bad mode", pb.NewAcquireRequest(id, "/a", "upgrade", 0), ErrorTypeInvalidFormat},
		{"negative timeout", pb.NewAcquireRequest(id, "/a", "shared", -time.Second), ErrorTypeOutOfRange},
		{"timeout too long", pb.NewAcquireRequest(id, "/a", "shared", MaxLockWaitTimeout+time.Second), ErrorTypeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := v.ValidateAcquireRequest(tt.req)
			if tt.expectErr != "" {
				testutil.AssertError(t, err)
				testutil.AssertEqual(t, tt.expectErr, validationErrorType(err))
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, "/a", r.Path)
		})
	}

	r, err := v.ValidateAcquireRequest(pb.NewAcquireRequest(id, "/a", "shared", 1500*time.Millisecond))
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, types.LockShared, r.Mode)
	testutil.AssertEqual(t, 1500*time.Millisecond, r.Timeout)
}

func TestRequestValidator_Release(t *testing.T) {
	v := NewRequestValidator(logger.NewNoOpLogger())
	id := uuid.NewString()
	token := uuid.NewString()

	r, err := v.ValidateReleaseRequest(pb.NewReleaseRequest(id, token))
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, types.LockToken(token), r.Token)

	_, err = v.ValidateReleaseRequest(pb.NewReleaseRequest(id, ""))
	testutil.AssertEqual(t, ErrorTypeMissingField, validationErrorType(err))

	_, err = v.ValidateReleaseRequest(pb.NewReleaseRequest(id, "garbage"))
	testutil.AssertEqual(t, ErrorTypeInvalidFormat, validationErrorType(err))
}
