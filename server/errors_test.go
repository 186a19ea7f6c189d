package server

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/testutil"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{fmt.Errorf("get: %w", store.ErrNoNode), codes.NotFound},
		{store.ErrNodeExists, codes.AlreadyExists},
		{store.ErrNotEmpty, codes.FailedPrecondition},
		{store.ErrNotHeld, codes.PermissionDenied},
		{ErrLockTokenNotFound, codes.PermissionDenied},
		{store.ErrInvalidPath, codes.InvalidArgument},
		{store.ErrClosed, codes.Unavailable},
		{ErrSessionNotFound, codes.Unauthenticated},
		{ErrRateLimited, codes.ResourceExhausted},
		{ErrServerStopped, codes.Unavailable},
		{errors.New("disk on fire"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			testutil.AssertEqual(t, tt.code, CodeOf(tt.err))
		})
	}
}

func TestErrorToStatus(t *testing.T) {
	testutil.AssertNil(t, ErrorToStatus(nil))

	st, ok := status.FromError(ErrorToStatus(NewValidationError("path", "x", "bad")))
	testutil.RequireTrue(t, ok)
	testutil.AssertEqual(t, codes.InvalidArgument, st.Code())
	testutil.AssertContains(t, st.Message(), "path")

	existing := status.Error(codes.Aborted, "aborted")
	testutil.AssertEqual(t, existing, ErrorToStatus(existing), "status errors pass through")

	st, _ = status.FromError(ErrorToStatus(store.ErrNoNode))
	testutil.AssertEqual(t, codes.NotFound, st.Code())
	testutil.AssertContains(t, st.Message(), store.ErrNoNode.Error())
}

func TestServerError(t *testing.T) {
	cause := errors.New("cause")
	err := NewServerError("start", cause, "listen failed")
	testutil.AssertErrorIs(t, err, cause)
	testutil.AssertContains(t, err.Error(), "start")
	testutil.AssertContains(t, NewServerError("stop", nil, "oops").Error(), "oops")
}
