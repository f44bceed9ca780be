package grpcserver

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/glucokeeper/internal/errs"
)

var codeBySentinel = []struct {
	err  error
	code codes.Code
}{
	{errs.ErrUnauthenticated, codes.Unauthenticated},
	{errs.ErrExpired, codes.Unauthenticated},
	{errs.ErrForbidden, codes.PermissionDenied},
	{errs.ErrNotFound, codes.NotFound},
	{errs.ErrEmptyInput, codes.FailedPrecondition},
	{errs.ErrEmptyWindow, codes.FailedPrecondition},
	{errs.ErrInvalidArgument, codes.InvalidArgument},
	{errs.ErrAlreadyExists, codes.AlreadyExists},
	{errs.ErrRateLimited, codes.ResourceExhausted},
	{errs.ErrUnavailable, codes.Unavailable},
}

// codeOf maps a domain error to its gRPC code; unknown errors are Internal.
func codeOf(err error) codes.Code {
	for _, m := range codeBySentinel {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	if _, ok := status.FromError(err); ok {
		return status.Code(err)
	}
	return codes.Internal
}

// toStatus converts err to a status error. Internal details are not sent to the client.
func toStatus(op string, err error) error {
	code := codeOf(err)
	if code == codes.Internal {
		return status.Errorf(codes.Internal, "%s: internal error", op)
	}
	return status.Errorf(code, "%s: %v", op, err)
}
