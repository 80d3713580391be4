package app

import (
	stdErrors "errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
)

// MapError translates lifecycle errors into gRPC status errors for any
// transport in front of the service. Caller errors keep their message;
// everything unknown is flattened to Internal so internals never leak.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case stdErrors.Is(err, domainErr.ErrValidation),
		stdErrors.Is(err, domainErr.ErrStatusChangeNotAllowed):
		return status.Error(codes.InvalidArgument, err.Error())
	case stdErrors.Is(err, domainErr.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case stdErrors.Is(err, domainErr.ErrTerminalState):
		return status.Error(codes.FailedPrecondition, "document is already finalized: "+err.Error())
	case stdErrors.Is(err, domainErr.ErrInvalidTransition),
		stdErrors.Is(err, domainErr.ErrInvalidOperation):
		return status.Error(codes.FailedPrecondition, err.Error())
	case stdErrors.Is(err, domainErr.ErrConcurrentModification):
		return status.Error(codes.Aborted, "document changed concurrently, retry with fresh data")
	case stdErrors.Is(err, domainErr.ErrTimeout):
		return status.Error(codes.DeadlineExceeded, "operation timed out, retry later")
	case stdErrors.Is(err, domainErr.ErrNumberGenerationExhausted):
		return status.Error(codes.Unavailable, "could not allocate a document number, retry later")
	}

	//  Fallback (never leak internals)
	return status.Error(codes.Internal, "internal error")
}

// Code is the gRPC code MapError would produce.
func Code(err error) codes.Code {
	return status.Code(MapError(err))
}
