package utils

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-recall/internal/models"
)

// AppError wraps an operation, human-facing message, and underlying error.
// It carries its own gRPC status so handlers can return it directly.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// GRPCStatus lets status.FromError and status.Code see through AppError.
func (e *AppError) GRPCStatus() *status.Status {
	code := Code(e.Err)
	msg := e.Msg
	if code != codes.Internal && e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return status.New(code, msg)
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// Code classifies err: not-found, invalid argument and unavailable map to
// their gRPC codes, cancellations keep theirs, anything else is Internal.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, models.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, models.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, models.ErrUnavailable):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}
