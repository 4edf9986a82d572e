package service

import (
	"errors"

	"connectrpc.com/connect"
	"github.com/pietro1412/fantacontratti/go/internal/models"
)

// errorToConnect maps domain sentinels onto Connect codes.
func errorToConnect(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}
	return connect.NewError(codeFor(err), err)
}

func codeFor(err error) connect.Code {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return connect.CodeInvalidArgument
	case errors.Is(err, models.ErrValidation):
		return connect.CodeFailedPrecondition
	case errors.Is(err, models.ErrConflict):
		return connect.CodeAlreadyExists
	case errors.Is(err, models.ErrForbidden):
		return connect.CodePermissionDenied
	case errors.Is(err, models.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, models.ErrCommit):
		return connect.CodeUnavailable
	case errors.Is(err, models.ErrBoardCorrupt):
		return connect.CodeDataLoss
	default:
		return connect.CodeInternal
	}
}
