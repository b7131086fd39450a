package service

import (
	stderrors "errors"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/errors"
)

// StoreError translates a repository error into a ServiceError.
// Errors that already carry a ServiceError pass through.
func StoreError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if se := errors.GetServiceError(err); se != nil {
		return se
	}
	switch {
	case stderrors.Is(err, database.ErrNotFound):
		return errors.NotFound(resource, id)
	case stderrors.Is(err, database.ErrConflict):
		return errors.Conflict(resource + " already exists or changed concurrently")
	case stderrors.Is(err, database.ErrInvalidInput):
		return errors.InvalidInput(err.Error())
	case stderrors.Is(err, database.ErrDatabaseError), stderrors.Is(err, database.ErrCircuitOpen):
		return errors.Unavailable("storage temporarily unavailable", err)
	}
	return errors.Internal("failed to access "+resource, err)
}
