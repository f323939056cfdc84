package service

import (
	"errors"
	"fmt"

	"snackbox/backend/services/vending-service/internal/models"
	"snackbox/backend/services/vending-service/internal/repository"
)

// Error kinds. Every error returned by this package matches exactly one of them with
// errors.Is; the underlying cause is joined in.
var (
	// ErrNotFound means a referenced barcode, user or session does not exist.
	ErrNotFound = errors.New("vending: not found")
	// ErrInvalidState means the session changed under the caller, e.g. it closed between
	// lookup and append.
	ErrInvalidState = errors.New("vending: invalid state")
	// ErrValidation means malformed input rejected before any storage mutation.
	ErrValidation = errors.New("vending: validation failed")
	// ErrStorage means the persistence layer failed.
	ErrStorage = errors.New("vending: storage failure")
)

var (
	// ErrNotAdmin is returned when an admin-only action names a non-admin user.
	ErrNotAdmin = errors.New("vending: user is not an admin")
	// ErrInvalidTimeout is returned for a non-positive session timeout.
	ErrInvalidTimeout = errors.New("vending: session timeout must be positive")
)

func validationError(err error) error {
	return errors.Join(ErrValidation, err)
}

// classify tags a storage port error with its kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrStorage):
		return err
	case errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrBarcodeNotFound):
		return errors.Join(ErrNotFound, err)
	case errors.Is(err, repository.ErrSessionNotActive),
		errors.Is(err, repository.ErrActiveSessionExists),
		errors.Is(err, repository.ErrBarcodeInUse):
		return errors.Join(ErrInvalidState, err)
	case errors.Is(err, repository.ErrDuplicateEmail),
		errors.Is(err, repository.ErrDuplicateCode),
		errors.Is(err, models.ErrScanBeforeStart),
		errors.Is(err, models.ErrSessionClosed):
		return errors.Join(ErrValidation, err)
	}
	return errors.Join(ErrStorage, fmt.Errorf("%s: %w", op, err))
}
