package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("invalid request")
	ErrUnauthenticated      = errors.New("Please authenticate.")
	ErrForbidden            = errors.New("forbidden")
	ErrEmailTaken           = errors.New("email already taken")
	ErrAccountInactive      = errors.New("account not activated")
	ErrInvalidCredentials   = errors.New("incorrect password")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrTokenExpired         = errors.New("token expired")
	ErrEmailMismatch        = errors.New("email does not match token")
	ErrSessionFinished      = errors.New("session already finished")
	ErrDuplicateParticipant = errors.New("character already joined this session")
	ErrNotParticipant       = errors.New("user not found in session")
	ErrAlreadySpectator     = errors.New("user is already a spectator")
)

var (
	ErrInvalidClass      = fmt.Errorf("%w: class must be one of archer, mage, warrior", ErrValidation)
	ErrInvalidGameStatus = fmt.Errorf("%w: gameStatus must be one of ongoing, started, finished", ErrValidation)
)

// invalid reports a malformed request. The result matches ErrValidation.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
