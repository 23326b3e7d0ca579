package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the marketplace usecases wraps exactly
// one of them, so the transport layer can switch on errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("media storage failure")
	ErrUnknown      = errors.New("unknown error")
)

var (
	ErrAdNotFound          = fmt.Errorf("%w: there is no such ad", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("%w: there is no such user", ErrNotFound)
	ErrNotInFavourites     = fmt.Errorf("%w: user does not have this ad in favourites", ErrNotFound)
	ErrAlreadyInFavourites = fmt.Errorf("%w: user already has this ad in favourites", ErrConflict)
	ErrEmailTaken          = fmt.Errorf("%w: email is already registered", ErrConflict)
	ErrPhoneTaken          = fmt.Errorf("%w: phone is already registered", ErrConflict)
	// ErrInvalidCredentials is the auth-specific conflict variant.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrConflict)
	ErrNotOwner           = fmt.Errorf("%w: ad belongs to another user", ErrUnauthorized)
	ErrInvalidCategory    = fmt.Errorf("%w: unknown category", ErrValidation)
	ErrInvalidState       = fmt.Errorf("%w: state must be used or new", ErrValidation)
	ErrInvalidPrice       = fmt.Errorf("%w: price is out of bounds", ErrValidation)
	// ErrTokenSpaceExhausted means every drawn session token collided. It
	// points at a broken token generator, not at bad luck.
	ErrTokenSpaceExhausted = fmt.Errorf("%w: session token retries exhausted", ErrUnknown)
)

// Kind returns the error kind err wraps, or ErrUnknown.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrUnauthorized, ErrConflict, ErrStorage} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnknown
}
