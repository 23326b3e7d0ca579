package domain

import (
	"context"
	"time"
)

// AdRepository persists ads. FindByID returns ErrAdNotFound for unknown or
// malformed ids.
type AdRepository interface {
	Create(ctx context.Context, ad *Ad) error
	FindByID(ctx context.Context, id string) (*Ad, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*Ad, error)
	Find(ctx context.Context, filter AdFilter, sort AdSort, skip, limit int64) ([]*Ad, error)
	Count(ctx context.Context, filter AdFilter) (int64, error)
	Update(ctx context.Context, ad *Ad) error
	Delete(ctx context.Context, id string) error

	// AddFavouritedBy adds userID to the set and returns ErrAlreadyInFavourites
	// when it was already there.
	AddFavouritedBy(ctx context.Context, adID, userID string) error
	// RemoveFavouritedBy returns ErrNotInFavourites when userID was absent.
	RemoveFavouritedBy(ctx context.Context, adID, userID string) error
}

// UserRepository persists users. The FindBy lookups return (nil, nil) when
// nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	FindByCurrentToken(ctx context.Context, token string) (*User, error)
	// UpdateSession persists the online flag, last seen time and current token.
	UpdateSession(ctx context.Context, user *User) error

	AddAd(ctx context.Context, userID, adID string) error
	RemoveAd(ctx context.Context, userID, adID string) error
	AddFavourite(ctx context.Context, userID, adID string) error
	RemoveFavourite(ctx context.Context, userID, adID string) error
}

// AdCache is a read-through cache for single ads. Get returns (nil, nil) on a miss.
type AdCache interface {
	Get(ctx context.Context, id string) (*Ad, error)
	Set(ctx context.Context, ad *Ad) error
	Delete(ctx context.Context, id string) error
}

// SessionCache maps live session tokens to user ids. Lookup returns "" on a miss.
type SessionCache interface {
	Put(ctx context.Context, token, userID string, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (string, error)
	Drop(ctx context.Context, token string) error
}

// FileStore keeps ad media. Keys returned by Store are publicly retrievable.
type FileStore interface {
	Store(ctx context.Context, data []byte, contentType, name string) (string, error)
	Delete(ctx context.Context, keys []string) error
}

// CredentialVerifier hashes and checks passwords.
type CredentialVerifier interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// Signer turns a session token into a signed bearer credential and back.
type Signer interface {
	Sign(sessionToken string, ttl time.Duration) (string, error)
	Parse(credential string) (string, error)
}

// EventPublisher emits domain events. Failures never fail the operation.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Event subjects.
const (
	SubjectAdCreated      = "ad.created"
	SubjectAdUpdated      = "ad.updated"
	SubjectAdDeleted      = "ad.deleted"
	SubjectAdFavourited   = "ad.favourited"
	SubjectAdUnfavourited = "ad.unfavourited"
	SubjectUserRegistered = "user.registered"
)
