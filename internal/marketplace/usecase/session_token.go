package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionTTL is the lifetime of a signed credential.
const SessionTTL = 24 * time.Hour

const defaultTokenAttempts = 16

// SessionTokenIssuer hands out one live session token per user.
type SessionTokenIssuer struct {
	users       *UserDirectory
	signer      domain.Signer
	newToken    func() string
	maxAttempts int
	logger      *logger.Logger
}

// TokenOption customizes a SessionTokenIssuer.
type TokenOption func(*SessionTokenIssuer)

// WithTokenSource replaces the uuid v4 token source.
func WithTokenSource(src func() string) TokenOption {
	return func(i *SessionTokenIssuer) { i.newToken = src }
}

// WithMaxAttempts caps the collision retry loop.
func WithMaxAttempts(n int) TokenOption {
	return func(i *SessionTokenIssuer) {
		if n > 0 {
			i.maxAttempts = n
		}
	}
}

func NewSessionTokenIssuer(users *UserDirectory, signer domain.Signer, log *logger.Logger, opts ...TokenOption) *SessionTokenIssuer {
	i := &SessionTokenIssuer{
		users:       users,
		signer:      signer,
		newToken:    uuid.NewString,
		maxAttempts: defaultTokenAttempts,
		logger:      log.Named("SessionTokenIssuer"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// GenerateToken draws tokens until one is not held by any user, stores it as
// user's current token and returns it. The previous token stops resolving.
func (i *SessionTokenIssuer) GenerateToken(ctx context.Context, user *domain.User) (string, error) {
	for attempt := 1; attempt <= i.maxAttempts; attempt++ {
		token := i.newToken()
		holder, err := i.users.FindByCurrentToken(ctx, token)
		if err != nil {
			i.logger.Error("Session token lookup failed", zap.Error(err))
			return "", fmt.Errorf("%w: token lookup: %v", domain.ErrUnknown, err)
		}
		if holder != nil {
			i.logger.Warn("Session token collision, drawing again", zap.Int("attempt", attempt))
			continue
		}

		user.CurrentToken = &token
		if err := i.users.SaveSession(ctx, user); err != nil {
			user.CurrentToken = nil
			return "", err
		}
		return token, nil
	}
	i.logger.Error("Session token space exhausted", zap.Int("attempts", i.maxAttempts), zap.String("user_id", user.ID))
	return "", domain.ErrTokenSpaceExhausted
}

// CreateSignedToken wraps a session token into a signed credential valid for SessionTTL.
func (i *SessionTokenIssuer) CreateSignedToken(sessionToken string) (string, time.Duration, error) {
	credential, err := i.signer.Sign(sessionToken, SessionTTL)
	if err != nil {
		i.logger.Error("Failed to sign session token", zap.Error(err))
		return "", 0, fmt.Errorf("%w: sign credential: %v", domain.ErrUnknown, err)
	}
	return credential, SessionTTL, nil
}

// ParseSignedToken returns the session token inside credential.
func (i *SessionTokenIssuer) ParseSignedToken(credential string) (string, error) {
	token, err := i.signer.Parse(credential)
	if err != nil || token == "" {
		return "", fmt.Errorf("%w: bad credential", domain.ErrUnauthorized)
	}
	return token, nil
}
