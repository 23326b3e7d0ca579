package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.uber.org/zap"
)

// Session is the result of a successful login.
type Session struct {
	User       *domain.User
	Credential string
	TTL        time.Duration
	Response   domain.Response
}

// AuthService drives the Anonymous <-> Authenticated session transitions.
type AuthService struct {
	users    *UserDirectory
	tokens   *SessionTokenIssuer
	hasher   domain.CredentialVerifier
	sessions domain.SessionCache
	events   domain.EventPublisher
	logger   *logger.Logger
}

// NewAuthService wires the auth flow. sessions and events may be nil.
func NewAuthService(
	users *UserDirectory,
	tokens *SessionTokenIssuer,
	hasher domain.CredentialVerifier,
	sessions domain.SessionCache,
	events domain.EventPublisher,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		sessions: sessions,
		events:   events,
		logger:   log.Named("AuthService"),
	}
}

// Register creates the account and logs it in.
func (a *AuthService) Register(ctx context.Context, in domain.RegisterInput) (*Session, error) {
	user, err := a.users.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	publishEvent(ctx, a.events, a.logger, domain.SubjectUserRegistered, map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	})

	session, err := a.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	session.Response = domain.OK(domain.MsgUserCreated)
	return session, nil
}

// Login verifies the password and issues a fresh session token.
func (a *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		a.logger.Error("User lookup failed during login", zap.Error(err))
		return nil, fmt.Errorf("%w: user lookup: %v", domain.ErrUnknown, err)
	}
	if user == nil || !a.hasher.Verify(password, user.PasswordHash) {
		a.logger.Info("Login rejected", zap.String("email", email))
		return nil, domain.ErrInvalidCredentials
	}
	return a.startSession(ctx, user)
}

func (a *AuthService) startSession(ctx context.Context, user *domain.User) (*Session, error) {
	previous := user.CurrentToken
	user.IsOnline = true

	token, err := a.tokens.GenerateToken(ctx, user)
	if err != nil {
		user.IsOnline = false
		return nil, err
	}
	credential, ttl, err := a.tokens.CreateSignedToken(token)
	if err != nil {
		return nil, err
	}

	if a.sessions != nil {
		if previous != nil {
			if err := a.sessions.Drop(ctx, *previous); err != nil {
				a.logger.Warn("Failed to drop previous session from cache", zap.String("user_id", user.ID), zap.Error(err))
			}
		}
		if err := a.sessions.Put(ctx, token, user.ID, ttl); err != nil {
			a.logger.Warn("Failed to cache session", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	a.logger.Info("User logged in", zap.String("user_id", user.ID))
	return &Session{
		User:       user,
		Credential: credential,
		TTL:        ttl,
		Response:   domain.OK(domain.MsgLoggedIn),
	}, nil
}

// Logout clears the current token and marks the user offline.
func (a *AuthService) Logout(ctx context.Context, user *domain.User) (domain.Response, error) {
	previous := user.CurrentToken
	user.CurrentToken = nil
	user.IsOnline = false
	user.LastSeen = time.Now().UTC()

	if err := a.users.SaveSession(ctx, user); err != nil {
		a.logger.Error("Failed to persist logout", zap.String("user_id", user.ID), zap.Error(err))
		return domain.Response{}, err
	}
	if a.sessions != nil && previous != nil {
		if err := a.sessions.Drop(ctx, *previous); err != nil {
			a.logger.Warn("Failed to drop session from cache", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	a.logger.Info("User logged out", zap.String("user_id", user.ID))
	return domain.OK(domain.MsgLoggedOut), nil
}

// Authenticate resolves a signed credential to the user whose current token it carries.
func (a *AuthService) Authenticate(ctx context.Context, credential string) (*domain.User, error) {
	token, err := a.tokens.ParseSignedToken(credential)
	if err != nil {
		return nil, err
	}

	if a.sessions != nil {
		userID, err := a.sessions.Lookup(ctx, token)
		if err != nil {
			a.logger.Warn("Session cache read failed", zap.Error(err))
		} else if userID != "" {
			user, err := a.users.FindByID(ctx, userID)
			if err == nil && user != nil && user.CurrentToken != nil && *user.CurrentToken == token {
				return user, nil
			}
		}
	}

	user, err := a.users.FindByCurrentToken(ctx, token)
	if err != nil {
		a.logger.Error("Session lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: session lookup: %v", domain.ErrUnknown, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: session is no longer active", domain.ErrUnauthorized)
	}
	return user, nil
}
