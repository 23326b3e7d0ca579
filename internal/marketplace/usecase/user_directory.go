package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.uber.org/zap"
)

// UserDirectory owns user records and keeps their ads and favourites lists.
// Every mutation updates the in-memory user and the stored document.
type UserDirectory struct {
	repo   domain.UserRepository
	hasher domain.CredentialVerifier
	logger *logger.Logger
}

func NewUserDirectory(repo domain.UserRepository, hasher domain.CredentialVerifier, log *logger.Logger) *UserDirectory {
	return &UserDirectory{
		repo:   repo,
		hasher: hasher,
		logger: log.Named("UserDirectory"),
	}
}

func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return d.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (d *UserDirectory) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return d.repo.FindByPhone(ctx, strings.TrimSpace(phone))
}

func (d *UserDirectory) FindByCurrentToken(ctx context.Context, token string) (*domain.User, error) {
	return d.repo.FindByCurrentToken(ctx, token)
}

func (d *UserDirectory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return d.repo.FindByID(ctx, id)
}

// Create registers a new account. Email is checked before phone; the unique
// indexes catch the race between two concurrent registrations.
func (d *UserDirectory) Create(ctx context.Context, in domain.RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	phone := strings.TrimSpace(in.Phone)
	d.logger.Info("Creating user", zap.String("email", email))

	existing, err := d.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: email lookup: %v", domain.ErrUnknown, err)
	}
	if existing != nil {
		d.logger.Warn("Email already registered", zap.String("email", email))
		return nil, domain.ErrEmailTaken
	}
	existing, err = d.repo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("%w: phone lookup: %v", domain.ErrUnknown, err)
	}
	if existing != nil {
		d.logger.Warn("Phone already registered", zap.String("email", email))
		return nil, domain.ErrPhoneTaken
	}

	digest, err := d.hasher.Hash(in.Password)
	if err != nil {
		d.logger.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("%w: hash password: %v", domain.ErrUnknown, err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        email,
		Phone:        phone,
		PasswordHash: digest,
		IsOnline:     false,
		LastSeen:     now,
		CurrentToken: nil,
		Ads:          []string{},
		Favourites:   []string{},
		CreatedAt:    now,
	}
	if err := d.repo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		d.logger.Error("Failed to store user", zap.Error(err))
		return nil, fmt.Errorf("%w: create user: %v", domain.ErrUnknown, err)
	}
	d.logger.Info("User created", zap.String("user_id", user.ID))
	return user, nil
}

// SaveSession persists the session fields of user.
func (d *UserDirectory) SaveSession(ctx context.Context, user *domain.User) error {
	if err := d.repo.UpdateSession(ctx, user); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: save session: %v", domain.ErrUnknown, err)
	}
	return nil
}

func (d *UserDirectory) AddAd(ctx context.Context, user *domain.User, adID string) error {
	if err := d.repo.AddAd(ctx, user.ID, adID); err != nil {
		d.logger.Error("Failed to attach ad to owner", zap.String("user_id", user.ID), zap.String("ad_id", adID), zap.Error(err))
		return err
	}
	if !slices.Contains(user.Ads, adID) {
		user.Ads = append(user.Ads, adID)
	}
	return nil
}

func (d *UserDirectory) RemoveAd(ctx context.Context, user *domain.User, adID string) error {
	if err := d.repo.RemoveAd(ctx, user.ID, adID); err != nil {
		d.logger.Error("Failed to detach ad from owner", zap.String("user_id", user.ID), zap.String("ad_id", adID), zap.Error(err))
		return err
	}
	user.Ads = without(user.Ads, adID)
	return nil
}

func (d *UserDirectory) AddAdToFavourites(ctx context.Context, user *domain.User, adID string) error {
	if err := d.repo.AddFavourite(ctx, user.ID, adID); err != nil {
		d.logger.Error("Failed to add favourite to user", zap.String("user_id", user.ID), zap.String("ad_id", adID), zap.Error(err))
		return err
	}
	if !slices.Contains(user.Favourites, adID) {
		user.Favourites = append(user.Favourites, adID)
	}
	return nil
}

func (d *UserDirectory) RemoveAdFromFavourites(ctx context.Context, user *domain.User, adID string) error {
	if err := d.repo.RemoveFavourite(ctx, user.ID, adID); err != nil {
		d.logger.Error("Failed to remove favourite from user", zap.String("user_id", user.ID), zap.String("ad_id", adID), zap.Error(err))
		return err
	}
	user.Favourites = without(user.Favourites, adID)
	return nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
