package rest

import (
	"context"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/usecase"
	"github.com/stretchr/testify/mock"
)

type MockAdService struct{ mock.Mock }

func (m *MockAdService) Create(ctx context.Context, owner *domain.User, spec domain.AdSpec, blobs []domain.MediaBlob) (*domain.Ad, error) {
	args := m.Called(ctx, owner, spec, blobs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ad), args.Error(1)
}
func (m *MockAdService) FindAll(ctx context.Context, q domain.AdQuery) ([]*domain.Ad, int64, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.Ad), args.Get(1).(int64), args.Error(2)
}
func (m *MockAdService) FindOne(ctx context.Context, id string) (*domain.Ad, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ad), args.Error(1)
}
func (m *MockAdService) FindOneWithOwner(ctx context.Context, id string) (*domain.AdWithOwner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdWithOwner), args.Error(1)
}
func (m *MockAdService) FindByOwner(ctx context.Context, owner *domain.User) ([]*domain.Ad, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ad), args.Error(1)
}
func (m *MockAdService) Update(ctx context.Context, actor *domain.User, id string, patch domain.AdPatch, blobs []domain.MediaBlob) (domain.Response, error) {
	args := m.Called(ctx, actor, id, patch, blobs)
	return args.Get(0).(domain.Response), args.Error(1)
}
func (m *MockAdService) Remove(ctx context.Context, actor *domain.User, id string) (domain.Response, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(domain.Response), args.Error(1)
}
func (m *MockAdService) Rules() domain.CatalogRules {
	args := m.Called()
	return args.Get(0).(domain.CatalogRules)
}

type MockFavouriteService struct{ mock.Mock }

func (m *MockFavouriteService) FindFavourites(ctx context.Context, user *domain.User) ([]*domain.Ad, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ad), args.Error(1)
}
func (m *MockFavouriteService) AddToFavourites(ctx context.Context, user *domain.User, adID string) (domain.Response, error) {
	args := m.Called(ctx, user, adID)
	return args.Get(0).(domain.Response), args.Error(1)
}
func (m *MockFavouriteService) RemoveFromFavourites(ctx context.Context, user *domain.User, adID string) (domain.Response, error) {
	args := m.Called(ctx, user, adID)
	return args.Get(0).(domain.Response), args.Error(1)
}

type MockAuthService struct{ mock.Mock }

func (m *MockAuthService) Register(ctx context.Context, in domain.RegisterInput) (*usecase.Session, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.Session), args.Error(1)
}
func (m *MockAuthService) Login(ctx context.Context, email, password string) (*usecase.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.Session), args.Error(1)
}
func (m *MockAuthService) Logout(ctx context.Context, user *domain.User) (domain.Response, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(domain.Response), args.Error(1)
}
func (m *MockAuthService) Authenticate(ctx context.Context, credential string) (*domain.User, error) {
	args := m.Called(ctx, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type stubLocator struct{}

func (stubLocator) URL(key string) string { return "http://media.local/ads/" + key }
