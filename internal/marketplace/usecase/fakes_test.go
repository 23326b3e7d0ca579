package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"
)

// memAdRepo is an in-memory domain.AdRepository.
type memAdRepo struct {
	mu        sync.Mutex
	seq       int
	ads       map[string]*domain.Ad
	order     []string
	failWrite error
}

func newMemAdRepo() *memAdRepo {
	return &memAdRepo{ads: map[string]*domain.Ad{}}
}

func cloneAd(a *domain.Ad) *domain.Ad {
	c := *a
	c.Images = slices.Clone(a.Images)
	c.FavouritedBy = slices.Clone(a.FavouritedBy)
	return &c
}

func (r *memAdRepo) Create(_ context.Context, ad *domain.Ad) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return r.failWrite
	}
	r.seq++
	ad.ID = fmt.Sprintf("ad-%02d", r.seq)
	r.ads[ad.ID] = cloneAd(ad)
	r.order = append(r.order, ad.ID)
	return nil
}

func (r *memAdRepo) FindByID(_ context.Context, id string) (*domain.Ad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ad, ok := r.ads[id]
	if !ok {
		return nil, domain.ErrAdNotFound
	}
	return cloneAd(ad), nil
}

func (r *memAdRepo) FindByOwner(_ context.Context, ownerID string) ([]*domain.Ad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Ad
	for _, id := range r.order {
		if ad, ok := r.ads[id]; ok && ad.OwnerID == ownerID {
			out = append(out, cloneAd(ad))
		}
	}
	return out, nil
}

func (r *memAdRepo) matching(f domain.AdFilter) []*domain.Ad {
	var out []*domain.Ad
	phrase := strings.ToLower(f.Phrase)
	for _, id := range r.order {
		ad, ok := r.ads[id]
		if !ok {
			continue
		}
		if ad.Price < f.MinPrice || ad.Price > f.MaxPrice {
			continue
		}
		if f.Category != "" && f.Category != domain.CategoryAll && ad.Category != f.Category {
			continue
		}
		if f.RequireImages && len(ad.Images) == 0 {
			continue
		}
		if phrase != "" && !strings.Contains(strings.ToLower(ad.Title), phrase) && !strings.Contains(strings.ToLower(ad.Description), phrase) {
			continue
		}
		out = append(out, cloneAd(ad))
	}
	return out
}

func (r *memAdRepo) Find(_ context.Context, f domain.AdFilter, s domain.AdSort, skip, limit int64) ([]*domain.Ad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ads := r.matching(f)
	sort.SliceStable(ads, func(i, j int) bool {
		switch s {
		case domain.SortPriceAsc:
			return ads[i].Price < ads[j].Price
		case domain.SortPriceDesc:
			return ads[i].Price > ads[j].Price
		}
		return ads[i].CreatedAt.After(ads[j].CreatedAt)
	})
	if skip >= int64(len(ads)) {
		return []*domain.Ad{}, nil
	}
	end := skip + limit
	if end > int64(len(ads)) {
		end = int64(len(ads))
	}
	return ads[skip:end], nil
}

func (r *memAdRepo) Count(_ context.Context, f domain.AdFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(f))), nil
}

func (r *memAdRepo) Update(_ context.Context, ad *domain.Ad) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return r.failWrite
	}
	if _, ok := r.ads[ad.ID]; !ok {
		return domain.ErrAdNotFound
	}
	r.ads[ad.ID] = cloneAd(ad)
	return nil
}

func (r *memAdRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ads[id]; !ok {
		return domain.ErrAdNotFound
	}
	delete(r.ads, id)
	return nil
}

func (r *memAdRepo) AddFavouritedBy(_ context.Context, adID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ad, ok := r.ads[adID]
	if !ok {
		return domain.ErrAdNotFound
	}
	if slices.Contains(ad.FavouritedBy, userID) {
		return domain.ErrAlreadyInFavourites
	}
	ad.FavouritedBy = append(ad.FavouritedBy, userID)
	return nil
}

func (r *memAdRepo) RemoveFavouritedBy(_ context.Context, adID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ad, ok := r.ads[adID]
	if !ok {
		return domain.ErrAdNotFound
	}
	if !slices.Contains(ad.FavouritedBy, userID) {
		return domain.ErrNotInFavourites
	}
	ad.FavouritedBy = without(ad.FavouritedBy, userID)
	return nil
}

func (r *memAdRepo) stored(id string) (*domain.Ad, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ad, ok := r.ads[id]
	if !ok {
		return nil, false
	}
	return cloneAd(ad), true
}

// addFan writes userID straight into the stored favouritedBy set.
func (r *memAdRepo) addFan(adID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ad, ok := r.ads[adID]; ok {
		ad.FavouritedBy = append(ad.FavouritedBy, userID)
	}
}

func (r *memAdRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ads)
}

// memUserRepo is an in-memory domain.UserRepository. failFavourite fails
// AddFavourite and RemoveFavourite for the keyed user id.
type memUserRepo struct {
	mu            sync.Mutex
	seq           int
	users         map[string]*domain.User
	failAddAd     error
	failFavourite map[string]error
	tokenReads    int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*domain.User{}, failFavourite: map[string]error{}}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Ads = slices.Clone(u.Ads)
	c.Favourites = slices.Clone(u.Favourites)
	if u.CurrentToken != nil {
		t := *u.CurrentToken
		c.CurrentToken = &t
	}
	return &c
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
		if u.Phone == user.Phone {
			return domain.ErrPhoneTaken
		}
	}
	r.seq++
	user.ID = fmt.Sprintf("user-%02d", r.seq)
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memUserRepo) find(match func(*domain.User) bool) *domain.User {
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u)
		}
	}
	return nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *domain.User) bool { return u.Email == email }), nil
}

func (r *memUserRepo) FindByPhone(_ context.Context, phone string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *domain.User) bool { return u.Phone == phone }), nil
}

func (r *memUserRepo) FindByCurrentToken(_ context.Context, token string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenReads++
	return r.find(func(u *domain.User) bool { return u.CurrentToken != nil && *u.CurrentToken == token }), nil
}

func (r *memUserRepo) UpdateSession(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	stored.IsOnline = user.IsOnline
	stored.LastSeen = user.LastSeen
	stored.CurrentToken = nil
	if user.CurrentToken != nil {
		t := *user.CurrentToken
		stored.CurrentToken = &t
	}
	return nil
}

func (r *memUserRepo) update(userID string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (r *memUserRepo) AddAd(_ context.Context, userID, adID string) error {
	if r.failAddAd != nil {
		return r.failAddAd
	}
	return r.update(userID, func(u *domain.User) {
		if !slices.Contains(u.Ads, adID) {
			u.Ads = append(u.Ads, adID)
		}
	})
}

func (r *memUserRepo) RemoveAd(_ context.Context, userID, adID string) error {
	return r.update(userID, func(u *domain.User) { u.Ads = without(u.Ads, adID) })
}

func (r *memUserRepo) favouriteFailure(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failFavourite[userID]
}

func (r *memUserRepo) AddFavourite(_ context.Context, userID, adID string) error {
	if err := r.favouriteFailure(userID); err != nil {
		return err
	}
	return r.update(userID, func(u *domain.User) {
		if !slices.Contains(u.Favourites, adID) {
			u.Favourites = append(u.Favourites, adID)
		}
	})
}

func (r *memUserRepo) RemoveFavourite(_ context.Context, userID, adID string) error {
	if err := r.favouriteFailure(userID); err != nil {
		return err
	}
	return r.update(userID, func(u *domain.User) { u.Favourites = without(u.Favourites, adID) })
}

func (r *memUserRepo) stored(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u)
	}
	return nil
}

// fakeFiles is a FileStore that keeps blobs in memory. Storing a blob named
// failOn fails.
type fakeFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failOn  string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: map[string][]byte{}}
}

func (f *fakeFiles) Store(_ context.Context, data []byte, _ string, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == f.failOn {
		return "", errors.New("bucket unavailable")
	}
	key := "key-" + name
	f.objects[key] = data
	return key, nil
}

func (f *fakeFiles) Delete(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.objects, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}

func (f *fakeFiles) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeFiles) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

type memAdCache struct {
	mu  sync.Mutex
	ads map[string]*domain.Ad
}

func (c *memAdCache) Get(_ context.Context, id string) (*domain.Ad, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ad, ok := c.ads[id]; ok {
		return cloneAd(ad), nil
	}
	return nil, nil
}

func (c *memAdCache) Set(_ context.Context, ad *domain.Ad) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ads[ad.ID] = cloneAd(ad)
	return nil
}

func (c *memAdCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ads, id)
	return nil
}

type memSessionCache struct {
	mu       sync.Mutex
	sessions map[string]string
}

func (c *memSessionCache) Put(_ context.Context, token, userID string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[token] = userID
	return nil
}

func (c *memSessionCache) Lookup(_ context.Context, token string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[token], nil
}

func (c *memSessionCache) Drop(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
	return nil
}

type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "hashed:" + secret, nil }
func (plainHasher) Verify(secret, digest string) bool  { return digest == "hashed:"+secret }

type prefixSigner struct{}

func (prefixSigner) Sign(token string, _ time.Duration) (string, error) {
	return "signed." + token, nil
}
func (prefixSigner) Parse(credential string) (string, error) {
	token, ok := strings.CutPrefix(credential, "signed.")
	if !ok {
		return "", errors.New("bad signature")
	}
	return token, nil
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

var testRules = domain.CatalogRules{
	Categories: []string{"laptops", "tablets", "smartphones"},
	MinPrice:   0,
	MaxPrice:   100000,
}

type harness struct {
	ads      *memAdRepo
	users    *memUserRepo
	files    *fakeFiles
	cache    *memAdCache
	sessions *memSessionCache
	events   *MockEventPublisher

	directory  *UserDirectory
	tokens     *SessionTokenIssuer
	catalog    *AdCatalog
	favourites *FavouritesCoordinator
	auth       *AuthService
}

func newHarness(t *testing.T, opts ...TokenOption) *harness {
	t.Helper()
	log := logger.FromZap(zaptest.NewLogger(t))
	h := &harness{
		ads:      newMemAdRepo(),
		users:    newMemUserRepo(),
		files:    newFakeFiles(),
		cache:    &memAdCache{ads: map[string]*domain.Ad{}},
		sessions: &memSessionCache{sessions: map[string]string{}},
		events:   new(MockEventPublisher),
	}
	h.events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	h.directory = NewUserDirectory(h.users, plainHasher{}, log)
	h.tokens = NewSessionTokenIssuer(h.directory, prefixSigner{}, log, opts...)
	h.catalog = NewAdCatalog(h.ads, h.directory, h.files, h.cache, h.events, testRules, log)
	h.favourites = NewFavouritesCoordinator(h.catalog, h.directory, h.events, log)
	h.auth = NewAuthService(h.directory, h.tokens, plainHasher{}, h.sessions, h.events, log)
	return h
}

// register creates a user with a unique email and phone derived from name.
func (h *harness) register(t *testing.T, name string) *domain.User {
	t.Helper()
	user, err := h.directory.Create(context.Background(), domain.RegisterInput{
		Username: name,
		Email:    name + "@example.com",
		Phone:    "+3706" + fmt.Sprintf("%07d", len(h.users.users)+1),
		Password: "secret-" + name,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return user
}

func (h *harness) createAd(t *testing.T, owner *domain.User, title, category string, price float64, images ...string) *domain.Ad {
	t.Helper()
	blobs := make([]domain.MediaBlob, 0, len(images))
	for _, name := range images {
		blobs = append(blobs, domain.MediaBlob{Name: name, ContentType: "image/png", Data: []byte(name)})
	}
	ad, err := h.catalog.Create(context.Background(), owner, domain.AdSpec{
		Title:       title,
		Category:    category,
		State:       domain.AdStateUsed,
		Price:       price,
		Description: "Description of " + title,
	}, blobs)
	if err != nil {
		t.Fatalf("create ad %s: %v", title, err)
	}
	return ad
}

func (h *harness) publishedSubjects() []string {
	var subjects []string
	for _, call := range h.events.Calls {
		subjects = append(subjects, call.Arguments.String(1))
	}
	return subjects
}
