package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/usecase"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const goodToken = "good-token"

var testRules = domain.CatalogRules{
	Categories: []string{"laptops", "tablets"},
	MinPrice:   0,
	MaxPrice:   100000,
}

type fixture struct {
	ads  *MockAdService
	favs *MockFavouriteService
	auth *MockAuthService
	user *domain.User
	srv  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ads:  new(MockAdService),
		favs: new(MockFavouriteService),
		auth: new(MockAuthService),
		user: &domain.User{ID: "u1", Username: "alice", Ads: []string{"a1"}},
	}
	f.ads.On("Rules").Return(testRules).Maybe()
	f.auth.On("Authenticate", mock.Anything, goodToken).Return(f.user, nil).Maybe()

	h := NewHandler(f.ads, f.favs, f.auth, stubLocator{}, nil, Options{}, logger.FromZap(zaptest.NewLogger(t)))
	f.srv = NewRouter(h)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+goodToken)
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func multipartBody(t *testing.T, fields [][2]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, kv := range fields {
		require.NoError(t, w.WriteField(kv[0], kv[1]))
	}
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestListAds_ParsesQuery(t *testing.T) {
	f := newFixture(t)
	want := domain.AdQuery{
		Page: 2,
		Sort: domain.SortPriceAsc,
		Filter: domain.AdFilter{
			Category:      "laptops",
			MinPrice:      10,
			MaxPrice:      500,
			RequireImages: true,
			Phrase:        "mac",
		},
	}
	f.ads.On("FindAll", mock.Anything, want).
		Return([]*domain.Ad{{ID: "a1", Title: "MacBook", Images: []string{"k1"}}}, int64(3), nil).Once()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads?p=2&sort=PriceAsc&category=laptops&minprice=10&maxprice=500&withimages=true&phrase=mac", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(3), body["totalPages"])
	assert.Equal(t, float64(2), body["page"])
	ads := body["ads"].([]interface{})
	require.Len(t, ads, 1)
	first := ads[0].(map[string]interface{})
	assert.Equal(t, []interface{}{"k1"}, first["images"])
	assert.Equal(t, []interface{}{"http://media.local/ads/k1"}, first["imageUrls"])
	f.ads.AssertExpectations(t)
}

func TestListAds_Defaults(t *testing.T) {
	f := newFixture(t)
	want := domain.AdQuery{
		Page: 1,
		Sort: domain.SortNewest,
		Filter: domain.AdFilter{
			Category: domain.CategoryAll,
			MinPrice: testRules.MinPrice,
			MaxPrice: testRules.MaxPrice,
		},
	}
	f.ads.On("FindAll", mock.Anything, want).Return([]*domain.Ad{}, int64(0), nil).Once()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decode(t, rec)["ads"])
	f.ads.AssertExpectations(t)
}

func TestListAds_BadPage(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads?p=zero", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.ads.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
}

func TestProtectedRoute_NoCredential(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/favourites", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.StatusError, decode(t, rec)["status"])
}

func TestProtectedRoute_StaleCredential(t *testing.T) {
	f := newFixture(t)
	f.auth.On("Authenticate", mock.Anything, "stale").
		Return(nil, fmt.Errorf("%w: session is no longer active", domain.ErrUnauthorized)).Once()

	req := httptest.NewRequest(http.MethodGet, "/ads/user", nil)
	req.AddCookie(&http.Cookie{Name: CredentialCookie, Value: "stale"})
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgUnauthorized, decode(t, rec)["message"])
}

func TestListOwnAds_CookieCredential(t *testing.T) {
	f := newFixture(t)
	f.ads.On("FindByOwner", mock.Anything, f.user).Return([]*domain.Ad{{ID: "a1"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/ads/user", nil)
	req.AddCookie(&http.Cookie{Name: CredentialCookie, Value: goodToken})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["ads"], 1)
	f.ads.AssertExpectations(t)
}

func TestGetAd_WithOwner(t *testing.T) {
	f := newFixture(t)
	ad := &domain.Ad{ID: "a1", OwnerID: "u1", Title: "Tablet"}
	f.ads.On("FindOneWithOwner", mock.Anything, "a1").Return(&domain.AdWithOwner{
		Ad:    ad,
		Owner: &domain.OwnerProfile{ID: "u1", Username: "alice", Ads: []*domain.Ad{ad}},
	}, nil).Once()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/a1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)["ad"].(map[string]interface{})
	owner := got["owner"].(map[string]interface{})
	assert.Equal(t, "alice", owner["username"])
	assert.Len(t, owner["ads"], 1)
}

func TestGetAd_Plain(t *testing.T) {
	f := newFixture(t)
	f.ads.On("FindOne", mock.Anything, "a1").Return(&domain.Ad{ID: "a1", OwnerID: "u1"}, nil).Once()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/a1?owner=false", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)["ad"].(map[string]interface{})
	assert.Equal(t, "u1", got["owner"])
	f.ads.AssertNotCalled(t, "FindOneWithOwner", mock.Anything, mock.Anything)
}

func TestGetAd_NotFound(t *testing.T) {
	f := newFixture(t)
	f.ads.On("FindOneWithOwner", mock.Anything, "nope").Return(nil, domain.ErrAdNotFound).Once()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/ads/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "there is no such ad", decode(t, rec)["message"])
}

func TestCreateAd_Multipart(t *testing.T) {
	f := newFixture(t)
	spec := domain.AdSpec{
		Title:       "MacBook Pro",
		Category:    "laptops",
		State:       domain.AdStateUsed,
		Price:       1200,
		Description: "Barely used laptop",
	}
	f.ads.On("Create", mock.Anything, f.user, spec, mock.MatchedBy(func(blobs []domain.MediaBlob) bool {
		return len(blobs) == 1 && blobs[0].Name == "photo.jpg" && string(blobs[0].Data) == "jpeg-bytes"
	})).Return(&domain.Ad{ID: "a9", OwnerID: "u1", Title: spec.Title, Images: []string{"key-photo.jpg"}}, nil).Once()

	body, contentType := multipartBody(t, [][2]string{
		{"title", spec.Title},
		{"category", spec.Category},
		{"state", "used"},
		{"price", "1200"},
		{"description", spec.Description},
	}, map[string]string{"photo.jpg": "jpeg-bytes"})
	req := authed(httptest.NewRequest(http.MethodPost, "/ads", body))
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)

	require.Equal(t, http.StatusCreated, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, domain.MsgAdCreated, got["message"])
	assert.Equal(t, "a9", got["ad"].(map[string]interface{})["id"])
	f.ads.AssertExpectations(t)
}

func TestCreateAd_Validation(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartBody(t, [][2]string{
		{"title", "Mac"},
		{"category", "boats"},
		{"state", "broken"},
		{"price", "-5"},
		{"description", "short"},
	}, nil)
	req := authed(httptest.NewRequest(http.MethodPost, "/ads", body))
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg := decode(t, rec)["message"].(string)
	for _, field := range []string{"title", "description", "category", "state", "price"} {
		assert.Contains(t, msg, field)
	}
	f.ads.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateAd_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.ads.On("Create", mock.Anything, f.user, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: store %q: bucket gone", domain.ErrStorage, "a.png")).Once()

	body, contentType := multipartBody(t, [][2]string{
		{"title", "Galaxy Tab"},
		{"category", "tablets"},
		{"state", "new"},
		{"price", "300"},
		{"description", "Sealed in the box"},
	}, map[string]string{"a.png": "png"})
	req := authed(httptest.NewRequest(http.MethodPost, "/ads", body))
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, msgStorageFailure, decode(t, rec)["message"])
}

func TestUpdateAd_MultipartPatch(t *testing.T) {
	f := newFixture(t)
	f.ads.On("Update", mock.Anything, f.user, "a1", mock.MatchedBy(func(p domain.AdPatch) bool {
		return p.Title != nil && *p.Title == "Updated title" &&
			p.Price == nil && p.Category == nil &&
			assert.ObjectsAreEqual(domain.KeyList{"k1", "k2"}, p.FilesToRemove)
	}), mock.Anything).Return(domain.OK(domain.MsgAdUpdated), nil).Once()

	body, contentType := multipartBody(t, [][2]string{
		{"title", "Updated title"},
		{"filesToRemove", "k1"},
		{"filesToRemove", "k2"},
	}, nil)
	req := authed(httptest.NewRequest(http.MethodPatch, "/ads/a1", body))
	req.Header.Set("Content-Type", contentType)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.MsgAdUpdated, decode(t, rec)["message"])
	f.ads.AssertExpectations(t)
}

func TestUpdateAd_JSONPatchSingleKey(t *testing.T) {
	f := newFixture(t)
	price := 250.0
	want := domain.AdPatch{Price: &price, FilesToRemove: domain.KeyList{"k1"}}
	f.ads.On("Update", mock.Anything, f.user, "a1", want, []domain.MediaBlob(nil)).
		Return(domain.OK(domain.MsgAdUpdated), nil).Once()

	req := authed(httptest.NewRequest(http.MethodPatch, "/ads/a1", strings.NewReader(`{"price":250,"filesToRemove":"k1"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	f.ads.AssertExpectations(t)
}

func TestUpdateAd_NotOwner(t *testing.T) {
	f := newFixture(t)
	f.ads.On("Update", mock.Anything, f.user, "b7", mock.Anything, mock.Anything).
		Return(domain.Response{}, domain.ErrNotOwner).Once()

	req := authed(httptest.NewRequest(http.MethodPatch, "/ads/b7", strings.NewReader(`{"title":"Stolen title"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "ad belongs to another user", decode(t, rec)["message"])
}

func TestDeleteAd(t *testing.T) {
	f := newFixture(t)
	f.ads.On("Remove", mock.Anything, f.user, "a1").Return(domain.OK(domain.MsgAdDeleted), nil).Once()
	f.ads.On("Remove", mock.Anything, f.user, "gone").Return(domain.Response{}, domain.ErrAdNotFound).Once()

	rec := f.do(authed(httptest.NewRequest(http.MethodDelete, "/ads/a1", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.MsgAdDeleted, decode(t, rec)["message"])

	rec = f.do(authed(httptest.NewRequest(http.MethodDelete, "/ads/gone", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddFavourite_ReturnsRefreshedList(t *testing.T) {
	f := newFixture(t)
	f.favs.On("AddToFavourites", mock.Anything, f.user, "a2").Return(domain.OK(domain.MsgAdAddedToFavourites), nil).Once()
	f.favs.On("FindFavourites", mock.Anything, f.user).Return([]*domain.Ad{{ID: "a2"}}, nil).Once()

	rec := f.do(authed(httptest.NewRequest(http.MethodPatch, "/favourites/add/a2", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, domain.MsgAdAddedToFavourites, body["message"])
	assert.Len(t, body["ads"], 1)
}

func TestAddFavourite_Conflict(t *testing.T) {
	f := newFixture(t)
	f.favs.On("AddToFavourites", mock.Anything, f.user, "a2").Return(domain.Response{}, domain.ErrAlreadyInFavourites).Once()

	rec := f.do(authed(httptest.NewRequest(http.MethodPatch, "/favourites/add/a2", nil)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user already has this ad in favourites", decode(t, rec)["message"])
	f.favs.AssertNotCalled(t, "FindFavourites", mock.Anything, mock.Anything)
}

func TestRemoveFavourite_NotInFavourites(t *testing.T) {
	f := newFixture(t)
	f.favs.On("RemoveFromFavourites", mock.Anything, f.user, "a3").Return(domain.Response{}, domain.ErrNotInFavourites).Once()

	rec := f.do(authed(httptest.NewRequest(http.MethodPatch, "/favourites/remove/a3", nil)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user does not have this ad in favourites", decode(t, rec)["message"])
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	in := domain.RegisterInput{Username: "bob", Email: "bob@example.com", Phone: "+37060000000", Password: "secret1"}
	f.auth.On("Register", mock.Anything, in).Return(&usecase.Session{
		User:       &domain.User{ID: "u2", Username: "bob", Email: "bob@example.com"},
		Credential: "signed",
		TTL:        24 * time.Hour,
		Response:   domain.OK(domain.MsgUserCreated),
	}, nil).Once()

	raw, _ := json.Marshal(map[string]string{"username": "bob", "email": "bob@example.com", "phone": "+37060000000", "password": "secret1"})
	rec := f.do(httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader(raw)))

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, domain.MsgUserCreated, body["message"])
	assert.Equal(t, "signed", body["token"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CredentialCookie, cookies[0].Name)
	assert.Equal(t, "signed", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int((24 * time.Hour).Seconds()), cookies[0].MaxAge)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	raw := `{"username":"bo","email":"not-an-email","phone":"12","password":"123"}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(raw)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg := decode(t, rec)["message"].(string)
	for _, field := range []string{"username", "email", "phone", "password"} {
		assert.Contains(t, msg, field)
	}
	f.auth.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_PhoneTaken(t *testing.T) {
	f := newFixture(t)
	f.auth.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrPhoneTaken).Once()

	raw := `{"username":"carol","email":"carol@example.com","phone":"+37060000001","password":"secret1"}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(raw)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "phone is already registered", decode(t, rec)["message"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.auth.On("Login", mock.Anything, "bob@example.com", "wrong").Return(nil, domain.ErrInvalidCredentials).Once()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"bob@example.com","password":"wrong"}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgInvalidCredential, decode(t, rec)["message"])
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogout_ClearsCookie(t *testing.T) {
	f := newFixture(t)
	f.auth.On("Logout", mock.Anything, f.user).Return(domain.OK(domain.MsgLoggedOut), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: CredentialCookie, Value: goodToken})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.MsgLoggedOut, decode(t, rec)["message"])
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", domain.ErrInvalidPrice, http.StatusBadRequest, "price is out of bounds"},
		{"not found", domain.ErrUserNotFound, http.StatusNotFound, "there is no such user"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, msgUnauthorized},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, msgInvalidCredential},
		{"conflict", domain.ErrEmailTaken, http.StatusConflict, "email is already registered"},
		{"storage", fmt.Errorf("%w: minio down", domain.ErrStorage), http.StatusBadGateway, msgStorageFailure},
		{"unknown", fmt.Errorf("%w: mongo timeout", domain.ErrUnknown), http.StatusInternalServerError, msgUnknown},
		{"unwrapped", errors.New("raw driver error"), http.StatusInternalServerError, msgUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}
