package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/usecase"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// AdService is the part of the ad catalog the HTTP layer calls.
type AdService interface {
	Create(ctx context.Context, owner *domain.User, spec domain.AdSpec, blobs []domain.MediaBlob) (*domain.Ad, error)
	FindAll(ctx context.Context, q domain.AdQuery) ([]*domain.Ad, int64, error)
	FindOne(ctx context.Context, id string) (*domain.Ad, error)
	FindOneWithOwner(ctx context.Context, id string) (*domain.AdWithOwner, error)
	FindByOwner(ctx context.Context, owner *domain.User) ([]*domain.Ad, error)
	Update(ctx context.Context, actor *domain.User, id string, patch domain.AdPatch, blobs []domain.MediaBlob) (domain.Response, error)
	Remove(ctx context.Context, actor *domain.User, id string) (domain.Response, error)
	Rules() domain.CatalogRules
}

type FavouriteService interface {
	FindFavourites(ctx context.Context, user *domain.User) ([]*domain.Ad, error)
	AddToFavourites(ctx context.Context, user *domain.User, adID string) (domain.Response, error)
	RemoveFromFavourites(ctx context.Context, user *domain.User, adID string) (domain.Response, error)
}

type AuthService interface {
	Register(ctx context.Context, in domain.RegisterInput) (*usecase.Session, error)
	Login(ctx context.Context, email, password string) (*usecase.Session, error)
	Logout(ctx context.Context, user *domain.User) (domain.Response, error)
	Authenticate(ctx context.Context, credential string) (*domain.User, error)
}

// MediaLocator turns a media key into a public URL.
type MediaLocator interface {
	URL(key string) string
}

// Options tune the HTTP boundary. A zero AuthRatePerMinute disables throttling
// of the register and login routes.
type Options struct {
	MaxUploadBytes    int64
	SecureCookies     bool
	AllowedOrigins    []string
	AuthRatePerMinute int
	AuthRateBurst     int
}

// Handler serves the marketplace REST API.
type Handler struct {
	ads        AdService
	favourites FavouriteService
	auth       AuthService
	media      MediaLocator
	metrics    *metrics.MetricsManager
	validator  *validator.Validate
	opts       Options
	logger     *logger.Logger
}

// NewHandler builds the handler. media and mm may be nil.
func NewHandler(ads AdService, favourites FavouriteService, auth AuthService, media MediaLocator, mm *metrics.MetricsManager, opts Options, log *logger.Logger) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	return &Handler{
		ads:        ads,
		favourites: favourites,
		auth:       auth,
		media:      media,
		metrics:    mm,
		validator:  newValidator(ads.Rules),
		opts:       opts,
		logger:     log.Named("HTTPHandler"),
	}
}

// adView is the wire form of an ad. images holds the keys clients send back
// in filesToRemove; imageUrls holds where to fetch them.
type adView struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	State        string    `json:"state"`
	Price        float64   `json:"price"`
	Description  string    `json:"description"`
	Images       []string  `json:"images"`
	ImageURLs    []string  `json:"imageUrls"`
	FavouritedBy []string  `json:"favouritedBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ownerView struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
	Ads      []adView  `json:"ads"`
}

type adWithOwnerView struct {
	adView
	Owner ownerView `json:"owner"`
}

func (h *Handler) toAdView(ad *domain.Ad) adView {
	urls := make([]string, 0, len(ad.Images))
	for _, key := range ad.Images {
		if h.media != nil {
			urls = append(urls, h.media.URL(key))
		} else {
			urls = append(urls, key)
		}
	}
	return adView{
		ID:           ad.ID,
		Owner:        ad.OwnerID,
		Title:        ad.Title,
		Category:     ad.Category,
		State:        string(ad.State),
		Price:        ad.Price,
		Description:  ad.Description,
		Images:       nonNil(ad.Images),
		ImageURLs:    urls,
		FavouritedBy: nonNil(ad.FavouritedBy),
		CreatedAt:    ad.CreatedAt,
	}
}

func (h *Handler) toAdViews(ads []*domain.Ad) []adView {
	out := make([]adView, 0, len(ads))
	for _, ad := range ads {
		out = append(out, h.toAdView(ad))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) inc(pick func(*metrics.MetricsManager) prometheus.Counter) {
	if h.metrics != nil {
		pick(h.metrics).Inc()
	}
}

func (h *Handler) logRequestError(r *http.Request, status int, err error) {
	fields := []zap.Field{zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields...)
		return
	}
	h.logger.Info("Request rejected", fields...)
}
