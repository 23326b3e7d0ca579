package rest

import (
	"context"
	"net/http"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// ListFavourites handles GET /favourites.
func (h *Handler) ListFavourites(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, domain.Failure(msgUnauthorized))
		return
	}
	ads, err := h.favourites.FindFavourites(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adsResponse{Response: domain.OK(""), Ads: h.toAdViews(ads)})
}

// AddFavourite handles PATCH /favourites/add/{id}.
func (h *Handler) AddFavourite(w http.ResponseWriter, r *http.Request) {
	h.changeFavourite(w, r, h.favourites.AddToFavourites, func(m *metrics.MetricsManager) prometheus.Counter {
		return m.FavouritesAddedTotal
	})
}

// RemoveFavourite handles PATCH /favourites/remove/{id}.
func (h *Handler) RemoveFavourite(w http.ResponseWriter, r *http.Request) {
	h.changeFavourite(w, r, h.favourites.RemoveFromFavourites, func(m *metrics.MetricsManager) prometheus.Counter {
		return m.FavouritesRemovedTotal
	})
}

// changeFavourite applies op and answers with the refreshed favourites list.
func (h *Handler) changeFavourite(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, user *domain.User, adID string) (domain.Response, error),
	counter func(*metrics.MetricsManager) prometheus.Counter,
) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, domain.Failure(msgUnauthorized))
		return
	}
	resp, err := op(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.inc(counter)

	ads, err := h.favourites.FindFavourites(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adsResponse{Response: resp, Ads: h.toAdViews(ads)})
}
