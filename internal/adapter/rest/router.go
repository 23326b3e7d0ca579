package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter mounts the marketplace routes. The result is wrapped in CORS and
// otelhttp, so it is ready to be served as is.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.RequestLogger)

	r.Group(func(credRouter chi.Router) {
		if h.opts.AuthRatePerMinute > 0 {
			credRouter.Use(NewIPRateLimiter(h.opts.AuthRatePerMinute, h.opts.AuthRateBurst, h.logger).Middleware)
		}
		credRouter.Post("/users", h.Register)
		credRouter.Post("/auth/login", h.Login)
	})

	r.Get("/ads", h.ListAds)
	r.Get("/ads/{id}", h.GetAd)

	r.Group(func(authRouter chi.Router) {
		authRouter.Use(h.RequireAuth)

		authRouter.Post("/auth/logout", h.Logout)

		authRouter.Get("/ads/user", h.ListOwnAds)
		authRouter.Post("/ads", h.CreateAd)
		authRouter.Patch("/ads/{id}", h.UpdateAd)
		authRouter.Delete("/ads/{id}", h.DeleteAd)

		authRouter.Get("/favourites", h.ListFavourites)
		authRouter.Patch("/favourites/add/{id}", h.AddFavourite)
		authRouter.Patch("/favourites/remove/{id}", h.RemoveFavourite)
	})

	origins := h.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	withCORS := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)

	return otelhttp.NewHandler(withCORS, "marketplace-http")
}
