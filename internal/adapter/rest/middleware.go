package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ContextKey is the type of keys this package stores in request contexts.
type ContextKey string

// UserCtxKey holds the authenticated *domain.User.
const UserCtxKey = ContextKey("user")

// CredentialCookie is the cookie carrying the signed session credential.
const CredentialCookie = "jwt"

// UserFromContext returns the user stored by RequireAuth.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserCtxKey).(*domain.User)
	return user, ok && user != nil
}

func credentialFrom(r *http.Request) string {
	if c, err := r.Cookie(CredentialCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireAuth resolves the request credential to a user or answers 401.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := credentialFrom(r)
		if credential == "" {
			writeJSON(w, http.StatusUnauthorized, domain.Failure(msgUnauthorized))
			return
		}
		user, err := h.auth.Authenticate(r.Context(), credential)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), UserCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs one line per request and records its latency.
func (h *Handler) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		errorType := ""
		if status >= http.StatusBadRequest {
			errorType = http.StatusText(status)
		}
		if h.metrics != nil {
			h.metrics.ObserveRequest(r.Method+" "+route, started, errorType)
		}
		h.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(started)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}
