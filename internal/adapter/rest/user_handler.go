package rest

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/usecase"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type sessionResponse struct {
	domain.Response
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	} `json:"user"`
}

// Register handles POST /users.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if msg := h.validate(req); msg != "" {
		writeBadRequest(w, msg)
		return
	}
	in := domain.RegisterInput{Username: req.Username, Email: req.Email, Phone: req.Phone, Password: req.Password}

	session, err := h.auth.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.inc(func(m *metrics.MetricsManager) prometheus.Counter { return m.RegistrationsTotal })
	h.writeSession(w, http.StatusCreated, session)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if msg := h.validate(req); msg != "" {
		writeBadRequest(w, msg)
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.inc(func(m *metrics.MetricsManager) prometheus.Counter { return m.LoginsTotal })
	h.writeSession(w, http.StatusOK, session)
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, domain.Failure(msgUnauthorized))
		return
	}
	resp, err := h.auth.Logout(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CredentialCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, session *usecase.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CredentialCookie,
		Value:    session.Credential,
		Path:     "/",
		MaxAge:   int(session.TTL / time.Second),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	body := sessionResponse{Response: session.Response, Token: session.Credential}
	body.User.ID = session.User.ID
	body.User.Username = session.User.Username
	body.User.Email = session.User.Email
	body.User.Phone = session.User.Phone
	writeJSON(w, status, body)
}
