package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
)

const (
	msgUnauthorized      = "Unauthorized"
	msgInvalidCredential = "Invalid credentials"
	msgStorageFailure    = "Failed to store media"
	msgUnknown           = "Unknown error occurred"
)

// statusFor maps an error kind to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return http.StatusUnauthorized, msgInvalidCredential
	}
	switch domain.Kind(err) {
	case domain.ErrValidation:
		return http.StatusBadRequest, clientMessage(err)
	case domain.ErrNotFound:
		return http.StatusNotFound, clientMessage(err)
	case domain.ErrUnauthorized:
		if errors.Is(err, domain.ErrNotOwner) {
			return http.StatusUnauthorized, clientMessage(domain.ErrNotOwner)
		}
		return http.StatusUnauthorized, msgUnauthorized
	case domain.ErrConflict:
		return http.StatusConflict, clientMessage(err)
	case domain.ErrStorage:
		return http.StatusBadGateway, msgStorageFailure
	}
	return http.StatusInternalServerError, msgUnknown
}

// clientMessage strips the kind prefix: "not found: there is no such ad" becomes
// "there is no such ad".
func clientMessage(err error) string {
	msg := err.Error()
	kind := domain.Kind(err).Error() + ": "
	return strings.TrimPrefix(msg, kind)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	h.logRequestError(r, status, err)
	writeJSON(w, status, domain.Failure(msg))
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, domain.Failure(msg))
}
