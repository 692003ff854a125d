package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-otp-ledger/internal/domain"
)

// httpError maps a service error to a status code. Only validation messages
// are echoed back; everything else gets a fixed message.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrStorage):
		slog.Error("storage failure", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, domain.ErrResendCooldown):
		writeError(w, http.StatusTooManyRequests, "please wait before requesting a new code")
	case errors.Is(err, domain.ErrDelivery):
		slog.Error("otp delivery failed", "err", err)
		writeError(w, http.StatusBadGateway, "could not send verification code")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	default:
		slog.Error("unhandled error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
