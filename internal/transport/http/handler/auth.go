package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-otp-ledger/internal/application/auth"
	"github.com/go-otp-ledger/internal/application/otp"
	"github.com/go-otp-ledger/internal/domain"
	"github.com/go-otp-ledger/internal/transport/http/middleware"
)

const maxBodyBytes = 4 << 10

const (
	msgOTPSent       = "OTP sent"
	msgResendGeneric = "If the account exists, a new code has been sent"
	msgVerified      = "Verification successful"
	msgInvalidOTP    = "Invalid or expired OTP code"
)

// AuthHandler serves the password + one-time code login flow.
type AuthHandler struct {
	svc         auth.Service
	redirectURL string
}

func NewAuthHandler(svc auth.Service, redirectURL string) *AuthHandler {
	return &AuthHandler{svc: svc, redirectURL: redirectURL}
}

func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{IPAddress: middleware.ClientIP(r), UserAgent: r.UserAgent()}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decode(w, r, &req); err != nil {
		// still passed to the service so the attempt is recorded
		req = auth.LoginRequest{Email: req.Email}
	}
	ch, err := h.svc.Login(r.Context(), req, requestMeta(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChallengeEnvelope{Message: msgOTPSent, Email: ch.Email, ExpiresAt: ch.ExpiresAt})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if err := decode(w, r, &req); err != nil {
		req = auth.VerifyOTPRequest{Email: req.Email}
	}
	res, err := h.svc.VerifyOTP(r.Context(), req, requestMeta(r))
	if err != nil {
		httpError(w, err)
		return
	}
	if res != domain.VerificationAccepted {
		writeError(w, http.StatusUnauthorized, msgInvalidOTP)
		return
	}
	writeJSON(w, http.StatusOK, VerifiedEnvelope{Message: msgVerified, RedirectURL: h.redirectURL})
}

// ResendOTP answers unknown emails and cooled-down resends exactly like a
// successful one, so the response does not reveal whether an account exists.
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.ResendOTPRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	_, err := h.svc.ResendOTP(r.Context(), req)
	var cooldown *otp.CooldownError
	switch {
	case err == nil, errors.Is(err, domain.ErrIdentityNotFound):
	case errors.As(err, &cooldown):
		slog.Debug("resend suppressed", "remaining", cooldown.Remaining)
	default:
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: msgResendGeneric})
}
