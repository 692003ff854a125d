package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// ChallengeEnvelope is returned once a code has been sent. ExpiresAt lets the
// client run its countdown against the server's clock.
type ChallengeEnvelope struct {
	Message   string    `json:"message"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifiedEnvelope is returned when a code is accepted.
type VerifiedEnvelope struct {
	Message     string `json:"message"`
	RedirectURL string `json:"redirect_url"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
