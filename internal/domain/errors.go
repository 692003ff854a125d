package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// ErrIdentityNotFound is returned by resend when no user owns the email.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrResendCooldown is returned when a resend arrives before the cooldown elapsed.
	ErrResendCooldown = errors.New("resend cooldown active")
	// ErrStorage marks any persistence failure, timeouts included.
	ErrStorage = errors.New("storage failure")
	// ErrDelivery marks a failure to hand the OTP to the mail server.
	ErrDelivery = errors.New("otp delivery failed")
)
