package domain

import "time"

// OtpChallenge is a single issued one-time code.
// Code is only populated on the value returned by issue; stores persist CodeHash.
type OtpChallenge struct {
	SubjectEmail string    `json:"subject_email"`
	Code         string    `json:"-"`
	CodeHash     string    `json:"-"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Consumed     bool      `json:"consumed"`
}

// Expired reports whether the challenge is past its expiry at now.
func (c *OtpChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// VerificationResult is the business outcome of a code submission.
// The zero value is VerificationInvalidOrNotFound.
type VerificationResult int

const (
	VerificationInvalidOrNotFound VerificationResult = iota
	VerificationAccepted
	VerificationExpired
)

func (r VerificationResult) String() string {
	switch r {
	case VerificationAccepted:
		return "accepted"
	case VerificationExpired:
		return "expired"
	default:
		return "invalid_or_not_found"
	}
}
