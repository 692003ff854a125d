package domain

import (
	"strings"
	"time"
)

// User is the identity a challenge is issued for. The OTP core only looks
// users up by email; it never writes them.
type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// NormalizeEmail trims surrounding space and lower-cases the address.
// Challenges and attempt records are keyed by the normalised form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
