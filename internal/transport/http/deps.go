package http

import (
	"context"
	"time"

	"github.com/go-otp-ledger/internal/domain"
	"github.com/go-otp-ledger/internal/infrastructure/sns"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// ChallengeStore is implemented by both the DynamoDB and the Redis challenge stores.
type ChallengeStore interface {
	Replace(ctx context.Context, c *domain.OtpChallenge) error
	Get(ctx context.Context, email string) (*domain.OtpChallenge, error)
	Consume(ctx context.Context, email, codeHash string, now time.Time) (domain.VerificationResult, error)
}

// AttemptStore is the append-only ledger table.
type AttemptStore interface {
	AppendLogin(ctx context.Context, a *domain.LoginAttempt) error
	AppendOtp(ctx context.Context, a *domain.OtpAttempt) error
}

// AttemptArchive is the optional object-store copy of the ledger.
type AttemptArchive interface {
	Put(ctx context.Context, kind, id string, at time.Time, record interface{}) (string, error)
}

type Mailer interface {
	SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error
}

type Fingerprinter interface {
	Fingerprint(parts ...string) string
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo   UserRepository
	Challenges ChallengeStore
	Attempts   AttemptStore
	Archive    AttemptArchive // nil disables archiving
	Alerter    sns.Alerter
	Mailer     Mailer
	Hasher     Fingerprinter
}
