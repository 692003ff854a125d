package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-otp-ledger/internal/domain"
	"github.com/go-otp-ledger/internal/pkg/clock"
	"github.com/go-otp-ledger/internal/pkg/validate"
)

// TTL is the fixed lifetime of an issued code.
const TTL = 5 * time.Minute

// ChallengeStore persists at most one challenge per email.
type ChallengeStore interface {
	Replace(ctx context.Context, c *domain.OtpChallenge) error
	Get(ctx context.Context, email string) (*domain.OtpChallenge, error)
	Consume(ctx context.Context, email, codeHash string, now time.Time) (domain.VerificationResult, error)
}

type IdentityLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Fingerprinter interface {
	Fingerprint(parts ...string) string
}

// CooldownError is returned by Resend when the previous code is too recent.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry in %s", domain.ErrResendCooldown, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return domain.ErrResendCooldown }

type Service interface {
	Issue(ctx context.Context, email string) (*domain.OtpChallenge, error)
	Verify(ctx context.Context, email, code string) (domain.VerificationResult, error)
	Resend(ctx context.Context, email string) (*domain.OtpChallenge, error)
}

type ServiceDeps struct {
	Challenges     ChallengeStore
	Identities     IdentityLookup
	Hasher         Fingerprinter
	Clock          clock.Clocker
	GenerateCode   func() (string, error) // defaults to GenerateCode
	ResendCooldown time.Duration          // 0 disables the cooldown
	StorageTimeout time.Duration          // 0 means no per-call timeout
}

type service struct {
	challenges     ChallengeStore
	identities     IdentityLookup
	hasher         Fingerprinter
	clock          clock.Clocker
	generateCode   func() (string, error)
	resendCooldown time.Duration
	storageTimeout time.Duration
}

func NewService(d ServiceDeps) Service {
	gen := d.GenerateCode
	if gen == nil {
		gen = GenerateCode
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &service{
		challenges:     d.Challenges,
		identities:     d.Identities,
		hasher:         d.Hasher,
		clock:          clk,
		generateCode:   gen,
		resendCooldown: d.ResendCooldown,
		storageTimeout: d.StorageTimeout,
	}
}

// Issue creates a fresh challenge for email, replacing any earlier one.
// The returned challenge carries the clear code; only its hash is stored.
func (s *service) Issue(ctx context.Context, email string) (*domain.OtpChallenge, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email required: %w", domain.ErrBadRequest)
	}
	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	c := &domain.OtpChallenge{
		SubjectEmail: email,
		Code:         code,
		CodeHash:     s.hasher.Fingerprint(email, code),
		IssuedAt:     now,
		ExpiresAt:    now.Add(TTL),
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.challenges.Replace(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: replace challenge: %w", domain.ErrStorage, err)
	}
	return c, nil
}

// Verify redeems code for email. Business outcomes are returned as a
// VerificationResult; the error is non-nil only when storage failed.
func (s *service) Verify(ctx context.Context, email, code string) (domain.VerificationResult, error) {
	if !validate.IsOTPCode(code) {
		return domain.VerificationInvalidOrNotFound, nil
	}
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.VerificationInvalidOrNotFound, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.challenges.Consume(ctx, email, s.hasher.Fingerprint(email, code), s.clock.Now())
	if err != nil {
		return domain.VerificationInvalidOrNotFound, fmt.Errorf("%w: consume challenge: %w", domain.ErrStorage, err)
	}
	return res, nil
}

// Resend issues a new code for a known identity, subject to the cooldown.
func (s *service) Resend(ctx context.Context, email string) (*domain.OtpChallenge, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email required: %w", domain.ErrBadRequest)
	}
	if err := s.checkIdentity(ctx, email); err != nil {
		return nil, err
	}
	if err := s.checkCooldown(ctx, email); err != nil {
		return nil, err
	}
	return s.Issue(ctx, email)
}

func (s *service) checkIdentity(ctx context.Context, email string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.identities.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("resend for %s: %w", email, domain.ErrIdentityNotFound)
	default:
		return fmt.Errorf("%w: identity lookup: %w", domain.ErrStorage, err)
	}
}

func (s *service) checkCooldown(ctx context.Context, email string) error {
	if s.resendCooldown <= 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	prev, err := s.challenges.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read challenge: %w", domain.ErrStorage, err)
	}
	if prev.Consumed {
		return nil
	}
	if elapsed := s.clock.Now().Sub(prev.IssuedAt); elapsed < s.resendCooldown {
		return &CooldownError{Remaining: s.resendCooldown - elapsed}
	}
	return nil
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storageTimeout)
}
