package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-otp-ledger/internal/application/ledger"
	"github.com/go-otp-ledger/internal/application/otp"
	"github.com/go-otp-ledger/internal/domain"
	"github.com/go-otp-ledger/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,otpcode"`
}

type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// RequestMeta is the caller information recorded with each attempt.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Challenge is what a caller learns about an issued code. The code itself
// only travels by email.
type Challenge struct {
	Email     string
	ExpiresAt time.Time
}

type Service interface {
	Login(ctx context.Context, req LoginRequest, meta RequestMeta) (*Challenge, error)
	VerifyOTP(ctx context.Context, req VerifyOTPRequest, meta RequestMeta) (domain.VerificationResult, error)
	ResendOTP(ctx context.Context, req ResendOTPRequest) (*Challenge, error)
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Mailer interface {
	SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error
}

type ServiceDeps struct {
	UserRepo       UserStore
	OTP            otp.Service
	Ledger         ledger.Service
	Mailer         Mailer
	StorageTimeout time.Duration
}

type service struct {
	userRepo       UserStore
	otp            otp.Service
	ledger         ledger.Service
	mailer         Mailer
	storageTimeout time.Duration
}

func NewService(d ServiceDeps) Service {
	return &service{
		userRepo:       d.UserRepo,
		otp:            d.OTP,
		ledger:         d.Ledger,
		mailer:         d.Mailer,
		storageTimeout: d.StorageTimeout,
	}
}

// dummyHash is compared against when the email is unknown so that both paths
// cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// Login checks the password and, when it matches, issues and mails a code.
// Exactly one login attempt is recorded per call; if that record cannot be
// written the call fails.
func (s *service) Login(ctx context.Context, req LoginRequest, meta RequestMeta) (ch *Challenge, err error) {
	req.Email = domain.NormalizeEmail(req.Email)
	accepted := false
	defer func() {
		_, lerr := s.ledger.RecordLogin(ctx, ledger.LoginInput{
			Email:     req.Email,
			Password:  req.Password,
			Success:   accepted,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
		if lerr != nil {
			ch, err = nil, errors.Join(err, lerr)
		}
	}()

	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	if err := s.checkPassword(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}
	accepted = true

	c, err := s.otp.Issue(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendOTP(ctx, c.SubjectEmail, c.Code, c.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	return &Challenge{Email: c.SubjectEmail, ExpiresAt: c.ExpiresAt}, nil
}

func (s *service) checkPassword(ctx context.Context, email, password string) error {
	lctx, cancel := s.withTimeout(ctx)
	u, err := s.userRepo.GetByEmail(lctx, email)
	cancel()
	switch {
	case errors.Is(err, domain.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	case err != nil:
		return fmt.Errorf("%w: user lookup: %w", domain.ErrStorage, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}
	return nil
}

// VerifyOTP redeems a code. Exactly one OTP attempt is recorded per call.
func (s *service) VerifyOTP(ctx context.Context, req VerifyOTPRequest, meta RequestMeta) (res domain.VerificationResult, err error) {
	req.Email = domain.NormalizeEmail(req.Email)
	defer func() {
		_, lerr := s.ledger.RecordOtpAttempt(ctx, ledger.OtpInput{
			Email:     req.Email,
			Code:      req.Code,
			Success:   err == nil && res == domain.VerificationAccepted,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
		if lerr != nil {
			res, err = domain.VerificationInvalidOrNotFound, errors.Join(err, lerr)
		}
	}()

	if err := validate.Struct(req); err != nil {
		return domain.VerificationInvalidOrNotFound, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	return s.otp.Verify(ctx, req.Email, req.Code)
}

// ResendOTP issues and mails a new code for a known identity. No attempt
// record is written.
func (s *service) ResendOTP(ctx context.Context, req ResendOTPRequest) (*Challenge, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	c, err := s.otp.Resend(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendOTP(ctx, c.SubjectEmail, c.Code, c.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	return &Challenge{Email: c.SubjectEmail, ExpiresAt: c.ExpiresAt}, nil
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storageTimeout)
}
