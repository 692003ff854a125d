package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/go-otp-ledger/internal/domain"
	"github.com/go-otp-ledger/internal/infrastructure/sns"
	"github.com/go-otp-ledger/internal/pkg/clock"
	"github.com/go-otp-ledger/internal/pkg/id"
)

// maxSubjectLen bounds what is stored for unvalidated input.
const maxSubjectLen = 254

const (
	kindLogin = "login"
	kindOtp   = "otp"
)

type Store interface {
	AppendLogin(ctx context.Context, a *domain.LoginAttempt) error
	AppendOtp(ctx context.Context, a *domain.OtpAttempt) error
}

// Archiver keeps an extra copy of each record. Optional.
type Archiver interface {
	Put(ctx context.Context, kind, id string, at time.Time, record interface{}) (string, error)
}

type Alerter interface {
	Alert(ctx context.Context, a sns.Alert) error
}

type Fingerprinter interface {
	Fingerprint(parts ...string) string
}

// LoginInput describes one password submission. Password is only used to
// derive a fingerprint and is never stored.
type LoginInput struct {
	Email     string
	Password  string
	Success   bool
	IPAddress string
	UserAgent string
}

// OtpInput describes one code submission. Code is only fingerprinted.
type OtpInput struct {
	Email     string
	Code      string
	Success   bool
	IPAddress string
	UserAgent string
}

type Service interface {
	RecordLogin(ctx context.Context, in LoginInput) (*domain.LoginAttempt, error)
	RecordOtpAttempt(ctx context.Context, in OtpInput) (*domain.OtpAttempt, error)
}

type ServiceDeps struct {
	Store          Store
	Archive        Archiver // nil disables archiving
	Alerter        Alerter
	Hasher         Fingerprinter
	Clock          clock.Clocker
	StorageTimeout time.Duration
}

type service struct {
	store          Store
	archive        Archiver
	alerter        Alerter
	hasher         Fingerprinter
	clock          clock.Clocker
	storageTimeout time.Duration
}

func NewService(d ServiceDeps) Service {
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}
	alerter := d.Alerter
	if alerter == nil {
		alerter = sns.Nop{}
	}
	return &service{
		store:          d.Store,
		archive:        d.Archive,
		alerter:        alerter,
		hasher:         d.Hasher,
		clock:          clk,
		storageTimeout: d.StorageTimeout,
	}
}

func (s *service) RecordLogin(ctx context.Context, in LoginInput) (*domain.LoginAttempt, error) {
	now := s.clock.Now()
	email := subject(in.Email)
	a := &domain.LoginAttempt{
		AttemptID:             id.NewAt(now),
		SubjectEmail:          email,
		CredentialFingerprint: s.hasher.Fingerprint(kindLogin, email, in.Password),
		Success:               in.Success,
		IPAddress:             in.IPAddress,
		UserAgent:             in.UserAgent,
		CreatedAt:             now,
	}
	err := s.write(ctx, func(ctx context.Context) error { return s.store.AppendLogin(ctx, a) })
	if err != nil {
		s.alert(ctx, "ledger_write_failed", email, err)
		return nil, fmt.Errorf("%w: record login attempt: %w", domain.ErrStorage, err)
	}
	s.archiveRecord(ctx, kindLogin, a.AttemptID, now, email, a)
	return a, nil
}

func (s *service) RecordOtpAttempt(ctx context.Context, in OtpInput) (*domain.OtpAttempt, error) {
	now := s.clock.Now()
	email := subject(in.Email)
	a := &domain.OtpAttempt{
		AttemptID:       id.NewAt(now),
		SubjectEmail:    email,
		CodeFingerprint: s.hasher.Fingerprint(kindOtp, email, in.Code),
		Success:         in.Success,
		IPAddress:       in.IPAddress,
		UserAgent:       in.UserAgent,
		CreatedAt:       now,
	}
	err := s.write(ctx, func(ctx context.Context) error { return s.store.AppendOtp(ctx, a) })
	if err != nil {
		s.alert(ctx, "ledger_write_failed", email, err)
		return nil, fmt.Errorf("%w: record otp attempt: %w", domain.ErrStorage, err)
	}
	s.archiveRecord(ctx, kindOtp, a.AttemptID, now, email, a)
	return a, nil
}

func (s *service) write(ctx context.Context, fn func(context.Context) error) error {
	if s.storageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storageTimeout)
		defer cancel()
	}
	return fn(ctx)
}

// archiveRecord copies a stored record to the archive. A failure here is
// reported but does not fail the request: the ledger table already holds it.
func (s *service) archiveRecord(ctx context.Context, kind, attemptID string, at time.Time, email string, record interface{}) {
	if s.archive == nil {
		return
	}
	err := s.write(ctx, func(ctx context.Context) error {
		_, err := s.archive.Put(ctx, kind, attemptID, at, record)
		return err
	})
	if err != nil {
		slog.Warn("could not archive attempt", "kind", kind, "attempt_id", attemptID, "err", err)
		s.alert(ctx, "ledger_archive_failed", email, err)
	}
}

func (s *service) alert(ctx context.Context, kind, email string, cause error) {
	slog.Error("attempt ledger failure", "kind", kind, "err", cause)
	// the request context may already be past its deadline
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.alerter.Alert(actx, sns.Alert{
		Kind:     kind,
		Subject:  email,
		Error:    cause.Error(),
		Occurred: s.clock.Now(),
	}); err != nil {
		slog.Warn("could not publish alert", "kind", kind, "err", err)
	}
}

func subject(email string) string {
	email = domain.NormalizeEmail(email)
	if len(email) <= maxSubjectLen {
		return email
	}
	// cut on a rune boundary so the stored value stays valid UTF-8
	end := maxSubjectLen
	for end > 0 && !utf8.RuneStart(email[end]) {
		end--
	}
	return email[:end]
}
