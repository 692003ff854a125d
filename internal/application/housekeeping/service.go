package housekeeping

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-otp-ledger/internal/pkg/clock"
)

// ChallengeReaper deletes challenges that expired before cutoff.
type ChallengeReaper interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// Service periodically removes long-expired OTP challenges so the store does
// not grow without bound. Challenges are kept for Grace after expiry, so a late
// submission still sees Expired rather than not found.
type Service struct {
	Reaper   ChallengeReaper
	Logger   *slog.Logger
	Clock    clock.Clocker
	Interval time.Duration
	Grace    time.Duration
	Timeout  time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewService creates the reaper. If interval is 0 or negative it defaults to 30 minutes.
func NewService(reaper ChallengeReaper, logger *slog.Logger, interval, grace time.Duration) *Service {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Reaper:   reaper,
		Logger:   logger,
		Clock:    clock.New(),
		Interval: interval,
		Grace:    grace,
		Timeout:  time.Minute,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *Service) Start() {
	go s.run()
	s.Logger.Info("challenge reaper started", "interval", s.Interval, "grace", s.Grace)
}

// Stop blocks until any in-progress sweep has finished.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	s.Logger.Info("challenge reaper stopped")
}

func (s *Service) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Sweep performs a single pass and returns the number of challenges removed.
func (s *Service) Sweep() int {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	cutoff := s.Clock.Now().Add(-s.Grace)
	n, err := s.Reaper.DeleteExpired(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to delete expired challenges", "deleted", n, "error", err)
		return n
	}
	s.Logger.Debug("deleted expired challenges", "deleted", n, "cutoff", cutoff)
	return n
}
