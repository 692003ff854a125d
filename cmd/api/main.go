package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-otp-ledger/internal/application/housekeeping"
	"github.com/go-otp-ledger/internal/config"
	"github.com/go-otp-ledger/internal/infrastructure/dynamo"
	"github.com/go-otp-ledger/internal/infrastructure/redisstore"
	s3infra "github.com/go-otp-ledger/internal/infrastructure/s3"
	"github.com/go-otp-ledger/internal/infrastructure/smtp"
	"github.com/go-otp-ledger/internal/infrastructure/sns"
	"github.com/go-otp-ledger/internal/pkg/hash"
	"github.com/go-otp-ledger/internal/pkg/logx"
	transporthttp "github.com/go-otp-ledger/internal/transport/http"
	"github.com/go-otp-ledger/internal/transport/http/middleware"
	"github.com/joho/godotenv"
)

// challengeBackend is what both challenge stores provide.
type challengeBackend interface {
	transporthttp.ChallengeStore
	housekeeping.ChallengeReaper
}

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := logx.New(logx.Config{Service: "otp-ledger", Env: cfg.AppEnv, Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envErr != nil {
		logger.Info("no .env file found, reading from environment")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	if _, err := middleware.ParseTrustedProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	key, err := fingerprintKey(cfg, logger)
	if err != nil {
		return err
	}
	hasher := hash.NewHMACSHA256(key)

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	challenges, closeStore, err := newChallengeBackend(ctx, cfg, dynamoClient)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := &transporthttp.Deps{
		UserRepo:   dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		Challenges: challenges,
		Attempts:   dynamo.NewAttemptRepo(dynamoClient, cfg.DynamoTables.LoginAttempts, cfg.DynamoTables.OtpAttempts),
		Alerter:    sns.Nop{},
		Mailer:     smtp.NewMailer(cfg),
		Hasher:     hasher,
	}

	if cfg.AlertTopicARN != "" {
		alerter, err := sns.NewAlerter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("sns alerter: %w", err)
		}
		deps.Alerter = alerter
	} else {
		logger.Warn("ALERT_TOPIC_ARN not set; ledger failures are only logged")
	}

	if cfg.AuditArchiveBucket != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		deps.Archive = s3infra.NewArchive(s3Client, cfg.AuditArchiveBucket)
	}

	var reaper *housekeeping.Service
	if cfg.ReaperInterval > 0 {
		reaper = housekeeping.NewService(challenges, logger, cfg.ReaperInterval, cfg.ReaperGrace)
		reaper.Start()
		defer reaper.Stop()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.AppPort, "challenge_store", cfg.ChallengeStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newChallengeBackend(ctx context.Context, cfg *config.Config, dynamoClient dynamo.API) (challengeBackend, func(), error) {
	switch cfg.ChallengeStore {
	case "dynamo", "":
		return dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.OtpChallenges, cfg.ReaperGrace), func() {}, nil
	case "redis":
		rdb, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewChallengeStore(rdb, cfg.ReaperGrace), func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown CHALLENGE_STORE %q", cfg.ChallengeStore)
	}
}

// fingerprintKey returns the HMAC key for code hashes and ledger fingerprints.
// Outside production a random per-process key is used when none is configured,
// which makes fingerprints incomparable across restarts.
func fingerprintKey(cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	if cfg.FingerprintKey != "" {
		return []byte(cfg.FingerprintKey), nil
	}
	if cfg.AppEnv == "production" {
		return nil, errors.New("FINGERPRINT_SECRET is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	logger.Warn("FINGERPRINT_SECRET not set; using an ephemeral key")
	return key, nil
}
