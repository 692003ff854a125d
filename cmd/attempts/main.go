// Command attempts prints the recorded login or OTP attempts for one email,
// newest first, as JSON lines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-otp-ledger/internal/config"
	"github.com/go-otp-ledger/internal/domain"
	"github.com/go-otp-ledger/internal/infrastructure/dynamo"
	"github.com/go-otp-ledger/internal/pkg/logx"
	"github.com/go-otp-ledger/internal/pkg/validate"
	"github.com/joho/godotenv"
)

type query struct {
	Email string `validate:"required,email,max=254"`
	Kind  string `validate:"required,oneof=login otp"`
	Limit int32  `validate:"min=1,max=1000"`
}

type attemptLister interface {
	ListLoginBySubject(ctx context.Context, email string, limit int32) ([]domain.LoginAttempt, error)
	ListOtpBySubject(ctx context.Context, email string, limit int32) ([]domain.OtpAttempt, error)
}

func main() {
	email := flag.String("email", "", "subject email")
	kind := flag.String("kind", "login", "login or otp")
	limit := flag.Int("limit", 20, "maximum records")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := logx.New(logx.Config{Service: "otp-ledger-attempts", Env: cfg.AppEnv, Level: cfg.LogLevel, Format: "text"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		logger.Error("dynamo client", "err", err)
		os.Exit(1)
	}
	repo := dynamo.NewAttemptRepo(client, cfg.DynamoTables.LoginAttempts, cfg.DynamoTables.OtpAttempts)

	q := query{Email: domain.NormalizeEmail(*email), Kind: *kind, Limit: int32(*limit)}
	if err := list(ctx, repo, q, os.Stdout); err != nil {
		logger.Error("list attempts failed", "err", err)
		os.Exit(1)
	}
}

func list(ctx context.Context, repo attemptLister, q query, w io.Writer) error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	var records []interface{}
	switch q.Kind {
	case "login":
		out, err := repo.ListLoginBySubject(ctx, q.Email, q.Limit)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		for i := range out {
			records = append(records, out[i])
		}
	case "otp":
		out, err := repo.ListOtpBySubject(ctx, q.Email, q.Limit)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		for i := range out {
			records = append(records, out[i])
		}
	}
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
