// Command seed creates or replaces a login identity.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-otp-ledger/internal/config"
	"github.com/go-otp-ledger/internal/domain"
	"github.com/go-otp-ledger/internal/infrastructure/dynamo"
	"github.com/go-otp-ledger/internal/pkg/id"
	"github.com/go-otp-ledger/internal/pkg/logx"
	"github.com/go-otp-ledger/internal/pkg/validate"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type seedInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=72"`
}

func main() {
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password (min 8 characters)")
	bootstrap := flag.Bool("bootstrap", false, "create tables before seeding")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := logx.New(logx.Config{Service: "otp-ledger-seed", Env: cfg.AppEnv, Level: cfg.LogLevel, Format: "text"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	u, err := seed(ctx, cfg, seedInput{Email: domain.NormalizeEmail(*email), Password: *password}, *bootstrap)
	if err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
	logger.Info("user ready", "user_id", u.UserID, "email", u.Email)
}

func seed(ctx context.Context, cfg *config.Config, in seedInput, bootstrap bool) (*domain.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if bootstrap {
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
	}
	repo := dynamo.NewUserRepo(client, cfg.DynamoTables.Users)

	pw, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	existing, err := repo.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		if err := repo.Update(ctx, existing.UserID, map[string]interface{}{"password_hash": string(pw)}); err != nil {
			return nil, err
		}
		existing.PasswordHash = string(pw)
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        in.Email,
		PasswordHash: string(pw),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
