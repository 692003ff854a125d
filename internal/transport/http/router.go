package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-otp-ledger/internal/application/auth"
	"github.com/go-otp-ledger/internal/application/ledger"
	"github.com/go-otp-ledger/internal/application/otp"
	"github.com/go-otp-ledger/internal/config"
	"github.com/go-otp-ledger/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-ledger/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Invalid entries are rejected at startup; here they are simply skipped.
	trusted, _ := appmiddleware.ParseTrustedProxies(cfg.TrustedProxies)
	r.Use(appmiddleware.ClientAddr(trusted))

	authRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	otpSvc := otp.NewService(otp.ServiceDeps{
		Challenges:     deps.Challenges,
		Identities:     deps.UserRepo,
		Hasher:         deps.Hasher,
		ResendCooldown: cfg.ResendCooldown,
		StorageTimeout: cfg.StorageTimeout,
	})
	ledgerSvc := ledger.NewService(ledger.ServiceDeps{
		Store:          deps.Attempts,
		Archive:        deps.Archive,
		Alerter:        deps.Alerter,
		Hasher:         deps.Hasher,
		StorageTimeout: cfg.StorageTimeout,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:       deps.UserRepo,
		OTP:            otpSvc,
		Ledger:         ledgerSvc,
		Mailer:         deps.Mailer,
		StorageTimeout: cfg.StorageTimeout,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc, cfg.RedirectURL)

	r.Get("/livez", healthH.Livez)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/auth", func(r chi.Router) {
			r.Use(authRL.Limit)
			r.Post("/login", authH.Login)
			r.Post("/verify-otp", authH.VerifyOTP)
			r.Post("/resend-otp", authH.ResendOTP)
		})
	})

	return r
}
