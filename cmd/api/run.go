package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/truetestify/internal/auth"
	"github.com/romariotrain/truetestify/internal/billing"
	"github.com/romariotrain/truetestify/internal/billing/stripe"
	"github.com/romariotrain/truetestify/internal/config"
	"github.com/romariotrain/truetestify/internal/httpapi"
	"github.com/romariotrain/truetestify/internal/review/service"
	"github.com/romariotrain/truetestify/internal/storage/objectstore"
	pg "github.com/romariotrain/truetestify/internal/storage/postgres"
)

const devJWTSecret = "truetestify-dev-secret"

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	db, err := pg.Connect(ctx, cfg.DatabaseURL, pg.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	if cfg.DBAutoMigrate {
		if err := pg.Migrate(ctx, db, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	objects, err := objectstore.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("object storage: %w", err)
	}

	// Dependencies
	outboxRepo := pg.NewOutboxRepo(db)
	reviewRepo := pg.NewReviewRepo(db, outboxRepo)
	reviews := service.New(reviewRepo, objects, service.Options{
		TranscodeTarget: cfg.TranscodeTarget,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		SignedURLTTL:    cfg.SignedURLTTL,
	}, log)

	bill := billing.NewService(
		billing.NewCatalog(billing.PriceIDs{
			Starter:  cfg.StripePriceStarter,
			Pro:      cfg.StripePricePro,
			Business: cfg.StripePriceBusiness,
		}),
		billingProvider(cfg, log),
		pg.NewBillingRepo(db),
		reviews,
		billing.URLs{
			Success: cfg.BillingSuccessURL,
			Cancel:  cfg.BillingCancelURL,
			Return:  cfg.BillingReturnURL,
		},
		log,
	)

	secret := cfg.JWTSecret
	if secret == "" {
		log.Warn().Msg("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}

	h := httpapi.New(httpapi.Config{
		Reviews:        reviews,
		Billing:        bill,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SignedURLTTL:   cfg.SignedURLTTL,
		Logger:         log,
		Checks: map[string]httpapi.HealthCheck{
			"database": db.PingContext,
			"storage":  objects.Health,
		},
	})
	router := httpapi.NewRouter(h, auth.NewVerifier(secret))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	}
}

// billingProvider talks to Stripe when a key is configured. Development
// without a key gets the simulated provider; anywhere else the Stripe
// provider runs keyless and every call fails as unavailable.
func billingProvider(cfg *config.Config, log zerolog.Logger) billing.Provider {
	switch {
	case cfg.StripeEnabled():
		return stripe.NewProvider(stripe.NewClient(cfg.StripeSecretKey), cfg.StripeWebhookSecret, log)
	case cfg.IsDevelopment():
		log.Warn().Msg("STRIPE_SECRET_KEY not set, billing runs against the dev provider")
		return billing.DevProvider{}
	default:
		log.Error().Msg("STRIPE_SECRET_KEY not set, billing is unavailable")
		return stripe.NewProvider(stripe.NewClient(""), cfg.StripeWebhookSecret, log)
	}
}
