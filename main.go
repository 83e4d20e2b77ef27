package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imagecraft-app/config"
	"imagecraft-app/database"
	billingapi "imagecraft-app/internal/api/billing"
	"imagecraft-app/internal/api/respond"
	stripewebhooks "imagecraft-app/internal/api/stripewebhook"
	usersapi "imagecraft-app/internal/api/users"
	routes "imagecraft-app/internal/app/http"
	"imagecraft-app/internal/app/http/middleware"
	"imagecraft-app/internal/billing"
	"imagecraft-app/internal/domain/plans"
	"imagecraft-app/internal/infra/identity"
	stripegw "imagecraft-app/internal/infra/stripe"
	"imagecraft-app/internal/logger"
	"imagecraft-app/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadEnv()
	if err != nil {
		bootLog := logger.New(os.Getenv("APP_ENV"), "")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	if !cfg.DotEnvLoaded {
		log.Info().Msg("no .env file found, using system environment variables")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DBURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	catalog, err := plans.DefaultCatalog(plans.PriceIDs{
		BasicMonthly: cfg.Stripe.PriceBasicMonthly,
		BasicAnnual:  cfg.Stripe.PriceBasicAnnual,
		ProMonthly:   cfg.Stripe.PriceProMonthly,
		ProAnnual:    cfg.Stripe.PriceProAnnual,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build plan catalog")
	}

	gateway, err := stripegw.NewGateway(stripegw.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init stripe gateway")
	}

	verifier, err := identityChain(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("init identity verifier")
	}

	st := store.New(db)
	ledger := billing.NewLedger(log)
	errs := respond.Errors{Production: cfg.IsProduction()}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		Catalog: catalog,
		Billing: billingapi.NewHandler(
			billing.NewCheckout(catalog, gateway, st, cfg.AppURL, log),
			billing.NewVerifier(catalog, gateway, st, ledger, log),
			st, errs),
		Webhook: stripewebhooks.NewHandler(billing.NewWebhookProcessor(catalog, gateway, st, ledger, log), errs),
		Users:   usersapi.NewHandler(st),
		Auth: middleware.AuthMiddleware(middleware.AuthConfig{
			Verifier:       verifier,
			Users:          st,
			CookieName:     cfg.Auth.CookieName,
			NewUserCredits: cfg.NewUserCredits,
		}, log),
		DB: st,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// identityChain accepts tokens from whichever providers are configured,
// HMAC first.
func identityChain(cfg config.AuthConfig) (identity.Verifier, error) {
	var chain identity.Chain
	if cfg.JWTSecret != "" {
		chain = append(chain, identity.NewHMACVerifier(cfg.JWTSecret))
	}
	if cfg.OIDCIssuer != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		oidcV, err := identity.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, oidcV)
	}
	return chain, nil
}
