package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocks-simulator/auth"
	"stocks-simulator/config"
	"stocks-simulator/database"
	"stocks-simulator/handlers"
	"stocks-simulator/ledger"
	"stocks-simulator/logger"
	"stocks-simulator/quotes"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.OpenDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate models")
	}

	rdb := config.OpenRedis(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	trading, display, err := quoteSources(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure quote source")
	}

	engine := ledger.NewEngine(db,
		quotes.NewRecorder(trading, db, log),
		log,
		ledger.WithValuationQuotes(quotes.NewCache(display, rdb, cfg.QuoteCacheTTL, log)),
	)
	authService := auth.NewService(db, auth.NewSessionStore(rdb), auth.Options{
		Secret:       cfg.JWTSecret,
		TTL:          cfg.SessionTTL,
		StartingCash: cfg.StartingCash,
	}, log)

	router := handlers.NewRouter(handlers.New(engine, authService, log), handlers.RouterOptions{
		AuthRateLimit: cfg.AuthRateLimit,
		AuthRateBurst: cfg.AuthRateBurst,
		SecureCookies: cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// quoteSources returns the source that prices trades and the one that
// values holdings for display. Only the display source resolves names.
func quoteSources(cfg *config.Config, log zerolog.Logger) (quotes.Lookuper, quotes.Lookuper, error) {
	if cfg.QuoteProvider == config.ProviderStatic {
		log.Warn().Msg("Using static quotes")
		static, err := quotes.ParseStatic(cfg.StaticQuotes)
		if err != nil {
			return nil, nil, err
		}
		return static, static, nil
	}
	av := quotes.NewAlphaVantage(cfg.AlphaVantageURL, cfg.AlphaVantageAPIKey, cfg.QuoteTimeout, log)
	return av, av.WithNames(), nil
}
