package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/flowwijs/elektra-scraper/internal/api"
	"github.com/flowwijs/elektra-scraper/internal/browser"
	"github.com/flowwijs/elektra-scraper/internal/config"
	"github.com/flowwijs/elektra-scraper/internal/database"
	"github.com/flowwijs/elektra-scraper/internal/export"
	"github.com/flowwijs/elektra-scraper/internal/extract"
	"github.com/flowwijs/elektra-scraper/internal/logger"
	"github.com/flowwijs/elektra-scraper/internal/parser"
	"github.com/flowwijs/elektra-scraper/internal/ratelimit"
	"github.com/flowwijs/elektra-scraper/internal/scraper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := extract.NewEngine()
	deps := api.Deps{Engine: engine, Logger: log}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := database.EnsureSchema(ctx, db.Pool()); err != nil {
			return err
		}
		deps.Store = database.NewProductRepository(db.Pool(), cfg.Redis.Stream)

		if cfg.Redis.Enabled {
			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to Redis: %w", err)
			}

			relay := database.NewRelay(database.NewOutbox(db.Pool()), redisClient, log, database.RelayConfig{
				PollInterval: cfg.Redis.PollInterval,
				BatchSize:    cfg.Redis.BatchSize,
				StreamMaxLen: cfg.Redis.StreamMaxLen,
			})
			go func() {
				if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("relay stopped with error", "error", err)
				}
			}()
			deps.Outbox = relay
		}
	}

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		MaxRetries:     cfg.Scraper.MaxRetries,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer b.Close()

	deps.Scraper = scraper.NewService(b, parser.NewElektramatParser(), engine, scraper.Options{
		MaxPages: cfg.Scraper.MaxPages,
		Limiter:  newLimiter(cfg),
		Logger:   log,
	})

	deps.XLSX = export.NewXLSXSink(cfg.Export.XLSXPath, log)
	if cfg.Export.SheetsEnabled() {
		sheets, err := export.NewSheetsSink(ctx, cfg.Export.CredentialsFile, cfg.Export.SpreadsheetID, log)
		if err != nil {
			// The server still serves everything else without Sheets.
			log.Warn("google sheets export disabled", "error", err)
		} else {
			deps.Sheets = sheets
		}
	}

	router := api.NewRouter(api.NewHandlers(deps), api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	cancel()

	log.Info("server stopped")
	return nil
}

func newLimiter(cfg *config.Config) *ratelimit.Adaptive {
	return ratelimit.NewAdaptive(
		ratelimit.Window{Min: cfg.Scraper.RateLimitMin, Max: cfg.Scraper.RateLimitMax},
		func(err error) bool { return errors.Is(err, browser.ErrBlocked) },
	)
}
