package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evdwaal/staylink/internal"
	"github.com/evdwaal/staylink/internal/auth"
	authdb "github.com/evdwaal/staylink/internal/auth/db"
	"github.com/evdwaal/staylink/internal/db"
	"github.com/evdwaal/staylink/internal/email"
	profiledb "github.com/evdwaal/staylink/internal/profile/db"
	"github.com/evdwaal/staylink/internal/vtoken"
	vtokendb "github.com/evdwaal/staylink/internal/vtoken/db"
	"github.com/evdwaal/staylink/internal/web"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	logger := slog.New(slog.NewTextHandler(w, nil))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	sqlDB, err := db.OpenSQLite(cfg.DBFile, true)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer sqlDB.Close()

	tokens := vtoken.NewService(vtokendb.New(sqlDB), logger, vtoken.Config{})
	profiles := profiledb.New(sqlDB, time.Now)
	users := authdb.New(sqlDB)

	// Email delivery stays behind the Sender seam, for now everything
	// is logged.
	sender := email.NewLogSender(logger)

	authSvc, err := auth.NewService(users, tokens, profiles, sender, func(err error) {
		logger.Error("worker error", "error", err)
	}, auth.ServiceConfig{
		WorkerTimeout: cfg.WorkerTimeout,
		From:          email.Address(cfg.EmailFrom),
		BaseURL:       cfg.BaseURL,
	})
	if err != nil {
		logger.Error("failed to create auth service", "error", err)
		return 1
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		Handler: web.NewServer(&web.ServerDeps{
			Logger:      logger,
			AuthService: authSvc,
			Profiles:    profiles,
		}, web.ServerConfig{
			AllowedOrigins: cfg.AllowedOrigins,
		}),
	}

	// Three concurrent tasks:
	// - Listen and serving of the HTTP server.
	// - Periodically sweeping stale token records.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", cfg.HTTPAddr,
			"buildRevision", internal.BuildRevision,
			"buildRevisionTime", internal.BuildRevisionTime,
			"buildLocalModified", internal.BuildLocalModified,
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutines.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.TokenSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := tokens.Sweep(gCtx, cfg.TokenRetention); err != nil {
					logger.Error("token sweep failed", "error", err)
				}
			}
		}
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()

	// Let in-flight registration and reset workers finish before exiting.
	authSvc.Wait()

	if err != nil && err != http.ErrServerClosed {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}
