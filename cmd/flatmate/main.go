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
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/dukerupert/flatmate/internal/backup"
	"github.com/dukerupert/flatmate/internal/config"
	"github.com/dukerupert/flatmate/internal/database"
	"github.com/dukerupert/flatmate/internal/jobs"
	"github.com/dukerupert/flatmate/internal/logging"
	"github.com/dukerupert/flatmate/internal/server"
)

const cleanupInterval = time.Hour

const usage = `usage:
  flatmate                    run the API server
  flatmate backup             upload a database backup now
  flatmate restore KEY DEST   download backup KEY into a new database file DEST`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	if err := run(cfg, logger, os.Args[1:]); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		return serve(cfg, logger)
	}

	switch args[0] {
	case "backup":
		return backupNow(cfg, logger)
	case "restore":
		if len(args) != 3 {
			return errors.New(usage)
		}
		return restore(cfg, logger, args[1], args[2])
	default:
		return errors.New(usage)
	}
}

func backupConfig(cfg *config.Config) backup.Config {
	return backup.Config{
		Endpoint:   cfg.BackupEndpoint,
		Bucket:     cfg.BackupBucket,
		Region:     cfg.BackupRegion,
		AccessKey:  cfg.BackupAccessKey,
		SecretKey:  cfg.BackupSecretKey,
		Prefix:     cfg.BackupPrefix,
		Passphrase: cfg.BackupPassphrase,
		Retention:  cfg.BackupRetention,
	}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			logger.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv := server.New(db, cfg, logger)

	opts := jobs.Options{
		Sessions:        srv.SessionStore(),
		Limiter:         srv.RateLimiter(),
		CleanupInterval: cleanupInterval,
	}
	if cfg.BackupsEnabled() {
		opts.Backups = backup.NewManager(backupConfig(cfg), db, logger.With("component", "backup"))
		opts.BackupInterval = cfg.BackupInterval
	}
	scheduler, err := jobs.New(opts, logger.With("component", "jobs"))
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})

	// No WriteTimeout: live update websockets stay open indefinitely.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           sentryHandler.Handle(srv.Router()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("flatmate listening", "addr", httpServer.Addr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.Hub().CloseAll()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func backupNow(cfg *config.Config, logger *slog.Logger) error {
	bcfg := backupConfig(cfg)
	if !bcfg.Enabled() {
		return backup.ErrDisabled
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m := backup.NewManager(bcfg, db, logger)
	key, err := m.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func restore(cfg *config.Config, logger *slog.Logger, key, dst string) error {
	m := backup.NewManager(backupConfig(cfg), nil, logger)
	if err := m.Restore(context.Background(), key, dst); err != nil {
		return err
	}
	logger.Info("backup restored", "key", key, "path", dst)
	return nil
}
