package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"assetdesk-backend/config"
	"assetdesk-backend/internal/api"
	"assetdesk-backend/internal/db"
	"assetdesk-backend/internal/mw"
	"assetdesk-backend/internal/notification"
	"assetdesk-backend/internal/reminder"
	"assetdesk-backend/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the notification workers and the reminder loop",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override server.port")
}

// webpushOptions returns nil when VAPID keys are not configured.
func webpushOptions(cfg *config.Config, logger zerolog.Logger) *webpush.Options {
	if !cfg.Push.Enabled() {
		logger.Warn().Msg("VAPID keys are not configured; web push is disabled")
		return nil
	}
	return &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	gin.SetMode(gin.ReleaseMode)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database initialized")
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	push := webpushOptions(cfg, logger)
	mailer := notification.NewMailer(cfg.Mail)
	if mailer == nil {
		logger.Warn().Msg("mail.host is empty; email notifications are disabled")
	}
	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, push, mailer, logger)
	pool.Start(ctx)

	reminders := reminder.NewService(cfg.Reminder, appStore, pool, logger)
	go reminders.Run(ctx)

	router := api.NewRouter(appStore, cfg.Server, api.Options{
		Dispatcher:     pool,
		WebPush:        push,
		Tokens:         mw.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		WarrantyWindow: cfg.Reminder.WarrantyWindow,
		Location:       cfg.Reminder.Location,
		Logger:         logger,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received, stopping services")
	case err := <-serveErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	// Deliver what is already queued before the workers' context ends.
	pool.Close()
	logger.Info().Msg("server gracefully stopped")
	return nil
}
