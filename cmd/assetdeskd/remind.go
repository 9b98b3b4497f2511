package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"assetdesk-backend/internal/db"
	"assetdesk-backend/internal/notification"
	"assetdesk-backend/internal/reminder"
	"assetdesk-backend/internal/store"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run one reminder scan, deliver the notifications and exit",
	Long: "Classifies active maintenance schedules and warranties once and sends\n" +
		"the due reminders. Intended for cron when the in-process loop is disabled.",
	RunE: runRemind,
}

func runRemind(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore,
		webpushOptions(cfg, logger), notification.NewMailer(cfg.Mail), logger)
	pool.Start(ctx)

	sum, err := reminder.NewService(cfg.Reminder, appStore, pool, logger).ScanOnce(ctx, time.Now())
	pool.Close()
	if err != nil {
		return fmt.Errorf("reminder scan: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schedules=%d warranties=%d dispatched=%d suppressed=%d dropped=%d\n",
		sum.Schedules, sum.Warranties, sum.Dispatched, sum.Suppressed, sum.Dropped)
	return nil
}
