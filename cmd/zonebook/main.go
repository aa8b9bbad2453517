// Package main runs the client engine headless: it signs nothing in
// by itself, but keeps the notification cache synchronized for an
// existing session until interrupted.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/zonebook/zonebook-go/internal/platform/config"
	"github.com/zonebook/zonebook-go/internal/platform/logger"
	"github.com/zonebook/zonebook-go/pkg/sdk"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLog := logger.New(cfg.Logger)

	client, err := sdk.New(cfg, sdk.WithLogger(appLog))
	if err != nil {
		appLog.Fatal("failed to build client", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		appLog.Fatal("failed to start client", "error", err)
	}

	changes, unsubscribe := client.Notifications.Subscribe()
	defer unsubscribe()

	go func() {
		for change := range changes {
			appLog.Info("notification cache changed",
				"kind", change.Kind,
				"unread", client.Notifications.UnreadCount())
		}
	}()

	appLog.Info("zonebook client running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down")
	cancel()
	if err := client.Close(); err != nil {
		appLog.Error("shutdown error", "error", err)
	}
}
