// Package main runs the background worker that delivers moderation notifications.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calendint/backend/config"
	"github.com/calendint/backend/internal/auth"
	"github.com/calendint/backend/internal/notifications"
	"github.com/calendint/backend/internal/telemetry"
	"github.com/calendint/backend/internal/worker"
	"github.com/calendint/backend/pkg/database"
	"github.com/calendint/backend/pkg/queue"
	"github.com/calendint/backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := newLogger(cfg.IsProduction())
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var sender worker.Sender = worker.NewLogSender(logger)
	if cfg.Email.SMTPHost != "" {
		sender = worker.NewSMTPSender(worker.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			User:     cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPass,
			From:     cfg.Email.FromAddress,
		})
	} else {
		logger.Warn("SMTP_HOST not set, notifications are only logged")
	}

	processor := worker.NewNotificationProcessor(
		queue.NewQueue(rdb.Client, logger),
		auth.NewRepository(pool),
		notifications.NewRepository(pool),
		sender,
		logger,
	)

	if cfg.Metrics.Port != "" {
		go telemetry.Serve(ctx, ":"+cfg.Metrics.Port, logger)
	}

	done := make(chan struct{})
	go func() {
		processor.Run(ctx)
		close(done)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	<-done
	logger.Info("worker stopped")
}

func newLogger(production bool) *zap.Logger {
	config := zap.NewProductionConfig()
	if !production {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
