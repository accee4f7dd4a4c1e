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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"ragsystem/internal/agent"
	"ragsystem/internal/api"
	"ragsystem/internal/config"
	"ragsystem/internal/database"
	"ragsystem/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("connecting database",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("name", cfg.Database.Name),
	)
	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Redis 只承担限流与就绪检查，启动时不可用不阻止服务。
		logger.Warn("redis unavailable at startup", slog.String("addr", cfg.Redis.Addr()), slog.Any("error", err))
	}

	objects, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		return err
	}
	logger.Info("object storage ready", slog.String("bucket", cfg.MinIO.Bucket))

	orchestrator := agent.NewOrchestrator(logger)
	for _, a := range agent.Defaults() {
		orchestrator.Register(a)
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.API.Port),
		Handler: api.NewRouter(api.Deps{
			Config:  cfg,
			DB:      db,
			Redis:   rdb,
			Storage: objects,
			Agents:  orchestrator,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			slog.String("addr", srv.Addr),
			slog.String("prefix", cfg.API.Prefix),
			slog.String("environment", cfg.App.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
