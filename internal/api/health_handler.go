package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ragsystem/internal/agent"
	"ragsystem/internal/api/middleware"
	"ragsystem/internal/config"
)

const readinessTimeout = 2 * time.Second

// HealthHandler 提供存活、就绪探针。
type HealthHandler struct {
	app     config.AppConfig
	db      *gorm.DB
	redis   RedisClient
	storage ObjectStorage
	agents  *agent.Orchestrator
}

func NewHealthHandler(app config.AppConfig, db *gorm.DB, redis RedisClient, storage ObjectStorage, agents *agent.Orchestrator) *HealthHandler {
	return &HealthHandler{app: app, db: db, redis: redis, storage: storage, agents: agents}
}

func (h *HealthHandler) Health(c *gin.Context) {
	OK(c, gin.H{
		"status":      "healthy",
		"service":     h.app.Name,
		"version":     h.app.Version,
		"environment": h.app.Environment,
	})
}

func (h *HealthHandler) Live(c *gin.Context) {
	OK(c, gin.H{"status": "alive"})
}

// Ready 检查数据库、Redis 与对象存储连通性并汇总 agent 健康状态。
// agent 不健康不影响就绪结果，只在响应中体现。
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	logger := middleware.LoggerFromContext(c)
	checks := gin.H{}
	ready := true

	if err := h.pingDB(ctx); err != nil {
		logger.Warn("database not ready", slog.Any("error", err))
		checks["database"] = "unavailable"
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not ready", slog.Any("error", err))
			checks["redis"] = "unavailable"
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if h.storage != nil {
		if err := h.storage.Ping(ctx); err != nil {
			logger.Warn("object storage not ready", slog.Any("error", err))
			checks["storage"] = "unavailable"
			ready = false
		} else {
			checks["storage"] = "ok"
		}
	}

	if h.agents != nil {
		checks["agents"] = h.agents.HealthCheckAll(ctx)
	}

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, Envelope{
		Success:  ready,
		Data:     gin.H{"status": status, "checks": checks},
		Metadata: map[string]any{},
	})
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
