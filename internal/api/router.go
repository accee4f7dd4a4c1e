package api

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"ragsystem/internal/agent"
	"ragsystem/internal/api/middleware"
	"ragsystem/internal/config"
	"ragsystem/internal/metrics"
	"ragsystem/internal/repository"
	"ragsystem/internal/storage"
)

// ObjectStorage 是简历原文件所需的对象存储能力，由 storage.Client 实现。
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	StatObject(ctx context.Context, objectKey string) (*storage.ObjectMeta, error)
	DeleteObject(ctx context.Context, objectKey string) error
	Ping(ctx context.Context) error
}

// Deps 汇总路由依赖。Redis 可为空，此时跳过上传限流与 Redis 就绪检查。
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   RedisClient
	Storage ObjectStorage
	Agents  *agent.Orchestrator
	Logger  *slog.Logger
}

// NewRouter 构建 Gin 路由引擎：根路径暴露 /health 与 /metrics，业务接口挂在配置的前缀下。
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		middleware.CORSMiddleware(deps.Config.API.CORSOrigins),
		metrics.GinMiddleware("/metrics", "/health"),
	)

	health := NewHealthHandler(deps.Config.App, deps.DB, deps.Redis, deps.Storage, deps.Agents)
	router.GET("/health", health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	uow := repository.NewUnitOfWork(deps.DB)
	auth := middleware.AuthMiddleware(AbortUnauthorized)

	v1 := router.Group(deps.Config.API.Prefix)
	{
		healthGroup := v1.Group("/health")
		{
			healthGroup.GET("", health.Health)
			healthGroup.GET("/ready", health.Ready)
			healthGroup.GET("/live", health.Live)
		}

		research := NewResearchHandler(uow, deps.Agents)
		researchGroup := v1.Group("/research")
		researchGroup.Use(auth)
		{
			researchGroup.GET("", research.Status)
			researchGroup.POST("/search", research.Search)
			researchGroup.POST("/ingest", research.Ingest)
			researchGroup.GET("/papers", research.ListPapers)
			researchGroup.GET("/papers/recent", research.RecentPapers)
			researchGroup.GET("/papers/:id", research.GetPaper)
			researchGroup.GET("/papers/:id/chunks", research.PaperChunks)
			researchGroup.DELETE("/papers/:id", research.DeletePaper)
		}

		resume := NewResumeHandler(uow, deps.Storage, deps.Redis, deps.Agents, deps.Config.Upload)
		resumeGroup := v1.Group("/resume")
		resumeGroup.Use(auth)
		{
			resumeGroup.GET("", resume.Status)
			resumeGroup.POST("/upload", resume.Upload)
			resumeGroup.POST("/analyze", resume.Analyze)
			resumeGroup.GET("/jobs", resume.SearchJobs)
			resumeGroup.GET("/:id", resume.GetResume)
			resumeGroup.GET("/:id/download-link", resume.DownloadLink)
			resumeGroup.GET("/:id/matches", resume.Matches)
			resumeGroup.PUT("/:id/matches/:job_id", resume.UpsertMatch)
		}

		agents := NewAgentHandler(deps.Agents)
		agentGroup := v1.Group("/agents")
		agentGroup.Use(auth)
		{
			agentGroup.GET("", agents.List)
			agentGroup.GET("/:name/info", agents.Info)
			agentGroup.GET("/:name/health", agents.Health)
			agentGroup.POST("/:name/process", agents.Process)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		NotFound(c, "route not found")
	})

	return router
}
