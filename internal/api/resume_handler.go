package api

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ragsystem/internal/agent"
	"ragsystem/internal/api/middleware"
	"ragsystem/internal/config"
	"ragsystem/internal/database"
	"ragsystem/internal/repository"
	"ragsystem/internal/storage"
)

const (
	downloadLinkTTL   = 15 * time.Minute
	uploadRateWindow  = 24 * time.Hour
	defaultMatchLimit = 10
)

var (
	errResumeNotFound = errors.New("resume not found")
	errResumeNotOwned = errors.New("resume belongs to another user")
	errJobNotFound    = errors.New("job description not found")
)

// ResumeHandler 负责简历上传、查询与职位匹配相关的 API 请求。
type ResumeHandler struct {
	uow     *repository.UnitOfWork
	storage ObjectStorage
	redis   windowCounter
	agents  *agent.Orchestrator
	upload  config.UploadConfig
	now     func() time.Time
}

// NewResumeHandler 构造 ResumeHandler。redis 为空时不做每日上传限流。
func NewResumeHandler(uow *repository.UnitOfWork, storage ObjectStorage, redis RedisClient, agents *agent.Orchestrator, upload config.UploadConfig) *ResumeHandler {
	return &ResumeHandler{
		uow:     uow,
		storage: storage,
		redis:   redis,
		agents:  agents,
		upload:  upload,
		now:     time.Now,
	}
}

type analyzeRequest struct {
	ResumeID uint `json:"resume_id" binding:"required"`
	JobID    uint `json:"job_id"`
}

type upsertMatchRequest struct {
	OverallMatchScore    *float64 `json:"overall_match_score"`
	SkillMatchScore      *float64 `json:"skill_match_score"`
	ExperienceMatchScore *float64 `json:"experience_match_score"`
	MatchingSkills       []string `json:"matching_skills"`
	MissingSkills        []string `json:"missing_skills"`
	SkillGaps            []string `json:"skill_gaps"`
	Recommendations      []string `json:"recommendations"`
}

// fields 只包含请求中出现的字段。
func (r upsertMatchRequest) fields() repository.Fields {
	fields := repository.Fields{}
	for name, score := range map[string]*float64{
		"overall_match_score":    r.OverallMatchScore,
		"skill_match_score":      r.SkillMatchScore,
		"experience_match_score": r.ExperienceMatchScore,
	} {
		if score != nil {
			fields[name] = *score
		}
	}
	for name, list := range map[string][]string{
		"matching_skills": r.MatchingSkills,
		"missing_skills":  r.MissingSkills,
		"skill_gaps":      r.SkillGaps,
		"recommendations": r.Recommendations,
	} {
		if list != nil {
			fields[name] = list
		}
	}
	return fields
}

func (h *ResumeHandler) Status(c *gin.Context) {
	_, registered := h.agents.Get("resume")
	OK(c, gin.H{
		"service":          "resume",
		"status":           "not_implemented",
		"agent_registered": registered,
		"allowed_types":    h.upload.AllowedTypes,
		"max_file_size":    h.upload.MaxFileSize,
	})
}

// Upload 接收 multipart 简历文件，写入对象存储后创建 pending 状态的简历记录。
// 数据库写入失败时删除已上传的对象。
func (h *ResumeHandler) Upload(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size <= 0 {
		BadRequest(c, "empty file")
		return
	}
	if file.Size > h.upload.MaxFileSize {
		PayloadTooLarge(c, fmt.Sprintf("file exceeds %d bytes", h.upload.MaxFileSize))
		return
	}

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")
	if !slices.Contains(h.upload.AllowedTypes, fileType) {
		BadRequest(c, "unsupported file type", "allowed: "+strings.Join(h.upload.AllowedTypes, ", "))
		return
	}

	// 限流：每用户每日上传次数，Redis 不可用时放行。
	if h.redis != nil && h.upload.MaxPerUserDaily > 0 {
		count, err := hitWindow(ctx, h.redis, uploadRateKey(user.UserID, h.now()), uploadRateWindow)
		if err != nil {
			logger.Warn("upload rate counter unavailable", slog.Any("error", err))
			count = 0
		}
		if count > int64(h.upload.MaxPerUserDaily) {
			TooManyRequests(c, "daily upload limit reached")
			return
		}
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer reader.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectKey := storage.ResumeObjectKey(user.UserID, fileType)
	if _, err := h.storage.UploadFile(ctx, objectKey, reader, file.Size, contentType); err != nil {
		logger.Error("upload resume file", slog.String("objectKey", objectKey), slog.Any("error", err))
		Internal(c, "failed to store file")
		return
	}

	var created *database.Resume
	err = h.uow.Do(ctx, func(repos *repository.Factory) error {
		var err error
		created, err = repos.Resumes().Create(ctx, &database.Resume{
			UserID:             user.UserID,
			Filename:           file.Filename,
			FilePath:           objectKey,
			FileSize:           file.Size,
			FileType:           fileType,
			Status:             database.StatusPending,
			ProcessingMetadata: map[string]any{"content_type": contentType},
		})
		return err
	})
	if err != nil {
		if delErr := h.storage.DeleteObject(ctx, objectKey); delErr != nil {
			logger.Error("cleanup orphan resume object", slog.String("objectKey", objectKey), slog.Any("error", delErr))
		}
		RepositoryError(c, "create resume", err)
		return
	}

	Created(c, created)
}

func (h *ResumeHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body", err.Error())
		return
	}
	resume, ok := h.ownedResume(c, req.ResumeID)
	if !ok {
		return
	}

	input := map[string]any{
		"action":    "analyze",
		"resume_id": resume.ID,
		"file_type": resume.FileType,
	}
	if req.JobID != 0 {
		input["job_id"] = req.JobID
	}
	respondAgentResult(c, h.agents.Process(c.Request.Context(), "resume", input))
}

func (h *ResumeHandler) GetResume(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if resume, ok := h.ownedResume(c, id); ok {
		OK(c, resume)
	}
}

// DownloadLink 返回原文件的限时下载链接。
func (h *ResumeHandler) DownloadLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resume, ok := h.ownedResume(c, id)
	if !ok {
		return
	}
	if resume.FilePath == "" {
		NotFound(c, "resume file not found")
		return
	}

	ctx := c.Request.Context()
	meta, err := h.storage.StatObject(ctx, resume.FilePath)
	if storage.IsNoSuchKey(err) {
		NotFound(c, "resume file not found")
		return
	}
	if err != nil {
		middleware.LoggerFromContext(c).Error("stat resume object", slog.String("objectKey", resume.FilePath), slog.Any("error", err))
		Unavailable(c, "object storage unavailable")
		return
	}

	url, err := h.storage.GeneratePresignedURL(ctx, resume.FilePath, downloadLinkTTL)
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate presigned url", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	OK(c, gin.H{
		"url":          url,
		"expires_in":   int(downloadLinkTTL.Seconds()),
		"size":         meta.Size,
		"content_type": meta.ContentType,
	})
}

// Matches 返回简历的高分职位匹配，min_score 默认 0.7。
func (h *ResumeHandler) Matches(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, ok := h.ownedResume(c, id); !ok {
		return
	}

	minScore := queryFloat(c, "min_score", repository.DefaultMinMatchScore)
	limit := queryInt(c, "limit", defaultMatchLimit, maxPageSize)
	matches, err := h.uow.Repos(c.Request.Context()).JobMatches().GetTopMatches(c.Request.Context(), id, minScore, limit)
	if err != nil {
		RepositoryError(c, "list resume matches", err)
		return
	}
	OKWithMeta(c, matches, map[string]any{"count": len(matches), "min_score": minScore})
}

// UpsertMatch 创建或更新简历与职位的匹配结果。
func (h *ResumeHandler) UpsertMatch(c *gin.Context) {
	resumeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}
	var req upsertMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body", err.Error())
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	var match *database.JobMatch
	err := h.uow.Do(ctx, func(repos *repository.Factory) error {
		resume, err := repos.Resumes().GetByID(ctx, resumeID)
		if err != nil {
			return err
		}
		if resume == nil {
			return errResumeNotFound
		}
		if resume.UserID != user.UserID {
			return errResumeNotOwned
		}
		job, err := repos.Jobs().GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return errJobNotFound
		}
		match, err = repos.JobMatches().CreateOrUpdateMatch(ctx, jobID, resumeID, req.fields())
		return err
	})
	switch {
	case errors.Is(err, errResumeNotFound), errors.Is(err, errJobNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, errResumeNotOwned):
		Forbidden(c, "access denied")
	case err != nil:
		RepositoryError(c, "upsert job match", err)
	default:
		OK(c, match)
	}
}

// SearchJobs 按 level、company、q（标题）依次选择查询方式，都缺省时按创建时间倒序分页。
func (h *ResumeHandler) SearchJobs(c *gin.Context) {
	ctx := c.Request.Context()
	jobs := h.uow.Repos(ctx).Jobs()
	limit, offset := pagination(c)

	var (
		rows []database.JobDescription
		err  error
	)
	switch {
	case c.Query("level") != "":
		level := database.ExperienceLevel(strings.ToLower(c.Query("level")))
		if !level.Valid() {
			BadRequest(c, "invalid level", "allowed: entry, junior, mid, senior, executive")
			return
		}
		rows, err = jobs.GetByExperienceLevel(ctx, level, limit, offset)
	case c.Query("company") != "":
		rows, err = jobs.SearchByCompany(ctx, c.Query("company"), limit, offset)
	case c.Query("q") != "":
		rows, err = jobs.SearchByTitle(ctx, c.Query("q"), limit, offset)
	default:
		rows, err = jobs.GetAll(ctx, repository.ListOptions{Limit: limit, Offset: offset, OrderBy: "created_at", Desc: true})
	}
	if err != nil {
		RepositoryError(c, "search jobs", err)
		return
	}
	OKWithMeta(c, rows, map[string]any{"count": len(rows), "limit": limit, "offset": offset})
}

// ownedResume 读取当前用户的简历，不存在写回 404，属于他人写回 403。
func (h *ResumeHandler) ownedResume(c *gin.Context, id uint) (*database.Resume, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	resume, err := h.uow.Repos(c.Request.Context()).Resumes().GetByID(c.Request.Context(), id)
	if err != nil {
		RepositoryError(c, "get resume", err)
		return nil, false
	}
	if resume == nil {
		NotFound(c, errResumeNotFound.Error())
		return nil, false
	}
	if resume.UserID != user.UserID {
		Forbidden(c, "access denied")
		return nil, false
	}
	return resume, true
}
