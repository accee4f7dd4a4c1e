package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragsystem/internal/api/middleware"
	"ragsystem/internal/errcode"
	"ragsystem/internal/repository"
)

// Envelope 是所有业务接口统一的响应结构。
type Envelope struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message,omitempty"`
	Data      any            `json:"data"`
	Errors    []string       `json:"errors,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	ErrorCode int            `json:"error_code"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Metadata: map[string]any{}})
}

func OKWithMeta(c *gin.Context, data any, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Metadata: metadata})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data, Metadata: map[string]any{}})
}

func Error(c *gin.Context, status, code int, msg string, details ...string) {
	c.JSON(status, Envelope{
		Success:   false,
		Message:   msg,
		Errors:    details,
		Metadata:  map[string]any{},
		ErrorCode: code,
	})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{
		Success:   false,
		Message:   "authentication required",
		Metadata:  map[string]any{},
		ErrorCode: errcode.Unauthorized,
	})
}

func BadRequest(c *gin.Context, msg string, details ...string) {
	Error(c, http.StatusBadRequest, errcode.InvalidArgument, msg, details...)
}
func NotFound(c *gin.Context, msg string) {
	Error(c, http.StatusNotFound, errcode.ResourceMissing, msg)
}
func Conflict(c *gin.Context, msg string, details ...string) {
	Error(c, http.StatusConflict, errcode.Conflict, msg, details...)
}
func Forbidden(c *gin.Context, msg string) {
	Error(c, http.StatusForbidden, errcode.Forbidden, msg)
}
func TooManyRequests(c *gin.Context, msg string) {
	Error(c, http.StatusTooManyRequests, errcode.RateLimited, msg)
}
func PayloadTooLarge(c *gin.Context, msg string) {
	Error(c, http.StatusRequestEntityTooLarge, errcode.PayloadTooLarge, msg)
}
func Internal(c *gin.Context, msg string) {
	Error(c, http.StatusInternalServerError, errcode.SystemError, msg)
}
func Unavailable(c *gin.Context, msg string) {
	Error(c, http.StatusServiceUnavailable, errcode.Unavailable, msg)
}

// RepositoryError 把仓储层错误映射为 HTTP 响应：校验 400、冲突 409、存储不可用 503，其余 500。
func RepositoryError(c *gin.Context, op string, err error) {
	logger := middleware.LoggerFromContext(c)
	switch {
	case errors.Is(err, repository.ErrValidation):
		BadRequest(c, "validation failed", err.Error())
	case errors.Is(err, repository.ErrConflict):
		Conflict(c, "resource already exists", err.Error())
	case errors.Is(err, repository.ErrConnection):
		logger.Error(op+" failed: storage unavailable", slog.Any("error", err))
		Unavailable(c, "storage unavailable")
	default:
		logger.Error(op+" failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}
