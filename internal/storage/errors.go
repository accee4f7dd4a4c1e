package storage

import (
	"errors"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ErrObjectNotFound 表示简历文件在 Bucket 中不存在。
var ErrObjectNotFound = errors.New("object not found")

// IsNoSuchKey 判断错误是否表示对象不存在：ErrObjectNotFound、S3 错误码 NoSuchKey/NotFound 或 404。
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrObjectNotFound) {
		return true
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == http.StatusNotFound
	}
	// 部分网关只返回文本错误。
	return strings.Contains(strings.ToLower(err.Error()), "specified key does not exist")
}
