package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pathID 解析路径中的正整数 ID，失败时直接写回 400。
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid "+name, "expected a positive integer, got "+strconv.Quote(raw))
		return 0, false
	}
	return uint(id), true
}

// queryInt 读取整数查询参数；缺省或非法时返回 def，max > 0 时截断到 max。
func queryInt(c *gin.Context, key string, def, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

func queryFloat(c *gin.Context, key string, def float64) float64 {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil {
		return def
	}
	return v
}

// pagination 返回 limit/offset，limit 默认 20，最大 100。
func pagination(c *gin.Context) (limit, offset int) {
	limit = queryInt(c, "limit", defaultPageSize, maxPageSize)
	if limit == 0 {
		limit = defaultPageSize
	}
	return limit, queryInt(c, "offset", 0, 0)
}

// csv 把逗号分隔的查询参数拆成去空白的非空列表。
func csv(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// bindOptionalJSON 绑定可选的 JSON 请求体，空请求体得到空 map。
func bindOptionalJSON(c *gin.Context) (map[string]any, bool) {
	body := map[string]any{}
	if c.Request.ContentLength == 0 {
		return body, true
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid request body", err.Error())
		return nil, false
	}
	return body, true
}
