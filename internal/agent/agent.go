package agent

import (
	"context"
	"time"
)

// Config 是单个 agent 的静态配置。
type Config struct {
	Name       string        `json:"name"`
	Version    string        `json:"version"`
	Enabled    bool          `json:"enabled"`
	MaxRetries int           `json:"max_retries"`
	Timeout    time.Duration `json:"-"`
}

// Info 是对外暴露的 agent 元信息。
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Enabled bool   `json:"enabled"`
}

// Result 是一次处理的结果。处理失败时 Success 为 false，Error 给出原因。
type Result struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Agent 是可被编排器调度的处理单元。
type Agent interface {
	Info() Info
	HealthCheck(ctx context.Context) bool
	Process(ctx context.Context, input map[string]any) (Result, error)
}

// Base 提供 Info 与 HealthCheck 的默认实现，具体 agent 嵌入后只需实现 Process。
type Base struct {
	Config Config
}

func (b Base) Info() Info {
	return Info{Name: b.Config.Name, Version: b.Config.Version, Enabled: b.Config.Enabled}
}

func (b Base) HealthCheck(context.Context) bool {
	return b.Config.Enabled
}

func (b Base) AgentConfig() Config { return b.Config }

// NewConfig 返回带默认值的配置：版本 1.0.0，启用，重试 3 次，超时 30 秒。
func NewConfig(name string) Config {
	return Config{
		Name:       name,
		Version:    "1.0.0",
		Enabled:    true,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}
