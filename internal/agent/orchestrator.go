package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ragsystem/internal/metrics"
)

// Orchestrator 按名字管理 agent。由 main 创建并注入到 HTTP 层，不使用全局实例。
type Orchestrator struct {
	mu     sync.RWMutex
	agents map[string]Agent
	logger *slog.Logger
}

func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		agents: map[string]Agent{},
		logger: logger.With("component", "orchestrator"),
	}
}

// Register 注册 agent，同名 agent 会被替换。
func (o *Orchestrator) Register(a Agent) {
	name := a.Info().Name
	o.mu.Lock()
	o.agents[name] = a
	o.mu.Unlock()
	o.logger.Info("agent registered", "agent_name", name)
}

func (o *Orchestrator) Get(name string) (Agent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.agents[name]
	return a, ok
}

// List 返回按名字排序的 agent 名称。
func (o *Orchestrator) List() []string {
	o.mu.RLock()
	names := make([]string, 0, len(o.agents))
	for name := range o.agents {
		names = append(names, name)
	}
	o.mu.RUnlock()
	sort.Strings(names)
	return names
}

// HealthCheckAll 检查全部 agent，panic 的检查视为不健康。
func (o *Orchestrator) HealthCheckAll(ctx context.Context) map[string]bool {
	results := map[string]bool{}
	for _, name := range o.List() {
		a, ok := o.Get(name)
		if !ok {
			continue
		}
		results[name] = o.healthCheck(ctx, name, a)
	}
	return results
}

func (o *Orchestrator) healthCheck(ctx context.Context, name string, a Agent) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("health check failed", "agent_name", name, "error", r)
			healthy = false
		}
	}()
	return a.HealthCheck(ctx)
}

// Process 把输入交给指定 agent。找不到 agent 或处理出错都体现在 Result 中，不返回 error。
func (o *Orchestrator) Process(ctx context.Context, name string, input map[string]any) (result Result) {
	a, ok := o.Get(name)
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("agent '%s' not found", name)}
	}

	done := metrics.TrackAgent(name)
	defer func() { done(result.Success) }()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("agent processing panicked", "agent_name", name, "error", r)
			result = Result{Success: false, Error: fmt.Sprintf("processing failed: %v", r)}
		}
	}()

	if timeout := configTimeout(a); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := a.Process(ctx, input)
	if err != nil {
		o.logger.Error("agent processing failed", "agent_name", name, "error", err)
		return Result{Success: false, Error: fmt.Sprintf("processing failed: %v", err)}
	}
	return res
}

type configured interface {
	AgentConfig() Config
}

func configTimeout(a Agent) time.Duration {
	if c, ok := a.(configured); ok {
		return c.AgentConfig().Timeout
	}
	return 0
}
