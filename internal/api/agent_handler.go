package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragsystem/internal/agent"
	"ragsystem/internal/errcode"
)

// AgentHandler 暴露编排器中已注册 agent 的查询与调用。
type AgentHandler struct {
	agents *agent.Orchestrator
}

func NewAgentHandler(agents *agent.Orchestrator) *AgentHandler {
	return &AgentHandler{agents: agents}
}

func (h *AgentHandler) List(c *gin.Context) {
	names := h.agents.List()
	infos := make([]agent.Info, 0, len(names))
	for _, name := range names {
		if a, ok := h.agents.Get(name); ok {
			infos = append(infos, a.Info())
		}
	}
	OKWithMeta(c, infos, map[string]any{"count": len(infos)})
}

func (h *AgentHandler) Info(c *gin.Context) {
	a, ok := h.lookup(c)
	if !ok {
		return
	}
	OK(c, a.Info())
}

func (h *AgentHandler) Health(c *gin.Context) {
	a, ok := h.lookup(c)
	if !ok {
		return
	}
	OK(c, gin.H{"name": a.Info().Name, "healthy": a.HealthCheck(c.Request.Context())})
}

func (h *AgentHandler) Process(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.lookup(c); !ok {
		return
	}
	input, ok := bindOptionalJSON(c)
	if !ok {
		return
	}
	respondAgentResult(c, h.agents.Process(c.Request.Context(), name, input))
}

func (h *AgentHandler) lookup(c *gin.Context) (agent.Agent, bool) {
	name := c.Param("name")
	a, ok := h.agents.Get(name)
	if !ok {
		NotFound(c, "agent '"+name+"' not found")
		return nil, false
	}
	return a, true
}

// respondAgentResult 把 agent 结果写入信封；失败结果仍返回 200，success=false。
func respondAgentResult(c *gin.Context, result agent.Result) {
	if result.Success {
		OKWithMeta(c, result.Data, result.Metadata)
		return
	}
	metadata := result.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	c.JSON(http.StatusOK, Envelope{
		Success:   false,
		Message:   result.Error,
		Data:      result.Data,
		Metadata:  metadata,
		ErrorCode: errcode.SystemError,
	})
}
