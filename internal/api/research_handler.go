package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"ragsystem/internal/agent"
	"ragsystem/internal/database"
	"ragsystem/internal/repository"
)

const (
	defaultRecentDays = 7
	maxRecentDays     = 365
	defaultChunkLimit = 50
)

// includeRelations 把接口上的 include 名称映射为论文的预加载路径。
var includeRelations = map[string]string{
	"authors":    "PaperAuthors.Author",
	"categories": "PaperCategories.Category",
	"chunks":     "Chunks",
}

// ResearchHandler 提供论文查询接口，检索与入库交给 research agent。
type ResearchHandler struct {
	uow    *repository.UnitOfWork
	agents *agent.Orchestrator
}

func NewResearchHandler(uow *repository.UnitOfWork, agents *agent.Orchestrator) *ResearchHandler {
	return &ResearchHandler{uow: uow, agents: agents}
}

func (h *ResearchHandler) Status(c *gin.Context) {
	_, registered := h.agents.Get("research")
	OK(c, gin.H{
		"service":          "research",
		"status":           "not_implemented",
		"agent_registered": registered,
	})
}

func (h *ResearchHandler) Search(c *gin.Context) {
	h.process(c, "search")
}

func (h *ResearchHandler) Ingest(c *gin.Context) {
	h.process(c, "ingest")
}

func (h *ResearchHandler) process(c *gin.Context, action string) {
	input, ok := bindOptionalJSON(c)
	if !ok {
		return
	}
	input["action"] = action
	respondAgentResult(c, h.agents.Process(c.Request.Context(), "research", input))
}

// ListPapers 支持 q（标题）、status、category 三种过滤，按出现顺序取第一个；都缺省时按发表日期倒序分页。
func (h *ResearchHandler) ListPapers(c *gin.Context) {
	ctx := c.Request.Context()
	papers := h.uow.Repos(ctx).Papers()
	limit, offset := pagination(c)
	meta := map[string]any{"limit": limit, "offset": offset}

	var (
		rows []database.Paper
		err  error
	)
	switch {
	case c.Query("q") != "":
		rows, err = papers.SearchByTitle(ctx, c.Query("q"), limit, offset)
	case c.Query("status") != "":
		status := database.ProcessingStatus(strings.ToLower(c.Query("status")))
		if !status.Valid() {
			BadRequest(c, "invalid status", "allowed: pending, processing, completed, failed")
			return
		}
		rows, err = papers.GetByStatus(ctx, status, limit, offset)
	case c.Query("category") != "":
		rows, err = papers.GetByCategories(ctx, csv(c.Query("category")), limit, offset)
	default:
		var total int64
		if total, err = papers.Count(ctx, nil); err == nil {
			meta["total"] = total
			rows, err = papers.GetAll(ctx, repository.ListOptions{Limit: limit, Offset: offset, OrderBy: "published_date", Desc: true})
		}
	}
	if err != nil {
		RepositoryError(c, "list papers", err)
		return
	}
	meta["count"] = len(rows)
	OKWithMeta(c, rows, meta)
}

func (h *ResearchHandler) RecentPapers(c *gin.Context) {
	ctx := c.Request.Context()
	days := queryInt(c, "days", defaultRecentDays, maxRecentDays)
	if days == 0 {
		days = defaultRecentDays
	}
	limit := queryInt(c, "limit", 0, maxPageSize)

	rows, err := h.uow.Repos(ctx).Papers().GetRecentPapers(ctx, days, limit)
	if err != nil {
		RepositoryError(c, "list recent papers", err)
		return
	}
	OKWithMeta(c, rows, map[string]any{"count": len(rows), "days": days})
}

// GetPaper 读取单篇论文，include=authors,categories,chunks 控制预加载。
func (h *ResearchHandler) GetPaper(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var relations []string
	for _, name := range csv(c.Query("include")) {
		if path, ok := includeRelations[strings.ToLower(name)]; ok {
			relations = append(relations, path)
		}
	}

	ctx := c.Request.Context()
	paper, err := h.uow.Repos(ctx).Papers().GetWithRelations(ctx, id, relations...)
	if err != nil {
		RepositoryError(c, "get paper", err)
		return
	}
	if paper == nil {
		NotFound(c, "paper not found")
		return
	}
	OK(c, paper)
}

func (h *ResearchHandler) PaperChunks(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	repos := h.uow.Repos(ctx)

	exists, err := repos.Papers().Exists(ctx, repository.Fields{"id": id})
	if err != nil {
		RepositoryError(c, "get paper", err)
		return
	}
	if !exists {
		NotFound(c, "paper not found")
		return
	}

	limit := queryInt(c, "limit", defaultChunkLimit, maxPageSize)
	offset := queryInt(c, "offset", 0, 0)
	chunks, err := repos.Chunks().GetByPaperID(ctx, id, limit, offset)
	if err != nil {
		RepositoryError(c, "list paper chunks", err)
		return
	}
	OKWithMeta(c, chunks, map[string]any{"count": len(chunks), "limit": limit, "offset": offset})
}

// DeletePaper 删除论文，作者关联、分类关联与文本片段随外键级联删除。
func (h *ResearchHandler) DeletePaper(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	deleted, err := h.uow.Repos(ctx).Papers().Delete(ctx, id)
	if err != nil {
		RepositoryError(c, "delete paper", err)
		return
	}
	if !deleted {
		NotFound(c, "paper not found")
		return
	}
	OK(c, gin.H{"id": id, "deleted": true})
}
