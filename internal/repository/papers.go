package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ragsystem/internal/database"
)

const (
	defaultSearchLimit   = 10
	defaultRecentLimit   = 50
	defaultRecentPapers  = 7
	defaultRecentResumes = 30
)

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// containsPattern 生成大小写不敏感的子串匹配参数，转义 LIKE 通配符。
func containsPattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

// ilike 同时适用于 PostgreSQL 和 SQLite。
func ilike(column string) string {
	return fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, column)
}

func page(tx *gorm.DB, limit, offset int) *gorm.DB {
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	return tx
}

// PaperRepository 在通用仓储之上提供论文检索、分类过滤和状态流转。
type PaperRepository struct {
	*Repository[database.Paper]
}

func NewPaperRepository(db *gorm.DB) *PaperRepository {
	return &PaperRepository{Repository: NewRepository[database.Paper](db)}
}

func (r *PaperRepository) GetByArxivID(ctx context.Context, arxivID string) (*database.Paper, error) {
	return r.GetByField(ctx, "arxiv_id", arxivID)
}

// GetWithAuthors 预加载作者，按 author_order 排序。
func (r *PaperRepository) GetWithAuthors(ctx context.Context, id uint) (*database.Paper, error) {
	return r.takeWith(ctx, id, "get paper with authors", func(tx *gorm.DB) *gorm.DB {
		return tx.
			Preload("PaperAuthors", func(db *gorm.DB) *gorm.DB { return db.Order("author_order") }).
			Preload("PaperAuthors.Author")
	})
}

// GetWithChunks 预加载文本片段，按 chunk_index 排序。
func (r *PaperRepository) GetWithChunks(ctx context.Context, id uint) (*database.Paper, error) {
	return r.takeWith(ctx, id, "get paper with chunks", func(tx *gorm.DB) *gorm.DB {
		return tx.Preload("Chunks", func(db *gorm.DB) *gorm.DB { return db.Order("chunk_index") })
	})
}

// SearchByTitle 标题子串搜索，按发表日期倒序；limit <= 0 时取 10 条。
func (r *PaperRepository) SearchByTitle(ctx context.Context, query string, limit, offset int) ([]database.Paper, error) {
	return r.search(ctx, "papers.title", query, limit, offset)
}

func (r *PaperRepository) SearchByAbstract(ctx context.Context, query string, limit, offset int) ([]database.Paper, error) {
	return r.search(ctx, "papers.abstract", query, limit, offset)
}

func (r *PaperRepository) search(ctx context.Context, col, query string, limit, offset int) ([]database.Paper, error) {
	return r.find(ctx, "search papers", func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where(ilike(col), containsPattern(query)).Order("papers.published_date DESC")
		return page(tx, orDefault(limit, defaultSearchLimit), offset)
	})
}

// GetByDateRange 返回发表日期在 [start, end] 内的论文，按发表日期倒序。limit 为 0 时不限制。
func (r *PaperRepository) GetByDateRange(ctx context.Context, start, end time.Time, limit, offset int) ([]database.Paper, error) {
	return r.find(ctx, "list papers by date", func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("papers.published_date >= ? AND papers.published_date <= ?", start, end).
			Order("papers.published_date DESC")
		return page(tx, limit, offset)
	})
}

// GetByCategories 返回属于任一分类代码的论文，每篇论文只出现一次。codes 为空时返回空结果。
func (r *PaperRepository) GetByCategories(ctx context.Context, codes []string, limit, offset int) ([]database.Paper, error) {
	if len(codes) == 0 {
		return []database.Paper{}, nil
	}
	sub := r.conn(ctx).
		Model(&database.PaperCategory{}).
		Select("paper_categories.paper_id").
		Joins("JOIN categories ON categories.id = paper_categories.category_id").
		Where("categories.code IN ?", codes)

	return r.find(ctx, "list papers by categories", func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("papers.id IN (?)", sub).Order("papers.published_date DESC")
		return page(tx, limit, offset)
	})
}

func (r *PaperRepository) GetByStatus(ctx context.Context, status database.ProcessingStatus, limit, offset int) ([]database.Paper, error) {
	return r.GetByFilters(ctx, Filters{"status": status}, ListOptions{Limit: limit, Offset: offset, OrderBy: "created_at"})
}

// GetRecentPapers 返回最近 days 天内发表的论文，默认 7 天、50 条。
func (r *PaperRepository) GetRecentPapers(ctx context.Context, days, limit int) ([]database.Paper, error) {
	now := r.db.NowFunc()
	start := now.AddDate(0, 0, -orDefault(days, defaultRecentPapers))
	return r.GetByDateRange(ctx, start, now, orDefault(limit, defaultRecentLimit), 0)
}

// UpdateProcessingStatus 更新处理状态；metadata 非空时整体替换 processing_metadata。
func (r *PaperRepository) UpdateProcessingStatus(ctx context.Context, id uint, status database.ProcessingStatus, metadata map[string]any) (*database.Paper, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("update processing status: %w: unknown status %q", ErrValidation, status)
	}
	fields := Fields{"status": status}
	if len(metadata) > 0 {
		fields["processing_metadata"] = datatypes.JSONMap(metadata)
	}
	return r.Update(ctx, id, fields)
}

// AddAuthor 关联作者，同一作者重复关联返回 ErrConflict。
func (r *PaperRepository) AddAuthor(ctx context.Context, paperID, authorID uint, order int) (*database.PaperAuthor, error) {
	return NewRepository[database.PaperAuthor](r.db).Create(ctx, &database.PaperAuthor{
		PaperID:     paperID,
		AuthorID:    authorID,
		AuthorOrder: order,
	})
}

func (r *PaperRepository) AddCategory(ctx context.Context, paperID, categoryID uint, primary bool) (*database.PaperCategory, error) {
	return NewRepository[database.PaperCategory](r.db).Create(ctx, &database.PaperCategory{
		PaperID:    paperID,
		CategoryID: categoryID,
		IsPrimary:  primary,
	})
}

// takeWith 按主键读取一条记录并应用自定义预加载。
func (r *Repository[T]) takeWith(ctx context.Context, id uint, op string, scope func(*gorm.DB) *gorm.DB) (*T, error) {
	var out T
	err := scope(r.conn(ctx)).Take(&out, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(op, err)
	}
	return &out, nil
}

// AuthorRepository 提供作者查询与幂等创建。
type AuthorRepository struct {
	*Repository[database.Author]
}

func NewAuthorRepository(db *gorm.DB) *AuthorRepository {
	return &AuthorRepository{Repository: NewRepository[database.Author](db)}
}

func (r *AuthorRepository) GetByName(ctx context.Context, name string) (*database.Author, error) {
	return r.GetByField(ctx, "name", name)
}

func (r *AuthorRepository) GetByOrcid(ctx context.Context, orcid string) (*database.Author, error) {
	return r.GetByField(ctx, "orcid", orcid)
}

// SearchByName 名字子串搜索，按名字升序；limit <= 0 时取 10 条。
func (r *AuthorRepository) SearchByName(ctx context.Context, query string, limit, offset int) ([]database.Author, error) {
	return r.find(ctx, "search authors", func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where(ilike("authors.name"), containsPattern(query)).Order("authors.name")
		return page(tx, orDefault(limit, defaultSearchLimit), offset)
	})
}

func (r *AuthorRepository) GetWithPapers(ctx context.Context, id uint) (*database.Author, error) {
	return r.takeWith(ctx, id, "get author with papers", func(tx *gorm.DB) *gorm.DB {
		return tx.Preload("PaperAuthors").Preload("PaperAuthors.Paper")
	})
}

// GetOrCreate 按名字查找作者，不存在时用 defaults 的其余字段创建。
// name 没有唯一索引，并发创建同名作者时可能产生重复行。
func (r *AuthorRepository) GetOrCreate(ctx context.Context, name string, defaults database.Author) (*database.Author, error) {
	defaults.Model = database.Model{}
	defaults.Name = name
	return r.firstOrCreate(ctx, func(ctx context.Context) (*database.Author, error) {
		return r.GetByName(ctx, name)
	}, &defaults)
}

// CategoryRepository 管理 arXiv 分类表。
type CategoryRepository struct {
	*Repository[database.Category]
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{Repository: NewRepository[database.Category](db)}
}

func (r *CategoryRepository) GetByCode(ctx context.Context, code string) (*database.Category, error) {
	return r.GetByField(ctx, "code", code)
}

func (r *CategoryRepository) GetByParent(ctx context.Context, parent string, limit, offset int) ([]database.Category, error) {
	return r.GetByFilters(ctx, Filters{"parent_category": parent}, ListOptions{Limit: limit, Offset: offset, OrderBy: "code"})
}

func (r *CategoryRepository) GetOrCreate(ctx context.Context, code string, defaults database.Category) (*database.Category, error) {
	defaults.Model = database.Model{}
	defaults.Code = code
	return r.firstOrCreate(ctx, func(ctx context.Context) (*database.Category, error) {
		return r.GetByCode(ctx, code)
	}, &defaults)
}

// ChunkRepository 管理论文文本片段和向量。
type ChunkRepository struct {
	*Repository[database.Chunk]
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{Repository: NewRepository[database.Chunk](db)}
}

func (r *ChunkRepository) GetByPaperID(ctx context.Context, paperID uint, limit, offset int) ([]database.Chunk, error) {
	return r.GetByFilters(ctx, Filters{"paper_id": paperID}, ListOptions{Limit: limit, Offset: offset, OrderBy: "chunk_index"})
}

func (r *ChunkRepository) GetBySectionType(ctx context.Context, sectionType string, limit, offset int) ([]database.Chunk, error) {
	return r.GetByFilters(ctx, Filters{"section_type": sectionType}, ListOptions{Limit: limit, Offset: offset, OrderBy: "created_at"})
}

// SearchContent 内容子串搜索，按创建时间倒序；limit <= 0 时取 10 条。
func (r *ChunkRepository) SearchContent(ctx context.Context, query string, limit, offset int) ([]database.Chunk, error) {
	return r.find(ctx, "search chunks", func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where(ilike("chunks.content"), containsPattern(query)).Order("chunks.created_at DESC")
		return page(tx, orDefault(limit, defaultSearchLimit), offset)
	})
}

// GetChunksWithEmbeddings 返回已有向量的片段，model 非空时只返回该模型生成的向量。
func (r *ChunkRepository) GetChunksWithEmbeddings(ctx context.Context, model string, limit, offset int) ([]database.Chunk, error) {
	return r.find(ctx, "list chunks with embeddings", func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("chunks.embedding IS NOT NULL")
		if model != "" {
			tx = tx.Where("chunks.embedding_model = ?", model)
		}
		return page(tx.Order("chunks.created_at"), limit, offset)
	})
}

func (r *ChunkRepository) UpdateEmbedding(ctx context.Context, id uint, embedding []float64, model string) (*database.Chunk, error) {
	fields := Fields{"embedding_model": model}
	if embedding != nil {
		vec := datatypes.JSONSlice[float64](embedding)
		fields["embedding"] = &vec
	}
	return r.Update(ctx, id, fields)
}

// EmbeddingUpdate 是批量写入向量的一项。
type EmbeddingUpdate struct {
	ChunkID   uint
	Embedding []float64
	Model     string
}

// BulkUpdateEmbeddings 逐条写入向量，不存在的片段被跳过。返回实际更新的数量。
func (r *ChunkRepository) BulkUpdateEmbeddings(ctx context.Context, updates []EmbeddingUpdate) (int, error) {
	n := 0
	for _, u := range updates {
		chunk, err := r.UpdateEmbedding(ctx, u.ChunkID, u.Embedding, u.Model)
		if err != nil {
			return n, err
		}
		if chunk != nil {
			n++
		}
	}
	return n, nil
}

// GetSimilarChunks 目前不计算向量距离，只返回已有向量的片段；threshold 未使用。
// TODO: 接入 pgvector 后按余弦距离排序并应用 threshold。
func (r *ChunkRepository) GetSimilarChunks(ctx context.Context, embedding []float64, limit int, threshold float64) ([]database.Chunk, error) {
	return r.GetChunksWithEmbeddings(ctx, "", orDefault(limit, defaultSearchLimit), 0)
}

func (r *ChunkRepository) DeleteByPaperID(ctx context.Context, paperID uint) (int64, error) {
	return r.DeleteByFilters(ctx, Filters{"paper_id": paperID})
}
