package database

import (
	"time"

	"gorm.io/datatypes"
)

// Model 是所有表共用的主键与时间戳字段，删除为物理删除。
type Model struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetID 返回记录主键。
func (m Model) GetID() uint { return m.ID }

// Author 表示论文作者。
type Author struct {
	Model
	Name         string        `gorm:"size:200;not null;index" json:"name" validate:"required,max=200"`
	Affiliation  string        `gorm:"size:500" json:"affiliation,omitempty" validate:"max=500"`
	Email        string        `gorm:"size:255" json:"email,omitempty" validate:"omitempty,max=255,email"`
	Orcid        string        `gorm:"size:19;index" json:"orcid,omitempty" validate:"max=19"`
	PaperAuthors []PaperAuthor `gorm:"constraint:OnDelete:CASCADE" json:"paper_authors,omitempty"`
}

func (Author) TableName() string { return "authors" }

// Paper 表示一篇研究论文及其处理状态。
type Paper struct {
	Model
	ArxivID            *string           `gorm:"size:20;uniqueIndex" json:"arxiv_id,omitempty" validate:"omitempty,max=20"`
	Title              string            `gorm:"size:500;not null;index" json:"title" validate:"required,max=500"`
	Abstract           string            `gorm:"type:text;not null" json:"abstract" validate:"required"`
	PublishedDate      time.Time         `gorm:"not null;index" json:"published_date" validate:"required"`
	UpdatedDate        *time.Time        `json:"updated_date,omitempty"`
	PdfURL             string            `gorm:"size:500" json:"pdf_url,omitempty" validate:"max=500"`
	PdfPath            string            `gorm:"size:500" json:"pdf_path,omitempty" validate:"max=500"`
	FullText           string            `gorm:"type:text" json:"full_text,omitempty"`
	Status             ProcessingStatus  `gorm:"size:20;not null;default:pending;index" json:"status" validate:"omitempty,oneof=pending processing completed failed"`
	ProcessingMetadata datatypes.JSONMap `json:"processing_metadata,omitempty"`
	CitationCount      int               `gorm:"not null;default:0" json:"citation_count" validate:"gte=0"`
	DownloadCount      int               `gorm:"not null;default:0" json:"download_count" validate:"gte=0"`

	PaperAuthors    []PaperAuthor   `gorm:"constraint:OnDelete:CASCADE" json:"paper_authors,omitempty"`
	PaperCategories []PaperCategory `gorm:"constraint:OnDelete:CASCADE" json:"paper_categories,omitempty"`
	Chunks          []Chunk         `gorm:"constraint:OnDelete:CASCADE" json:"chunks,omitempty"`
}

func (Paper) TableName() string { return "papers" }

// PaperAuthor 是论文与作者的多对多关联，按 AuthorOrder 排序。
type PaperAuthor struct {
	Model
	PaperID     uint    `gorm:"not null;index;uniqueIndex:uq_paper_author" json:"paper_id" validate:"required"`
	AuthorID    uint    `gorm:"not null;index;uniqueIndex:uq_paper_author" json:"author_id" validate:"required"`
	AuthorOrder int     `gorm:"not null" json:"author_order" validate:"gte=0"`
	Paper       *Paper  `gorm:"constraint:OnDelete:CASCADE" json:"paper,omitempty"`
	Author      *Author `gorm:"constraint:OnDelete:CASCADE" json:"author,omitempty"`
}

func (PaperAuthor) TableName() string { return "paper_authors" }

// Category 表示 arXiv 学科分类，例如 cs.AI。
type Category struct {
	Model
	Code            string          `gorm:"size:20;not null;uniqueIndex" json:"code" validate:"required,max=20"`
	Name            string          `gorm:"size:200;not null" json:"name" validate:"required,max=200"`
	Description     string          `gorm:"type:text" json:"description,omitempty"`
	ParentCategory  string          `gorm:"size:10;index" json:"parent_category,omitempty" validate:"max=10"`
	PaperCategories []PaperCategory `gorm:"constraint:OnDelete:CASCADE" json:"paper_categories,omitempty"`
}

func (Category) TableName() string { return "categories" }

// PaperCategory 是论文与分类的多对多关联，IsPrimary 标记主分类。
type PaperCategory struct {
	Model
	PaperID    uint      `gorm:"not null;index;uniqueIndex:uq_paper_category" json:"paper_id" validate:"required"`
	CategoryID uint      `gorm:"not null;index;uniqueIndex:uq_paper_category" json:"category_id" validate:"required"`
	IsPrimary  bool      `gorm:"not null;default:false" json:"is_primary"`
	Paper      *Paper    `gorm:"constraint:OnDelete:CASCADE" json:"paper,omitempty"`
	Category   *Category `gorm:"constraint:OnDelete:CASCADE" json:"category,omitempty"`
}

func (PaperCategory) TableName() string { return "paper_categories" }

// Chunk 是论文切分后的文本片段。
// Embedding 为空表示尚未生成向量。
type Chunk struct {
	Model
	PaperID        uint                          `gorm:"not null;index;index:idx_chunk_paper_index,priority:1" json:"paper_id" validate:"required"`
	Content        string                        `gorm:"type:text;not null" json:"content" validate:"required"`
	ChunkIndex     int                           `gorm:"not null;index:idx_chunk_paper_index,priority:2" json:"chunk_index" validate:"gte=0"`
	SectionTitle   string                        `gorm:"size:200" json:"section_title,omitempty" validate:"max=200"`
	SectionType    string                        `gorm:"size:50;index" json:"section_type,omitempty" validate:"max=50"`
	Embedding      *datatypes.JSONSlice[float64] `json:"embedding,omitempty"`
	EmbeddingModel string                        `gorm:"size:100" json:"embedding_model,omitempty" validate:"max=100"`
	TokenCount     int                           `gorm:"not null;default:0" json:"token_count" validate:"gte=0"`
	CharCount      int                           `gorm:"not null;default:0" json:"char_count" validate:"gte=0"`
	Paper          *Paper                        `gorm:"constraint:OnDelete:CASCADE" json:"paper,omitempty"`
}

func (Chunk) TableName() string { return "chunks" }

// Resume 表示用户上传的简历文件及其解析、分析结果。
type Resume struct {
	Model
	UserID                 string                              `gorm:"size:100;index" json:"user_id,omitempty" validate:"max=100"`
	Filename               string                              `gorm:"size:255;not null" json:"filename" validate:"required,max=255"`
	FilePath               string                              `gorm:"size:500" json:"file_path,omitempty" validate:"max=500"`
	FileSize               int64                               `gorm:"not null" json:"file_size" validate:"gte=0"`
	FileType               string                              `gorm:"size:20;not null" json:"file_type" validate:"required,max=20"`
	OriginalText           string                              `gorm:"type:text" json:"original_text,omitempty"`
	ParsedData             datatypes.JSONMap                   `json:"parsed_data,omitempty"`
	AnalysisResults        datatypes.JSONMap                   `json:"analysis_results,omitempty"`
	EnhancementSuggestions datatypes.JSONSlice[map[string]any] `json:"enhancement_suggestions,omitempty"`
	Status                 ProcessingStatus                    `gorm:"size:20;not null;default:pending;index" json:"status" validate:"omitempty,oneof=pending processing completed failed"`
	ProcessingMetadata     datatypes.JSONMap                   `json:"processing_metadata,omitempty"`
	JobMatches             []JobMatch                          `gorm:"constraint:OnDelete:CASCADE" json:"job_matches,omitempty"`
}

func (Resume) TableName() string { return "resumes" }

// JobDescription 表示一条职位描述。
type JobDescription struct {
	Model
	Title                   string                      `gorm:"size:200;not null;index" json:"title" validate:"required,max=200"`
	Company                 string                      `gorm:"size:200;not null;index" json:"company" validate:"required,max=200"`
	Location                string                      `gorm:"size:100" json:"location,omitempty" validate:"max=100"`
	EmploymentType          string                      `gorm:"size:50" json:"employment_type,omitempty" validate:"max=50"`
	ExperienceLevel         ExperienceLevel             `gorm:"size:20;index" json:"experience_level,omitempty" validate:"omitempty,oneof=entry junior mid senior executive"`
	Description             string                      `gorm:"type:text;not null" json:"description" validate:"required"`
	Requirements            datatypes.JSONSlice[string] `json:"requirements,omitempty"`
	PreferredQualifications datatypes.JSONSlice[string] `json:"preferred_qualifications,omitempty"`
	Responsibilities        datatypes.JSONSlice[string] `json:"responsibilities,omitempty"`
	RequiredSkills          datatypes.JSONSlice[string] `json:"required_skills,omitempty"`
	PreferredSkills         datatypes.JSONSlice[string] `json:"preferred_skills,omitempty"`
	Keywords                datatypes.JSONSlice[string] `json:"keywords,omitempty"`
	SalaryRange             string                      `gorm:"size:100" json:"salary_range,omitempty" validate:"max=100"`
	Benefits                datatypes.JSONSlice[string] `json:"benefits,omitempty"`
	JobMatches              []JobMatch                  `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"job_matches,omitempty"`
}

func (JobDescription) TableName() string { return "job_descriptions" }

// JobMatch 记录一份简历与一个职位的匹配结果，(job_id, resume_id) 唯一。
type JobMatch struct {
	Model
	JobID                uint                        `gorm:"not null;index;uniqueIndex:uq_job_resume_match" json:"job_id" validate:"required"`
	ResumeID             uint                        `gorm:"not null;index;uniqueIndex:uq_job_resume_match" json:"resume_id" validate:"required"`
	OverallMatchScore    float64                     `gorm:"not null;index" json:"overall_match_score" validate:"gte=0,lte=1"`
	SkillMatchScore      float64                     `gorm:"not null" json:"skill_match_score" validate:"gte=0,lte=1"`
	ExperienceMatchScore float64                     `gorm:"not null" json:"experience_match_score" validate:"gte=0,lte=1"`
	MatchingSkills       datatypes.JSONSlice[string] `json:"matching_skills,omitempty"`
	MissingSkills        datatypes.JSONSlice[string] `json:"missing_skills,omitempty"`
	SkillGaps            datatypes.JSONSlice[string] `json:"skill_gaps,omitempty"`
	Recommendations      datatypes.JSONSlice[string] `json:"recommendations,omitempty"`
	JobDescription       *JobDescription             `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"job_description,omitempty"`
	Resume               *Resume                     `gorm:"constraint:OnDelete:CASCADE" json:"resume,omitempty"`
}

func (JobMatch) TableName() string { return "job_matches" }

// AllModels 返回需要迁移的全部模型，父表在前。
func AllModels() []any {
	return []any{
		&Author{},
		&Paper{},
		&PaperAuthor{},
		&Category{},
		&PaperCategory{},
		&Chunk{},
		&Resume{},
		&JobDescription{},
		&JobMatch{},
	}
}
