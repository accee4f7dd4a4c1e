package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ragsystem/internal/database"
)

// ResumeRepository 管理简历记录及其解析、分析结果。
type ResumeRepository struct {
	*Repository[database.Resume]
}

func NewResumeRepository(db *gorm.DB) *ResumeRepository {
	return &ResumeRepository{Repository: NewRepository[database.Resume](db)}
}

func (r *ResumeRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]database.Resume, error) {
	return r.GetByFilters(ctx, Filters{"user_id": userID}, ListOptions{Limit: limit, Offset: offset, OrderBy: "created_at", Desc: true})
}

func (r *ResumeRepository) GetByStatus(ctx context.Context, status database.ProcessingStatus, limit, offset int) ([]database.Resume, error) {
	return r.GetByFilters(ctx, Filters{"status": status}, ListOptions{Limit: limit, Offset: offset, OrderBy: "created_at"})
}

func (r *ResumeRepository) GetWithMatches(ctx context.Context, id uint) (*database.Resume, error) {
	return r.takeWith(ctx, id, "get resume with matches", func(tx *gorm.DB) *gorm.DB {
		return tx.Preload("JobMatches", func(db *gorm.DB) *gorm.DB { return db.Order("overall_match_score DESC") })
	})
}

func (r *ResumeRepository) UpdateProcessingStatus(ctx context.Context, id uint, status database.ProcessingStatus, metadata map[string]any) (*database.Resume, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("update processing status: %w: unknown status %q", ErrValidation, status)
	}
	fields := Fields{"status": status}
	if len(metadata) > 0 {
		fields["processing_metadata"] = datatypes.JSONMap(metadata)
	}
	return r.Update(ctx, id, fields)
}

func (r *ResumeRepository) UpdateParsedData(ctx context.Context, id uint, parsed map[string]any) (*database.Resume, error) {
	return r.Update(ctx, id, Fields{"parsed_data": datatypes.JSONMap(parsed)})
}

// UpdateAnalysisResults 写入分析结果；suggestions 为空时保留原有建议。
func (r *ResumeRepository) UpdateAnalysisResults(ctx context.Context, id uint, analysis map[string]any, suggestions []map[string]any) (*database.Resume, error) {
	fields := Fields{"analysis_results": datatypes.JSONMap(analysis)}
	if len(suggestions) > 0 {
		fields["enhancement_suggestions"] = datatypes.JSONSlice[map[string]any](suggestions)
	}
	return r.Update(ctx, id, fields)
}

// GetRecentResumes 返回最近 days 天内上传的简历，默认 30 天、50 条，按创建时间倒序。
func (r *ResumeRepository) GetRecentResumes(ctx context.Context, days, limit int) ([]database.Resume, error) {
	since := r.db.NowFunc().AddDate(0, 0, -orDefault(days, defaultRecentResumes))
	return r.find(ctx, "list recent resumes", func(tx *gorm.DB) *gorm.DB {
		return tx.Where("resumes.created_at >= ?", since).
			Order("resumes.created_at DESC").
			Limit(orDefault(limit, defaultRecentLimit))
	})
}

func (r *ResumeRepository) SearchByFilename(ctx context.Context, query string, limit, offset int) ([]database.Resume, error) {
	return r.find(ctx, "search resumes", func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where(ilike("resumes.filename"), containsPattern(query)).Order("resumes.created_at DESC")
		return page(tx, orDefault(limit, defaultSearchLimit), offset)
	})
}

func (r *ResumeRepository) GetByFileType(ctx context.Context, fileType string, limit, offset int) ([]database.Resume, error) {
	return r.GetByFilters(ctx, Filters{"file_type": fileType}, ListOptions{Limit: limit, Offset: offset, OrderBy: "created_at", Desc: true})
}

// JobDescriptionRepository 提供职位检索。
type JobDescriptionRepository struct {
	*Repository[database.JobDescription]
}

func NewJobDescriptionRepository(db *gorm.DB) *JobDescriptionRepository {
	return &JobDescriptionRepository{Repository: NewRepository[database.JobDescription](db)}
}

func (r *JobDescriptionRepository) SearchByTitle(ctx context.Context, query string, limit, offset int) ([]database.JobDescription, error) {
	return r.search(ctx, "job_descriptions.title", query, orDefault(limit, defaultSearchLimit), offset)
}

func (r *JobDescriptionRepository) SearchByCompany(ctx context.Context, query string, limit, offset int) ([]database.JobDescription, error) {
	return r.search(ctx, "job_descriptions.company", query, orDefault(limit, defaultSearchLimit), offset)
}

// GetByLocation 地点子串匹配，limit 为 0 时不限制。
func (r *JobDescriptionRepository) GetByLocation(ctx context.Context, location string, limit, offset int) ([]database.JobDescription, error) {
	return r.search(ctx, "job_descriptions.location", location, limit, offset)
}

func (r *JobDescriptionRepository) search(ctx context.Context, col, query string, limit, offset int) ([]database.JobDescription, error) {
	return r.find(ctx, "search job descriptions", func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where(ilike(col), containsPattern(query)).Order("job_descriptions.created_at DESC")
		return page(tx, limit, offset)
	})
}

func (r *JobDescriptionRepository) GetByExperienceLevel(ctx context.Context, level database.ExperienceLevel, limit, offset int) ([]database.JobDescription, error) {
	return r.GetByFilters(ctx, Filters{"experience_level": level}, ListOptions{Limit: limit, Offset: offset, OrderBy: "created_at"})
}

func (r *JobDescriptionRepository) GetWithMatches(ctx context.Context, id uint) (*database.JobDescription, error) {
	return r.takeWith(ctx, id, "get job description with matches", func(tx *gorm.DB) *gorm.DB {
		return tx.Preload("JobMatches", func(db *gorm.DB) *gorm.DB { return db.Order("overall_match_score DESC") })
	})
}

// GetRecentJobs 返回最近 days 天内创建的职位，默认 30 天、50 条。
func (r *JobDescriptionRepository) GetRecentJobs(ctx context.Context, days, limit int) ([]database.JobDescription, error) {
	since := r.db.NowFunc().AddDate(0, 0, -orDefault(days, defaultRecentResumes))
	return r.find(ctx, "list recent job descriptions", func(tx *gorm.DB) *gorm.DB {
		return tx.Where("job_descriptions.created_at >= ?", since).
			Order("job_descriptions.created_at DESC").
			Limit(orDefault(limit, defaultRecentLimit))
	})
}

// JobMatchRepository 管理简历与职位的匹配结果，(job_id, resume_id) 唯一。
type JobMatchRepository struct {
	*Repository[database.JobMatch]
}

// DefaultMinMatchScore 是 GetTopMatches 调用方常用的阈值。
const DefaultMinMatchScore = 0.7

func NewJobMatchRepository(db *gorm.DB) *JobMatchRepository {
	return &JobMatchRepository{Repository: NewRepository[database.JobMatch](db)}
}

func (r *JobMatchRepository) GetByResumeID(ctx context.Context, resumeID uint, limit, offset int) ([]database.JobMatch, error) {
	return r.GetByFilters(ctx, Filters{"resume_id": resumeID}, ListOptions{Limit: limit, Offset: offset, OrderBy: "overall_match_score"})
}

func (r *JobMatchRepository) GetByJobID(ctx context.Context, jobID uint, limit, offset int) ([]database.JobMatch, error) {
	return r.GetByFilters(ctx, Filters{"job_id": jobID}, ListOptions{Limit: limit, Offset: offset, OrderBy: "overall_match_score"})
}

func (r *JobMatchRepository) GetMatch(ctx context.Context, jobID, resumeID uint) (*database.JobMatch, error) {
	rows, err := r.GetByFilters(ctx, Filters{"job_id": jobID, "resume_id": resumeID}, ListOptions{Limit: 1})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// GetTopMatches 返回分数不低于 minScore 的匹配，按总分倒序；limit <= 0 时取 10 条。
func (r *JobMatchRepository) GetTopMatches(ctx context.Context, resumeID uint, minScore float64, limit int) ([]database.JobMatch, error) {
	return r.find(ctx, "list top job matches", func(tx *gorm.DB) *gorm.DB {
		return tx.Where("job_matches.resume_id = ? AND job_matches.overall_match_score >= ?", resumeID, minScore).
			Order("job_matches.overall_match_score DESC").
			Limit(orDefault(limit, defaultSearchLimit))
	})
}

func (r *JobMatchRepository) GetWithDetails(ctx context.Context, id uint) (*database.JobMatch, error) {
	return r.takeWith(ctx, id, "get job match with details", func(tx *gorm.DB) *gorm.DB {
		return tx.Preload("JobDescription").Preload("Resume")
	})
}

// CreateOrUpdateMatch 存在则更新 fields，不存在则以 fields 创建。
// 并发创建被唯一约束拒绝时，重新读取胜出方的记录并在其上更新。
func (r *JobMatchRepository) CreateOrUpdateMatch(ctx context.Context, jobID, resumeID uint, fields Fields) (*database.JobMatch, error) {
	// 匹配对由参数决定，fields 中的 job_id/resume_id 不能把记录移到别的匹配对上。
	scores := make(Fields, len(fields))
	for k, v := range fields {
		if k != "job_id" && k != "resume_id" {
			scores[k] = v
		}
	}
	fields = scores

	existing, err := r.GetMatch(ctx, jobID, resumeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return r.Update(ctx, existing.ID, fields)
	}

	match, err := r.build(ctx, fields)
	if err != nil {
		return nil, err
	}
	match.JobID = jobID
	match.ResumeID = resumeID

	created, err := r.createInSavepoint(ctx, match)
	if !errors.Is(err, ErrConflict) {
		return created, err
	}

	existing, findErr := r.GetMatch(ctx, jobID, resumeID)
	if findErr != nil {
		return nil, findErr
	}
	if existing == nil {
		return nil, err
	}
	return r.Update(ctx, existing.ID, fields)
}

// GetMatchesByScoreRange 返回总分在 [minScore, maxScore] 内的匹配，按总分倒序。limit 为 0 时不限制。
func (r *JobMatchRepository) GetMatchesByScoreRange(ctx context.Context, minScore, maxScore float64, limit, offset int) ([]database.JobMatch, error) {
	return r.find(ctx, "list job matches by score", func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("job_matches.overall_match_score >= ? AND job_matches.overall_match_score <= ?", minScore, maxScore).
			Order("job_matches.overall_match_score DESC")
		return page(tx, limit, offset)
	})
}
