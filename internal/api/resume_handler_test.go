package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"ragsystem/internal/database"
	"ragsystem/internal/repository"
)

func TestResumeUploadStoresObjectAndRow(t *testing.T) {
	s := newTestServer(t)

	w, env := s.upload(t, "Ada_Lovelace.PDF", []byte("%PDF-1.7 resume"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	created := decodeData[database.Resume](t, env)
	if created.UserID != "mock_user" || created.FileType != "pdf" || created.Status != database.StatusPending {
		t.Fatalf("unexpected resume: %+v", created)
	}
	if !strings.HasPrefix(created.FilePath, "resumes/mock_user/") || !strings.HasSuffix(created.FilePath, ".pdf") {
		t.Fatalf("unexpected object key %q", created.FilePath)
	}
	if !bytes.Equal(s.storage.uploaded[created.FilePath], []byte("%PDF-1.7 resume")) {
		t.Fatalf("object not stored under %q", created.FilePath)
	}

	w, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/resume/%d", created.ID), nil, "")
	if w.Code != http.StatusOK || decodeData[database.Resume](t, env).Filename != "Ada_Lovelace.PDF" {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}

	w, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/resume/%d/download-link", created.ID), nil, "")
	link := decodeData[map[string]any](t, env)
	if w.Code != http.StatusOK || link["url"] != "https://example.invalid/"+created.FilePath || link["expires_in"] != float64(900) {
		t.Fatalf("download link: %d %s", w.Code, w.Body.String())
	}
	if link["size"] != float64(len("%PDF-1.7 resume")) {
		t.Fatalf("expected object size in link response, got %v", link["size"])
	}
}

func TestResumeDownloadLinkMissingObject(t *testing.T) {
	s := newTestServer(t)
	r, err := repository.NewResumeRepository(s.db).Create(context.Background(), &database.Resume{
		UserID: "mock_user", Filename: "gone.pdf", FilePath: "resumes/mock_user/gone.pdf", FileSize: 1, FileType: "pdf",
	})
	if err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	w, _ := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/resume/%d/download-link", r.ID), nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when object is missing, got %d", w.Code)
	}
}

func TestResumeUploadRejections(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.upload(t, "cv.exe", []byte("MZ"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported type, got %d", w.Code)
	}

	w, env := s.upload(t, "cv.pdf", bytes.Repeat([]byte("a"), 2048))
	if w.Code != http.StatusRequestEntityTooLarge || env.ErrorCode != 4013 {
		t.Fatalf("expected 413 for oversized file, got %d", w.Code)
	}

	w, _ = s.upload(t, "empty.txt", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty file, got %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/resume/upload", strings.NewReader("{}"), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without multipart file, got %d", w.Code)
	}

	if len(s.storage.uploaded) != 0 {
		t.Fatalf("rejected uploads must not reach storage: %v", s.storage.uploaded)
	}
	if len(s.redis.counts) != 0 {
		t.Fatalf("rejected uploads must not consume quota: %v", s.redis.counts)
	}
}

func TestResumeUploadDailyLimit(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 2; i++ {
		if w, _ := s.upload(t, "cv.txt", []byte("resume")); w.Code != http.StatusCreated {
			t.Fatalf("upload %d: %d", i, w.Code)
		}
	}
	w, env := s.upload(t, "cv.txt", []byte("resume"))
	if w.Code != http.StatusTooManyRequests || env.ErrorCode != 4029 {
		t.Fatalf("expected 429, got %d %s", w.Code, w.Body.String())
	}

	key := uploadRateKey("mock_user", time.Now())
	if s.redis.counts[key] != 3 || s.redis.ttls[key] != 24*time.Hour {
		t.Fatalf("unexpected counter state: %v %v", s.redis.counts, s.redis.ttls)
	}

	// Redis 不可用时放行。
	s.redis.incrErr = errRedisDown
	if w, _ := s.upload(t, "cv.txt", []byte("resume")); w.Code != http.StatusCreated {
		t.Fatalf("expected fail-open upload, got %d", w.Code)
	}
}

func TestResumeUploadRemovesObjectWhenRowRejected(t *testing.T) {
	s := newTestServer(t)

	name := strings.Repeat("n", 300) + ".pdf"
	w, env := s.upload(t, name, []byte("resume"))
	if w.Code != http.StatusBadRequest || env.ErrorCode != 4000 {
		t.Fatalf("expected validation error, got %d %s", w.Code, w.Body.String())
	}
	if len(s.storage.deleted) != 1 || len(s.storage.uploaded) != 0 {
		t.Fatalf("expected orphan object removed, deleted=%v uploaded=%v", s.storage.deleted, s.storage.uploaded)
	}
	if n, _ := repository.NewResumeRepository(s.db).Count(context.Background(), nil); n != 0 {
		t.Fatalf("expected no resume rows, got %d", n)
	}
}

func TestResumeOwnership(t *testing.T) {
	s := newTestServer(t)
	other, err := repository.NewResumeRepository(s.db).Create(context.Background(), &database.Resume{
		UserID: "someone_else", Filename: "theirs.pdf", FileSize: 1, FileType: "pdf",
	})
	if err != nil {
		t.Fatalf("seed resume: %v", err)
	}

	w, env := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/resume/%d", other.ID), nil, "")
	if w.Code != http.StatusForbidden || env.ErrorCode != 4003 {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodGet, "/api/v1/resume/999", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodGet, "/api/v1/resume/0", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero id, got %d", w.Code)
	}
	w, _ = s.doJSON(t, http.MethodPost, "/api/v1/resume/analyze", map[string]any{"resume_id": other.ID})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for analyze of foreign resume, got %d", w.Code)
	}
}

func TestResumeAnalyzeUsesResumeAgent(t *testing.T) {
	s := newTestServer(t)
	_, env := s.upload(t, "cv.docx", []byte("docx"))
	created := decodeData[database.Resume](t, env)

	w, env := s.doJSON(t, http.MethodPost, "/api/v1/resume/analyze", map[string]any{"resume_id": created.ID})
	if w.Code != http.StatusOK || env.Success || !strings.Contains(env.Message, "resume agent") {
		t.Fatalf("expected placeholder result from resume agent, got %d %s", w.Code, w.Body.String())
	}

	w, _ = s.doJSON(t, http.MethodPost, "/api/v1/resume/analyze", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without resume_id, got %d", w.Code)
	}
}

func TestResumeMatches(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	f := repository.NewFactory(s.db)

	_, env := s.upload(t, "cv.pdf", []byte("pdf"))
	resume := decodeData[database.Resume](t, env)
	job, err := f.Jobs().Create(ctx, &database.JobDescription{Title: "Go Engineer", Company: "Acme", Description: "services"})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	path := fmt.Sprintf("/api/v1/resume/%d/matches/%d", resume.ID, job.ID)

	w, env := s.doJSON(t, http.MethodPut, path, map[string]any{
		"overall_match_score": 0.8,
		"skill_match_score":   0.6,
		"matching_skills":     []string{"go", "sql"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create match: %d %s", w.Code, w.Body.String())
	}
	first := decodeData[database.JobMatch](t, env)

	w, env = s.doJSON(t, http.MethodPut, path, map[string]any{"overall_match_score": 0.9})
	second := decodeData[database.JobMatch](t, env)
	if w.Code != http.StatusOK || second.ID != first.ID || second.OverallMatchScore != 0.9 || second.SkillMatchScore != 0.6 {
		t.Fatalf("expected in-place update, got %+v", second)
	}
	if len(second.MatchingSkills) != 2 {
		t.Fatalf("omitted fields must be kept, got %+v", second.MatchingSkills)
	}

	_, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/resume/%d/matches", resume.ID), nil, "")
	if matches := decodeData[[]database.JobMatch](t, env); len(matches) != 1 || env.Metadata["min_score"] != 0.7 {
		t.Fatalf("matches: %+v %+v", matches, env.Metadata)
	}
	_, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/resume/%d/matches?min_score=0.95", resume.ID), nil, "")
	if matches := decodeData[[]database.JobMatch](t, env); len(matches) != 0 {
		t.Fatalf("expected no matches above 0.95, got %+v", matches)
	}

	w, _ = s.doJSON(t, http.MethodPut, path, map[string]any{"overall_match_score": 1.5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range score, got %d", w.Code)
	}
	w, _ = s.doJSON(t, http.MethodPut, fmt.Sprintf("/api/v1/resume/%d/matches/999", resume.ID), map[string]any{"overall_match_score": 0.5})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", w.Code)
	}
	if n, _ := f.JobMatches().Count(ctx, nil); n != 1 {
		t.Fatalf("expected a single match row, got %d", n)
	}
}

func TestSearchJobs(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	jobs := repository.NewJobDescriptionRepository(s.db)
	for _, j := range []database.JobDescription{
		{Title: "Senior Go Engineer", Company: "Acme", Description: "d", ExperienceLevel: database.LevelSenior},
		{Title: "Data Engineer", Company: "Globex", Description: "d", ExperienceLevel: database.LevelMid},
		{Title: "Designer", Company: "Acme", Description: "d"},
	} {
		if _, err := jobs.Create(ctx, &j); err != nil {
			t.Fatalf("seed job: %v", err)
		}
	}

	cases := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?level=SENIOR", 1},
		{"?company=acme", 2},
		{"?q=engineer", 2},
		{"?limit=1", 1},
	}
	for _, tc := range cases {
		w, env := s.do(t, http.MethodGet, "/api/v1/resume/jobs"+tc.query, nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%q: %d", tc.query, w.Code)
		}
		if rows := decodeData[[]database.JobDescription](t, env); len(rows) != tc.want {
			t.Fatalf("%q: expected %d jobs, got %d", tc.query, tc.want, len(rows))
		}
	}

	w, _ := s.do(t, http.MethodGet, "/api/v1/resume/jobs?level=guru", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown level, got %d", w.Code)
	}
}
