package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"ragsystem/internal/database"
	"ragsystem/internal/repository"
)

func seedPaper(t *testing.T, s *testServer, title string, published time.Time) *database.Paper {
	t.Helper()
	p, err := repository.NewPaperRepository(s.db).Create(context.Background(), &database.Paper{
		Title:         title,
		Abstract:      "abstract of " + title,
		PublishedDate: published,
	})
	if err != nil {
		t.Fatalf("seed paper: %v", err)
	}
	return p
}

func TestListPapers(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPaper(t, s, "Attention Is All You Need", now.AddDate(0, 0, -1))
	old := seedPaper(t, s, "Deep Residual Learning", now.AddDate(-1, 0, 0))
	seedPaper(t, s, "Graph Attention Networks", now.AddDate(0, 0, -3))

	if _, err := repository.NewPaperRepository(s.db).UpdateProcessingStatus(ctx, old.ID, database.StatusCompleted, nil); err != nil {
		t.Fatalf("update status: %v", err)
	}

	w, env := s.do(t, http.MethodGet, "/api/v1/research/papers?limit=2", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	papers := decodeData[[]database.Paper](t, env)
	if len(papers) != 2 || papers[0].Title != "Attention Is All You Need" || env.Metadata["total"] != float64(3) {
		t.Fatalf("expected newest two of three, got %+v meta %+v", papers, env.Metadata)
	}

	_, env = s.do(t, http.MethodGet, "/api/v1/research/papers?q=ATTENTION", nil, "")
	if papers := decodeData[[]database.Paper](t, env); len(papers) != 2 {
		t.Fatalf("title search: %+v", papers)
	}

	_, env = s.do(t, http.MethodGet, "/api/v1/research/papers?status=completed", nil, "")
	if papers := decodeData[[]database.Paper](t, env); len(papers) != 1 || papers[0].ID != old.ID {
		t.Fatalf("status filter: %+v", papers)
	}

	w, _ = s.do(t, http.MethodGet, "/api/v1/research/papers?status=bogus", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}

	_, env = s.do(t, http.MethodGet, "/api/v1/research/papers/recent?days=7", nil, "")
	if papers := decodeData[[]database.Paper](t, env); len(papers) != 2 {
		t.Fatalf("recent papers: %+v", papers)
	}

	_, env = s.do(t, http.MethodGet, "/api/v1/research/papers?category=cs.AI", nil, "")
	if papers := decodeData[[]database.Paper](t, env); len(papers) != 0 {
		t.Fatalf("unknown category should match nothing: %+v", papers)
	}
}

func TestGetPaperWithIncludes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	f := repository.NewFactory(s.db)

	p := seedPaper(t, s, "Attention Is All You Need", time.Now().UTC())
	for i, name := range []string{"Ashish Vaswani", "Noam Shazeer"} {
		a, err := f.Authors().GetOrCreate(ctx, name, database.Author{})
		if err != nil {
			t.Fatalf("author: %v", err)
		}
		if _, err := f.Papers().AddAuthor(ctx, p.ID, a.ID, i); err != nil {
			t.Fatalf("add author: %v", err)
		}
	}
	if _, err := f.Chunks().Create(ctx, &database.Chunk{PaperID: p.ID, Content: "intro", ChunkIndex: 0}); err != nil {
		t.Fatalf("chunk: %v", err)
	}

	w, env := s.do(t, http.MethodGet, "/api/v1/research/papers/1?include=authors,chunks,unknown", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}
	got := decodeData[database.Paper](t, env)
	if len(got.PaperAuthors) != 2 || got.PaperAuthors[0].Author == nil || len(got.Chunks) != 1 {
		t.Fatalf("expected preloaded relations, got %+v", got)
	}

	_, env = s.do(t, http.MethodGet, "/api/v1/research/papers/1", nil, "")
	if got := decodeData[database.Paper](t, env); len(got.PaperAuthors) != 0 {
		t.Fatalf("relations must not load without include")
	}

	_, env = s.do(t, http.MethodGet, "/api/v1/research/papers/1/chunks", nil, "")
	if chunks := decodeData[[]database.Chunk](t, env); len(chunks) != 1 {
		t.Fatalf("chunks: %+v", chunks)
	}

	w, _ = s.do(t, http.MethodGet, "/api/v1/research/papers/abc", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodGet, "/api/v1/research/papers/99", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodGet, "/api/v1/research/papers/99/chunks", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for chunks of missing paper, got %d", w.Code)
	}
}

func TestDeletePaperCascades(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	p := seedPaper(t, s, "To delete", time.Now().UTC())
	if _, err := repository.NewChunkRepository(s.db).Create(ctx, &database.Chunk{PaperID: p.ID, Content: "c"}); err != nil {
		t.Fatalf("chunk: %v", err)
	}

	w, _ := s.do(t, http.MethodDelete, "/api/v1/research/papers/1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	if n, _ := repository.NewChunkRepository(s.db).Count(ctx, nil); n != 0 {
		t.Fatalf("expected chunks cascaded, %d left", n)
	}
	w, _ = s.do(t, http.MethodDelete, "/api/v1/research/papers/1", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestResearchPlaceholders(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/v1/research", nil, "")
	if w.Code != http.StatusOK || decodeData[map[string]any](t, env)["status"] != "not_implemented" {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}

	for _, path := range []string{"/api/v1/research/search", "/api/v1/research/ingest"} {
		w, env := s.doJSON(t, http.MethodPost, path, map[string]any{"query": "rag"})
		if w.Code != http.StatusOK || env.Success {
			t.Fatalf("%s: expected unsuccessful placeholder, got %d %s", path, w.Code, w.Body.String())
		}
	}
}
