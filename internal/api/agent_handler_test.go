package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ragsystem/internal/agent"
	"ragsystem/internal/errcode"
)

func TestProtectedRoutesRequireBearer(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/agents", "/api/v1/research/papers", "/api/v1/resume"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"error_code":4001`) {
			t.Fatalf("%s: expected enveloped error, got %s", path, w.Body.String())
		}
	}
}

func TestAgentEndpoints(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/v1/agents", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	infos := decodeData[[]agent.Info](t, env)
	if len(infos) != 2 || infos[0].Name != "research" || infos[1].Name != "resume" {
		t.Fatalf("unexpected agents: %+v", infos)
	}

	w, env = s.do(t, http.MethodGet, "/api/v1/agents/research/info", nil, "")
	if w.Code != http.StatusOK || decodeData[agent.Info](t, env).Version != "1.0.0" {
		t.Fatalf("info: %d %s", w.Code, w.Body.String())
	}

	w, env = s.do(t, http.MethodGet, "/api/v1/agents/resume/health", nil, "")
	if w.Code != http.StatusOK || !decodeData[map[string]any](t, env)["healthy"].(bool) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}

	w, _ = s.do(t, http.MethodGet, "/api/v1/agents/ghost/info", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown agent, got %d", w.Code)
	}
	w, _ = s.doJSON(t, http.MethodPost, "/api/v1/agents/ghost/process", map[string]any{})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown agent, got %d", w.Code)
	}

	w, env = s.doJSON(t, http.MethodPost, "/api/v1/agents/research/process", map[string]any{"query": "transformers"})
	if w.Code != http.StatusOK || env.Success || env.ErrorCode != errcode.SystemError {
		t.Fatalf("expected unsuccessful placeholder result, got %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(env.Message, "not implemented") {
		t.Fatalf("unexpected message %q", env.Message)
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/agents/research/process", strings.NewReader("{bad"), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
}
