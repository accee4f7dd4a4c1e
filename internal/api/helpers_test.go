package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ragsystem/internal/agent"
	"ragsystem/internal/config"
	"ragsystem/internal/database"
	"ragsystem/internal/storage"
)

type fakeStorage struct {
	uploaded map[string][]byte
	types    map[string]string
	deleted  []string
	pingErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, contentType string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	s.types[objectName] = contentType
	return &minio.UploadInfo{Key: objectName, Size: int64(len(b))}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

func (s *fakeStorage) StatObject(_ context.Context, objectKey string) (*storage.ObjectMeta, error) {
	b, ok := s.uploaded[objectKey]
	if !ok {
		return nil, fmt.Errorf("stat object %q: %w", objectKey, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound})
	}
	return &storage.ObjectMeta{Key: objectKey, Size: int64(len(b)), ContentType: s.types[objectKey]}, nil
}

func (s *fakeStorage) Ping(context.Context) error { return s.pingErr }

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

// fakeRedis 在内存中模拟计数与 Ping。
type fakeRedis struct {
	counts  map[string]int64
	ttls    map[string]time.Duration
	incrErr error
	pingErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (r *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "incr", key)
	if r.incrErr != nil {
		cmd.SetErr(r.incrErr)
		return cmd
	}
	r.counts[key]++
	cmd.SetVal(r.counts[key])
	return cmd
}

func (r *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	r.ttls[key] = expiration
	cmd := redis.NewBoolCmd(ctx, "expire", key)
	cmd.SetVal(true)
	return cmd
}

func (r *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "ping")
	if r.pingErr != nil {
		cmd.SetErr(r.pingErr)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

var errRedisDown = errors.New("redis: connection refused")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(false))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "rag-test", Version: "0.0.1", Environment: "test"},
		API: config.APIConfig{Port: 8000, Prefix: "/api/v1", CORSOrigins: []string{"*"}},
		Upload: config.UploadConfig{
			MaxFileSize:     1024,
			MaxPerUserDaily: 2,
			AllowedTypes:    []string{"pdf", "docx", "txt"},
		},
	}
}

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	storage *fakeStorage
	redis   *fakeRedis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agents := agent.NewOrchestrator(logger)
	for _, a := range agent.Defaults() {
		agents.Register(a)
	}

	s := &testServer{db: newTestDB(t), storage: newFakeStorage(), redis: newFakeRedis()}
	s.router = NewRouter(Deps{
		Config:  testConfig(),
		DB:      s.db,
		Redis:   s.redis,
		Storage: s.storage,
		Agents:  agents,
		Logger:  logger,
	})
	return s
}

// envelope 是测试端解码用的响应结构，data 延迟解码。
type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Errors    []string        `json:"errors"`
	Metadata  map[string]any  `json:"metadata"`
	ErrorCode int             `json:"error_code"`
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer test-token")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func (s *testServer) doJSON(t *testing.T, method, path string, payload any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if payload == nil {
		return s.do(t, method, path, nil, "")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return s.do(t, method, path, bytes.NewReader(b), "application/json")
}

func (s *testServer) upload(t *testing.T, filename string, content []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	body, contentType := newMultipartUpload(t, filename, content)
	return s.do(t, http.MethodPost, "/api/v1/resume/upload", body, contentType)
}

func newMultipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return out
}
