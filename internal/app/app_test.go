package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"policy-qa-service/internal/config"
	"policy-qa-service/internal/telemetry"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type wordEncoder struct {
	calls atomic.Int32
}

var vocabulary = []string{"grace", "insured", "period", "sum"}

func (e *wordEncoder) embed(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, len(vocabulary))
	for i, w := range vocabulary {
		if strings.Contains(lower, w) {
			vec[i] = 1
		}
	}
	return vec
}

func (e *wordEncoder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *wordEncoder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *wordEncoder) Model() string { return "word-encoder" }

// contextGenerator answers with the retrieved context of the prompt.
type contextGenerator struct{}

func (contextGenerator) Generate(_ context.Context, prompt string) (string, error) {
	_, after, _ := strings.Cut(prompt, "Context:\n")
	retrieved, _, _ := strings.Cut(after, "Question:")
	return strings.TrimSpace(retrieved), nil
}

func (contextGenerator) Model() string { return "context-generator" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	pdf, err := os.ReadFile(filepath.Join("..", "rag", "testdata", "policy.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "policy.pdf"), pdf, 0o644); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		ServiceName:       "policy-qa-test",
		CORSOrigins:       []string{"*"},
		APIKey:            "k",
		DocumentsDir:      dir,
		MaxDocumentSize:   1 << 20,
		DownloadTimeout:   5 * time.Second,
		MaxRequestBodyMB:  1,
		MaxChunkSize:      500,
		ChunkOverlap:      100,
		RetrievalTopK:     1,
		IndexCacheBackend: config.CacheMemory,
		IndexCacheSize:    4,
		RateLimitReqs:     60,
		RateLimitWindow:   60,
	}
}

func TestRouter_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	metrics, err := telemetry.InitMetrics(cfg.ServiceName)
	if err != nil {
		t.Fatal(err)
	}
	enc := &wordEncoder{}
	a, err := build(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics, enc, contextGenerator{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	router := a.Router()

	ask := func() *httptest.ResponseRecorder {
		body := `{"documents":"policy.pdf","questions":["What is the grace period?","What is the sum insured?"]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/hackrx/run", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer k")
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := ask()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
	var resp struct {
		Answers []string `json:"answers"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Answers) != 2 ||
		!strings.Contains(resp.Answers[0], "thirty days") ||
		!strings.Contains(resp.Answers[1], "five lakh") {
		t.Fatalf("answers = %q", resp.Answers)
	}

	if w := ask(); w.Code != http.StatusOK {
		t.Fatalf("second status = %d", w.Code)
	}
	if got := enc.calls.Load(); got != 1 {
		t.Fatalf("document embedded %d times, want 1 with the index cache", got)
	}
}

func TestRouter_MissingDocument(t *testing.T) {
	cfg := testConfig(t)
	cfg.IndexCacheBackend = config.CacheNone
	metrics, _ := telemetry.InitMetrics(cfg.ServiceName)
	a, err := build(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics, &wordEncoder{}, contextGenerator{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/hackrx/run", strings.NewReader(`{"documents":"nope.pdf","questions":["q"]}`))
	req.Header.Set("Authorization", "Bearer k")
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "Document not found.") {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestBuild_RedisCacheNeedsClient(t *testing.T) {
	cfg := testConfig(t)
	cfg.IndexCacheBackend = config.CacheRedis
	metrics, _ := telemetry.InitMetrics(cfg.ServiceName)
	if _, err := build(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics, &wordEncoder{}, contextGenerator{}, nil); err == nil {
		t.Fatal("expected error without a Redis client")
	}
}
