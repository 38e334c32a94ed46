package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reviewd-dev/reviewd/internal/config"
	"github.com/reviewd-dev/reviewd/internal/llm"
	"github.com/reviewd-dev/reviewd/internal/review"
	"github.com/reviewd-dev/reviewd/internal/storage"
)

const testAPIKey = "test-review-key"

// fakeClient scripts the provider with a single function.
type fakeClient struct {
	complete func(ctx context.Context, prompt string) (string, llm.Usage, error)
}

func (c *fakeClient) Name() string  { return "fake" }
func (c *fakeClient) Model() string { return "fake-model" }
func (c *fakeClient) Complete(ctx context.Context, prompt string) (string, llm.Usage, error) {
	return c.complete(ctx, prompt)
}

// happyClient answers every analyzer with one finding and the
// synthesis with a complete report containing a duplicated finding.
func happyClient() *fakeClient {
	finding := `{"category": "security", "severity": "high", "file": "app/auth.py", "line": 2, "message": "SQL query built with string interpolation", "suggestion": "Use parameterized queries"}`
	return &fakeClient{complete: func(ctx context.Context, prompt string) (string, llm.Usage, error) {
		if err := ctx.Err(); err != nil {
			return "", llm.Usage{}, err
		}
		if strings.Contains(prompt, "principal engineer combining") {
			report := `{"summary": "One security issue found", "score": 6.0, "findings": [` +
				finding + `, ` + finding + `]}`
			return report, llm.Usage{TotalTokens: 30}, nil
		}
		return "[" + finding + "]", llm.Usage{TotalTokens: 10}, nil
	}}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.ReviewAPIKey = testAPIKey
	cfg.RateLimitPerMinute = 100
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, client llm.Client, db *storage.DB) http.Handler {
	t.Helper()
	service := NewService(cfg, review.NewOrchestrator(client), db)
	return NewServer(cfg, service, db).httpServer.Handler
}

const sampleDiff = `diff --git a/app/auth.py b/app/auth.py
index 1111111..2222222 100644
--- a/app/auth.py
+++ b/app/auth.py
@@ -1,2 +1,2 @@
 import db
-query = "SELECT 1"
+query = f"SELECT * FROM users WHERE id = {uid}"
`

func postReview(t *testing.T, h http.Handler, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/review", bytes.NewReader(data))
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) *review.Result {
	t.Helper()
	var res review.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return &res
}

func TestHandleReview_Success(t *testing.T) {
	h := newTestServer(t, testConfig(), happyClient(), nil)

	rec := postReview(t, h, testAPIKey, review.Request{Diff: sampleDiff})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	res := decodeResult(t, rec)
	if res.Summary != "One security issue found" {
		t.Errorf("summary = %q", res.Summary)
	}
	if res.Score != 6.0 {
		t.Errorf("score = %v", res.Score)
	}
	// The synthesized report repeated its finding; deduplication
	// collapses the pair.
	if len(res.Findings) != 1 {
		t.Errorf("expected 1 finding after dedup, got %d", len(res.Findings))
	}
	applied := strings.Join(res.Metadata.GuardrailsApplied, ",")
	if !strings.Contains(applied, "duplicates") {
		t.Errorf("expected duplicates guardrail in %q", applied)
	}
	if res.Metadata.AgentCount != 5 {
		t.Errorf("agent_count = %d, want 5", res.Metadata.AgentCount)
	}
	if res.Metadata.Model != "fake-model" {
		t.Errorf("model = %q", res.Metadata.Model)
	}
}

func TestHandleReview_Auth(t *testing.T) {
	h := newTestServer(t, testConfig(), happyClient(), nil)

	for _, key := range []string{"", "wrong-key"} {
		rec := postReview(t, h, key, review.Request{Diff: sampleDiff})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("key %q: status = %d, want 401", key, rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Errorf("key %q: missing WWW-Authenticate header", key)
		}
	}
}

func TestHandleReview_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	h := newTestServer(t, cfg, happyClient(), nil)

	if rec := postReview(t, h, testAPIKey, review.Request{Diff: sampleDiff}); rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", rec.Code)
	}
	rec := postReview(t, h, testAPIKey, review.Request{Diff: sampleDiff})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", rec.Code)
	}
}

func TestHandleReview_EmptyDiff(t *testing.T) {
	h := newTestServer(t, testConfig(), happyClient(), nil)

	rec := postReview(t, h, testAPIKey, review.Request{Diff: ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleReview_MalformedBody(t *testing.T) {
	h := newTestServer(t, testConfig(), happyClient(), nil)

	req := httptest.NewRequest(http.MethodPost, "/review", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleReview_OversizedDiff(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDiffSizeBytes = 64
	h := newTestServer(t, cfg, happyClient(), nil)

	rec := postReview(t, h, testAPIKey, review.Request{Diff: strings.Repeat("x", 100)})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestHandleReview_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeoutSeconds = 1
	stall := &fakeClient{complete: func(ctx context.Context, prompt string) (string, llm.Usage, error) {
		<-ctx.Done()
		return "", llm.Usage{}, ctx.Err()
	}}
	h := newTestServer(t, cfg, stall, nil)

	rec := postReview(t, h, testAPIKey, review.Request{Diff: sampleDiff})
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504, body %s", rec.Code, rec.Body)
	}
}

func TestHandleReview_AllAnalyzersFailed(t *testing.T) {
	broken := &fakeClient{complete: func(ctx context.Context, prompt string) (string, llm.Usage, error) {
		return "", llm.Usage{}, errors.New("provider unavailable")
	}}
	h := newTestServer(t, testConfig(), broken, nil)

	rec := postReview(t, h, testAPIKey, review.Request{Diff: sampleDiff})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errResp.Error, "all analyzer tasks failed") {
		t.Errorf("error = %q", errResp.Error)
	}
}

func TestHandleReview_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, testConfig(), happyClient(), nil)

	req := httptest.NewRequest(http.MethodGet, "/review", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestServer(t, testConfig(), happyClient(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q", health.Status)
	}
	if health.LLMProvider != "openai" {
		t.Errorf("llm_provider = %q", health.LLMProvider)
	}
}

func TestHandleListReviews(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "reviews.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	h := newTestServer(t, testConfig(), happyClient(), db)

	body := review.Request{Diff: sampleDiff, Context: review.Context{Repo: "acme/widgets"}}
	if rec := postReview(t, h, testAPIKey, body); rec.Code != http.StatusOK {
		t.Fatalf("review: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/reviews", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d, body %s", rec.Code, rec.Body)
	}

	var listed struct {
		Reviews []storage.ReviewRecord `json:"reviews"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Reviews) != 1 {
		t.Fatalf("expected 1 review, got %d", len(listed.Reviews))
	}
	stored := listed.Reviews[0]
	if stored.Repo != "acme/widgets" || stored.Status != storage.StatusDone {
		t.Errorf("unexpected record: %+v", stored)
	}

	// Lookup by uuid
	req = httptest.NewRequest(http.MethodGet, "/api/reviews?id="+stored.UUID, nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("lookup: status = %d", rec.Code)
	}

	// Unknown uuid
	req = httptest.NewRequest(http.MethodGet, "/api/reviews?id=nope", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown uuid: status = %d", rec.Code)
	}
}

func TestHandleListReviews_RequiresAuth(t *testing.T) {
	h := newTestServer(t, testConfig(), happyClient(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/reviews", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleListReviews_NoHistory(t *testing.T) {
	h := newTestServer(t, testConfig(), happyClient(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/reviews", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
