package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Arya-Agent/internal/agent"
	"Arya-Agent/internal/auth"
	"Arya-Agent/internal/job"
	"Arya-Agent/internal/response"
)

type echoPipeline struct{}

func (echoPipeline) Handle(_ context.Context, msg agent.Message) (*response.Response, error) {
	return &response.Response{Text: "echo: " + msg.Text}, nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *job.MemoryStore) {
	t.Helper()
	store := job.NewMemoryStore()
	queue := job.NewMemoryQueue(16)
	svc := job.NewService(store, queue)

	ctx, cancel := context.WithCancel(context.Background())
	processor := job.NewProcessor(echoPipeline{}, store, queue, job.WithWorkerCount(2))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return NewServer(":0", svc, opts...), store
}

func TestSubmitAndWait(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	body := `{"text":"What is STRK price","action":"price","source":"discord","context":[{"speaker":"user","text":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages?wait=1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var got job.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != job.StatusSucceeded || got.Reply == nil || got.Reply.Text != "echo: What is STRK price" {
		t.Fatalf("unexpected job: %+v", got)
	}
	if len(got.Context) != 1 || got.Context[0].Speaker != "user" {
		t.Fatalf("context should be kept on the job: %+v", got.Context)
	}

	detail := httptest.NewRecorder()
	handler.ServeHTTP(detail, httptest.NewRequest(http.MethodGet, "/api/v1/messages/"+got.ID, nil))
	if detail.Code != http.StatusOK {
		t.Fatalf("detail status %d", detail.Code)
	}
}

func TestSubmitAsyncReturnsAccepted(t *testing.T) {
	server, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"text":"hello"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestSubmitValidation(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	cases := map[string]string{
		"malformed":      `{"text":`,
		"empty text":     `{"text":"  "}`,
		"unknown action": `{"text":"hi","action":"launch"}`,
	}
	for name, body := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestListStatsAndNotFound(t *testing.T) {
	server, store := newTestServer(t)
	handler := server.Handler()
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := store.Create(ctx, &job.Job{ID: id, Text: "msg " + id, Status: job.StatusPending, MaxAttempts: job.MaxAttempts}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	_ = store.MarkSucceeded(ctx, "b", &response.Response{Text: "done"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages?status=succeeded&limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var listed struct {
		Messages []job.Job `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Messages) != 1 || listed.Messages[0].ID != "b" {
		t.Fatalf("unexpected list: %+v", listed.Messages)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages/stats", nil))
	var stats job.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 2 || stats.Succeeded != 1 || stats.Pending != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages?status=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAuthProtectsAPIButNotHealth(t *testing.T) {
	server, _ := newTestServer(t, WithAuth(auth.NewService([]auth.Key{{Name: "bot", Value: "secret"}})))
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"text":"What is STRK price"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var submitted job.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if submitted.Source != "bot" {
		t.Fatalf("source should default to the key name, got %q", submitted.Source)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "arya_http_requests_total") {
		t.Fatalf("metrics endpoint should expose request counters")
	}
}
