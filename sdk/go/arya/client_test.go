package arya

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubmitMessageSendsKeyAndWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/messages" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("expected bearer key, got %q", got)
		}
		if r.URL.Query().Get("wait") != "1" {
			t.Fatalf("expected wait=1, got %q", r.URL.RawQuery)
		}
		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if msg.Text != "What is STRK price" || msg.Source != "discord" || len(msg.Context) != 1 {
			t.Fatalf("unexpected message: %+v", msg)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Job{
			ID:     "job-1",
			Text:   msg.Text,
			Status: StatusSucceeded,
			Reply:  &Reply{Text: "STRK is $0.42"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", WithAPIKey("secret"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	job, err := client.SubmitMessage(context.Background(), Message{
		Text:    "What is STRK price",
		Source:  "discord",
		Context: []Turn{{Speaker: "user", Text: "hi"}},
	}, true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !job.Done() || job.Reply == nil || job.Reply.Text != "STRK is $0.42" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestGetMessageDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/messages/missing" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "作业不存在", "code": "JOB_NOT_FOUND"})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	_, err := client.GetMessage(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "JOB_NOT_FOUND" || apiErr.Message != "作业不存在" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}

	if _, err := client.GetMessage(context.Background(), " "); err == nil {
		t.Fatalf("expected error for blank id")
	}
}

func TestListMessagesAndStatsEncodeFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/messages":
			if q.Get("status") != "failed,succeeded" || q.Get("limit") != "5" || q.Get("order") != "asc" || q.Get("since") != "1700000000" {
				t.Fatalf("unexpected list query: %s", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"messages": []Job{{ID: "a"}, {ID: "b"}}})
		case "/api/v1/messages/stats":
			if q.Get("limit") != "" || q.Get("source") != "telegram" {
				t.Fatalf("unexpected stats query: %s", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode(Stats{Total: 3, Failed: 1, Succeeded: 2})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	jobs, err := client.ListMessages(context.Background(), ListParams{
		Statuses:  []string{StatusFailed, StatusSucceeded},
		Limit:     5,
		Ascending: true,
		Since:     time.Unix(1700000000, 0),
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "a" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}

	stats, err := client.Stats(context.Background(), ListParams{Source: "telegram", Limit: 10})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestWaitForMessagePollsUntilDone(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		status := StatusRunning
		if calls >= 3 {
			status = StatusFailed
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Job{ID: "job-1", Status: status})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	job, err := client.WaitForMessage(ctx, "job-1", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if job.Status != StatusFailed || calls != 3 {
		t.Fatalf("unexpected result: %+v after %d calls", job, calls)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
