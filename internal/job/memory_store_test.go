package job

import (
	"context"
	"testing"
	"time"

	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/intent"
	"Arya-Agent/internal/response"
)

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	jobs := []*Job{
		{ID: "j1", Text: "Swap 10 ETH for LORDS", Action: intent.ActionSwap, Source: "discord", Status: StatusPending, MaxAttempts: MaxAttempts},
		{ID: "j2", Text: "What is STRK price", Action: intent.ActionPrice, Source: "telegram", Status: StatusPending, MaxAttempts: MaxAttempts},
		{ID: "j3", Text: "Get Twitch user satoshiwarlock", Action: intent.ActionTwitch, Status: StatusPending, MaxAttempts: MaxAttempts},
	}
	for _, job := range jobs {
		if err := store.Create(ctx, job); err != nil {
			t.Fatalf("create job %s: %v", job.ID, err)
		}
	}
	if err := store.MarkFailed(ctx, "j2", xerrors.CodePriceFailure, "upstream 502", &response.Response{Text: "price unavailable"}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "j3", &response.Response{Text: "User ID: 42"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	base := time.Now().Add(-2 * time.Minute).Unix()
	store.mu.Lock()
	store.jobs["j1"].UpdatedAt = base
	store.jobs["j2"].UpdatedAt = base + 30
	store.jobs["j3"].UpdatedAt = base + 60
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "j3" || all[2].ID != "j1" {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	asc, _ := store.List(ctx, buildListOptions([]ListOption{WithSortOrder(SortByUpdatedAsc)}))
	if asc[0].ID != "j1" {
		t.Fatalf("expected oldest first, got %v", ids(asc))
	}

	failed, _ := store.List(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed, "bogus")}))
	if len(failed) != 1 || failed[0].ID != "j2" || failed[0].Reply.Text != "price unavailable" {
		t.Fatalf("unexpected failed list: %v", ids(failed))
	}

	swaps, _ := store.List(ctx, buildListOptions([]ListOption{WithActions(intent.ActionSwap)}))
	if len(swaps) != 1 || swaps[0].ID != "j1" {
		t.Fatalf("unexpected action filter: %v", ids(swaps))
	}

	telegram, _ := store.List(ctx, buildListOptions([]ListOption{WithSource(" Telegram ")}))
	if len(telegram) != 1 || telegram[0].ID != "j2" {
		t.Fatalf("unexpected source filter: %v", ids(telegram))
	}

	byReply, _ := store.List(ctx, buildListOptions([]ListOption{WithQuery("user id")}))
	if len(byReply) != 1 || byReply[0].ID != "j3" {
		t.Fatalf("query should match reply text: %v", ids(byReply))
	}

	page, _ := store.List(ctx, buildListOptions([]ListOption{WithLimit(1), WithOffset(1)}))
	if len(page) != 1 || page[0].ID != "j2" {
		t.Fatalf("unexpected page: %v", ids(page))
	}

	beyond, _ := store.List(ctx, buildListOptions([]ListOption{WithOffset(10)}))
	if len(beyond) != 0 {
		t.Fatalf("offset past the end should be empty")
	}

	recent, _ := store.List(ctx, buildListOptions([]ListOption{WithUpdatedSince(time.Unix(base+30, 0))}))
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent jobs, got %v", ids(recent))
	}

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.OldestUpdatedAt != base || stats.NewestUpdatedAt != base+60 {
		t.Fatalf("unexpected stats window: %+v", stats)
	}
}

func TestMemoryStoreClaimOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, &Job{ID: "j1", Text: "hi", Status: StatusPending, MaxAttempts: MaxAttempts}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Job{ID: "j1", Text: "again"}); err != ErrJobConflict {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}

	claimed, err := store.Claim(ctx, "j1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed job: %+v", claimed)
	}
	if _, err := store.Claim(ctx, "j1"); err != ErrJobConflict {
		t.Fatalf("running job must not be claimed twice, got %v", err)
	}
	if err := store.MarkFailed(ctx, "j1", xerrors.CodeSubmissionFailure, "reverted", nil); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if _, err := store.Claim(ctx, "j1"); err != ErrJobCompleted {
		t.Fatalf("failed job must not be claimed again, got %v", err)
	}
	if _, err := store.Claim(ctx, "missing"); err != ErrJobNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if !IsSkippable(ErrJobCompleted) || IsSkippable(xerrors.New(xerrors.CodeStorageFailure, "db down")) {
		t.Fatalf("unexpected skippable classification")
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, &Job{ID: "j1", Text: "hi", Status: StatusPending, MaxAttempts: MaxAttempts})
	_ = store.MarkSucceeded(ctx, "j1", &response.Response{Text: "ok", Attachment: &response.Attachment{ID: "a"}})

	got, _ := store.Get(ctx, "j1")
	got.Reply.Text = "mutated"
	got.Reply.Attachment.ID = "b"

	again, _ := store.Get(ctx, "j1")
	if again.Reply.Text != "ok" || again.Reply.Attachment.ID != "a" {
		t.Fatalf("store must not share reply state with callers: %+v", again.Reply)
	}
}

func ids(jobs []*Job) []string {
	out := make([]string, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.ID)
	}
	return out
}
