package job

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/redis/go-redis/v9"

	"Arya-Agent/deploy/migrations"
	"Arya-Agent/internal/intent"
)

func TestBuildFilterClause(t *testing.T) {
	opts := buildListOptions([]ListOption{
		WithStatuses(StatusFailed, StatusSucceeded),
		WithActions(intent.ActionSwap),
		WithSource("Discord"),
		WithUpdatedSince(time.Unix(1700000000, 0)),
		WithQuery("LORDS"),
	})
	clause, args := buildFilterClause(opts)

	want := "status IN (?,?) AND action IN (?) AND LOWER(source) = ? AND updated_at >= ? AND (id LIKE ? OR text LIKE ? OR last_error LIKE ? OR reply_text LIKE ?)"
	if clause != want {
		t.Fatalf("unexpected clause:\n%s", clause)
	}
	if len(args) != 9 {
		t.Fatalf("expected 9 args, got %d", len(args))
	}
	if args[3] != "discord" || args[5] != "%LORDS%" {
		t.Fatalf("unexpected args: %v", args)
	}

	empty, none := buildFilterClause(buildListOptions(nil))
	if empty != "" || len(none) != 0 {
		t.Fatalf("expected no filters, got %q %v", empty, none)
	}
}

func TestLoadMigrationFilesOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_index.sql":   {Data: []byte("CREATE INDEX a ON t (b);\n")},
		"001_init.sql":        {Data: []byte("CREATE TABLE t (b INT);\n\nINSERT INTO t VALUES (1);")},
		"003_empty.sql":       {Data: []byte("  ;  ")},
		"README.md":           {Data: []byte("not sql")},
		"nested/004_skip.sql": {Data: []byte("SELECT 1")},
	}
	files, err := loadMigrationFiles(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(files))
	}
	if files[0].version != "001" || len(files[0].statements) != 2 {
		t.Fatalf("unexpected first migration: %+v", files[0])
	}
	if files[1].version != "002" {
		t.Fatalf("unexpected second migration: %+v", files[1])
	}
}

func TestEmbeddedMigrationCreatesJobTable(t *testing.T) {
	files, err := loadMigrationFiles(migrations.Files)
	if err != nil {
		t.Fatalf("load embedded: %v", err)
	}
	if len(files) == 0 || !strings.Contains(files[0].statements[0], "message_jobs") {
		t.Fatalf("expected message_jobs migration, got %+v", files)
	}
	for _, column := range strings.Split(jobColumns, ", ") {
		if !strings.Contains(files[0].statements[0], column+" ") {
			t.Fatalf("migration is missing column %s", column)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	cases := map[string]string{
		"001_message_jobs.sql": "001",
		"002.sql":              "002",
		"plain":                "plain",
	}
	for name, want := range cases {
		if got := parseMigrationVersion(name); got != want {
			t.Fatalf("parseMigrationVersion(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestRedisQueueDefaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	q := newRedisQueue(client, RedisQueueConfig{})
	if q.queue != "arya:jobs" || q.wait != 5*time.Second {
		t.Fatalf("unexpected defaults: %s %s", q.queue, q.wait)
	}
	custom := newRedisQueue(client, RedisQueueConfig{Queue: "custom", BlockWait: time.Second})
	if custom.queue != "custom" || custom.wait != time.Second {
		t.Fatalf("unexpected custom config: %s %s", custom.queue, custom.wait)
	}
}
