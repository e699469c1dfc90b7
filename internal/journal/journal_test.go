package journal

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/ralphorch/ralph/internal/domain"
)

const testSchema = `
CREATE TABLE events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    thread_id TEXT NOT NULL,
    run_id TEXT,
    kind TEXT NOT NULL,
    payload_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAppend_AssignsMonotonicIDs(t *testing.T) {
	j := New(newTestDB(t))
	ctx := context.Background()

	e1, err := j.Append(ctx, "thread-1", "", domain.EventThreadCreated, nil)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := j.Append(ctx, "thread-1", "", domain.EventRunQueued, map[string]any{"runId": "run-1"})
	if err != nil {
		t.Fatal(err)
	}

	if e2.ID <= e1.ID {
		t.Errorf("expected e2.ID (%d) > e1.ID (%d)", e2.ID, e1.ID)
	}
}

func TestByThread_NewestFirst(t *testing.T) {
	j := New(newTestDB(t))
	ctx := context.Background()

	j.Append(ctx, "thread-1", "", domain.EventThreadCreated, nil)
	j.Append(ctx, "thread-1", "", domain.EventRunQueued, nil)
	j.Append(ctx, "thread-2", "", domain.EventThreadCreated, nil)

	events, err := j.ByThread(ctx, "thread-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for thread-1, got %d", len(events))
	}
	if events[0].Kind != domain.EventRunQueued {
		t.Errorf("expected newest-first order, got %s first", events[0].Kind)
	}
}

func TestByThread_RespectsLimit(t *testing.T) {
	j := New(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		j.Append(ctx, "thread-1", "", domain.EventRunQueued, nil)
	}

	events, err := j.ByThread(ctx, "thread-1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 events with limit=3, got %d", len(events))
	}
}

func TestByID_ReturnsPayload(t *testing.T) {
	j := New(newTestDB(t))
	ctx := context.Background()

	appended, err := j.Append(ctx, "thread-1", "run-1", domain.EventLoopIterationStarted, map[string]any{"iteration": float64(3)})
	if err != nil {
		t.Fatal(err)
	}

	got, err := j.ByID(ctx, appended.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Payload["iteration"] != float64(3) {
		t.Errorf("payload iteration = %v, want 3", got.Payload["iteration"])
	}
	if got.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", got.RunID)
	}
}

func TestByID_NotFound(t *testing.T) {
	j := New(newTestDB(t))
	_, err := j.ByID(context.Background(), 999)
	if err == nil {
		t.Fatal("expected an error for a missing event id")
	}
	derr, ok := domain.AsError(err)
	if !ok || derr.Kind != domain.KindNotFound {
		t.Errorf("expected a KindNotFound domain error, got %v", err)
	}
}
