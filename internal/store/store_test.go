package store

import (
	"testing"
	"time"

	"github.com/ralphorch/ralph/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestThread_CreateAndGet(t *testing.T) {
	s := newTestStore(t)

	th := &domain.Thread{
		ID:           "thread-1",
		Name:         "fix flaky test",
		Task:         "make TestFoo deterministic",
		RepoPath:     "/repo",
		WorktreePath: "/repo/.ralph/thread-1",
		Agent:        "claude",
		ValidateCmds: []string{"go test ./..."},
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.CreateThread(th); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetThread(th.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != th.Name || got.WorktreePath != th.WorktreePath {
		t.Errorf("roundtrip mismatch: got %+v", got)
	}
	if len(got.ValidateCmds) != 1 || got.ValidateCmds[0] != "go test ./..." {
		t.Errorf("validate cmds not preserved: %+v", got.ValidateCmds)
	}
}

func TestThread_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetThread("nope")
	derr, ok := domain.AsError(err)
	if !ok || derr.Kind != domain.KindNotFound {
		t.Fatalf("expected a not-found domain error, got %v", err)
	}
}

func TestListThreads_NewestFirst(t *testing.T) {
	s := newTestStore(t)

	first := &domain.Thread{ID: "t1", Name: "a", Task: "a", RepoPath: "/r", CreatedAt: time.Now().UTC().Add(-time.Hour), UpdatedAt: time.Now().UTC()}
	second := &domain.Thread{ID: "t2", Name: "b", Task: "b", RepoPath: "/r", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := s.CreateThread(first); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateThread(second); err != nil {
		t.Fatal(err)
	}

	threads, err := s.ListThreads()
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 2 || threads[0].ID != "t2" {
		t.Fatalf("expected t2 first, got %+v", threads)
	}
}

func TestRun_StatusTransitionsAndFinish(t *testing.T) {
	s := newTestStore(t)
	seedThread(t, s, "thread-1")

	run := &domain.Run{ID: "run-1", ThreadID: "thread-1", Status: domain.RunQueued, MaxIterations: 5, CreatedAt: time.Now().UTC()}
	if err := s.CreateRun(run); err != nil {
		t.Fatal(err)
	}

	s.SetStatus(run.ID, domain.RunRunning)
	status, ok := s.Status(run.ID)
	if !ok || status != domain.RunRunning {
		t.Fatalf("expected running, got %v (ok=%v)", status, ok)
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StartedAt == nil {
		t.Error("expected started_at to be set by SetStatus(RunRunning)")
	}

	s.SetFinished(run.ID, domain.RunCompleted, time.Now().UTC())
	got, err = s.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.RunCompleted || got.FinishedAt == nil {
		t.Errorf("expected completed run with finished_at set, got %+v", got)
	}
}

func TestRun_SetErrorAndIncrementIterations(t *testing.T) {
	s := newTestStore(t)
	seedThread(t, s, "thread-1")

	run := &domain.Run{ID: "run-1", ThreadID: "thread-1", Status: domain.RunQueued, MaxIterations: 5, CreatedAt: time.Now().UTC()}
	if err := s.CreateRun(run); err != nil {
		t.Fatal(err)
	}

	s.SetRunError(run.ID, "validation never passed")
	s.IncrementIterations(run.ID, 3)

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Error != "validation never passed" || got.Iterations != 3 {
		t.Errorf("expected error+iterations persisted, got %+v", got)
	}
}

func TestAutomation_CreateToggleAndLastTriggered(t *testing.T) {
	s := newTestStore(t)
	seedThread(t, s, "thread-1")

	auto := &domain.Automation{ID: "auto-1", Name: "nightly", Cron: "0 2 * * *", ThreadID: "thread-1", MaxIterations: 10, Enabled: true, CreatedAt: time.Now().UTC()}
	if err := s.CreateAutomation(auto); err != nil {
		t.Fatal(err)
	}

	if err := s.SetAutomationEnabled(auto.ID, false); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAutomation(auto.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Error("expected automation to be disabled")
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.SetAutomationLastTriggered(auto.ID, now); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetAutomation(auto.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastTriggered.Equal(now) {
		t.Errorf("expected last_triggered %v, got %v", now, got.LastTriggered)
	}
}

func TestReviewComments_GetByIDsScopesToThread(t *testing.T) {
	s := newTestStore(t)
	seedThread(t, s, "thread-1")
	seedThread(t, s, "thread-2")

	c1 := &domain.ReviewComment{ID: "c1", ThreadID: "thread-1", FilePath: "a.go", Line: 10, Body: "fix this", Status: domain.CommentOpen, CreatedAt: time.Now().UTC()}
	c2 := &domain.ReviewComment{ID: "c2", ThreadID: "thread-2", FilePath: "b.go", Line: 1, Body: "and this", Status: domain.CommentOpen, CreatedAt: time.Now().UTC()}
	if err := s.CreateReviewComment(c1); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateReviewComment(c2); err != nil {
		t.Fatal(err)
	}

	out, err := s.GetReviewCommentsByIDs("thread-1", []domain.CommentID{"c1", "c2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "c1" {
		t.Fatalf("expected only c1 scoped to thread-1, got %+v", out)
	}
}

func TestReviewComments_MarkApplied(t *testing.T) {
	s := newTestStore(t)
	seedThread(t, s, "thread-1")

	c1 := &domain.ReviewComment{ID: "c1", ThreadID: "thread-1", FilePath: "a.go", Line: 10, Body: "fix this", Status: domain.CommentOpen, CreatedAt: time.Now().UTC()}
	if err := s.CreateReviewComment(c1); err != nil {
		t.Fatal(err)
	}

	if err := s.MarkReviewCommentsApplied("thread-1", []domain.CommentID{"c1"}); err != nil {
		t.Fatal(err)
	}

	out, err := s.ListReviewComments("thread-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Status != domain.CommentApplied {
		t.Fatalf("expected applied status, got %+v", out)
	}
}

func seedThread(t *testing.T, s *Store, id domain.ThreadID) {
	t.Helper()
	if err := s.CreateThread(&domain.Thread{ID: id, Name: "t", Task: "t", RepoPath: "/r", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
}
