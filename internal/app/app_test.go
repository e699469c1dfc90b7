package app

import (
	"context"
	"testing"
	"time"

	"github.com/ralphorch/ralph/internal/config"
	"github.com/ralphorch/ralph/internal/domain"
	"github.com/ralphorch/ralph/internal/notify"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.General.DatabasePath = ":memory:"
	return cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func seedThread(t *testing.T, a *App, id domain.ThreadID) {
	t.Helper()
	now := time.Now().UTC()
	if err := a.Store.CreateThread(&domain.Thread{
		ID: id, Name: "n", Task: "t", RepoPath: "/repo", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestNew_WiresEverySubsystem(t *testing.T) {
	a := newTestApp(t)
	if a.Store == nil || a.Journal == nil || a.Broadcast == nil || a.Queue == nil || a.Worktree == nil || a.Scheduler == nil {
		t.Fatalf("expected every subsystem to be wired, got %+v", a)
	}
	if a.Notifier == nil {
		t.Error("expected a non-nil notifier even with notifications disabled")
	}
	if a.HTTPHandler() == nil {
		t.Error("expected a non-nil HTTP handler")
	}
}

func TestAppendEvent_JournalsAndBroadcasts(t *testing.T) {
	a := newTestApp(t)
	seedThread(t, a, "thread-1")

	sub := a.Broadcast.Subscribe()
	defer a.Broadcast.Unsubscribe(sub)

	a.AppendEvent(context.Background(), "thread-1", "", domain.EventThreadCreated, map[string]any{"name": "n"})

	events, err := a.Journal.ByThread(context.Background(), "thread-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != domain.EventThreadCreated {
		t.Fatalf("expected thread.created to be journaled, got %+v", events)
	}

	select {
	case msg := <-sub:
		if msg.Event == nil || msg.Event.Kind != domain.EventThreadCreated {
			t.Errorf("expected the broadcast message to carry the event, got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the event to be broadcast")
	}
}

func TestCreateAutomationRun_RejectsUnknownThread(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.createAutomationRun("nope", 5); err == nil {
		t.Fatal("expected an error for a thread that does not exist")
	}
}

func TestCreateAutomationRun_EnqueuesAQueuedRun(t *testing.T) {
	a := newTestApp(t)
	seedThread(t, a, "thread-1")

	runID, err := a.createAutomationRun("thread-1", 7)
	if err != nil {
		t.Fatal(err)
	}

	run, err := a.Store.GetRun(runID)
	if err != nil {
		t.Fatal(err)
	}
	if run.ThreadID != "thread-1" || run.MaxIterations != 7 {
		t.Errorf("expected run bound to thread-1 with 7 max iterations, got %+v", run)
	}
}

func TestQueueEvent_NotifiesOnTerminalStatus(t *testing.T) {
	a := newTestApp(t)
	seedThread(t, a, "thread-1")

	run := &domain.Run{ID: "run-1", ThreadID: "thread-1", Status: domain.RunRunning, MaxIterations: 1, CreatedAt: time.Now().UTC()}
	if err := a.Store.CreateRun(run); err != nil {
		t.Fatal(err)
	}

	rec := &recordingNotifier{}
	a.Notifier = rec

	a.queueEvent(domain.EventRunCompleted, run.ID, nil)

	if len(rec.sent) != 1 || rec.sent[0].Type != notify.NotifySuccess {
		t.Fatalf("expected one success notification, got %+v", rec.sent)
	}
}

func TestQueueEvent_IgnoresNonTerminalStatus(t *testing.T) {
	a := newTestApp(t)
	seedThread(t, a, "thread-1")

	run := &domain.Run{ID: "run-1", ThreadID: "thread-1", Status: domain.RunRunning, MaxIterations: 1, CreatedAt: time.Now().UTC()}
	if err := a.Store.CreateRun(run); err != nil {
		t.Fatal(err)
	}

	rec := &recordingNotifier{}
	a.Notifier = rec

	a.queueEvent(domain.EventRunPaused, run.ID, nil)

	if len(rec.sent) != 0 {
		t.Fatalf("expected no notification for a non-terminal event, got %+v", rec.sent)
	}
}

func TestQueueEvent_RunFailedCarriesErrorMessage(t *testing.T) {
	a := newTestApp(t)
	seedThread(t, a, "thread-1")

	run := &domain.Run{ID: "run-1", ThreadID: "thread-1", Status: domain.RunRunning, MaxIterations: 1, CreatedAt: time.Now().UTC()}
	if err := a.Store.CreateRun(run); err != nil {
		t.Fatal(err)
	}
	a.Store.SetRunError(run.ID, "Loop ended before completion")

	a.queueEvent(domain.EventRunFailed, run.ID, nil)

	events, err := a.Journal.ByThread(context.Background(), "thread-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != domain.EventRunFailed {
		t.Fatalf("expected one run.failed event, got %+v", events)
	}
	if events[0].Payload["message"] != "Loop ended before completion" {
		t.Errorf("expected run.failed payload to carry the run's error message, got %+v", events[0].Payload)
	}
}

func TestBuildNotifier(t *testing.T) {
	cfg := config.Default()
	if _, ok := buildNotifier(cfg).(notify.NoopNotifier); !ok {
		t.Error("expected a NoopNotifier when no channel is configured")
	}

	cfg.Notifications.Desktop = true
	if _, ok := buildNotifier(cfg).(notify.NoopNotifier); ok {
		t.Error("expected a real notifier once desktop notifications are enabled")
	}
}

type recordingNotifier struct {
	sent []notify.Notification
}

func (r *recordingNotifier) Send(n notify.Notification) error {
	r.sent = append(r.sent, n)
	return nil
}
