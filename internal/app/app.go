// Package app wires every Ralph subsystem together into one running
// instance: the database, the event journal and broadcast hub, the run
// queue and its iteration-loop executor, and the automation scheduler.
// cmd/ralphd is a thin cobra shell around this package.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ralphorch/ralph/internal/automation"
	"github.com/ralphorch/ralph/internal/broadcast"
	"github.com/ralphorch/ralph/internal/config"
	"github.com/ralphorch/ralph/internal/domain"
	"github.com/ralphorch/ralph/internal/httpapi"
	"github.com/ralphorch/ralph/internal/journal"
	"github.com/ralphorch/ralph/internal/loop"
	"github.com/ralphorch/ralph/internal/notify"
	"github.com/ralphorch/ralph/internal/queue"
	"github.com/ralphorch/ralph/internal/store"
	"github.com/ralphorch/ralph/internal/worktree"
)

// App is a fully wired Ralph instance.
type App struct {
	Config    *config.Config
	Store     *store.Store
	Journal   *journal.Journal
	Broadcast *broadcast.Hub
	Queue     *queue.Queue
	Worktree  *worktree.Manager
	Scheduler *automation.Scheduler
	Notifier  notify.Notifier
}

// New opens the store and wires every subsystem against it. Close must be
// called when the App is no longer needed.
func New(cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.General.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	jr := journal.New(st.DB())
	hub := broadcast.New(broadcast.DefaultQueueSize)
	wt := worktree.NewManager()
	notifier := buildNotifier(cfg)

	a := &App{
		Config:    cfg,
		Store:     st,
		Journal:   jr,
		Broadcast: hub,
		Worktree:  wt,
		Notifier:  notifier,
	}

	a.Queue = queue.New(cfg.General.MaxConcurrent, st, a.queueEvent, a.executeRun)
	a.Scheduler = automation.New(st, a.createAutomationRun, a.schedulerEvent)

	return a, nil
}

// Close releases the underlying database connection.
func (a *App) Close() error {
	return a.Store.Close()
}

// AppendEvent journals and broadcasts one event. It never returns an error
// to its caller: a journal write failure is logged here and nothing is
// broadcast for it, and the broadcast is best-effort by construction.
func (a *App) AppendEvent(ctx context.Context, threadID domain.ThreadID, runID domain.RunID, kind domain.EventKind, payload map[string]any) {
	evt, err := a.Journal.Append(ctx, threadID, runID, kind, payload)
	if err != nil {
		log.Printf("[app] journaling %s for thread %s: %v", kind, threadID, err)
		return
	}
	a.Broadcast.PublishEvent(evt)
}

// queueEvent adapts queue.EventFunc (which only knows a run id) into
// AppendEvent (which needs the owning thread id). run.failed carries the
// run's persisted error as {message}: the queue itself never sees it, only
// the store does, so it is filled in here rather than by the queue.
func (a *App) queueEvent(kind domain.EventKind, runID domain.RunID, payload map[string]any) {
	run, err := a.Store.GetRun(runID)
	if err != nil {
		return
	}
	if kind == domain.EventRunFailed && run.Error != "" {
		payload = map[string]any{"message": run.Error}
	}
	a.AppendEvent(context.Background(), run.ThreadID, runID, kind, payload)
	a.notifyTerminal(run, kind)
}

// schedulerEvent adapts automation.EventFunc into AppendEvent.
func (a *App) schedulerEvent(kind domain.EventKind, threadID domain.ThreadID, payload map[string]any) {
	a.AppendEvent(context.Background(), threadID, "", kind, payload)
}

func (a *App) notifyTerminal(run *domain.Run, kind domain.EventKind) {
	if a.Notifier == nil {
		return
	}
	var n notify.Notification
	switch kind {
	case domain.EventRunCompleted:
		n = notify.Notification{Title: "Ralph run completed", Message: string(run.ThreadID), Type: notify.NotifySuccess, ThreadID: string(run.ThreadID), RunID: string(run.ID)}
	case domain.EventRunFailed:
		n = notify.Notification{Title: "Ralph run failed", Message: run.Error, Type: notify.NotifyError, ThreadID: string(run.ThreadID), RunID: string(run.ID)}
	default:
		return
	}
	_ = a.Notifier.Send(n)
}

// createAutomationRun is the automation.RunCreator: it creates and enqueues
// a fresh run for threadID, the way POST /threads/{id}/runs would.
func (a *App) createAutomationRun(threadID domain.ThreadID, maxIterations int) (domain.RunID, error) {
	if _, err := a.Store.GetThread(threadID); err != nil {
		return "", err
	}

	run := &domain.Run{
		ID:            domain.RunID(uuid.NewString()),
		ThreadID:      threadID,
		Status:        domain.RunQueued,
		MaxIterations: maxIterations,
		CreatedAt:     time.Now().UTC(),
	}
	if err := a.Store.CreateRun(run); err != nil {
		return "", err
	}
	a.Queue.Enqueue(run.ID)
	return run.ID, nil
}

// executeRun is the queue.Executor: it loads a run and its thread, drives
// the iteration loop, and persists the outcome.
func (a *App) executeRun(ctx context.Context, runID domain.RunID) bool {
	run, err := a.Store.GetRun(runID)
	if err != nil {
		return false
	}
	thread, err := a.Store.GetThread(run.ThreadID)
	if err != nil {
		a.Store.SetRunError(runID, err.Error())
		return false
	}

	taskText := thread.Task
	if run.TaskOverride != "" {
		taskText = run.TaskOverride
	}

	progressFile := a.Config.Agent.ProgressFile
	if progressFile == "" {
		progressFile = fmt.Sprintf("ralph-progress-%s.md", thread.ID)
	}

	result := loop.Run(ctx, loop.Inputs{
		WorktreePath:           thread.WorktreePath,
		TaskText:               taskText,
		TaskID:                 string(thread.ID),
		ValidationCommands:     thread.ValidateCmds,
		MaxIterations:          run.MaxIterations,
		ProgressFileName:       progressFile,
		FailureContextMaxChars: a.Config.Agent.FailureContextMaxChars,
		GitCheckpoint:          a.Config.Agent.GitCheckpoint,
		AgentName:             thread.Agent,
		IterationDelaySeconds:  a.Config.Agent.IterationDelaySeconds,
		Events: func(kind domain.EventKind, payload map[string]any) {
			a.AppendEvent(ctx, thread.ID, runID, kind, payload)
		},
	})

	a.Store.IncrementIterations(runID, result.Iterations)
	if !result.Success {
		a.Store.SetRunError(runID, "Loop ended before completion")
	}
	return result.Success
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notifications.Desktop {
		notifiers = append(notifiers, notify.NewDesktopNotifier(true))
	}
	if cfg.Notifications.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notifications.SlackWebhook))
	}
	if len(notifiers) == 0 {
		return notify.NoopNotifier{}
	}
	return notify.NewMultiNotifier(notifiers...)
}

// HTTPHandler builds the HTTP API handler for this App.
func (a *App) HTTPHandler() http.Handler {
	return httpapi.New(httpapi.Deps{
		Store:     a.Store,
		Journal:   a.Journal,
		Broadcast: a.Broadcast,
		Queue:     a.Queue,
		Worktree:  a.Worktree,
		Scheduler: a.Scheduler,
		AppendEvent: func(ctx context.Context, threadID domain.ThreadID, runID domain.RunID, kind domain.EventKind, payload map[string]any) {
			a.AppendEvent(ctx, threadID, runID, kind, payload)
		},
	})
}
