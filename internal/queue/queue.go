// Package queue is the run queue: it owns pending/running bookkeeping for
// runs and bounds how many iteration loops execute concurrently.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ralphorch/ralph/internal/domain"
)

// DefaultMaxConcurrent is the default concurrency cap for simultaneously
// executing runs.
const DefaultMaxConcurrent = 2

// StatusStore is the persistence seam the queue needs. It never reasons
// about anything beyond a run's status and terminal timestamp.
type StatusStore interface {
	Status(id domain.RunID) (domain.RunStatus, bool)
	SetStatus(id domain.RunID, status domain.RunStatus)
	SetFinished(id domain.RunID, status domain.RunStatus, finishedAt time.Time)
}

// EventFunc is called at every run-status edge the queue drives.
type EventFunc func(kind domain.EventKind, runID domain.RunID, payload map[string]any)

// Executor runs one run's iteration loop to completion. It returns whether
// the run succeeded; ctx is cancelled by Queue.Stop to abort a running run.
type Executor func(ctx context.Context, runID domain.RunID) (succeeded bool)

// Queue admits pending runs onto a bounded set of concurrently executing
// slots, tracking pause/resume/stop transitions for each.
type Queue struct {
	mu            sync.Mutex
	pending       []domain.RunID
	running       map[domain.RunID]struct{}
	controllers   map[domain.RunID]context.CancelFunc
	maxConcurrent int

	store    StatusStore
	events   EventFunc
	executor Executor
}

// New builds a Queue. maxConcurrent <= 0 falls back to DefaultMaxConcurrent.
func New(maxConcurrent int, store StatusStore, events EventFunc, executor Executor) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Queue{
		running:       make(map[domain.RunID]struct{}),
		controllers:   make(map[domain.RunID]context.CancelFunc),
		maxConcurrent: maxConcurrent,
		store:         store,
		events:        events,
		executor:      executor,
	}
}

func (q *Queue) emit(kind domain.EventKind, id domain.RunID, payload map[string]any) {
	if q.events != nil {
		q.events(kind, id, payload)
	}
}

// Enqueue adds runID to pending and attempts to start it immediately.
func (q *Queue) Enqueue(runID domain.RunID) {
	q.mu.Lock()
	q.pending = append(q.pending, runID)
	q.mu.Unlock()
	q.tick()
}

// Pause removes runID from pending and marks it paused. It is a no-op
// (returning false) for any run that is not currently pending — pausing a
// running run is intentionally unsupported.
func (q *Queue) Pause(runID domain.RunID) bool {
	q.mu.Lock()
	idx := indexOf(q.pending, runID)
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	q.pending = removeAt(q.pending, idx)
	q.mu.Unlock()

	q.store.SetStatus(runID, domain.RunPaused)
	q.emit(domain.EventRunPaused, runID, nil)
	return true
}

// Resume re-enqueues a paused run. It is a no-op if the run's persisted
// status is not paused.
func (q *Queue) Resume(runID domain.RunID) bool {
	status, ok := q.store.Status(runID)
	if !ok || status != domain.RunPaused {
		return false
	}

	q.store.SetStatus(runID, domain.RunQueued)
	q.emit(domain.EventRunResumed, runID, nil)

	q.mu.Lock()
	q.pending = append(q.pending, runID)
	q.mu.Unlock()
	q.tick()
	return true
}

// Stop cancels a run wherever it is. A pending run is removed and marked
// cancelled directly; a running run's cancellation handle is invoked and
// the executor's own finalizer is responsible for the status transition.
func (q *Queue) Stop(runID domain.RunID) bool {
	q.mu.Lock()
	if idx := indexOf(q.pending, runID); idx >= 0 {
		q.pending = removeAt(q.pending, idx)
		q.mu.Unlock()

		q.store.SetFinished(runID, domain.RunCancelled, time.Now())
		q.emit(domain.EventRunCancelled, runID, nil)
		return true
	}

	cancel, ok := q.controllers[runID]
	q.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// tick admits pending runs up to the concurrency cap.
func (q *Queue) tick() {
	for {
		q.mu.Lock()
		if len(q.running) >= q.maxConcurrent || len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}

		runID := q.pending[0]
		q.pending = q.pending[1:]

		if status, ok := q.store.Status(runID); ok && status != domain.RunQueued {
			q.mu.Unlock()
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		q.running[runID] = struct{}{}
		q.controllers[runID] = cancel
		q.mu.Unlock()

		q.store.SetStatus(runID, domain.RunRunning)
		q.emit(domain.EventRunStarted, runID, nil)

		go q.execute(ctx, runID)
	}
}

func (q *Queue) execute(ctx context.Context, runID domain.RunID) {
	defer func() {
		q.mu.Lock()
		delete(q.running, runID)
		delete(q.controllers, runID)
		q.mu.Unlock()
		q.tick()
	}()

	succeeded := q.executor(ctx, runID)

	finalStatus := domain.RunFailed
	kind := domain.EventRunFailed
	if succeeded {
		finalStatus = domain.RunCompleted
		kind = domain.EventRunCompleted
	}
	if ctx.Err() != nil {
		finalStatus = domain.RunCancelled
		kind = domain.EventRunCancelled
	}

	q.store.SetFinished(runID, finalStatus, time.Now())
	q.emit(kind, runID, nil)
}

func indexOf(ids []domain.RunID, target domain.RunID) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

func removeAt(ids []domain.RunID, idx int) []domain.RunID {
	return append(ids[:idx], ids[idx+1:]...)
}
