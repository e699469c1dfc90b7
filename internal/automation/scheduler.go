// Package automation ticks every 30 seconds and creates new runs for
// automations whose cron expression matches the current wall clock.
package automation

import (
	"context"
	"log"
	"time"

	"github.com/ralphorch/ralph/internal/domain"
)

// TickInterval is how often the scheduler evaluates automations.
const TickInterval = 30 * time.Second

// Store is the persistence seam the scheduler needs.
type Store interface {
	ListAutomations() ([]*domain.Automation, error)
	SetAutomationLastTriggered(id domain.AutomationID, when time.Time) error
}

// RunCreator creates and enqueues a new run for an automation's thread.
// It returns the new run's id.
type RunCreator func(threadID domain.ThreadID, maxIterations int) (domain.RunID, error)

// EventFunc is called for automation.triggered and run.queued.
type EventFunc func(kind domain.EventKind, threadID domain.ThreadID, payload map[string]any)

// Scheduler drives automation triggers.
type Scheduler struct {
	store      Store
	runCreator RunCreator
	events     EventFunc
	now        func() time.Time
}

// New builds a Scheduler.
func New(store Store, runCreator RunCreator, events EventFunc) *Scheduler {
	return &Scheduler{store: store, runCreator: runCreator, events: events, now: time.Now}
}

// Run blocks, ticking every TickInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	automations, err := s.store.ListAutomations()
	if err != nil {
		log.Printf("[automation] listing automations: %v", err)
		return
	}

	now := s.now()
	bucket := minuteBucket(now)

	for _, a := range automations {
		if !a.Enabled {
			continue
		}

		matched, err := matchCron(a.Cron, now)
		if err != nil {
			log.Printf("[automation] %s has an invalid cron expression %q: %v", a.ID, a.Cron, err)
			continue
		}
		if !matched {
			continue
		}
		if !a.LastTriggered.IsZero() && minuteBucket(a.LastTriggered) == bucket {
			continue
		}

		s.trigger(a, now)
	}
}

// TriggerNow performs the same action as a matched tick, ignoring the cron
// match and minute-bucket check.
func (s *Scheduler) TriggerNow(a *domain.Automation) (domain.RunID, error) {
	return s.trigger(a, s.now())
}

func (s *Scheduler) trigger(a *domain.Automation, when time.Time) (domain.RunID, error) {
	runID, err := s.runCreator(a.ThreadID, a.MaxIterations)
	if err != nil {
		log.Printf("[automation] creating run for %s: %v", a.ID, err)
		return "", err
	}

	if err := s.store.SetAutomationLastTriggered(a.ID, when); err != nil {
		log.Printf("[automation] recording last-triggered for %s: %v", a.ID, err)
	}

	if s.events != nil {
		s.events(domain.EventAutomationTriggered, a.ThreadID, map[string]any{"automationId": a.ID, "runId": runID})
		s.events(domain.EventRunQueued, a.ThreadID, map[string]any{"runId": runID})
	}

	return runID, nil
}

func minuteBucket(t time.Time) int64 {
	return t.Unix() / 60
}
