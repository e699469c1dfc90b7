package domain

import "time"

// AutomationID uniquely identifies a recurring trigger.
type AutomationID string

// Automation is a recurring trigger bound to a thread.
type Automation struct {
	ID            AutomationID
	Name          string
	Cron          string // five whitespace-separated fields; literals and `*` only
	ThreadID      ThreadID
	MaxIterations int
	Enabled       bool
	LastTriggered time.Time
	CreatedAt     time.Time
}
