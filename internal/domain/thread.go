// Package domain holds the core entities Ralph persists: threads, runs,
// events, review comments, and automations. These types carry no behavior
// beyond small invariant helpers — storage lives in internal/store,
// orchestration in internal/loop and internal/queue.
package domain

import "time"

// ThreadID uniquely identifies a thread. Opaque, stable, generated once.
type ThreadID string

// Thread is a persistent workstream bound to a repository and worktree.
type Thread struct {
	ID            ThreadID
	Name          string
	Task          string
	RepoPath      string
	WorktreePath  string
	BranchName    string
	Agent         string
	ValidateCmds  []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
