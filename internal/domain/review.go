package domain

import "time"

// CommentStatus tracks whether feedback has been folded into a rerun.
type CommentStatus string

const (
	CommentOpen    CommentStatus = "open"
	CommentApplied CommentStatus = "applied"
)

// CommentID uniquely identifies a review comment.
type CommentID string

// ReviewComment is inline feedback attached to one line of a diff.
type ReviewComment struct {
	ID        CommentID
	ThreadID  ThreadID
	RunID     RunID // optional
	FilePath  string
	Line      int // 1-based, new-side coordinates
	Body      string
	Status    CommentStatus
	CreatedAt time.Time
}
