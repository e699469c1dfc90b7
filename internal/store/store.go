// Package store is Ralph's single embedded relational database: threads,
// runs, events, automations, and review comments all live in one SQLite
// file, opened once at startup.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ralphorch/ralph/internal/domain"
)

// Store provides SQLite-backed persistence for every Ralph entity.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at dbPath and applies
// migrations and any lazy column additions.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s := &Store{db: db}
	s.applyLazyColumns()
	return s, nil
}

// DB exposes the underlying *sql.DB for packages (journal) that append to
// the events table directly.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// --- threads ---------------------------------------------------------------

// CreateThread inserts a new thread.
func (s *Store) CreateThread(t *domain.Thread) error {
	cmdsJSON, err := json.Marshal(t.ValidateCmds)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO threads (id, name, task, repo_path, worktree_path, branch_name, agent, validate_cmds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Task, t.RepoPath, t.WorktreePath, t.BranchName, t.Agent, string(cmdsJSON), t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetThread retrieves a thread by id.
func (s *Store) GetThread(id domain.ThreadID) (*domain.Thread, error) {
	row := s.db.QueryRow(`
		SELECT id, name, task, repo_path, worktree_path, branch_name, agent, validate_cmds, created_at, updated_at
		FROM threads WHERE id = ?`, id)
	return scanThread(row)
}

// ListThreads returns all threads, most recently created first.
func (s *Store) ListThreads() ([]*domain.Thread, error) {
	rows, err := s.db.Query(`
		SELECT id, name, task, repo_path, worktree_path, branch_name, agent, validate_cmds, created_at, updated_at
		FROM threads ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []*domain.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*domain.Thread, error) {
	var t domain.Thread
	var cmdsJSON string
	var worktreePath, branchName sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &t.Task, &t.RepoPath, &worktreePath, &branchName, &t.Agent, &cmdsJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("thread not found")
		}
		return nil, err
	}
	t.WorktreePath = worktreePath.String
	t.BranchName = branchName.String
	if err := json.Unmarshal([]byte(cmdsJSON), &t.ValidateCmds); err != nil {
		return nil, err
	}
	return &t, nil
}

// --- runs --------------------------------------------------------------

// CreateRun inserts a new run.
func (s *Store) CreateRun(r *domain.Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, thread_id, status, max_iterations, iterations, task_override, source_run_id, error, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ThreadID, r.Status, r.MaxIterations, r.Iterations, r.TaskOverride, r.SourceRunID, r.Error, r.CreatedAt, r.StartedAt, r.FinishedAt,
	)
	return err
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(id domain.RunID) (*domain.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, thread_id, status, max_iterations, iterations, task_override, source_run_id, error, created_at, started_at, finished_at
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRunsByThread returns all runs for a thread, newest first.
func (s *Store) ListRunsByThread(threadID domain.ThreadID) ([]*domain.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, thread_id, status, max_iterations, iterations, task_override, source_run_id, error, created_at, started_at, finished_at
		FROM runs WHERE thread_id = ? ORDER BY created_at DESC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var r domain.Run
	var taskOverride, sourceRunID, errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.ThreadID, &r.Status, &r.MaxIterations, &r.Iterations, &taskOverride, &sourceRunID, &errMsg, &r.CreatedAt, &startedAt, &finishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("run not found")
		}
		return nil, err
	}
	r.TaskOverride = taskOverride.String
	r.SourceRunID = domain.RunID(sourceRunID.String)
	r.Error = errMsg.String
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	return &r, nil
}

// Status implements queue.StatusStore.
func (s *Store) Status(id domain.RunID) (domain.RunStatus, bool) {
	var status domain.RunStatus
	err := s.db.QueryRow(`SELECT status FROM runs WHERE id = ?`, id).Scan(&status)
	if err != nil {
		return "", false
	}
	return status, true
}

// SetStatus implements queue.StatusStore.
func (s *Store) SetStatus(id domain.RunID, status domain.RunStatus) {
	if status == domain.RunRunning {
		now := time.Now()
		s.db.Exec(`UPDATE runs SET status = ?, started_at = ? WHERE id = ?`, status, now, id)
		return
	}
	s.db.Exec(`UPDATE runs SET status = ? WHERE id = ?`, status, id)
}

// SetFinished implements queue.StatusStore.
func (s *Store) SetFinished(id domain.RunID, status domain.RunStatus, finishedAt time.Time) {
	s.db.Exec(`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`, status, finishedAt, id)
}

// SetRunError records a fatal loop error on a run.
func (s *Store) SetRunError(id domain.RunID, message string) {
	s.db.Exec(`UPDATE runs SET error = ? WHERE id = ?`, message, id)
}

// IncrementIterations updates the run's iteration counter.
func (s *Store) IncrementIterations(id domain.RunID, iterations int) {
	s.db.Exec(`UPDATE runs SET iterations = ? WHERE id = ?`, iterations, id)
}

// --- automations ---------------------------------------------------------

// CreateAutomation inserts a new automation.
func (s *Store) CreateAutomation(a *domain.Automation) error {
	_, err := s.db.Exec(`
		INSERT INTO automations (id, name, cron, thread_id, max_iterations, enabled, last_triggered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Cron, a.ThreadID, a.MaxIterations, a.Enabled, nullTime(a.LastTriggered), a.CreatedAt,
	)
	return err
}

// ListAutomations returns every automation.
func (s *Store) ListAutomations() ([]*domain.Automation, error) {
	rows, err := s.db.Query(`
		SELECT id, name, cron, thread_id, max_iterations, enabled, last_triggered, created_at
		FROM automations ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAutomation retrieves an automation by id.
func (s *Store) GetAutomation(id domain.AutomationID) (*domain.Automation, error) {
	row := s.db.QueryRow(`
		SELECT id, name, cron, thread_id, max_iterations, enabled, last_triggered, created_at
		FROM automations WHERE id = ?`, id)
	return scanAutomation(row)
}

// SetAutomationEnabled toggles an automation's enabled flag.
func (s *Store) SetAutomationEnabled(id domain.AutomationID, enabled bool) error {
	_, err := s.db.Exec(`UPDATE automations SET enabled = ? WHERE id = ?`, enabled, id)
	return err
}

// SetAutomationLastTriggered records the last minute bucket an automation fired in.
func (s *Store) SetAutomationLastTriggered(id domain.AutomationID, when time.Time) error {
	_, err := s.db.Exec(`UPDATE automations SET last_triggered = ? WHERE id = ?`, when, id)
	return err
}

func scanAutomation(row rowScanner) (*domain.Automation, error) {
	var a domain.Automation
	var lastTriggered sql.NullTime
	if err := row.Scan(&a.ID, &a.Name, &a.Cron, &a.ThreadID, &a.MaxIterations, &a.Enabled, &lastTriggered, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("automation not found")
		}
		return nil, err
	}
	if lastTriggered.Valid {
		a.LastTriggered = lastTriggered.Time
	}
	return &a, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// --- review comments ------------------------------------------------------

// CreateReviewComment inserts a new comment in status "open".
func (s *Store) CreateReviewComment(c *domain.ReviewComment) error {
	_, err := s.db.Exec(`
		INSERT INTO review_comments (id, thread_id, run_id, file_path, line, body, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ThreadID, nullable(string(c.RunID)), c.FilePath, c.Line, c.Body, c.Status, c.CreatedAt,
	)
	return err
}

// ListReviewComments returns every comment for a thread, newest first.
func (s *Store) ListReviewComments(threadID domain.ThreadID) ([]*domain.ReviewComment, error) {
	rows, err := s.db.Query(`
		SELECT id, thread_id, run_id, file_path, line, body, status, created_at
		FROM review_comments WHERE thread_id = ? ORDER BY created_at DESC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ReviewComment
	for rows.Next() {
		c, err := scanReviewComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetReviewCommentsByIDs returns the comments in ids that belong to threadID
// — comments belonging to another thread are silently excluded (tenant check).
func (s *Store) GetReviewCommentsByIDs(threadID domain.ThreadID, ids []domain.CommentID) ([]*domain.ReviewComment, error) {
	var out []*domain.ReviewComment
	for _, id := range ids {
		row := s.db.QueryRow(`
			SELECT id, thread_id, run_id, file_path, line, body, status, created_at
			FROM review_comments WHERE id = ? AND thread_id = ?`, id, threadID)
		c, err := scanReviewComment(row)
		if err != nil {
			if derr, ok := domain.AsError(err); ok && derr.Kind == domain.KindNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// MarkReviewCommentsApplied flips the given comments (scoped to threadID)
// from open to applied.
func (s *Store) MarkReviewCommentsApplied(threadID domain.ThreadID, ids []domain.CommentID) error {
	for _, id := range ids {
		if _, err := s.db.Exec(`
			UPDATE review_comments SET status = ? WHERE id = ? AND thread_id = ?`,
			domain.CommentApplied, id, threadID); err != nil {
			return err
		}
	}
	return nil
}

func scanReviewComment(row rowScanner) (*domain.ReviewComment, error) {
	var c domain.ReviewComment
	var runID sql.NullString
	if err := row.Scan(&c.ID, &c.ThreadID, &runID, &c.FilePath, &c.Line, &c.Body, &c.Status, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("review comment not found")
		}
		return nil, err
	}
	c.RunID = domain.RunID(runID.String)
	return &c, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
