// Package journal is the append-only event store: every event Ralph emits
// is appended here once and never mutated or deleted afterward.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ralphorch/ralph/internal/domain"
)

// DefaultEventLimit bounds a by-thread query when the caller does not
// specify one.
const DefaultEventLimit = 200

// Journal appends events to and queries events from the shared database.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps db as a Journal. now defaults to time.Now; tests may override it.
func New(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Append records a new event and returns it with its assigned id and
// creation timestamp filled in.
func (j *Journal) Append(ctx context.Context, threadID domain.ThreadID, runID domain.RunID, kind domain.EventKind, payload map[string]any) (domain.Event, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal event payload: %w", err)
	}

	createdAt := j.now().UTC()

	res, err := j.db.ExecContext(ctx, `
		INSERT INTO events (thread_id, run_id, kind, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		threadID, nullableRunID(runID), string(kind), string(data), createdAt,
	)
	if err != nil {
		return domain.Event{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Event{}, err
	}

	return domain.Event{
		ID:        domain.EventID(id),
		ThreadID:  threadID,
		RunID:     runID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: createdAt,
	}, nil
}

// ByThread returns a thread's events, newest first, capped at limit (or
// DefaultEventLimit if limit <= 0).
func (j *Journal) ByThread(ctx context.Context, threadID domain.ThreadID, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, thread_id, run_id, kind, payload_json, created_at
		FROM events WHERE thread_id = ? ORDER BY created_at DESC LIMIT ?`, threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ByID returns a single event by its id.
func (j *Journal) ByID(ctx context.Context, id domain.EventID) (domain.Event, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, thread_id, run_id, kind, payload_json, created_at
		FROM events WHERE id = ?`, id)

	var e domain.Event
	var runID sql.NullString
	var payloadJSON string
	var kind string
	if err := row.Scan(&e.ID, &e.ThreadID, &runID, &kind, &payloadJSON, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.Event{}, domain.NewNotFoundError("event %d not found", id)
		}
		return domain.Event{}, err
	}
	e.Kind = domain.EventKind(kind)
	e.RunID = domain.RunID(runID.String)
	if err := json.Unmarshal([]byte(payloadJSON), &e.Payload); err != nil {
		return domain.Event{}, err
	}
	return e, nil
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var runID sql.NullString
		var payloadJSON string
		var kind string
		if err := rows.Scan(&e.ID, &e.ThreadID, &runID, &kind, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.EventKind(kind)
		e.RunID = domain.RunID(runID.String)
		if err := json.Unmarshal([]byte(payloadJSON), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullableRunID(id domain.RunID) any {
	if id == "" {
		return nil
	}
	return id
}
