package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/ralphorch/ralph/internal/domain"
	"github.com/ralphorch/ralph/internal/review"
)

// CreateRunRequest is the body of POST /threads/{id}/runs.
type CreateRunRequest struct {
	MaxIterations int      `json:"maxIterations,omitempty"`
	TaskOverride  string   `json:"taskOverride,omitempty"`
	SourceRunID   string   `json:"sourceRunId,omitempty"`
	CommentIDs    []string `json:"commentIds,omitempty"`
}

// ControlRequest is the body of POST /runs/{id}/control.
type ControlRequest struct {
	Action string `json:"action"` // pause | resume | stop | retry
}

// RunResponse mirrors domain.Run for wire transport.
type RunResponse struct {
	ID            domain.RunID     `json:"id"`
	ThreadID      domain.ThreadID  `json:"threadId"`
	Status        domain.RunStatus `json:"status"`
	MaxIterations int              `json:"maxIterations"`
	Iterations    int              `json:"iterations"`
	TaskOverride  string           `json:"taskOverride,omitempty"`
	SourceRunID   domain.RunID     `json:"sourceRunId,omitempty"`
	Error         string           `json:"error,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	StartedAt     *time.Time       `json:"startedAt,omitempty"`
	FinishedAt    *time.Time       `json:"finishedAt,omitempty"`
}

func toRunResponse(r *domain.Run) RunResponse {
	return RunResponse{
		ID:            r.ID,
		ThreadID:      r.ThreadID,
		Status:        r.Status,
		MaxIterations: r.MaxIterations,
		Iterations:    r.Iterations,
		TaskOverride:  r.TaskOverride,
		SourceRunID:   r.SourceRunID,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
}

// createRerunFromComments queues a new run whose task folds the given
// comments into the thread's base task, marking them applied.
func createRerunFromComments(ctx context.Context, deps Deps, thread *domain.Thread, comments []*domain.ReviewComment, ids []domain.CommentID) (*domain.Run, error) {
	run := &domain.Run{
		ID:            domain.RunID(uuid.NewString()),
		ThreadID:      thread.ID,
		Status:        domain.RunQueued,
		MaxIterations: 10,
		TaskOverride:  review.BuildRerunTask(thread.Task, comments),
		SourceRunID:   review.SourceRunID(comments),
		CreatedAt:     time.Now().UTC(),
	}
	if err := deps.Store.CreateRun(run); err != nil {
		return nil, err
	}
	if err := deps.Store.MarkReviewCommentsApplied(thread.ID, ids); err != nil {
		return nil, err
	}

	deps.AppendEvent(ctx, thread.ID, run.ID, domain.EventReviewRerunQueued, map[string]any{"sourceRunId": run.SourceRunID})
	deps.AppendEvent(ctx, thread.ID, run.ID, domain.EventRunQueued, nil)
	deps.Queue.Enqueue(run.ID)

	return run, nil
}

func registerRuns(api huma.API, deps Deps) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-run",
		Method:        http.MethodPost,
		Path:          "/threads/{id}/runs",
		Summary:       "Start a new run on a thread",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Body CreateRunRequest `json:"body"`
	}) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		threadID := domain.ThreadID(input.ID)
		thread, err := deps.Store.GetThread(threadID)
		if err != nil {
			return nil, handleError(err)
		}

		taskOverride := input.Body.TaskOverride
		sourceRunID := domain.RunID(input.Body.SourceRunID)

		if len(input.Body.CommentIDs) > 0 {
			ids := make([]domain.CommentID, len(input.Body.CommentIDs))
			for i, c := range input.Body.CommentIDs {
				ids[i] = domain.CommentID(c)
			}
			comments, err := deps.Store.GetReviewCommentsByIDs(threadID, ids)
			if err != nil {
				return nil, handleError(err)
			}
			taskOverride = review.BuildRerunTask(thread.Task, comments)
			sourceRunID = review.SourceRunID(comments)
			if err := deps.Store.MarkReviewCommentsApplied(threadID, ids); err != nil {
				return nil, handleError(err)
			}
		}

		maxIterations := input.Body.MaxIterations
		if maxIterations <= 0 {
			maxIterations = 10
		}

		run := &domain.Run{
			ID:            domain.RunID(uuid.NewString()),
			ThreadID:      threadID,
			Status:        domain.RunQueued,
			MaxIterations: maxIterations,
			TaskOverride:  taskOverride,
			SourceRunID:   sourceRunID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := deps.Store.CreateRun(run); err != nil {
			return nil, handleError(err)
		}

		if sourceRunID != "" {
			deps.AppendEvent(ctx, threadID, run.ID, domain.EventReviewRerunQueued, map[string]any{"sourceRunId": sourceRunID})
		}
		deps.AppendEvent(ctx, threadID, run.ID, domain.EventRunQueued, nil)

		deps.Queue.Enqueue(run.ID)

		return &struct {
			Body RunResponse `json:"body"`
		}{Body: toRunResponse(run)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{id}",
		Summary:     "Fetch a single run",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		run, err := deps.Store.GetRun(domain.RunID(input.ID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunResponse `json:"body"`
		}{Body: toRunResponse(run)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "control-run",
		Method:      http.MethodPost,
		Path:        "/runs/{id}/control",
		Summary:     "Pause, resume, stop, or retry a run",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body ControlRequest `json:"body"`
	}) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		runID := domain.RunID(input.ID)
		run, err := deps.Store.GetRun(runID)
		if err != nil {
			return nil, handleError(err)
		}

		switch input.Body.Action {
		case "pause":
			// deps.Queue's own EventFunc records run.paused against the thread.
			if !deps.Queue.Pause(runID) {
				return nil, handleError(domain.NewIllegalTransitionError("run %s cannot be paused from status %s", runID, run.Status))
			}
		case "resume":
			if !deps.Queue.Resume(runID) {
				return nil, handleError(domain.NewIllegalTransitionError("run %s cannot be resumed from status %s", runID, run.Status))
			}
		case "stop":
			if !deps.Queue.Stop(runID) {
				return nil, handleError(domain.NewIllegalTransitionError("run %s cannot be stopped from status %s", runID, run.Status))
			}
		case "retry":
			if !run.IsTerminal() {
				return nil, handleError(domain.NewIllegalTransitionError("run %s is not terminal, cannot retry", runID))
			}
			retry := &domain.Run{
				ID:            domain.RunID(uuid.NewString()),
				ThreadID:      run.ThreadID,
				Status:        domain.RunQueued,
				MaxIterations: run.MaxIterations,
				TaskOverride:  run.TaskOverride,
				SourceRunID:   run.ID,
				CreatedAt:     time.Now().UTC(),
			}
			if err := deps.Store.CreateRun(retry); err != nil {
				return nil, handleError(err)
			}
			deps.AppendEvent(ctx, retry.ThreadID, retry.ID, domain.EventRunQueued, map[string]any{"retryOf": run.ID})
			deps.Queue.Enqueue(retry.ID)
			return &struct {
				Body RunResponse `json:"body"`
			}{Body: toRunResponse(retry)}, nil
		default:
			return nil, handleError(domain.NewInputError("unknown action %q", input.Body.Action))
		}

		run, err = deps.Store.GetRun(runID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunResponse `json:"body"`
		}{Body: toRunResponse(run)}, nil
	})
}
