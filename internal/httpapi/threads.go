package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/ralphorch/ralph/internal/agent"
	"github.com/ralphorch/ralph/internal/domain"
)

// CreateThreadRequest is the body of POST /threads.
type CreateThreadRequest struct {
	Name     string   `json:"name"`
	Task     string   `json:"task"`
	RepoPath string   `json:"repoPath"`
	Agent    string   `json:"agent,omitempty"`
	Validate []string `json:"validate,omitempty"`
}

// ThreadResponse is a thread with its runs embedded.
type ThreadResponse struct {
	ID           domain.ThreadID `json:"id"`
	Name         string          `json:"name"`
	Task         string          `json:"task"`
	RepoPath     string          `json:"repoPath"`
	WorktreePath string          `json:"worktreePath,omitempty"`
	BranchName   string          `json:"branchName,omitempty"`
	Agent        string          `json:"agent"`
	ValidateCmds []string        `json:"validate"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Runs         []RunResponse   `json:"runs,omitempty"`
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerThreads(api huma.API, deps Deps) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-thread",
		Method:        http.MethodPost,
		Path:          "/threads",
		Summary:       "Create a thread",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateThreadRequest `json:"body"`
	}) (*struct {
		Body ThreadResponse `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, handleError(domain.NewInputError("name is required"))
		}
		if input.Body.Task == "" {
			return nil, handleError(domain.NewInputError("task is required"))
		}
		if input.Body.RepoPath == "" {
			return nil, handleError(domain.NewInputError("repoPath is required"))
		}

		agentName := input.Body.Agent
		if agentName == "" {
			agentName = "claude"
		}
		if _, err := agent.Get(agentName); err != nil {
			return nil, handleError(domain.NewInputError("agent must be one of %v, got %q", agent.Names(), agentName))
		}

		id := domain.ThreadID(uuid.NewString())
		now := time.Now().UTC()

		result, err := deps.Worktree.Create(input.Body.RepoPath, id)
		if err != nil {
			return nil, handleError(err)
		}

		thread := &domain.Thread{
			ID:           id,
			Name:         input.Body.Name,
			Task:         input.Body.Task,
			RepoPath:     result.RepoRoot,
			WorktreePath: result.WorktreePath,
			BranchName:   result.BranchName,
			Agent:        agentName,
			ValidateCmds: input.Body.Validate,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := deps.Store.CreateThread(thread); err != nil {
			return nil, handleError(err)
		}

		deps.AppendEvent(ctx, id, "", domain.EventThreadCreated, map[string]any{"name": thread.Name})
		deps.AppendEvent(ctx, id, "", domain.EventThreadWorktreeCreated, map[string]any{"worktreePath": thread.WorktreePath, "branchName": thread.BranchName})

		return &struct {
			Body ThreadResponse `json:"body"`
		}{Body: toThreadResponse(thread, nil)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-threads",
		Method:      http.MethodGet,
		Path:        "/threads",
		Summary:     "List threads with their runs",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ThreadResponse `json:"body"`
	}, error) {
		threads, err := deps.Store.ListThreads()
		if err != nil {
			return nil, handleError(err)
		}

		out := make([]ThreadResponse, 0, len(threads))
		for _, t := range threads {
			runs, err := deps.Store.ListRunsByThread(t.ID)
			if err != nil {
				return nil, handleError(err)
			}
			out = append(out, toThreadResponse(t, runs))
		}

		return &struct {
			Body []ThreadResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "thread-events",
		Method:      http.MethodGet,
		Path:        "/threads/{id}/events",
		Summary:     "List a thread's events",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Limit int    `query:"limit"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		threadID := domain.ThreadID(input.ID)
		if _, err := deps.Store.GetThread(threadID); err != nil {
			return nil, handleError(err)
		}

		events, err := deps.Journal.ByThread(ctx, threadID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}

		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: events}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "thread-diff",
		Method:      http.MethodGet,
		Path:        "/threads/{id}/diff",
		Summary:     "Raw VCS diff for a thread's worktree",
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body string `json:"body" contentType:"text/plain"`
	}, error) {
		thread, err := deps.Store.GetThread(domain.ThreadID(input.ID))
		if err != nil {
			return nil, handleError(err)
		}

		diff, err := rawDiff(thread.WorktreePath)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, err.Error())
		}

		return &struct {
			Body string `json:"body" contentType:"text/plain"`
		}{Body: diff}, nil
	})
}

func toThreadResponse(t *domain.Thread, runs []*domain.Run) ThreadResponse {
	resp := ThreadResponse{
		ID:           t.ID,
		Name:         t.Name,
		Task:         t.Task,
		RepoPath:     t.RepoPath,
		WorktreePath: t.WorktreePath,
		BranchName:   t.BranchName,
		Agent:        t.Agent,
		ValidateCmds: t.ValidateCmds,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, toRunResponse(r))
	}
	return resp
}
