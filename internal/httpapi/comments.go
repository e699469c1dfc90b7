package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/ralphorch/ralph/internal/domain"
)

// CreateCommentRequest is the body of POST /threads/{id}/comments.
type CreateCommentRequest struct {
	RunID    string `json:"runId,omitempty"`
	FilePath string `json:"filePath"`
	Line     int    `json:"lineNumber"`
	Body     string `json:"body"`
}

// RerunFromCommentsRequest is the body of POST /threads/{id}/rerun-from-comments.
type RerunFromCommentsRequest struct {
	CommentIDs []string `json:"commentIds"`
}

// CommentResponse mirrors domain.ReviewComment for wire transport.
type CommentResponse struct {
	ID        domain.CommentID     `json:"id"`
	ThreadID  domain.ThreadID      `json:"threadId"`
	RunID     domain.RunID         `json:"runId,omitempty"`
	FilePath  string               `json:"filePath"`
	Line      int                  `json:"lineNumber"`
	Body      string               `json:"body"`
	Status    domain.CommentStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
}

func toCommentResponse(c *domain.ReviewComment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		ThreadID:  c.ThreadID,
		RunID:     c.RunID,
		FilePath:  c.FilePath,
		Line:      c.Line,
		Body:      c.Body,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
}

func registerComments(api huma.API, deps Deps) {
	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/threads/{id}/comments",
		Summary:     "List a thread's review comments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []CommentResponse `json:"body"`
	}, error) {
		threadID := domain.ThreadID(input.ID)
		if _, err := deps.Store.GetThread(threadID); err != nil {
			return nil, handleError(err)
		}

		comments, err := deps.Store.ListReviewComments(threadID)
		if err != nil {
			return nil, handleError(err)
		}

		out := make([]CommentResponse, 0, len(comments))
		for _, c := range comments {
			out = append(out, toCommentResponse(c))
		}
		return &struct {
			Body []CommentResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-comment",
		Method:        http.MethodPost,
		Path:          "/threads/{id}/comments",
		Summary:       "Attach a review comment to a diff line",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body CreateCommentRequest `json:"body"`
	}) (*struct {
		Body CommentResponse `json:"body"`
	}, error) {
		threadID := domain.ThreadID(input.ID)
		if _, err := deps.Store.GetThread(threadID); err != nil {
			return nil, handleError(err)
		}
		if input.Body.FilePath == "" {
			return nil, handleError(domain.NewInputError("filePath is required"))
		}
		if input.Body.Body == "" {
			return nil, handleError(domain.NewInputError("body is required"))
		}

		comment := &domain.ReviewComment{
			ID:        domain.CommentID(uuid.NewString()),
			ThreadID:  threadID,
			RunID:     domain.RunID(input.Body.RunID),
			FilePath:  input.Body.FilePath,
			Line:      input.Body.Line,
			Body:      input.Body.Body,
			Status:    domain.CommentOpen,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.CreateReviewComment(comment); err != nil {
			return nil, handleError(err)
		}

		deps.AppendEvent(ctx, threadID, comment.RunID, domain.EventReviewCommentCreated, map[string]any{"filePath": comment.FilePath, "lineNumber": comment.Line})

		return &struct {
			Body CommentResponse `json:"body"`
		}{Body: toCommentResponse(comment)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "rerun-from-comments",
		Method:        http.MethodPost,
		Path:          "/threads/{id}/rerun-from-comments",
		Summary:       "Queue a new run that folds selected comments into the task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body RerunFromCommentsRequest `json:"body"`
	}) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		threadID := domain.ThreadID(input.ID)
		thread, err := deps.Store.GetThread(threadID)
		if err != nil {
			return nil, handleError(err)
		}
		if len(input.Body.CommentIDs) == 0 {
			return nil, handleError(domain.NewInputError("commentIds must not be empty"))
		}

		ids := make([]domain.CommentID, len(input.Body.CommentIDs))
		for i, c := range input.Body.CommentIDs {
			ids[i] = domain.CommentID(c)
		}
		comments, err := deps.Store.GetReviewCommentsByIDs(threadID, ids)
		if err != nil {
			return nil, handleError(err)
		}

		run, err := createRerunFromComments(ctx, deps, thread, comments, ids)
		if err != nil {
			return nil, handleError(err)
		}

		return &struct {
			Body RunResponse `json:"body"`
		}{Body: toRunResponse(run)}, nil
	})
}
