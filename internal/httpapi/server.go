// Package httpapi is Ralph's HTTP and WebSocket control surface: thread and
// run management, review comments, automations, and a live event stream.
package httpapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/ralphorch/ralph/internal/automation"
	"github.com/ralphorch/ralph/internal/broadcast"
	"github.com/ralphorch/ralph/internal/domain"
	"github.com/ralphorch/ralph/internal/journal"
	"github.com/ralphorch/ralph/internal/queue"
	"github.com/ralphorch/ralph/internal/store"
	"github.com/ralphorch/ralph/internal/worktree"
)

// apiError is Ralph's error envelope: a single human-readable message under
// the "error" key, not huma's default detail object.
type apiError struct {
	status  int
	Message string `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string) *apiError {
	return &apiError{status: status, Message: message}
}

// handleError maps a domain error kind to the HTTP status it implies.
// Non-domain errors are treated as internal errors.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	derr, ok := domain.AsError(err)
	if !ok {
		return newAPIError(http.StatusInternalServerError, err.Error())
	}
	switch derr.Kind {
	case domain.KindInput:
		return newAPIError(http.StatusBadRequest, derr.Message)
	case domain.KindNotFound:
		return newAPIError(http.StatusNotFound, derr.Message)
	case domain.KindIllegalTransition:
		return newAPIError(http.StatusConflict, derr.Message)
	default:
		return newAPIError(http.StatusInternalServerError, derr.Message)
	}
}

// Deps wires every component the API surface calls into.
type Deps struct {
	Store       *store.Store
	Journal     *journal.Journal
	Broadcast   *broadcast.Hub
	Queue       *queue.Queue
	Worktree    *worktree.Manager
	Scheduler   *automation.Scheduler
	AppendEvent func(ctx context.Context, threadID domain.ThreadID, runID domain.RunID, kind domain.EventKind, payload map[string]any)
}

// New builds the HTTP handler for Ralph's control surface.
func New(deps Deps) http.Handler {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Ralph", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)

	registerHealth(api)
	registerThreads(api, deps)
	registerRuns(api, deps)
	registerComments(api, deps)
	registerAutomations(api, deps)
	registerWebSocket(router, deps)

	return router
}
