package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/ralphorch/ralph/internal/automation"
	"github.com/ralphorch/ralph/internal/domain"
)

// CreateAutomationRequest is the body of POST /automations.
type CreateAutomationRequest struct {
	Name          string `json:"name"`
	Cron          string `json:"cron"`
	ThreadID      string `json:"threadId"`
	MaxIterations int    `json:"maxIterations,omitempty"`
}

// ToggleAutomationRequest is the body of POST /automations/{id}/toggle.
type ToggleAutomationRequest struct {
	Enabled bool `json:"enabled"`
}

// AutomationResponse mirrors domain.Automation for wire transport.
type AutomationResponse struct {
	ID            domain.AutomationID `json:"id"`
	Name          string              `json:"name"`
	Cron          string              `json:"cron"`
	ThreadID      domain.ThreadID     `json:"threadId"`
	MaxIterations int                 `json:"maxIterations"`
	Enabled       bool                `json:"enabled"`
	LastTriggered *time.Time          `json:"lastTriggered,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func toAutomationResponse(a *domain.Automation) AutomationResponse {
	resp := AutomationResponse{
		ID:            a.ID,
		Name:          a.Name,
		Cron:          a.Cron,
		ThreadID:      a.ThreadID,
		MaxIterations: a.MaxIterations,
		Enabled:       a.Enabled,
		CreatedAt:     a.CreatedAt,
	}
	if !a.LastTriggered.IsZero() {
		lt := a.LastTriggered
		resp.LastTriggered = &lt
	}
	return resp
}

func registerAutomations(api huma.API, deps Deps) {
	huma.Register(api, huma.Operation{
		OperationID: "list-automations",
		Method:      http.MethodGet,
		Path:        "/automations",
		Summary:     "List recurring triggers",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []AutomationResponse `json:"body"`
	}, error) {
		automations, err := deps.Store.ListAutomations()
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]AutomationResponse, 0, len(automations))
		for _, a := range automations {
			out = append(out, toAutomationResponse(a))
		}
		return &struct {
			Body []AutomationResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-automation",
		Method:        http.MethodPost,
		Path:          "/automations",
		Summary:       "Create a recurring trigger",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateAutomationRequest `json:"body"`
	}) (*struct {
		Body AutomationResponse `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, handleError(domain.NewInputError("name is required"))
		}
		if input.Body.ThreadID == "" {
			return nil, handleError(domain.NewInputError("threadId is required"))
		}
		if err := automation.ValidateExpr(input.Body.Cron); err != nil {
			return nil, handleError(domain.NewInputError("invalid cron expression: %s", err))
		}
		threadID := domain.ThreadID(input.Body.ThreadID)
		if _, err := deps.Store.GetThread(threadID); err != nil {
			return nil, handleError(err)
		}

		maxIterations := input.Body.MaxIterations
		if maxIterations <= 0 {
			maxIterations = 10
		}

		a := &domain.Automation{
			ID:            domain.AutomationID(uuid.NewString()),
			Name:          input.Body.Name,
			Cron:          input.Body.Cron,
			ThreadID:      threadID,
			MaxIterations: maxIterations,
			Enabled:       true,
			CreatedAt:     time.Now().UTC(),
		}
		if err := deps.Store.CreateAutomation(a); err != nil {
			return nil, handleError(err)
		}

		deps.AppendEvent(ctx, threadID, "", domain.EventAutomationCreated, map[string]any{"automationId": a.ID, "cron": a.Cron})

		return &struct {
			Body AutomationResponse `json:"body"`
		}{Body: toAutomationResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-automation",
		Method:      http.MethodPost,
		Path:        "/automations/{id}/toggle",
		Summary:     "Enable or disable a recurring trigger",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body ToggleAutomationRequest `json:"body"`
	}) (*struct {
		Body AutomationResponse `json:"body"`
	}, error) {
		id := domain.AutomationID(input.ID)
		if err := deps.Store.SetAutomationEnabled(id, input.Body.Enabled); err != nil {
			return nil, handleError(err)
		}
		a, err := deps.Store.GetAutomation(id)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AutomationResponse `json:"body"`
		}{Body: toAutomationResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "run-automation-now",
		Method:        http.MethodPost,
		Path:          "/automations/{id}/run-now",
		Summary:       "Trigger a recurring trigger immediately, bypassing its schedule",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		id := domain.AutomationID(input.ID)
		a, err := deps.Store.GetAutomation(id)
		if err != nil {
			return nil, handleError(err)
		}

		runID, err := deps.Scheduler.TriggerNow(a)
		if err != nil {
			return nil, handleError(err)
		}

		run, err := deps.Store.GetRun(runID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunResponse `json:"body"`
		}{Body: toRunResponse(run)}, nil
	})
}
