package prompt

import (
	"strings"
	"testing"
)

func baseContext() Context {
	return Context{
		Task:               "Implement the widget endpoint",
		Iteration:          2,
		MaxIterations:      5,
		ProgressFileName:   "PROGRESS.md",
		ValidationCommands: []string{"go test ./...", "golangci-lint run"},
		CompletionSecret:   "RALPH_COMPLETE_deadbeef",
	}
}

func TestBuildPrompt_ContainsTaskAndRules(t *testing.T) {
	p := BuildPrompt(baseContext())

	if !strings.Contains(p, "Implement the widget endpoint") {
		t.Error("prompt should contain the task text")
	}
	if !strings.Contains(p, "iteration 2 of 5") {
		t.Error("prompt should state the current iteration")
	}
	if !strings.Contains(p, "PROGRESS.md") {
		t.Error("prompt should name the progress file")
	}
	if !strings.Contains(p, "go test ./...") || !strings.Contains(p, "golangci-lint run") {
		t.Error("prompt should enumerate both validation commands")
	}
}

func TestBuildPrompt_CompletionSecretIsLastLine(t *testing.T) {
	p := BuildPrompt(baseContext())
	trimmed := strings.TrimRight(p, "\n")
	lines := strings.Split(trimmed, "\n")

	if lines[len(lines)-1] != "RALPH_COMPLETE_deadbeef" {
		t.Errorf("last line = %q, want the completion secret", lines[len(lines)-1])
	}
}

func TestBuildPrompt_FirstIterationNotice(t *testing.T) {
	ctx := baseContext()
	ctx.PriorProgressExists = false

	p := BuildPrompt(ctx)
	if !strings.Contains(p, "first iteration") {
		t.Error("prompt should note this is the first iteration")
	}
}

func TestBuildPrompt_PriorProgressIncludedWhenPresent(t *testing.T) {
	ctx := baseContext()
	ctx.PriorProgressExists = true
	ctx.PriorProgress = "Implemented the handler, still need tests."

	p := BuildPrompt(ctx)
	if !strings.Contains(p, "Implemented the handler, still need tests.") {
		t.Error("prompt should include the prior progress content")
	}
	if strings.Contains(p, "first iteration") {
		t.Error("prompt should not claim first iteration when prior progress exists")
	}
}

func TestBuildPrompt_RevertWarningIsConditional(t *testing.T) {
	without := BuildPrompt(baseContext())
	if strings.Contains(without, "regression") {
		t.Error("prompt should not mention regression when WasReverted is false")
	}

	ctx := baseContext()
	ctx.WasReverted = true
	with := BuildPrompt(ctx)
	if !strings.Contains(with, "regression") {
		t.Error("prompt should mention regression when WasReverted is true")
	}
}

func TestBuildPrompt_PriorFailureOutputIsConditional(t *testing.T) {
	without := BuildPrompt(baseContext())
	if strings.Contains(without, "Last validation failure") {
		t.Error("prompt should omit the failure section when there is none")
	}

	ctx := baseContext()
	ctx.PriorFailureOutput = "### go test ./... (FAILED (exit code 1))\n```\nsome stderr\n```"
	with := BuildPrompt(ctx)
	if !strings.Contains(with, "Last validation failure") {
		t.Error("prompt should include the failure section when present")
	}
	if !strings.Contains(with, "some stderr") {
		t.Error("prompt should include the failure output content")
	}
}

func TestBuildPrompt_PRDHeaderIncludesPositionAndCriteria(t *testing.T) {
	ctx := baseContext()
	ctx.PRD = &PRDContext{
		Position:           3,
		TotalTasks:         10,
		ProjectName:        "Acme Widget Factory",
		AcceptanceCriteria: []string{"widgets ship", "tests pass"},
	}

	p := BuildPrompt(ctx)
	if !strings.Contains(p, "Acme Widget Factory") {
		t.Error("prompt should contain the project name")
	}
	if !strings.Contains(p, "task 3 of 10") {
		t.Error("prompt should state PRD task position")
	}
	if !strings.Contains(p, "widgets ship") || !strings.Contains(p, "tests pass") {
		t.Error("prompt should enumerate acceptance criteria")
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	ctx := baseContext()
	ctx.PriorProgressExists = true
	ctx.PriorProgress = "some notes"

	if BuildPrompt(ctx) != BuildPrompt(ctx) {
		t.Error("equal contexts must produce byte-identical prompts")
	}
}
