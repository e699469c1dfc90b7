// Package prompt builds the single prompt string handed to an agent CLI
// for one loop iteration. BuildPrompt is a pure function: equal Context
// values always produce byte-identical output.
package prompt

import (
	"fmt"
	"strings"
)

// PRDContext carries the optional project-level framing shown when a thread
// is driven by a product requirements document rather than a standalone
// task.
type PRDContext struct {
	Position             int // "i of N" task position within the PRD
	TotalTasks           int
	ProjectName          string
	ProjectDescription   string
	AcceptanceCriteria   []string
	CompletedTaskSummary string
}

// Context is everything BuildPrompt needs to produce one iteration's prompt.
type Context struct {
	Task                string
	Iteration           int
	MaxIterations       int
	ProgressFileName    string
	ValidationCommands  []string
	CompletionSecret    string
	PriorProgress       string
	PriorProgressExists bool
	WasReverted         bool
	PriorFailureOutput  string
	PRD                 *PRDContext
}

// BuildPrompt renders ctx into the single string passed to the agent CLI.
func BuildPrompt(ctx Context) string {
	var b strings.Builder

	b.WriteString(ctx.Task)
	b.WriteString("\n\n")

	if ctx.PRD != nil {
		b.WriteString(prdHeader(ctx.PRD))
		b.WriteString("\n")
	}

	b.WriteString(rulesBlock(ctx))
	b.WriteString("\n")

	if ctx.PriorProgressExists {
		b.WriteString("## Current progress\n\n")
		b.WriteString(ctx.PriorProgress)
		b.WriteString("\n\n")
	} else {
		b.WriteString("This is the first iteration. No progress has been recorded yet.\n\n")
	}

	if ctx.WasReverted {
		b.WriteString("## Warning\n\nYour previous changes caused a regression in validation results ")
		b.WriteString("and were reverted. Take a different approach this time.\n\n")
	}

	if ctx.PriorFailureOutput != "" {
		b.WriteString("## Last validation failure\n\n")
		b.WriteString(ctx.PriorFailureOutput)
		b.WriteString("\n\n")
	}

	b.WriteString(completionInstruction(ctx.CompletionSecret))

	return b.String()
}

func prdHeader(prd *PRDContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Project: %s\n\n", prd.ProjectName)
	if prd.ProjectDescription != "" {
		b.WriteString(prd.ProjectDescription)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "This is task %d of %d.\n\n", prd.Position, prd.TotalTasks)

	if len(prd.AcceptanceCriteria) > 0 {
		b.WriteString("Acceptance criteria:\n")
		for _, c := range prd.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}

	if prd.CompletedTaskSummary != "" {
		b.WriteString("Previously completed tasks:\n")
		b.WriteString(prd.CompletedTaskSummary)
		b.WriteString("\n\n")
	}

	return b.String()
}

func rulesBlock(ctx Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Rules\n\n")
	fmt.Fprintf(&b, "This is iteration %d of %d.\n", ctx.Iteration, ctx.MaxIterations)
	fmt.Fprintf(&b, "Record your progress in %s as you work.\n", ctx.ProgressFileName)
	b.WriteString("Your changes will be validated by running the following commands, in order:\n")
	for i, cmd := range ctx.ValidationCommands {
		fmt.Fprintf(&b, "%d. %s\n", i+1, cmd)
	}
	return b.String()
}

func completionInstruction(secret string) string {
	return fmt.Sprintf(
		"When the task is fully complete and all validation commands would pass, "+
			"output the following line as the very last line of your response, exactly as written:\n\n%s\n",
		secret,
	)
}
