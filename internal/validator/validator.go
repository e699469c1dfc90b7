// Package validator runs a thread's ordered validation commands in its
// worktree and scores the result. The agent's own claim of completion is
// never trusted without a validator run confirming it.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ralphorch/ralph/internal/processrunner"
)

// CommandResult is the outcome of one validation command.
type CommandResult struct {
	Command   string
	Passed    bool
	Stdout    string
	Stderr    string
	ExitCode  int
	ElapsedMs int64
}

// Report is the outcome of running a full validation command list.
type Report struct {
	Commands   []CommandResult
	PassCount  int
	TotalCount int
	AllPassed  bool
}

// Score is passCount: a higher score is always better. Equal scores mean
// no regression occurred.
func (r Report) Score() int { return r.PassCount }

// Run executes cmds, in order, through the shell in dir. It always
// completes the full list — a failing command does not stop the rest.
func Run(ctx context.Context, dir string, cmds []string) Report {
	report := Report{TotalCount: len(cmds)}

	for _, cmd := range cmds {
		res := processrunner.Run(ctx, processrunner.Spec{
			Dir:   dir,
			Shell: cmd,
		})

		passed := res.ExitCode == 0
		if passed {
			report.PassCount++
		}

		report.Commands = append(report.Commands, CommandResult{
			Command:   cmd,
			Passed:    passed,
			Stdout:    res.Stdout,
			Stderr:    res.Stderr,
			ExitCode:  res.ExitCode,
			ElapsedMs: res.ElapsedMs,
		})
	}

	report.AllPassed = report.TotalCount > 0 && report.PassCount == report.TotalCount
	return report
}

// FailureContext renders the failing commands of r into the text handed
// back to the agent on the next iteration. Passing runs produce "". When
// the rendered text exceeds maxChars it is truncated to its tail, prefixed
// with a sentinel, since the most useful part of a failure is near the end.
func FailureContext(r Report, maxChars int) string {
	if r.AllPassed {
		return ""
	}

	var b strings.Builder

	for _, c := range r.Commands {
		if c.Passed {
			continue
		}

		status := fmt.Sprintf("FAILED (exit code %d)", c.ExitCode)
		fmt.Fprintf(&b, "### %s (%s)\n", c.Command, status)

		output := c.Stderr
		if output == "" {
			output = c.Stdout
		}
		b.WriteString("```\n")
		b.WriteString(output)
		b.WriteString("\n```\n")
	}

	text := b.String()
	if maxChars > 0 && len(text) > maxChars {
		const sentinel = "...(truncated)\n"
		tailLen := maxChars - len(sentinel)
		if tailLen < 0 {
			tailLen = 0
		}
		text = sentinel + text[len(text)-tailLen:]
		if len(text) > maxChars {
			text = text[len(text)-maxChars:]
		}
	}

	return text
}
