// Package loop drives the per-thread iteration loop: the core algorithm
// that repeatedly prompts an agent, validates its work, and checkpoints or
// reverts the worktree based on the validation score.
package loop

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ralphorch/ralph/internal/agent"
	"github.com/ralphorch/ralph/internal/domain"
	"github.com/ralphorch/ralph/internal/processrunner"
	"github.com/ralphorch/ralph/internal/prompt"
	"github.com/ralphorch/ralph/internal/validator"
)

// EventFunc is called at every notable point in one iteration of the loop.
// It must not block; callers that need to persist or broadcast events
// should buffer.
type EventFunc func(kind domain.EventKind, payload map[string]any)

// Inputs is everything one iteration loop run needs. It is built fresh by
// the run queue for every run, never reused across runs.
type Inputs struct {
	WorktreePath           string
	TaskText               string
	TaskID                 string // used in commit messages only in PRD mode
	ValidationCommands     []string
	MaxIterations          int
	ProgressFileName       string
	FailureContextMaxChars int
	GitCheckpoint          bool
	AgentName              string
	DryRun                 bool
	IterationDelaySeconds  int
	PRD                    *prompt.PRDContext
	Events                 EventFunc
}

func runAgent(ctx context.Context, spawn agent.SpawnConfig) processrunner.Result {
	return processrunner.Run(ctx, processrunner.Spec{
		Name:    spawn.Name,
		Args:    spawn.Args,
		Dir:     spawn.Dir,
		Timeout: processrunner.DefaultAgentTimeout,
	})
}

// Result is the outcome of running the loop to completion, exhaustion, or
// cancellation.
type Result struct {
	Success    bool
	Iterations int
	Cancelled  bool
}

const progressHeaderTemplate = "# Ralph Loop Progress\n\n## Task %s\n\n## Status Started — no iterations completed yet.\n\n## Iteration Log\n\n"

// Run executes the iteration loop: prompt the agent, validate, checkpoint,
// repeat until the agent reports the completion secret and validation
// passes in the same iteration, or the iteration budget runs out. It never
// returns a Go error: every failure mode is represented in Result, and
// subprocess failures are always data, never errors (see domain.Error doc).
func Run(ctx context.Context, in Inputs) Result {
	emit := in.Events
	if emit == nil {
		emit = func(domain.EventKind, map[string]any) {}
	}

	secret := generateCompletionSecret()

	var ad agent.Adapter
	if a, err := agent.Get(in.AgentName); err == nil {
		ad = a
		if !a.Installed(ctx) {
			log.Printf("[loop] agent %q not found on PATH, continuing anyway", in.AgentName)
		}
	} else {
		log.Printf("[loop] unknown agent %q: %v", in.AgentName, err)
	}

	progressPath := filepath.Join(in.WorktreePath, in.ProgressFileName)
	if !fileExists(progressPath) {
		initial := fmt.Sprintf(progressHeaderTemplate, in.TaskText)
		_ = os.WriteFile(progressPath, []byte(initial), 0o644)
	}

	baseline := validator.Run(ctx, in.WorktreePath, in.ValidationCommands)
	bestScore := baseline.Score()

	var wasReverted bool
	var lastFailureOutput string

	for i := 1; i <= in.MaxIterations; i++ {
		if cancelled(ctx) {
			return Result{Success: false, Iterations: i - 1, Cancelled: true}
		}

		emit(domain.EventLoopIterationStarted, map[string]any{"iteration": i})

		priorProgress, priorExists := readProgress(progressPath)

		promptText := prompt.BuildPrompt(prompt.Context{
			Task:                in.TaskText,
			Iteration:           i,
			MaxIterations:       in.MaxIterations,
			ProgressFileName:    in.ProgressFileName,
			ValidationCommands:  in.ValidationCommands,
			CompletionSecret:    secret,
			PriorProgress:       priorProgress,
			PriorProgressExists: priorExists,
			WasReverted:         wasReverted,
			PriorFailureOutput:  lastFailureOutput,
			PRD:                 in.PRD,
		})

		if ad == nil {
			return Result{Success: false, Iterations: i - 1}
		}

		spawn := ad.BuildCommand(promptText, in.WorktreePath, agent.Options{})

		if in.DryRun {
			return Result{Success: true, Iterations: 0}
		}

		emit(domain.EventLoopAgentSpawned, map[string]any{"iteration": i, "agent": in.AgentName})

		spawnResult := runAgent(ctx, spawn)

		emit(domain.EventLoopAgentExited, map[string]any{
			"iteration": i,
			"exitCode":  spawnResult.ExitCode,
			"elapsedMs": spawnResult.ElapsedMs,
		})

		secretDetected := containsSecret(spawnResult.Stdout+"\n"+spawnResult.Stderr, secret)

		validation := validator.Run(ctx, in.WorktreePath, in.ValidationCommands)
		emit(domain.EventLoopValidationDone, map[string]any{
			"passCount":  validation.PassCount,
			"totalCount": validation.TotalCount,
			"allPassed":  validation.AllPassed,
		})
		currentScore := validation.Score()

		if secretDetected && validation.AllPassed {
			if in.GitCheckpoint {
				_ = commitAll(in.WorktreePath, completeCommitMessage(in.TaskID, i, in.PRD != nil))
			}
			return Result{Success: true, Iterations: i}
		}

		if in.GitCheckpoint {
			if currentScore < bestScore {
				_ = revertToHead(in.WorktreePath)
				emit(domain.EventLoopRegressionReverted, map[string]any{"iteration": i, "score": currentScore, "bestScore": bestScore})
				wasReverted = true
				lastFailureOutput = validator.FailureContext(validation, in.FailureContextMaxChars)
			} else {
				wasReverted = false
				if currentScore > bestScore {
					bestScore = currentScore
				}
				_ = commitAll(in.WorktreePath, iterationCommitMessage(in.TaskID, i, currentScore, validation.TotalCount, in.PRD != nil))
				emit(domain.EventLoopCheckpointCommit, map[string]any{"iteration": i, "score": currentScore, "total": validation.TotalCount})
				lastFailureOutput = validator.FailureContext(validation, in.FailureContextMaxChars)
			}
		} else {
			wasReverted = false
			lastFailureOutput = validator.FailureContext(validation, in.FailureContextMaxChars)
		}

		if in.IterationDelaySeconds > 0 && i < in.MaxIterations {
			if !sleepInterruptible(ctx, time.Duration(in.IterationDelaySeconds)*time.Second) {
				return Result{Success: false, Iterations: i, Cancelled: true}
			}
		}
	}

	return Result{Success: false, Iterations: in.MaxIterations}
}

func completeCommitMessage(taskID string, iteration int, prdMode bool) string {
	if prdMode && taskID != "" {
		return fmt.Sprintf("ralph: [%s] complete (iteration %d)", taskID, iteration)
	}
	return fmt.Sprintf("ralph: task complete (iteration %d)", iteration)
}

func iterationCommitMessage(taskID string, iteration, passed, total int, prdMode bool) string {
	if prdMode && taskID != "" {
		return fmt.Sprintf("ralph: [%s] iteration %d (%d/%d passing)", taskID, iteration, passed, total)
	}
	return fmt.Sprintf("ralph: iteration %d (%d/%d passing)", iteration, passed, total)
}

func generateCompletionSecret() string {
	b := make([]byte, 4)
	rand.Read(b)
	return "RALPH_COMPLETE_" + hex.EncodeToString(b)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readProgress(path string) (content string, exists bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func sleepInterruptible(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func containsSecret(haystack, secret string) bool {
	return secret != "" && strings.Contains(haystack, secret)
}
