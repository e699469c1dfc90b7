package httpapi

import (
	"context"

	"github.com/ralphorch/ralph/internal/processrunner"
)

// rawDiff returns the uncommitted diff of a thread's worktree, uncolored.
func rawDiff(worktreePath string) (string, error) {
	res := processrunner.Run(context.Background(), processrunner.Spec{
		Name: "git",
		Args: []string{"diff", "--no-color", "HEAD"},
		Dir:  worktreePath,
	})
	if res.ExitCode != 0 {
		return "", &diffError{stderr: res.Stderr}
	}
	return res.Stdout, nil
}

type diffError struct{ stderr string }

func (e *diffError) Error() string { return e.stderr }
