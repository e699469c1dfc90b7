package loop

import (
	"fmt"
	"os/exec"
	"strings"
)

// commitAll stages every change in dir and commits with message. A worktree
// with nothing to commit is not an error.
func commitAll(dir, message string) error {
	cmd := exec.Command("git", "add", "-A")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git add: %s: %w", out, err)
	}

	cmd = exec.Command("git", "commit", "-m", message, "--no-verify")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		if strings.Contains(string(out), "nothing to commit") {
			return nil
		}
		return fmt.Errorf("git commit: %s: %w", out, err)
	}
	return nil
}

// revertToHead discards all tracked and untracked changes in dir, restoring
// it to the last commit.
func revertToHead(dir string) error {
	cmd := exec.Command("git", "checkout", "--", ".")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout: %s: %w", out, err)
	}

	cmd = exec.Command("git", "clean", "-fd")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clean: %s: %w", out, err)
	}
	return nil
}
