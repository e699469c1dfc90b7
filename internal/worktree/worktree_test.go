package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ralphorch/ralph/internal/domain"
)

func setupGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cmds := [][]string{
		{"git", "init"},
		{"git", "config", "user.email", "test@test.com"},
		{"git", "config", "user.name", "Test"},
	}
	for _, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%v failed: %s", args, out)
		}
	}

	readme := filepath.Join(dir, "README.md")
	os.WriteFile(readme, []byte("# Test"), 0o644)

	cmd := exec.Command("git", "add", ".")
	cmd.Dir = dir
	cmd.Run()

	cmd = exec.Command("git", "commit", "-m", "Initial commit")
	cmd.Dir = dir
	cmd.Run()

	return dir
}

func TestManager_Create(t *testing.T) {
	repoDir := setupGitRepo(t)
	mgr := NewManager()

	res, err := mgr.Create(repoDir, domain.ThreadID("Thread-ABC123"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(res.WorktreePath); os.IsNotExist(err) {
		t.Error("worktree directory not created")
	}
	if !strings.HasPrefix(res.BranchName, "ralph/thread-") {
		t.Errorf("BranchName = %q, want ralph/thread-* prefix", res.BranchName)
	}

	cmd := exec.Command("git", "branch", "--list", res.BranchName)
	cmd.Dir = repoDir
	out, _ := cmd.Output()
	if len(out) == 0 {
		t.Errorf("branch %s not created", res.BranchName)
	}
}

func TestManager_Create_NotARepository(t *testing.T) {
	mgr := NewManager()
	_, err := mgr.Create(t.TempDir(), domain.ThreadID("foo"))
	if err == nil {
		t.Fatal("expected an error for a non-repository path")
	}
	derr, ok := domain.AsError(err)
	if !ok || derr.Kind != domain.KindInput {
		t.Errorf("expected a KindInput domain error, got %v", err)
	}
}

func TestManager_Create_CollisionRetriesWithSuffix(t *testing.T) {
	repoDir := setupGitRepo(t)
	mgr := NewManager()

	threadID := domain.ThreadID("same-thread-id")

	first, err := mgr.Create(repoDir, threadID)
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	second, err := mgr.Create(repoDir, threadID)
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}

	if second.WorktreePath == first.WorktreePath {
		t.Error("second Create should have used a timestamp-suffixed path")
	}
	if second.BranchName == first.BranchName {
		t.Error("second Create should have used a timestamp-suffixed branch name")
	}
}

func TestManager_Remove(t *testing.T) {
	repoDir := setupGitRepo(t)
	mgr := NewManager()

	res, err := mgr.Create(repoDir, domain.ThreadID("removable"))
	if err != nil {
		t.Fatal(err)
	}

	if err := mgr.Remove(res.RepoRoot, res.WorktreePath, res.BranchName); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(res.WorktreePath); !os.IsNotExist(err) {
		t.Error("worktree directory should have been removed")
	}
}

func TestShortThreadID(t *testing.T) {
	cases := map[string]string{
		"Thread-ABC123":   "threadabc1",
		"":                "thread",
		"!!!":             "thread",
		"short":           "short",
	}
	for input, want := range cases {
		if got := shortThreadID(input); got != want {
			t.Errorf("shortThreadID(%q) = %q, want %q", input, got, want)
		}
	}
}
