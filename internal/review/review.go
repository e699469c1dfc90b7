// Package review builds the task-override text for a feedback rerun: a new
// run that folds a set of a thread's review comments back into the prompt.
package review

import (
	"fmt"
	"strings"

	"github.com/ralphorch/ralph/internal/domain"
)

const feedbackHeader = "Address the following review feedback before declaring completion:"

// BuildRerunTask constructs the task-override text for a rerun that
// addresses comments, in the order given. baseTask is the thread's base
// task text.
func BuildRerunTask(baseTask string, comments []*domain.ReviewComment) string {
	var b strings.Builder
	b.WriteString(baseTask)
	b.WriteString("\n\n")
	b.WriteString(feedbackHeader)
	b.WriteString("\n")
	for i, c := range comments {
		fmt.Fprintf(&b, "%d. %s:%d - %s\n", i+1, c.FilePath, c.Line, c.Body)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SourceRunID returns the run id a feedback rerun should cite as its
// source: the run id of the first selected comment, which may be empty if
// that comment wasn't cited against a run.
func SourceRunID(comments []*domain.ReviewComment) domain.RunID {
	if len(comments) == 0 {
		return ""
	}
	return comments[0].RunID
}
