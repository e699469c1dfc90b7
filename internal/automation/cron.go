package automation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// matchCron reports whether t matches a 5-field cron expression
// ("minute hour day-of-month month day-of-week"). Unlike robfig/cron, each
// field accepts ONLY an integer literal or `*` — ranges, steps, and lists
// are deliberately rejected rather than silently accepted.
func matchCron(expr string, t time.Time) (bool, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false, fmt.Errorf("cron expression must have exactly 5 fields, got %d", len(fields))
	}

	values := []int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}

	for i, field := range fields {
		ok, err := matchField(field, values[i])
		if err != nil {
			return false, fmt.Errorf("field %d (%q): %w", i, field, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ValidateExpr reports whether expr is a syntactically valid cron
// expression in this dialect, without reference to any particular time.
func ValidateExpr(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fmt.Errorf("cron expression must have exactly 5 fields, got %d", len(fields))
	}
	for i, field := range fields {
		if field == "*" {
			continue
		}
		if _, err := strconv.Atoi(field); err != nil {
			return fmt.Errorf("field %d (%q): only integer literals and '*' are supported", i, field)
		}
	}
	return nil
}

func matchField(field string, value int) (bool, error) {
	if field == "*" {
		return true, nil
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return false, fmt.Errorf("only integer literals and '*' are supported: %w", err)
	}
	return n == value, nil
}
