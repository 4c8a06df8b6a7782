package domain

import "strings"

// Priority ranks a task on the board.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority is used when a task is created without an explicit priority.
const DefaultPriority = PriorityMedium

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority normalises user input. Blank input maps to DefaultPriority.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPriority, nil
	}
	p := Priority(s)
	if !p.Valid() {
		return "", &ValidationError{Field: "priority", Reason: "unknown priority " + s}
	}
	return p, nil
}

// Task represents a single card on the board.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Completed   bool     `json:"completed"`
}

// CleanText replaces invalid UTF-8 sequences with U+FFFD, the same
// substitution the JSON codec makes on save.
func CleanText(s string) string { return strings.ToValidUTF8(s, "\uFFFD") }

// ValidateTitle rejects titles that are empty after trimming.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	return nil
}

// Matches reports whether the task passes the given filter. The query is
// trimmed and then compared case-insensitively against title and
// description, so a whitespace-only query matches every task like an empty
// one.
func (t Task) Matches(f Filter) bool {
	if f.Priority != PriorityAll && f.Priority != "" && Priority(f.Priority) != t.Priority {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.SearchQuery))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.Description), q)
}
