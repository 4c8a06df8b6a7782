// Package drag tracks the single in-flight drag gesture between drag-start
// and drop or cancel.
package drag

import (
	"context"
	"sync"

	"prism-board/domain"
)

// Session records what is being dragged and where it came from.
type Session struct {
	TaskID         string          `json:"taskId"`
	SourceColumnID domain.ColumnID `json:"sourceColumnId"`
}

// Mover applies the transfer when a drag ends over a different column.
type Mover interface {
	MoveTask(ctx context.Context, taskID string, source, target domain.ColumnID) bool
}

// Tracker is a two-state machine: idle, or dragging one task.
type Tracker struct {
	mu      sync.Mutex
	current *Session
}

func NewTracker() *Tracker { return &Tracker{} }

// Start begins a drag. A second start before a drop replaces the first;
// only one physical gesture exists at a time, so the latest one wins.
func (t *Tracker) Start(taskID string, columnID domain.ColumnID) {
	t.mu.Lock()
	t.current = &Session{TaskID: taskID, SourceColumnID: columnID}
	t.mu.Unlock()
}

// Drop ends the active drag over target. Without an active drag nothing
// happens and m is not called. The session is cleared on every drop, even a
// same-column one. It reports whether the board changed.
func (t *Tracker) Drop(ctx context.Context, target domain.ColumnID, m Mover) bool {
	t.mu.Lock()
	s := t.current
	t.current = nil
	t.mu.Unlock()

	if s == nil || s.SourceColumnID == target {
		return false
	}
	return m.MoveTask(ctx, s.TaskID, s.SourceColumnID, target)
}

// Cancel discards the active drag without touching the board.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	t.current = nil
	t.mu.Unlock()
}

// Active returns the in-flight drag, if any.
func (t *Tracker) Active() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Session{}, false
	}
	return *t.current, true
}
