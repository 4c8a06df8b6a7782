package api

import (
	"context"

	"prism-board/board"
	"prism-board/domain"
	"prism-board/drag"
	"prism-board/view"
)

// Engine is the board engine the handlers drive; *session.Session
// implements it.
type Engine interface {
	Board() domain.Board
	Revision() uint64
	View() view.Board
	Filter() domain.Filter
	SetSearchQuery(q string)
	SetPriorityFilter(p string) error

	CreateTask(ctx context.Context, columnID domain.ColumnID, title, description string, priority domain.Priority) (domain.Task, error)
	UpdateTask(ctx context.Context, taskID string, fields board.TaskFields) (domain.Task, error)
	DeleteTask(ctx context.Context, columnID domain.ColumnID, taskID string) bool
	MoveTask(ctx context.Context, taskID string, source, target domain.ColumnID) bool
	ToggleComplete(ctx context.Context, columnID domain.ColumnID, taskID string) (domain.Task, error)
	ClearAllTasks(ctx context.Context)
	ResetBoard(ctx context.Context)

	OnDragStart(taskID string, columnID domain.ColumnID)
	OnDrop(ctx context.Context, target domain.ColumnID) bool
	OnDragCancel()
	ActiveDrag() (drag.Session, bool)
}

// Deduper prevents processing of duplicate commands.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, scope, key string) (bool, error)
	// Remove deletes a previously added key, used when processing fails.
	Remove(ctx context.Context, scope, key string) error
}

// Notifier hands out change ticks to stream subscribers.
type Notifier interface {
	Subscribe() chan struct{}
	Unsubscribe(ch chan struct{})
}
