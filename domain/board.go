package domain

import (
	"fmt"
	"strings"
)

// ColumnID identifies one of the fixed workflow stages.
type ColumnID string

const (
	ColumnTodo       ColumnID = "todo"
	ColumnInProgress ColumnID = "inProgress"
	ColumnDone       ColumnID = "done"
)

// ColumnOrder is the canonical iteration order of the board.
var ColumnOrder = []ColumnID{ColumnTodo, ColumnInProgress, ColumnDone}

var columnTitles = map[ColumnID]string{
	ColumnTodo:       "To Do",
	ColumnInProgress: "In Progress",
	ColumnDone:       "Done",
}

// InitialColumn receives tasks that are reopened.
const InitialColumn = ColumnTodo

// TerminalColumn receives tasks that are completed.
const TerminalColumn = ColumnDone

// Known reports whether id belongs to the fixed column set.
func (id ColumnID) Known() bool {
	_, ok := columnTitles[id]
	return ok
}

// Title returns the display label of a known column.
func (id ColumnID) Title() string {
	return columnTitles[id]
}

// Column is an ordered list of tasks; order is display and insertion order.
type Column struct {
	ID    ColumnID `json:"id"`
	Title string   `json:"title"`
	Tasks []Task   `json:"tasks"`
}

// Board is the single canonical state object.
type Board struct {
	Columns map[ColumnID]Column `json:"columns"`
}

// EmptyBoard returns the fixed column set with no tasks.
func EmptyBoard() Board {
	b := Board{Columns: make(map[ColumnID]Column, len(ColumnOrder))}
	for _, id := range ColumnOrder {
		b.Columns[id] = Column{ID: id, Title: id.Title(), Tasks: []Task{}}
	}
	return b
}

// DefaultBoard is the built-in snapshot used on first start, on reset and
// whenever persisted data cannot be read.
func DefaultBoard() Board {
	b := EmptyBoard()
	b.setTasks(ColumnTodo, []Task{
		{ID: "1", Title: "Setup React Project", Description: "Initialize project with create-react-app", Priority: PriorityHigh},
		{ID: "2", Title: "Design Kanban UI", Description: "Create wireframes and mockups", Priority: PriorityMedium},
	})
	b.setTasks(ColumnInProgress, []Task{
		{ID: "3", Title: "Implement Drag & Drop", Description: "Add drag and drop functionality", Priority: PriorityHigh},
	})
	b.setTasks(ColumnDone, []Task{
		{ID: "4", Title: "Project Planning", Description: "Define project scope and requirements", Priority: PriorityLow},
	})
	return b
}

func (b Board) setTasks(id ColumnID, tasks []Task) {
	col := b.Columns[id]
	col.Tasks = tasks
	b.Columns[id] = col
}

// Clone returns a deep copy; readers never share slices with the store.
func (b Board) Clone() Board {
	out := Board{Columns: make(map[ColumnID]Column, len(b.Columns))}
	for id, col := range b.Columns {
		tasks := make([]Task, len(col.Tasks))
		copy(tasks, col.Tasks)
		col.Tasks = tasks
		out.Columns[id] = col
	}
	return out
}

// Locate finds the column owning taskID and the task's index within it.
func (b Board) Locate(taskID string) (ColumnID, int, bool) {
	for _, id := range ColumnOrder {
		for i, t := range b.Columns[id].Tasks {
			if t.ID == taskID {
				return id, i, true
			}
		}
	}
	return "", -1, false
}

// Has reports whether any column holds taskID.
func (b Board) Has(taskID string) bool {
	_, _, ok := b.Locate(taskID)
	return ok
}

// TaskCount returns the number of tasks across all columns.
func (b Board) TaskCount() int {
	n := 0
	for _, col := range b.Columns {
		n += len(col.Tasks)
	}
	return n
}

// Validate checks the structural invariants of a board: exactly the fixed
// column set, keys matching column ids, and unique well-formed tasks.
func (b Board) Validate() error {
	if len(b.Columns) != len(ColumnOrder) {
		return fmt.Errorf("expected %d columns, got %d", len(ColumnOrder), len(b.Columns))
	}
	seen := make(map[string]ColumnID)
	for key, col := range b.Columns {
		if !key.Known() {
			return fmt.Errorf("unknown column %q", key)
		}
		if col.ID != key {
			return fmt.Errorf("column %q stored under key %q", col.ID, key)
		}
		for _, t := range col.Tasks {
			if strings.TrimSpace(t.ID) == "" {
				return fmt.Errorf("column %q holds a task without id", key)
			}
			if owner, dup := seen[t.ID]; dup {
				return fmt.Errorf("task %q appears in %q and %q", t.ID, owner, key)
			}
			seen[t.ID] = key
			if err := ValidateTitle(t.Title); err != nil {
				return fmt.Errorf("task %q: %w", t.ID, err)
			}
			if !t.Priority.Valid() {
				return fmt.Errorf("task %q has unknown priority %q", t.ID, t.Priority)
			}
		}
	}
	return nil
}
