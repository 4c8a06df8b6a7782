package api

import (
	"prism-board/domain"
)

const maxBodySize = 64 * 1024 // 64 KiB

const headerIdempotencyKey = "Idempotency-Key"

// POST /api/columns/:column/tasks
type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// PATCH /api/tasks/:id
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
}

// POST /api/tasks/:id/move
type moveTaskRequest struct {
	From domain.ColumnID `json:"from"`
	To   domain.ColumnID `json:"to"`
}

// PUT /api/filter
type filterRequest struct {
	SearchQuery *string `json:"searchQuery"`
	Priority    *string `json:"priorityFilter"`
}

// POST /api/drag/start
type dragStartRequest struct {
	TaskID   string          `json:"taskId"`
	ColumnID domain.ColumnID `json:"columnId"`
}

// POST /api/drag/drop
type dropRequest struct {
	ColumnID domain.ColumnID `json:"columnId"`
}

type boardResponse struct {
	Revision uint64                            `json:"revision"`
	Columns  map[domain.ColumnID]domain.Column `json:"columns"`
}

type dropResponse struct {
	Moved bool `json:"moved"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Revision uint64 `json:"revision"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
