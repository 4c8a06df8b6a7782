package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"prism-board/board"
	"prism-board/domain"
)

// Register wires up all API routes on the provided Echo instance. deduper
// and notifier may be nil; without them idempotency keys are ignored and the
// stream endpoint is not served.
func Register(e *echo.Echo, eng Engine, deduper Deduper, notifier Notifier, logger *log.Logger) {
	h := &handlers{eng: eng, deduper: deduper, logger: logger}

	e.GET("/healthz", h.healthz)
	e.GET("/api/board", h.getBoard)
	e.GET("/api/view", h.getView)
	e.PUT("/api/filter", h.putFilter)

	e.POST("/api/columns/:column/tasks", h.createTask)
	e.PATCH("/api/tasks/:id", h.updateTask)
	e.DELETE("/api/columns/:column/tasks/:id", h.deleteTask)
	e.POST("/api/tasks/:id/move", h.moveTask)
	e.POST("/api/columns/:column/tasks/:id/toggle", h.toggleTask)
	e.POST("/api/board/clear", h.clearBoard)
	e.POST("/api/board/reset", h.resetBoard)

	e.GET("/api/drag", h.getDrag)
	e.POST("/api/drag/start", h.dragStart)
	e.POST("/api/drag/drop", h.dragDrop)
	e.POST("/api/drag/cancel", h.dragCancel)

	if notifier != nil {
		e.GET("/api/stream", streamBoard(eng, notifier))
	}
}

type handlers struct {
	eng     Engine
	deduper Deduper
	logger  *log.Logger
}

func (h *handlers) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Revision: h.eng.Revision()})
}

func (h *handlers) getBoard(c echo.Context) error {
	return c.JSON(http.StatusOK, h.boardResponse())
}

func (h *handlers) getView(c echo.Context) error {
	return c.JSON(http.StatusOK, h.eng.View())
}

func (h *handlers) putFilter(c echo.Context) error {
	var req filterRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "decode", "invalid body")
	}
	if req.Priority != nil {
		if err := h.eng.SetPriorityFilter(*req.Priority); err != nil {
			return writeError(c, err)
		}
	}
	if req.SearchQuery != nil {
		h.eng.SetSearchQuery(*req.SearchQuery)
	}
	return c.JSON(http.StatusOK, h.eng.View())
}

func (h *handlers) createTask(c echo.Context) error {
	ctx := c.Request().Context()
	columnID, err := columnParam(c)
	if err != nil {
		return writeError(c, err)
	}
	var req createTaskRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "decode", "invalid body")
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return writeError(c, err)
	}

	key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
	recorded := false
	if key != "" && h.deduper != nil {
		added, derr := h.deduper.Add(ctx, "create", key)
		switch {
		case derr != nil:
			h.logger.WithError(derr).WithField("key", key).Warn("idempotency check failed; processing anyway")
		case !added:
			c.Set(errorStageKey, "duplicate")
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate idempotency key"})
		default:
			recorded = true
		}
	}

	task, err := h.eng.CreateTask(ctx, columnID, req.Title, req.Description, priority)
	if err != nil {
		if recorded {
			if rerr := h.deduper.Remove(ctx, "create", key); rerr != nil {
				h.logger.WithError(rerr).WithField("key", key).Error("dedupe rollback failed")
			}
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *handlers) updateTask(c echo.Context) error {
	var req updateTaskRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "decode", "invalid body")
	}
	fields := board.TaskFields{Title: req.Title, Description: req.Description}
	if req.Priority != nil {
		p, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			return writeError(c, err)
		}
		fields.Priority = &p
	}
	task, err := h.eng.UpdateTask(c.Request().Context(), c.Param("id"), fields)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

// deleteTask answers 204 even when the task was already gone.
func (h *handlers) deleteTask(c echo.Context) error {
	columnID, err := columnParam(c)
	if err != nil {
		return writeError(c, err)
	}
	h.eng.DeleteTask(c.Request().Context(), columnID, c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) moveTask(c echo.Context) error {
	var req moveTaskRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "decode", "invalid body")
	}
	for _, id := range []domain.ColumnID{req.From, req.To} {
		if !id.Known() {
			return writeError(c, domain.UnknownColumn(id))
		}
	}
	h.eng.MoveTask(c.Request().Context(), c.Param("id"), req.From, req.To)
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) toggleTask(c echo.Context) error {
	columnID := domain.ColumnID(c.Param("column"))
	task, err := h.eng.ToggleComplete(c.Request().Context(), columnID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) clearBoard(c echo.Context) error {
	h.eng.ClearAllTasks(c.Request().Context())
	return c.JSON(http.StatusOK, h.boardResponse())
}

func (h *handlers) resetBoard(c echo.Context) error {
	h.eng.ResetBoard(c.Request().Context())
	return c.JSON(http.StatusOK, h.boardResponse())
}

// getDrag returns the in-flight drag, or 204 when idle.
func (h *handlers) getDrag(c echo.Context) error {
	s, ok := h.eng.ActiveDrag()
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *handlers) dragStart(c echo.Context) error {
	var req dragStartRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "decode", "invalid body")
	}
	if strings.TrimSpace(req.TaskID) == "" {
		return writeError(c, &domain.ValidationError{Field: "taskId", Reason: "must not be blank"})
	}
	if !req.ColumnID.Known() {
		return writeError(c, domain.UnknownColumn(req.ColumnID))
	}
	h.eng.OnDragStart(req.TaskID, req.ColumnID)
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) dragDrop(c echo.Context) error {
	var req dropRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "decode", "invalid body")
	}
	if !req.ColumnID.Known() {
		h.eng.OnDragCancel()
		return writeError(c, domain.UnknownColumn(req.ColumnID))
	}
	moved := h.eng.OnDrop(c.Request().Context(), req.ColumnID)
	return c.JSON(http.StatusOK, dropResponse{Moved: moved})
}

func (h *handlers) dragCancel(c echo.Context) error {
	h.eng.OnDragCancel()
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) boardResponse() boardResponse {
	return boardResponse{Revision: h.eng.Revision(), Columns: h.eng.Board().Columns}
}

func columnParam(c echo.Context) (domain.ColumnID, error) {
	id := domain.ColumnID(c.Param("column"))
	if !id.Known() {
		return "", domain.UnknownColumn(id)
	}
	return id, nil
}
