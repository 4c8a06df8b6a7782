package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prism-board/domain"
)

const tracerName = "prism-board/board"

// maxIDAttempts bounds re-draws when a generator collides with an id already on the board.
const maxIDAttempts = 16

// Persister loads and saves the canonical board snapshot.
type Persister interface {
	// Load never fails; it falls back to the default board.
	Load(ctx context.Context) domain.Board
	Save(ctx context.Context, b domain.Board) error
}

// Change is delivered to observers after every applied mutation.
type Change struct {
	Op       string
	Revision uint64
	Board    domain.Board
}

// Observer receives board changes. Observers must not call mutating methods
// of the store they are subscribed to.
type Observer func(Change)

// TaskFields carries a partial update; nil fields are left untouched.
type TaskFields struct {
	Title       *string
	Description *string
	Priority    *domain.Priority
}

// Option configures a Store.
type Option func(*Store)

func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// WithPersistErrorHandler registers a callback for failed saves. The
// in-memory mutation is kept regardless.
func WithPersistErrorHandler(fn func(error)) Option {
	return func(s *Store) { s.onPersistErr = fn }
}

// Store owns the canonical board. It is the only writer; everyone else
// receives clones.
type Store struct {
	mu        sync.Mutex
	board     domain.Board
	revision  uint64
	persister Persister

	// notified is the last revision handed to observers. Mutations wait on
	// notifyCond for their turn after releasing mu, so readers never wait on
	// a slow observer.
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	notified   uint64

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int

	ids          IDGenerator
	logger       *log.Logger
	tracer       trace.Tracer
	onPersistErr func(error)
}

// NewStore loads the initial board through persister and returns a store
// serving it.
func NewStore(ctx context.Context, persister Persister, logger *log.Logger, opts ...Option) *Store {
	if persister == nil {
		panic("board.NewStore: persister is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Store{
		persister: persister,
		observers: make(map[int]Observer),
		ids:       NewMonotonicIDs(),
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	for _, opt := range opts {
		opt(s)
	}
	s.board = persister.Load(ctx).Clone()
	return s
}

// Board returns a copy of the canonical state.
func (s *Store) Board() domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

// Revision is the number of mutations applied since the store was created.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Subscribe registers an observer and returns a function removing it.
func (s *Store) Subscribe(o Observer) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// CreateTask appends a new, incomplete task to the end of columnID.
func (s *Store) CreateTask(ctx context.Context, columnID domain.ColumnID, title, description string, priority domain.Priority) (domain.Task, error) {
	title, description = domain.CleanText(title), domain.CleanText(description)
	var created domain.Task
	err := s.apply(ctx, "CreateTask", []attribute.KeyValue{attribute.String("board.column_id", string(columnID))},
		func(b domain.Board) (bool, error) {
			if !columnID.Known() {
				return false, domain.UnknownColumn(columnID)
			}
			if err := domain.ValidateTitle(title); err != nil {
				return false, err
			}
			p, err := domain.ParsePriority(string(priority))
			if err != nil {
				return false, err
			}
			id, err := s.newID(b)
			if err != nil {
				return false, err
			}
			created = domain.Task{ID: id, Title: title, Description: description, Priority: p}
			col := b.Columns[columnID]
			col.Tasks = append(col.Tasks, created)
			b.Columns[columnID] = col
			return true, nil
		})
	if err != nil {
		return domain.Task{}, err
	}
	return created, nil
}

// UpdateTask overwrites title, description and priority where provided. The
// task keeps its id, completion flag and column.
func (s *Store) UpdateTask(ctx context.Context, taskID string, fields TaskFields) (domain.Task, error) {
	var updated domain.Task
	err := s.apply(ctx, "UpdateTask", []attribute.KeyValue{attribute.String("board.task_id", taskID)},
		func(b domain.Board) (bool, error) {
			colID, idx, ok := b.Locate(taskID)
			if !ok {
				return false, domain.TaskNotFound(taskID)
			}
			current := b.Columns[colID].Tasks[idx]
			next := current
			if fields.Title != nil {
				next.Title = domain.CleanText(*fields.Title)
			}
			if fields.Description != nil {
				next.Description = domain.CleanText(*fields.Description)
			}
			if fields.Priority != nil {
				p, err := domain.ParsePriority(string(*fields.Priority))
				if err != nil {
					return false, err
				}
				next.Priority = p
			}
			if err := domain.ValidateTitle(next.Title); err != nil {
				return false, err
			}
			updated = next
			if next == current {
				return false, nil
			}
			b.Columns[colID].Tasks[idx] = next
			return true, nil
		})
	if err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

// DeleteTask removes taskID from columnID. Deleting an absent task is a
// no-op; the result reports whether anything was removed.
func (s *Store) DeleteTask(ctx context.Context, columnID domain.ColumnID, taskID string) bool {
	var removed bool
	_ = s.apply(ctx, "DeleteTask", taskAttrs(columnID, taskID), func(b domain.Board) (bool, error) {
		removed = removeTask(b, columnID, taskID) != nil
		if !removed {
			s.logStale("DeleteTask", columnID, taskID)
		}
		return removed, nil
	})
	return removed
}

// MoveTask transfers taskID from source to the end of target. A same-column
// move, an unknown column or a task missing from source leaves the board
// untouched.
func (s *Store) MoveTask(ctx context.Context, taskID string, source, target domain.ColumnID) bool {
	var moved bool
	attrs := append(taskAttrs(source, taskID), attribute.String("board.target_column_id", string(target)))
	_ = s.apply(ctx, "MoveTask", attrs, func(b domain.Board) (bool, error) {
		if source == target || !target.Known() {
			return false, nil
		}
		t := removeTask(b, source, taskID)
		if t == nil {
			s.logStale("MoveTask", source, taskID)
			return false, nil
		}
		appendTask(b, target, *t)
		moved = true
		return true, nil
	})
	return moved
}

// ToggleComplete flips the completion flag and relocates the task: completed
// tasks go to the terminal column, reopened ones to the initial column.
func (s *Store) ToggleComplete(ctx context.Context, columnID domain.ColumnID, taskID string) (domain.Task, error) {
	var toggled domain.Task
	err := s.apply(ctx, "ToggleComplete", taskAttrs(columnID, taskID), func(b domain.Board) (bool, error) {
		if !columnID.Known() {
			return false, &domain.NotFoundError{Kind: "column", ID: string(columnID)}
		}
		t := removeTask(b, columnID, taskID)
		if t == nil {
			return false, domain.TaskNotFound(taskID)
		}
		t.Completed = !t.Completed
		dest := domain.InitialColumn
		if t.Completed {
			dest = domain.TerminalColumn
		}
		appendTask(b, dest, *t)
		toggled = *t
		return true, nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return toggled, nil
}

// ClearAllTasks empties every column, keeping the column set.
func (s *Store) ClearAllTasks(ctx context.Context) {
	_ = s.apply(ctx, "ClearAllTasks", nil, func(b domain.Board) (bool, error) {
		for _, id := range domain.ColumnOrder {
			col := b.Columns[id]
			col.Tasks = []domain.Task{}
			b.Columns[id] = col
		}
		return true, nil
	})
}

// ResetBoard replaces all user data with the built-in default board.
func (s *Store) ResetBoard(ctx context.Context) {
	_ = s.apply(ctx, "ResetBoard", nil, func(b domain.Board) (bool, error) {
		def := domain.DefaultBoard()
		for id, col := range def.Columns {
			b.Columns[id] = col
		}
		return true, nil
	})
}

// apply runs fn against a working copy of the board and commits it only when
// fn reports a change without error, so a failed operation is never partially
// visible. The save runs under the same lock as the mutation.
func (s *Store) apply(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(domain.Board) (bool, error)) error {
	ctx, span := s.tracer.Start(ctx, "board."+op, trace.WithAttributes(attrs...))
	defer span.End()

	s.mu.Lock()
	working := s.board.Clone()
	changed, err := fn(working)
	if err != nil || !changed {
		s.mu.Unlock()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.WithFields(log.Fields{"op": op}).WithError(err).Debug("board.mutation.rejected")
		}
		span.SetAttributes(attribute.Bool("board.changed", false))
		return err
	}

	s.board = working
	s.revision++
	rev := s.revision
	persistErr := s.persister.Save(ctx, s.board)
	snapshot := s.board.Clone()
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("board.changed", true),
		attribute.Int64("board.revision", int64(rev)),
		attribute.Bool("board.persisted", persistErr == nil),
	)
	if persistErr != nil {
		span.RecordError(persistErr)
		s.reportPersistError(op, rev, persistErr)
	}
	s.logger.WithFields(log.Fields{"op": op, "revision": rev, "tasks": snapshot.TaskCount()}).Debug("board.mutation.applied")

	s.notifyMu.Lock()
	for s.notified+1 != rev {
		s.notifyCond.Wait()
	}
	s.notify(Change{Op: op, Revision: rev, Board: snapshot})
	s.notified = rev
	s.notifyCond.Broadcast()
	s.notifyMu.Unlock()
	return nil
}

func (s *Store) notify(ch Change) {
	s.obsMu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.obsMu.RUnlock()
	for _, o := range observers {
		o(Change{Op: ch.Op, Revision: ch.Revision, Board: ch.Board.Clone()})
	}
}

func (s *Store) reportPersistError(op string, rev uint64, err error) {
	fields := log.Fields{"op": op, "revision": rev}
	var pErr *domain.PersistenceError
	if errors.As(err, &pErr) {
		fields["slot"] = pErr.Slot
	}
	s.logger.WithFields(fields).WithError(err).Error("board save failed; keeping in-memory state")
	if s.onPersistErr != nil {
		s.onPersistErr(err)
	}
}

func (s *Store) logStale(op string, columnID domain.ColumnID, taskID string) {
	s.logger.WithFields(log.Fields{"op": op, "column": columnID, "task": taskID}).Debug("stale task reference ignored")
}

func (s *Store) newID(b domain.Board) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.ids.NewID()
		if id != "" && !b.Has(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("id generator produced %d colliding ids", maxIDAttempts)
}

func removeTask(b domain.Board, columnID domain.ColumnID, taskID string) *domain.Task {
	col, ok := b.Columns[columnID]
	if !ok {
		return nil
	}
	for i, t := range col.Tasks {
		if t.ID != taskID {
			continue
		}
		col.Tasks = append(col.Tasks[:i:i], col.Tasks[i+1:]...)
		b.Columns[columnID] = col
		return &t
	}
	return nil
}

func appendTask(b domain.Board, columnID domain.ColumnID, t domain.Task) {
	col := b.Columns[columnID]
	col.Tasks = append(col.Tasks, t)
	b.Columns[columnID] = col
}

func taskAttrs(columnID domain.ColumnID, taskID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("board.column_id", string(columnID)),
		attribute.String("board.task_id", taskID),
	}
}
