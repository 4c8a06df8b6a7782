// Package session is the engine handed to the presentation layer: the board
// store, the drag tracker and the filter state behind one value.
package session

import (
	"context"
	"sync"

	"prism-board/board"
	"prism-board/domain"
	"prism-board/drag"
	"prism-board/view"
)

// Session embeds the Store, so every board command is available directly.
type Session struct {
	*board.Store

	tracker *drag.Tracker

	mu     sync.RWMutex
	filter domain.Filter
}

func New(store *board.Store) *Session {
	if store == nil {
		panic("session.New: store is nil")
	}
	return &Session{Store: store, tracker: drag.NewTracker(), filter: domain.DefaultFilter()}
}

// View projects the current board through the current filter.
func (s *Session) View() view.Board {
	return view.Project(s.Board(), s.Filter())
}

func (s *Session) Filter() domain.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// SetSearchQuery stores the query as typed; matching trims and lowercases it.
func (s *Session) SetSearchQuery(q string) {
	s.mu.Lock()
	s.filter.SearchQuery = q
	s.mu.Unlock()
}

func (s *Session) SetPriorityFilter(p string) error {
	f, err := domain.ParsePriorityFilter(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.filter.Priority = f
	s.mu.Unlock()
	return nil
}

func (s *Session) OnDragStart(taskID string, columnID domain.ColumnID) {
	s.tracker.Start(taskID, columnID)
}

// OnDrop completes the active drag over target and reports whether the
// board changed.
func (s *Session) OnDrop(ctx context.Context, target domain.ColumnID) bool {
	return s.tracker.Drop(ctx, target, s.Store)
}

func (s *Session) OnDragCancel() { s.tracker.Cancel() }

func (s *Session) ActiveDrag() (drag.Session, bool) { return s.tracker.Active() }
