package storage

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"prism-board/domain"
)

// Adapter loads and saves the board through a Slot. Loading never fails:
// absent or unreadable data yields the default board.
type Adapter struct {
	slot   Slot
	logger *log.Logger
}

func NewAdapter(slot Slot, logger *log.Logger) *Adapter {
	if slot == nil {
		panic("storage.NewAdapter: slot is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Adapter{slot: slot, logger: logger}
}

func (a *Adapter) SlotName() string { return a.slot.Name() }

// Load returns the persisted board, or the default board when the slot is
// empty, unreachable or holds data of the wrong shape.
func (a *Adapter) Load(ctx context.Context) domain.Board {
	data, err := a.slot.Read(ctx)
	if errors.Is(err, ErrSlotEmpty) {
		a.logger.WithField("slot", a.slot.Name()).Info("no saved board; starting from defaults")
		return domain.DefaultBoard()
	}
	if err != nil {
		a.logLoadError(&domain.PersistenceError{Op: "load", Slot: a.slot.Name(), Err: err})
		return domain.DefaultBoard()
	}
	b, err := Decode(data)
	if err != nil {
		a.logLoadError(&domain.PersistenceError{Op: "decode", Slot: a.slot.Name(), Err: err})
		return domain.DefaultBoard()
	}
	a.logger.WithFields(log.Fields{"slot": a.slot.Name(), "tasks": b.TaskCount()}).Info("board loaded")
	return b
}

// Save overwrites the slot with the full snapshot.
func (a *Adapter) Save(ctx context.Context, b domain.Board) error {
	data, err := Encode(b)
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Slot: a.slot.Name(), Err: err}
	}
	if err := a.slot.Write(ctx, data); err != nil {
		return &domain.PersistenceError{Op: "save", Slot: a.slot.Name(), Err: err}
	}
	return nil
}

// Reset removes the persisted value; the next Load yields the default board.
func (a *Adapter) Reset(ctx context.Context) error {
	if err := a.slot.Clear(ctx); err != nil {
		return &domain.PersistenceError{Op: "clear", Slot: a.slot.Name(), Err: err}
	}
	return nil
}

func (a *Adapter) logLoadError(err *domain.PersistenceError) {
	a.logger.WithError(err).WithFields(log.Fields{"slot": err.Slot, "op": err.Op}).Error("failed to load board; falling back to defaults")
}
