package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrSlotEmpty is returned by Slot.Read when nothing has been saved yet.
var ErrSlotEmpty = errors.New("slot is empty")

// Slot is a single named durable value holding the serialized board.
type Slot interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
	// Write overwrites any previous value.
	Write(ctx context.Context, data []byte) error
	// Clear removes the value; reading afterwards yields ErrSlotEmpty.
	Clear(ctx context.Context) error
}

// MemorySlot keeps the value in process memory.
type MemorySlot struct {
	name string

	mu   sync.Mutex
	data []byte
	set  bool
}

func NewMemorySlot(name string) *MemorySlot {
	return &MemorySlot{name: name}
}

func (m *MemorySlot) Name() string { return "memory:" + m.name }

func (m *MemorySlot) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return nil, ErrSlotEmpty
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemorySlot) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(m.data[:0:0], data...)
	m.set = true
	return nil
}

func (m *MemorySlot) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	m.set = false
	return nil
}
