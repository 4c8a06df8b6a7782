// Package events fans board changes out to live stream subscribers and to
// external channels (redis pub/sub or an Azure queue).
package events

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"prism-board/board"
	"prism-board/domain"
)

const TypeBoardChanged = "board-changed"

// Event is the external notification emitted after every committed change.
type Event struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Op        string       `json:"op"`
	Revision  uint64       `json:"revision"`
	Timestamp int64        `json:"timestamp"`
	Board     domain.Board `json:"board"`
}

var lastTimestamp int64

// nextTimestamp returns a strictly increasing nanosecond timestamp.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}

func NewEvent(ch board.Change) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      TypeBoardChanged,
		Op:        ch.Op,
		Revision:  ch.Revision,
		Timestamp: nextTimestamp(),
		Board:     ch.Board,
	}
}
