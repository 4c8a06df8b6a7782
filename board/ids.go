package board

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator hands out task ids. Implementations must not repeat an id
// within the lifetime of a process.
type IDGenerator interface {
	NewID() string
}

// MonotonicIDs derives ids from a strictly increasing nanosecond counter,
// encoded in base36. Two calls in the same clock tick still differ.
type MonotonicIDs struct {
	last atomic.Int64
	now  func() time.Time
}

func NewMonotonicIDs() *MonotonicIDs {
	return &MonotonicIDs{now: time.Now}
}

func (g *MonotonicIDs) NewID() string {
	return strconv.FormatInt(g.next(), 36)
}

func (g *MonotonicIDs) next() int64 {
	for {
		now := g.now().UnixNano()
		last := g.last.Load()
		if now <= last {
			now = last + 1
		}
		if g.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// UUIDs hands out random v4 uuids.
type UUIDs struct{}

func (UUIDs) NewID() string { return uuid.NewString() }

// NewIDGenerator maps a configured scheme name to a generator.
func NewIDGenerator(scheme string) (IDGenerator, error) {
	switch scheme {
	case "", "monotonic":
		return NewMonotonicIDs(), nil
	case "uuid":
		return UUIDs{}, nil
	default:
		return nil, fmt.Errorf("unknown id scheme %q", scheme)
	}
}
