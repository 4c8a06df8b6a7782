package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"prism-board/board"
)

// SenderConfig sizes the publishing pool.
type SenderConfig struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		Workers:        4,
		Buffer:         256,
		Timeout:        10 * time.Second,
		HandoffTimeout: 15 * time.Millisecond,
	}
}

// Sender publishes events from a bounded pool of workers so that a slow
// channel does not hold up board mutations. When the buffer stays full past
// the handoff timeout the event is published inline, and the mutating caller
// waits for it while readers of the board carry on. Failures are logged and
// otherwise ignored.
type Sender struct {
	pub    Publisher
	cfg    SenderConfig
	logger *log.Logger

	mu     sync.RWMutex
	jobs   chan Event
	closed bool
	wg     sync.WaitGroup
}

func NewSender(pub Publisher, cfg SenderConfig, logger *log.Logger) *Sender {
	if pub == nil {
		panic("events.NewSender: publisher is nil")
	}
	if logger == nil {
		panic("events.NewSender: logger is nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSenderConfig().Timeout
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	s := &Sender{pub: pub, cfg: cfg, logger: logger}
	if cfg.Workers > 0 {
		s.jobs = make(chan Event, cfg.Buffer)
		for i := 0; i < cfg.Workers; i++ {
			s.wg.Add(1)
			go s.worker(i)
		}
	}
	logger.Infof("event sender started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.Timeout, cfg.HandoffTimeout)
	return s
}

// Observe satisfies board.Observer.
func (s *Sender) Observe(ch board.Change) {
	s.Send(NewEvent(ch))
}

// Send hands the event to a worker, or publishes it inline when the pool is
// saturated. Events sent after Close are dropped.
func (s *Sender) Send(ev Event) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		s.logger.WithFields(log.Fields{"op": ev.Op, "revision": ev.Revision}).Warn("event sender closed; dropping event")
		return
	}
	ok := s.handoff(ev)
	s.mu.RUnlock()
	if !ok {
		s.publish(ev, -1)
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (s *Sender) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.jobs != nil {
		close(s.jobs)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Sender) handoff(ev Event) bool {
	if s.jobs == nil {
		return false
	}
	select {
	case s.jobs <- ev:
		return true
	default:
	}
	if s.cfg.HandoffTimeout <= 0 {
		return false
	}
	timer := time.NewTimer(s.cfg.HandoffTimeout)
	defer timer.Stop()
	select {
	case s.jobs <- ev:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Sender) worker(id int) {
	defer s.wg.Done()
	for ev := range s.jobs {
		s.publish(ev, id)
	}
}

func (s *Sender) publish(ev Event, worker int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	err := s.pub.Publish(ctx, ev)
	cancel()
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event":    ev.ID,
			"op":       ev.Op,
			"revision": ev.Revision,
			"worker":   worker,
		}).Error("event publish failed")
	}
}
