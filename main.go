package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"prism-board/api"
	"prism-board/board"
	"prism-board/config"
	"prism-board/events"
	"prism-board/session"
	"prism-board/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rc *redis.Client
	if cfg.Redis != nil {
		rc = redis.NewClient(cfg.Redis)
		defer rc.Close()
	}

	slot, err := openSlot(ctx, cfg, rc)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	if cfg.CacheTTL > 0 {
		slot = storage.NewCache(slot, rc, cfg.CacheTTL)
	}
	adapter := storage.NewAdapter(slot, logger)

	ids, err := board.NewIDGenerator(cfg.IDScheme)
	if err != nil {
		logger.Fatalf("ids: %v", err)
	}
	store := board.NewStore(ctx, adapter, logger, board.WithIDGenerator(ids))
	logger.WithFields(log.Fields{"slot": adapter.SlotName(), "revision": store.Revision()}).Info("board loaded")

	broker := events.NewBroker()
	store.Subscribe(broker.Observe)

	senderCfg := events.SenderConfig{
		Workers:        cfg.EventWorkers,
		Buffer:         cfg.EventBuffer,
		Timeout:        cfg.EventTimeout,
		HandoffTimeout: cfg.EventHandoffTimeout,
	}
	var senders []*events.Sender
	if cfg.UpdatesChannel != "" {
		s := events.NewSender(events.NewRedisPublisher(rc, cfg.UpdatesChannel), senderCfg, logger)
		store.Subscribe(s.Observe)
		senders = append(senders, s)
	}
	if cfg.EventsQueue != "" {
		q, err := events.NewQueueClient(cfg.StorageConnStr, cfg.EventsQueue)
		if err != nil {
			logger.Fatalf("events queue: %v", err)
		}
		s := events.NewSender(events.NewQueuePublisher(q), senderCfg, logger)
		store.Subscribe(s.Observe)
		senders = append(senders, s)
	}

	var deduper api.Deduper
	if rc != nil {
		deduper = api.NewRedisDeduper(rc, cfg.IdempotencyTTL)
	}

	e := api.New(session.New(store), deduper, broker, logger)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server shutdown")
	}
	for _, s := range senders {
		s.Close()
	}
}

func openSlot(ctx context.Context, cfg config.Config, rc *redis.Client) (storage.Slot, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemorySlot(cfg.Slot), nil
	case config.BackendRedis:
		return storage.NewRedisSlot(rc, cfg.Slot), nil
	case config.BackendTable:
		client, err := storage.NewTableClient(cfg.StorageConnStr, cfg.Table)
		if err != nil {
			return nil, err
		}
		return storage.NewTableSlot(client, cfg.Slot), nil
	case config.BackendPostgres:
		db, err := storage.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		p := storage.NewPostgresSlot(db, storage.DefaultSlotTable, cfg.Slot)
		if err := p.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return storage.NewFileSlot(cfg.File), nil
	}
}
