package main

import (
	"context"
	"errors"
	"flag"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"prism-board/config"
	"prism-board/storage"
)

func main() {
	reset := flag.Bool("reset", false, "clear the configured board slot")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	ctx := context.Background()

	if cfg.StorageConnStr != "" {
		if cfg.Backend == config.BackendTable {
			if err := createTable(ctx, cfg.StorageConnStr, cfg.Table); err != nil {
				log.Fatalf("create table: %v", err)
			}
		}
		if err := createQueue(ctx, cfg.StorageConnStr, cfg.EventsQueue); err != nil {
			log.Fatalf("create queue: %v", err)
		}
	}

	var slot storage.Slot
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := storage.Connect(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()
		p := storage.NewPostgresSlot(db, storage.DefaultSlotTable, cfg.Slot)
		if err := p.EnsureSchema(ctx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		slot = p
	case config.BackendTable:
		client, err := storage.NewTableClient(cfg.StorageConnStr, cfg.Table)
		if err != nil {
			log.Fatalf("table client: %v", err)
		}
		slot = storage.NewTableSlot(client, cfg.Slot)
	case config.BackendRedis:
		rc := redis.NewClient(cfg.Redis)
		defer rc.Close()
		slot = storage.NewRedisSlot(rc, cfg.Slot)
	case config.BackendFile:
		slot = storage.NewFileSlot(cfg.File)
	}

	if *reset {
		if slot == nil {
			log.Fatalf("backend %s has nothing to reset", cfg.Backend)
		}
		if err := storage.NewAdapter(slot, log.StandardLogger()).Reset(ctx); err != nil {
			log.Fatalf("reset: %v", err)
		}
		log.WithField("slot", slot.Name()).Info("board slot cleared")
	}

	log.Info("storage init complete")
}

func createTable(ctx context.Context, connStr, name string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	_, err = svc.NewClient(name).CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	log.WithField("table", name).Debug("table ready")
	return nil
}

func createQueue(ctx context.Context, connStr, name string) error {
	if name == "" {
		return nil
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
	if err != nil {
		return err
	}
	_, err = q.Create(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
			return err
		}
	}
	log.WithField("queue", name).Debug("queue ready")
	return nil
}
