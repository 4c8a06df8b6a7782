// Package config reads the service configuration from the environment.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendTable    = "table"
	BackendPostgres = "postgres"
)

type Config struct {
	Port  string
	Debug bool

	Backend  string
	Slot     string
	File     string
	Table    string
	CacheTTL time.Duration

	// Redis is nil when REDIS_CONNECTION_STRING is unset.
	Redis          *redis.Options
	StorageConnStr string
	PostgresDSN    string

	UpdatesChannel string
	EventsQueue    string

	IDScheme       string
	IdempotencyTTL time.Duration

	EventWorkers        int
	EventBuffer         int
	EventTimeout        time.Duration
	EventHandoffTimeout time.Duration
}

// Load reads and validates the configuration. Every key is optional except
// the connection settings required by the selected backend.
func Load() (Config, error) {
	var err error
	c := Config{
		Port:           envStr("PORT", "8080"),
		Backend:        strings.ToLower(envStr("BOARD_BACKEND", BackendFile)),
		Slot:           envStr("BOARD_SLOT", "kanban-board"),
		File:           envStr("BOARD_FILE", "data/board.json"),
		Table:          envStr("BOARD_TABLE", "BoardSlots"),
		StorageConnStr: os.Getenv("STORAGE_CONNECTION_STRING"),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		UpdatesChannel: os.Getenv("BOARD_UPDATES_CHANNEL"),
		EventsQueue:    os.Getenv("BOARD_EVENTS_QUEUE"),
		IDScheme:       strings.ToLower(envStr("BOARD_ID_SCHEME", "monotonic")),
	}
	if c.Debug, err = envBool("DEBUG", false); err != nil {
		return Config{}, err
	}
	if c.CacheTTL, err = envDur("BOARD_CACHE_TTL", 0); err != nil {
		return Config{}, err
	}
	if c.IdempotencyTTL, err = envDur("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if c.EventWorkers, err = envInt("EVENT_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if c.EventBuffer, err = envInt("EVENT_BUFFER", 256); err != nil {
		return Config{}, err
	}
	if c.EventTimeout, err = envDur("EVENT_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if c.EventHandoffTimeout, err = envDur("EVENT_HANDOFF_TIMEOUT", 15*time.Millisecond); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("REDIS_CONNECTION_STRING"); v != "" {
		c.Redis = ParseRedis(v)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Redis == nil {
			return fmt.Errorf("BOARD_BACKEND=redis requires REDIS_CONNECTION_STRING")
		}
	case BackendTable:
		if c.StorageConnStr == "" {
			return fmt.Errorf("BOARD_BACKEND=table requires STORAGE_CONNECTION_STRING")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("BOARD_BACKEND=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("invalid BOARD_BACKEND %q", c.Backend)
	}
	if c.Slot == "" {
		return fmt.Errorf("BOARD_SLOT must not be empty")
	}
	if c.CacheTTL > 0 && c.Redis == nil {
		return fmt.Errorf("BOARD_CACHE_TTL requires REDIS_CONNECTION_STRING")
	}
	if c.UpdatesChannel != "" && c.Redis == nil {
		return fmt.Errorf("BOARD_UPDATES_CHANNEL requires REDIS_CONNECTION_STRING")
	}
	if c.EventsQueue != "" && c.StorageConnStr == "" {
		return fmt.Errorf("BOARD_EVENTS_QUEUE requires STORAGE_CONNECTION_STRING")
	}
	if c.EventBuffer < 0 || c.EventWorkers < 0 {
		return fmt.Errorf("EVENT_WORKERS and EVENT_BUFFER must not be negative")
	}
	return nil
}

// ParseRedis accepts a redis:// URL or the Azure form
// "host:port,password=...,ssl=true".
func ParseRedis(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDur(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
