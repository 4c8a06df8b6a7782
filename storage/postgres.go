package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// DefaultSlotTable is the table holding named board slots.
const DefaultSlotTable = "board_slots"

// Connect opens a postgres handle and verifies it with a ping.
func Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// PostgresSlot stores the value as one row of a name/data table.
type PostgresSlot struct {
	db   *sql.DB
	name string

	createSQL string
	selectSQL string
	upsertSQL string
	deleteSQL string
}

func NewPostgresSlot(db *sql.DB, table, name string) *PostgresSlot {
	if db == nil {
		panic("storage.NewPostgresSlot: db is nil")
	}
	if table == "" {
		table = DefaultSlotTable
	}
	t := pq.QuoteIdentifier(table)
	return &PostgresSlot{
		db:        db,
		name:      name,
		createSQL: "CREATE TABLE IF NOT EXISTS " + t + " (name TEXT PRIMARY KEY, data TEXT NOT NULL, updated_at TIMESTAMPTZ NOT NULL DEFAULT now())",
		selectSQL: "SELECT data FROM " + t + " WHERE name = $1",
		upsertSQL: "INSERT INTO " + t + " (name, data, updated_at) VALUES ($1, $2, now()) ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()",
		deleteSQL: "DELETE FROM " + t + " WHERE name = $1",
	}
}

func (p *PostgresSlot) Name() string { return "postgres:" + p.name }

// EnsureSchema creates the slot table when it does not exist yet.
func (p *PostgresSlot) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, p.createSQL)
	return pqError(err)
}

func (p *PostgresSlot) Read(ctx context.Context) ([]byte, error) {
	var data string
	err := p.db.QueryRowContext(ctx, p.selectSQL, p.name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, pqError(err)
	}
	return []byte(data), nil
}

func (p *PostgresSlot) Write(ctx context.Context, data []byte) error {
	_, err := p.db.ExecContext(ctx, p.upsertSQL, p.name, string(data))
	return pqError(err)
}

func (p *PostgresSlot) Clear(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, p.deleteSQL, p.name)
	return pqError(err)
}

// pqError tags driver errors with their SQLSTATE name.
func pqError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("postgres %s: %w", pqErr.Code.Name(), err)
	}
	return err
}
