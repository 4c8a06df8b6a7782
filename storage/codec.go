package storage

import (
	"fmt"

	"github.com/bytedance/sonic"

	"prism-board/domain"
)

// The persisted value is the columns mapping itself:
//
//	{"done":{"id":"done","title":"Done","tasks":[...]}, "inProgress":{...}, "todo":{...}}
//
// There is no version field. ConfigStd sorts map keys so equal boards encode
// to equal bytes.

// Encode serializes the board snapshot.
func Encode(b domain.Board) ([]byte, error) {
	cols := make(map[string]domain.Column, len(b.Columns))
	for id, col := range b.Columns {
		if col.Tasks == nil {
			col.Tasks = []domain.Task{}
		}
		cols[string(id)] = col
	}
	return sonic.ConfigStd.Marshal(cols)
}

// Decode parses a snapshot and rejects anything that does not have the
// board's shape. Missing completion flags default to false, null task lists
// to empty, and a missing column id or title to the key's.
func Decode(data []byte) (domain.Board, error) {
	var cols map[string]domain.Column
	if err := sonic.ConfigStd.Unmarshal(data, &cols); err != nil {
		return domain.Board{}, fmt.Errorf("decode board: %w", err)
	}
	if cols == nil {
		return domain.Board{}, fmt.Errorf("decode board: no columns")
	}
	b := domain.Board{Columns: make(map[domain.ColumnID]domain.Column, len(cols))}
	for key, col := range cols {
		id := domain.ColumnID(key)
		if col.ID == "" {
			col.ID = id
		}
		if col.Tasks == nil {
			col.Tasks = []domain.Task{}
		}
		if col.Title == "" {
			col.Title = id.Title()
		}
		b.Columns[id] = col
	}
	if err := b.Validate(); err != nil {
		return domain.Board{}, fmt.Errorf("decode board: %w", err)
	}
	return b, nil
}
