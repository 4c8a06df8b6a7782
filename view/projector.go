// Package view derives the read-only, filtered projection of a board that the
// presentation layer renders.
package view

import "prism-board/domain"

// PriorityCounts tallies the unfiltered tasks of a column by priority.
type PriorityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Column is one column of the filtered view. TaskCount and Priorities always
// describe the unfiltered column so the filter narrows the list without
// changing the totals.
type Column struct {
	ID         domain.ColumnID `json:"id"`
	Title      string          `json:"title"`
	Tasks      []domain.Task   `json:"tasks"`
	TaskCount  int             `json:"taskCount"`
	Priorities PriorityCounts  `json:"priorityCounts"`
	Matched    int             `json:"matched"`
}

// Board is the filtered view, columns in canonical order.
type Board struct {
	Filter  domain.Filter `json:"filter"`
	Columns []Column      `json:"columns"`
	Matched int           `json:"matched"`
	Total   int           `json:"total"`
}

// Project computes the filtered view. It is a pure function of its inputs.
func Project(b domain.Board, f domain.Filter) Board {
	if f.Priority == "" {
		f.Priority = domain.PriorityAll
	}
	out := Board{Filter: f, Columns: make([]Column, 0, len(domain.ColumnOrder))}
	for _, id := range domain.ColumnOrder {
		src, ok := b.Columns[id]
		if !ok {
			continue
		}
		col := Column{
			ID:        id,
			Title:     src.Title,
			Tasks:     make([]domain.Task, 0, len(src.Tasks)),
			TaskCount: len(src.Tasks),
		}
		for _, t := range src.Tasks {
			switch t.Priority {
			case domain.PriorityHigh:
				col.Priorities.High++
			case domain.PriorityMedium:
				col.Priorities.Medium++
			case domain.PriorityLow:
				col.Priorities.Low++
			}
			if t.Matches(f) {
				col.Tasks = append(col.Tasks, t)
			}
		}
		col.Matched = len(col.Tasks)
		out.Matched += col.Matched
		out.Total += col.TaskCount
		out.Columns = append(out.Columns, col)
	}
	return out
}

// Column returns the view of a single column.
func (v Board) Column(id domain.ColumnID) (Column, bool) {
	for _, c := range v.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}
