package domain

import "strings"

// PriorityFilter narrows the visible tasks to a single priority, or all.
type PriorityFilter string

const (
	PriorityAll          PriorityFilter = "all"
	PriorityFilterLow    PriorityFilter = PriorityFilter(PriorityLow)
	PriorityFilterMedium PriorityFilter = PriorityFilter(PriorityMedium)
	PriorityFilterHigh   PriorityFilter = PriorityFilter(PriorityHigh)
)

// ParsePriorityFilter accepts all|low|medium|high. Blank input means all.
func ParsePriorityFilter(s string) (PriorityFilter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityAll, nil
	}
	f := PriorityFilter(s)
	if f != PriorityAll && !Priority(s).Valid() {
		return "", &ValidationError{Field: "priorityFilter", Reason: "unknown priority filter " + s}
	}
	return f, nil
}

// Filter is transient UI state; it is never persisted.
type Filter struct {
	SearchQuery string         `json:"searchQuery"`
	Priority    PriorityFilter `json:"priorityFilter"`
}

// DefaultFilter shows everything.
func DefaultFilter() Filter {
	return Filter{Priority: PriorityAll}
}
