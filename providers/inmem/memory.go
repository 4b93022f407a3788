// Package inmem provides in-memory reference implementations of the agentcore
// provider capabilities. They are meant for tests, demos and single-process agents.
package inmem

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"github.com/rickchristie/agentcore"
)

// DefaultQueryLimit caps query results when QueryOptions.Limit is zero.
const DefaultQueryLimit = 10

// Memory is a MemoryProvider that ranks items by term overlap with the query.
//
// The score is the fraction of distinct query terms that appear in the item's content,
// so 1.0 means every term matched. Items that match no term are not returned.
type Memory struct {
	mu    sync.RWMutex
	items []agentcore.MemoryItem
}

// NewMemory creates an empty Memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Store adds an item. An empty ID is replaced with a generated one.
func (m *Memory) Store(_ context.Context, item agentcore.MemoryItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Metadata = maps.Clone(item.Metadata)
	item.Score = 0

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return item.ID, nil
}

// Query returns items sharing terms with query, highest score first. Ties keep
// insertion order.
func (m *Memory) Query(
	ctx context.Context,
	query string,
	opts agentcore.QueryOptions,
) ([]agentcore.MemoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := distinct(tokenize(query))
	if len(terms) == 0 {
		return nil, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []agentcore.MemoryItem
	for _, item := range m.items {
		if !matchesFilters(item.Metadata, opts.Filters) {
			continue
		}
		words := tokenize(item.Content)
		hits := 0
		for _, term := range terms {
			if slices.Contains(words, term) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		item.Metadata = maps.Clone(item.Metadata)
		item.Score = float64(hits) / float64(len(terms))
		out = append(out, item)
	}

	slices.SortStableFunc(out, func(a, b agentcore.MemoryItem) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored items.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func distinct(terms []string) []string {
	slices.Sort(terms)
	return slices.Compact(terms)
}

func matchesFilters(meta, filters map[string]any) bool {
	for k, want := range filters {
		got, ok := meta[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

var _ agentcore.MemoryProvider = (*Memory)(nil)
