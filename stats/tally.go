package stats

import (
	"sync"
	"sync/atomic"
)

// Category is a snapshot of one (name, successful) tally entry.
type Category struct {
	Name         string `json:"name"`
	IsSuccessful bool   `json:"is_successful"`
	Count        int64  `json:"count"`
}

type categoryKey struct {
	name string
	ok   bool
}

// CategoryTally counts completed items per (category, successful) pair.
// Entries are created on first use and incremented atomically.
type CategoryTally struct {
	entries sync.Map // categoryKey -> *atomic.Int64
}

func NewCategoryTally() *CategoryTally {
	return &CategoryTally{}
}

// Increment adds one to the entry for (name, ok) and returns the new count.
func (t *CategoryTally) Increment(name string, ok bool) int64 {
	key := categoryKey{name: name, ok: ok}
	counter, found := t.entries.Load(key)
	if !found {
		counter, _ = t.entries.LoadOrStore(key, new(atomic.Int64))
	}
	return counter.(*atomic.Int64).Add(1)
}

// Count returns the current count for (name, ok).
func (t *CategoryTally) Count(name string, ok bool) int64 {
	counter, found := t.entries.Load(categoryKey{name: name, ok: ok})
	if !found {
		return 0
	}
	return counter.(*atomic.Int64).Load()
}

// Snapshot returns the entries in no particular order.
func (t *CategoryTally) Snapshot() []Category {
	var out []Category
	t.entries.Range(func(k, v any) bool {
		key := k.(categoryKey)
		out = append(out, Category{
			Name:         key.name,
			IsSuccessful: key.ok,
			Count:        v.(*atomic.Int64).Load(),
		})
		return true
	})
	return out
}
