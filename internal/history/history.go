// Package history keeps bounded, most-recent-first lists of values the user
// has published, one per tracked presence field.
package history

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultLimit is the number of entries a cache keeps when no limit is set.
const DefaultLimit = 10

// Field names a tracked presence field.
type Field string

const (
	// FieldState is the lower line of the presence card.
	FieldState Field = "state"
	// FieldDetails is the upper line of the presence card.
	FieldDetails Field = "details"
)

// Fields lists every tracked field in display order.
var Fields = []Field{FieldState, FieldDetails}

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldState, FieldDetails:
		return f, nil
	}
	return "", fmt.Errorf("unknown history field %q: must be %q or %q", s, FieldState, FieldDetails)
}

// Cache is an ordered, duplicate-free list of recent values. The zero value
// is not usable; construct with [New]. Cache is not safe for concurrent use.
type Cache struct {
	entries []string
	limit   int
	exclude []string
}

// New returns a cache seeded with entries. Blank values and duplicates are
// dropped, the first occurrence wins, and the result is truncated to limit.
// A limit below 1 uses [DefaultLimit].
func New(entries []string, limit int) *Cache {
	c := &Cache{limit: normalizeLimit(limit)}
	for _, e := range entries {
		if isBlank(e) || slices.Contains(c.entries, e) {
			continue
		}
		c.entries = append(c.entries, e)
	}
	c.truncate()
	return c
}

// Record promotes value to the front, inserting it if absent, and truncates
// to the limit. Blank values and values matching an exclude pattern are
// ignored. changed reports whether the list differs from before the call.
func (c *Cache) Record(value string) (entries []string, changed bool) {
	if isBlank(value) || c.excluded(value) {
		return c.Entries(), false
	}
	if len(c.entries) > 0 && c.entries[0] == value {
		return c.Entries(), false
	}

	if i := slices.Index(c.entries, value); i >= 0 {
		c.entries = slices.Delete(c.entries, i, i+1)
	}
	c.entries = slices.Insert(c.entries, 0, value)
	c.truncate()
	return c.Entries(), true
}

// Entries returns a copy of the values, most recent first.
func (c *Cache) Entries() []string {
	out := make([]string, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of stored values.
func (c *Cache) Len() int { return len(c.entries) }

// Limit returns the maximum number of stored values.
func (c *Cache) Limit() int { return c.limit }

// SetLimit changes the limit, dropping the oldest values if needed. It
// reports whether any were dropped.
func (c *Cache) SetLimit(limit int) bool {
	c.limit = normalizeLimit(limit)
	return c.truncate()
}

// SetExclude replaces the glob patterns whose matches are never recorded.
// Values already stored are kept. Invalid patterns are rejected.
func (c *Cache) SetExclude(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	c.exclude = slices.Clone(patterns)
	return nil
}

// Clear removes every value and reports whether any were present.
func (c *Cache) Clear() bool {
	had := len(c.entries) > 0
	c.entries = nil
	return had
}

// Next returns the entry after current, wrapping to the first. Step -1 moves
// toward older entries in reverse. An unknown current starts from the front
// (or the back for a negative step). It returns "" for an empty cache.
func (c *Cache) Next(current string, step int) string {
	n := len(c.entries)
	if n == 0 {
		return ""
	}
	i := slices.Index(c.entries, current)
	if i < 0 {
		if step < 0 {
			return c.entries[n-1]
		}
		return c.entries[0]
	}
	return c.entries[((i+step)%n+n)%n]
}

// excluded reports whether value matches any exclude pattern.
func (c *Cache) excluded(value string) bool {
	for _, p := range c.exclude {
		if ok, _ := doublestar.Match(p, value); ok {
			return true
		}
	}
	return false
}

// truncate enforces the limit and reports whether entries were dropped.
func (c *Cache) truncate() bool {
	if len(c.entries) <= c.limit {
		return false
	}
	c.entries = c.entries[:c.limit]
	return true
}

func normalizeLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	return limit
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
