package kv

import (
	"iter"

	"github.com/cccs-rtmorti/htp/internal/strutil"
)

// Pair is a single (name, value) entry.
type Pair struct {
	Key, Value string
}

// Storage is an ordered sequence of (name, value) pairs with case-insensitive
// lookup. Order and duplicates carry security meaning for header and
// parameter analysis, so entries are never reordered, merged or deduplicated.
// Linear search wins over a map at the entry counts seen in practice.
type Storage struct {
	pairs []Pair
}

func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns a Storage with room for n pairs.
func NewPrealloc(n int) *Storage {
	return &Storage{
		pairs: make([]Pair, 0, n),
	}
}

// Add appends a pair, keeping insertion order.
func (s *Storage) Add(key, value string) *Storage {
	s.pairs = append(s.pairs, Pair{
		Key:   key,
		Value: value,
	})
	return s
}

// Get returns the first value for the key and whether it was found.
func (s *Storage) Get(key string) (value string, found bool) {
	for _, pair := range s.pairs {
		if strutil.CmpFold(key, pair.Key) {
			return pair.Value, true
		}
	}

	return "", false
}

// Value returns the first value for the key, or an empty string.
func (s *Storage) Value(key string) string {
	value, _ := s.Get(key)
	return value
}

// Values returns all values for the key in insertion order, nil if absent.
func (s *Storage) Values(key string) (values []string) {
	for _, pair := range s.pairs {
		if strutil.CmpFold(key, pair.Key) {
			values = append(values, pair.Value)
		}
	}

	return values
}

// Count returns the number of entries stored under the key.
func (s *Storage) Count(key string) (n int) {
	for _, pair := range s.pairs {
		if strutil.CmpFold(key, pair.Key) {
			n++
		}
	}

	return n
}

// Has tells whether at least one entry exists for the key.
func (s *Storage) Has(key string) bool {
	_, found := s.Get(key)
	return found
}

// Iter iterates the pairs in insertion order.
func (s *Storage) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range s.pairs {
			if !yield(pair.Key, pair.Value) {
				break
			}
		}
	}
}

func (s *Storage) Len() int {
	return len(s.pairs)
}

// Expose exposes the underlying pairs slice.
func (s *Storage) Expose() []Pair {
	return s.pairs
}
