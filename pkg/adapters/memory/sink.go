// Package memory provides an in-memory ResultSink, used for tests and for
// running without external storage.
package memory

import (
	"context"
	"sync"

	"github.com/docweave/docweave/pkg/domain"
)

// Sink implements ports.ResultSink in memory. Safe for concurrent use.
type Sink struct {
	mu   sync.RWMutex
	data map[string]domain.ResultRecord
}

// NewSink creates an empty in-memory sink.
func NewSink() *Sink {
	return &Sink{data: make(map[string]domain.ResultRecord)}
}

// Store saves the record under its logical key, overwriting any previous
// write for the same key.
func (s *Sink) Store(ctx context.Context, rec domain.ResultRecord) (string, error) {
	key := rec.LogicalKey()

	s.mu.Lock()
	s.data[key] = rec
	s.mu.Unlock()

	return "mem://results/" + key, nil
}

// Get returns the record stored under the given logical key.
func (s *Sink) Get(key string) (domain.ResultRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[key]
	return rec, ok
}

// Len reports the number of stored records.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
