// Package approval provides the correlation store that pairs suspension
// requests with the answers that arrive for them later.
//
// The store is process-wide but keyed by globally unique request IDs, so a
// single instance safely serves many concurrent sessions. It is an explicit,
// injectable object: multiple engines can run in the same process under test
// without cross-talk.
package approval

import (
	"hash/fnv"
	"sync"

	"github.com/docweave/docweave/pkg/domain"
)

const shardCount = 16

// Store maps request IDs to the requests (and their cached context) that were
// in flight when a suspension occurred. Writes and takes on unrelated IDs
// never contend on the same lock.
type Store struct {
	shards [shardCount]shard
}

type shard struct {
	mu       sync.RWMutex
	requests map[string]domain.ApprovalRequest
}

// NewStore creates an empty correlation store.
func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].requests = make(map[string]domain.ApprovalRequest)
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.shards[h.Sum32()%shardCount]
}

// Put registers an outstanding request. Registering an ID twice is a
// DuplicateRequestError; request IDs are never reused, so hitting it means an
// engine bug.
func (s *Store) Put(req domain.ApprovalRequest) error {
	sh := s.shardFor(req.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.requests[req.ID]; exists {
		return &domain.DuplicateRequestError{RequestID: req.ID}
	}
	sh.requests[req.ID] = req
	return nil
}

// Take removes and returns the request for the given ID. Exactly one caller
// can consume an ID; subsequent calls return ErrRequestNotFound.
func (s *Store) Take(id string) (domain.ApprovalRequest, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	req, ok := sh.requests[id]
	if !ok {
		return domain.ApprovalRequest{}, domain.ErrRequestNotFound
	}
	delete(sh.requests, id)
	return req, nil
}

// Peek returns the request for the given ID without consuming it.
func (s *Store) Peek(id string) (domain.ApprovalRequest, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	req, ok := sh.requests[id]
	return req, ok
}

// Len reports the number of outstanding requests across all shards.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		n += len(s.shards[i].requests)
		s.shards[i].mu.RUnlock()
	}
	return n
}
