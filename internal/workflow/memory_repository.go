package workflow

import (
	"context"
	"slices"
	"sync"

	"github.com/emledger/emledger/internal/ledger"
)

type memoryRepository struct {
	mu sync.Mutex
	// position 0 is the "does not exist" sentinel; valid requests start at 1.
	requests []Request
	index    map[ID]uint64
}

// NewMemoryRepository constructs an in-memory request store for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		requests: make([]Request, 1),
		index:    make(map[ID]uint64),
	}
}

func (r *memoryRepository) Create(_ context.Context, req Request) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := ID{Requester: req.Requester, TxID: req.TxID}
	if _, exists := r.index[id]; exists {
		return Request{}, ledger.ErrDuplicateID
	}
	req.Index = uint64(len(r.requests))
	r.requests = append(r.requests, req)
	r.index[id] = req.Index
	return req, nil
}

func (r *memoryRepository) Get(_ context.Context, id ID) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[id]
	if !ok {
		return Request{}, ledger.ErrNotFound
	}
	return r.requests[pos], nil
}

func (r *memoryRepository) GetByIndex(_ context.Context, index uint64) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index == 0 || index >= uint64(len(r.requests)) {
		return Request{}, ledger.ErrNotFound
	}
	return r.requests[index], nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id ID, from []Status, to Status, reason string) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[id]
	if !ok {
		return Request{}, ledger.ErrNotFound
	}
	req := &r.requests[pos]
	if !slices.Contains(from, req.Status) {
		return Request{}, ErrInvalidState
	}
	req.Status = to
	if reason != "" {
		req.Reason = reason
	}
	return *req, nil
}
