package accessctl

import (
	"context"
	"sync"
)

type roleKey struct {
	address string
	role    Role
}

type approvalKey struct {
	grantor   string
	grantee   string
	privilege Privilege
}

type memoryRegistry struct {
	mu        sync.RWMutex
	roles     map[roleKey]struct{}
	approvals map[approvalKey]struct{}
}

// NewMemoryRegistry constructs an in-memory registry for tests and dev mode.
func NewMemoryRegistry() Registry {
	return &memoryRegistry{
		roles:     make(map[roleKey]struct{}),
		approvals: make(map[approvalKey]struct{}),
	}
}

func (r *memoryRegistry) GrantRole(_ context.Context, address string, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[roleKey{address, role}] = struct{}{}
	return nil
}

func (r *memoryRegistry) RevokeRole(_ context.Context, address string, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, roleKey{address, role})
	return nil
}

func (r *memoryRegistry) HasRole(_ context.Context, address string, role Role) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roles[roleKey{address, role}]
	return ok, nil
}

func (r *memoryRegistry) Approve(_ context.Context, grantor, grantee string, privilege Privilege) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approvals[approvalKey{grantor, grantee, privilege}] = struct{}{}
	return nil
}

func (r *memoryRegistry) RevokeApproval(_ context.Context, grantor, grantee string, privilege Privilege) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.approvals, approvalKey{grantor, grantee, privilege})
	return nil
}

func (r *memoryRegistry) IsApproved(_ context.Context, grantor, grantee string, privilege Privilege) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.approvals[approvalKey{grantor, grantee, privilege}]
	return ok, nil
}
