package compliance

import (
	"context"
	"fmt"
	"sync"
)

// Operation names the kind of mutating entry point being checked.
type Operation string

const (
	OpHold         Operation = "hold"
	OpExecuteHold  Operation = "execute_hold"
	OpTransfer     Operation = "transfer"
	OpFunding      Operation = "funding"
	OpPayout       Operation = "payout"
	OpClearing     Operation = "clearing"
	OpSetOverdraft Operation = "set_overdraft_limit"
	OpApprove      Operation = "approve"
)

// Decision is the gate's verdict. Reason is meaningful only when not allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

// Gate is the external compliance collaborator consulted synchronously before
// any value-moving or permission-granting operation. A false decision aborts
// the whole operation with no state change.
type Gate interface {
	Check(ctx context.Context, op Operation, parties []string, amount uint64) (Decision, error)
}

// RejectedError carries the human-readable reason returned by the gate.
type RejectedError struct {
	Op     Operation
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("compliance rejected %s: %s", e.Op, e.Reason)
}

// Require runs the check and converts a negative decision into a RejectedError.
func Require(ctx context.Context, gate Gate, op Operation, parties []string, amount uint64) error {
	decision, err := gate.Check(ctx, op, parties, amount)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &RejectedError{Op: op, Reason: decision.Reason}
	}
	return nil
}

// AllowAll approves every operation. Useful for tests and dev mode.
type AllowAll struct{}

// Check always allows.
func (AllowAll) Check(_ context.Context, _ Operation, _ []string, _ uint64) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// ListGate allows an operation only when every party is whitelisted.
type ListGate struct {
	mu      sync.RWMutex
	allowed map[string]struct{}
}

// NewListGate builds a whitelist gate seeded with the given addresses.
func NewListGate(addresses ...string) *ListGate {
	g := &ListGate{allowed: make(map[string]struct{}, len(addresses))}
	for _, addr := range addresses {
		g.allowed[addr] = struct{}{}
	}
	return g
}

// Add whitelists an address.
func (g *ListGate) Add(address string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.allowed[address] = struct{}{}
}

// Remove drops an address from the whitelist.
func (g *ListGate) Remove(address string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.allowed, address)
}

// Check allows the operation only when every named party is whitelisted.
// Unnamed parties (empty strings, e.g. a missing notary) are skipped.
func (g *ListGate) Check(_ context.Context, _ Operation, parties []string, _ uint64) (Decision, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, party := range parties {
		if party == "" {
			continue
		}
		if _, ok := g.allowed[party]; !ok {
			return Decision{Reason: fmt.Sprintf("party %s is not whitelisted", party)}, nil
		}
	}
	return Decision{Allowed: true}, nil
}
