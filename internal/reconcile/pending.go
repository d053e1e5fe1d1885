package reconcile

import "sync"

// PendingSet tracks payout references with an in-flight reconciliation
// flow. It exists to bound graceful shutdown; it is not a distributed
// lock, and cross-process duplicate delivery remains a residual risk.
type PendingSet struct {
	mu   sync.Mutex
	refs map[string]struct{}
}

// NewPendingSet creates an empty set.
func NewPendingSet() *PendingSet {
	return &PendingSet{refs: make(map[string]struct{})}
}

// Add registers a reference. Returns false if it is already in flight,
// in which case the caller must not start a second flow for it.
func (p *PendingSet) Add(ref string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.refs[ref]; ok {
		return false
	}
	p.refs[ref] = struct{}{}
	return true
}

// Remove deregisters a reference.
func (p *PendingSet) Remove(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.refs, ref)
}

// Contains reports whether a reference is in flight.
func (p *PendingSet) Contains(ref string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.refs[ref]
	return ok
}

// Len reports the number of in-flight references.
func (p *PendingSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.refs)
}

// Snapshot returns the in-flight references at this instant.
func (p *PendingSet) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.refs))
	for ref := range p.refs {
		out = append(out, ref)
	}
	return out
}
