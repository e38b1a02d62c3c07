package allocation

import "sync"

// Ledger counts assignments per technician for one batch run. Capacity 0
// means unlimited. A nil *Ledger behaves as an unlimited, non-recording
// ledger.
type Ledger struct {
	capacity int

	mu     sync.Mutex
	counts map[string]int
}

// NewLedger starts every known technician at zero.
func NewLedger(capacity int, ids []string) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id] = 0
	}
	return &Ledger{capacity: capacity, counts: counts}
}

func (l *Ledger) Available(id string) bool {
	if l == nil || l.capacity == 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[id] < l.capacity
}

// Commit records one assignment and returns the technician's new count.
func (l *Ledger) Commit(id string) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[id]++
	return l.counts[id]
}

func (l *Ledger) Count(id string) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[id]
}

// Snapshot copies the current counts.
func (l *Ledger) Snapshot() map[string]int {
	out := map[string]int{}
	if l == nil {
		return out
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, n := range l.counts {
		out[id] = n
	}
	return out
}

// AtCapacity is the number of technicians that reached the capacity.
func (l *Ledger) AtCapacity() int {
	if l == nil || l.capacity == 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.counts {
		if c >= l.capacity {
			n++
		}
	}
	return n
}
