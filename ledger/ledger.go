// Package ledger keeps the append-only record of payment attempts for a
// gateway session. Every terminal authorization outcome lands here,
// settled or failed, in the order it happened.
package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome classifies a ledger entry.
type Outcome string

const (
	OutcomeSettled Outcome = "settled"
	OutcomeFailed  Outcome = "failed"
)

// Entry records one payment attempt. Entries are never mutated or
// deleted after append.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Tool      string          `json:"tool"`
	Amount    decimal.Decimal `json:"amount"`
	Outcome   Outcome         `json:"outcome"`

	// TxHash is set when Outcome is settled.
	TxHash string `json:"txHash,omitempty"`

	// Reason is set when Outcome is failed, verbatim from the rejector.
	Reason string `json:"error,omitempty"`
}

// Settled reports whether the entry records a completed charge.
func (e Entry) Settled() bool {
	return e.Outcome == OutcomeSettled
}

// Ledger is an in-memory, append-only payment log. Appends are
// serialized; reads are served from a snapshot under a read lock so
// they never observe a partial append.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
}

// New creates an empty Ledger. One instance is constructed per server
// lifetime and handed to every component that needs it.
func New() *Ledger {
	return &Ledger{}
}

// Append adds an entry to the log. If the entry carries no timestamp it
// is stamped with the current time. Append never fails.
func (l *Ledger) Append(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the log in insertion order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries appended so far.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// TotalSettled sums the amounts of all settled entries. The figure is
// recomputed from the entry list on every call, never cached.
func (l *Ledger) TotalSettled() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, e := range l.entries {
		if e.Outcome == OutcomeSettled {
			total = total.Add(e.Amount)
		}
	}
	return total
}
