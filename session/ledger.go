package session

import (
	"sync"

	"github.com/plainterms/plainterms/analysis"
)

// Ledger is the append-only chat history. One ledger per process, shared
// across all documents. Safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	records []analysis.ChatRecord
}

// NewLedger creates an empty chat ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a record to the ledger. Implements analysis.ChatRecorder.
func (l *Ledger) Append(rec analysis.ChatRecord) {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// All returns every record, oldest first. The returned slice is a copy;
// mutating it does not affect the ledger.
func (l *Ledger) All() []analysis.ChatRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]analysis.ChatRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Clear removes every record. Irreversible.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
}
