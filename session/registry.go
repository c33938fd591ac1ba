// Package session holds the process-wide mutable state: the document registry
// and the chat ledger. Both live from process start to process stop and are
// never persisted. Construct them once and inject them — there are no
// package-level singletons.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plainterms/plainterms/analysis"
)

// ErrNotFound is returned when a document identifier is not in the registry.
var ErrNotFound = errors.New("document not found")

// Document is one analyzed document. Immutable after creation; the registry
// is the single writer.
type Document struct {
	ID        string             `json:"id"`
	Text      string             `json:"-"`
	Options   analysis.Options   `json:"options"`
	Analysis  *analysis.Analysis `json:"analysis"`
	CreatedAt time.Time          `json:"created_at"`
}

// Registry maps generated document identifiers to stored documents.
// Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewRegistry creates an empty document registry.
func NewRegistry() *Registry {
	return &Registry{
		docs: make(map[string]*Document),
	}
}

// Store records a newly analyzed document and returns its identifier.
// Identifiers are random UUIDs, not counters, so they leak neither document
// count nor ordering.
func (r *Registry) Store(text string, opts analysis.Options, result *analysis.Analysis) string {
	doc := &Document{
		ID:        uuid.New().String(),
		Text:      text,
		Options:   opts,
		Analysis:  result,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.docs[doc.ID] = doc
	r.mu.Unlock()

	return doc.ID
}

// Get returns the document stored under id.
func (r *Registry) Get(id string) (*Document, error) {
	r.mu.RLock()
	doc, ok := r.docs[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

// GetText returns the canonical text stored under id. Implements
// analysis.DocumentStore.
func (r *Registry) GetText(id string) (string, error) {
	doc, err := r.Get(id)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// Len returns the number of stored documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}
