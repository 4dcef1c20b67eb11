// Package library caches the list of documents uploaded to the backend
// store, persisting it best-effort between sessions.
package library

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ragbench/internal/gateway"
	"ragbench/internal/persist"
	"ragbench/internal/rag"
)

// StorageKey is the persistence key for the uploaded-document list.
const StorageKey = "uploads"

// Registry owns the cached UploadedDocument list.
type Registry struct {
	mu     sync.RWMutex
	docs   []rag.UploadedDocument
	store  persist.Store
	logger *zap.Logger
}

// NewRegistry loads the persisted upload list, starting empty when nothing
// valid is stored.
func NewRegistry(store persist.Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{store: store, logger: logger}
	if store != nil {
		store.Load(StorageKey, &r.docs)
	}
	return r
}

// All returns a copy of the cached documents in upload order.
func (r *Registry) All() []rag.UploadedDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rag.UploadedDocument, len(r.docs))
	copy(out, r.docs)
	return out
}

// Count returns the number of cached documents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Add appends docs to the cache and persists the new list.
func (r *Registry) Add(docs ...rag.UploadedDocument) {
	if len(docs) == 0 {
		return
	}
	r.mu.Lock()
	r.docs = append(r.docs, docs...)
	snapshot := append([]rag.UploadedDocument(nil), r.docs...)
	r.mu.Unlock()
	r.save(snapshot)
}

// Clear empties the cache and persists the empty list. Invoked when the
// aggregated document count reaches zero: the stats snapshot and this cache
// must never disagree about whether any documents exist.
func (r *Registry) Clear() {
	r.mu.Lock()
	hadDocs := len(r.docs) > 0
	r.docs = nil
	r.mu.Unlock()
	if hadDocs {
		r.logger.Info("upload cache cleared")
	}
	r.save([]rag.UploadedDocument{})
}

func (r *Registry) save(docs []rag.UploadedDocument) {
	if r.store != nil {
		r.store.Save(StorageKey, docs)
	}
}

// MapDocuments converts backend upload records into UploadedDocuments,
// stamped with now. The backend is inconsistent about which identifying
// keys it fills in, so both filename and id walk a fallback chain.
func MapDocuments(raw []gateway.RawDocument, now time.Time) []rag.UploadedDocument {
	out := make([]rag.UploadedDocument, len(raw))
	for i, d := range raw {
		filename := firstNonEmpty(d.Filename, d.FileName, d.SafeName, d.DocumentID)
		if filename == "" {
			filename = fmt.Sprintf("document_%d", i)
		}
		id := firstNonEmpty(d.DocumentID, d.ID, d.SafeName)
		if id == "" {
			id = filename
		}
		out[i] = rag.UploadedDocument{
			DocumentID: id,
			Filename:   filename,
			UploadedAt: now,
			Pages:      d.Pages,
			ChunkCount: d.ChunkCount,
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
