// Package stats keeps a display-ready snapshot of index-wide statistics,
// merging backend reports with locally known facts such as a just-completed
// upload.
package stats

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ragbench/internal/rag"
)

// StatsClient is the slice of the backend gateway the aggregator needs.
type StatsClient interface {
	FetchStats(ctx context.Context) (rag.Stats, error)
}

// DocumentRegistry is the upload cache the aggregator resets when the
// aggregated document count reaches zero.
type DocumentRegistry interface {
	Clear()
}

// Aggregator owns the current Stats snapshot.
type Aggregator struct {
	mu      sync.RWMutex
	current rag.Stats

	client   StatsClient
	registry DocumentRegistry
	logger   *zap.Logger
	now      func() time.Time
}

// NewAggregator returns an aggregator starting from the zero snapshot.
// registry may be nil when no upload cache is wired.
func NewAggregator(client StatsClient, registry DocumentRegistry, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		client:   client,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Current returns the current snapshot.
func (a *Aggregator) Current() rag.Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Refresh fetches the backend snapshot and merges it in. When the backend
// omits the last-indexed timestamp, the previously known one is preserved;
// known information never regresses on a partial response. On error the
// prior snapshot is untouched.
func (a *Aggregator) Refresh(ctx context.Context) (rag.Stats, error) {
	fetched, err := a.client.FetchStats(ctx)
	if err != nil {
		return rag.Stats{}, err
	}

	a.mu.Lock()
	if fetched.LastIndexedAt.IsZero() {
		fetched.LastIndexedAt = a.current.LastIndexedAt
	}
	a.current = fetched
	a.mu.Unlock()

	a.syncRegistry(fetched)
	a.logger.Debug("stats refreshed",
		zap.Int("documents", fetched.DocumentCount),
		zap.Int("chunks", fetched.ChunkCount))
	return fetched, nil
}

// RecordUpload applies the optimistic post-upload update: the now-larger
// document count, the backend-reported total chunk count, and a fresh
// last-indexed timestamp. Allowed to run ahead of the next Refresh.
func (a *Aggregator) RecordUpload(documentCount, totalChunks int) {
	a.mu.Lock()
	a.current.DocumentCount = documentCount
	a.current.ChunkCount = totalChunks
	a.current.LastIndexedAt = a.now()
	snapshot := a.current
	a.mu.Unlock()

	a.syncRegistry(snapshot)
}

// syncRegistry clears the upload cache whenever the aggregated document
// count is zero, however it got there.
func (a *Aggregator) syncRegistry(s rag.Stats) {
	if s.DocumentCount == 0 && a.registry != nil {
		a.registry.Clear()
	}
}
