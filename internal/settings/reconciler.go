// Package settings holds the authoritative pipeline Settings value and
// mediates changes through the backend. Local drafts are disposable scratch
// state; only a backend-confirmed copy ever replaces the authoritative one.
package settings

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ragbench/internal/persist"
	"ragbench/internal/rag"
)

// StorageKey is the persistence key for the confirmed Settings snapshot.
const StorageKey = "settings"

// ApplyClient is the slice of the backend gateway the reconciler needs.
type ApplyClient interface {
	ApplySettings(ctx context.Context, draft rag.Settings) (rag.Settings, error)
}

// Default returns the client's baseline Settings.
func Default() rag.Settings {
	return rag.Settings{
		LLMModel:     "qwen/qwen3-vl-4b",
		TopK:         5,
		ChunkSize:    100,
		ChunkOverlap: 20,
		Temperature:  0.2,
		MaxTokens:    2048,
	}
}

// Reconciler owns the single authoritative Settings value.
type Reconciler struct {
	mu      sync.RWMutex
	current rag.Settings

	client ApplyClient
	store  persist.Store
	logger *zap.Logger
}

// NewReconciler loads the last confirmed Settings from store (falling back
// to the baseline) and returns a reconciler bound to client.
func NewReconciler(client ApplyClient, store persist.Store, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	current := Default()
	if store != nil {
		store.Load(StorageKey, &current)
	}
	return &Reconciler{
		current: current,
		client:  client,
		store:   store,
		logger:  logger,
	}
}

// Current returns the authoritative Settings value.
func (r *Reconciler) Current() rag.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Propose sends the full draft to the backend. On success the authoritative
// value becomes exactly what the backend echoed back, not the draft: the
// backend may normalize, clamp, or reinterpret any field. On failure the
// authoritative value is untouched and the draft is discarded.
func (r *Reconciler) Propose(ctx context.Context, draft rag.Settings) (rag.Settings, error) {
	confirmed, err := r.client.ApplySettings(ctx, draft)
	if err != nil {
		r.logger.Warn("settings proposal rejected", zap.Error(err))
		return rag.Settings{}, err
	}

	r.mu.Lock()
	r.current = confirmed
	r.mu.Unlock()

	if r.store != nil {
		r.store.Save(StorageKey, confirmed)
	}
	r.logger.Info("settings confirmed",
		zap.String("model", confirmed.LLMModel),
		zap.Int("top_k", confirmed.TopK),
		zap.Float64("temperature", confirmed.Temperature))
	return confirmed, nil
}

// ResetToDefault returns the baseline Settings without contacting the
// backend. Callers propose the result if they want it persisted.
func (r *Reconciler) ResetToDefault() rag.Settings {
	return Default()
}
