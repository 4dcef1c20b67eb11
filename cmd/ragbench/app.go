package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ragbench/cmd/ragbench/config"
	"ragbench/internal/conversation"
	"ragbench/internal/gateway"
	"ragbench/internal/history"
	"ragbench/internal/library"
	"ragbench/internal/persist"
	"ragbench/internal/settings"
	"ragbench/internal/stats"
)

// app wires the client components together for one invocation. Each shared
// resource (turn history, settings, stats snapshot, upload cache) is owned
// by exactly one component; everything else goes through that component's
// methods.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	client     *gateway.Client
	state      persist.Store
	registry   *library.Registry
	reconciler *settings.Reconciler
	aggregator *stats.Aggregator
	turns      *conversation.Store
	archive    *history.Archive
}

// newApp builds the component graph from config and flags. log may be nil
// (interactive mode runs without a console logger).
func newApp(log *zap.Logger) (*app, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Debug("config unavailable, using defaults", zap.Error(err))
	}
	if backendURL != "" {
		cfg.BackendURL = backendURL
	}

	client, err := gateway.NewClient(cfg.BackendURL, log.Named("gateway"))
	if err != nil {
		return nil, err
	}

	state := persist.NewFileStore(cfg.ResolveStateDir(), log.Named("persist"))
	registry := library.NewRegistry(state, log.Named("library"))

	a := &app{
		cfg:        cfg,
		logger:     log,
		client:     client,
		state:      state,
		registry:   registry,
		reconciler: settings.NewReconciler(client, state, log.Named("settings")),
		aggregator: stats.NewAggregator(client, registry, log.Named("stats")),
		turns:      conversation.NewStore(client, log.Named("conversation")),
	}

	// The archive is a convenience; a broken database must not block the
	// session.
	archive, err := history.Open(cfg.ResolveHistoryDB(), log.Named("history"))
	if err != nil {
		log.Warn("turn archive unavailable", zap.Error(err))
	} else {
		a.archive = archive
	}
	return a, nil
}

// Close releases resources held by the app.
func (a *app) Close() {
	if a.archive != nil {
		_ = a.archive.Close()
	}
}

// uploadFiles runs one upload through the gateway and applies the follow-up
// bookkeeping: extend the upload cache, then record the optimistic stats
// update.
func (a *app) uploadFiles(ctx context.Context, paths []string, processImages bool) (gateway.UploadResult, error) {
	result, err := a.client.Upload(ctx, paths, processImages)
	if err != nil {
		return gateway.UploadResult{}, err
	}
	docs := library.MapDocuments(result.Documents, time.Now())
	a.registry.Add(docs...)
	a.aggregator.RecordUpload(a.registry.Count(), result.TotalChunks)
	return result, nil
}
