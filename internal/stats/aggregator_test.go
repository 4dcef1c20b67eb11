package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ragbench/internal/rag"
)

type fakeStatsClient struct {
	snapshot rag.Stats
	err      error
	calls    int
}

func (f *fakeStatsClient) FetchStats(ctx context.Context) (rag.Stats, error) {
	f.calls++
	if f.err != nil {
		return rag.Stats{}, f.err
	}
	return f.snapshot, nil
}

type fakeRegistry struct {
	cleared int
}

func (f *fakeRegistry) Clear() { f.cleared++ }

func TestRefreshAdoptsBackendSnapshot(t *testing.T) {
	indexed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	client := &fakeStatsClient{snapshot: rag.Stats{DocumentCount: 4, ChunkCount: 120, LastIndexedAt: indexed}}
	agg := NewAggregator(client, nil, nil)

	got, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if diff := cmp.Diff(client.snapshot, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshPreservesKnownTimestamp(t *testing.T) {
	indexed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	client := &fakeStatsClient{snapshot: rag.Stats{DocumentCount: 4, ChunkCount: 120, LastIndexedAt: indexed}}
	agg := NewAggregator(client, nil, nil)

	if _, err := agg.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Backend stops reporting the timestamp; known information must not
	// regress.
	client.snapshot = rag.Stats{DocumentCount: 5, ChunkCount: 150}
	got, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastIndexedAt.Equal(indexed) {
		t.Errorf("LastIndexedAt = %v, want preserved %v", got.LastIndexedAt, indexed)
	}
	if got.DocumentCount != 5 || got.ChunkCount != 150 {
		t.Errorf("counts not adopted: %+v", got)
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	client := &fakeStatsClient{snapshot: rag.Stats{DocumentCount: 2, ChunkCount: 40}}
	agg := NewAggregator(client, nil, nil)

	first, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated refresh changed the snapshot:\n%s", diff)
	}
}

func TestRefreshErrorKeepsPriorSnapshot(t *testing.T) {
	client := &fakeStatsClient{snapshot: rag.Stats{DocumentCount: 3, ChunkCount: 60}}
	agg := NewAggregator(client, nil, nil)
	if _, err := agg.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	client.err = errors.New("backend unreachable")
	if _, err := agg.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if agg.Current().DocumentCount != 3 {
		t.Errorf("prior snapshot mutated on failed refresh: %+v", agg.Current())
	}
}

func TestRecordUploadRunsAheadOfRefresh(t *testing.T) {
	agg := NewAggregator(&fakeStatsClient{}, nil, nil)
	now := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	agg.now = func() time.Time { return now }

	agg.RecordUpload(2, 75)

	got := agg.Current()
	if got.DocumentCount != 2 || got.ChunkCount != 75 {
		t.Errorf("optimistic update wrong: %+v", got)
	}
	if !got.LastIndexedAt.Equal(now) {
		t.Errorf("LastIndexedAt = %v, want %v", got.LastIndexedAt, now)
	}
}

func TestZeroDocumentsClearsRegistryViaRefresh(t *testing.T) {
	registry := &fakeRegistry{}
	client := &fakeStatsClient{snapshot: rag.Stats{DocumentCount: 0, ChunkCount: 0}}
	agg := NewAggregator(client, registry, nil)

	if _, err := agg.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if registry.cleared != 1 {
		t.Errorf("registry cleared %d times, want 1", registry.cleared)
	}
}

func TestZeroDocumentsClearsRegistryViaRecordUpload(t *testing.T) {
	registry := &fakeRegistry{}
	agg := NewAggregator(&fakeStatsClient{}, registry, nil)

	agg.RecordUpload(0, 0)
	if registry.cleared != 1 {
		t.Errorf("registry cleared %d times, want 1", registry.cleared)
	}

	agg.RecordUpload(3, 90)
	if registry.cleared != 1 {
		t.Errorf("registry cleared on non-zero count")
	}
}
