package watcher

import (
	"context"
	"sync"
	"testing"
	"time"
)

type uploadRecorder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (u *uploadRecorder) upload(ctx context.Context, paths []string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.batches = append(u.batches, paths)
	return nil
}

func (u *uploadRecorder) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.batches)
}

func TestFlushSettledUploadsOnlyQuietFiles(t *testing.T) {
	rec := &uploadRecorder{}
	w := New(t.TempDir(), 50*time.Millisecond, rec.upload, nil)

	w.pending["/drop/old.pdf"] = time.Now().Add(-time.Second)
	w.pending["/drop/busy.pdf"] = time.Now()

	w.flushSettled(context.Background())

	if rec.count() != 1 {
		t.Fatalf("expected one batch, got %d", rec.count())
	}
	if len(rec.batches[0]) != 1 || rec.batches[0][0] != "/drop/old.pdf" {
		t.Errorf("wrong batch: %v", rec.batches[0])
	}
	if _, stillPending := w.pending["/drop/busy.pdf"]; !stillPending {
		t.Error("busy file flushed before settling")
	}
	if _, gone := w.pending["/drop/old.pdf"]; gone {
		t.Error("settled file not removed from pending")
	}
}

func TestFlushSettledRequeuesFailedBatch(t *testing.T) {
	rec := &uploadRecorder{err: context.DeadlineExceeded}
	w := New(t.TempDir(), 50*time.Millisecond, rec.upload, nil)

	w.pending["/drop/a.pdf"] = time.Now().Add(-time.Second)
	w.flushSettled(context.Background())

	if _, requeued := w.pending["/drop/a.pdf"]; !requeued {
		t.Error("failed batch not requeued for retry")
	}
}

func TestIsPDF(t *testing.T) {
	cases := map[string]bool{
		"a.pdf":      true,
		"A.PDF":      true,
		"notes.txt":  false,
		"archive":    false,
		"weird.pdfx": false,
	}
	for path, want := range cases {
		if got := isPDF(path); got != want {
			t.Errorf("isPDF(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	rec := &uploadRecorder{}
	w := New(t.TempDir(), 20*time.Millisecond, rec.upload, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
