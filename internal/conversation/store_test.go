package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"ragbench/internal/gateway"
	"ragbench/internal/rag"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClient resolves queries from a per-question script. When gate is set,
// Query blocks until the question's gate channel is closed, which lets tests
// control resolution order.
type fakeClient struct {
	mu      sync.Mutex
	results map[string]gateway.QueryResult
	errs    map[string]error
	gates   map[string]chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		results: make(map[string]gateway.QueryResult),
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeClient) Query(ctx context.Context, question string) (gateway.QueryResult, error) {
	f.mu.Lock()
	gate := f.gates[question]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[question]; ok {
		return gateway.QueryResult{}, err
	}
	return f.results[question], nil
}

func TestSubmitRejectsEmptyQuestions(t *testing.T) {
	store := NewStore(newFakeClient(), nil)

	for _, q := range []string{"", "   ", "\n\t  "} {
		if _, ok := store.Submit(context.Background(), q); ok {
			t.Errorf("Submit(%q) created a turn, want no-op", q)
		}
	}
	store.Wait()
	if store.Len() != 0 {
		t.Errorf("expected empty history, got %d turns", store.Len())
	}
}

func TestSubmitSuccess(t *testing.T) {
	client := newFakeClient()
	client.results["What is RAG?"] = gateway.QueryResult{
		Answer: "RAG stands for retrieval-augmented generation.",
		Sources: []gateway.QuerySource{
			{Rank: 1, Score: 0.92, DocumentID: "doc1", ChunkID: "c1", Content: "..."},
		},
	}
	store := NewStore(client, nil)

	id, ok := store.Submit(context.Background(), "  What is RAG?  ")
	if !ok {
		t.Fatal("Submit rejected a non-empty question")
	}
	store.Wait()

	turn, found := store.Get(id)
	if !found {
		t.Fatalf("turn %s not found", id)
	}
	if turn.Status != rag.StatusSuccess {
		t.Fatalf("status = %s, want success", turn.Status)
	}
	if turn.Question != "What is RAG?" {
		t.Errorf("question not trimmed: %q", turn.Question)
	}
	if turn.Answer != "RAG stands for retrieval-augmented generation." {
		t.Errorf("unexpected answer: %q", turn.Answer)
	}
	if len(turn.Sources) != 1 || turn.Sources[0].Rank != 1 || turn.Sources[0].Score != 0.92 {
		t.Errorf("unexpected sources: %+v", turn.Sources)
	}
}

func TestSubmitFailureKeepsTurnInHistory(t *testing.T) {
	client := newFakeClient()
	client.results["first"] = gateway.QueryResult{Answer: "ok"}
	client.errs["X"] = errors.New("backend unreachable: connection refused")
	store := NewStore(client, nil)

	store.Submit(context.Background(), "first")
	id, _ := store.Submit(context.Background(), "X")
	store.Wait()

	if store.Len() != 2 {
		t.Fatalf("history length = %d, want 2", store.Len())
	}
	turns := store.Turns()
	if turns[1].ID != id {
		t.Fatal("failed turn moved from its original position")
	}
	failed := turns[1]
	if failed.Status != rag.StatusError {
		t.Fatalf("status = %s, want error", failed.Status)
	}
	if failed.Answer != "" {
		t.Errorf("answer not cleared: %q", failed.Answer)
	}
	if failed.ErrorMessage == "" {
		t.Error("error message not populated")
	}
}

func TestConcurrentSubmissionsResolveOutOfOrder(t *testing.T) {
	client := newFakeClient()
	gateA := make(chan struct{})
	gateB := make(chan struct{})
	client.gates["alpha"] = gateA
	client.gates["beta"] = gateB
	client.results["alpha"] = gateway.QueryResult{Answer: "answer alpha"}
	client.results["beta"] = gateway.QueryResult{Answer: "answer beta"}

	store := NewStore(client, nil)

	var mu sync.Mutex
	resolved := []string{}
	store.SetOnChange(func(turn rag.Turn) {
		if turn.Status.Terminal() {
			mu.Lock()
			resolved = append(resolved, turn.Question)
			mu.Unlock()
		}
	})

	idA, _ := store.Submit(context.Background(), "alpha")
	idB, _ := store.Submit(context.Background(), "beta")

	if got := store.PendingCount(); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	// Second request's response arrives first.
	close(gateB)
	close(gateA)
	store.Wait()

	turnA, _ := store.Get(idA)
	turnB, _ := store.Get(idB)
	if turnA.Answer != "answer alpha" {
		t.Errorf("turn A answer = %q", turnA.Answer)
	}
	if turnB.Answer != "answer beta" {
		t.Errorf("turn B answer = %q", turnB.Answer)
	}

	// Order in history stays submission order regardless of arrival order.
	turns := store.Turns()
	if turns[0].ID != idA || turns[1].ID != idB {
		t.Error("history order changed after out-of-order resolution")
	}
	if idA == idB {
		t.Error("turn ids not unique")
	}
}

func TestStaleResolutionIsNoOp(t *testing.T) {
	client := newFakeClient()
	client.results["q"] = gateway.QueryResult{Answer: "final"}
	store := NewStore(client, nil)

	id, _ := store.Submit(context.Background(), "q")
	store.Wait()

	// A late duplicate response for a terminal turn is discarded.
	store.succeed(id, gateway.QueryResult{Answer: "late duplicate"})
	store.fail(id, "late failure")

	turn, _ := store.Get(id)
	if turn.Answer != "final" || turn.Status != rag.StatusSuccess {
		t.Errorf("terminal turn mutated by stale resolution: %+v", turn)
	}

	// Unknown ids are ignored entirely.
	store.succeed("no-such-id", gateway.QueryResult{Answer: "ghost"})
	if store.Len() != 1 {
		t.Errorf("history length = %d after stale resolutions, want 1", store.Len())
	}
}

func TestResolutionOnlyTouchesMatchingTurn(t *testing.T) {
	client := newFakeClient()
	gate := make(chan struct{})
	client.gates["slow"] = gate
	client.results["slow"] = gateway.QueryResult{Answer: "slow done"}
	client.results["fast"] = gateway.QueryResult{Answer: "fast done"}

	store := NewStore(client, nil)
	slowID, _ := store.Submit(context.Background(), "slow")
	fastID, _ := store.Submit(context.Background(), "fast")

	// Wait for the fast turn to resolve while the slow one is pending.
	for {
		turn, _ := store.Get(fastID)
		if turn.Status.Terminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}

	slow, _ := store.Get(slowID)
	if slow.Status != rag.StatusPending {
		t.Fatalf("unrelated turn mutated: %+v", slow)
	}

	close(gate)
	store.Wait()
}

func TestMapSourcesRankFallbackAndScoreSentinel(t *testing.T) {
	chunkIdx := 7
	raw := []gateway.QuerySource{
		{Rank: 3, Score: 0.9, DocumentID: "d1", ChunkID: "c1", Content: "a"},
		{Score: 0.5, DocumentID: "d2", ChunkID: "c2", Content: "b", ChunkIndex: &chunkIdx},
		{DocumentID: "d3", ChunkID: "c3", Content: "c"}, // no rank, no score
	}

	mapped := MapSources(raw)
	if mapped[0].Rank != 3 {
		t.Errorf("explicit rank overridden: %d", mapped[0].Rank)
	}
	if mapped[1].Rank != 2 || mapped[2].Rank != 3 {
		t.Errorf("positional fallback wrong: %d, %d", mapped[1].Rank, mapped[2].Rank)
	}
	if mapped[2].Score != 0 {
		t.Errorf("missing score = %f, want 0 sentinel", mapped[2].Score)
	}
	if mapped[1].ChunkIndex == nil || *mapped[1].ChunkIndex != 7 {
		t.Error("chunk index lost in mapping")
	}
	if mapped[1].Snippet != "b" {
		t.Errorf("snippet = %q", mapped[1].Snippet)
	}
}

func TestOnChangeFiresForInsertAndResolve(t *testing.T) {
	client := newFakeClient()
	client.results["q"] = gateway.QueryResult{Answer: "a"}
	store := NewStore(client, nil)

	var mu sync.Mutex
	var statuses []rag.TurnStatus
	store.SetOnChange(func(turn rag.Turn) {
		mu.Lock()
		statuses = append(statuses, turn.Status)
		mu.Unlock()
	})

	store.Submit(context.Background(), "q")
	store.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 2 || statuses[0] != rag.StatusPending || statuses[1] != rag.StatusSuccess {
		t.Errorf("onChange sequence = %v, want [pending success]", statuses)
	}
}
