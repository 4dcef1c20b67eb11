// Package conversation owns the ordered history of question/answer turns
// and drives each turn through its lifecycle: optimistic pending insertion,
// asynchronous resolution, and terminal success or error.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragbench/internal/gateway"
	"ragbench/internal/rag"
)

// QueryClient is the slice of the backend gateway the store needs.
type QueryClient interface {
	Query(ctx context.Context, question string) (gateway.QueryResult, error)
}

// Store is the turn store. All mutation goes through its methods; the turn
// sequence is owned exclusively by one Store for the session's lifetime.
type Store struct {
	mu    sync.RWMutex
	turns []*rag.Turn
	byID  map[string]*rag.Turn

	client QueryClient
	logger *zap.Logger

	// now and newID are swappable for tests.
	now   func() time.Time
	newID func() string

	onChange func(rag.Turn)
	wg       sync.WaitGroup
}

// NewStore creates an empty store that submits questions through client.
func NewStore(client QueryClient, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		byID:   make(map[string]*rag.Turn),
		client: client,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// SetOnChange registers a hook invoked with a snapshot of the affected turn
// after every insertion and resolution. Passing nil detaches the hook.
func (s *Store) SetOnChange(fn func(rag.Turn)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Submit appends a pending turn for question and issues the backend query
// asynchronously. Questions that are empty after trimming are a no-op and
// return ok=false. Concurrent submissions are allowed; each call produces an
// independent turn and an independent request, correlated strictly by the
// returned turn id.
func (s *Store) Submit(ctx context.Context, question string) (id string, ok bool) {
	q := strings.TrimSpace(question)
	if q == "" {
		return "", false
	}

	turn := &rag.Turn{
		ID:        s.newID(),
		Question:  q,
		CreatedAt: s.now(),
		Sources:   []rag.Source{},
		Status:    rag.StatusPending,
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.byID[turn.ID] = turn
	snapshot := *turn
	s.mu.Unlock()

	s.logger.Debug("turn submitted", zap.String("turn_id", turn.ID))
	s.notify(snapshot)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := s.client.Query(ctx, q)
		if err != nil {
			s.fail(turn.ID, err.Error())
			return
		}
		s.succeed(turn.ID, result)
	}()

	return turn.ID, true
}

// succeed transitions the matching turn to its terminal success state,
// replacing the answer and the source list. Stale resolutions (unknown id
// or already-terminal turn) are silently discarded.
func (s *Store) succeed(id string, result gateway.QueryResult) {
	s.mu.Lock()
	turn, live := s.byID[id]
	if !live || turn.Status.Terminal() {
		s.mu.Unlock()
		s.logger.Debug("discarding stale response", zap.String("turn_id", id))
		return
	}
	turn.Status = rag.StatusSuccess
	turn.Answer = result.Answer
	turn.Sources = MapSources(result.Sources)
	snapshot := *turn
	s.mu.Unlock()

	s.logger.Debug("turn resolved",
		zap.String("turn_id", id),
		zap.Int("sources", len(snapshot.Sources)))
	s.notify(snapshot)
}

// fail transitions the matching turn to its terminal error state. The turn
// stays in the history at its original position; the answer is cleared and
// the failure description attached.
func (s *Store) fail(id, message string) {
	s.mu.Lock()
	turn, live := s.byID[id]
	if !live || turn.Status.Terminal() {
		s.mu.Unlock()
		s.logger.Debug("discarding stale failure", zap.String("turn_id", id))
		return
	}
	turn.Status = rag.StatusError
	turn.Answer = ""
	turn.ErrorMessage = message
	snapshot := *turn
	s.mu.Unlock()

	s.logger.Warn("turn failed", zap.String("turn_id", id), zap.String("reason", message))
	s.notify(snapshot)
}

func (s *Store) notify(turn rag.Turn) {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn(turn)
	}
}

// Turns returns a copy of the ordered history.
func (s *Store) Turns() []rag.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rag.Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = *t
	}
	return out
}

// Get returns a snapshot of the turn with the given id.
func (s *Store) Get(id string) (rag.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turn, ok := s.byID[id]
	if !ok {
		return rag.Turn{}, false
	}
	return *turn, true
}

// Len returns the number of turns in the history.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// PendingCount returns how many turns are still awaiting resolution.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.turns {
		if t.Status == rag.StatusPending {
			n++
		}
	}
	return n
}

// Wait blocks until every outstanding query goroutine has resolved. Used by
// the one-shot commands and tests; the TUI never needs it.
func (s *Store) Wait() {
	s.wg.Wait()
}

// MapSources converts wire source records into domain Sources. A missing
// rank falls back to the 1-based position in the returned array. A missing
// score decodes to the 0 sentinel rather than rejecting the whole response;
// the backend pipeline always emits a score, so the sentinel only appears
// against a misbehaving backend and an answer is still worth keeping.
func MapSources(raw []gateway.QuerySource) []rag.Source {
	out := make([]rag.Source, len(raw))
	for i, src := range raw {
		rank := src.Rank
		if rank <= 0 {
			rank = i + 1
		}
		out[i] = rag.Source{
			Rank:          rank,
			Score:         src.Score,
			DocumentID:    src.DocumentID,
			ChunkID:       src.ChunkID,
			ChunkIndex:    src.ChunkIndex,
			PageID:        src.PageID,
			Snippet:       src.Content,
			IsChildChunk:  src.IsChildChunk,
			ParentBlockID: src.ParentBlockID,
			DocumentURL:   src.DocumentURL,
		}
	}
	return out
}
