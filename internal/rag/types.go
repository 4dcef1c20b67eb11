// Package rag defines the domain value objects shared by the workbench
// client: pipeline settings, index statistics, uploaded documents, and the
// conversation turn with its evidence sources.
package rag

import "time"

// Settings is the authoritative configuration for the question-answering
// pipeline. It is replaced as a whole; no component mutates individual
// fields of a shared Settings value.
type Settings struct {
	// LLMModel identifies the generation model on the backend.
	LLMModel string `json:"llm_model"`
	// TopK is the number of retrieved chunks considered per answer.
	TopK int `json:"top_k"`
	// ChunkSize is the target text length of each indexed chunk.
	ChunkSize int `json:"chunk_size"`
	// ChunkOverlap is the overlap between adjacent chunks. By convention
	// smaller than ChunkSize, not enforced.
	ChunkOverlap int `json:"chunk_overlap"`
	// Temperature controls sampling creativity (advisory range 0-2).
	Temperature float64 `json:"temperature"`
	// MaxTokens is the output token budget for generated answers.
	MaxTokens int `json:"max_tokens"`
}

// Stats is the aggregated index snapshot shown in the dashboard. Derived
// state: always the result of merging a backend snapshot with locally known
// deltas, never independently authoritative.
type Stats struct {
	DocumentCount int `json:"documentCount"`
	ChunkCount    int `json:"chunkCount"`
	// LastIndexedAt is zero when no indexing time is known.
	LastIndexedAt time.Time `json:"lastIndexedAt"`
}

// UploadedDocument describes one document accepted by the backend store.
// Created only from a successful upload response and never mutated.
type UploadedDocument struct {
	DocumentID string    `json:"documentId"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploadedAt"`
	// Pages is 0 when the backend did not report a page count.
	Pages int `json:"pages,omitempty"`
	// ChunkCount is 0 when the backend did not report per-document chunks.
	ChunkCount int `json:"chunkCount,omitempty"`
}

// TurnStatus is the lifecycle state of a conversation turn.
type TurnStatus string

const (
	// StatusPending marks a turn whose query is still in flight.
	StatusPending TurnStatus = "pending"
	// StatusSuccess is terminal: the answer and sources are final.
	StatusSuccess TurnStatus = "success"
	// StatusError is terminal: the query failed and ErrorMessage is set.
	StatusError TurnStatus = "error"
)

// Terminal reports whether the status permits no further transitions.
func (s TurnStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Turn is one question/answer exchange. The ID is generated client-side and
// is the sole correlation key between a turn and its in-flight request.
type Turn struct {
	ID        string     `json:"id"`
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	CreatedAt time.Time  `json:"createdAt"`
	Sources   []Source   `json:"sources"`
	Status    TurnStatus `json:"status"`
	// ErrorMessage is set iff Status == StatusError.
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Source is one retrieved evidence item attached to a successful turn.
// Sources keep the backend's order and are immutable once attached.
type Source struct {
	// Rank is the 1-based retrieval position (1 = best).
	Rank int `json:"rank"`
	// Score is the retrieval relevance score, higher is better. No fixed
	// range is guaranteed by the backend.
	Score      float64 `json:"score"`
	DocumentID string  `json:"documentId"`
	ChunkID    string  `json:"chunkId"`
	// ChunkIndex is nil when the backend omits the in-document index.
	ChunkIndex *int `json:"chunkIndex,omitempty"`
	// PageID is nil when no page reference is available.
	PageID *int `json:"pageId,omitempty"`
	// Snippet is the evidence text shown to the user.
	Snippet string `json:"snippet"`
	// IsChildChunk and ParentBlockID carry hierarchical retrieval metadata.
	IsChildChunk  bool   `json:"isChildChunk,omitempty"`
	ParentBlockID string `json:"parentBlockId,omitempty"`
	// DocumentURL is an absolute link to the source document, empty when
	// the backend returned none.
	DocumentURL string `json:"documentUrl,omitempty"`
}
