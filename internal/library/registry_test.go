package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ragbench/internal/gateway"
	"ragbench/internal/persist"
	"ragbench/internal/rag"
)

func TestMapDocumentsFallbackChain(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	raw := []gateway.RawDocument{
		{DocumentID: "doc-1", Filename: "paper.pdf", Pages: 3, ChunkCount: 12},
		{FileName: "legacy_name.pdf", ID: "alt-id"},
		{SafeName: "safe_name.pdf"},
		{}, // nothing usable
	}

	docs := MapDocuments(raw, now)

	assert.Equal(t, "doc-1", docs[0].DocumentID)
	assert.Equal(t, "paper.pdf", docs[0].Filename)
	assert.Equal(t, 3, docs[0].Pages)
	assert.Equal(t, 12, docs[0].ChunkCount)
	assert.Equal(t, now, docs[0].UploadedAt)

	assert.Equal(t, "alt-id", docs[1].DocumentID)
	assert.Equal(t, "legacy_name.pdf", docs[1].Filename)

	assert.Equal(t, "safe_name.pdf", docs[2].DocumentID)
	assert.Equal(t, "safe_name.pdf", docs[2].Filename)

	assert.Equal(t, "document_3", docs[3].Filename)
	assert.Equal(t, "document_3", docs[3].DocumentID)
}

func TestRegistryAddPersists(t *testing.T) {
	store := persist.NewMemStore()
	reg := NewRegistry(store, nil)

	reg.Add(rag.UploadedDocument{DocumentID: "d1", Filename: "a.pdf"})
	reg.Add(rag.UploadedDocument{DocumentID: "d2", Filename: "b.pdf"})

	assert.Equal(t, 2, reg.Count())

	// A fresh registry over the same store reloads the list.
	reloaded := NewRegistry(store, nil)
	docs := reloaded.All()
	assert.Len(t, docs, 2)
	assert.Equal(t, "d1", docs[0].DocumentID)
	assert.Equal(t, "d2", docs[1].DocumentID)
}

func TestRegistryClearPersistsEmpty(t *testing.T) {
	store := persist.NewMemStore()
	reg := NewRegistry(store, nil)
	reg.Add(rag.UploadedDocument{DocumentID: "d1"})

	reg.Clear()

	assert.Equal(t, 0, reg.Count())

	var persisted []rag.UploadedDocument
	assert.True(t, store.Load(StorageKey, &persisted), "empty list must be persisted, not deleted")
	assert.Empty(t, persisted)

	reloaded := NewRegistry(store, nil)
	assert.Equal(t, 0, reloaded.Count())
}

func TestRegistryAllReturnsCopy(t *testing.T) {
	reg := NewRegistry(persist.NewMemStore(), nil)
	reg.Add(rag.UploadedDocument{DocumentID: "d1", Filename: "a.pdf"})

	docs := reg.All()
	docs[0].Filename = "mutated.pdf"

	assert.Equal(t, "a.pdf", reg.All()[0].Filename)
}
