package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/persist"
	"ragbench/internal/rag"
)

// echoClient confirms drafts after passing them through transform.
type echoClient struct {
	transform func(rag.Settings) rag.Settings
	err       error
	lastDraft rag.Settings
}

func (c *echoClient) ApplySettings(ctx context.Context, draft rag.Settings) (rag.Settings, error) {
	c.lastDraft = draft
	if c.err != nil {
		return rag.Settings{}, c.err
	}
	if c.transform != nil {
		return c.transform(draft), nil
	}
	return draft, nil
}

func TestProposeAdoptsBackendEcho(t *testing.T) {
	// Backend clamps top_k to 3.
	client := &echoClient{transform: func(s rag.Settings) rag.Settings {
		s.TopK = 3
		return s
	}}
	r := NewReconciler(client, persist.NewMemStore(), nil)

	draft := r.Current()
	draft.TopK = 5

	confirmed, err := r.Propose(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, 3, confirmed.TopK, "authoritative value must be the backend echo, not the draft")
	assert.Equal(t, 3, r.Current().TopK)
}

func TestProposeFailureLeavesCurrentUntouched(t *testing.T) {
	client := &echoClient{err: errors.New("apply settings: chunk_overlap too large")}
	r := NewReconciler(client, persist.NewMemStore(), nil)
	before := r.Current()

	draft := before
	draft.ChunkOverlap = 9999
	_, err := r.Propose(context.Background(), draft)

	require.Error(t, err)
	assert.Equal(t, before, r.Current())
}

func TestProposePersistsConfirmedValue(t *testing.T) {
	store := persist.NewMemStore()
	client := &echoClient{}

	r := NewReconciler(client, store, nil)
	draft := r.Current()
	draft.Temperature = 0.7
	_, err := r.Propose(context.Background(), draft)
	require.NoError(t, err)

	// A fresh reconciler over the same store sees the confirmed value.
	r2 := NewReconciler(client, store, nil)
	assert.Equal(t, 0.7, r2.Current().Temperature)
}

func TestNewReconcilerFallsBackToDefault(t *testing.T) {
	r := NewReconciler(&echoClient{}, persist.NewMemStore(), nil)
	assert.Equal(t, Default(), r.Current())
}

func TestResetToDefaultDoesNotContactBackend(t *testing.T) {
	client := &echoClient{err: errors.New("backend down")}
	r := NewReconciler(client, nil, nil)

	got := r.ResetToDefault()
	assert.Equal(t, Default(), got)
	// Current is untouched until a successful Propose.
	assert.Equal(t, Default(), r.Current())
}

func TestPresetsArePureMappings(t *testing.T) {
	assert.Equal(t, 0.1, StyleFactual.Temperature())
	assert.Equal(t, 0.3, StyleBalanced.Temperature())
	assert.Equal(t, 0.7, StyleCreative.Temperature())

	assert.Equal(t, 3, DepthFast.TopK())
	assert.Equal(t, 5, DepthBalanced.TopK())
	assert.Equal(t, 10, DepthThorough.TopK())

	assert.Equal(t, 500, DepthFast.MaxTokens())
	assert.Equal(t, 900, DepthBalanced.MaxTokens())
	assert.Equal(t, 1400, DepthThorough.MaxTokens())
}

func TestApplyPresetsSeedsDraftOnly(t *testing.T) {
	base := Default()
	draft := ApplyPresets(base, StyleCreative, DepthThorough)

	assert.Equal(t, 0.7, draft.Temperature)
	assert.Equal(t, 10, draft.TopK)
	assert.Equal(t, 1400, draft.MaxTokens)
	// Untouched fields carry over from the base.
	assert.Equal(t, base.LLMModel, draft.LLMModel)
	assert.Equal(t, base.ChunkSize, draft.ChunkSize)
}

func TestPresetClassification(t *testing.T) {
	assert.Equal(t, StyleFactual, StyleFor(0.1))
	assert.Equal(t, StyleBalanced, StyleFor(0.3))
	assert.Equal(t, StyleCreative, StyleFor(0.9))

	assert.Equal(t, DepthFast, DepthFor(3))
	assert.Equal(t, DepthBalanced, DepthFor(5))
	assert.Equal(t, DepthThorough, DepthFor(10))
}
