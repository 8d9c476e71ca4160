package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSystemPrompt(t *testing.T) {
	r, err := NewResolver("en")
	require.NoError(t, err)

	got, err := r.Resolve(GroupRAG, KeySystemPrompt, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "documents")
}

func TestResolveDocumentPrompt(t *testing.T) {
	r, err := NewResolver("en")
	require.NoError(t, err)

	got, err := r.Resolve(GroupRAG, KeyDocumentPrompt, map[string]any{
		"doc_num":    1,
		"chunk_text": "hello world",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "## Document No: 1")
	assert.Contains(t, got, "hello world")
}

func TestResolveFooterPrompt(t *testing.T) {
	r, err := NewResolver("en")
	require.NoError(t, err)

	got, err := r.Resolve(GroupRAG, KeyFooterPrompt, map[string]any{
		"query": "what is rag?",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "what is rag?")
	assert.Contains(t, got, "## Answer:")
}

func TestResolveUnknownKey(t *testing.T) {
	r, err := NewResolver("en")
	require.NoError(t, err)

	_, err = r.Resolve(GroupRAG, "no_such_key", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestResolveLanguageFallback(t *testing.T) {
	// Unknown language falls back to the default language.
	r, err := NewResolver("fr")
	require.NoError(t, err)

	got, err := r.Resolve(GroupRAG, KeySystemPrompt, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestRegisterOverride(t *testing.T) {
	r, err := NewResolver("en")
	require.NoError(t, err)

	require.NoError(t, r.Register("en", GroupRAG, KeySystemPrompt, "custom: {{.name}}"))

	got, err := r.Resolve(GroupRAG, KeySystemPrompt, map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "custom: x", got)
}

func TestResolveChineseLocale(t *testing.T) {
	r, err := NewResolver("zh")
	require.NoError(t, err)

	got, err := r.Resolve(GroupRAG, KeyDocumentPrompt, map[string]any{
		"doc_num":    2,
		"chunk_text": "内容",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "2")
	assert.Contains(t, got, "内容")
}
