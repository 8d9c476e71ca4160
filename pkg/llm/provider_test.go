package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, _ Intent) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string, intent Intent) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text}, intent)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbeddingSize() int { return f.dim }
func (f *fakeEmbedder) Name() string       { return "fake" }

func TestRegisterAndNewEmbeddingProvider(t *testing.T) {
	RegisterEmbeddingProvider("fake-embed", func(config map[string]any) (EmbeddingProvider, error) {
		dim := 4
		if v, ok := config["dimension"].(int); ok {
			dim = v
		}
		return &fakeEmbedder{dim: dim}, nil
	})

	p, err := NewEmbeddingProvider("fake-embed", map[string]any{"dimension": 8})
	require.NoError(t, err)
	assert.Equal(t, 8, p.EmbeddingSize())

	vecs, err := p.Embed(context.Background(), []string{"a", "b"}, IntentDocument)
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 8)
}

func TestNewEmbeddingProviderUnknown(t *testing.T) {
	_, err := NewEmbeddingProvider("no-such-provider", nil)
	assert.Error(t, err)
}

func TestNewGenerationProviderUnknown(t *testing.T) {
	_, err := NewGenerationProvider("no-such-provider", nil)
	assert.Error(t, err)
}

func TestListProviders(t *testing.T) {
	RegisterEmbeddingProvider("fake-list", func(map[string]any) (EmbeddingProvider, error) {
		return &fakeEmbedder{dim: 2}, nil
	})

	names := ListProviders()
	assert.Contains(t, names, "fake-list")
}
