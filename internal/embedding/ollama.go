package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lapiq/lapiq/internal/ollama"
)

// OllamaProvider generates embeddings through a local Ollama instance.
type OllamaProvider struct {
	client    *ollama.Client
	model     string
	dimension int
}

// NewOllamaProvider creates a provider using the given client, model name,
// and expected vector dimensionality.
func NewOllamaProvider(client *ollama.Client, model string, dimension int) *OllamaProvider {
	return &OllamaProvider{client: client, model: model, dimension: dimension}
}

// Embed returns the embedding vector for a single text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.client.Embed(ctx, p.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently.
// Returns nil (not error) for empty/nil input.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the local server.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := p.client.Embed(gCtx, p.model, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *OllamaProvider) ModelName() string { return p.model }

func (p *OllamaProvider) Dimension() int { return p.dimension }

var _ Provider = (*OllamaProvider)(nil)
