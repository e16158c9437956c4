package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultOpenAIModel is used when no embedding model is configured.
	DefaultOpenAIModel = "text-embedding-3-small"
	// DefaultOpenAIDimension is the native dimensionality of the default model.
	DefaultOpenAIDimension = 1536

	// maxOpenAIBatch is the input limit of the embeddings endpoint.
	maxOpenAIBatch = 100
)

// OpenAIProvider generates embeddings through the OpenAI embeddings API.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIProvider creates a provider for the given API key, model, and
// dimensionality. Empty model or non-positive dimension fall back to the
// defaults.
func NewOpenAIProvider(apiKey, model string, dimension int) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dimension <= 0 {
		dimension = DefaultOpenAIDimension
	}
	return &OpenAIProvider{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		dimension: dimension,
	}
}

// Embed returns the embedding vector for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per input text, batching requests to respect
// the API's input limit. Returns nil (not error) for empty/nil input.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxOpenAIBatch {
		end := min(start+maxOpenAIBatch, len(texts))

		params := openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(p.model),
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts[start:end],
			},
			Dimensions: openai.Int(int64(p.dimension)),
		}

		resp, err := p.client.Embeddings.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("generating embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), end-start)
		}

		for _, data := range resp.Data {
			vec := make([]float32, len(data.Embedding))
			for i, v := range data.Embedding {
				vec[i] = float32(v)
			}
			results = append(results, vec)
		}
	}

	return results, nil
}

func (p *OpenAIProvider) ModelName() string { return p.model }

func (p *OpenAIProvider) Dimension() int { return p.dimension }

var _ Provider = (*OpenAIProvider)(nil)
