// Package embedding maps text to fixed-dimension vectors. Providers are
// stateless beyond the configured model; the same provider configuration
// must be used at index-build time and at query time.
package embedding

import "context"

// Provider generates embedding vectors for text.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName identifies the embedding model. An index built with one
	// model must never be queried with another.
	ModelName() string

	// Dimension is the vector dimensionality the provider produces.
	Dimension() int
}
