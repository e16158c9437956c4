// Package fusion orchestrates a query end to end: embed the query, search
// the vector index, resolve hits to chunks, join the referenced products
// against the attribute store, and assemble the grounded context handed to
// prompt construction. Each call is independent and stateless; the engine
// itself is read-only after construction and safe for concurrent use.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lapiq/lapiq/internal/catalog"
	"github.com/lapiq/lapiq/internal/embedding"
	"github.com/lapiq/lapiq/internal/storage"
	"github.com/lapiq/lapiq/internal/vectorindex"
)

const (
	// DefaultTopK favors precision: the index is exact, so a narrow
	// retrieval breadth returns the genuinely closest chunks.
	DefaultTopK = 10

	// MaxHistoryTurns bounds the conversation history carried into the
	// fused context.
	MaxHistoryTurns = 5
)

// RetrievalError indicates the embedding provider failed at query time.
// The request failed but can be retried later.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval failed: %v", e.Err) }

func (e *RetrievalError) Unwrap() error { return e.Err }

// Turn is one conversation exchange, oldest first. Purely a formatting
// input; never persisted beyond the active session.
type Turn struct {
	Role    string
	Content string
}

// RetrievedChunk is a resolved index hit: the full chunk record plus its
// distance to the query.
type RetrievedChunk struct {
	catalog.Chunk
	Distance float32
}

// FusedContext is the assembled bundle of static evidence and joined
// dynamic facts for one query.
type FusedContext struct {
	Query string

	// Chunks are ordered by retrieval rank (nearest first). Citations are
	// carried verbatim from the source chunks.
	Chunks []RetrievedChunk

	// Products lists the distinct product IDs referenced by Chunks in
	// first-seen order. The order is deterministic and decides which
	// product's attributes lead the assembled context.
	Products []string

	// Attributes maps product ID to its dynamic block. A product that is
	// missing from the attribute store has no entry here and appears in
	// MissingProducts instead.
	Attributes map[string]storage.AttributeBlock

	// MissingProducts are referenced product IDs with no attribute row.
	// The join is lenient on purpose; this field keeps it observable.
	MissingProducts []string

	// History is the caller-supplied conversation, bounded to the most
	// recent MaxHistoryTurns turns.
	History []Turn

	// DynamicDataAvailable is false when the attribute store was
	// unreachable and the context is static-only. It stays true when the
	// store answered but simply had nothing relevant.
	DynamicDataAvailable bool
}

// AttributeSource is the read surface of the attribute store the engine needs.
type AttributeSource interface {
	Attributes(ctx context.Context, sku string, historyLimit int) (storage.AttributeBlock, error)
}

// Embedder is the single call the engine needs from the embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine fuses vector retrieval with attribute-store lookups.
type Engine struct {
	embedder     Embedder
	index        *vectorindex.Index
	attrs        AttributeSource
	topK         int
	historyLimit int
	logger       *slog.Logger
}

// NewEngine wires the engine and verifies at construction time that the
// index was built with the same embedding model the provider is configured
// for. A mismatch is fatal: the engine must refuse to serve rather than
// return silently wrong neighbors.
func NewEngine(provider embedding.Provider, index *vectorindex.Index, attrs AttributeSource, topK int) (*Engine, error) {
	if err := index.Verify(provider); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{
		embedder:     provider,
		index:        index,
		attrs:        attrs,
		topK:         topK,
		historyLimit: 5,
		logger:       slog.Default(),
	}, nil
}

// AnswerContext runs the retrieval-fusion pipeline for one query.
// k <= 0 uses the engine's configured retrieval breadth.
//
// An embedding failure aborts the request with *RetrievalError. An
// unreachable attribute store degrades the context to static-only with
// DynamicDataAvailable set to false; it never fails the request.
func (e *Engine) AnswerContext(ctx context.Context, query string, k int, history []Turn) (FusedContext, error) {
	if k <= 0 {
		k = e.topK
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return FusedContext{}, &RetrievalError{Err: fmt.Errorf("embedding query: %w", err)}
	}

	hits, err := e.index.Search(vec, k)
	if err != nil {
		return FusedContext{}, fmt.Errorf("searching index: %w", err)
	}

	fc := FusedContext{
		Query:                query,
		Attributes:           make(map[string]storage.AttributeBlock),
		History:              boundHistory(history),
		DynamicDataAvailable: true,
	}

	// Resolve hits and collect distinct products in first-seen order.
	seen := make(map[string]bool)
	for _, hit := range hits {
		chunk, ok := e.index.Chunk(hit.ChunkID)
		if !ok {
			return FusedContext{}, fmt.Errorf("%w: hit %d has no chunk record", vectorindex.ErrConfigMismatch, hit.ChunkID)
		}
		fc.Chunks = append(fc.Chunks, RetrievedChunk{Chunk: chunk, Distance: hit.Distance})
		if chunk.ProductID != "" && !seen[chunk.ProductID] {
			seen[chunk.ProductID] = true
			fc.Products = append(fc.Products, chunk.ProductID)
		}
	}

	for _, sku := range fc.Products {
		block, err := e.attrs.Attributes(ctx, sku, e.historyLimit)
		switch {
		case err == nil:
			fc.Attributes[sku] = block
		case errors.Is(err, storage.ErrNotFound):
			// A chunk referencing a product the store doesn't know is
			// tolerated; surface it instead of guessing stricter intent.
			fc.MissingProducts = append(fc.MissingProducts, sku)
			e.logger.Warn("retrieved chunk references unknown product", "product_id", sku)
		default:
			fc.DynamicDataAvailable = false
			e.logger.Warn("attribute store unavailable, serving static-only context",
				"product_id", sku, "error", err)
		}
	}

	e.logger.Debug("fused context assembled",
		"query_chunks", len(fc.Chunks),
		"products", len(fc.Products),
		"missing_products", len(fc.MissingProducts),
		"dynamic_data", fc.DynamicDataAvailable,
	)

	return fc, nil
}

// boundHistory keeps the most recent MaxHistoryTurns turns.
func boundHistory(history []Turn) []Turn {
	if len(history) <= MaxHistoryTurns {
		return history
	}
	return history[len(history)-MaxHistoryTurns:]
}
