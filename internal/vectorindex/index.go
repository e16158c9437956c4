// Package vectorindex holds the chunk embeddings and their metadata as one
// unit. Every entry owns both its vector and its chunk record, so the vector
// at position i can never drift out of step with the chunk at position i.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lapiq/lapiq/internal/catalog"
	"github.com/lapiq/lapiq/internal/embedding"
)

var (
	// ErrEmptyText rejects a chunk with no content at build time.
	ErrEmptyText = errors.New("chunk has empty text")

	// ErrDimensionMismatch rejects an embedding whose dimensionality does
	// not match the provider's declared dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConfigMismatch indicates the loaded index and the configured
	// embedding provider disagree on model or dimensionality, or the index
	// artifact is internally inconsistent. Fatal at startup; an index in
	// this state must not serve queries.
	ErrConfigMismatch = errors.New("index configuration mismatch")
)

// BuildError reports which chunk caused an index build to be rejected.
// A failed build leaves any previously persisted index untouched.
type BuildError struct {
	ChunkID int
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building index: chunk %d: %v", e.ChunkID, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Manifest describes the build an index came from. Persisted with the
// entries and checked against the live provider at startup.
type Manifest struct {
	Model     string
	Dimension int
	Count     int
	BuiltAt   time.Time
}

// indexEntry pairs a vector with the chunk it was embedded from.
type indexEntry struct {
	Vector []float32
	Chunk  catalog.Chunk
}

// Index is an exhaustive (exact) nearest-neighbor index over chunk
// embeddings. Immutable after Build or Load; safe for concurrent readers.
type Index struct {
	manifest Manifest
	entries  []indexEntry
}

// Hit is one search result: the chunk ID and its L2 distance to the query.
type Hit struct {
	ChunkID  int
	Distance float32
}

// Build embeds every chunk's text in the order given and produces an index
// whose position i holds the chunk that was at position i of the input.
// Chunk IDs must already equal their positions (catalog.Flatten guarantees
// this); any gap, empty text, or unexpected vector dimensionality aborts the
// build with a *BuildError.
func Build(ctx context.Context, provider embedding.Provider, chunks []catalog.Chunk) (*Index, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		if c.ID != i {
			return nil, &BuildError{ChunkID: c.ID, Err: fmt.Errorf("chunk at position %d has id %d", i, c.ID)}
		}
		if c.Text == "" {
			return nil, &BuildError{ChunkID: c.ID, Err: ErrEmptyText}
		}
		texts[i] = c.Text
	}

	vectors, err := provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	dim := provider.Dimension()
	entries := make([]indexEntry, len(chunks))
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, &BuildError{ChunkID: i, Err: fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), dim)}
		}
		entries[i] = indexEntry{Vector: vec, Chunk: chunks[i]}
	}

	return &Index{
		manifest: Manifest{
			Model:     provider.ModelName(),
			Dimension: dim,
			Count:     len(entries),
			BuiltAt:   time.Now().UTC(),
		},
		entries: entries,
	}, nil
}

// Search returns up to k nearest neighbors of the query vector by L2
// distance, ties broken by ascending chunk ID. Searching an empty index
// returns an empty result, never an error.
func (idx *Index) Search(vector []float32, k int) ([]Hit, error) {
	if len(idx.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != idx.manifest.Dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrConfigMismatch, len(vector), idx.manifest.Dimension)
	}

	hits := make([]Hit, len(idx.entries))
	for i, e := range idx.entries {
		hits[i] = Hit{ChunkID: e.Chunk.ID, Distance: l2Distance(vector, e.Vector)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Chunk resolves a chunk ID to its full record.
func (idx *Index) Chunk(id int) (catalog.Chunk, bool) {
	if id < 0 || id >= len(idx.entries) {
		return catalog.Chunk{}, false
	}
	return idx.entries[id].Chunk, true
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.entries) }

// Manifest returns the build metadata of this index.
func (idx *Index) Manifest() Manifest { return idx.manifest }

// Verify checks that the index was built with the same embedding model and
// dimensionality the given provider is configured for. Returns
// ErrConfigMismatch (wrapped) if they disagree.
func (idx *Index) Verify(provider embedding.Provider) error {
	if idx.manifest.Model != provider.ModelName() {
		return fmt.Errorf("%w: index built with model %q, provider uses %q",
			ErrConfigMismatch, idx.manifest.Model, provider.ModelName())
	}
	if idx.manifest.Dimension != provider.Dimension() {
		return fmt.Errorf("%w: index dimension %d, provider dimension %d",
			ErrConfigMismatch, idx.manifest.Dimension, provider.Dimension())
	}
	return nil
}

// l2Distance computes the Euclidean distance between two equal-length vectors.
func l2Distance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
