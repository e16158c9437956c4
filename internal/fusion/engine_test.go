package fusion

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/lapiq/lapiq/internal/catalog"
	"github.com/lapiq/lapiq/internal/storage"
	"github.com/lapiq/lapiq/internal/vectorindex"
)

// stubProvider returns fixed vectors per text so retrieval order is fully
// under the test's control.
type stubProvider struct {
	model   string
	dim     int
	vectors map[string][]float32
	err     error
}

func (s *stubProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, s.dim), nil
}

func (s *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubProvider) ModelName() string { return s.model }
func (s *stubProvider) Dimension() int    { return s.dim }

// fakeAttrs serves canned attribute blocks and records fetch order.
type fakeAttrs struct {
	blocks     map[string]storage.AttributeBlock
	fetchErr   error
	fetchOrder []string
}

func (f *fakeAttrs) Attributes(_ context.Context, sku string, _ int) (storage.AttributeBlock, error) {
	f.fetchOrder = append(f.fetchOrder, sku)
	if f.fetchErr != nil {
		return storage.AttributeBlock{}, f.fetchErr
	}
	block, ok := f.blocks[sku]
	if !ok {
		return storage.AttributeBlock{}, storage.ErrNotFound
	}
	return block, nil
}

// buildTestIndex indexes one chunk per (text, product) pair, at increasing
// distance from the zero-vector query: chunk i sits at distance i+1.
func buildTestIndex(t *testing.T, p *stubProvider, products ...string) *vectorindex.Index {
	t.Helper()
	if p.vectors == nil {
		p.vectors = make(map[string][]float32)
	}
	chunks := make([]catalog.Chunk, len(products))
	for i, prod := range products {
		text := fmt.Sprintf("chunk-%d", i)
		p.vectors[text] = []float32{float32(i + 1), 0}
		chunks[i] = catalog.Chunk{
			ID:           i,
			ProductID:    prod,
			Text:         text,
			SectionLabel: "Spec",
			Citations:    []int{i + 10},
			ParentID:     catalog.NoParent,
		}
	}
	idx, err := vectorindex.Build(context.Background(), p, chunks)
	if err != nil {
		t.Fatalf("building test index: %v", err)
	}
	return idx
}

func snapshotBlock(sku string) storage.AttributeBlock {
	return storage.AttributeBlock{
		Snapshot: storage.Product{SKU: sku, Brand: "Lenovo", Availability: "In Stock", AverageRating: 4.2},
	}
}

func TestAnswerContext_DistinctProductsFirstSeenOrder(t *testing.T) {
	p := &stubProvider{model: "stub", dim: 2}
	idx := buildTestIndex(t, p, "P2", "P1", "P2", "P3")
	attrs := &fakeAttrs{blocks: map[string]storage.AttributeBlock{
		"P1": snapshotBlock("P1"), "P2": snapshotBlock("P2"), "P3": snapshotBlock("P3"),
	}}

	e, err := NewEngine(p, idx, attrs, 4)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	fc, err := e.AnswerContext(context.Background(), "query", 4, nil)
	if err != nil {
		t.Fatalf("AnswerContext: %v", err)
	}

	want := []string{"P2", "P1", "P3"}
	if !reflect.DeepEqual(fc.Products, want) {
		t.Errorf("Products = %v, want %v", fc.Products, want)
	}
	if !reflect.DeepEqual(attrs.fetchOrder, want) {
		t.Errorf("fetch order = %v, want %v", attrs.fetchOrder, want)
	}
}

func TestAnswerContext_CitationsCarriedVerbatim(t *testing.T) {
	p := &stubProvider{model: "stub", dim: 2}
	idx := buildTestIndex(t, p, "P1", "P1")
	attrs := &fakeAttrs{blocks: map[string]storage.AttributeBlock{"P1": snapshotBlock("P1")}}

	e, err := NewEngine(p, idx, attrs, 2)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	fc, err := e.AnswerContext(context.Background(), "query", 2, nil)
	if err != nil {
		t.Fatalf("AnswerContext: %v", err)
	}
	if len(fc.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(fc.Chunks))
	}
	for i, c := range fc.Chunks {
		want := []int{c.ID + 10}
		if !reflect.DeepEqual(c.Citations, want) {
			t.Errorf("chunk %d citations = %v, want %v", i, c.Citations, want)
		}
	}
}

func TestAnswerContext_ChunksOrderedByDistance(t *testing.T) {
	p := &stubProvider{model: "stub", dim: 2}
	idx := buildTestIndex(t, p, "P1", "P2", "P3")
	attrs := &fakeAttrs{blocks: map[string]storage.AttributeBlock{}}

	e, err := NewEngine(p, idx, attrs, 3)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	fc, err := e.AnswerContext(context.Background(), "query", 2, nil)
	if err != nil {
		t.Fatalf("AnswerContext: %v", err)
	}
	if len(fc.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 (explicit k overrides default)", len(fc.Chunks))
	}
	if fc.Chunks[0].ID != 0 || fc.Chunks[1].ID != 1 {
		t.Errorf("chunk order = [%d %d], want [0 1]", fc.Chunks[0].ID, fc.Chunks[1].ID)
	}
	if fc.Chunks[0].Distance > fc.Chunks[1].Distance {
		t.Errorf("distances not non-decreasing")
	}
}

func TestAnswerContext_MissingProductTolerated(t *testing.T) {
	p := &stubProvider{model: "stub", dim: 2}
	idx := buildTestIndex(t, p, "KNOWN", "GHOST")
	attrs := &fakeAttrs{blocks: map[string]storage.AttributeBlock{"KNOWN": snapshotBlock("KNOWN")}}

	e, err := NewEngine(p, idx, attrs, 2)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	fc, err := e.AnswerContext(context.Background(), "query", 2, nil)
	if err != nil {
		t.Fatalf("AnswerContext: %v", err)
	}

	if !fc.DynamicDataAvailable {
		t.Error("DynamicDataAvailable = false; a missing product is not a store failure")
	}
	if _, ok := fc.Attributes["KNOWN"]; !ok {
		t.Error("known product missing its attribute block")
	}
	if _, ok := fc.Attributes["GHOST"]; ok {
		t.Error("unknown product should have no attribute entry")
	}
	if !reflect.DeepEqual(fc.MissingProducts, []string{"GHOST"}) {
		t.Errorf("MissingProducts = %v, want [GHOST]", fc.MissingProducts)
	}
}

func TestAnswerContext_StoreUnavailableDegrades(t *testing.T) {
	p := &stubProvider{model: "stub", dim: 2}
	idx := buildTestIndex(t, p, "P1")
	attrs := &fakeAttrs{fetchErr: errors.New("connection refused")}

	e, err := NewEngine(p, idx, attrs, 1)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	fc, err := e.AnswerContext(context.Background(), "query", 1, nil)
	if err != nil {
		t.Fatalf("AnswerContext should not fail when the store is down: %v", err)
	}
	if fc.DynamicDataAvailable {
		t.Error("DynamicDataAvailable = true, want false")
	}
	if len(fc.Chunks) == 0 {
		t.Error("static chunks must still be served")
	}
}

func TestAnswerContext_EmbedFailureIsRetrievalError(t *testing.T) {
	p := &stubProvider{model: "stub", dim: 2}
	idx := buildTestIndex(t, p, "P1")
	e, err := NewEngine(p, idx, &fakeAttrs{}, 1)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	p.err = errors.New("provider unavailable")
	_, err = e.AnswerContext(context.Background(), "query", 1, nil)
	var re *RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *RetrievalError", err)
	}
}

func TestAnswerContext_HistoryBounded(t *testing.T) {
	p := &stubProvider{model: "stub", dim: 2}
	idx := buildTestIndex(t, p, "P1")
	e, err := NewEngine(p, idx, &fakeAttrs{blocks: map[string]storage.AttributeBlock{"P1": snapshotBlock("P1")}}, 1)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	history := make([]Turn, 8)
	for i := range history {
		history[i] = Turn{Role: "user", Content: fmt.Sprintf("turn %d", i)}
	}

	fc, err := e.AnswerContext(context.Background(), "query", 1, history)
	if err != nil {
		t.Fatalf("AnswerContext: %v", err)
	}
	if len(fc.History) != MaxHistoryTurns {
		t.Fatalf("history length = %d, want %d", len(fc.History), MaxHistoryTurns)
	}
	if fc.History[0].Content != "turn 3" {
		t.Errorf("history[0] = %q, want the 4th-from-last turn", fc.History[0].Content)
	}
}

func TestNewEngine_RejectsMismatchedIndex(t *testing.T) {
	builder := &stubProvider{model: "model-a", dim: 2}
	idx := buildTestIndex(t, builder, "P1")

	querier := &stubProvider{model: "model-b", dim: 2}
	if _, err := NewEngine(querier, idx, &fakeAttrs{}, 1); !errors.Is(err, vectorindex.ErrConfigMismatch) {
		t.Errorf("error = %v, want ErrConfigMismatch", err)
	}
}

func TestAnswerContext_EmptyIndex(t *testing.T) {
	p := &stubProvider{model: "stub", dim: 2}
	idx, err := vectorindex.Build(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	e, err := NewEngine(p, idx, &fakeAttrs{}, 3)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	fc, err := e.AnswerContext(context.Background(), "query", 3, nil)
	if err != nil {
		t.Fatalf("AnswerContext on empty index: %v", err)
	}
	if len(fc.Chunks) != 0 || len(fc.Products) != 0 {
		t.Errorf("expected empty context, got %+v", fc)
	}
	if !fc.DynamicDataAvailable {
		t.Error("empty retrieval is not a store failure")
	}
}
