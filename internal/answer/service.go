package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lapiq/lapiq/internal/composer"
	"github.com/lapiq/lapiq/internal/fusion"
	"github.com/lapiq/lapiq/internal/storage"
)

// ContextBuilder is the retrieval-fusion step the service drives.
type ContextBuilder interface {
	AnswerContext(ctx context.Context, query string, k int, history []fusion.Turn) (fusion.FusedContext, error)
}

// InteractionStore records answered queries. Saving is best-effort; a store
// failure never fails the request.
type InteractionStore interface {
	SaveInteraction(ctx context.Context, i storage.Interaction) error
}

// Answer is the result of one question: the generated text plus everything
// that went into it.
type Answer struct {
	ID        string
	Text      string
	Context   fusion.FusedContext
	Prompt    string
	Truncated bool
}

// Service runs the full question pipeline: fuse context, compose the prompt,
// generate the answer, record the interaction.
type Service struct {
	builder      ContextBuilder
	composer     *composer.Composer
	generator    Generator
	interactions InteractionStore
	logger       *slog.Logger
}

// NewService wires the pipeline. interactions may be nil, in which case no
// exchange is recorded.
func NewService(builder ContextBuilder, comp *composer.Composer, gen Generator, interactions InteractionStore) *Service {
	return &Service{
		builder:      builder,
		composer:     comp,
		generator:    gen,
		interactions: interactions,
		logger:       slog.Default(),
	}
}

// Ask answers one question. k <= 0 uses the engine's configured retrieval
// breadth.
func (s *Service) Ask(ctx context.Context, query string, k int, history []fusion.Turn) (Answer, error) {
	fc, err := s.builder.AnswerContext(ctx, query, k, history)
	if err != nil {
		return Answer{}, err
	}

	prompt := s.composer.Build(fc)
	if prompt.Truncated {
		s.logger.Warn("prompt truncated to fit token budget", "dropped_chunks", prompt.Dropped)
	}

	text, err := s.generator.Generate(ctx, prompt.Text)
	if err != nil {
		return Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	ans := Answer{
		ID:        uuid.NewString(),
		Text:      text,
		Context:   fc,
		Prompt:    prompt.Text,
		Truncated: prompt.Truncated,
	}
	s.record(ctx, ans)
	return ans, nil
}

func (s *Service) record(ctx context.Context, ans Answer) {
	if s.interactions == nil {
		return
	}
	ids := make([]int, len(ans.Context.Chunks))
	for i, ch := range ans.Context.Chunks {
		ids[i] = ch.ID
	}
	encoded, _ := json.Marshal(ids)

	err := s.interactions.SaveInteraction(ctx, storage.Interaction{
		ID:        ans.ID,
		CreatedAt: time.Now().UTC(),
		UserQuery: ans.Context.Query,
		Prompt:    ans.Prompt,
		Answer:    ans.Text,
		ChunkIDs:  string(encoded),
		Truncated: ans.Truncated,
	})
	if err != nil {
		s.logger.Warn("failed to record interaction", "interaction_id", ans.ID, "error", err)
	}
}
