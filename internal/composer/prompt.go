// Package composer turns a fused context into the final prompt text. The
// assembly is deterministic: the same context always produces the same
// prompt, byte for byte.
package composer

import (
	"fmt"
	"strings"

	"github.com/lapiq/lapiq/internal/fusion"
	"github.com/lapiq/lapiq/internal/storage"
)

const defaultMaxContextTokens = 4000

// systemInstruction anchors the model to the supplied evidence. Citation
// markers must survive into the answer exactly as written.
const systemInstruction = `You are a product advisor for a laptop catalog. Answer using only the information in the sections below.

Rules:
- If the answer is not present in the provided context, say that the information is not available. Do not guess.
- Specification excerpts carry citation markers like [cite: 12]. When you use a fact from an excerpt, reproduce its citation markers verbatim in your answer.
- Live data (prices, stock, ratings, reviews) comes from the "Live product data" section. Prefer it over anything the excerpts say about price or availability.`

// Prompt is the assembled text plus what the budget did to it.
type Prompt struct {
	Text string

	// Truncated is true when at least one retrieved excerpt was dropped to
	// fit the token budget.
	Truncated bool

	// Dropped counts excerpts removed by the budget, always the
	// lowest-ranked ones.
	Dropped int
}

// Composer assembles prompts under a token budget. The budget applies to the
// whole prompt; when it is exceeded, whole excerpts are dropped starting from
// the lowest retrieval rank. Everything else (instruction, live data,
// history, query) is never cut.
type Composer struct {
	MaxContextTokens int
}

// New creates a Composer with the given token budget.
// If maxContextTokens <= 0, the default (4000) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

// Build assembles the prompt for one fused context. Section order is fixed:
// instruction, specification excerpts, live product data, conversation
// history, user question.
func (c *Composer) Build(fc fusion.FusedContext) Prompt {
	var fixed strings.Builder
	fixed.WriteString(systemInstruction)

	dynamic := formatDynamicSection(fc)
	fixed.WriteString(dynamic)

	if len(fc.History) > 0 {
		fixed.WriteString("\n\n[Conversation so far]\n")
		for _, turn := range fc.History {
			fmt.Fprintf(&fixed, "%s: %s\n", turn.Role, turn.Content)
		}
	}

	question := fmt.Sprintf("\n\n[Question]\n%s", fc.Query)

	chunkHeader := "\n\n[Specification excerpts]\n"
	remaining := c.MaxContextTokens - EstimateTokens(fixed.String()) - EstimateTokens(question) - EstimateTokens(chunkHeader)

	// Chunks arrive ranked nearest first. Take the prefix that fits; the
	// first excerpt that does not fit ends the selection so rank order is
	// preserved exactly.
	var entries []string
	dropped := 0
	for i, ch := range fc.Chunks {
		entry := formatChunk(ch)
		tokens := EstimateTokens(entry)
		if tokens > remaining {
			dropped = len(fc.Chunks) - i
			break
		}
		entries = append(entries, entry)
		remaining -= tokens
	}

	var sb strings.Builder
	sb.WriteString(systemInstruction)
	if len(entries) > 0 {
		sb.WriteString(chunkHeader)
		for _, entry := range entries {
			sb.WriteString(entry)
		}
	}
	sb.WriteString(dynamic)
	if len(fc.History) > 0 {
		sb.WriteString("\n\n[Conversation so far]\n")
		for _, turn := range fc.History {
			fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
		}
	}
	sb.WriteString(question)

	return Prompt{
		Text:      sb.String(),
		Truncated: dropped > 0,
		Dropped:   dropped,
	}
}

// formatChunk renders one excerpt with its provenance and citation markers.
func formatChunk(ch fusion.RetrievedChunk) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s / %s ---\n%s", ch.ProductID, ch.SectionLabel, ch.Text)
	if len(ch.Citations) > 0 {
		sb.WriteString(" ")
		for i, cite := range ch.Citations {
			if i > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "[cite: %d]", cite)
		}
	}
	sb.WriteString("\n\n")
	return sb.String()
}

// formatDynamicSection renders the live attribute blocks in the context's
// product order.
func formatDynamicSection(fc fusion.FusedContext) string {
	var sb strings.Builder
	sb.WriteString("\n\n[Live product data]\n")

	if !fc.DynamicDataAvailable {
		sb.WriteString("Live product data is currently unavailable. Answer from the specification excerpts only and say that current prices and stock cannot be confirmed.\n")
		return sb.String()
	}

	wrote := false
	for _, sku := range fc.Products {
		block, ok := fc.Attributes[sku]
		if !ok {
			continue
		}
		sb.WriteString(formatAttributeBlock(sku, block))
		wrote = true
	}
	for _, sku := range fc.MissingProducts {
		fmt.Fprintf(&sb, "%s: no live data on record.\n", sku)
		wrote = true
	}
	if !wrote {
		sb.WriteString("No live data for the referenced products.\n")
	}
	return sb.String()
}

func formatAttributeBlock(sku string, block storage.AttributeBlock) string {
	var sb strings.Builder
	p := block.Snapshot
	fmt.Fprintf(&sb, "%s (%s %s):\n", sku, p.Brand, p.ModelName)

	if len(block.Prices) > 0 {
		latest := block.Prices[0]
		fmt.Fprintf(&sb, "  Current price: %.2f %s", latest.Price, p.Currency)
		if latest.Promo != "" {
			fmt.Fprintf(&sb, " (promo: %s)", latest.Promo)
		}
		sb.WriteString("\n")
	}
	if p.Availability != "" {
		fmt.Fprintf(&sb, "  Availability: %s", p.Availability)
		if p.ShippingETA != "" {
			fmt.Fprintf(&sb, ", ships in %s", p.ShippingETA)
		}
		sb.WriteString("\n")
	}
	if p.ReviewCount > 0 {
		fmt.Fprintf(&sb, "  Rating: %.1f/5.0 (%d reviews)\n", p.AverageRating, p.ReviewCount)
	}
	for _, r := range block.Reviews {
		fmt.Fprintf(&sb, "  Review (%d/5): %s\n", r.Rating, r.Body)
	}
	for _, q := range block.Questions {
		fmt.Fprintf(&sb, "  Q: %s A: %s\n", q.Question, q.Answer)
	}
	return sb.String()
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
