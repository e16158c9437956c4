package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// NoParent marks a top-level chunk with no parent entry.
const NoParent = -1

// Chunk is one immutable, independently retrievable unit of specification
// text, tied to exactly one catalog product. ID equals the chunk's position
// in the vector index and is assigned once at flatten time; it is never
// renumbered afterwards.
type Chunk struct {
	ID           int
	ProductID    string
	Text         string
	SectionLabel string
	// Citations are the source citation markers attached to this chunk.
	// They are carried verbatim through retrieval and into the prompt.
	Citations []int
	// ParentID points at the chunk this entry was split out of, for display
	// grouping only. NoParent for top-level chunks.
	ParentID int
}

// SourceRecord is one entry of the chunk source file produced by the
// upstream extraction step.
type SourceRecord struct {
	Content      string            `json:"content"`
	Subfeatures  []SubfeatureEntry `json:"subfeatures,omitempty"`
	SourceModel  string            `json:"source_model"`
	SectionTitle string            `json:"section_title"`
	Citations    []int             `json:"source_citations"`
}

// SubfeatureEntry is a child unit within a SourceRecord. It shares the
// parent's product and section but is embedded and indexed independently.
type SubfeatureEntry struct {
	Content   string `json:"content"`
	Citations []int  `json:"source_citations"`
}

// Load reads an ordered chunk source file (a JSON array of SourceRecords).
func Load(path string) ([]SourceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chunk source: %w", err)
	}
	var records []SourceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing chunk source: %w", err)
	}
	return records, nil
}

// Flatten turns source records into the ordered chunk sequence the index is
// built from. Each record becomes one chunk, immediately followed by one
// chunk per subfeature carrying the parent's product and section. Chunk IDs
// are assigned sequentially so that ID always equals position.
func Flatten(records []SourceRecord) []Chunk {
	var chunks []Chunk
	for _, rec := range records {
		parent := Chunk{
			ID:           len(chunks),
			ProductID:    rec.SourceModel,
			Text:         rec.Content,
			SectionLabel: rec.SectionTitle,
			Citations:    rec.Citations,
			ParentID:     NoParent,
		}
		chunks = append(chunks, parent)

		for _, sub := range rec.Subfeatures {
			chunks = append(chunks, Chunk{
				ID:           len(chunks),
				ProductID:    rec.SourceModel,
				Text:         sub.Content,
				SectionLabel: rec.SectionTitle,
				Citations:    sub.Citations,
				ParentID:     parent.ID,
			})
		}
	}
	return chunks
}
