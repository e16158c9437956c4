package vectorindex

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// persistedIndex is the single on-disk artifact: the manifest and the
// entries travel together so they can never be loaded in mismatched
// versions.
type persistedIndex struct {
	Manifest Manifest
	Entries  []indexEntry
}

// Save writes the index to path as one gob artifact. The write goes to a
// temp file in the same directory and is renamed into place, so a crashed
// or failed save leaves any previous artifact untouched.
func (idx *Index) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}

	enc := gob.NewEncoder(file)
	if err := enc.Encode(persistedIndex{Manifest: idx.manifest, Entries: idx.entries}); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encoding index: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp index file: %w", err)
	}

	// Rename to final path (atomic on most filesystems).
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing index file: %w", err)
	}

	return nil
}

// Load reads an index artifact written by Save and validates that its
// manifest and entries are consistent. An inconsistent artifact is a startup
// failure (ErrConfigMismatch), not something to limp along with.
func Load(path string) (*Index, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer file.Close()

	var p persistedIndex
	if err := gob.NewDecoder(file).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding index file: %w", err)
	}

	if p.Manifest.Count != len(p.Entries) {
		return nil, fmt.Errorf("%w: manifest says %d entries, artifact has %d",
			ErrConfigMismatch, p.Manifest.Count, len(p.Entries))
	}
	for i, e := range p.Entries {
		if e.Chunk.ID != i {
			return nil, fmt.Errorf("%w: entry at position %d has chunk id %d",
				ErrConfigMismatch, i, e.Chunk.ID)
		}
		if len(e.Vector) != p.Manifest.Dimension {
			return nil, fmt.Errorf("%w: entry %d has dimension %d, manifest says %d",
				ErrConfigMismatch, i, len(e.Vector), p.Manifest.Dimension)
		}
	}

	return &Index{manifest: p.Manifest, entries: p.Entries}, nil
}
