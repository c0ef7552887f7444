// Package catalog loads and validates the place catalog produced by the
// data pipeline: fetched place records with precomputed embeddings.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Place is one catalog entry. Embedding and EmbeddingText are filled by
// the embed pipeline stage; the rest comes from the fetch stage.
type Place struct {
	PlaceID        string    `json:"place_id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	Rating         *float64  `json:"rating,omitempty"`
	RatingCount    int       `json:"rating_count"`
	Description    string    `json:"description,omitempty"`
	Reviews        []string  `json:"reviews,omitempty"`
	Types          []string  `json:"types,omitempty"`
	Website        string    `json:"website,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	BusinessStatus string    `json:"business_status,omitempty"`
	Category       string    `json:"category,omitempty"`
	EmbeddingText  string    `json:"embedding_text,omitempty"`
	Embedding      []float32 `json:"embedding,omitempty"`
}

// Catalog is the on-disk catalog document. Unknown JSON fields are
// ignored on load.
type Catalog struct {
	FetchID            string  `json:"fetch_id,omitempty"`
	Model              string  `json:"model"`
	EmbeddingDimension int     `json:"embedding_dimension"`
	TotalPlaces        int     `json:"total_places"`
	Places             []Place `json:"places"`
}

// Load reads and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &cat, nil
}

// Write validates cat and writes it to path as indented JSON, creating
// parent directories as needed.
func Write(path string, cat *Catalog) error {
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

// Validate checks that every place carries an embedding of the header
// dimension. A zero header dimension is inferred from the first place,
// and the header count is corrected to the actual place count. A catalog
// with no places is valid.
func (c *Catalog) Validate() error {
	dim := c.EmbeddingDimension
	for i := range c.Places {
		p := &c.Places[i]
		if len(p.Embedding) == 0 {
			return fmt.Errorf("place %d (%s) has no embedding", i, p.Name)
		}
		if dim == 0 {
			dim = len(p.Embedding)
		}
		if len(p.Embedding) != dim {
			return fmt.Errorf("place %d (%s): embedding dimension %d, want %d", i, p.Name, len(p.Embedding), dim)
		}
	}
	c.EmbeddingDimension = dim
	c.TotalPlaces = len(c.Places)
	return nil
}
