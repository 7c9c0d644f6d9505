// Package taxonomy loads the declarative category definitions that drive
// keyword matching. A taxonomy is immutable for the duration of a run and
// carries a content hash stamped onto every classification for
// traceability.
package taxonomy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/feedback-cli/internal/model"
)

// Category is one entry of the taxonomy document. Ordinal is the
// declaration position and is the explicit tie-break order; it never
// depends on incidental map iteration.
type Category struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	MinLength   int      `yaml:"min_length,omitempty"`
	Keywords    []string `yaml:"keywords"`
	Ordinal     int      `yaml:"-"`
}

// Taxonomy is the validated, ordered category set plus its version hash.
type Taxonomy struct {
	Categories []Category
	Version    string
}

type document struct {
	Categories []Category `yaml:"categories"`
}

// Load reads and validates the taxonomy document at path. Any validation
// failure is a configuration error: fatal before classification starts.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}
	tax, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: parse %s", path)
	}
	return tax, nil
}

// Parse decodes, validates, and versions a taxonomy document.
func Parse(data []byte) (*Taxonomy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "taxonomy: unmarshal")
	}

	if len(doc.Categories) == 0 {
		return nil, eris.New("taxonomy: no categories defined")
	}

	seen := make(map[string]struct{}, len(doc.Categories))
	for i := range doc.Categories {
		c := &doc.Categories[i]
		c.Ordinal = i

		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, eris.Errorf("taxonomy: category %d has no name", i)
		}
		c.Name = name

		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, eris.Errorf("taxonomy: duplicate category name %q", name)
		}
		seen[key] = struct{}{}

		if name == model.CategoryManualReview || name == model.CategoryNoise {
			return nil, eris.Errorf("taxonomy: %q is reserved and may not be declared", name)
		}

		if len(c.Keywords) == 0 {
			return nil, eris.Errorf("taxonomy: category %q has no keywords", name)
		}
		for j, kw := range c.Keywords {
			if strings.TrimSpace(kw) == "" {
				return nil, eris.Errorf("taxonomy: category %q keyword %d is empty", name, j)
			}
		}
		if c.MinLength < 0 {
			return nil, eris.Errorf("taxonomy: category %q has negative min_length", name)
		}
	}

	return &Taxonomy{
		Categories: doc.Categories,
		Version:    hash(doc.Categories),
	}, nil
}

// hash computes the taxonomy version: a SHA-256 over a canonical
// serialization, so identical documents always yield identical versions
// regardless of YAML formatting.
func hash(cats []Category) string {
	h := sha256.New()
	for _, c := range cats {
		fmt.Fprintf(h, "%s\x1f%d\x1f%s\x1e", c.Name, c.MinLength, strings.Join(c.Keywords, "\x1f"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
