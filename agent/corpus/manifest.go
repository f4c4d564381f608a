package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

// Manifest describes document sets to ingest. Document text is given inline
// or as a path to a plain-text file relative to the manifest.
type Manifest struct {
	Sets []ManifestSet `yaml:"sets"`
}

type ManifestSet struct {
	Position  int                `yaml:"position"`
	Topic     string             `yaml:"topic"`
	Documents []ManifestDocument `yaml:"documents"`
}

type ManifestDocument struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Text    string   `yaml:"text"`
	File    string   `yaml:"file"`
	Authors []string `yaml:"authors"`
	URL     string   `yaml:"url"`
}

func LoadManifest(path string) ([]contractx.DocumentSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(raw, filepath.Dir(path))
}

func ParseManifest(raw []byte, baseDir string) ([]contractx.DocumentSet, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", contractx.ErrValidation, err)
	}

	seen := make(map[int]struct{}, len(m.Sets))
	out := make([]contractx.DocumentSet, 0, len(m.Sets))
	for _, s := range m.Sets {
		if _, dup := seen[s.Position]; dup {
			return nil, fmt.Errorf("%w: duplicate set position %d", contractx.ErrValidation, s.Position)
		}
		seen[s.Position] = struct{}{}

		if strings.TrimSpace(s.Topic) == "" {
			return nil, fmt.Errorf("%w: set %d has no topic", contractx.ErrValidation, s.Position)
		}

		set := contractx.DocumentSet{Position: s.Position, Topic: strings.TrimSpace(s.Topic)}
		for i, d := range s.Documents {
			doc, err := d.resolve(baseDir)
			if err != nil {
				return nil, fmt.Errorf("set %d document %d: %w", s.Position, i, err)
			}
			set.Documents = append(set.Documents, doc)
		}
		out = append(out, set)
	}
	return out, nil
}

func (d ManifestDocument) resolve(baseDir string) (contractx.Document, error) {
	text := d.Text
	if d.File != "" {
		if text != "" {
			return contractx.Document{}, fmt.Errorf("%w: text and file are mutually exclusive", contractx.ErrValidation)
		}
		path := d.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return contractx.Document{}, fmt.Errorf("read document file: %w", err)
		}
		text = string(raw)
	}

	return contractx.Document{
		ID:      strings.TrimSpace(d.ID),
		Title:   strings.TrimSpace(d.Title),
		Text:    strings.TrimSpace(text),
		Authors: d.Authors,
		URL:     strings.TrimSpace(d.URL),
	}, nil
}
