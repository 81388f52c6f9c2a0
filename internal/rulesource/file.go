package rulesource

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"changeprop/pkg/rule"
)

// FileSource loads the rules document from a single YAML file on disk,
// used when rule_source.type is "file" — the default, dependency-free
// path for a single-node or local deployment.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load(ctx context.Context) (rule.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return rule.Document{}, fmt.Errorf("rulesource: reading %s: %w", s.path, err)
	}

	var doc rule.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return rule.Document{}, fmt.Errorf("rulesource: parsing %s: %w", s.path, err)
	}
	return doc, nil
}
