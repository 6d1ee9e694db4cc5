// Package seed carries the initial corpus, knowledge base and expert annotations
// installed into an empty deployment.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vilaw/backend/internal/learning"
	"github.com/vilaw/backend/internal/storage/models"
)

var (
	//go:embed corpus.yaml
	corpusYAML []byte

	//go:embed knowledge.yaml
	knowledgeYAML []byte

	//go:embed expert.yaml
	expertYAML []byte
)

func Documents() ([]models.Document, error) {
	var docs []models.Document
	if err := yaml.Unmarshal(corpusYAML, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse seed corpus: %w", err)
	}
	return docs, nil
}

// Knowledge returns the seed entries stamped with the given time.
func Knowledge(at time.Time) ([]models.KnowledgeEntry, error) {
	var entries []models.KnowledgeEntry
	if err := yaml.Unmarshal(knowledgeYAML, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse seed knowledge: %w", err)
	}
	for i := range entries {
		entries[i].LastUpdated = at
	}
	return entries, nil
}

func ExpertFeedback() (learning.StaticSource, error) {
	var items []learning.Item
	if err := yaml.Unmarshal(expertYAML, &items); err != nil {
		return nil, fmt.Errorf("failed to parse seed expert feedback: %w", err)
	}
	return learning.StaticSource(items), nil
}
