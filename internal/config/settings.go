package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/bongobongo2020/nexrift/internal/models"
)

// SettingsStore persists the settings document as YAML.
// Every save replaces the whole document; there is no merge.
type SettingsStore struct {
	path string
}

// NewSettingsStore returns a store backed by the file at path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// OpenSettingsStore returns a store backed by ~/.nexrift/settings.yaml.
func OpenSettingsStore() (*SettingsStore, error) {
	path, err := GlobalSettingsFile()
	if err != nil {
		return nil, err
	}
	return NewSettingsStore(path), nil
}

// Path returns the backing file.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads the settings document. If the file doesn't exist, the defaults
// are returned.
func (s *SettingsStore) Load() (models.Document, error) {
	raw, err := LoadYAMLOrDefault(s.path, func() map[string]any { return nil })
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return models.NewDocument(), nil
	}
	return models.ToDocument(raw)
}

// Save replaces the settings document on disk.
func (s *SettingsStore) Save(doc models.Document) error {
	if doc == nil {
		doc = models.Document{}
	}
	var node yaml.Node
	if err := node.Encode(map[string]any(doc)); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	quoteMergeKeys(&node)
	return SaveYAML(s.path, &node)
}

// quoteMergeKeys writes "<<" keys as quoted strings. Plain << is a merge key
// and would be folded into its parent mapping when read back.
func quoteMergeKeys(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if key := n.Content[i]; key.Kind == yaml.ScalarNode && key.Value == "<<" {
				key.Tag = "!!str"
				key.Style = yaml.DoubleQuotedStyle
			}
		}
	}
	for _, child := range n.Content {
		quoteMergeKeys(child)
	}
}

// LoadSettings loads the typed view of ~/.nexrift/settings.yaml.
func LoadSettings() (*models.Settings, error) {
	store, err := OpenSettingsStore()
	if err != nil {
		return nil, err
	}
	doc, err := store.Load()
	if err != nil {
		return nil, err
	}
	return doc.Settings()
}
