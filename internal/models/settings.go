// Package models contains shared data structures used across the application.
package models

import (
	"encoding/json"
	"fmt"
)

// ServerEntry describes a backend server the dashboard can connect to.
type ServerEntry struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Address     string `yaml:"address" json:"address"`
	Active      bool   `yaml:"active" json:"active"`
	AutoConnect bool   `yaml:"autoConnect" json:"autoConnect"`
}

// Settings is the typed view of the settings document.
// This corresponds to ~/.nexrift/settings.yaml.
type Settings struct {
	Servers        []ServerEntry `yaml:"servers" json:"servers"`
	ActiveServerID string        `yaml:"activeServerId" json:"activeServerId"`
	Theme          string        `yaml:"theme" json:"theme"` // "dark" | "light"
	AutoStart      bool          `yaml:"autoStart" json:"autoStart"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Servers: []ServerEntry{
			{
				ID:          "local",
				Name:        "Local Server",
				Address:     "127.0.0.1:8000",
				Active:      true,
				AutoConnect: true,
			},
			{
				ID:          "network",
				Name:        "Network Server",
				Address:     "192.168.1.227:8000",
				Active:      false,
				AutoConnect: false,
			},
		},
		ActiveServerID: "local",
		Theme:          "dark",
		AutoStart:      true,
	}
}

// Document is the settings as the dashboard sees them: a flat map of keys to
// JSON-compatible values. Keys the shell does not know about are preserved.
type Document map[string]any

// NewDocument returns the default settings as a document.
func NewDocument() Document {
	doc, err := ToDocument(NewSettings())
	if err != nil {
		// NewSettings only holds plain values.
		panic(err)
	}
	return doc
}

// ToDocument converts any JSON-encodable value into a document.
// Numbers come back as float64 and nested objects as map[string]any, so two
// documents built from equivalent values compare equal.
func ToDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("settings must be an object: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Settings decodes the typed view of the document. Missing keys keep their
// zero value, mistyped keys are an error.
func (d Document) Settings() (*Settings, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, nil
}

// AutoStart reports whether the backend should be started when the shell is
// ready. Anything other than an explicit false counts as enabled.
func (d Document) AutoStart() bool {
	if v, ok := d["autoStart"].(bool); ok {
		return v
	}
	return true
}

// Theme returns the configured theme, "dark" when unset.
func (d Document) Theme() string {
	if v, ok := d["theme"].(string); ok && v != "" {
		return v
	}
	return "dark"
}
