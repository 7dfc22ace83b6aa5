package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/convostate/statelayer"
	"github.com/tailored-agentic-units/convostate/store"
)

// Config holds initialization parameters for the store, the property table
// and both state layers.
type Config struct {
	Store        store.Config `json:"store" yaml:"store"`
	Codec        string       `json:"codec,omitempty" yaml:"codec,omitempty"`                 // json, cbor or proto
	PropertyName string       `json:"property_name,omitempty" yaml:"property_name,omitempty"` // domain state property
	Observer     string       `json:"observer,omitempty" yaml:"observer,omitempty"`           // registered observer name
}

// DefaultConfig returns an in-memory, JSON-encoded configuration logging
// through the "slog" observer.
func DefaultConfig() Config {
	return Config{
		Store:        store.DefaultConfig(),
		Codec:        "json",
		PropertyName: statelayer.DefaultPropertyName,
		Observer:     "slog",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	c.Store.Merge(&source.Store)

	if source.Codec != "" {
		c.Codec = source.Codec
	}
	if source.PropertyName != "" {
		c.PropertyName = source.PropertyName
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a config file, merges it with defaults, and returns the
// result. Files ending in .yaml or .yml are parsed as YAML; anything else as
// JSON, where comments and trailing commas are allowed.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
