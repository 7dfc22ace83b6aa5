package store

import (
	"fmt"
	"io"
)

// Driver names accepted by Config.Driver.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config holds store initialization parameters.
type Config struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"` // memory, file or sqlite
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`     // root directory (file) or database file (sqlite)
}

// DefaultConfig returns the default store configuration (in-memory).
func DefaultConfig() Config {
	return Config{Driver: DriverMemory}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Driver != "" {
		c.Driver = source.Driver
	}
	if source.Path != "" {
		c.Path = source.Path
	}
}

// NewStore creates a Store from configuration. The file and sqlite drivers
// require Path. Stores that hold resources implement io.Closer.
func NewStore(cfg *Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file store requires a path")
		}
		return NewFileStore(cfg.Path), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

// Close releases s if it holds resources.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
