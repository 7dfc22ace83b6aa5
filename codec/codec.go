// Package codec encodes conversation documents for durable storage. A
// document maps property names to state values; every codec decodes nested
// mappings as map[string]any so decoded documents are interchangeable.
package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownCodec is returned by Get for unregistered names.
var ErrUnknownCodec = errors.New("unknown codec")

// Codec converts a document to bytes and back. Encodings must be
// deterministic: equal documents produce equal bytes, which the property
// table relies on to skip unchanged commits.
type Codec interface {
	Name() string
	Marshal(doc map[string]any) ([]byte, error)
	Unmarshal(data []byte) (map[string]any, error)
}

var (
	codecs = map[string]Codec{
		JSON.Name(): JSON,
		CBOR.Name(): CBOR,
		Proto.Name(): Proto,
	}
	mutex sync.RWMutex
)

// Get returns a registered codec by name. "json", "cbor" and "proto" are
// always present.
func Get(name string) (Codec, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	c, exists := codecs[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
	return c, nil
}

// Register adds or replaces a codec under its Name.
func Register(c Codec) {
	mutex.Lock()
	defer mutex.Unlock()

	codecs[c.Name()] = c
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
