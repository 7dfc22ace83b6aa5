package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrUnknownObserver is returned by GetObserver for unregistered names.
var ErrUnknownObserver = errors.New("unknown observer")

var (
	observers = map[string]Observer{
		"noop": NoOpObserver{},
		"slog": NewSlogObserver(slog.Default()),
	}
	mutex sync.RWMutex
)

// GetObserver returns a registered observer by name. "noop" and "slog"
// (bound to slog.Default at init) are always present.
func GetObserver(name string) (Observer, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	obs, exists := observers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObserver, name)
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named observer.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}

// Observers returns the registered observer names in sorted order.
func Observers() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	names := make([]string, 0, len(observers))
	for name := range observers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
