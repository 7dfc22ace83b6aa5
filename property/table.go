// Package property implements a conversation-scoped property table over a
// durable store.
//
// A Table owns one document per conversation. Properties are registered on
// the table once per process and read or written only through a Turn, which
// caches the decoded document as working memory. Nothing reaches the store
// until the table commits the turn, and a commit always writes the whole
// document: every property touched in the turn is persisted together.
//
//	table := property.NewTable(store.NewMemoryStore())
//	alarms, err := table.CreateProperty("CONVERSATION_STATE")
//
//	turn := property.NewTurn("web", "conversation-1")
//	value, err := alarms.Get(ctx, turn, nil)
//	value["alarms"] = []any{}
//	err = alarms.Commit(ctx, turn)
package property

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/tailored-agentic-units/convostate/codec"
	"github.com/tailored-agentic-units/convostate/observability"
	"github.com/tailored-agentic-units/convostate/store"
)

const conversationsSegment = "conversations"

// TableOption configures a Table.
type TableOption func(*Table)

// WithCodec sets the document encoding. Defaults to codec.JSON.
func WithCodec(c codec.Codec) TableOption {
	return func(t *Table) { t.codec = c }
}

// WithObserver sets the event observer. Defaults to NoOpObserver.
func WithObserver(o observability.Observer) TableOption {
	return func(t *Table) { t.observer = o }
}

// Table is the process-wide registry of named properties bound to one
// store. Registration is safe for concurrent use.
type Table struct {
	store    store.Store
	codec    codec.Codec
	observer observability.Observer

	mu         sync.RWMutex
	properties map[string]*Property
}

// NewTable creates an empty Table persisting to s.
func NewTable(s store.Store, opts ...TableOption) *Table {
	t := &Table{
		store:      s,
		codec:      codec.JSON,
		observer:   observability.NoOpObserver{},
		properties: make(map[string]*Property),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateProperty registers a named property. Names are unique per table;
// registering a name twice fails with ErrPropertyExists.
func (t *Table) CreateProperty(name string) (*Property, error) {
	if name == "" {
		return nil, ErrEmptyPropertyName
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.properties[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPropertyExists, name)
	}

	p := &Property{name: name, table: t}
	t.properties[name] = p
	return p, nil
}

// Property returns a previously registered property.
func (t *Table) Property(name string) (*Property, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.properties[name]
	return p, ok
}

// Properties returns the registered property names in sorted order.
func (t *Table) Properties() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.properties))
	for name := range t.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StorageKey returns the store key of the turn's conversation document:
// <channel>/conversations/<conversation>, each ID path-escaped.
func (t *Table) StorageKey(turn *Turn) (string, error) {
	if turn == nil {
		return "", &ContextBindingError{Reason: "turn is nil"}
	}
	if turn.channelID == "" {
		return "", &ContextBindingError{Reason: "turn has no channel id"}
	}
	if turn.conversationID == "" {
		return "", &ContextBindingError{Reason: "turn has no conversation id"}
	}
	return escapeSegment(turn.channelID) + "/" + conversationsSegment + "/" + escapeSegment(turn.conversationID), nil
}

// escapeSegment path-escapes an ID and hides leading dots so a segment can
// never read as ".", ".." or a hidden file.
func escapeSegment(id string) string {
	escaped := url.PathEscape(id)
	if strings.HasPrefix(escaped, ".") {
		escaped = "%2E" + escaped[1:]
	}
	return escaped
}

// Load reads the turn's conversation document into working memory. A
// document already loaded in this turn is kept unless force is set, which
// discards uncommitted changes.
func (t *Table) Load(ctx context.Context, turn *Turn, force bool) error {
	key, err := t.StorageKey(turn)
	if err != nil {
		return err
	}

	if !force && turn.memoryFor(t) != nil {
		return nil
	}

	doc := map[string]any{}
	found := true

	entries, err := t.store.Load(ctx, key)
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		found = false
	case err != nil:
		return fmt.Errorf("load conversation state %s: %w", key, err)
	case len(entries) > 0:
		doc, err = t.codec.Unmarshal(entries[0].Value)
		if err != nil {
			return fmt.Errorf("load conversation state %s: %w", key, err)
		}
	}

	hash, err := t.hash(doc)
	if err != nil {
		return fmt.Errorf("load conversation state %s: %w", key, err)
	}
	turn.setMemory(t, &workingMemory{doc: doc, hash: hash})

	observability.Emit(ctx, t.observer, EventLoad, observability.LevelVerbose, "property.Table.Load", map[string]any{
		"key":        key,
		"found":      found,
		"properties": len(doc),
	})

	return nil
}

// SaveChanges commits the turn's working memory for every property of this
// table. The write is skipped when the document is unchanged since it was
// loaded or last committed, unless force is set. A store failure is returned
// as *PersistenceCommitError; working memory is left as is.
func (t *Table) SaveChanges(ctx context.Context, turn *Turn, force bool) error {
	key, err := t.StorageKey(turn)
	if err != nil {
		return err
	}

	wm := turn.memoryFor(t)
	if wm == nil {
		if !force {
			return nil
		}
		if err := t.Load(ctx, turn, false); err != nil {
			return err
		}
		wm = turn.memoryFor(t)
	}

	data, err := t.codec.Marshal(wm.doc)
	if err != nil {
		return fmt.Errorf("encode conversation state %s: %w", key, err)
	}

	hash := xxhash.Sum64(data)
	if !force && hash == wm.hash {
		observability.Emit(ctx, t.observer, EventCommitSkip, observability.LevelVerbose, "property.Table.SaveChanges", map[string]any{
			"key": key,
		})
		return nil
	}

	if err := t.store.Save(ctx, store.Entry{Key: key, Value: data}); err != nil {
		observability.Emit(ctx, t.observer, EventCommitError, observability.LevelError, "property.Table.SaveChanges", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
		return &PersistenceCommitError{Key: key, Err: err}
	}
	wm.hash = hash

	observability.Emit(ctx, t.observer, EventCommit, observability.LevelVerbose, "property.Table.SaveChanges", map[string]any{
		"key":   key,
		"bytes": len(data),
		"codec": t.codec.Name(),
	})

	return nil
}

// Delete removes the conversation document from the store and resets the
// turn's working memory to an empty, already persisted document.
func (t *Table) Delete(ctx context.Context, turn *Turn) error {
	key, err := t.StorageKey(turn)
	if err != nil {
		return err
	}

	doc := map[string]any{}
	hash, err := t.hash(doc)
	if err != nil {
		return err
	}
	turn.setMemory(t, &workingMemory{doc: doc, hash: hash})

	if err := t.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete conversation state %s: %w", key, err)
	}

	observability.Emit(ctx, t.observer, EventDelete, observability.LevelInfo, "property.Table.Delete", map[string]any{
		"key": key,
	})
	return nil
}

func (t *Table) hash(doc map[string]any) (uint64, error) {
	data, err := t.codec.Marshal(doc)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}
