// Package bridge wires a store, a property table and the domain and engine
// state layers together from configuration, and runs turns against them.
//
//	b, err := bridge.New(&cfg)
//	defer b.Close()
//
//	turn := property.NewTurn("web", conversationID)
//	err = b.RunTurn(ctx, turn, map[string]any{"alarms": []any{}}, func(ctx context.Context, s bridge.Bindings) error {
//	    state, err := s.Domain.Read(ctx)
//	    ...
//	})
package bridge

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/convostate/codec"
	"github.com/tailored-agentic-units/convostate/observability"
	"github.com/tailored-agentic-units/convostate/property"
	"github.com/tailored-agentic-units/convostate/statelayer"
	"github.com/tailored-agentic-units/convostate/store"
)

// Option configures a Bridge before its table and layers are built.
// Overrides replace config-created defaults.
type Option func(*Bridge)

// WithStore overrides the config-created store. The bridge does not close a
// store supplied this way.
func WithStore(s store.Store) Option {
	return func(b *Bridge) { b.store = s }
}

// WithCodec overrides the configured codec.
func WithCodec(c codec.Codec) Option {
	return func(b *Bridge) { b.codec = c }
}

// WithObserver overrides the configured observer.
func WithObserver(o observability.Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// Bindings are the two state layers bound to one turn.
type Bindings struct {
	Domain statelayer.Storage
	Engine statelayer.Storage
}

// Bridge owns the store and the property table shared by both layers.
type Bridge struct {
	store      store.Store
	ownsStore  bool
	codec      codec.Codec
	observer   observability.Observer
	table      *property.Table
	domain     statelayer.Factory
	engine     statelayer.EngineFactory
	domainName string
}

// New creates a Bridge from configuration. An empty codec selects JSON and
// an empty observer discards events.
func New(cfg *Config, opts ...Option) (*Bridge, error) {
	b := &Bridge{domainName: cfg.PropertyName}

	for _, opt := range opts {
		opt(b)
	}

	if b.codec == nil && cfg.Codec == "" {
		b.codec = codec.JSON
	}
	if b.codec == nil {
		c, err := codec.Get(cfg.Codec)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve codec: %w", err)
		}
		b.codec = c
	}

	if b.observer == nil && cfg.Observer == "" {
		b.observer = observability.NoOpObserver{}
	}
	if b.observer == nil {
		obs, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		b.observer = obs
	}

	if b.store == nil {
		s, err := store.NewStore(&cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		b.store = s
		b.ownsStore = true
	}

	b.table = property.NewTable(b.store,
		property.WithCodec(b.codec),
		property.WithObserver(b.observer),
	)

	domain, err := statelayer.NewDomainStorageLayer(b.table, b.domainName, statelayer.WithObserver(b.observer))
	if err != nil {
		b.Close()
		return nil, err
	}
	engine, err := statelayer.NewEngineStorageLayer(b.table, statelayer.WithObserver(b.observer))
	if err != nil {
		b.Close()
		return nil, err
	}
	b.domain = domain
	b.engine = engine

	return b, nil
}

// Table returns the bridge's property table.
func (b *Bridge) Table() *property.Table {
	return b.table
}

// Store returns the bridge's store.
func (b *Bridge) Store() store.Store {
	return b.store
}

// Bind returns both layers bound to turn. initial is the domain state a new
// conversation starts with.
func (b *Bridge) Bind(turn *property.Turn, initial map[string]any) Bindings {
	return Bindings{
		Domain: b.domain(turn, initial),
		Engine: b.engine(turn),
	}
}

// RunTurn binds both layers to turn, runs fn, and commits the table once fn
// returns without error. A commit that has nothing new to write is skipped.
func (b *Bridge) RunTurn(ctx context.Context, turn *property.Turn, initial map[string]any, fn func(context.Context, Bindings) error) error {
	if err := fn(ctx, b.Bind(turn, initial)); err != nil {
		return err
	}
	return b.table.SaveChanges(ctx, turn, false)
}

// ReadTurn binds both layers to turn and runs fn without committing. The
// conversation document is reloaded from the store first, so fn sees only
// persisted state; uncommitted changes already in turn are discarded.
// Defaults installed by reads stay in working memory and are never written.
func (b *Bridge) ReadTurn(ctx context.Context, turn *property.Turn, initial map[string]any, fn func(context.Context, Bindings) error) error {
	if err := b.table.Load(ctx, turn, true); err != nil {
		return err
	}
	return fn(ctx, b.Bind(turn, initial))
}

// Close releases the store when the bridge created it.
func (b *Bridge) Close() error {
	if !b.ownsStore || b.store == nil {
		return nil
	}
	return store.Close(b.store)
}
