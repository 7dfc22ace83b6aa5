// Package statelayer exposes conversation state to a conversation engine as
// a value that is read whole and replaced whole.
//
// The property table hands out working-memory maps that it owns and can only
// persist those same maps. Storage.Save bridges the two models: it makes the
// owned map's contents equal to the new state (clear, then copy) and commits
// the table. Two layers exist per table: the domain layer for application
// data and the engine layer for the engine's bookkeeping, stored under the
// reserved "WOLF_STATE" property.
//
//	domain, err := statelayer.NewDomainStorageLayer(table, "")
//	engine, err := statelayer.NewEngineStorageLayer(table)
//
//	turn := property.NewTurn("web", conversationID)
//	convo := domain(turn, map[string]any{"alarms": []any{}})
//	state, err := convo.Read(ctx)
//	err = convo.Save(ctx, map[string]any{"alarms": updated})
package statelayer

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/tailored-agentic-units/convostate/observability"
	"github.com/tailored-agentic-units/convostate/property"
)

// Property names used by the layers.
const (
	DefaultPropertyName = "CONVERSATION_STATE"
	EnginePropertyName  = "WOLF_STATE"
)

// ErrReservedProperty is returned when a domain layer asks for the engine's
// property name.
var ErrReservedProperty = errors.New("property name is reserved for engine state")

// Storage reads and replaces one category of conversation state for one
// turn. It is the only persistence contract the engine depends on.
type Storage interface {
	// Read returns the current state. The map is the table's working-memory
	// object; callers that mutate it must still call Save to persist.
	Read(ctx context.Context) (map[string]any, error)
	// Save replaces the current state with newState, key for key, and
	// commits the table. A nil newState empties the state.
	Save(ctx context.Context, newState map[string]any) error
}

// Factory binds the domain layer to a turn. initial is the state a
// conversation starts with; nil means an empty map.
type Factory func(turn *property.Turn, initial map[string]any) Storage

// EngineFactory binds the engine layer to a turn.
type EngineFactory func(turn *property.Turn) Storage

// Option configures a layer.
type Option func(*options)

type options struct {
	observer      observability.Observer
	engineDefault property.DefaultFunc
}

// WithObserver sets the event observer. Defaults to NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithEngineDefault replaces DefaultEngineState as the engine layer's
// default. Ignored by the domain layer.
func WithEngineDefault(fn property.DefaultFunc) Option {
	return func(opts *options) { opts.engineDefault = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		observer:      observability.NoOpObserver{},
		engineDefault: DefaultEngineState,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewDomainStorageLayer registers propertyName on table and returns a
// factory of domain Storage. An empty propertyName selects
// DefaultPropertyName. The domain default comes from the caller per turn.
func NewDomainStorageLayer(table *property.Table, propertyName string, opts ...Option) (Factory, error) {
	if propertyName == "" {
		propertyName = DefaultPropertyName
	}
	if propertyName == EnginePropertyName {
		return nil, fmt.Errorf("%w: %s", ErrReservedProperty, propertyName)
	}

	prop, err := table.CreateProperty(propertyName)
	if err != nil {
		return nil, fmt.Errorf("create domain storage layer: %w", err)
	}
	o := buildOptions(opts)

	return func(turn *property.Turn, initial map[string]any) Storage {
		var def property.DefaultFunc
		if initial != nil {
			def = func() map[string]any { return initial }
		}
		return &layer{prop: prop, turn: turn, def: def, observer: o.observer}
	}, nil
}

// NewEngineStorageLayer registers EnginePropertyName on table and returns a
// factory of engine Storage whose default is DefaultEngineState, or the
// supplier given by WithEngineDefault.
func NewEngineStorageLayer(table *property.Table, opts ...Option) (EngineFactory, error) {
	prop, err := table.CreateProperty(EnginePropertyName)
	if err != nil {
		return nil, fmt.Errorf("create engine storage layer: %w", err)
	}
	o := buildOptions(opts)

	return func(turn *property.Turn) Storage {
		return &layer{prop: prop, turn: turn, def: o.engineDefault, observer: o.observer}
	}, nil
}

type layer struct {
	prop     *property.Property
	turn     *property.Turn
	def      property.DefaultFunc
	observer observability.Observer
}

func (l *layer) Read(ctx context.Context) (map[string]any, error) {
	state, err := l.prop.Get(ctx, l.turn, l.def)
	if err != nil {
		return nil, err
	}

	observability.Emit(ctx, l.observer, EventRead, observability.LevelVerbose, "statelayer.Read", map[string]any{
		"property": l.prop.Name(),
		"keys":     len(state),
	})
	return state, nil
}

func (l *layer) Save(ctx context.Context, newState map[string]any) error {
	// Snapshot first: newState may be the working-memory map returned by
	// Read, which the clear below would otherwise empty.
	next := maps.Clone(newState)

	current, err := l.prop.Get(ctx, l.turn, l.def)
	if err != nil {
		return err
	}

	clear(current)
	maps.Copy(current, next)

	if err := l.prop.Commit(ctx, l.turn); err != nil {
		return err
	}

	observability.Emit(ctx, l.observer, EventSave, observability.LevelVerbose, "statelayer.Save", map[string]any{
		"property": l.prop.Name(),
		"keys":     len(current),
	})
	return nil
}
