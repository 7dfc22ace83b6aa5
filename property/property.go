package property

import (
	"context"
	"fmt"
)

// DefaultFunc supplies the value a property takes the first time it is read
// in a conversation that has nothing stored for it.
type DefaultFunc func() map[string]any

// Property is a named slot in every conversation document of its Table.
type Property struct {
	name  string
	table *Table
}

// Name returns the registered property name.
func (p *Property) Name() string {
	return p.name
}

// Table returns the table the property is registered on.
func (p *Property) Table() *Table {
	return p.table
}

// Get returns the property's value in the turn's working memory, loading the
// conversation document on first use. The returned map is the working-memory
// object itself, not a copy.
//
// When nothing is stored yet, a deep copy of def() (or an empty map when def
// is nil or returns nil) is installed in working memory and returned. It is
// not persisted until the table commits.
func (p *Property) Get(ctx context.Context, turn *Turn, def DefaultFunc) (map[string]any, error) {
	wm, err := p.memory(ctx, turn)
	if err != nil {
		return nil, err
	}

	if raw, ok := wm.doc[p.name]; ok && raw != nil {
		value, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s holds %T", ErrInvalidValue, p.name, raw)
		}
		return value, nil
	}

	var value map[string]any
	if def != nil {
		value = Clone(def())
	}
	if value == nil {
		value = map[string]any{}
	}
	wm.doc[p.name] = value
	return value, nil
}

// Set replaces the property's value in working memory. A nil value removes
// the property.
func (p *Property) Set(ctx context.Context, turn *Turn, value map[string]any) error {
	wm, err := p.memory(ctx, turn)
	if err != nil {
		return err
	}
	if value == nil {
		delete(wm.doc, p.name)
		return nil
	}
	wm.doc[p.name] = value
	return nil
}

// Delete removes the property from working memory.
func (p *Property) Delete(ctx context.Context, turn *Turn) error {
	return p.Set(ctx, turn, nil)
}

// Commit persists the turn's working memory. This is a table-wide flush:
// pending changes to every property of the table in this turn are written,
// not only this one.
func (p *Property) Commit(ctx context.Context, turn *Turn) error {
	return p.table.SaveChanges(ctx, turn, false)
}

func (p *Property) memory(ctx context.Context, turn *Turn) (*workingMemory, error) {
	if err := p.table.Load(ctx, turn, false); err != nil {
		return nil, err
	}
	return turn.memoryFor(p.table), nil
}
