package statelayer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/convostate/observability"
	"github.com/tailored-agentic-units/convostate/property"
	"github.com/tailored-agentic-units/convostate/statelayer"
	"github.com/tailored-agentic-units/convostate/store"
)

type layers struct {
	store  store.Store
	table  *property.Table
	domain statelayer.Factory
	engine statelayer.EngineFactory
}

func newLayers(t *testing.T, s store.Store, opts ...statelayer.Option) layers {
	t.Helper()

	if s == nil {
		s = store.NewMemoryStore()
	}
	table := property.NewTable(s)

	domain, err := statelayer.NewDomainStorageLayer(table, "", opts...)
	require.NoError(t, err)
	engine, err := statelayer.NewEngineStorageLayer(table, opts...)
	require.NoError(t, err)

	return layers{store: s, table: table, domain: domain, engine: engine}
}

func alarmDefault() map[string]any {
	return map[string]any{"alarms": []any{}}
}

func TestSave_ThenRead(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()
	convo := l.domain(property.NewTurn("web", "1"), nil)

	v1 := map[string]any{"name": "Sam", "count": 2, "tags": []any{"a", "b"}}
	require.NoError(t, convo.Save(ctx, v1))

	got, err := convo.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1, got)
}

func TestSave_ReplacesNotMerges(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()
	convo := l.domain(property.NewTurn("web", "1"), nil)

	require.NoError(t, convo.Save(ctx, map[string]any{"name": "Sam", "shared": 1}))
	require.NoError(t, convo.Save(ctx, map[string]any{"greeting": "hi", "shared": 2}))

	got, err := convo.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"greeting": "hi", "shared": 2}, got)
}

func TestSave_NameDoesNotSurvive(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()
	convo := l.domain(property.NewTurn("web", "1"), nil)

	require.NoError(t, convo.Save(ctx, map[string]any{"name": "Sam"}))
	require.NoError(t, convo.Save(ctx, map[string]any{"greeting": "hi"}))

	got, err := convo.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"greeting": "hi"}, got)
	assert.NotContains(t, got, "name")

	// The replacement is also what a later turn loads from the store.
	later, err := l.domain(property.NewTurn("web", "1"), nil).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"greeting": "hi"}, later)
}

func TestRead_FreshTurnReturnsDefault(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()

	withDefault, err := l.domain(property.NewTurn("web", "1"), alarmDefault()).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, alarmDefault(), withDefault)

	withoutDefault, err := l.domain(property.NewTurn("web", "2"), nil).Read(ctx)
	require.NoError(t, err)
	assert.NotNil(t, withoutDefault)
	assert.Empty(t, withoutDefault)

	engineState, err := l.engine(property.NewTurn("web", "3")).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, statelayer.DefaultEngineState(), engineState)
}

func TestRead_DoesNotAliasInitialState(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()
	initial := alarmDefault()

	state, err := l.domain(property.NewTurn("web", "1"), initial).Read(ctx)
	require.NoError(t, err)
	state["alarms"] = append(state["alarms"].([]any), "mutated")

	assert.Empty(t, initial["alarms"])
}

func TestConversations_Isolated(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()

	require.NoError(t, l.domain(property.NewTurn("web", "a"), nil).Save(ctx, map[string]any{"owner": "a"}))
	require.NoError(t, l.domain(property.NewTurn("web", "b"), nil).Save(ctx, map[string]any{"owner": "b"}))

	a, err := l.domain(property.NewTurn("web", "a"), nil).Read(ctx)
	require.NoError(t, err)
	b, err := l.domain(property.NewTurn("web", "b"), nil).Read(ctx)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"owner": "a"}, a)
	assert.Equal(t, map[string]any{"owner": "b"}, b)
}

func TestDomainAndEngine_DoNotCollide(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()
	turn := property.NewTurn("web", "1")

	convo := l.domain(turn, alarmDefault())
	engine := l.engine(turn)

	engineState := statelayer.DefaultEngineState()
	engineState["waitingFor"] = map[string]any{"slotName": "alarmTime", "abilityName": "addAlarm"}
	require.NoError(t, engine.Save(ctx, engineState))
	require.NoError(t, convo.Save(ctx, map[string]any{"alarms": []any{"wake"}}))

	gotEngine, err := engine.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, engineState, gotEngine)

	gotConvo, err := convo.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"alarms": []any{"wake"}}, gotConvo)

	next := property.NewTurn("web", "1")
	persistedEngine, err := l.engine(next).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t,
		map[string]any{"slotName": "alarmTime", "abilityName": "addAlarm"},
		persistedEngine["waitingFor"],
	)
	persistedConvo, err := l.domain(next, nil).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"wake"}, persistedConvo["alarms"])
}

func TestAlarmScenario(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()
	convo := l.domain(property.NewTurn("web", "1"), alarmDefault())

	wake := map[string]any{"alarmName": "wake", "alarmTime": "7am"}
	require.NoError(t, convo.Save(ctx, map[string]any{"alarms": []any{wake}}))

	got, err := convo.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"alarms": []any{wake}}, got)
}

func TestSave_AcceptsReadResult(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()
	convo := l.domain(property.NewTurn("web", "1"), nil)

	state, err := convo.Read(ctx)
	require.NoError(t, err)
	state["name"] = "Sam"
	require.NoError(t, convo.Save(ctx, state))

	got, err := convo.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Sam"}, got)
}

func TestSave_NilEmptiesState(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()
	convo := l.domain(property.NewTurn("web", "1"), nil)

	require.NoError(t, convo.Save(ctx, map[string]any{"name": "Sam"}))
	require.NoError(t, convo.Save(ctx, nil))

	got, err := convo.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSave_DoesNotRetainCallerMap(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()
	convo := l.domain(property.NewTurn("web", "1"), nil)

	newState := map[string]any{"name": "Sam"}
	require.NoError(t, convo.Save(ctx, newState))
	newState["late"] = true

	got, err := convo.Read(ctx)
	require.NoError(t, err)
	assert.NotContains(t, got, "late")
}

// failingStore fails every Save with the configured error.
type failingStore struct {
	store.Store
	err error
}

func (s *failingStore) Save(context.Context, ...store.Entry) error {
	return s.err
}

func TestSave_CommitFailureSurfaces(t *testing.T) {
	backend := &failingStore{Store: store.NewMemoryStore(), err: store.ErrSaveFailed}
	l := newLayers(t, backend)
	ctx := context.Background()
	turn := property.NewTurn("web", "1")
	convo := l.domain(turn, nil)

	err := convo.Save(ctx, map[string]any{"name": "Sam"})

	var commitErr *property.PersistenceCommitError
	require.ErrorAs(t, err, &commitErr)
	assert.ErrorIs(t, err, store.ErrSaveFailed)

	// Working memory already holds the new value within the turn.
	got, err := convo.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Sam"}, got)

	// Nothing reached the store.
	keys, err := backend.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestContextBindingError(t *testing.T) {
	l := newLayers(t, nil)
	ctx := context.Background()

	_, err := l.domain(nil, nil).Read(ctx)
	assert.ErrorIs(t, err, property.ErrContextBinding)

	err = l.engine(&property.Turn{}).Save(ctx, map[string]any{})
	assert.ErrorIs(t, err, property.ErrContextBinding)
}

func TestNewDomainStorageLayer_Names(t *testing.T) {
	table := property.NewTable(store.NewMemoryStore())

	_, err := statelayer.NewDomainStorageLayer(table, statelayer.EnginePropertyName)
	assert.ErrorIs(t, err, statelayer.ErrReservedProperty)

	_, err = statelayer.NewDomainStorageLayer(table, "")
	require.NoError(t, err)
	_, ok := table.Property(statelayer.DefaultPropertyName)
	assert.True(t, ok)

	_, err = statelayer.NewDomainStorageLayer(table, statelayer.DefaultPropertyName)
	assert.ErrorIs(t, err, property.ErrPropertyExists)

	_, err = statelayer.NewDomainStorageLayer(table, "PROFILE")
	require.NoError(t, err)

	_, err = statelayer.NewEngineStorageLayer(table)
	require.NoError(t, err)
	_, err = statelayer.NewEngineStorageLayer(table)
	assert.ErrorIs(t, err, property.ErrPropertyExists)
}

func TestWithEngineDefault(t *testing.T) {
	table := property.NewTable(store.NewMemoryStore())
	engine, err := statelayer.NewEngineStorageLayer(table, statelayer.WithEngineDefault(func() map[string]any {
		return map[string]any{"custom": true}
	}))
	require.NoError(t, err)

	got, err := engine(property.NewTurn("web", "1")).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"custom": true}, got)
}

func TestDefaultEngineState_Fresh(t *testing.T) {
	a := statelayer.DefaultEngineState()
	a["messageQueue"] = []any{"hello"}

	b := statelayer.DefaultEngineState()
	assert.Empty(t, b["messageQueue"])
}

func TestEvents(t *testing.T) {
	var events []observability.Event
	l := newLayers(t, nil, statelayer.WithObserver(observerFunc(func(_ context.Context, e observability.Event) {
		events = append(events, e)
	})))
	ctx := context.Background()
	convo := l.domain(property.NewTurn("web", "1"), nil)

	_, err := convo.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, convo.Save(ctx, map[string]any{"a": 1}))

	require.Len(t, events, 2)
	assert.Equal(t, statelayer.EventRead, events[0].Type)
	assert.Equal(t, statelayer.EventSave, events[1].Type)
	assert.Equal(t, statelayer.DefaultPropertyName, events[1].Data["property"])
}

type observerFunc func(ctx context.Context, event observability.Event)

func (f observerFunc) OnEvent(ctx context.Context, event observability.Event) { f(ctx, event) }
