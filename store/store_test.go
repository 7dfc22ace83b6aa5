package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/convostate/store"
)

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]store.Store {
	t.Helper()

	sqlite, err := store.OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]store.Store{
		"memory": store.NewMemoryStore(),
		"file":   store.NewFileStore(t.TempDir()),
		"sqlite": sqlite,
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx,
				store.Entry{Key: "test/conversations/a", Value: []byte("first")},
				store.Entry{Key: "test/conversations/b", Value: []byte("second")},
			))

			entries, err := s.Load(ctx, "test/conversations/b", "test/conversations/a")
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, "test/conversations/b", entries[0].Key)
			assert.Equal(t, "second", string(entries[0].Value))
			assert.Equal(t, "test/conversations/a", entries[1].Key)
			assert.Equal(t, "first", string(entries[1].Value))
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, store.Entry{Key: "doc", Value: []byte("v1")}))
			require.NoError(t, s.Save(ctx, store.Entry{Key: "doc", Value: []byte("v2")}))

			entries, err := s.Load(ctx, "doc")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(entries[0].Value))
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background(), "missing")
			assert.ErrorIs(t, err, store.ErrKeyNotFound)
		})
	}
}

func TestStore_ListSorted(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"c/conversations/3", "a/conversations/1", "b/conversations/2"} {
				require.NoError(t, s.Save(ctx, store.Entry{Key: key, Value: []byte(key)}))
			}

			keys, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a/conversations/1", "b/conversations/2", "c/conversations/3"}, keys)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, store.Entry{Key: "x/conversations/1", Value: []byte("v")}))
			require.NoError(t, s.Delete(ctx, "x/conversations/1", "never-saved"))

			_, err := s.Load(ctx, "x/conversations/1")
			assert.ErrorIs(t, err, store.ErrKeyNotFound)

			keys, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestStore_ValuesAreCopied(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			input := []byte("original")
			require.NoError(t, s.Save(ctx, store.Entry{Key: "doc", Value: input}))
			input[0] = 'X'

			entries, err := s.Load(ctx, "doc")
			require.NoError(t, err)
			entries[0].Value[0] = 'Y'

			again, err := s.Load(ctx, "doc")
			require.NoError(t, err)
			assert.Equal(t, "original", string(again[0].Value))
		})
	}
}

func TestStore_EmptyKeyRejected(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Save(context.Background(), store.Entry{Key: "", Value: []byte("v")})
			assert.ErrorIs(t, err, store.ErrInvalidKey)
		})
	}
}
