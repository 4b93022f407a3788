package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeImplementations(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_SaveGetList(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			older := Record{
				ID:        "b",
				Name:      "first",
				Data:      map[string]any{"plan": "p", "cost": 12},
				Status:    StatusPending,
				CreatedAt: testNow,
			}
			newer := Record{
				ID:        "a",
				Name:      "second",
				Status:    StatusPending,
				CreatedAt: testNow.Add(time.Minute),
			}
			require.NoError(t, store.Save(ctx, newer))
			require.NoError(t, store.Save(ctx, older))

			got, err := store.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, "first", got.Name)
			assert.True(t, got.CreatedAt.Equal(testNow))
			assert.True(t, got.ResolvedAt.IsZero())
			assert.Equal(t, "p", got.Data["plan"])
			assert.EqualValues(t, 12, got.Data["cost"])

			pending, err := store.List(ctx, StatusPending)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, "b", pending[0].ID, "oldest first")
			assert.Equal(t, "a", pending[1].ID)

			older.Status = StatusApproved
			older.ResolvedAt = testNow.Add(2 * time.Minute)
			older.Feedback = "ok"
			require.NoError(t, store.Save(ctx, older))

			pending, err = store.List(ctx, StatusPending)
			require.NoError(t, err)
			assert.Len(t, pending, 1)

			got, err = store.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, StatusApproved, got.Status)
			assert.Equal(t, "ok", got.Feedback)
			assert.True(t, got.ResolvedAt.Equal(older.ResolvedAt))

			_, err = store.Get(ctx, "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStore_IsolatesData(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	data := map[string]any{"k": "v"}
	require.NoError(t, store.Save(ctx, Record{ID: "x", Data: data, Status: StatusPending}))

	data["k"] = "mutated"
	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "v", got.Data["k"])
}
