package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStores(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sqlStore, err := NewSQLStore(DialectSQLite, filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })

	return map[string]Store{
		"file":   fileStore,
		"memory": NewMemoryStore(),
		"sqlite": sqlStore,
	}
}

func seed(t *testing.T, s Store, coll string, docs ...Document) {
	t.Helper()
	for _, d := range docs {
		require.NoError(t, s.Set(context.Background(), coll, d["id"].(string), d))
	}
}

func ids(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d["id"].(string))
	}
	return out
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := Document{
				"description": "Pothole on Main St",
				"severity":    6.8,
				"location":    map[string]any{"lat": 34.05, "lng": -118.25},
				"tags":        []any{"road", "urgent"},
			}
			require.NoError(t, s.Set(ctx, "problems", "prob_1", in))

			res, err := s.Get(ctx, "problems", "prob_1")
			require.NoError(t, err)
			require.True(t, res.Exists)

			want := in.Clone()
			want["id"] = "prob_1"
			assert.Equal(t, want, res.Data)
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			res, err := s.Get(context.Background(), "problems", "nope")
			require.NoError(t, err)
			assert.False(t, res.Exists)
			assert.Nil(t, res.Data)
		})
	}
}

func TestStore_UpdateMergesAndIgnoresMissing(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s, "users", Document{"id": "u1", "name": "Ana", "balance": 1.0})

			require.NoError(t, s.Update(ctx, "users", "u1", Document{"balance": 5}))
			require.NoError(t, s.Update(ctx, "users", "ghost", Document{"balance": 5}))

			res, err := s.Get(ctx, "users", "u1")
			require.NoError(t, err)
			assert.Equal(t, "Ana", res.Data["name"])
			assert.Equal(t, 5.0, res.Data["balance"])

			ghost, err := s.Get(ctx, "users", "ghost")
			require.NoError(t, err)
			assert.False(t, ghost.Exists)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s, "bids", Document{"id": "b1"}, Document{"id": "b2"})

			require.NoError(t, s.Delete(ctx, "bids", "b1"))
			require.NoError(t, s.Delete(ctx, "bids", "b1"))

			all, err := s.All(ctx, "bids")
			require.NoError(t, err)
			assert.Equal(t, []string{"b2"}, ids(all))
		})
	}
}

func TestStore_QueryIn(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s, "problems",
				Document{"id": "p1", "status": "bidding"},
				Document{"id": "p2", "status": "pending"},
				Document{"id": "p3", "status": "assigned"},
				Document{"id": "p4"},
			)

			got, err := s.Query(context.Background(), "problems", Filter{
				Field: "status", Op: OpIn, Value: []string{"bidding", "assigned"},
			})
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"p1", "p3"}, ids(got))
		})
	}
}

func TestStore_QueryEqualNormalizesNumbers(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s, "rewards",
				Document{"id": "r1", "creditsRequired": 10},
				Document{"id": "r2", "creditsRequired": 20},
			)
			got, err := s.Query(context.Background(), "rewards", Filter{Field: "creditsRequired", Op: OpEqual, Value: 10})
			require.NoError(t, err)
			assert.Equal(t, []string{"r1"}, ids(got))
		})
	}
}

func TestStore_QueryUnsupportedOperator(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Query(context.Background(), "problems", Filter{Field: "status", Op: ">", Value: 1})
	assert.True(t, errors.Is(err, ErrUnsupportedOperator))

	_, err = s.Query(context.Background(), "problems", Filter{Field: "status", Op: OpIn, Value: "bidding"})
	assert.Error(t, err)
}

func TestStore_QueryWithSortIsStable(t *testing.T) {
	for name, s := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s, "bids",
				Document{"id": "a", "amount": 920.0, "problemId": "p"},
				Document{"id": "b", "amount": 850.0, "problemId": "p"},
				Document{"id": "c", "amount": 920.0, "problemId": "p"},
				Document{"id": "d", "amount": 100.0, "problemId": "other"},
				Document{"id": "e", "amount": 850.0, "problemId": "p"},
			)
			ctx := context.Background()
			filter := &Filter{Field: "problemId", Op: OpEqual, Value: "p"}

			asc, err := s.QueryWithSort(ctx, "bids", filter, Sort{Field: "amount", Direction: Asc})
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "e", "a", "c"}, ids(asc))

			desc, err := s.QueryWithSort(ctx, "bids", filter, Sort{Field: "amount", Direction: Desc})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c", "b", "e"}, ids(desc))

			all, err := s.QueryWithSort(ctx, "bids", nil, Sort{Field: "amount", Direction: Asc})
			require.NoError(t, err)
			assert.Equal(t, []string{"d", "b", "e", "a", "c"}, ids(all))
		})
	}
}

func TestStore_SortTimestampsAndMixedValues(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "problems",
		Document{"id": "late", "createdAt": "2025-01-02T00:00:00.5Z"},
		Document{"id": "early", "createdAt": "2025-01-02T00:00:00Z"},
		Document{"id": "mixed", "createdAt": 7},
	)
	got, err := s.QueryWithSort(context.Background(), "problems", nil, Sort{Field: "createdAt", Direction: Desc})
	require.NoError(t, err)
	assert.Equal(t, []string{"late", "early", "mixed"}, ids(got))

	_, err = s.QueryWithSort(context.Background(), "problems", nil, Sort{Field: "createdAt", Direction: "sideways"})
	assert.Error(t, err)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	seed(t, s, "rewards",
		Document{"id": "r2", "description": "Bus pass"},
		Document{"id": "r1", "description": "Coffee"},
	)
	require.NoError(t, s.Update(ctx, "rewards", "r1", Document{"isActive": true}))

	_, err = os.Stat(filepath.Join(dir, "rewards.json"))
	require.NoError(t, err)

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	all, err := reopened.All(ctx, "rewards")
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r1"}, ids(all))
	assert.Equal(t, true, all[1]["isActive"])
}

func TestFileStore_SeesWritesFromAnotherStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	server, err := NewFileStore(dir)
	require.NoError(t, err)
	cli, err := NewFileStore(dir)
	require.NoError(t, err)

	seed(t, server, "users", Document{"id": "u1", "role": "citizen"})
	seed(t, cli, "users", Document{"id": "admin", "role": "admin"})

	got, err := server.Get(ctx, "users", "admin")
	require.NoError(t, err)
	assert.True(t, got.Exists)

	seed(t, server, "users", Document{"id": "u2", "role": "citizen"})

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	all, err := reopened.All(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "admin", "u2"}, ids(all))
}

func TestFileStore_RejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte("[1,2]"), 0o644))

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "users", "u1")
	assert.Error(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "cassandra"})
	assert.Error(t, err)

	s, err := Open(context.Background(), Options{Backend: "memory"})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
