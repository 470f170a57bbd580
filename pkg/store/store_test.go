package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the Store contract against any implementation.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "/nothing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("PutAndGet", func(t *testing.T) {
		s := newStore(t)
		expire := time.Now().Add(time.Hour).Truncate(time.Second)
		data := map[string]any{"name": "ada", "count": int64(3), "tags": []any{"x"}}

		rev, err := s.Put(ctx, "/users/1", data, Meta{Hash: "h1", UserID: "u1", Expire: expire})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(rev, "1-"), "revision %q", rev)

		got, err := s.Get(ctx, "/users/1")
		require.NoError(t, err)
		assert.Equal(t, "/users/1", got.ID)
		assert.Equal(t, data, got.Data)
		assert.Equal(t, "h1", got.Hash)
		assert.Equal(t, rev, got.Revision)
		assert.Equal(t, "u1", got.UserID)
		assert.True(t, expire.Equal(got.Expire), "expire %v, want %v", got.Expire, expire)
	})

	t.Run("RevisionAdvances", func(t *testing.T) {
		s := newStore(t)
		rev1, err := s.Put(ctx, "/a", []any{int64(1)}, Meta{})
		require.NoError(t, err)

		rev2, err := s.Put(ctx, "/a", []any{int64(2)}, Meta{Revision: rev1})
		require.NoError(t, err)
		assert.NotEqual(t, rev1, rev2)
		assert.True(t, strings.HasPrefix(rev2, "2-"), "revision %q", rev2)
	})

	t.Run("StaleRevisionConflicts", func(t *testing.T) {
		s := newStore(t)
		rev1, err := s.Put(ctx, "/a", "v1", Meta{})
		require.NoError(t, err)
		_, err = s.Put(ctx, "/a", "v2", Meta{Revision: rev1})
		require.NoError(t, err)

		_, err = s.Put(ctx, "/a", "v3", Meta{Revision: rev1})
		require.ErrorIs(t, err, ErrRevisionConflict)

		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "/a", conflict.ID)
		assert.Equal(t, rev1, conflict.Expected)

		got, err := s.Get(ctx, "/a")
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Data)
	})

	t.Run("CreateOverExistingConflicts", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(ctx, "/a", "v1", Meta{})
		require.NoError(t, err)
		_, err = s.Put(ctx, "/a", "v2", Meta{})
		assert.ErrorIs(t, err, ErrRevisionConflict)
	})

	t.Run("UpdateMissingConflicts", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(ctx, "/a", "v1", Meta{Revision: "3-abcdef"})
		assert.ErrorIs(t, err, ErrRevisionConflict)
	})

	t.Run("EmptyID", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(ctx, "", "v", Meta{})
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(ctx, "/a", "v1", Meta{})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "/a"))
		_, err = s.Get(ctx, "/a")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.NoError(t, s.Delete(ctx, "/a"), "deleting twice")
	})

	t.Run("SweepRemovesOnlyExpired", func(t *testing.T) {
		s := newStore(t)
		now := time.Now()
		_, err := s.Put(ctx, "/old", "x", Meta{Expire: now.Add(-time.Minute)})
		require.NoError(t, err)
		_, err = s.Put(ctx, "/fresh", "y", Meta{Expire: now.Add(time.Hour)})
		require.NoError(t, err)
		_, err = s.Put(ctx, "/forever", "z", Meta{})
		require.NoError(t, err)

		removed, err := s.Sweep(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = s.Get(ctx, "/old")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Get(ctx, "/fresh")
		assert.NoError(t, err)
		_, err = s.Get(ctx, "/forever")
		assert.NoError(t, err)
	})

	t.Run("GetReturnsExpired", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(ctx, "/old", "x", Meta{Expire: time.Now().Add(-time.Minute)})
		require.NoError(t, err)

		got, err := s.Get(ctx, "/old")
		require.NoError(t, err)
		assert.True(t, got.Expired(time.Now()))
	})

	t.Run("InitializeSweeps", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(ctx, "/old", "x", Meta{Expire: time.Now().Add(-time.Minute)})
		require.NoError(t, err)

		require.NoError(t, s.Initialize(ctx))
		_, err = s.Get(ctx, "/old")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := newStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Get(cctx, "/a")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStoreIsolatesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := map[string]any{"n": int64(1)}
	_, err := s.Put(ctx, "/a", data, Meta{})
	require.NoError(t, err)
	data["n"] = int64(2)

	got, err := s.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Data.(map[string]any)["n"])

	got.Data.(map[string]any)["n"] = int64(3)
	again, err := s.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Data.(map[string]any)["n"])
	assert.Equal(t, 1, s.Len())
}

func TestGeneration(t *testing.T) {
	tests := []struct {
		rev  string
		want int
	}{
		{"", 0},
		{"1-abc", 1},
		{"12-ff", 12},
		{"junk", 0},
		{"-1-x", 0},
	}
	for _, tt := range tests {
		if got := generation(tt.rev); got != tt.want {
			t.Errorf("generation(%q) = %d, want %d", tt.rev, got, tt.want)
		}
	}
}
