package sharedmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_VersionsAndLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base }
	first, err := s.Store(ctx, "plan", map[string]any{"step": 1}, Metadata{}, "agent-a", 0)
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(time.Second) }
	second, err := s.Store(ctx, "plan", map[string]any{"step": 2}, Metadata{}, "agent-b", 0)
	require.NoError(t, err)

	latest, err := s.Get(ctx, "plan")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	all, err := s.GetAll(ctx, "plan")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[1].ID)

	// Get(key) equals the max-createdAt element of GetAll(key).
	assert.Equal(t, all[0].CreatedAt, latest.CreatedAt)
}

func TestStore_TieBreakByInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fixed := time.Now()
	s.now = func() time.Time { return fixed }

	_, err := s.Store(ctx, "k", "v1", Metadata{}, "", 0)
	require.NoError(t, err)
	second, err := s.Store(ctx, "k", "v2", Metadata{}, "", 0)
	require.NoError(t, err)

	latest, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID, "createdAt ties break by monotonic sequence")
}

func TestStore_GetMissingKey(t *testing.T) {
	s := newTestStore(t)

	entry, err := s.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, entry)

	all, err := s.GetAll(context.Background(), "absent")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.Store(ctx, "status", "pending", Metadata{Context: "swarm"}, "agent-a", 0)
	require.NoError(t, err)

	updated, err := s.Update(ctx, entry.ID, "running", nil)
	require.NoError(t, err)
	assert.Equal(t, "running", updated.Value)
	assert.Equal(t, "swarm", updated.Metadata.Context, "metadata untouched when nil")
	assert.GreaterOrEqual(t, updated.UpdatedAt, updated.CreatedAt)

	meta := Metadata{Tags: []string{"final"}, Priority: 2}
	updated, err = s.Update(ctx, entry.ID, "done", &meta)
	require.NoError(t, err)
	assert.Equal(t, []string{"final"}, updated.Metadata.Tags)

	_, err = s.Update(ctx, "mem-missing", "x", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.Store(ctx, "tmp", 1, Metadata{}, "", 0)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, entry.ID))

	got, err := s.Get(ctx, "tmp")
	require.NoError(t, err)
	assert.Nil(t, got, "deleted id must not be returned by any read")

	err = s.Delete(ctx, entry.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_DeleteByKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Store(ctx, "multi", i, Metadata{}, "", 0)
		require.NoError(t, err)
	}

	n, err := s.DeleteByKey(ctx, "multi")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.DeleteByKey(ctx, "multi")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_TTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	expired, err := s.Store(ctx, "ttl", "old", Metadata{}, "", now.Add(-time.Second).UnixMilli())
	require.NoError(t, err)
	_, err = s.Store(ctx, "ttl", "live", Metadata{}, "", now.Add(time.Hour).UnixMilli())
	require.NoError(t, err)

	// Expired entries are invisible to reads but remain until cleanup.
	latest, err := s.Get(ctx, "ttl")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "live", latest.Value)

	all, err := s.GetAll(ctx, "ttl")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	byID, err := s.GetByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.NotNil(t, byID, "expired entry still present before cleanup")

	n, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	byID, err = s.GetByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.Nil(t, byID)
}

func TestStore_Query(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, spec := range []struct {
		key     string
		agent   string
		context string
		tags    []string
	}{
		{"a", "agent-1", "swarm", []string{"x", "y"}},
		{"b", "agent-1", "swarm", []string{"x"}},
		{"c", "agent-2", "deploy", []string{"x", "y", "z"}},
	} {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		_, err := s.Store(ctx, spec.key, i, Metadata{Context: spec.context, Tags: spec.tags}, spec.agent, 0)
		require.NoError(t, err)
	}

	byAgent, err := s.Query(ctx, QueryFilter{AgentID: "agent-1"})
	require.NoError(t, err)
	require.Len(t, byAgent, 2)
	assert.Equal(t, "b", byAgent[0].Key, "default order createdAt desc")

	byContext, err := s.Query(ctx, QueryFilter{Context: "deploy"})
	require.NoError(t, err)
	require.Len(t, byContext, 1)
	assert.Equal(t, "c", byContext[0].Key)

	// Tag filter requires all listed tags.
	byTags, err := s.Query(ctx, QueryFilter{Tags: []string{"x", "y"}})
	require.NoError(t, err)
	assert.Len(t, byTags, 2)

	limited, err := s.Query(ctx, QueryFilter{Tags: []string{"x"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].Key)

	asc, err := s.Query(ctx, QueryFilter{OrderDir: "asc"})
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.Equal(t, "a", asc[0].Key)
}

func TestStore_Subscribe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var all []Change
	subAll := s.Subscribe(func(c Change) { all = append(all, c) }, SubscriptionFilter{})

	var keyed []Change
	subKeyed := s.Subscribe(func(c Change) { keyed = append(keyed, c) }, SubscriptionFilter{Key: "watched"})

	entry, err := s.Store(ctx, "watched", "v", Metadata{}, "agent-a", 0)
	require.NoError(t, err)
	_, err = s.Store(ctx, "other", "v", Metadata{}, "agent-b", 0)
	require.NoError(t, err)
	_, err = s.Update(ctx, entry.ID, "v2", nil)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, entry.ID))

	require.Len(t, all, 4)
	assert.Equal(t, ChangeInsert, all[0].Type)
	assert.Equal(t, ChangeUpdate, all[2].Type)
	assert.Equal(t, ChangeDelete, all[3].Type)

	require.Len(t, keyed, 3, "key filter hides the other key")
	for _, c := range keyed {
		assert.Equal(t, "watched", c.Entry.Key)
	}

	// Idempotent unsubscribe.
	subKeyed.Unsubscribe()
	subKeyed.Unsubscribe()
	_, err = s.Store(ctx, "watched", "after", Metadata{}, "", 0)
	require.NoError(t, err)
	assert.Len(t, keyed, 3)
	assert.Len(t, all, 5)

	subAll.Unsubscribe()
}
