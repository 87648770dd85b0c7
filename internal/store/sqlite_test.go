package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roniherschmann/linkpulse/internal/store"
)

var memdbSeq atomic.Int64

func newSQLite(t *testing.T) store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", memdbSeq.Add(1))
	s, err := store.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_InsertAndLookup(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertLink(ctx, store.Link{
		Alias: "abc12345", Target: "https://example.com", Topic: "news", Owner: "u1", CreatedAt: created,
	}))

	byAlias, err := s.LinkByAlias(ctx, "abc12345")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", byAlias.Target)
	assert.Equal(t, "news", byAlias.Topic)
	assert.Equal(t, "u1", byAlias.Owner)
	assert.True(t, created.Equal(byAlias.CreatedAt))

	byTarget, err := s.LinkByTarget(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "abc12345", byTarget.Alias)
}

func TestSQLite_OptionalFieldsStayEmpty(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.InsertLink(ctx, store.Link{Alias: "plain001", Target: "https://plain.test", CreatedAt: time.Now()}))

	l, err := s.LinkByAlias(ctx, "plain001")
	require.NoError(t, err)
	assert.Empty(t, l.Topic)
	assert.Empty(t, l.Owner)
}

func TestSQLite_NotFound(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	_, err := s.LinkByAlias(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.LinkByTarget(ctx, "https://nowhere.test")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLite_InsertLinkConflicts(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.InsertLink(ctx, store.Link{Alias: "taken", Target: "https://a.test", CreatedAt: now}))

	err := s.InsertLink(ctx, store.Link{Alias: "taken", Target: "https://b.test", CreatedAt: now})
	assert.ErrorIs(t, err, store.ErrAliasTaken)

	err = s.InsertLink(ctx, store.Link{Alias: "other", Target: "https://a.test", CreatedAt: now})
	assert.ErrorIs(t, err, store.ErrTargetTaken)

	// The failed inserts left nothing behind.
	_, err = s.LinkByAlias(ctx, "other")
	assert.ErrorIs(t, err, store.ErrNotFound)
	l, err := s.LinkByAlias(ctx, "taken")
	require.NoError(t, err)
	assert.Equal(t, "https://a.test", l.Target)
}

func TestSQLite_LinksByTopicAndOwner(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	links := []store.Link{
		{Alias: "t1", Target: "https://1.test", Topic: "sport", Owner: "alice", CreatedAt: base},
		{Alias: "t2", Target: "https://2.test", Topic: "sport", Owner: "bob", CreatedAt: base.Add(time.Minute)},
		{Alias: "t3", Target: "https://3.test", Topic: "tech", Owner: "alice", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, l := range links {
		require.NoError(t, s.InsertLink(ctx, l))
	}

	sport, err := s.LinksByTopic(ctx, "sport")
	require.NoError(t, err)
	require.Len(t, sport, 2)
	assert.Equal(t, "t1", sport[0].Alias)
	assert.Equal(t, "t2", sport[1].Alias)

	alice, err := s.LinksByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "t1", alice[0].Alias)
	assert.Equal(t, "t3", alice[1].Alias)

	none, err := s.LinksByTopic(ctx, "cooking")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_ScanVisitsInTimeOrder(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	visits := []store.Visit{
		{ID: "v3", Alias: "a", VisitedAt: base.Add(2 * time.Hour), IP: "3.3.3.3", OS: "Linux", Device: "Desktop"},
		{ID: "v1", Alias: "a", VisitedAt: base, IP: "1.1.1.1", UserAgent: "ua", Country: "NL", Region: "NH", City: "Amsterdam"},
		{ID: "v2", Alias: "a", VisitedAt: base.Add(time.Hour), IP: "2.2.2.2"},
		{ID: "x1", Alias: "b", VisitedAt: base, IP: "9.9.9.9"},
	}
	for _, v := range visits {
		require.NoError(t, s.InsertVisit(ctx, v))
	}

	var got []store.Visit
	require.NoError(t, s.ScanVisits(ctx, "a", func(v store.Visit) error {
		got = append(got, v)
		return nil
	}))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"v1", "v2", "v3"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "Amsterdam", got[0].City)
	assert.Equal(t, "Linux", got[2].OS)
	assert.True(t, base.Equal(got[0].VisitedAt))
}

func TestSQLite_ScanVisitsStopsOnCallbackError(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertVisit(ctx, store.Visit{ID: fmt.Sprintf("v%d", i), Alias: "a", VisitedAt: time.Now()}))
	}

	stop := errors.New("stop")
	calls := 0
	err := s.ScanVisits(ctx, "a", func(store.Visit) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestSQLite_TopAliases(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	now := time.Now()

	for _, a := range []string{"cold", "hot", "warm"} {
		require.NoError(t, s.InsertLink(ctx, store.Link{Alias: a, Target: "https://" + a + ".test", CreatedAt: now}))
	}
	n := 0
	hit := func(alias string, times int) {
		for i := 0; i < times; i++ {
			n++
			require.NoError(t, s.InsertVisit(ctx, store.Visit{ID: fmt.Sprintf("v%d", n), Alias: alias, VisitedAt: now}))
		}
	}
	hit("hot", 3)
	hit("warm", 1)

	top, err := s.TopAliases(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"hot", "warm"}, top)

	all, err := s.TopAliases(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"hot", "warm", "cold"}, all)
}

func TestSQLite_Ping(t *testing.T) {
	s := newSQLite(t)
	assert.NoError(t, s.Ping(context.Background()))
}
