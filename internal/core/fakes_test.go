package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/roniherschmann/linkpulse/internal/geo"
	"github.com/roniherschmann/linkpulse/internal/store"
)

// memStore is an in-memory store.Store that counts calls per method.
type memStore struct {
	mu       sync.Mutex
	links    map[string]store.Link
	byTarget map[string]string
	visits   []store.Visit
	calls    map[string]int

	// onInsert runs before InsertLink applies, outside the lock.
	onInsert  func(l store.Link)
	visitErr  error
	lookupErr error
}

func newMemStore() *memStore {
	return &memStore{
		links:    make(map[string]store.Link),
		byTarget: make(map[string]string),
		calls:    make(map[string]int),
	}
}

func (m *memStore) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *memStore) resetCalls() {
	m.mu.Lock()
	m.calls = make(map[string]int)
	m.mu.Unlock()
}

func (m *memStore) put(l store.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[l.Alias] = l
	m.byTarget[l.Target] = l.Alias
}

func (m *memStore) storedVisits() []store.Visit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Visit(nil), m.visits...)
}

func (m *memStore) InsertLink(_ context.Context, l store.Link) error {
	if m.onInsert != nil {
		m.onInsert(l)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["InsertLink"]++
	if _, ok := m.links[l.Alias]; ok {
		return store.ErrAliasTaken
	}
	if _, ok := m.byTarget[l.Target]; ok {
		return store.ErrTargetTaken
	}
	m.links[l.Alias] = l
	m.byTarget[l.Target] = l.Alias
	return nil
}

func (m *memStore) LinkByAlias(_ context.Context, alias string) (store.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["LinkByAlias"]++
	if m.lookupErr != nil {
		return store.Link{}, m.lookupErr
	}
	l, ok := m.links[alias]
	if !ok {
		return store.Link{}, store.ErrNotFound
	}
	return l, nil
}

func (m *memStore) LinkByTarget(_ context.Context, target string) (store.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["LinkByTarget"]++
	alias, ok := m.byTarget[target]
	if !ok {
		return store.Link{}, store.ErrNotFound
	}
	return m.links[alias], nil
}

func (m *memStore) LinksByTopic(_ context.Context, topic string) ([]store.Link, error) {
	return m.filter("LinksByTopic", func(l store.Link) bool { return l.Topic == topic }), nil
}

func (m *memStore) LinksByOwner(_ context.Context, owner string) ([]store.Link, error) {
	return m.filter("LinksByOwner", func(l store.Link) bool { return l.Owner == owner }), nil
}

func (m *memStore) filter(method string, keep func(store.Link) bool) []store.Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	var res []store.Link
	for _, l := range m.links {
		if keep(l) {
			res = append(res, l)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].Alias < res[j].Alias
	})
	return res
}

func (m *memStore) InsertVisit(_ context.Context, v store.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["InsertVisit"]++
	if m.visitErr != nil {
		return m.visitErr
	}
	m.visits = append(m.visits, v)
	return nil
}

func (m *memStore) ScanVisits(ctx context.Context, alias string, fn func(store.Visit) error) error {
	m.mu.Lock()
	m.calls["ScanVisits"]++
	var matched []store.Visit
	for _, v := range m.visits {
		if v.Alias == alias {
			matched = append(matched, v)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].VisitedAt.Before(matched[j].VisitedAt) })
	for _, v := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) TopAliases(_ context.Context, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["TopAliases"]++
	hits := make(map[string]int)
	var aliases []string
	for a := range m.links {
		aliases = append(aliases, a)
	}
	for _, v := range m.visits {
		hits[v.Alias]++
	}
	sort.Slice(aliases, func(i, j int) bool {
		if hits[aliases[i]] != hits[aliases[j]] {
			return hits[aliases[i]] > hits[aliases[j]]
		}
		return aliases[i] < aliases[j]
	})
	if len(aliases) > n {
		aliases = aliases[:n]
	}
	return aliases, nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

// seqGen hands out ids in order and then repeats the last one.
type seqGen struct {
	mu  sync.Mutex
	ids []string
	n   int
}

func (g *seqGen) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[min(g.n, len(g.ids)-1)]
	g.n++
	return id
}

// capture collects recorded hits.
type capture struct {
	mu  sync.Mutex
	got []Hit
}

func (h *capture) Record(_ context.Context, hit Hit) {
	h.mu.Lock()
	h.got = append(h.got, hit)
	h.mu.Unlock()
}

func (h *capture) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.got)
}

// brokenCache fails every operation.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) (string, bool, error) { return "", false, errCacheDown }
func (brokenCache) Set(context.Context, string, string, time.Duration) error {
	return errCacheDown
}
func (brokenCache) Ping(context.Context) error { return errCacheDown }

type geoFunc func(ctx context.Context, ip string) (geo.Location, error)

func (f geoFunc) Lookup(ctx context.Context, ip string) (geo.Location, error) { return f(ctx, ip) }
