package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time // zero: never
}

// Memory is an in-process Cache used when no Redis address is configured.
type Memory struct {
	entries sync.Map // key -> memEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// NewMemoryWithClock is NewMemory with a controllable time source.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{now: now}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.entries.Load(key)
	if !ok {
		return "", false, nil
	}
	e := v.(memEntry)
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.entries.CompareAndDelete(key, v)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries.Store(key, e)
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}
