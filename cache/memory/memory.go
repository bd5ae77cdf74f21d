package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RogueTeam/remit/cache"
	"github.com/RogueTeam/remit/utils"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) (expired bool) {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is a process local cache.Store driven by an injectable clock
type Memory struct {
	mu    sync.Mutex
	clock utils.Clock
	data  map[string]entry
}

var _ cache.Store = (*Memory)(nil)

func New(clock utils.Clock) (m *Memory) {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Memory{clock: clock, data: make(map[string]entry)}
}

// Must be called with the lock held
func (m *Memory) lookup(key string) (e entry, found bool) {
	e, found = m.data[key]
	if !found {
		return e, false
	}
	if e.expired(m.clock.Now()) {
		delete(m.data, key)
		return e, false
	}
	return e, true
}

func (m *Memory) Get(ctx context.Context, key string) (value []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, found := m.lookup(key)
	if !found {
		return nil, fmt.Errorf("%w: %s", cache.ErrNotFound, key)
	}
	return append([]byte(nil), e.value...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.clock.Now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *Memory) Update(ctx context.Context, key string, fn cache.UpdateFunc) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, found := m.lookup(key)
	if !found {
		return fmt.Errorf("%w: %s", cache.ErrNotFound, key)
	}

	next, err := fn(append([]byte(nil), e.value...))
	if err != nil {
		return err
	}
	e.value = append([]byte(nil), next...)
	m.data[key] = e
	return nil
}

func (m *Memory) Purge(ctx context.Context, prefix string) (purged int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for key, e := range m.data {
		if !strings.HasPrefix(key, prefix) || !e.expired(now) {
			continue
		}
		delete(m.data, key)
		purged++
	}
	return purged, nil
}
