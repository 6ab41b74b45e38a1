// Package cache holds the in-process SessionCache used for single instance
// deployments and tests.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/firefly/security-center/internal/core/ports"
)

const defaultSize = 10_000

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a size bounded SessionCache. The LRU evicts by capacity and by a
// ceiling TTL; each entry additionally carries its own expiry.
type Memory struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

// NewMemory creates a cache holding at most size entries, none of which lives
// longer than maxTTL.
func NewMemory(size int, maxTTL time.Duration) *Memory {
	if size <= 0 {
		size = defaultSize
	}
	return &Memory{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.lru.Add(key, entry{value: append([]byte(nil), value...), expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return nil, ports.ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (m *Memory) Evict(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

func (m *Memory) EvictPrefix(_ context.Context, prefix string) error {
	for _, key := range m.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.lru.Remove(key)
		}
	}
	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}
