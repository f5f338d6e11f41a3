// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package entrycache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
)

// a budget is split into slots of about this size
const slotShift = 20

// Memory is an in-process Store with TinyLFU admission.
type Memory struct {
	mu       sync.Mutex
	lfu      *tinylfu.T[string, []byte]
	held     int64
	budget   int64
	maxEntry int
}

// NewMemory returns a Memory that never holds more than budget bytes.
// The budget is divided into equal slots, one more than the LFU holds,
// and an entry bigger than one slot is never kept.
func NewMemory(budget int) *Memory {
	n := max(16, budget>>slotShift)
	m := &Memory{budget: int64(budget), maxEntry: budget / (n + 1)}
	m.lfu = tinylfu.New[string, []byte](n, n*10, keyHash, tinylfu.OnEvict(m.evict))
	return m
}

func keyHash(k string) uint64 {
	return xxhash.Sum64String(k)
}

// evict runs with mu held, from inside Add
func (m *Memory) evict(_ string, v []byte) {
	m.held -= int64(len(v))
}

func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lfu.Get(key)
}

func (m *Memory) Add(key string, content []byte) {
	if len(content) > m.maxEntry {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lfu.Get(key); ok {
		return
	}
	if m.held+int64(len(content)) > m.budget { // only if the LFU overfills
		return
	}
	m.held += int64(len(content))
	m.lfu.Add(key, content)
}

// Held is the number of bytes currently cached.
func (m *Memory) Held() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}
