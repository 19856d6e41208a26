// Package metrics holds the denial sinks the admission policy reports to.
// Sinks are a side channel: nothing they record feeds back into a verdict.
package metrics

import (
	"sort"
	"sync"
)

// Sink receives one call per denied admission, labelled by key.
type Sink interface {
	RecordDenial(key string)
}

// NoOp is a placeholder that does nothing.
// It ensures we never have to check 'if sink != nil' in the hot path.
type NoOp struct{}

func (NoOp) RecordDenial(string) {}

// Memory counts denials per key in process memory.
type Memory struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemory() *Memory {
	return &Memory{counts: make(map[string]int64)}
}

func (m *Memory) RecordDenial(key string) {
	m.mu.Lock()
	m.counts[key]++
	m.mu.Unlock()
}

func (m *Memory) Count(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func (m *Memory) Total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, n := range m.counts {
		total += n
	}
	return total
}

// KeyCount is one row of a Memory snapshot.
type KeyCount struct {
	Key     string `json:"key"`
	Denials int64  `json:"denials"`
}

// Snapshot returns the per-key counts, highest first.
func (m *Memory) Snapshot() []KeyCount {
	m.mu.Lock()
	out := make([]KeyCount, 0, len(m.counts))
	for k, n := range m.counts {
		out = append(out, KeyCount{Key: k, Denials: n})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Denials != out[j].Denials {
			return out[i].Denials > out[j].Denials
		}
		return out[i].Key < out[j].Key
	})
	return out
}

type multi []Sink

// Multi fans a denial out to every sink. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) RecordDenial(key string) {
	for _, s := range m {
		s.RecordDenial(key)
	}
}
