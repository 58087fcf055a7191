// Package connectivity tracks whether the network is reachable. State changes
// are pushed by the host environment; nothing here polls.
package connectivity

import "sync"

// Monitor holds the current online state and notifies subscribers on transitions
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []func(online bool)
}

// NewMonitor creates a monitor with the given initial state
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online}
}

// Online reports the last known state
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn to be called after every transition
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Set records a new state. Subscribers run synchronously, outside the lock,
// and only when the state actually changed.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
	return true
}
