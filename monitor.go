package session

import (
	"context"
	"sync"
	"time"
)

// InactivityMonitor is a two-state machine: Armed (timer goroutine running)
// and Disarmed (no timer). It arms on login, disarms on logout, and delegates
// each tick's evaluation to the engine's CheckExpiry, which re-reads the store
// before committing anything.
type InactivityMonitor struct {
	mu     sync.Mutex
	armed  bool
	stop   chan struct{}
	poll   time.Duration
	check  func(ctx context.Context) bool
	logger Logger
}

func newInactivityMonitor(poll time.Duration, check func(context.Context) bool, logger Logger) *InactivityMonitor {
	return &InactivityMonitor{
		poll:   poll,
		check:  check,
		logger: logger,
	}
}

// Arm starts the polling goroutine. No-op while already armed.
func (m *InactivityMonitor) Arm() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.armed {
		return
	}
	m.armed = true
	m.stop = make(chan struct{})
	go m.run(m.stop)
}

// Disarm stops the polling goroutine without waiting for an in-flight tick: a
// tick that already started will observe "no token" and no-op rather than
// requiring hard cancellation.
func (m *InactivityMonitor) Disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.armed {
		return
	}
	m.armed = false
	close(m.stop)
	m.stop = nil
}

// Armed reports the monitor state.
func (m *InactivityMonitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

func (m *InactivityMonitor) run(stop <-chan struct{}) {
	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if m.check(context.Background()) {
				// forced logout committed; the engine disarmed us
				return
			}
		}
	}
}
