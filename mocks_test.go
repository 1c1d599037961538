package session_test

import (
	"context"
	"errors"
	"sync"
	"time"

	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/mock"
)

type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event session.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingSink collects events for assertions that only care about ordering
// and counts.
type recordingSink struct {
	mu     sync.Mutex
	events []session.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event session.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) byType(t session.ActivityEventType) []session.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []session.ActivityEvent
	for _, e := range r.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeSignalSource simulates the UI event layer. Fire delivers one signal to
// every live subscription; active reports how many subscriptions are held so
// listener-leak regressions are visible.
type fakeSignalSource struct {
	mu           sync.Mutex
	nextID       int
	handlers     map[int]func()
	seenKinds    [][]session.SignalKind
	subscribeErr error
}

func newFakeSignalSource() *fakeSignalSource {
	return &fakeSignalSource{handlers: map[int]func(){}}
}

func (f *fakeSignalSource) Subscribe(kinds []session.SignalKind, fn func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}

	f.nextID++
	id := f.nextID
	f.handlers[id] = fn
	f.seenKinds = append(f.seenKinds, kinds)

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}, nil
}

func (f *fakeSignalSource) Fire() {
	f.mu.Lock()
	handlers := make([]func(), 0, len(f.handlers))
	for _, fn := range f.handlers {
		handlers = append(handlers, fn)
	}
	f.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

func (f *fakeSignalSource) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

var errStoreDown = errors.New("storage quota exceeded")

// flakyStore wraps a MemoryStore with switchable per-operation failures for
// the transient storage error paths.
type flakyStore struct {
	mem *session.MemoryStore

	mu         sync.Mutex
	failGet    bool
	failSet    bool
	failRemove bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{mem: session.NewMemoryStore()}
}

func (s *flakyStore) setFailures(get, set, remove bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet, s.failSet, s.failRemove = get, set, remove
}

func (s *flakyStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	fail := s.failGet
	s.mu.Unlock()
	if fail {
		return "", false, errStoreDown
	}
	return s.mem.Get(key)
}

func (s *flakyStore) Set(key, value string) error {
	s.mu.Lock()
	fail := s.failSet
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.mem.Set(key, value)
}

func (s *flakyStore) Remove(key string) error {
	s.mu.Lock()
	fail := s.failRemove
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.mem.Remove(key)
}

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}
