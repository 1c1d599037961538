package session

import (
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Snapshot is the opaque user snapshot supplied by the login collaborator.
// The engine never interprets its fields beyond detecting absence.
type Snapshot map[string]any

// IsZero reports whether the snapshot carries no data.
func (s Snapshot) IsZero() bool {
	return len(s) == 0
}

// LoginResult is what a login collaborator hands the engine after the remote
// end accepted the credentials: an opaque bearer token plus a user snapshot.
type LoginResult struct {
	Token string
	User  Snapshot
}

// SignalKind identifies a user-interaction signal treated as evidence of
// liveness by the ActivityWatchdog.
type SignalKind string

const (
	SignalPointerPress SignalKind = "pointerdown"
	SignalPointerMove  SignalKind = "pointermove"
	SignalKeyPress     SignalKind = "keydown"
	SignalScroll       SignalKind = "scroll"
	SignalTouchStart   SignalKind = "touchstart"
	SignalClick        SignalKind = "click"
)

// DefaultSignalKinds is the liveness signal set used when none is configured.
func DefaultSignalKinds() []SignalKind {
	return []SignalKind{
		SignalPointerPress,
		SignalPointerMove,
		SignalKeyPress,
		SignalScroll,
		SignalTouchStart,
		SignalClick,
	}
}

// SignalSource is the port the watchdog uses to observe interaction signals.
// Subscribe registers fn for every kind and returns a cancel function that
// must remove the registration; cancel must be safe to call more than once.
type SignalSource interface {
	Subscribe(kinds []SignalKind, fn func()) (cancel func(), err error)
}

type noopSignalSource struct{}

func (noopSignalSource) Subscribe([]SignalKind, func()) (func(), error) {
	return func() {}, nil
}

func normalizeSignalSource(src SignalSource) SignalSource {
	if src == nil {
		return noopSignalSource{}
	}
	return src
}

// ExpiryHandler is invoked after a forced inactivity logout has committed, so
// the UI layer can navigate to the login entry point. It runs after the
// expiration flag is already set.
type ExpiryHandler func()

// WarningHandler is invoked once per armed session when the remaining time
// before an inactivity logout drops below the configured lead.
type WarningHandler func(remaining time.Duration)

// Clock yields the current time; injectable for tests.
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
