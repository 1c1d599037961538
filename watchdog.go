package session

import (
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// ActivityWatchdog treats configured interaction signals as evidence of
// liveness. It holds at most one subscription at a time: Install is a no-op
// while installed, and Remove releases the subscription deterministically on
// every exit path so repeated login/logout cycles never leak listeners.
type ActivityWatchdog struct {
	mu       sync.Mutex
	src      SignalSource
	kinds    []SignalKind
	onSignal func()
	cancel   func()
	logger   Logger
}

func newActivityWatchdog(src SignalSource, kinds []SignalKind, onSignal func(), logger Logger) *ActivityWatchdog {
	return &ActivityWatchdog{
		src:      normalizeSignalSource(src),
		kinds:    kinds,
		onSignal: onSignal,
		logger:   logger,
	}
}

// Install subscribes to the signal source. One installation per authenticated
// session; calling Install while installed is a no-op.
func (w *ActivityWatchdog) Install() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return nil
	}

	cancel, err := w.src.Subscribe(w.kinds, w.onSignal)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "subscribing to activity signals").
			WithCode(goerrors.CodeInternal)
	}
	w.cancel = cancel
	return nil
}

// Remove releases the current subscription. Safe to call when not installed.
func (w *ActivityWatchdog) Remove() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Installed reports whether a subscription is currently held.
func (w *ActivityWatchdog) Installed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}
