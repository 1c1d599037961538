package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Engine owns the primary session lifecycle. It is the sole writer of the
// in-memory State and, apart from the watchdog's timestamp stamps, the sole
// writer of the credential store's auth namespace.
type Engine struct {
	id             string
	cfg            Config
	monitorEnabled bool

	// mu serializes login/logout/forced-expiry commits so a near-simultaneous
	// explicit logout and timeout tick cannot interleave half-applied.
	mu     sync.Mutex
	creds  credentials
	state  *State
	warned bool

	now       Clock
	logger    Logger
	sink      ActivitySink
	signals   SignalSource
	onExpiry  ExpiryHandler
	onWarning WarningHandler

	watchdog *ActivityWatchdog
	monitor  *InactivityMonitor
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger overrides the default stdout logger.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish lifecycle events.
func WithActivitySink(sink ActivitySink) Option {
	return func(e *Engine) {
		e.sink = normalizeActivitySink(sink)
	}
}

// WithSignalSource sets the interaction-signal source the watchdog subscribes to.
func WithSignalSource(src SignalSource) Option {
	return func(e *Engine) {
		e.signals = normalizeSignalSource(src)
	}
}

// WithExpiryHandler sets the hook invoked after a forced inactivity logout has
// committed, so the host can navigate to the login entry point.
func WithExpiryHandler(fn ExpiryHandler) Option {
	return func(e *Engine) {
		e.onExpiry = fn
	}
}

// WithWarningHandler sets the hook invoked when remaining time before an
// inactivity logout drops below Config.WarningLead.
func WithWarningHandler(fn WarningHandler) Option {
	return func(e *Engine) {
		e.onWarning = fn
	}
}

// NewEngine builds the engine and reconciles in-memory state with the store:
// a persisted token means "authenticated with a placeholder snapshot" (to be
// refreshed by a collaborator) without blocking on any network call.
// Reconciliation completes before NewEngine returns, hence before the first
// guard evaluation.
func NewEngine(store CredentialStore, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, goerrors.New("credential store is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	cfg.setDefaults()

	e := &Engine{
		id:             uuid.NewString(),
		cfg:            cfg,
		monitorEnabled: true,
		creds:          credentials{store: store, keys: NamespaceKeys(NamespacePrimary)},
		state:          NewState(),
		now:            time.Now,
		logger:         defLogger{},
		sink:           noopActivitySink{},
		signals:        noopSignalSource{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	if err := cfg.Validate(); err != nil {
		// configuration error, not a runtime failure: the engine still works,
		// only the inactivity monitor stays disarmed
		e.monitorEnabled = false
		e.logger.Warn("inactivity monitor disabled by configuration: %v", err)
	}

	e.watchdog = newActivityWatchdog(e.signals, e.cfg.SignalKinds, e.recordActivity, e.logger)
	e.monitor = newInactivityMonitor(e.cfg.PollInterval, e.CheckExpiry, e.logger)

	e.reconcile()

	return e, nil
}

// ID returns the unique identifier of this engine instance.
func (e *Engine) ID() string {
	return e.id
}

// IsAuthenticated reports the in-memory session state.
func (e *Engine) IsAuthenticated() bool {
	return e.state.IsAuthenticated()
}

// CurrentUser returns the current user snapshot, empty when logged out.
func (e *Engine) CurrentUser() Snapshot {
	return e.state.CurrentUser()
}

// Login commits the bearer token and snapshot handed over by the login
// collaborator. The store write completes before the watchdog or monitor for
// this session exists, so no timer ever runs against an absent token. On any
// failure no partial state is left behind.
func (e *Engine) Login(ctx context.Context, res LoginResult) error {
	if strings.TrimSpace(res.Token) == "" {
		e.logger.Error("login rejected: empty bearer token")
		e.emit(ctx, ActivityEventLoginFailure, map[string]any{"error": ErrEmptyToken.Message})
		return ErrEmptyToken
	}

	e.mu.Lock()
	if err := e.creds.writeToken(res.Token); err != nil {
		e.mu.Unlock()
		e.logger.Error("login store write failed: %v", err)
		e.emit(ctx, ActivityEventLoginFailure, map[string]any{"error": err.Error()})
		return err
	}
	if err := e.creds.stampActivity(e.now()); err != nil {
		// token is committed; the watchdog re-initializes the stamp on install
		e.logger.Warn("login could not stamp activity: %v", err)
	}
	if e.cfg.PersistSnapshot {
		e.persistSnapshotLocked(res.User)
	}
	e.state.setAuthenticated(res.User)
	e.mu.Unlock()

	e.armSession()
	e.emit(ctx, ActivityEventLoginSuccess, nil)
	return nil
}

// Logout clears the credential record and the in-memory state. Calling it
// while already logged out is a no-op. It never touches the expiration flag;
// only the monitor's forced path sets that.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	_, hadToken, err := e.creds.token()
	if err != nil {
		e.logger.Warn("logout token read failed: %v", err)
		hadToken = e.state.IsAuthenticated()
	}
	if !hadToken && !e.state.IsAuthenticated() {
		e.mu.Unlock()
		return nil
	}
	clearErr := e.creds.clear()
	e.state.clear()
	e.mu.Unlock()

	e.disarmSession()

	if clearErr != nil {
		e.logger.Error("logout could not clear credential record: %v", clearErr)
		return clearErr
	}
	e.emit(ctx, ActivityEventLogout, nil)
	return nil
}

// RefreshUserSnapshot replaces the current user wholesale without touching
// authentication flags or the token. Collaborators call it after
// server-confirmed profile changes.
func (e *Engine) RefreshUserSnapshot(ctx context.Context, user Snapshot) error {
	e.mu.Lock()
	if !e.state.IsAuthenticated() {
		e.mu.Unlock()
		e.logger.Warn("snapshot refresh ignored: not authenticated")
		return nil
	}
	if e.cfg.PersistSnapshot {
		e.persistSnapshotLocked(user)
	}
	e.state.replaceUser(user)
	e.mu.Unlock()

	e.emit(ctx, ActivityEventSnapshotRefreshed, nil)
	return nil
}

// Authorized is the authorization-critical read used by guards. It re-reads
// the store instead of trusting the in-memory flag, so another tab's logout is
// observed here; a transient store error falls back to memory rather than
// denying access on a read failure.
func (e *Engine) Authorized() bool {
	_, ok, err := e.creds.token()
	if err != nil {
		e.logger.Warn("authorization check degraded to in-memory state: %v", err)
		return e.state.IsAuthenticated()
	}

	if !ok && e.state.IsAuthenticated() {
		// the store was cleared externally; reconcile this instance
		e.mu.Lock()
		if _, still, rerr := e.creds.token(); rerr == nil && !still {
			e.state.clear()
		}
		e.mu.Unlock()
		e.disarmSession()
		e.logger.Info("session cleared externally, state reconciled")
		return false
	}

	return ok && e.state.IsAuthenticated()
}

// CheckExpiry runs one inactivity evaluation immediately and reports whether
// it committed a forced logout. The monitor calls it on every tick; hosts that
// drive their own scheduler may call it directly.
func (e *Engine) CheckExpiry(ctx context.Context) bool {
	if !e.monitorEnabled {
		return false
	}

	e.mu.Lock()
	_, ok, err := e.creds.token()
	if err != nil {
		e.mu.Unlock()
		// cannot determine activity; fail open and retry next cycle
		e.logger.Warn("expiry check skipped: %v", err)
		return false
	}
	if !ok {
		// logout (here or in another tab) raced in ahead of this tick
		e.state.clear()
		e.mu.Unlock()
		e.disarmSession()
		return false
	}

	now := e.now()
	last, has, err := e.creds.lastActivity()
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn("expiry check skipped: %v", err)
		return false
	}
	if !has {
		// first tick after login before anything was stamped; a fresh login is
		// never judged inactive
		if serr := e.creds.stampActivity(now); serr != nil {
			e.logger.Warn("could not initialize activity stamp: %v", serr)
		}
		e.mu.Unlock()
		return false
	}

	inactiveFor := now.Sub(last)
	if inactiveFor <= e.cfg.Timeout {
		remaining := e.cfg.Timeout - inactiveFor
		warn := e.cfg.WarningLead > 0 && remaining <= e.cfg.WarningLead && !e.warned
		if warn {
			e.warned = true
		}
		e.mu.Unlock()
		if warn && e.onWarning != nil {
			e.onWarning(remaining)
		}
		return false
	}

	// forced logout commits in order: flag, then clear, so the next render of
	// the login entry point observes the flag as already set
	if err := e.creds.markExpired(); err != nil {
		e.mu.Unlock()
		e.logger.Warn("expiration flag write failed, retrying next tick: %v", err)
		return false
	}
	if err := e.creds.clear(); err != nil {
		e.logger.Error("forced logout could not clear credential record: %v", err)
	}
	e.state.clear()
	e.mu.Unlock()

	e.disarmSession()
	e.emit(ctx, ActivityEventSessionExpired, map[string]any{
		"inactive_for": inactiveFor.String(),
	})
	if e.onExpiry != nil {
		e.onExpiry()
	}
	return true
}

// ConsumeExpiredFlag reads and clears the one-shot expiration flag. The login
// view calls it once per render; the second call reports false.
func (e *Engine) ConsumeExpiredFlag() bool {
	e.mu.Lock()
	expired, err := e.creds.consumeExpired()
	e.mu.Unlock()
	if err != nil {
		e.logger.Warn("expiration flag read failed: %v", err)
		return false
	}
	return expired
}

// MonitorArmed reports whether the inactivity monitor is currently running.
func (e *Engine) MonitorArmed() bool {
	return e.monitor.Armed()
}

// WatchdogInstalled reports whether the activity watchdog currently holds a
// signal subscription.
func (e *Engine) WatchdogInstalled() bool {
	return e.watchdog.Installed()
}

func (e *Engine) reconcile() {
	_, ok, err := e.creds.token()
	if err != nil {
		e.logger.Warn("startup reconciliation degraded, treating as logged out: %v", err)
		return
	}
	if !ok {
		return
	}

	user := Snapshot{}
	if e.cfg.PersistSnapshot {
		if restored, found := e.restoreSnapshot(); found {
			user = restored
		}
	}
	e.state.setAuthenticated(user)
	e.armSession()
}

// armSession installs the watchdog and arms the monitor. Callers must have
// committed the token to the store already.
func (e *Engine) armSession() {
	e.mu.Lock()
	if _, has, err := e.creds.lastActivity(); err == nil && !has {
		if serr := e.creds.stampActivity(e.now()); serr != nil {
			e.logger.Warn("could not initialize activity stamp: %v", serr)
		}
	}
	e.warned = false
	e.mu.Unlock()

	if err := e.watchdog.Install(); err != nil {
		e.logger.Warn("activity watchdog not installed: %v", err)
	}
	if e.monitorEnabled {
		e.monitor.Arm()
	}
}

func (e *Engine) disarmSession() {
	e.monitor.Disarm()
	e.watchdog.Remove()
}

// recordActivity is the watchdog's stamp callback. It re-checks token
// presence so a signal delivered after logout does not resurrect the record.
func (e *Engine) recordActivity() {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok, err := e.creds.token()
	if err != nil {
		e.logger.Debug("activity stamp skipped: %v", err)
		return
	}
	if !ok {
		return
	}
	if err := e.creds.stampActivity(e.now()); err != nil {
		e.logger.Warn("activity stamp failed: %v", err)
		return
	}
	e.warned = false
}

func (e *Engine) persistSnapshotLocked(user Snapshot) {
	raw, err := json.Marshal(user)
	if err != nil {
		e.logger.Warn("snapshot not persisted: %v", err)
		return
	}
	if err := e.creds.store.Set(e.creds.keys.Snapshot, string(raw)); err != nil {
		e.logger.Warn("snapshot not persisted: %v", err)
	}
}

func (e *Engine) restoreSnapshot() (Snapshot, bool) {
	raw, ok, err := e.creds.store.Get(e.creds.keys.Snapshot)
	if err != nil || !ok || raw == "" {
		return nil, false
	}
	var user Snapshot
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		e.logger.Warn("persisted snapshot unreadable, using placeholder: %v", err)
		return nil, false
	}
	return user, true
}

func (e *Engine) emit(ctx context.Context, eventType ActivityEventType, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		EngineID:   e.id,
		Metadata:   metadata,
		OccurredAt: e.now(),
	}
	if err := e.sink.Record(ctx, event); err != nil {
		e.logger.Warn("activity sink record error: %v", err)
	}
}
