package session

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DistributorSession is the gift distributor's parallel session: same
// state-machine shape as the primary engine, scoped to a disjoint storage
// namespace, with no inactivity timer. It expires reactively instead: a
// 401-class rejection from any dependent request forces it back to
// Unauthorized.
type DistributorSession struct {
	mu         sync.Mutex
	creds      credentials
	authorized bool
	actorID    string

	now    Clock
	logger Logger
	sink   ActivitySink
}

// NewDistributorSession reconciles with the distributor namespace of the
// store: a persisted token means Authorized, otherwise Unauthorized (the host
// shows the credential-entry modal and suspends dependent fetches).
func NewDistributorSession(store CredentialStore) *DistributorSession {
	d := &DistributorSession{
		creds:  credentials{store: store, keys: NamespaceKeys(NamespaceDistributor)},
		now:    time.Now,
		logger: defLogger{},
		sink:   noopActivitySink{},
	}
	d.reconcile()
	return d
}

// WithLogger overrides the default stdout logger.
func (d *DistributorSession) WithLogger(logger Logger) *DistributorSession {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// WithClock injects a custom clock (useful for tests).
func (d *DistributorSession) WithClock(clock Clock) *DistributorSession {
	if clock != nil {
		d.now = clock
	}
	return d
}

// WithActivitySink configures an ActivitySink for distributor events.
func (d *DistributorSession) WithActivitySink(sink ActivitySink) *DistributorSession {
	d.sink = normalizeActivitySink(sink)
	return d
}

// Authorize commits the distributor token and actor under the distributor
// namespace and transitions to Authorized, unblocking dependent data loads.
func (d *DistributorSession) Authorize(ctx context.Context, token, actorID string) error {
	if strings.TrimSpace(token) == "" {
		d.logger.Error("distributor authorize rejected: empty bearer token")
		return ErrEmptyToken
	}

	d.mu.Lock()
	if err := d.creds.writeToken(token); err != nil {
		d.mu.Unlock()
		d.logger.Error("distributor authorize store write failed: %v", err)
		return err
	}
	if err := d.creds.store.Set(d.creds.keys.ActorID, actorID); err != nil {
		// roll back so we never hold a token without its actor
		_ = d.creds.clear()
		d.mu.Unlock()
		return wrapStorageErr(err, "writing distributor actor")
	}
	d.authorized = true
	d.actorID = actorID
	d.mu.Unlock()

	d.emit(ctx, ActivityEventDistributorAuthorized, actorID, nil)
	return nil
}

// Revoke is the explicit logout for the distributor. Idempotent.
func (d *DistributorSession) Revoke(ctx context.Context) error {
	d.mu.Lock()
	_, hadToken, err := d.creds.token()
	if err != nil {
		d.logger.Warn("distributor revoke token read failed: %v", err)
		hadToken = d.authorized
	}
	if !hadToken && !d.authorized {
		d.mu.Unlock()
		return nil
	}
	actor := d.actorID
	clearErr := d.creds.clear()
	d.authorized = false
	d.actorID = ""
	d.mu.Unlock()

	if clearErr != nil {
		d.logger.Error("distributor revoke could not clear credentials: %v", clearErr)
		return clearErr
	}
	d.emit(ctx, ActivityEventDistributorRevoked, actor, nil)
	return nil
}

// HandleRejection inspects an error from a dependent fetch. A 401-class
// rejection is an implicit forced logout for this sub-session: credentials are
// cleared and the state returns to Unauthorized. Reports whether it acted.
func (d *DistributorSession) HandleRejection(ctx context.Context, err error) bool {
	if !IsAuthRejection(err) {
		return false
	}

	d.mu.Lock()
	if !d.authorized {
		// already revoked by a racing call; nothing to do
		d.mu.Unlock()
		return true
	}
	actor := d.actorID
	if cerr := d.creds.clear(); cerr != nil {
		d.logger.Error("distributor rejection could not clear credentials: %v", cerr)
	}
	d.authorized = false
	d.actorID = ""
	d.mu.Unlock()

	d.emit(ctx, ActivityEventDistributorRejected, actor, map[string]any{"error": err.Error()})
	return true
}

// IsAuthorized re-reads the store, so a revocation performed elsewhere is
// observed; a transient store error falls back to the in-memory flag.
func (d *DistributorSession) IsAuthorized() bool {
	_, ok, err := d.creds.token()
	if err != nil {
		d.logger.Warn("distributor authorization check degraded: %v", err)
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.authorized
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !ok && d.authorized {
		d.authorized = false
		d.actorID = ""
	}
	return ok && d.authorized
}

// ActorID returns the distributor actor bound to the current authorization.
func (d *DistributorSession) ActorID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.actorID
}

func (d *DistributorSession) reconcile() {
	_, ok, err := d.creds.token()
	if err != nil {
		d.logger.Warn("distributor reconciliation degraded, treating as unauthorized: %v", err)
		return
	}
	if !ok {
		return
	}
	d.authorized = true
	if actor, found, aerr := d.creds.store.Get(d.creds.keys.ActorID); aerr == nil && found {
		d.actorID = actor
	}
}

func (d *DistributorSession) emit(ctx context.Context, eventType ActivityEventType, actor string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		ActorID:    actor,
		Metadata:   metadata,
		OccurredAt: d.now(),
	}
	if err := d.sink.Record(ctx, event); err != nil {
		d.logger.Warn("distributor activity sink error: %v", err)
	}
}
