package session_test

import (
	"context"
	"testing"
	"time"

	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var primaryKeys = session.NamespaceKeys(session.NamespacePrimary)

func testConfig() session.Config {
	return session.Config{
		Timeout:      15 * time.Minute,
		PollInterval: time.Hour, // ticks driven manually through CheckExpiry
	}
}

func mustEngine(t *testing.T, store session.CredentialStore, cfg session.Config, opts ...session.Option) *session.Engine {
	t.Helper()
	opts = append([]session.Option{session.WithLogger(silentLogger{})}, opts...)
	engine, err := session.NewEngine(store, cfg, opts...)
	require.NoError(t, err)
	return engine
}

func TestLoginCommitsStoreAndState(t *testing.T) {
	store := session.NewMemoryStore()
	signals := newFakeSignalSource()
	engine := mustEngine(t, store, testConfig(), session.WithSignalSource(signals))

	err := engine.Login(context.Background(), session.LoginResult{
		Token: "abc",
		User:  session.Snapshot{"id": 1, "name": "A"},
	})
	require.NoError(t, err)

	assert.True(t, engine.IsAuthenticated())
	assert.Equal(t, "A", engine.CurrentUser()["name"])

	tok, ok, err := store.Get(primaryKeys.Token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	assert.True(t, engine.MonitorArmed())
	assert.True(t, engine.WatchdogInstalled())
	assert.Equal(t, 1, signals.active())
}

func TestLoginEmptyTokenLeavesNoPartialState(t *testing.T) {
	store := session.NewMemoryStore()
	sink := &recordingSink{}
	engine := mustEngine(t, store, testConfig(), session.WithActivitySink(sink))

	err := engine.Login(context.Background(), session.LoginResult{Token: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrEmptyToken)

	assert.False(t, engine.IsAuthenticated())
	_, ok, _ := store.Get(primaryKeys.Token)
	assert.False(t, ok)
	assert.Len(t, sink.byType(session.ActivityEventLoginFailure), 1)
}

func TestLoginStoreFailureLeavesNoPartialState(t *testing.T) {
	store := newFlakyStore()
	engine := mustEngine(t, store, testConfig())

	store.setFailures(false, true, false)
	err := engine.Login(context.Background(), session.LoginResult{Token: "abc"})
	require.Error(t, err)
	assert.True(t, session.IsStorageError(err))

	assert.False(t, engine.IsAuthenticated())
	assert.False(t, engine.MonitorArmed())

	store.setFailures(false, false, false)
	_, ok, err := store.Get(primaryKeys.Token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := session.NewMemoryStore()
	signals := newFakeSignalSource()
	engine := mustEngine(t, store, testConfig(), session.WithSignalSource(signals))

	require.NoError(t, engine.Login(context.Background(), session.LoginResult{Token: "abc"}))
	require.NoError(t, engine.Logout(context.Background()))
	require.NoError(t, engine.Logout(context.Background()))

	assert.False(t, engine.IsAuthenticated())
	_, ok, _ := store.Get(primaryKeys.Token)
	assert.False(t, ok)
	_, ok, _ = store.Get(primaryKeys.LastActivity)
	assert.False(t, ok)

	assert.False(t, engine.MonitorArmed())
	assert.Equal(t, 0, signals.active())
}

func TestExplicitLogoutNeverSetsExpiredFlag(t *testing.T) {
	store := session.NewMemoryStore()
	engine := mustEngine(t, store, testConfig())

	require.NoError(t, engine.Login(context.Background(), session.LoginResult{Token: "abc"}))
	require.NoError(t, engine.Logout(context.Background()))

	assert.False(t, engine.ConsumeExpiredFlag())
	_, ok, _ := store.Get(primaryKeys.Expired)
	assert.False(t, ok)
}

func TestRefreshUserSnapshotKeepsAuthUntouched(t *testing.T) {
	store := session.NewMemoryStore()
	engine := mustEngine(t, store, testConfig())

	require.NoError(t, engine.Login(context.Background(), session.LoginResult{
		Token: "abc",
		User:  session.Snapshot{"id": 1, "name": "A"},
	}))

	err := engine.RefreshUserSnapshot(context.Background(), session.Snapshot{
		"id": 1, "name": "A", "extra": "x",
	})
	require.NoError(t, err)

	assert.True(t, engine.IsAuthenticated())
	assert.Equal(t, "x", engine.CurrentUser()["extra"])

	tok, ok, _ := store.Get(primaryKeys.Token)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
}

func TestRefreshUserSnapshotIgnoredWhenLoggedOut(t *testing.T) {
	engine := mustEngine(t, session.NewMemoryStore(), testConfig())

	err := engine.RefreshUserSnapshot(context.Background(), session.Snapshot{"id": 1})
	require.NoError(t, err)
	assert.False(t, engine.IsAuthenticated())
	assert.True(t, engine.CurrentUser().IsZero())
}

func TestStartupReconciliationWithPersistedToken(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(primaryKeys.Token, "persisted"))

	engine := mustEngine(t, store, testConfig())

	assert.True(t, engine.IsAuthenticated())
	assert.True(t, engine.CurrentUser().IsZero(), "placeholder snapshot until a collaborator refreshes it")
	assert.True(t, engine.MonitorArmed())
}

func TestStartupReconciliationWithEmptyStore(t *testing.T) {
	engine := mustEngine(t, session.NewMemoryStore(), testConfig())

	assert.False(t, engine.IsAuthenticated())
	assert.False(t, engine.MonitorArmed())
	assert.False(t, engine.WatchdogInstalled())
}

func TestPersistedSnapshotSurvivesRestart(t *testing.T) {
	store := session.NewMemoryStore()
	cfg := testConfig()
	cfg.PersistSnapshot = true

	first := mustEngine(t, store, cfg)
	require.NoError(t, first.Login(context.Background(), session.LoginResult{
		Token: "abc",
		User:  session.Snapshot{"name": "A"},
	}))

	second := mustEngine(t, store, cfg)
	assert.True(t, second.IsAuthenticated())
	assert.Equal(t, "A", second.CurrentUser()["name"])
}

func TestCrossTabLogoutObserved(t *testing.T) {
	store := session.NewMemoryStore()
	engine := mustEngine(t, store, testConfig())

	require.NoError(t, engine.Login(context.Background(), session.LoginResult{Token: "abc"}))

	// another tab sharing the storage scope logs out
	require.NoError(t, store.Remove(primaryKeys.Token))

	assert.False(t, engine.Authorized())
	assert.False(t, engine.IsAuthenticated(), "state reconciled after external clear")
	assert.False(t, engine.MonitorArmed())
}

func TestAuthorizedFailsOpenOnStoreError(t *testing.T) {
	store := newFlakyStore()
	engine := mustEngine(t, store, testConfig())
	require.NoError(t, engine.Login(context.Background(), session.LoginResult{Token: "abc"}))

	store.setFailures(true, false, false)
	assert.True(t, engine.Authorized(), "a read failure alone never revokes access")

	store.setFailures(false, false, false)
	assert.True(t, engine.Authorized())
}

func TestLoginEmitsActivityEvent(t *testing.T) {
	sink := &MockActivitySink{}
	engine := mustEngine(t, session.NewMemoryStore(), testConfig(), session.WithActivitySink(sink))

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt session.ActivityEvent) bool {
		return evt.EventType == session.ActivityEventLoginSuccess &&
			evt.EngineID == engine.ID() &&
			!evt.OccurredAt.IsZero()
	})).Return(nil).Once()

	require.NoError(t, engine.Login(context.Background(), session.LoginResult{Token: "abc"}))
	sink.AssertExpectations(t)
}

func TestLifecycleEventsEmitted(t *testing.T) {
	sink := &recordingSink{}
	engine := mustEngine(t, session.NewMemoryStore(), testConfig(), session.WithActivitySink(sink))

	require.NoError(t, engine.Login(context.Background(), session.LoginResult{Token: "abc"}))
	require.NoError(t, engine.RefreshUserSnapshot(context.Background(), session.Snapshot{"id": 1}))
	require.NoError(t, engine.Logout(context.Background()))

	assert.Len(t, sink.byType(session.ActivityEventLoginSuccess), 1)
	assert.Len(t, sink.byType(session.ActivityEventSnapshotRefreshed), 1)
	assert.Len(t, sink.byType(session.ActivityEventLogout), 1)
}
