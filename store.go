package session

import (
	"sync"
	"time"
)

// CredentialStore is the key/value port backing persisted credentials. It is
// synchronous from the caller's perspective and shared: other tabs/processes
// using the same storage scope may mutate it between calls, so callers must
// re-read rather than trust cached copies for authorization-critical checks.
//
// A missing key is not an error; absence means "logged out".
type CredentialStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// Keys names the slots a credential namespace occupies in the store.
type Keys struct {
	Token        string
	LastActivity string
	Expired      string
	Snapshot     string
	ActorID      string
}

// NamespaceKeys derives the slot names for a namespace. Namespaces are
// disjoint: the primary session lives under "auth", the distributor
// sub-session under "distributor", and the two are never merged.
func NamespaceKeys(ns string) Keys {
	return Keys{
		Token:        ns + ".token",
		LastActivity: ns + ".last_activity_at",
		Expired:      ns + ".session_expired",
		Snapshot:     ns + ".user_snapshot",
		ActorID:      ns + ".actor_id",
	}
}

const (
	// NamespacePrimary scopes the member-facing session credentials.
	NamespacePrimary = "auth"
	// NamespaceDistributor scopes the gift distributor sub-session.
	NamespaceDistributor = "distributor"
)

const expiredFlagValue = "1"

// credentials is a typed view over one namespace of the store. All reads go to
// the store every time; there is no caching layer on purpose.
type credentials struct {
	store CredentialStore
	keys  Keys
}

func (c credentials) token() (string, bool, error) {
	tok, ok, err := c.store.Get(c.keys.Token)
	if err != nil {
		return "", false, wrapStorageErr(err, "reading bearer token")
	}
	return tok, ok && tok != "", nil
}

func (c credentials) writeToken(tok string) error {
	if err := c.store.Set(c.keys.Token, tok); err != nil {
		return wrapStorageErr(err, "writing bearer token")
	}
	return nil
}

func (c credentials) lastActivity() (time.Time, bool, error) {
	raw, ok, err := c.store.Get(c.keys.LastActivity)
	if err != nil {
		return time.Time{}, false, wrapStorageErr(err, "reading last activity")
	}
	if !ok || raw == "" {
		return time.Time{}, false, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// a corrupt timestamp is indistinguishable from absence
		return time.Time{}, false, nil
	}
	return ts, true, nil
}

func (c credentials) stampActivity(t time.Time) error {
	if err := c.store.Set(c.keys.LastActivity, t.Format(time.RFC3339Nano)); err != nil {
		return wrapStorageErr(err, "stamping last activity")
	}
	return nil
}

func (c credentials) markExpired() error {
	if err := c.store.Set(c.keys.Expired, expiredFlagValue); err != nil {
		return wrapStorageErr(err, "setting expiration flag")
	}
	return nil
}

// consumeExpired reads and clears the expiration flag in one step so the
// "session expired" message renders exactly once.
func (c credentials) consumeExpired() (bool, error) {
	raw, ok, err := c.store.Get(c.keys.Expired)
	if err != nil {
		return false, wrapStorageErr(err, "reading expiration flag")
	}
	if !ok || raw != expiredFlagValue {
		return false, nil
	}
	if err := c.store.Remove(c.keys.Expired); err != nil {
		return false, wrapStorageErr(err, "clearing expiration flag")
	}
	return true, nil
}

// clear nulls the namespace: token, activity timestamp, persisted snapshot,
// and actor ID. The expiration flag is left alone so a forced logout can set
// it before clearing and an explicit logout never touches it.
func (c credentials) clear() error {
	for _, key := range []string{c.keys.Token, c.keys.LastActivity, c.keys.Snapshot, c.keys.ActorID} {
		if err := c.store.Remove(key); err != nil {
			return wrapStorageErr(err, "clearing credential record")
		}
	}
	return nil
}

// MemoryStore is a mutex-guarded in-process CredentialStore. It is the default
// backend and doubles as the test fake; use store/bunstore for credentials
// that must survive restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

// Get implements CredentialStore.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements CredentialStore.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Remove implements CredentialStore.
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
