// Package session implements a client-side authentication/session lifecycle
// engine: it decides whether the application is currently "logged in", how long
// a login survives user inactivity, how that decision persists across process
// restarts, and how it gates navigation into protected areas.
//
// Lifecycle:
//   - The Engine is the only writer of in-memory session state and the only
//     component allowed to clear the credential store outside of the activity
//     watchdog's timestamp updates. Login, Logout, and RefreshUserSnapshot keep
//     the store and the in-memory state consistent at every step.
//   - The ActivityWatchdog subscribes to user-interaction signals and stamps
//     "last activity" into the store while a token is present. The
//     InactivityMonitor polls that timestamp and, on a genuine elapsed-time
//     timeout, performs a forced logout and sets a one-shot expiration flag
//     the login view consumes exactly once.
//   - The Guard is a pure predicate over session state used to allow or
//     redirect protected navigation; it re-reads the credential store so a
//     logout performed by another tab sharing the same storage scope is
//     observed on the next evaluation.
//
// Storage backends:
//   - The credential store is a port (CredentialStore). MemoryStore is the
//     in-process default; store/bunstore persists records in SQLite via Bun so
//     sessions survive restarts.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Engine and the
//     DistributorSession to describe login, logout, and forced-expiry events.
//     Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking session transitions.
package session
