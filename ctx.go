package session

import "context"

var snapshotCtxKey = &contextKey{"snapshot"}

type contextKey struct {
	name string
}

// WithContext sets the user Snapshot in the given context.
func WithContext(ctx context.Context, user Snapshot) context.Context {
	return context.WithValue(ctx, snapshotCtxKey, user)
}

// FromContext finds the user Snapshot from the context.
func FromContext(ctx context.Context) (Snapshot, bool) {
	raw, ok := ctx.Value(snapshotCtxKey).(Snapshot)
	return raw, ok
}
