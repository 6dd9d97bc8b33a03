package auth

import "context"

type contextKey struct{}

// Identity is the authenticated caller attached to a request. SessionID is
// zero when the caller authenticated with a bearer token.
type Identity struct {
	UserID    int64
	Name      string
	Email     string
	SessionID int64
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.UserID
}
