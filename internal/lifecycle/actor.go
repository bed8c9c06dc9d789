package lifecycle

import "context"

type actorKey struct{}

// WithActor attaches the acting user's identity to the context. Audit
// fields are populated from it.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFromContext returns the acting user's identity, if any
func ActorFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(actorKey{}).(string)
	return userID, ok && userID != ""
}
