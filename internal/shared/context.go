package shared

import "context"

// Actor identifies the tenant and user a request acts for. The upstream gateway
// authenticates callers; this core only trusts what it is handed.
type Actor struct {
	CompanyID int64
	UserID    int64
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok && actor.CompanyID != 0
}
