package shared

import "context"

// Role enumerates actor tiers supplied by the upstream identity gateway.
// Authentication itself happens outside this service; handlers only gate
// on the tier carried in the request context.
type Role string

const (
	RoleStaff      Role = "staff"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Actor identifies the user performing a request.
type Actor struct {
	ID   int64
	Role Role
}

// AtLeast reports whether the actor holds the given tier or above.
func (a Actor) AtLeast(role Role) bool {
	return rank(a.Role) >= rank(role)
}

func rank(r Role) int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleSupervisor:
		return 2
	case RoleStaff:
		return 1
	default:
		return 0
	}
}

type actorKey struct{}

// ContextWithActor stores the actor in the request context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor attached by the identity middleware.
// The zero Actor means the request was unauthenticated.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorKey{}).(Actor)
	return actor
}
