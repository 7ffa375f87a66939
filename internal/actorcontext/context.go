package actorcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleCustomer = "customer"
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID snowflake.ID
	Role   string
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleEmployee || a.Role == RoleAdmin
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

// ActorContextKey is the request context key for the authenticated actor.
type ActorContextKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actor)
}

// ActorFromContext returns the actor from context, if set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(ActorContextKey{}).(Actor)
	if !ok || actor.UserID == 0 {
		return Actor{}, false
	}
	return actor, true
}
