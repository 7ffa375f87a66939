package actorcontext

import (
	"context"
	"testing"
)

func TestActorFromContext(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatalf("expected no actor on empty context")
	}

	ctx := WithActor(context.Background(), Actor{UserID: 7, Role: RoleEmployee})
	actor, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatalf("expected actor")
	}
	if !actor.IsStaff() || actor.IsAdmin() {
		t.Fatalf("unexpected role checks for %+v", actor)
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleCustomer, RoleEmployee, RoleAdmin} {
		if !ValidRole(role) {
			t.Fatalf("expected %s to be valid", role)
		}
	}
	if ValidRole("root") {
		t.Fatalf("expected root to be invalid")
	}
}
