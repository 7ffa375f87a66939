package authorization

import (
	"context"
	"errors"

	"github.com/smallbiznis/qatech/internal/actorcontext"
)

type Service interface {
	// Authorize returns ErrForbidden unless the actor's role grants object:action.
	Authorize(ctx context.Context, actor actorcontext.Actor, object, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
