package auth

import (
	"github.com/smallbiznis/qatech/internal/auth/repository"
	"github.com/smallbiznis/qatech/internal/auth/service"
	"github.com/smallbiznis/qatech/internal/auth/session"
	"github.com/smallbiznis/qatech/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(token.NewIssuer),
	fx.Provide(service.New),
	session.Module,
)
