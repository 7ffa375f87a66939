package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	obscontext "github.com/smallbiznis/qatech/internal/observability/context"
)

const (
	contextCartKey = "cart_key"
	actorTypeUser  = "user"
)

// AuthRequired resolves the bearer token to a live account.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor, err := s.authsvc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		setActor(c, actor)
		c.Next()
	}
}

// OptionalAuth attaches the actor when a valid token is present and never rejects.
func (s *Server) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			if actor, err := s.authsvc.Authenticate(c.Request.Context(), raw); err == nil {
				setActor(c, actor)
			}
		}
		c.Next()
	}
}

func (s *Server) RequirePermission(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorcontext.ActorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// CartSession issues or refreshes the anonymous cart cookie.
func (s *Server) CartSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextCartKey, s.sessions.EnsureKey(c))
		c.Next()
	}
}

func cartKey(c *gin.Context) string {
	return c.GetString(contextCartKey)
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func setActor(c *gin.Context, actor actorcontext.Actor) {
	ctx := actorcontext.WithActor(c.Request.Context(), actor)
	ctx = obscontext.WithActor(ctx, actorTypeUser, actor.UserID.String())
	c.Request = c.Request.WithContext(ctx)
}

func actorFrom(c *gin.Context) (actorcontext.Actor, bool) {
	return actorcontext.ActorFromContext(c.Request.Context())
}

func requireActor(c *gin.Context) (actorcontext.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return actorcontext.Actor{}, false
	}
	return actor, true
}
