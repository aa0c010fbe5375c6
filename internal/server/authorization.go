package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dormitory/internal/authorization"
	obscontext "github.com/smallbiznis/dormitory/internal/observability/context"
)

// Identity is asserted by the gateway in front of this service.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

// ActorContext copies the gateway identity headers onto the request context so
// logs and audit records carry the actor.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if role != "" {
			c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), role, id))
		}
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeAction(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeAction(c *gin.Context, object string, action string) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor, object, action)
}

func actorFromContext(c *gin.Context) (authorization.Actor, bool) {
	if c == nil {
		return authorization.Actor{}, false
	}
	role, id := obscontext.ActorFromContext(c.Request.Context())
	if role == "" {
		return authorization.Actor{}, false
	}
	return authorization.Actor{Role: role, ID: id}, true
}
