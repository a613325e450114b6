package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medicareplus/portal/internal/cache"
	"github.com/medicareplus/portal/internal/domain/role"
	"github.com/medicareplus/portal/internal/observability"
	"github.com/medicareplus/portal/internal/session"
)

type RoleLookup interface {
	RoleForUser(ctx context.Context, userID string) (role.Role, error)
}

// RoleGate protects role-scoped routes. The role is resolved from the
// store, not trusted from the token, so a session whose role row is gone
// degrades to "no access" instead of keeping stale permissions. Lookups
// are cached briefly; roles are immutable so staleness is harmless.
type RoleGate struct {
	roles RoleLookup
	prom  *observability.Prom
	cache *cache.Cache[role.Role]
}

func NewRoleGate(roles RoleLookup, prom *observability.Prom) *RoleGate {
	return &RoleGate{
		roles: roles,
		prom:  prom,
		cache: cache.New[role.Role](30 * time.Second),
	}
}

func (g *RoleGate) RequireRole(required role.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)

		if !ok || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}

		email, _ := EmailFromContext(c)

		st := session.State{UserID: userID, Email: email, Role: g.resolve(c, userID)}

		decision := session.Decide(st, required)

		if !decision.Allow {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":       "forbidden",
					"message":    "Your account does not have access to this area",
					"redirectTo": decision.RedirectTo,
				},
			})
			return
		}

		c.Next()
	}
}

func (g *RoleGate) resolve(c *gin.Context, userID string) role.Role {
	if r, ok := g.cache.Get(userID); ok {
		return r
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	var r role.Role
	var err error

	if g.prom != nil {
		err = g.prom.ObserveDB("role_for_user", func() error {
			var lookupErr error
			r, lookupErr = g.roles.RoleForUser(ctx, userID)
			return lookupErr
		})
	} else {
		r, err = g.roles.RoleForUser(ctx, userID)
	}

	if err != nil {
		// authenticated but role-less: gate denies, nothing cached
		return role.None
	}

	g.cache.Set(userID, r)

	return r
}
