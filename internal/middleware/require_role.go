package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/leaderboards/internal/authz"
	"github.com/osvaldoandrade/leaderboards/internal/metrics"
)

const principalKey = "principal"

type Authorizer interface {
	Evaluate(ctx context.Context, req authz.Requirement, authHeader string) (authz.Outcome, *authz.Principal)
}

// RequireRole gates a route group on req. Missing or unusable credentials get
// 401, a known caller without the role gets 403. Neither body says which
// check failed.
func RequireRole(authorizer Authorizer, req authz.Requirement) gin.HandlerFunc {
	role := string(req.Role)
	return func(c *gin.Context) {
		outcome, principal := authorizer.Evaluate(c.Request.Context(), req, c.GetHeader("Authorization"))
		metrics.AuthDecisionsTotal.WithLabelValues(role, outcome.Label()).Inc()

		logger := loggerFrom(c)
		switch outcome.Reason {
		case authz.ReasonNone:
			logger.Debug("authorization succeeded", "role", role, "user_id", principal.UserID)
			c.Set(principalKey, principal)
			c.Next()
		case authz.ReasonInsufficientRole:
			logger.Debug("authorization forbidden", "role", role, "user_id", principal.UserID)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		default:
			logger.Debug("authorization unauthenticated", "role", role, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		}
	}
}

func GetPrincipal(c *gin.Context) (*authz.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*authz.Principal)
	return p, ok && p != nil
}

func loggerFrom(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
