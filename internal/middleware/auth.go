package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
	"github.com/noah-isme/exam-duty-api/pkg/response"
)

const (
	// ContextClaimsKey stores the parsed JWT claims on the Gin context.
	ContextClaimsKey = "auth_claims"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Authenticate validates the Bearer token and stores its claims on the
// request context. Requests without a valid token are rejected.
func Authenticate(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing authorization header"))
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "malformed authorization header"))
			c.Abort()
			return
		}
		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// Claims returns the authenticated claims stored by Authenticate, or nil.
func Claims(c *gin.Context) *models.JWTClaims {
	if v, ok := c.Get(ContextClaimsKey); ok {
		if claims, ok := v.(*models.JWTClaims); ok {
			return claims
		}
	}
	return nil
}
