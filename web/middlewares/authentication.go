package middlewares

import (
	"net/http"
	"strings"

	"axiapac.com/presence/security"
	"axiapac.com/presence/web/common"
	"github.com/gin-gonic/gin"
)

const (
	IdentityKey = "identity"
	cookieName  = "presence.ApplicationCookie"
)

// Authentication checks for a valid Bearer token, falling back to the
// application cookie.
func Authentication(jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			cookie, err := c.Cookie(cookieName)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("missing bearer token"))
				return
			}

			tokenStr = cookie
		} else {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("malformed authorization header"))
				return
			}

			tokenStr = parts[1]
		}

		claims, err := security.ParseIdentityToken(tokenStr, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("invalid or expired token"))
			return
		}

		c.Set(IdentityKey, claims)
		c.Next()
	}
}

// RequireRole must run after Authentication.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Identity(c)
		if claims != nil {
			for _, r := range roles {
				if claims.Role == r {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, common.NewErrorResponse("insufficient role"))
	}
}

func Identity(c *gin.Context) *security.IdentityClaims {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*security.IdentityClaims)
	return claims
}
