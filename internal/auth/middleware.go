package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "auth.claims"

// adminPrefixes need the admin role.
var adminPrefixes = []string{"/api/admin/", "/api/motor/", "/api/settings", "/api/fiscal/"}

func ClaimsFromContext(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// RequireBearerMiddleware guards /api, /swagger and /docs. Infra endpoints
// stay open. A client token only reaches its own /api/clientes/:id routes.
func RequireBearerMiddleware(j JWT, disabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if disabled {
			c.Next()
			return
		}
		p := c.Request.URL.Path
		if p == "/healthz" || p == "/readyz" {
			c.Next()
			return
		}
		if !(strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/swagger") || p == "/docs") {
			c.Next()
			return
		}

		tok := bearerToken(c.GetHeader("Authorization"))
		if tok == "" {
			// Browsers cannot set headers on a websocket upgrade.
			tok = strings.TrimSpace(c.Query("access_token"))
		}
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "missing bearer token"})
			return
		}
		claims, err := j.Verify(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid token"})
			return
		}
		if !allowed(claims, p) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "forbidden"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func allowed(claims Claims, path string) bool {
	if claims.Role == RoleAdmin {
		return true
	}
	for _, prefix := range adminPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	if claims.Role != RoleClient {
		return false
	}
	rest, ok := strings.CutPrefix(path, "/api/clientes/")
	if !ok {
		return true
	}
	segment, _, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseUint(segment, 10, 64)
	if err != nil {
		// adesao and other non-id routes
		return true
	}
	return claims.ClientID != 0 && claims.ClientID == id
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
