package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/security"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

const CtxPrincipal = "principal"

// RequireAuth accepts "Authorization: Bearer <jwt>" and stores the principal in the context.
func RequireAuth(jwtm *security.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := strings.TrimSpace(c.GetHeader("Authorization"))
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			resp.Abort(c, http.StatusUnauthorized, "Access denied. No token provided.")
			return
		}
		p, err := jwtm.ParseAccess(strings.TrimSpace(raw))
		if err != nil {
			resp.Abort(c, http.StatusUnauthorized, "Invalid or expired token.")
			return
		}
		c.Set(CtxPrincipal, p)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.IsAdmin() {
			resp.Abort(c, http.StatusForbidden, "Admin rights required.")
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (security.Principal, bool) {
	v, ok := c.Get(CtxPrincipal)
	if !ok {
		return security.Principal{}, false
	}
	p, ok := v.(security.Principal)
	return p, ok
}

// Actor is the username recorded in created_by/modified_by columns.
func Actor(c *gin.Context) string {
	if p, ok := PrincipalFrom(c); ok && p.Username != "" {
		return p.Username
	}
	return "system"
}
