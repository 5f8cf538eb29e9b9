package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-foodorder/internal/orders"
	"github.com/imrishuroy/go-foodorder/internal/users"
)

const identityKey = "identity"

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID   uint
	Username string
	Role     users.Role
}

func (i Identity) Admin() bool { return i.Role == users.RoleAdmin }

// Actor converts the identity for the order lifecycle.
func (i Identity) Actor() orders.Actor {
	return orders.Actor{UserID: i.UserID, Admin: i.Admin()}
}

// TokenFromRequest reads "Authorization: Bearer <jwt>", falling back to the
// "token" header and then the "token" query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	if h := r.Header.Get("token"); h != "" {
		return h
	}
	return r.URL.Query().Get("token")
}

// Guard rejects requests without a valid access token.
func Guard(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := TokenFromRequest(c.Request)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing access token"})
			return
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid or expired token"})
			return
		}
		c.Set(identityKey, Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role})
		c.Next()
	}
}

// RequireAdmin must run after Guard.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok || !id.Admin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "admin role required"})
			return
		}
		c.Next()
	}
}

// FromContext returns the identity set by Guard.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
