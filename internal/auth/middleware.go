package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	dom "tasktracker/internal/domain"
	"tasktracker/internal/repo"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"
)

const (
	contextKeyPrincipal = "principal"
	contextKeyClaims    = "token_claims"
)

// PrincipalFromContext returns the principal set by RequireAuth.
func PrincipalFromContext(c *gin.Context) (dom.Principal, bool) {
	v, ok := c.Get(contextKeyPrincipal)
	if !ok {
		return dom.Principal{}, false
	}
	p, ok := v.(dom.Principal)
	return p, ok
}

// ClaimsFromContext returns the validated token claims set by RequireAuth.
func ClaimsFromContext(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// RequireAuth validates the bearer token and resolves the principal by
// re-fetching the user row on every request, so a role change or
// deactivation takes effect immediately, whatever the token says. Concurrent
// lookups for the same subject are collapsed with singleflight; nothing is
// cached across requests. A nil revoked store disables the denylist check.
func RequireAuth(tokens *JWTService, users repo.UserRepo, revoked RevocationStore) gin.HandlerFunc {
	var sf singleflight.Group
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}
		claims, err := tokens.Validate(raw)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		if revoked != nil {
			if isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID); err != nil || isRevoked {
				abortUnauthorized(c)
				return
			}
		}
		// The lookup may be shared with collapsed peers, so it must not die
		// with whichever request happened to start it.
		lookupCtx := context.WithoutCancel(c.Request.Context())
		v, err, _ := sf.Do(claims.Subject, func() (interface{}, error) {
			return users.GetByUsername(lookupCtx, claims.Subject)
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				abortUnauthorized(c)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		u := v.(dom.User)
		if !u.IsActive {
			abortUnauthorized(c)
			return
		}
		c.Set(contextKeyPrincipal, dom.Principal{ID: u.ID, Username: u.Username, Role: u.Role})
		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
}
