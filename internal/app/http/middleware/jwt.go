package middleware

import (
	"context"
	"net/http"
	"strings"

	"imagecraft-app/internal/domain/users"
	"imagecraft-app/internal/infra/identity"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Keys set on the gin context for authenticated requests.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
)

type UserProvisioner interface {
	EnsureUser(ctx context.Context, id, email string, credits int) (*users.User, error)
}

type AuthConfig struct {
	Verifier       identity.Verifier
	Users          UserProvisioner
	CookieName     string
	NewUserCredits int
}

// AuthMiddleware resolves the caller from a Bearer token, falling back to
// the session cookie, and makes sure a local user row exists.
func AuthMiddleware(cfg AuthConfig, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" && cfg.CookieName != "" {
			raw, _ = c.Cookie(cfg.CookieName)
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated. Please sign in again."})
			return
		}

		id, err := cfg.Verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			log.Debug().Err(err).Msg("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		if _, err := cfg.Users.EnsureUser(c.Request.Context(), id.Subject, id.Email, cfg.NewUserCredits); err != nil {
			log.Error().Err(err).Str("user_id", id.Subject).Msg("failed to provision user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}

		c.Set(CtxUserID, id.Subject)
		c.Set(CtxEmail, id.Email)
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
