package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
	apierrors "github.com/yukikurage/tenant-onboarding/internal/errors"
	"github.com/yukikurage/tenant-onboarding/internal/identity"
	"github.com/yukikurage/tenant-onboarding/internal/services"
)

// LoadUser resolves the identity owning the session tokens and stores it in
// the request context. Refreshed tokens are written back to the session and
// tokens the provider rejects are dropped. When the provider cannot be
// reached the request is served anonymously and the session is kept. It
// never aborts the request.
func LoadUser(authService *services.AuthService, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.L()
	}

	return func(c *gin.Context) {
		accessToken, refreshToken := SessionTokens(c)
		if accessToken == "" {
			c.Next()
			return
		}

		user, refreshed, err := authService.Authenticate(c.Request.Context(), accessToken, refreshToken)
		if err != nil {
			if !services.SessionRejected(err) {
				// Provider unavailable: serve anonymously and keep the tokens.
				log.Warn("session check failed", zap.Error(err))
				c.Next()
				return
			}
			log.Debug("session rejected", zap.Error(err))
			if err := ClearSession(c); err != nil {
				log.Warn("failed to clear session", zap.Error(err))
			}
			c.Next()
			return
		}

		if refreshed != nil {
			if err := SaveSession(c, refreshed); err != nil {
				log.Warn("failed to store refreshed session", zap.Error(err))
			}
		}

		c.Set(constants.ContextKeyUser, user)
		c.Next()
	}
}

// RequirePageAuth redirects anonymous visitors to the landing page.
func RequirePageAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.Redirect(http.StatusFound, constants.RouteHome)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireActionAuth rejects anonymous form submissions with message.
func RequireActionAuth(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			apierrors.RespondWithAction(c, http.StatusUnauthorized, message)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser retrieves the identity resolved by LoadUser.
func CurrentUser(c *gin.Context) (*identity.User, bool) {
	value, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*identity.User)
	return user, ok && user != nil
}
