package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
	"github.com/yukikurage/tenant-onboarding/internal/identity"
)

// SessionTokens returns the access and refresh tokens stored in the session.
func SessionTokens(c *gin.Context) (accessToken, refreshToken string) {
	session := sessions.Default(c)
	accessToken, _ = session.Get(constants.SessionKeyAccessToken).(string)
	refreshToken, _ = session.Get(constants.SessionKeyRefreshToken).(string)
	return accessToken, refreshToken
}

// SaveSession stores the identity session tokens.
func SaveSession(c *gin.Context, s *identity.Session) error {
	session := sessions.Default(c)
	session.Set(constants.SessionKeyAccessToken, s.AccessToken)
	session.Set(constants.SessionKeyRefreshToken, s.RefreshToken)
	return session.Save()
}

// ClearSession removes every value from the session.
func ClearSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

// SaveOAuthFlow keeps the PKCE verifier and state until the callback.
func SaveOAuthFlow(c *gin.Context, verifier, state string) error {
	session := sessions.Default(c)
	session.Set(constants.SessionKeyOAuthVerifier, verifier)
	session.Set(constants.SessionKeyOAuthState, state)
	return session.Save()
}

// TakeOAuthFlow returns and forgets the PKCE verifier and state.
func TakeOAuthFlow(c *gin.Context) (verifier, state string, err error) {
	session := sessions.Default(c)
	verifier, _ = session.Get(constants.SessionKeyOAuthVerifier).(string)
	state, _ = session.Get(constants.SessionKeyOAuthState).(string)
	session.Delete(constants.SessionKeyOAuthVerifier)
	session.Delete(constants.SessionKeyOAuthState)
	return verifier, state, session.Save()
}
