// Package identity talks to the identity provider that owns credentials,
// sessions and user metadata. The hosted provider is a GoTrue-compatible
// HTTP API; the local provider keeps the same contract on top of the
// application database.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidSession is returned when an access or refresh token is unknown.
	ErrInvalidSession = errors.New("identity: invalid session")
	// ErrSessionExpired is returned when an access token is known but no longer valid.
	ErrSessionExpired = errors.New("identity: session expired")
)

// Provider is the set of identity operations the application consumes.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, params SignUpParams) (*User, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*User, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	OAuthURL(ctx context.Context, provider string, opts OAuthOptions) (*OAuthRedirect, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*Session, error)
	VerifyEmail(ctx context.Context, tokenHash string) (*Session, error)
}

// User is an authenticated identity with its metadata.
type User struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	Metadata         map[string]interface{} `json:"user_metadata"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at,omitempty"`
}

// FirstName returns the first_name metadata value, or "".
func (u User) FirstName() string {
	return u.metadataString("first_name")
}

// LastName returns the last_name metadata value, or "".
func (u User) LastName() string {
	return u.metadataString("last_name")
}

func (u User) metadataString(key string) string {
	if u.Metadata == nil {
		return ""
	}
	v, _ := u.Metadata[key].(string)
	return v
}

// Session is an access/refresh token pair for a user.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// SignUpParams registers a new email/password identity.
type SignUpParams struct {
	Email      string
	Password   string
	Metadata   map[string]interface{}
	RedirectTo string
}

// OAuthOptions configures the authorization redirect.
type OAuthOptions struct {
	RedirectTo  string
	QueryParams map[string]string
}

// OAuthRedirect is where to send the browser, plus the values the callback
// needs to finish the flow.
type OAuthRedirect struct {
	URL          string
	CodeVerifier string
	State        string
}

// ProviderError is an error reported by the identity provider. Message is
// the provider's own wording and is safe to show to users.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// ErrorMessage extracts the provider message from err, falling back to err.Error().
func ErrorMessage(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) && strings.TrimSpace(perr.Message) != "" {
		return perr.Message
	}
	return err.Error()
}

func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
