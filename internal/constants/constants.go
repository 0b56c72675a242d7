package constants

import "time"

// Session and context keys
const (
	SessionCookieName = "onboarding_session"

	SessionKeyAccessToken   = "access_token"
	SessionKeyRefreshToken  = "refresh_token"
	SessionKeyOAuthVerifier = "oauth_verifier"
	SessionKeyOAuthState    = "oauth_state"

	ContextKeyUser      = "current_user"
	ContextKeyRequestID = "request_id"
)

// Route surface
const (
	RouteHome       = "/"
	RouteCheckEmail = "/auth/check-email"
	RouteOnboarding = "/onboarding"
	RouteDashboard  = "/dashboard"
	RouteError      = "/error"
	RouteCallback   = "/auth/callback"
	RouteConfirm    = "/auth/confirm"
)

// Invite codes
const (
	InviteCodeLength          = 8
	InviteCodeAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultInviteCodeTTL      = 365 * 24 * time.Hour
	DefaultInviteCodeAttempts = 5
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// OAuth
const (
	OAuthProviderGoogle = "google"
)
