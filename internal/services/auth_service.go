package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
	"github.com/yukikurage/tenant-onboarding/internal/identity"
	"github.com/yukikurage/tenant-onboarding/internal/metrics"
	"github.com/yukikurage/tenant-onboarding/internal/repository"
)

var (
	ErrCredentialsRequired  = errors.New("email and password are required")
	ErrIncorrectCredentials = errors.New("incorrect email or password")
	ErrSignupFieldsRequired = errors.New("all signup fields are required")
	ErrEmailAlreadyTaken    = errors.New("email already registered")
	ErrNotAuthenticated     = errors.New("not authenticated")
)

// providerAlreadyRegistered is the provider's wording for a duplicate signup.
const providerAlreadyRegistered = "User already registered"

// SignupRejectedError carries the provider message for a rejected signup.
type SignupRejectedError struct {
	ProviderMessage string
}

func (e *SignupRejectedError) Error() string {
	return "signup rejected: " + e.ProviderMessage
}

// Message is the user-facing wording for the rejection.
func (e *SignupRejectedError) Message() string {
	lower := strings.ToLower(e.ProviderMessage)
	switch {
	case strings.Contains(lower, "password"):
		return "Password error: " + e.ProviderMessage
	case strings.Contains(lower, "email"):
		return "Email error: " + e.ProviderMessage
	default:
		return "Signup failed: " + e.ProviderMessage
	}
}

// AuthService handles authentication related business logic.
type AuthService struct {
	provider  identity.Provider
	userRepo  repository.UserRepository
	metrics   *metrics.Metrics
	log       *zap.Logger
	publicURL string
}

// NewAuthService creates a new AuthService.
func NewAuthService(provider identity.Provider, userRepo repository.UserRepository, m *metrics.Metrics, log *zap.Logger, publicURL string) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		provider:  provider,
		userRepo:  userRepo,
		metrics:   m,
		log:       log.Named("auth"),
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// SignInResult is an established session and where to send the user next.
type SignInResult struct {
	Session  *identity.Session
	Redirect string
}

// Login verifies credentials with the identity provider and picks the
// post-login destination.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*SignInResult, error) {
	if input.Email == "" || input.Password == "" {
		s.metrics.AuthAction(metrics.ActionLogin, metrics.OutcomeRejected)
		return nil, ErrCredentialsRequired
	}

	session, err := s.provider.SignInWithPassword(ctx, input.Email, input.Password)
	if err != nil {
		s.log.Info("login rejected by identity provider", zap.String("reason", identity.ErrorMessage(err)))
		s.metrics.AuthAction(metrics.ActionLogin, metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: %v", ErrIncorrectCredentials, err)
	}

	s.metrics.AuthAction(metrics.ActionLogin, metrics.OutcomeSuccess)
	return &SignInResult{
		Session:  session,
		Redirect: s.PostLoginRedirect(ctx, session.User.ID),
	}, nil
}

// PostLoginRedirect returns the dashboard for onboarded users and the
// onboarding page otherwise. A failed lookup also sends the user to
// onboarding.
func (s *AuthService) PostLoginRedirect(ctx context.Context, userID string) string {
	onboarded, err := s.userRepo.IsOnboarded(ctx, userID)
	if err != nil {
		s.log.Warn("onboarding lookup failed, redirecting to onboarding",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.FailOpen()
		return constants.RouteOnboarding
	}
	if onboarded {
		return constants.RouteDashboard
	}
	return constants.RouteOnboarding
}

// SignupInput represents the required information to register an identity.
type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Signup registers the identity. The user has to confirm their email
// before a session exists, so no session is returned.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*identity.User, error) {
	if input.FirstName == "" || input.LastName == "" || input.Email == "" || input.Password == "" {
		s.metrics.AuthAction(metrics.ActionSignup, metrics.OutcomeRejected)
		return nil, ErrSignupFieldsRequired
	}

	user, err := s.provider.SignUp(ctx, identity.SignUpParams{
		Email:    input.Email,
		Password: input.Password,
		Metadata: map[string]interface{}{
			"first_name": input.FirstName,
			"last_name":  input.LastName,
			"full_name":  input.FirstName + " " + input.LastName,
			"email":      input.Email,
		},
		RedirectTo: s.publicURL + constants.RouteConfirm,
	})
	if err != nil {
		message := identity.ErrorMessage(err)
		s.log.Info("signup rejected by identity provider", zap.String("reason", message))
		s.metrics.AuthAction(metrics.ActionSignup, metrics.OutcomeRejected)
		if message == providerAlreadyRegistered {
			return nil, ErrEmailAlreadyTaken
		}
		return nil, &SignupRejectedError{ProviderMessage: message}
	}

	s.metrics.AuthAction(metrics.ActionSignup, metrics.OutcomeSuccess)
	return user, nil
}

// Signout revokes the session at the identity provider.
func (s *AuthService) Signout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		s.log.Error("sign out failed", zap.Error(err))
		s.metrics.AuthAction(metrics.ActionSignout, metrics.OutcomeError)
		return fmt.Errorf("failed to sign out: %w", err)
	}
	s.metrics.AuthAction(metrics.ActionSignout, metrics.OutcomeSuccess)
	return nil
}

// GoogleSignIn starts the Google OAuth flow with offline access and a
// forced consent screen.
func (s *AuthService) GoogleSignIn(ctx context.Context) (*identity.OAuthRedirect, error) {
	redirect, err := s.provider.OAuthURL(ctx, constants.OAuthProviderGoogle, identity.OAuthOptions{
		RedirectTo: s.publicURL + constants.RouteCallback,
		QueryParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	})
	if err != nil {
		s.log.Error("failed to start google sign in", zap.Error(err))
		s.metrics.AuthAction(metrics.ActionGoogle, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to start oauth: %w", err)
	}
	s.metrics.AuthAction(metrics.ActionGoogle, metrics.OutcomeSuccess)
	return redirect, nil
}

// CompleteOAuth exchanges the callback code for a session.
func (s *AuthService) CompleteOAuth(ctx context.Context, code, verifier string) (*SignInResult, error) {
	if code == "" || verifier == "" {
		s.metrics.AuthAction(metrics.ActionCallback, metrics.OutcomeRejected)
		return nil, ErrNotAuthenticated
	}

	session, err := s.provider.ExchangeCode(ctx, code, verifier)
	if err != nil {
		s.log.Error("oauth code exchange failed", zap.Error(err))
		s.metrics.AuthAction(metrics.ActionCallback, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	s.metrics.AuthAction(metrics.ActionCallback, metrics.OutcomeSuccess)
	return &SignInResult{
		Session:  session,
		Redirect: s.PostLoginRedirect(ctx, session.User.ID),
	}, nil
}

// ConfirmEmail verifies the confirmation link. The result is nil when the
// provider confirms without opening a session.
func (s *AuthService) ConfirmEmail(ctx context.Context, tokenHash string) (*SignInResult, error) {
	if tokenHash == "" {
		s.metrics.AuthAction(metrics.ActionConfirmEmail, metrics.OutcomeRejected)
		return nil, ErrNotAuthenticated
	}

	session, err := s.provider.VerifyEmail(ctx, tokenHash)
	if err != nil {
		s.log.Info("email confirmation rejected", zap.String("reason", identity.ErrorMessage(err)))
		s.metrics.AuthAction(metrics.ActionConfirmEmail, metrics.OutcomeRejected)
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	s.metrics.AuthAction(metrics.ActionConfirmEmail, metrics.OutcomeSuccess)
	if session == nil {
		return nil, nil
	}
	return &SignInResult{
		Session:  session,
		Redirect: s.PostLoginRedirect(ctx, session.User.ID),
	}, nil
}

// Authenticate resolves the user owning the session tokens. When the access
// token has expired the session is refreshed and returned so the caller can
// store the new tokens.
func (s *AuthService) Authenticate(ctx context.Context, accessToken, refreshToken string) (*identity.User, *identity.Session, error) {
	if accessToken == "" {
		return nil, nil, ErrNotAuthenticated
	}

	user, err := s.provider.GetUser(ctx, accessToken)
	if err == nil {
		return user, nil, nil
	}
	if !errors.Is(err, identity.ErrSessionExpired) || refreshToken == "" {
		return nil, nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	session, err := s.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: refresh failed: %w", ErrNotAuthenticated, err)
	}
	return &session.User, session, nil
}

// SessionRejected reports whether an Authenticate error means the provider
// refused the stored tokens, as opposed to being unreachable or failing.
// After a failed refresh only the refresh error is in the chain.
func SessionRejected(err error) bool {
	if errors.Is(err, identity.ErrInvalidSession) || errors.Is(err, identity.ErrSessionExpired) {
		return true
	}
	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		return perr.Status >= 400 && perr.Status < 500 && perr.Status != http.StatusTooManyRequests
	}
	return false
}
