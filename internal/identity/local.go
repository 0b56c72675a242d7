package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yukikurage/tenant-onboarding/internal/models"
)

const (
	minPasswordLength   = 6
	sessionTokenBytes   = 32
	googleUserInfoURL   = "https://openidconnect.googleapis.com/v1/userinfo"
	providerEmail       = "email"
	providerGoogle      = "google"
	confirmationSubject = "Confirm your signup"

	defaultRefreshTTL      = 30 * 24 * time.Hour
	defaultConfirmationTTL = 24 * time.Hour
)

var (
	errInvalidCredentials = &ProviderError{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	errEmailNotConfirmed  = &ProviderError{Status: http.StatusBadRequest, Code: "email_not_confirmed", Message: "Email not confirmed"}
	errUserExists         = &ProviderError{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	errWeakPassword       = &ProviderError{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: fmt.Sprintf("Password should be at least %d characters.", minPasswordLength)}
	errInvalidEmail       = &ProviderError{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Unable to validate email address: invalid format"}
	errConfirmationMail   = &ProviderError{Status: http.StatusInternalServerError, Code: "unexpected_failure", Message: "Error sending confirmation email"}
	errLinkInvalid        = &ProviderError{Status: http.StatusForbidden, Code: "otp_expired", Message: "Email link is invalid or has expired"}
	errProviderDisabled   = &ProviderError{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Unsupported provider: provider is not enabled"}
	errNoProviderEmail    = &ProviderError{Status: http.StatusBadRequest, Code: "provider_email_needs_verification", Message: "Error getting user email from external provider"}

	errUnverifiedProviderEmail = &ProviderError{Status: http.StatusBadRequest, Code: "provider_email_needs_verification", Message: "Unverified email with external provider"}
)

// SignUpHook runs after a new identity is stored. The application uses it to
// create the user's profile row.
type SignUpHook func(ctx context.Context, user User) error

// LocalOptions configures a LocalProvider.
type LocalOptions struct {
	SessionTTL time.Duration
	// RefreshTTL bounds how long a session can be refreshed.
	RefreshTTL time.Duration
	// ConfirmationTTL bounds how long a confirmation link stays valid.
	ConfirmationTTL time.Duration
	// PublicURL is the externally reachable base URL used in confirmation links.
	PublicURL string
	// Google enables Google sign-in when non-nil.
	Google      *oauth2.Config
	UserInfoURL string
	HTTPClient  *http.Client
	Mailer      Mailer
	OnSignUp    SignUpHook
	Logger      *zap.Logger
}

// LocalProvider implements Provider on the application database.
type LocalProvider struct {
	db          *gorm.DB
	opts        LocalOptions
	validate    *validator.Validate
	userInfoURL string
	now         func() time.Time
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider constructs a LocalProvider. The auth_identities and
// auth_sessions tables must already exist.
func NewLocalProvider(db *gorm.DB, opts LocalOptions) *LocalProvider {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	if opts.ConfirmationTTL <= 0 {
		opts.ConfirmationTTL = defaultConfirmationTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	if opts.Mailer == nil {
		opts.Mailer = NewLogMailer(opts.Logger, false)
	}
	userInfoURL := opts.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	return &LocalProvider{
		db:          db,
		opts:        opts,
		validate:    validator.New(),
		userInfoURL: userInfoURL,
		now:         time.Now,
	}
}

// SignInWithPassword verifies the bcrypt hash and opens a session.
func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var ident models.AuthIdentity
	err := p.db.WithContext(ctx).
		Where("email = ? AND provider = ?", normalizeEmail(email), providerEmail).
		Take(&ident).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	if ident.ConfirmedAt == nil {
		return nil, errEmailNotConfirmed
	}

	return p.openSession(ctx, &ident)
}

// SignUp stores an unconfirmed identity and mails its confirmation link.
func (p *LocalProvider) SignUp(ctx context.Context, params SignUpParams) (*User, error) {
	email := normalizeEmail(params.Email)
	if err := p.validate.Var(email, "required,email"); err != nil {
		return nil, errInvalidEmail
	}
	if len(params.Password) < minPasswordLength {
		return nil, errWeakPassword
	}

	var existing int64
	if err := p.db.WithContext(ctx).Model(&models.AuthIdentity{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check identity: %w", err)
	}
	if existing > 0 {
		return nil, errUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	token, err := randomToken(sessionTokenBytes)
	if err != nil {
		return nil, err
	}
	tokenHash := hashToken(token)
	confirmationExpiresAt := p.now().Add(p.opts.ConfirmationTTL)

	ident := &models.AuthIdentity{
		Email:                 email,
		PasswordHash:          string(hash),
		Provider:              providerEmail,
		UserMetadata:          datatypes.JSONMap(params.Metadata),
		ConfirmationToken:     &tokenHash,
		ConfirmationExpiresAt: &confirmationExpiresAt,
	}
	if err := p.db.WithContext(ctx).Create(ident).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errUserExists
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}

	user := toUser(ident)
	if err := p.opts.Mailer.Send(ctx, email, confirmationSubject, p.confirmationBody(token, params.RedirectTo)); err != nil {
		p.opts.Logger.Error("failed to send confirmation email", zap.String("identity_id", ident.ID), zap.Error(err))
		p.discard(ctx, ident.ID)
		return nil, errConfirmationMail
	}

	if p.opts.OnSignUp != nil {
		if err := p.opts.OnSignUp(ctx, user); err != nil {
			p.discard(ctx, ident.ID)
			return nil, fmt.Errorf("signup hook: %w", err)
		}
	}

	return &user, nil
}

// SignOut deletes the session. Unknown tokens are already signed out.
func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	return p.db.WithContext(ctx).
		Where("access_token = ?", accessToken).
		Delete(&models.AuthSession{}).Error
}

// GetUser resolves the identity owning accessToken.
func (p *LocalProvider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrInvalidSession
	}

	var session models.AuthSession
	err := p.db.WithContext(ctx).
		Preload("Identity").
		Where("access_token = ?", accessToken).
		Take(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	if !session.ExpiresAt.After(p.now()) {
		return nil, ErrSessionExpired
	}

	user := toUser(&session.Identity)
	return &user, nil
}

// RefreshSession rotates the session identified by refreshToken.
func (p *LocalProvider) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidSession
	}

	var session models.AuthSession
	err := p.db.WithContext(ctx).
		Preload("Identity").
		Where("refresh_token = ?", refreshToken).
		Take(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	if err := p.db.WithContext(ctx).Delete(&models.AuthSession{}, "id = ?", session.ID).Error; err != nil {
		return nil, fmt.Errorf("revoke session: %w", err)
	}
	if !session.RefreshExpiresAt.After(p.now()) {
		return nil, ErrInvalidSession
	}
	return p.openSession(ctx, &session.Identity)
}

// OAuthURL starts a Google authorization-code flow with PKCE. The redirect
// URI is fixed by the oauth2 config; opts.RedirectTo is not used.
func (p *LocalProvider) OAuthURL(ctx context.Context, provider string, opts OAuthOptions) (*OAuthRedirect, error) {
	if p.opts.Google == nil || !strings.EqualFold(strings.TrimSpace(provider), providerGoogle) {
		return nil, errProviderDisabled
	}

	state, err := randomToken(16)
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	authOpts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	for key, value := range opts.QueryParams {
		authOpts = append(authOpts, oauth2.SetAuthURLParam(key, value))
	}

	return &OAuthRedirect{
		URL:          p.opts.Google.AuthCodeURL(state, authOpts...),
		CodeVerifier: verifier,
		State:        state,
	}, nil
}

type googleUserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// ExchangeCode completes the Google flow, links or creates the identity and
// opens a session.
func (p *LocalProvider) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	if p.opts.Google == nil {
		return nil, errProviderDisabled
	}
	if p.opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.opts.HTTPClient)
	}

	token, err := p.opts.Google.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	info, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, errNoProviderEmail
	}
	// Only a verified address may be linked to or create an identity.
	if !info.EmailVerified {
		return nil, errUnverifiedProviderEmail
	}

	ident, err := p.linkGoogleIdentity(ctx, info)
	if err != nil {
		return nil, err
	}
	return p.openSession(ctx, ident)
}

func (p *LocalProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.opts.Google.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read userinfo: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("userinfo failed: status=%d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	info.Email = normalizeEmail(info.Email)
	return &info, nil
}

func (p *LocalProvider) linkGoogleIdentity(ctx context.Context, info *googleUserInfo) (*models.AuthIdentity, error) {
	db := p.db.WithContext(ctx)

	var ident models.AuthIdentity
	err := db.Where("provider = ? AND provider_subject = ?", providerGoogle, info.Subject).Take(&ident).Error
	if err == nil {
		return &ident, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find identity: %w", err)
	}

	err = db.Where("email = ?", info.Email).Take(&ident).Error
	if err == nil {
		// An email identity that Google vouches for is confirmed by this sign-in.
		updates := map[string]interface{}{}
		if ident.ConfirmedAt == nil {
			updates["confirmed_at"] = p.now()
			updates["confirmation_token"] = nil
			updates["confirmation_expires_at"] = nil
		}
		if ident.ProviderSubject == nil {
			updates["provider_subject"] = info.Subject
		}
		if len(updates) > 0 {
			if err := db.Model(&ident).Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("link identity: %w", err)
			}
			if confirmedAt, ok := updates["confirmed_at"].(time.Time); ok {
				ident.ConfirmedAt = &confirmedAt
			}
		}
		return &ident, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find identity: %w", err)
	}

	now := p.now()
	subject := info.Subject
	firstName, lastName := info.GivenName, info.FamilyName
	ident = models.AuthIdentity{
		Email:           info.Email,
		Provider:        providerGoogle,
		ProviderSubject: &subject,
		UserMetadata: datatypes.JSONMap{
			"first_name": firstName,
			"last_name":  lastName,
			"full_name":  strings.TrimSpace(firstName + " " + lastName),
			"email":      info.Email,
		},
		ConfirmedAt: &now,
	}
	if err := db.Create(&ident).Error; err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	if p.opts.OnSignUp != nil {
		if err := p.opts.OnSignUp(ctx, toUser(&ident)); err != nil {
			p.discard(ctx, ident.ID)
			return nil, fmt.Errorf("signup hook: %w", err)
		}
	}
	return &ident, nil
}

// VerifyEmail confirms the identity holding the confirmation token and opens a session.
func (p *LocalProvider) VerifyEmail(ctx context.Context, tokenHash string) (*Session, error) {
	if strings.TrimSpace(tokenHash) == "" {
		return nil, errLinkInvalid
	}

	var ident models.AuthIdentity
	err := p.db.WithContext(ctx).
		Where("confirmation_token = ?", hashToken(tokenHash)).
		Take(&ident).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errLinkInvalid
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}

	now := p.now()
	if ident.ConfirmationExpiresAt == nil || !ident.ConfirmationExpiresAt.After(now) {
		return nil, errLinkInvalid
	}
	if err := p.db.WithContext(ctx).Model(&ident).Updates(map[string]interface{}{
		"confirmed_at":            now,
		"confirmation_token":      nil,
		"confirmation_expires_at": nil,
	}).Error; err != nil {
		return nil, fmt.Errorf("confirm identity: %w", err)
	}
	ident.ConfirmedAt = &now

	return p.openSession(ctx, &ident)
}

func (p *LocalProvider) openSession(ctx context.Context, ident *models.AuthIdentity) (*Session, error) {
	access, err := randomToken(sessionTokenBytes)
	if err != nil {
		return nil, err
	}
	refresh, err := randomToken(sessionTokenBytes)
	if err != nil {
		return nil, err
	}

	now := p.now()
	session := &models.AuthSession{
		IdentityID:       ident.ID,
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresAt:        now.Add(p.opts.SessionTTL),
		RefreshExpiresAt: now.Add(p.opts.RefreshTTL),
	}
	if err := p.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    session.ExpiresAt,
		User:         toUser(ident),
	}, nil
}

func (p *LocalProvider) discard(ctx context.Context, identityID string) {
	if err := p.db.WithContext(ctx).Delete(&models.AuthIdentity{}, "id = ?", identityID).Error; err != nil {
		p.opts.Logger.Error("failed to discard identity", zap.String("identity_id", identityID), zap.Error(err))
	}
}

func (p *LocalProvider) confirmationBody(token, redirectTo string) string {
	query := url.Values{}
	query.Set("token_hash", token)
	query.Set("type", "email")
	if redirectTo != "" {
		query.Set("next", redirectTo)
	}
	link := p.opts.PublicURL + "/auth/confirm?" + query.Encode()
	return "Follow this link to confirm your account:\n\n" + link + "\n"
}

func toUser(ident *models.AuthIdentity) User {
	return User{
		ID:               ident.ID,
		Email:            ident.Email,
		Metadata:         map[string]interface{}(ident.UserMetadata),
		EmailConfirmedAt: ident.ConfirmedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
