package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// HostedProvider is a client of a GoTrue-compatible hosted auth API.
type HostedProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

var _ Provider = (*HostedProvider)(nil)

// NewHostedProvider constructs a client for the auth API rooted at baseURL
// (for example https://project.example.com/auth/v1).
func NewHostedProvider(baseURL, apiKey string, client *http.Client) *HostedProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HostedProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: client,
		now:        time.Now,
	}
}

type userResponse struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	UserMetadata     map[string]interface{} `json:"user_metadata"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at"`
}

func (u userResponse) toUser() User {
	return User{
		ID:               u.ID,
		Email:            u.Email,
		Metadata:         u.UserMetadata,
		EmailConfirmedAt: u.EmailConfirmedAt,
	}
}

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *userResponse `json:"user"`
}

func (s sessionResponse) toSession(now time.Time) *Session {
	session := &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
	switch {
	case s.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	case s.ExpiresIn > 0:
		session.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	if s.User != nil {
		session.User = s.User.toUser()
	}
	return session
}

type errorResponse struct {
	Code             interface{} `json:"code"`
	ErrorCode        string      `json:"error_code"`
	Msg              string      `json:"msg"`
	Message          string      `json:"message"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
}

// SignInWithPassword exchanges email and password for a session.
func (p *HostedProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var resp sessionResponse
	body := map[string]string{"email": email, "password": password}
	if err := p.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(p.now()), nil
}

// SignUp registers an identity with metadata. When email confirmation is
// enabled the provider returns only the user, without a session.
func (p *HostedProvider) SignUp(ctx context.Context, params SignUpParams) (*User, error) {
	path := "/signup"
	if params.RedirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(params.RedirectTo)
	}
	body := map[string]interface{}{
		"email":    params.Email,
		"password": params.Password,
		"data":     params.Metadata,
	}

	var resp struct {
		userResponse
		AccessToken string        `json:"access_token"`
		User        *userResponse `json:"user"`
	}
	if err := p.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return nil, err
	}

	if resp.User != nil {
		user := resp.User.toUser()
		return &user, nil
	}
	user := resp.userResponse.toUser()
	return &user, nil
}

// SignOut revokes the session. A session the provider no longer knows is
// already signed out.
func (p *HostedProvider) SignOut(ctx context.Context, accessToken string) error {
	err := p.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
	var perr *ProviderError
	if errors.As(err, &perr) {
		switch perr.Status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return nil
		}
	}
	return err
}

// GetUser resolves the user that owns accessToken.
func (p *HostedProvider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrInvalidSession
	}

	var resp userResponse
	err := p.do(ctx, http.MethodGet, "/user", accessToken, nil, &resp)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) && (perr.Status == http.StatusUnauthorized || perr.Status == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s", ErrSessionExpired, perr.Message)
		}
		return nil, err
	}
	user := resp.toUser()
	return &user, nil
}

// RefreshSession trades a refresh token for a new session.
func (p *HostedProvider) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidSession
	}
	var resp sessionResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := p.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(p.now()), nil
}

// OAuthURL builds the provider authorize URL for a PKCE flow. Extra query
// parameters are forwarded to the upstream OAuth provider.
func (p *HostedProvider) OAuthURL(ctx context.Context, provider string, opts OAuthOptions) (*OAuthRedirect, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, &ProviderError{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Unsupported provider: missing provider"}
	}

	verifier := oauth2.GenerateVerifier()
	query := url.Values{}
	query.Set("provider", provider)
	if opts.RedirectTo != "" {
		query.Set("redirect_to", opts.RedirectTo)
	}
	query.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	query.Set("code_challenge_method", "s256")
	for key, value := range opts.QueryParams {
		query.Set(key, value)
	}

	return &OAuthRedirect{
		URL:          p.baseURL + "/authorize?" + query.Encode(),
		CodeVerifier: verifier,
	}, nil
}

// ExchangeCode completes a PKCE OAuth flow.
func (p *HostedProvider) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	var resp sessionResponse
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	if err := p.do(ctx, http.MethodPost, "/token?grant_type=pkce", "", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(p.now()), nil
}

// VerifyEmail confirms an email address from the confirmation link.
func (p *HostedProvider) VerifyEmail(ctx context.Context, tokenHash string) (*Session, error) {
	var resp sessionResponse
	body := map[string]string{"type": "email", "token_hash": tokenHash}
	if err := p.do(ctx, http.MethodPost, "/verify", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, nil
	}
	return resp.toSession(p.now()), nil
}

func (p *HostedProvider) do(ctx context.Context, method, path, bearer string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return decodeProviderError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	return nil
}

func decodeProviderError(status int, raw []byte) error {
	perr := &ProviderError{Status: status}

	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		perr.Code = firstNonEmpty(body.ErrorCode, body.Error, stringCode(body.Code))
		perr.Message = firstNonEmpty(body.Msg, body.Message, body.ErrorDescription, body.Error)
	}
	if perr.Message == "" {
		perr.Message = fmt.Sprintf("auth provider returned status %d", status)
	}
	return perr
}

func stringCode(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
