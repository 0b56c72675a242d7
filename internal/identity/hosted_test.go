package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func newHostedTestProvider(t *testing.T, handler http.HandlerFunc) *HostedProvider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewHostedProvider(srv.URL+"/auth/v1/", "anon-key", srv.Client())
}

func TestHostedProvider_SignInWithPassword(t *testing.T) {
	p := newHostedTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/v1/token", r.URL.Path)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		require.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ada@example.com", body["email"])
		require.Equal(t, "hunter22", body["password"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "at",
			"refresh_token": "rt",
			"expires_in": 3600,
			"user": {"id": "u-1", "email": "ada@example.com", "user_metadata": {"first_name": "Ada"}}
		}`))
	})

	session, err := p.SignInWithPassword(context.Background(), "ada@example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "at", session.AccessToken)
	require.Equal(t, "rt", session.RefreshToken)
	require.Equal(t, "u-1", session.User.ID)
	require.Equal(t, "Ada", session.User.FirstName())
	require.False(t, session.ExpiresAt.IsZero())
}

func TestHostedProvider_ErrorMessageIsSurfaced(t *testing.T) {
	p := newHostedTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})

	_, err := p.SignInWithPassword(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, http.StatusBadRequest, perr.Status)
	require.Equal(t, "invalid_grant", perr.Code)
	require.Equal(t, "Invalid login credentials", ErrorMessage(err))
}

func TestHostedProvider_SignUpSendsMetadata(t *testing.T) {
	p := newHostedTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/signup", r.URL.Path)
		require.Equal(t, "https://app.example.com/auth/confirm", r.URL.Query().Get("redirect_to"))

		var body struct {
			Email string                 `json:"email"`
			Data  map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Ada Lovelace", body.Data["full_name"])

		_, _ = w.Write([]byte(`{"id":"u-2","email":"ada@example.com","user_metadata":{"full_name":"Ada Lovelace"}}`))
	})

	user, err := p.SignUp(context.Background(), SignUpParams{
		Email:      "ada@example.com",
		Password:   "hunter22",
		Metadata:   map[string]interface{}{"full_name": "Ada Lovelace"},
		RedirectTo: "https://app.example.com/auth/confirm",
	})
	require.NoError(t, err)
	require.Equal(t, "u-2", user.ID)
}

func TestHostedProvider_SignUpAlreadyRegistered(t *testing.T) {
	p := newHostedTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":422,"error_code":"user_already_exists","msg":"User already registered"}`))
	})

	_, err := p.SignUp(context.Background(), SignUpParams{Email: "ada@example.com", Password: "hunter22"})
	require.Error(t, err)
	require.Equal(t, "User already registered", err.Error())
}

func TestHostedProvider_GetUserExpired(t *testing.T) {
	p := newHostedTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer stale", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"invalid JWT: token is expired"}`))
	})

	_, err := p.GetUser(context.Background(), "stale")
	require.ErrorIs(t, err, ErrSessionExpired)

	_, err = p.GetUser(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestHostedProvider_SignOutIgnoresUnknownSession(t *testing.T) {
	p := newHostedTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	require.NoError(t, p.SignOut(context.Background(), "gone"))
}

func TestHostedProvider_OAuthURL(t *testing.T) {
	p := NewHostedProvider("https://auth.example.com/auth/v1", "anon-key", nil)

	redirect, err := p.OAuthURL(context.Background(), "Google", OAuthOptions{
		RedirectTo: "https://app.example.com/auth/callback",
		QueryParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, redirect.CodeVerifier)

	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	require.Equal(t, "/auth/v1/authorize", u.Path)

	q := u.Query()
	require.Equal(t, "google", q.Get("provider"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "consent", q.Get("prompt"))
	require.Equal(t, "s256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
}

func TestHostedProvider_ExchangeCode(t *testing.T) {
	p := newHostedTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "pkce", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "the-code", body["auth_code"])
		require.Equal(t, "the-verifier", body["code_verifier"])

		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_at":4102444800,"user":{"id":"u-3"}}`))
	})

	session, err := p.ExchangeCode(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)
	require.Equal(t, "u-3", session.User.ID)
	require.Equal(t, int64(4102444800), session.ExpiresAt.Unix())
}

func TestHostedProvider_VerifyEmailWithoutSession(t *testing.T) {
	p := newHostedTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/verify", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	})

	session, err := p.VerifyEmail(context.Background(), "hash")
	require.NoError(t, err)
	require.Nil(t, session)
}
