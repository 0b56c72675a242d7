package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yukikurage/tenant-onboarding/internal/config"
	"github.com/yukikurage/tenant-onboarding/internal/constants"
	"github.com/yukikurage/tenant-onboarding/internal/database"
	"github.com/yukikurage/tenant-onboarding/internal/identity"
	"github.com/yukikurage/tenant-onboarding/internal/metrics"
	"github.com/yukikurage/tenant-onboarding/internal/repository"
	"github.com/yukikurage/tenant-onboarding/internal/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db, true))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:   "test",
		PublicURL:     "http://app.test",
		IdentityMode:  config.IdentityModeLocal,
		SessionStore:  config.SessionStoreCookie,
		SessionSecret: "secret",
	}
}

func newTestRouter(t *testing.T, rateLimitRPM int) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	db := setupTestDB(t)
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)

	provider, err := NewIdentityProvider(cfg, db, userRepo, zap.NewNop())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, metrics.Config{Environment: "test"})

	sqlDB, err := db.DB()
	require.NoError(t, err)

	r := NewRouter(RouterParams{
		Logger:       zap.NewNop(),
		SessionStore: cookie.NewStore([]byte("secret")),
		AuthService:  services.NewAuthService(provider, userRepo, m, zap.NewNop(), cfg.PublicURL),
		OrgService:   services.NewOrganizationService(orgRepo, userRepo, m, zap.NewNop(), services.OrganizationOptions{}),
		DB:           sqlDB,
		Gatherer:     reg,
		RateLimitRPM: rateLimitRPM,
	})
	return r, reg
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRouter_PublicPages(t *testing.T) {
	r, _ := newTestRouter(t, 0)

	for _, path := range []string{constants.RouteHome, constants.RouteCheckEmail, constants.RouteError, "/health"} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_GuardsProtectedRoutes(t *testing.T) {
	r, _ := newTestRouter(t, 0)

	for _, path := range []string{constants.RouteOnboarding, constants.RouteDashboard} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusFound, w.Code, path)
		require.Equal(t, constants.RouteHome, w.Header().Get("Location"))
	}

	w := serve(r, postForm("/onboarding/create-company", url.Values{"companyName": {"Acme"}, "phone": {"1"}}))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"ok":false,"message":"You must be logged in to create a company"}`, w.Body.String())

	w = serve(r, postForm("/onboarding/join-company", url.Values{"inviteCode": {"ABCD1234"}}))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"ok":false,"message":"You must be logged in to join a company"}`, w.Body.String())
}

func TestRouter_RateLimitsLogin(t *testing.T) {
	r, _ := newTestRouter(t, 1)

	w := serve(r, postForm("/auth/login", url.Values{"email": {"ada@example.com"}}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, postForm("/auth/login", url.Values{"email": {"ada@example.com"}}))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Contains(t, w.Body.String(), `"ok":false`)
}

func TestRouter_ExposesMetrics(t *testing.T) {
	r, _ := newTestRouter(t, 0)

	serve(r, postForm("/auth/login", url.Values{"email": {"ada@example.com"}}))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `auth_actions_total`)
	require.Contains(t, w.Body.String(), `outcome="rejected"`)
}

func TestRouter_GoogleDisabledInLocalMode(t *testing.T) {
	r, _ := newTestRouter(t, 0)

	w := serve(r, postForm("/auth/google", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, constants.RouteError, w.Header().Get("Location"))
}

func TestNewSessionStore(t *testing.T) {
	cfg := testConfig()

	store, err := NewSessionStore(cfg)
	require.NoError(t, err)
	require.NotNil(t, store)

	cfg.SessionStore = "memcached"
	_, err = NewSessionStore(cfg)
	require.Error(t, err)
}

func TestNewIdentityProvider(t *testing.T) {
	db := setupTestDB(t)
	userRepo := repository.NewUserRepository(db)
	cfg := testConfig()

	provider, err := NewIdentityProvider(cfg, db, userRepo, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &identity.LocalProvider{}, provider)

	cfg.IdentityMode = config.IdentityModeHosted
	cfg.AuthURL = "http://auth.test"
	provider, err = NewIdentityProvider(cfg, db, userRepo, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &identity.HostedProvider{}, provider)

	production := testConfig()
	production.Environment = "production"
	_, err = NewIdentityProvider(production, db, userRepo, zap.NewNop())
	require.Error(t, err)

	production.SMTPHost = "smtp.example.com"
	provider, err = NewIdentityProvider(production, db, userRepo, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &identity.LocalProvider{}, provider)

	cfg.IdentityMode = "ldap"
	_, err = NewIdentityProvider(cfg, db, userRepo, zap.NewNop())
	require.Error(t, err)

	require.Nil(t, googleOAuthConfig(testConfig()))
	withGoogle := testConfig()
	withGoogle.GoogleClientID = "client"
	oauthCfg := googleOAuthConfig(withGoogle)
	require.Equal(t, "http://app.test/auth/callback", oauthCfg.RedirectURL)
}
