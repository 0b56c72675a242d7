package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
	"github.com/yukikurage/tenant-onboarding/internal/database"
	"github.com/yukikurage/tenant-onboarding/internal/dto"
	"github.com/yukikurage/tenant-onboarding/internal/identity"
	"github.com/yukikurage/tenant-onboarding/internal/metrics"
	"github.com/yukikurage/tenant-onboarding/internal/middleware"
	"github.com/yukikurage/tenant-onboarding/internal/models"
	"github.com/yukikurage/tenant-onboarding/internal/repository"
	"github.com/yukikurage/tenant-onboarding/internal/services"
)

type inbox struct {
	bodies []string
}

func (m *inbox) Send(ctx context.Context, to, subject, body string) error {
	m.bodies = append(m.bodies, body)
	return nil
}

var confirmLinkPattern = regexp.MustCompile(`token_hash=([0-9a-f]+)`)

func (m *inbox) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.bodies)
	match := confirmLinkPattern.FindStringSubmatch(m.bodies[len(m.bodies)-1])
	require.Len(t, match, 2)
	return match[1]
}

type handlerTestEnv struct {
	db     *gorm.DB
	router *gin.Engine
	mail   *inbox
}

func setupHandlerTestEnv(t *testing.T) handlerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db, true))

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	m := metrics.New(prometheus.NewRegistry(), metrics.Config{})
	mail := &inbox{}

	provider := identity.NewLocalProvider(db, identity.LocalOptions{
		SessionTTL: time.Hour,
		PublicURL:  "http://app.test",
		Mailer:     mail,
		Logger:     zap.NewNop(),
		OnSignUp: func(ctx context.Context, user identity.User) error {
			return userRepo.EnsureProfile(ctx, &models.User{
				ID:        user.ID,
				Email:     user.Email,
				FirstName: user.FirstName(),
				LastName:  user.LastName(),
			})
		},
	})

	authService := services.NewAuthService(provider, userRepo, m, zap.NewNop(), "http://app.test")
	orgService := services.NewOrganizationService(orgRepo, userRepo, m, zap.NewNop(), services.OrganizationOptions{})

	pages := NewPageHandler(sqlDB)
	auth := NewAuthHandler(authService, zap.NewNop())
	orgs := NewOrganizationHandler(orgService)

	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))
	r.GET("/health", pages.Health)

	app := r.Group("", middleware.LoadUser(authService, zap.NewNop()))
	app.GET(constants.RouteHome, pages.Home)
	app.GET(constants.RouteConfirm, auth.Confirm)
	app.POST("/auth/login", auth.Login)
	app.POST("/auth/signup", auth.Signup)
	app.POST("/auth/signout", auth.Signout)
	app.GET(constants.RouteOnboarding, middleware.RequirePageAuth(), pages.Onboarding)
	app.GET(constants.RouteDashboard, middleware.RequirePageAuth(), orgs.Dashboard)
	app.POST("/onboarding/create-company", middleware.RequireActionAuth(CreateCompanyLoginMessage), orgs.CreateCompany)
	app.POST("/onboarding/join-company", middleware.RequireActionAuth(JoinCompanyLoginMessage), orgs.JoinCompany)

	return handlerTestEnv{db: db, router: r, mail: mail}
}

// browser replays session cookies between requests.
type browser struct {
	t       *testing.T
	router  *gin.Engine
	cookies map[string]*http.Cookie
}

func (env handlerTestEnv) browser(t *testing.T) *browser {
	return &browser{t: t, router: env.router, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) submit(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func decodeAction(t *testing.T, w *httptest.ResponseRecorder) dto.ActionState {
	t.Helper()
	var state dto.ActionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	return state
}

func requireActionFailure(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	state := decodeAction(t, w)
	require.False(t, state.OK)
	require.Equal(t, message, state.Message)
}

func requireRedirect(t *testing.T, w *httptest.ResponseRecorder, status int, location string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	require.Equal(t, location, w.Header().Get("Location"))
}

func signupForm(first, last, email, password string) url.Values {
	return url.Values{
		"first-name": {first},
		"last-name":  {last},
		"email":      {email},
		"password":   {password},
	}
}

// signedUpBrowser registers and confirms an account, leaving the browser signed in.
func (env handlerTestEnv) signedUpBrowser(t *testing.T, first, last, email string) *browser {
	t.Helper()
	b := env.browser(t)

	w := b.submit("/auth/signup", signupForm(first, last, email, "hunter22"))
	requireRedirect(t, w, http.StatusSeeOther, constants.RouteCheckEmail)

	w = b.get(constants.RouteConfirm + "?token_hash=" + env.mail.lastToken(t) + "&type=email")
	requireRedirect(t, w, http.StatusFound, constants.RouteOnboarding)
	return b
}
