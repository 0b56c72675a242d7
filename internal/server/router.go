package server

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
	"github.com/yukikurage/tenant-onboarding/internal/handlers"
	"github.com/yukikurage/tenant-onboarding/internal/middleware"
	"github.com/yukikurage/tenant-onboarding/internal/services"
)

// RouterParams holds the dependencies of the HTTP surface. /metrics is only
// mounted when Gatherer is set.
type RouterParams struct {
	Logger       *zap.Logger
	SessionStore sessions.Store
	AuthService  *services.AuthService
	OrgService   *services.OrganizationService
	DB           handlers.Pinger
	Gatherer     prometheus.Gatherer
	RateLimitRPM int
}

// NewRouter wires middleware, pages and form actions.
func NewRouter(p RouterParams) *gin.Engine {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log.Named("http")))
	r.Use(sessions.Sessions(constants.SessionCookieName, p.SessionStore))

	pageHandler := handlers.NewPageHandler(p.DB)
	authHandler := handlers.NewAuthHandler(p.AuthService, log.Named("auth"))
	orgHandler := handlers.NewOrganizationHandler(p.OrgService)
	limiter := middleware.NewRateLimiter(p.RateLimitRPM)

	r.GET("/health", pageHandler.Health)
	if p.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{})))
	}

	app := r.Group("", middleware.LoadUser(p.AuthService, log.Named("session")))
	{
		app.GET(constants.RouteHome, pageHandler.Home)
		app.GET(constants.RouteCheckEmail, pageHandler.CheckEmail)
		app.GET(constants.RouteError, pageHandler.Error)
		app.GET(constants.RouteConfirm, authHandler.Confirm)
		app.GET(constants.RouteCallback, authHandler.Callback)

		auth := app.Group("/auth")
		{
			auth.POST("/login", limiter.Handler(), authHandler.Login)
			auth.POST("/signup", limiter.Handler(), authHandler.Signup)
			auth.POST("/signout", authHandler.Signout)
			auth.POST("/google", authHandler.GoogleSignIn)
		}

		app.GET(constants.RouteOnboarding, middleware.RequirePageAuth(), pageHandler.Onboarding)
		app.GET(constants.RouteDashboard, middleware.RequirePageAuth(), orgHandler.Dashboard)

		onboarding := app.Group(constants.RouteOnboarding)
		{
			onboarding.POST("/create-company", middleware.RequireActionAuth(handlers.CreateCompanyLoginMessage), orgHandler.CreateCompany)
			onboarding.POST("/join-company", middleware.RequireActionAuth(handlers.JoinCompanyLoginMessage), orgHandler.JoinCompany)
		}
	}

	return r
}
