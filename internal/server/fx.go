package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yukikurage/tenant-onboarding/internal/config"
	"github.com/yukikurage/tenant-onboarding/internal/database"
	"github.com/yukikurage/tenant-onboarding/internal/identity"
	"github.com/yukikurage/tenant-onboarding/internal/logger"
	"github.com/yukikurage/tenant-onboarding/internal/metrics"
	"github.com/yukikurage/tenant-onboarding/internal/repository"
	"github.com/yukikurage/tenant-onboarding/internal/services"
)

const shutdownTimeout = 10 * time.Second

// Module assembles the HTTP service.
var Module = fx.Module("onboarding",
	fx.Provide(
		config.Load,
		logger.New,
		NewDatabase,
		NewMetrics,
		repository.NewUserRepository,
		repository.NewOrganizationRepository,
		NewIdentityProvider,
		NewAuthService,
		NewOrganizationService,
		NewEngine,
		NewHTTPServer,
	),
	fx.Invoke(RunHTTP),
)

// NewDatabase connects, migrates when enabled and closes the pool on stop.
func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.DBAutoMigrate {
		if err := database.Migrate(db, cfg.IdentityMode == config.IdentityModeLocal); err != nil {
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return database.Close(db)
		},
	})
	return db, nil
}

// NewMetrics registers the application counters on the default registry,
// which also carries the gorm pool collectors.
func NewMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.MetricsEnabled {
		return nil
	}
	return metrics.New(prometheus.DefaultRegisterer, metrics.Config{
		ServiceName: "tenant-onboarding",
		Environment: cfg.Environment,
	})
}

func NewAuthService(cfg *config.Config, provider identity.Provider, userRepo repository.UserRepository, m *metrics.Metrics, log *zap.Logger) *services.AuthService {
	return services.NewAuthService(provider, userRepo, m, log, cfg.PublicURL)
}

func NewOrganizationService(cfg *config.Config, orgRepo repository.OrganizationRepository, userRepo repository.UserRepository, m *metrics.Metrics, log *zap.Logger) *services.OrganizationService {
	return services.NewOrganizationService(orgRepo, userRepo, m, log, services.OrganizationOptions{
		InviteCodeTTL:         cfg.InviteCodeTTL,
		InviteCodeMaxAttempts: cfg.InviteCodeMaxAttempts,
	})
}

type engineParams struct {
	fx.In

	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	AuthService *services.AuthService
	OrgService  *services.OrganizationService
}

// NewEngine builds the gin engine from the application graph.
func NewEngine(p engineParams) (*gin.Engine, error) {
	gin.SetMode(p.Config.GinMode)

	store, err := NewSessionStore(p.Config)
	if err != nil {
		return nil, err
	}
	sqlDB, err := p.DB.DB()
	if err != nil {
		return nil, err
	}

	var gatherer prometheus.Gatherer
	if p.Config.MetricsEnabled {
		gatherer = prometheus.DefaultGatherer
	}

	return NewRouter(RouterParams{
		Logger:       p.Logger,
		SessionStore: store,
		AuthService:  p.AuthService,
		OrgService:   p.OrgService,
		DB:           sqlDB,
		Gatherer:     gatherer,
		RateLimitRPM: p.Config.RateLimitRPM,
	}), nil
}

func NewHTTPServer(cfg *config.Config, engine *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// RunHTTP binds the listener on start and drains connections on stop.
func RunHTTP(lc fx.Lifecycle, srv *http.Server, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}
