package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/yukikurage/tenant-onboarding/internal/config"
	"github.com/yukikurage/tenant-onboarding/internal/constants"
	"github.com/yukikurage/tenant-onboarding/internal/identity"
	"github.com/yukikurage/tenant-onboarding/internal/models"
	"github.com/yukikurage/tenant-onboarding/internal/repository"
)

const identityHTTPTimeout = 10 * time.Second

// NewIdentityProvider selects the hosted auth server or the built-in
// provider according to IDENTITY_MODE.
func NewIdentityProvider(cfg *config.Config, db *gorm.DB, userRepo repository.UserRepository, log *zap.Logger) (identity.Provider, error) {
	client := &http.Client{Timeout: identityHTTPTimeout}

	switch cfg.IdentityMode {
	case config.IdentityModeHosted:
		if cfg.AuthAnonKey == "" {
			log.Warn("AUTH_ANON_KEY is empty, requests to the auth server will be anonymous")
		}
		return identity.NewHostedProvider(cfg.AuthURL, cfg.AuthAnonKey, client), nil
	case config.IdentityModeLocal:
		if cfg.IsProduction() && cfg.SMTPHost == "" {
			return nil, errors.New("SMTP_HOST is required for the local identity provider in production")
		}
		return identity.NewLocalProvider(db, identity.LocalOptions{
			SessionTTL: cfg.LocalSessionTTL,
			PublicURL:  cfg.PublicURL,
			Google:     googleOAuthConfig(cfg),
			HTTPClient: client,
			Mailer:     newMailer(cfg, log),
			Logger:     log.Named("identity"),
			OnSignUp: func(ctx context.Context, user identity.User) error {
				return userRepo.EnsureProfile(ctx, &models.User{
					ID:        user.ID,
					Email:     user.Email,
					FirstName: user.FirstName(),
					LastName:  user.LastName(),
				})
			},
		}), nil
	default:
		return nil, fmt.Errorf("unsupported identity mode %q", cfg.IdentityMode)
	}
}

// googleOAuthConfig returns nil when Google sign-in is not configured.
func googleOAuthConfig(cfg *config.Config) *oauth2.Config {
	if cfg.GoogleClientID == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.PublicURL + constants.RouteCallback,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func newMailer(cfg *config.Config, log *zap.Logger) identity.Mailer {
	if cfg.SMTPHost == "" {
		log.Warn("SMTP_HOST is empty, confirmation mail is written to the log")
		return identity.NewLogMailer(log.Named("mail"), cfg.Environment == "development")
	}
	return identity.NewSMTPMailer(identity.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}
