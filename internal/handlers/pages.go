package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
	apierrors "github.com/yukikurage/tenant-onboarding/internal/errors"
	"github.com/yukikurage/tenant-onboarding/internal/middleware"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PageHandler serves the static pages of the flow.
type PageHandler struct {
	db Pinger
}

// NewPageHandler creates a new PageHandler. db may be nil.
func NewPageHandler(db Pinger) *PageHandler {
	return &PageHandler{db: db}
}

// Home is the login/signup page.
func (h *PageHandler) Home(c *gin.Context) {
	_, authenticated := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"page":          "home",
		"authenticated": authenticated,
		"actions": gin.H{
			"login":   "/auth/login",
			"signup":  "/auth/signup",
			"google":  "/auth/google",
			"signout": "/auth/signout",
		},
	})
}

// CheckEmail is shown after a successful signup.
func (h *PageHandler) CheckEmail(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page":    "check-email",
		"message": "Check your email to confirm your account before logging in.",
	})
}

// Onboarding offers the create and join company forms.
func (h *PageHandler) Onboarding(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"page": "onboarding",
		"user": user,
		"actions": gin.H{
			"create_company": constants.RouteOnboarding + "/create-company",
			"join_company":   constants.RouteOnboarding + "/join-company",
		},
	})
}

// Error is the generic failure page.
func (h *PageHandler) Error(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page":    "error",
		"message": "Sorry, something went wrong.",
	})
}

// Health reports service and database status.
func (h *PageHandler) Health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			apierrors.ServiceUnavailable(c, "Database unavailable")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
