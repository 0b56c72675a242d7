package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
	apierrors "github.com/yukikurage/tenant-onboarding/internal/errors"
	"github.com/yukikurage/tenant-onboarding/internal/middleware"
	"github.com/yukikurage/tenant-onboarding/internal/services"
)

const unexpectedErrorMessage = "An unexpected error occurred. Please try again."

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
	log         *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// Login authenticates with email and password and sends the user to the
// dashboard or to onboarding.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Email    string `form:"email"`
		Password string `form:"password"`
	}

	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		apierrors.RespondWithAction(c, http.StatusBadRequest, "Email and password are required.")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	if err := middleware.SaveSession(c, result.Session); err != nil {
		h.log.Error("failed to save session", zap.Error(err))
		apierrors.RespondWithAction(c, http.StatusInternalServerError, unexpectedErrorMessage)
		return
	}

	c.Redirect(http.StatusSeeOther, result.Redirect)
}

// Signup registers a new identity and asks the user to confirm their email.
func (h *AuthHandler) Signup(c *gin.Context) {
	type SignupRequest struct {
		FirstName string `form:"first-name"`
		LastName  string `form:"last-name"`
		Email     string `form:"email"`
		Password  string `form:"password"`
	}

	var req SignupRequest
	if err := c.ShouldBind(&req); err != nil {
		apierrors.RespondWithAction(c, http.StatusBadRequest, "All fields are required.")
		return
	}

	if _, err := h.authService.Signup(c.Request.Context(), services.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	}); err != nil {
		respondAuthError(c, err)
		return
	}

	c.Redirect(http.StatusSeeOther, constants.RouteCheckEmail)
}

// Signout ends the session at the identity provider and locally.
func (h *AuthHandler) Signout(c *gin.Context) {
	accessToken, _ := middleware.SessionTokens(c)
	if err := h.authService.Signout(c.Request.Context(), accessToken); err != nil {
		c.Redirect(http.StatusSeeOther, constants.RouteError)
		return
	}

	if err := middleware.ClearSession(c); err != nil {
		h.log.Error("failed to clear session", zap.Error(err))
		c.Redirect(http.StatusSeeOther, constants.RouteError)
		return
	}

	c.Redirect(http.StatusSeeOther, constants.RouteHome)
}

// GoogleSignIn redirects to the Google consent screen.
func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	redirect, err := h.authService.GoogleSignIn(c.Request.Context())
	if err != nil {
		c.Redirect(http.StatusSeeOther, constants.RouteError)
		return
	}

	if err := middleware.SaveOAuthFlow(c, redirect.CodeVerifier, redirect.State); err != nil {
		h.log.Error("failed to save oauth flow", zap.Error(err))
		c.Redirect(http.StatusSeeOther, constants.RouteError)
		return
	}

	c.Redirect(http.StatusSeeOther, redirect.URL)
}

// Callback completes the OAuth flow started by GoogleSignIn.
func (h *AuthHandler) Callback(c *gin.Context) {
	verifier, state, err := middleware.TakeOAuthFlow(c)
	if err != nil {
		h.log.Error("failed to read oauth flow", zap.Error(err))
		c.Redirect(http.StatusFound, constants.RouteError)
		return
	}
	if state != "" && c.Query("state") != state {
		h.log.Warn("oauth state mismatch")
		c.Redirect(http.StatusFound, constants.RouteError)
		return
	}

	result, err := h.authService.CompleteOAuth(c.Request.Context(), c.Query("code"), verifier)
	if err != nil {
		c.Redirect(http.StatusFound, constants.RouteError)
		return
	}

	if err := middleware.SaveSession(c, result.Session); err != nil {
		h.log.Error("failed to save session", zap.Error(err))
		c.Redirect(http.StatusFound, constants.RouteError)
		return
	}

	c.Redirect(http.StatusFound, result.Redirect)
}

// Confirm verifies the link from the confirmation email.
func (h *AuthHandler) Confirm(c *gin.Context) {
	result, err := h.authService.ConfirmEmail(c.Request.Context(), c.Query("token_hash"))
	if err != nil {
		c.Redirect(http.StatusFound, constants.RouteError)
		return
	}
	if result == nil {
		c.Redirect(http.StatusFound, constants.RouteHome)
		return
	}

	if err := middleware.SaveSession(c, result.Session); err != nil {
		h.log.Error("failed to save session", zap.Error(err))
		c.Redirect(http.StatusFound, constants.RouteError)
		return
	}

	c.Redirect(http.StatusFound, result.Redirect)
}

func respondAuthError(c *gin.Context, err error) {
	var rejected *services.SignupRejectedError
	switch {
	case errors.Is(err, services.ErrCredentialsRequired):
		apierrors.RespondWithAction(c, http.StatusBadRequest, "Email and password are required.")
	case errors.Is(err, services.ErrIncorrectCredentials):
		apierrors.RespondWithAction(c, http.StatusUnauthorized, "Incorrect email or password.")
	case errors.Is(err, services.ErrSignupFieldsRequired):
		apierrors.RespondWithAction(c, http.StatusBadRequest, "All fields are required.")
	case errors.Is(err, services.ErrEmailAlreadyTaken):
		apierrors.RespondWithAction(c, http.StatusConflict, "This email is already registered. Please try logging in instead.")
	case errors.As(err, &rejected):
		apierrors.RespondWithAction(c, http.StatusUnprocessableEntity, rejected.Message())
	default:
		apierrors.RespondWithAction(c, http.StatusInternalServerError, unexpectedErrorMessage)
	}
}
