package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
	"github.com/yukikurage/tenant-onboarding/internal/models"
)

func TestAuthHandler_SignupConfirmAndLogin(t *testing.T) {
	env := setupHandlerTestEnv(t)
	b := env.browser(t)

	w := b.submit("/auth/signup", signupForm("Ada", "Lovelace", "ada@example.com", "hunter22"))
	requireRedirect(t, w, http.StatusSeeOther, constants.RouteCheckEmail)

	var profile models.User
	require.NoError(t, env.db.Where("email = ?", "ada@example.com").Take(&profile).Error)
	require.Equal(t, "Ada", profile.FirstName)
	require.False(t, profile.Onboarded)

	login := url.Values{"email": {"ada@example.com"}, "password": {"hunter22"}}
	w = b.submit("/auth/login", login)
	requireActionFailure(t, w, http.StatusUnauthorized, "Incorrect email or password.")

	w = b.get(constants.RouteConfirm + "?token_hash=" + env.mail.lastToken(t) + "&type=email")
	requireRedirect(t, w, http.StatusFound, constants.RouteOnboarding)

	w = b.get(constants.RouteOnboarding)
	require.Equal(t, http.StatusOK, w.Code)

	w = b.submit("/auth/signout", nil)
	requireRedirect(t, w, http.StatusSeeOther, constants.RouteHome)

	w = b.get(constants.RouteOnboarding)
	requireRedirect(t, w, http.StatusFound, constants.RouteHome)

	w = b.submit("/auth/login", login)
	requireRedirect(t, w, http.StatusSeeOther, constants.RouteOnboarding)
}

func TestAuthHandler_LoginValidation(t *testing.T) {
	env := setupHandlerTestEnv(t)
	b := env.browser(t)

	w := b.submit("/auth/login", url.Values{"email": {"ada@example.com"}})
	requireActionFailure(t, w, http.StatusBadRequest, "Email and password are required.")

	w = b.submit("/auth/login", url.Values{"email": {"nobody@example.com"}, "password": {"hunter22"}})
	requireActionFailure(t, w, http.StatusUnauthorized, "Incorrect email or password.")
}

func TestAuthHandler_SignupRejections(t *testing.T) {
	env := setupHandlerTestEnv(t)
	b := env.browser(t)

	tests := []struct {
		name    string
		form    url.Values
		status  int
		message string
	}{
		{
			name:    "missing last name",
			form:    signupForm("Ada", "", "ada@example.com", "hunter22"),
			status:  http.StatusBadRequest,
			message: "All fields are required.",
		},
		{
			name:    "short password",
			form:    signupForm("Ada", "Lovelace", "ada@example.com", "abc"),
			status:  http.StatusUnprocessableEntity,
			message: "Password error: Password should be at least 6 characters.",
		},
		{
			name:    "malformed email",
			form:    signupForm("Ada", "Lovelace", "not-an-email", "hunter22"),
			status:  http.StatusUnprocessableEntity,
			message: "Email error: Unable to validate email address: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := b.submit("/auth/signup", tt.form)
			requireActionFailure(t, w, tt.status, tt.message)
		})
	}
}

func TestAuthHandler_SignupDuplicateEmail(t *testing.T) {
	env := setupHandlerTestEnv(t)
	b := env.browser(t)

	w := b.submit("/auth/signup", signupForm("Ada", "Lovelace", "ada@example.com", "hunter22"))
	requireRedirect(t, w, http.StatusSeeOther, constants.RouteCheckEmail)

	w = b.submit("/auth/signup", signupForm("Ada", "Lovelace", "ada@example.com", "hunter22"))
	requireActionFailure(t, w, http.StatusConflict, "This email is already registered. Please try logging in instead.")
}

func TestAuthHandler_ConfirmWithBadLink(t *testing.T) {
	env := setupHandlerTestEnv(t)
	b := env.browser(t)

	w := b.get(constants.RouteConfirm + "?token_hash=deadbeef&type=email")
	requireRedirect(t, w, http.StatusFound, constants.RouteError)
}

func TestAuthHandler_SignoutWithoutSession(t *testing.T) {
	env := setupHandlerTestEnv(t)
	b := env.browser(t)

	w := b.submit("/auth/signout", nil)
	requireRedirect(t, w, http.StatusSeeOther, constants.RouteHome)
}

func TestPageHandler_Health(t *testing.T) {
	env := setupHandlerTestEnv(t)
	b := env.browser(t)

	w := b.get("/health")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
