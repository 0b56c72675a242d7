package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
	"github.com/yukikurage/tenant-onboarding/internal/dto"
	apierrors "github.com/yukikurage/tenant-onboarding/internal/errors"
	"github.com/yukikurage/tenant-onboarding/internal/middleware"
	"github.com/yukikurage/tenant-onboarding/internal/repository"
	"github.com/yukikurage/tenant-onboarding/internal/services"
	"github.com/yukikurage/tenant-onboarding/internal/utils"
)

// Messages for anonymous onboarding submissions
const (
	CreateCompanyLoginMessage = "You must be logged in to create a company"
	JoinCompanyLoginMessage   = "You must be logged in to join a company"
)

// OrganizationHandler serves the onboarding forms and the dashboard.
type OrganizationHandler struct {
	orgService *services.OrganizationService
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(orgService *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgService: orgService}
}

// CreateCompany creates an organization owned by the current user.
func (h *OrganizationHandler) CreateCompany(c *gin.Context) {
	type CreateCompanyRequest struct {
		CompanyName    string `form:"companyName"`
		Website        string `form:"website"`
		Address        string `form:"address"`
		Phone          string `form:"phone"`
		EmergencyPhone string `form:"emergencyPhone"`
	}

	var req CreateCompanyRequest
	if err := c.ShouldBind(&req); err != nil {
		apierrors.RespondWithAction(c, http.StatusBadRequest, "Company name and phone are required")
		return
	}

	user, _ := middleware.CurrentUser(c)
	if _, err := h.orgService.CreateCompany(c.Request.Context(), user, services.CreateCompanyInput{
		CompanyName:    req.CompanyName,
		Website:        req.Website,
		Address:        req.Address,
		Phone:          req.Phone,
		EmergencyPhone: req.EmergencyPhone,
	}); err != nil {
		respondOnboardingError(c, err, CreateCompanyLoginMessage)
		return
	}

	c.Redirect(http.StatusSeeOther, constants.RouteDashboard)
}

// JoinCompany adds the current user to an organization by invite code.
func (h *OrganizationHandler) JoinCompany(c *gin.Context) {
	type JoinCompanyRequest struct {
		InviteCode string `form:"inviteCode"`
	}

	var req JoinCompanyRequest
	if err := c.ShouldBind(&req); err != nil {
		apierrors.RespondWithAction(c, http.StatusBadRequest, "Please enter a valid 8-character invite code")
		return
	}

	user, _ := middleware.CurrentUser(c)
	if _, err := h.orgService.JoinCompany(c.Request.Context(), user, req.InviteCode); err != nil {
		respondOnboardingError(c, err, JoinCompanyLoginMessage)
		return
	}

	c.Redirect(http.StatusSeeOther, constants.RouteDashboard)
}

// Dashboard returns the current user's organization summary. Users that
// have not finished onboarding are sent back to it.
func (h *OrganizationHandler) Dashboard(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	page := utils.GetPaginationParams(c)
	dashboard, err := h.orgService.GetDashboard(c.Request.Context(), user.ID, page)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoOrganization), errors.Is(err, repository.ErrUserNotFound):
			c.Redirect(http.StatusFound, constants.RouteOnboarding)
		case errors.Is(err, services.ErrOrganizationNotFound):
			apierrors.NotFound(c, "Organization not found")
		default:
			apierrors.InternalError(c, "")
		}
		return
	}

	org := dto.ToOrganizationDTO(*dashboard.Organization)
	response := dto.DashboardDTO{
		User:         dto.ToUserDTO(*dashboard.User),
		Organization: &org,
		Role:         dashboard.User.Role,
		Members:      dto.ToOrganizationMemberDTOs(dashboard.Members),
		Pagination: utils.PaginationResponse{
			Page:  page.Page,
			Limit: page.Limit,
			Total: dashboard.TotalMembers,
		},
	}
	if dashboard.InviteCode != nil {
		code := dto.ToInviteCodeDTO(*dashboard.InviteCode)
		response.InviteCode = &code
	}

	c.JSON(http.StatusOK, response)
}

func respondOnboardingError(c *gin.Context, err error, loginMessage string) {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		apierrors.RespondWithAction(c, http.StatusUnauthorized, loginMessage)
	case errors.Is(err, services.ErrCompanyFieldsRequired):
		apierrors.RespondWithAction(c, http.StatusBadRequest, "Company name and phone are required")
	case errors.Is(err, services.ErrMalformedInviteCode):
		apierrors.RespondWithAction(c, http.StatusBadRequest, "Please enter a valid 8-character invite code")
	case errors.Is(err, services.ErrInvalidInviteCode):
		apierrors.RespondWithAction(c, http.StatusNotFound, "Invalid invite code. Please check and try again.")
	case errors.Is(err, services.ErrExpiredInviteCode):
		apierrors.RespondWithAction(c, http.StatusGone, "This invite code has expired. Please request a new one.")
	case errors.Is(err, services.ErrOrganizationNotFound):
		apierrors.RespondWithAction(c, http.StatusNotFound, "Organization not found. Please try again.")
	case errors.Is(err, services.ErrAlreadyMember):
		apierrors.RespondWithAction(c, http.StatusConflict, "You are already a member of this organization")
	case errors.Is(err, services.ErrCreateOrganization):
		apierrors.RespondWithAction(c, http.StatusInternalServerError, "Failed to create organization. Please try again.")
	case errors.Is(err, services.ErrUpdateUser):
		apierrors.RespondWithAction(c, http.StatusInternalServerError, "Failed to update user record. Please try again.")
	case errors.Is(err, services.ErrCreateInviteCode):
		apierrors.RespondWithAction(c, http.StatusInternalServerError, "Failed to create invite code. Please try again.")
	case errors.Is(err, services.ErrJoinOrganization):
		apierrors.RespondWithAction(c, http.StatusInternalServerError, "Failed to join organization. Please try again.")
	default:
		apierrors.RespondWithAction(c, http.StatusInternalServerError, unexpectedErrorMessage)
	}
}
