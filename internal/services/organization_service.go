package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
	"github.com/yukikurage/tenant-onboarding/internal/identity"
	"github.com/yukikurage/tenant-onboarding/internal/metrics"
	"github.com/yukikurage/tenant-onboarding/internal/models"
	"github.com/yukikurage/tenant-onboarding/internal/repository"
	"github.com/yukikurage/tenant-onboarding/internal/utils"
)

var (
	ErrCompanyFieldsRequired = errors.New("company name and phone are required")
	ErrMalformedInviteCode   = errors.New("invite code must be 8 characters")
	ErrInvalidInviteCode     = errors.New("invalid invite code")
	ErrExpiredInviteCode     = errors.New("invite code has expired")
	ErrOrganizationNotFound  = errors.New("organization not found")
	ErrAlreadyMember         = errors.New("user is already a member of this organization")
	ErrCreateOrganization    = errors.New("failed to create organization")
	ErrUpdateUser            = errors.New("failed to update user record")
	ErrCreateInviteCode      = errors.New("failed to create invite code")
	ErrJoinOrganization      = errors.New("failed to join organization")
	ErrNoOrganization        = errors.New("user has not joined an organization")
)

// OrganizationOptions tunes invite code issuance.
type OrganizationOptions struct {
	InviteCodeTTL         time.Duration
	InviteCodeMaxAttempts int
}

// OrganizationService provides business logic for company onboarding.
type OrganizationService struct {
	orgRepo      repository.OrganizationRepository
	userRepo     repository.UserRepository
	metrics      *metrics.Metrics
	log          *zap.Logger
	opts         OrganizationOptions
	now          func() time.Time
	generateCode func() (string, error)
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(orgRepo repository.OrganizationRepository, userRepo repository.UserRepository, m *metrics.Metrics, log *zap.Logger, opts OrganizationOptions) *OrganizationService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.InviteCodeTTL <= 0 {
		opts.InviteCodeTTL = constants.DefaultInviteCodeTTL
	}
	if opts.InviteCodeMaxAttempts < 1 {
		opts.InviteCodeMaxAttempts = constants.DefaultInviteCodeAttempts
	}
	return &OrganizationService{
		orgRepo:      orgRepo,
		userRepo:     userRepo,
		metrics:      m,
		log:          log.Named("onboarding"),
		opts:         opts,
		now:          time.Now,
		generateCode: utils.GenerateInviteCode,
	}
}

// CreateCompanyInput represents the new company form.
type CreateCompanyInput struct {
	CompanyName    string
	Website        string
	Address        string
	Phone          string
	EmergencyPhone string
}

// CreateCompany creates the organization, makes the caller its super admin
// and issues the first invite code.
func (s *OrganizationService) CreateCompany(ctx context.Context, user *identity.User, input CreateCompanyInput) (*repository.ProvisionResult, error) {
	if user == nil {
		s.metrics.OnboardingAction(metrics.ActionCreateCompany, metrics.OutcomeRejected)
		return nil, ErrNotAuthenticated
	}

	name := strings.TrimSpace(input.CompanyName)
	phone := strings.TrimSpace(input.Phone)
	if name == "" || phone == "" {
		s.metrics.OnboardingAction(metrics.ActionCreateCompany, metrics.OutcomeRejected)
		return nil, ErrCompanyFieldsRequired
	}

	var emergencyPhone interface{}
	if v := strings.TrimSpace(input.EmergencyPhone); v != "" {
		emergencyPhone = v
	}

	result, err := s.orgRepo.ProvisionOrganization(ctx, repository.ProvisionParams{
		Organization: &models.Organization{
			Name:       name,
			Website:    optionalString(input.Website),
			OrgAddress: optionalString(input.Address),
			Phone:      phone,
			Meta:       datatypes.JSONMap{models.MetaEmergencyPhone: emergencyPhone},
		},
		UserID:       user.ID,
		FirstName:    user.FirstName(),
		LastName:     user.LastName(),
		Now:          s.now(),
		CodeTTL:      s.opts.InviteCodeTTL,
		MaxAttempts:  s.opts.InviteCodeMaxAttempts,
		GenerateCode: s.generateCode,
	})
	if err != nil {
		s.log.Error("create company failed", zap.String("user_id", user.ID), zap.Error(err))
		s.metrics.OnboardingAction(metrics.ActionCreateCompany, metrics.OutcomeError)
		switch {
		case errors.Is(err, repository.ErrCreateOrganization):
			return nil, fmt.Errorf("%w: %v", ErrCreateOrganization, err)
		case errors.Is(err, repository.ErrUpdateUser):
			return nil, fmt.Errorf("%w: %v", ErrUpdateUser, err)
		case errors.Is(err, repository.ErrCreateJoinCode):
			return nil, fmt.Errorf("%w: %v", ErrCreateInviteCode, err)
		case errors.Is(err, repository.ErrCreateMembership):
			return nil, fmt.Errorf("%w: %v", ErrJoinOrganization, err)
		default:
			return nil, fmt.Errorf("failed to create company: %w", err)
		}
	}

	s.log.Info("company created",
		zap.String("user_id", user.ID),
		zap.String("org_id", result.Organization.ID),
	)
	s.metrics.OnboardingAction(metrics.ActionCreateCompany, metrics.OutcomeSuccess)
	return result, nil
}

// JoinCompany adds the caller to the organization owning the invite code
// as an agent.
func (s *OrganizationService) JoinCompany(ctx context.Context, user *identity.User, inviteCode string) (*models.Membership, error) {
	if user == nil {
		s.metrics.OnboardingAction(metrics.ActionJoinCompany, metrics.OutcomeRejected)
		return nil, ErrNotAuthenticated
	}

	member, err := s.joinCompany(ctx, user, strings.ToUpper(strings.TrimSpace(inviteCode)))
	if err != nil {
		outcome := metrics.OutcomeRejected
		if !isRejection(err) {
			outcome = metrics.OutcomeError
			s.log.Error("join company failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		s.metrics.OnboardingAction(metrics.ActionJoinCompany, outcome)
		return nil, err
	}

	s.log.Info("company joined",
		zap.String("user_id", user.ID),
		zap.String("org_id", member.OrganizationID),
	)
	s.metrics.OnboardingAction(metrics.ActionJoinCompany, metrics.OutcomeSuccess)
	return member, nil
}

func (s *OrganizationService) joinCompany(ctx context.Context, user *identity.User, code string) (*models.Membership, error) {
	if len(code) != constants.InviteCodeLength {
		return nil, ErrMalformedInviteCode
	}
	if !utils.IsInviteCodeShape(code) {
		return nil, ErrInvalidInviteCode
	}

	joinCode, err := s.orgRepo.FindJoinCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidInviteCode
		}
		return nil, fmt.Errorf("failed to find invite code: %w", err)
	}

	now := s.now()
	if joinCode.Expired(now) {
		return nil, ErrExpiredInviteCode
	}

	org, err := s.orgRepo.FindByID(ctx, joinCode.OrgID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	member, err := s.orgRepo.JoinOrganization(ctx, repository.JoinParams{
		OrganizationID: org.ID,
		UserID:         user.ID,
		FirstName:      user.FirstName(),
		LastName:       user.LastName(),
		Now:            now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyMember):
			return nil, ErrAlreadyMember
		case errors.Is(err, repository.ErrUpdateUser):
			return nil, fmt.Errorf("%w: %v", ErrUpdateUser, err)
		case errors.Is(err, repository.ErrCreateMembership):
			return nil, fmt.Errorf("%w: %v", ErrJoinOrganization, err)
		default:
			return nil, fmt.Errorf("failed to join company: %w", err)
		}
	}
	return member, nil
}

// Dashboard is the onboarding summary of one user.
type Dashboard struct {
	User         *models.User
	Organization *models.Organization
	InviteCode   *models.JoinCode
	Members      []models.Membership
	TotalMembers int64
}

// GetDashboard loads the caller's profile, organization and a page of its
// members. The active invite code is only included for super admins.
func (s *OrganizationService) GetDashboard(ctx context.Context, userID string, page utils.PaginationParams) (*Dashboard, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user.OrgID == nil {
		return nil, ErrNoOrganization
	}

	org, err := s.orgRepo.FindByID(ctx, *user.OrgID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	dashboard := &Dashboard{User: user, Organization: org}

	if user.Role != nil && *user.Role == models.RoleSuperAdmin {
		code, err := s.orgRepo.FindActiveJoinCode(ctx, org.ID, s.now())
		switch {
		case err == nil:
			dashboard.InviteCode = code
		case !repository.IsNotFound(err):
			return nil, fmt.Errorf("failed to find invite code: %w", err)
		}
	}

	members, total, err := s.orgRepo.ListMembers(ctx, org.ID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	dashboard.Members = members
	dashboard.TotalMembers = total

	return dashboard, nil
}

func isRejection(err error) bool {
	for _, target := range []error{
		ErrMalformedInviteCode,
		ErrInvalidInviteCode,
		ErrExpiredInviteCode,
		ErrOrganizationNotFound,
		ErrAlreadyMember,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
