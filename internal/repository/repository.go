package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yukikurage/tenant-onboarding/internal/models"
	"github.com/yukikurage/tenant-onboarding/internal/utils"
)

var (
	// ErrCreateOrganization is returned when inserting the organization fails during provisioning.
	ErrCreateOrganization = errors.New("organization repository: create organization failed")
	// ErrUpdateUser is returned when the caller's user row could not be updated.
	ErrUpdateUser = errors.New("organization repository: update user failed")
	// ErrCreateJoinCode is returned when no invite code could be stored for the organization.
	ErrCreateJoinCode = errors.New("organization repository: create join code failed")
	// ErrCreateMembership is returned when the membership row could not be inserted.
	ErrCreateMembership = errors.New("organization repository: create membership failed")
	// ErrAlreadyMember is returned when the (user, organization) membership already exists.
	ErrAlreadyMember = errors.New("organization repository: membership already exists")
	// ErrUserNotFound is returned when an update matched no user row.
	ErrUserNotFound = errors.New("user repository: user not found")
	// ErrJoinCodeAttemptsExhausted is returned when every generated code collided with an existing one.
	ErrJoinCodeAttemptsExhausted = errors.New("organization repository: join code attempts exhausted")
)

// UserRepository defines the interface for user profile data access
type UserRepository interface {
	// EnsureProfile creates the profile row when it does not exist yet
	EnsureProfile(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id string) (*models.User, error)

	// IsOnboarded reads only the onboarded flag of a user
	IsOnboarded(ctx context.Context, id string) (bool, error)
}

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	// ProvisionOrganization creates an organization, promotes its creator,
	// issues an invite code and records the creator's membership atomically.
	ProvisionOrganization(ctx context.Context, params ProvisionParams) (*ProvisionResult, error)

	// JoinOrganization records a membership and updates the joining user atomically.
	JoinOrganization(ctx context.Context, params JoinParams) (*models.Membership, error)

	// FindByID finds an organization by ID
	FindByID(ctx context.Context, id string) (*models.Organization, error)

	// FindJoinCode finds an invite code by its exact value
	FindJoinCode(ctx context.Context, code string) (*models.JoinCode, error)

	// FindActiveJoinCode finds the latest unexpired invite code of an organization
	FindActiveJoinCode(ctx context.Context, orgID string, now time.Time) (*models.JoinCode, error)

	// ListMembers lists the members of an organization, oldest first
	ListMembers(ctx context.Context, orgID string, page utils.PaginationParams) ([]models.Membership, int64, error)
}

// ProvisionParams holds everything the create-company sequence writes.
type ProvisionParams struct {
	Organization *models.Organization
	UserID       string
	FirstName    string
	LastName     string
	Now          time.Time
	CodeTTL      time.Duration
	MaxAttempts  int
	GenerateCode func() (string, error)
}

// ProvisionResult holds the rows committed by ProvisionOrganization.
type ProvisionResult struct {
	Organization *models.Organization
	JoinCode     *models.JoinCode
	Membership   *models.Membership
}

// JoinParams holds everything the join-company sequence writes.
type JoinParams struct {
	OrganizationID string
	UserID         string
	FirstName      string
	LastName       string
	Now            time.Time
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
