package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yukikurage/tenant-onboarding/internal/database"
	"github.com/yukikurage/tenant-onboarding/internal/models"
	"github.com/yukikurage/tenant-onboarding/internal/utils"
)

// GormOrganizationRepository is a GORM implementation of OrganizationRepository
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// ProvisionOrganization runs the create-company writes in one transaction:
// organization, creator promotion, invite code, creator membership.
func (r *GormOrganizationRepository) ProvisionOrganization(ctx context.Context, p ProvisionParams) (*ProvisionResult, error) {
	org := p.Organization
	if org.CreatedAt.IsZero() {
		org.CreatedAt = p.Now
	}

	result := &ProvisionResult{Organization: org}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrCreateOrganization, err)
		}

		if err := updateOnboardedUser(tx, p.UserID, org.ID, p.FirstName, p.LastName, models.RoleSuperAdmin); err != nil {
			return err
		}

		code, err := insertJoinCode(tx, p, org.ID)
		if err != nil {
			return err
		}
		result.JoinCode = code

		member := &models.Membership{
			UserID:         p.UserID,
			OrganizationID: org.ID,
			Role:           models.RoleSuperAdmin,
			JoinedAt:       p.Now,
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrCreateMembership, err)
		}
		result.Membership = member

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// insertJoinCode stores a fresh invite code, regenerating it when the value
// collides with an existing one. Each attempt runs in its own savepoint so a
// duplicate-key failure leaves the outer transaction usable.
func insertJoinCode(tx *gorm.DB, p ProvisionParams, orgID string) (*models.JoinCode, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		value, err := p.GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCreateJoinCode, err)
		}

		code := &models.JoinCode{
			OrgID:     orgID,
			Code:      value,
			ExpiresAt: p.Now.Add(p.CodeTTL),
			CreatedBy: p.UserID,
			CreatedAt: p.Now,
		}
		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(code).Error
		})
		if err == nil {
			return code, nil
		}
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("%w: %v", ErrCreateJoinCode, err)
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrCreateJoinCode, ErrJoinCodeAttemptsExhausted)
}

// JoinOrganization inserts the membership first so that an existing
// membership aborts the join before the user row is touched.
func (r *GormOrganizationRepository) JoinOrganization(ctx context.Context, p JoinParams) (*models.Membership, error) {
	member := &models.Membership{
		UserID:         p.UserID,
		OrganizationID: p.OrganizationID,
		Role:           models.RoleAgent,
		JoinedAt:       p.Now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(member).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("%w: %v", ErrCreateMembership, err)
		}

		return updateOnboardedUser(tx, p.UserID, p.OrganizationID, p.FirstName, p.LastName, models.RoleAgent)
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func updateOnboardedUser(tx *gorm.DB, userID, orgID, firstName, lastName string, role models.UserRole) error {
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"org_id":     orgID,
			"first_name": firstName,
			"last_name":  lastName,
			"role":       string(role),
			"onboarded":  true,
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrUpdateUser, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %w", ErrUpdateUser, ErrUserNotFound)
	}
	return nil
}

// FindByID finds an organization by ID
func (r *GormOrganizationRepository) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// FindJoinCode finds an invite code by its exact value
func (r *GormOrganizationRepository) FindJoinCode(ctx context.Context, code string) (*models.JoinCode, error) {
	var joinCode models.JoinCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).Take(&joinCode).Error; err != nil {
		return nil, err
	}
	return &joinCode, nil
}

// FindActiveJoinCode finds the unexpired invite code with the furthest expiry
func (r *GormOrganizationRepository) FindActiveJoinCode(ctx context.Context, orgID string, now time.Time) (*models.JoinCode, error) {
	var joinCode models.JoinCode
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND expires_at > ?", orgID, now).
		Order("expires_at DESC").
		Take(&joinCode).Error; err != nil {
		return nil, err
	}
	return &joinCode, nil
}

// ListMembers lists the members of an organization with their profiles
func (r *GormOrganizationRepository) ListMembers(ctx context.Context, orgID string, page utils.PaginationParams) ([]models.Membership, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("organization_id = ?", orgID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var members []models.Membership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("organization_id = ?", orgID).
		Order("joined_at ASC").
		Scopes(database.Paginate(page)).
		Find(&members).Error; err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// IsNotFound reports whether err means the queried row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
