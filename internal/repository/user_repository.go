package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yukikurage/tenant-onboarding/internal/models"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// EnsureProfile inserts the profile row and ignores an existing one with the same ID
func (r *GormUserRepository) EnsureProfile(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(user).Error
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// IsOnboarded reads the onboarded flag of a user
func (r *GormUserRepository) IsOnboarded(ctx context.Context, id string) (bool, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("onboarded").Where("id = ?", id).Take(&user).Error; err != nil {
		return false, err
	}
	return user.Onboarded, nil
}
