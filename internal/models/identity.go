package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuthIdentity is a credential record owned by the local identity provider.
// Hosted deployments keep these in the provider and never create this table.
type AuthIdentity struct {
	ID                    string            `gorm:"type:varchar(36);primarykey" json:"id"`
	Email                 string            `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash          string            `gorm:"type:varchar(255)" json:"-"`
	Provider              string            `gorm:"type:varchar(32);not null;default:'email'" json:"provider"`
	ProviderSubject       *string           `gorm:"type:varchar(255);index" json:"-"`
	UserMetadata          datatypes.JSONMap `json:"user_metadata"`
	ConfirmationToken     *string           `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	ConfirmationExpiresAt *time.Time        `json:"-"`
	ConfirmedAt           *time.Time        `json:"confirmed_at"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

func (AuthIdentity) TableName() string { return "auth_identities" }

func (i *AuthIdentity) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// AuthSession is an opaque access/refresh token pair issued by the local
// identity provider. The access token expires at ExpiresAt, the refresh token
// at RefreshExpiresAt.
type AuthSession struct {
	ID               string    `gorm:"type:varchar(36);primarykey" json:"id"`
	IdentityID       string    `gorm:"type:varchar(36);not null;index" json:"identity_id"`
	AccessToken      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	RefreshToken     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	ExpiresAt        time.Time `gorm:"not null" json:"expires_at"`
	RefreshExpiresAt time.Time `gorm:"index" json:"refresh_expires_at"`
	CreatedAt        time.Time `json:"created_at"`

	// Relations
	Identity AuthIdentity `gorm:"foreignKey:IdentityID" json:"-"`
}

func (AuthSession) TableName() string { return "auth_sessions" }

func (s *AuthSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
