package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Membership links a user to an organization. A user holds at most one
// membership per organization; the composite unique index enforces it.
type Membership struct {
	ID             string    `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID         string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_user_organizations_user_org,priority:1" json:"user_id"`
	OrganizationID string    `gorm:"type:varchar(36);not null;index;uniqueIndex:ux_user_organizations_user_org,priority:2" json:"organization_id"`
	Role           UserRole  `gorm:"type:varchar(20);not null" json:"role"`
	JoinedAt       time.Time `json:"joined_at"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	User         User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Membership) TableName() string { return "user_organizations" }

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
