package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleSuperAdmin UserRole = "super_admin"
	RoleAgent      UserRole = "agent"
)

// User is the application profile row. It is created when the identity is
// registered and completed once by the onboarding flow.
type User struct {
	ID        string    `gorm:"type:varchar(36);primarykey" json:"id"`
	Email     string    `gorm:"type:varchar(255);index" json:"email"`
	FirstName string    `gorm:"type:varchar(255)" json:"first_name"`
	LastName  string    `gorm:"type:varchar(255)" json:"last_name"`
	OrgID     *string   `gorm:"type:varchar(36);index" json:"org_id"`
	Role      *UserRole `gorm:"type:varchar(20)" json:"role"`
	Onboarded bool      `gorm:"not null;default:false" json:"onboarded"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrgID" json:"organization,omitempty"`
	Memberships  []Membership  `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
