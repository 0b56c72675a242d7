package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JoinCode is an invite code granting membership in one organization until it expires.
type JoinCode struct {
	ID        string    `gorm:"type:varchar(36);primarykey" json:"id"`
	OrgID     string    `gorm:"type:varchar(36);not null;index" json:"org_id"`
	Code      string    `gorm:"type:varchar(8);not null;uniqueIndex:ux_org_join_codes_code" json:"code"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedBy string    `gorm:"type:varchar(36);not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrgID" json:"-"`
}

func (JoinCode) TableName() string { return "org_join_codes" }

func (j *JoinCode) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// Expired reports whether the code is no longer usable at the given instant.
func (j JoinCode) Expired(now time.Time) bool {
	return j.ExpiresAt.Before(now)
}
