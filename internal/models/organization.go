package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MetaEmergencyPhone is the key under which the emergency contact number is kept in Organization.Meta.
const MetaEmergencyPhone = "emergency_phone"

type Organization struct {
	ID         string            `gorm:"type:varchar(36);primarykey" json:"id"`
	Name       string            `gorm:"type:varchar(255);not null" json:"name"`
	Website    *string           `gorm:"type:varchar(255)" json:"website"`
	OrgAddress *string           `gorm:"type:text" json:"org_address"`
	Phone      string            `gorm:"type:varchar(50);not null" json:"phone"`
	Meta       datatypes.JSONMap `json:"meta"`
	CreatedAt  time.Time         `json:"created_at"`

	// Relations
	Members   []Membership `gorm:"foreignKey:OrganizationID" json:"members,omitempty"`
	JoinCodes []JoinCode   `gorm:"foreignKey:OrgID" json:"-"`
}

func (Organization) TableName() string { return "orgs" }

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// EmergencyPhone returns the emergency phone stored in the organization metadata, if any.
func (o Organization) EmergencyPhone() string {
	if o.Meta == nil {
		return ""
	}
	v, _ := o.Meta[MetaEmergencyPhone].(string)
	return v
}
