package dto

import (
	"time"

	"github.com/yukikurage/tenant-onboarding/internal/models"
	"github.com/yukikurage/tenant-onboarding/internal/utils"
)

// UserDTO represents a user profile in API responses
type UserDTO struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	Role      *models.UserRole `json:"role"`
	Onboarded bool             `json:"onboarded"`
}

// OrganizationDTO represents an organization in API responses
type OrganizationDTO struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Website        *string   `json:"website"`
	OrgAddress     *string   `json:"org_address"`
	Phone          string    `json:"phone"`
	EmergencyPhone string    `json:"emergency_phone,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// InviteCodeDTO represents an active invite code
type InviteCodeDTO struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OrganizationMemberDTO represents a member in an organization
type OrganizationMemberDTO struct {
	User     UserDTO         `json:"user"`
	Role     models.UserRole `json:"role"`
	JoinedAt time.Time       `json:"joined_at"`
}

// DashboardDTO is the signed-in user's onboarding summary
type DashboardDTO struct {
	User         UserDTO                  `json:"user"`
	Organization *OrganizationDTO         `json:"organization"`
	Role         *models.UserRole         `json:"role"`
	InviteCode   *InviteCodeDTO           `json:"invite_code,omitempty"`
	Members      []OrganizationMemberDTO  `json:"members"`
	Pagination   utils.PaginationResponse `json:"pagination"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		Onboarded: user.Onboarded,
	}
}

// ToOrganizationDTO converts an Organization model to OrganizationDTO
func ToOrganizationDTO(org models.Organization) OrganizationDTO {
	return OrganizationDTO{
		ID:             org.ID,
		Name:           org.Name,
		Website:        org.Website,
		OrgAddress:     org.OrgAddress,
		Phone:          org.Phone,
		EmergencyPhone: org.EmergencyPhone(),
		CreatedAt:      org.CreatedAt,
	}
}

// ToInviteCodeDTO converts a JoinCode model to InviteCodeDTO
func ToInviteCodeDTO(code models.JoinCode) InviteCodeDTO {
	return InviteCodeDTO{
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt,
	}
}

// ToOrganizationMemberDTO converts a membership to DTO
func ToOrganizationMemberDTO(member models.Membership) OrganizationMemberDTO {
	return OrganizationMemberDTO{
		User:     ToUserDTO(member.User),
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	}
}

// ToOrganizationMemberDTOs converts a page of memberships to DTOs
func ToOrganizationMemberDTOs(members []models.Membership) []OrganizationMemberDTO {
	out := make([]OrganizationMemberDTO, len(members))
	for i, member := range members {
		out[i] = ToOrganizationMemberDTO(member)
	}
	return out
}
