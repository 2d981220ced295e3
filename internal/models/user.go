package models

import (
	"time"

	"github.com/google/uuid"
)

// GlobalRole represents a user's platform-wide role.
type GlobalRole string

const (
	GlobalRoleUser       GlobalRole = "user"
	GlobalRoleSuperadmin GlobalRole = "superadmin"
)

// User represents a platform user. ActiveOrganizationID caches the last
// selected organization; it may be stale and is repaired by the workspace resolver.
type User struct {
	ID                   uuid.UUID  `json:"id"`
	Email                string     `json:"email"`
	Password             string     `json:"-"`
	FullName             string     `json:"full_name"`
	Role                 GlobalRole `json:"role"`
	ActiveOrganizationID *uuid.UUID `json:"active_organization_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsSuperadmin reports whether the user holds the global superadmin role.
func (u *User) IsSuperadmin() bool {
	return u.Role == GlobalRoleSuperadmin
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID                   uuid.UUID  `json:"id"`
	Email                string     `json:"email"`
	FullName             string     `json:"full_name"`
	Role                 GlobalRole `json:"role"`
	ActiveOrganizationID *uuid.UUID `json:"active_organization_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:                   u.ID,
		Email:                u.Email,
		FullName:             u.FullName,
		Role:                 u.Role,
		ActiveOrganizationID: u.ActiveOrganizationID,
		CreatedAt:            u.CreatedAt,
	}
}
