package users

import (
	"time"

	"github.com/cserv-ai/cserv/internal/rbac"
)

// User represents a principal account with its credentials.
type User struct {
	ID           int64
	Username     string
	Name         string
	Email        string
	Role         rbac.Role
	Permissions  rbac.PermissionSet
	PasswordHash string
	Active       bool
	// Protected marks the seeded default administrator, which cannot be
	// deactivated.
	Protected bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Principal projects the account onto the authorization model.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: u.Permissions,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
	}
}

// View is the JSON representation returned to administrators.
type View struct {
	ID          int64              `json:"id"`
	Username    string             `json:"username"`
	Name        string             `json:"name"`
	Email       string             `json:"email,omitempty"`
	Role        rbac.Role          `json:"role"`
	Permissions rbac.PermissionSet `json:"permissions"`
	Active      bool               `json:"active"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// ToView strips credentials.
func (u User) ToView() View {
	return View{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: u.Permissions,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
	}
}

// CreateInput describes an administrator-created account.
type CreateInput struct {
	Username    string
	Password    string
	Name        string
	Email       string
	Role        rbac.Role
	Permissions *rbac.PermissionSet
}

// UpdateInput carries optional changes; nil fields are left untouched.
type UpdateInput struct {
	Name        *string
	Email       *string
	Password    *string
	Role        *rbac.Role
	Permissions *rbac.PermissionSet
	Active      *bool
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Username string
	Password string
	Name     string
	Email    string
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6
