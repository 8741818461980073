package auth

import (
	"time"

	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/settings"
	"github.com/cserv-ai/cserv/internal/users"
)

// SessionRecord is the audit row kept for every login.
type SessionRecord struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
	IP        string
	UserAgent string
}

// Profile is what the client receives after login and from /me.
type Profile struct {
	User         users.View            `json:"user"`
	Permissions  []string              `json:"permissions"`
	Catalog      []rbac.CatalogEntry   `json:"catalog"`
	Settings     settings.Settings     `json:"settings"`
	ModuleAccess settings.ModuleAccess `json:"moduleAccess"`
	CSRFToken    string                `json:"csrfToken"`
}
