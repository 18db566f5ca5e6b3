package model

// Role is a team member's permission level.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleMember         Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProjectManager, RoleMember:
		return true
	}
	return false
}

// CanManageProjects reports whether the role may create or edit projects.
func (r Role) CanManageProjects() bool {
	return r == RoleAdmin || r == RoleProjectManager
}

// Presence is a team member's online status.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

// Valid reports whether p is a known presence status.
func (p Presence) Valid() bool {
	switch p {
	case PresenceOnline, PresenceAway, PresenceOffline:
		return true
	}
	return false
}

// TeamMember is a person who can be assigned tasks.
type TeamMember struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   Role     `json:"role"`
	Status Presence `json:"status"`
}

// CurrentUser is the signed-in identity returned by the backend.
type CurrentUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
