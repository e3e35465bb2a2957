package domain

// Role is the three-tier project permission model.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	// RoleContributor may view boards and participate in chat but cannot
	// reorder tasks or manage membership. The wire spelling matches the
	// persisted schema.
	RoleContributor Role = "CONTRIBUTER"
)

// Member ties a user to a project with a role.
type Member struct {
	ID        string `json:"id"`
	UserID    string `json:"userId,omitempty"`
	Name      string `json:"name,omitempty"`
	ImgURL    string `json:"imgUrl,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	Role      Role   `json:"role"`
}

// Capabilities is the capability set computed once per board or room context,
// replacing per-call-site role comparisons.
type Capabilities struct {
	CanReorder       bool
	CanModerateChat  bool
	CanManageMembers bool
}

// Capabilities resolves the capability set for the role. Unknown roles get
// no capabilities.
func (r Role) Capabilities() Capabilities {
	switch r {
	case RoleAdmin, RoleModerator:
		return Capabilities{CanReorder: true, CanModerateChat: true, CanManageMembers: true}
	case RoleContributor:
		return Capabilities{}
	default:
		return Capabilities{}
	}
}
