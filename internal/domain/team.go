package domain

import "errors"

// Team groups users that share release responsibilities.
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	UserIDs []string `json:"userIds"`
}

// Kind implements Entity.
func (Team) Kind() Kind { return KindTeam }

// Validate implements Entity.
func (t Team) Validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Role tags a user's responsibility within a team.
type Role string

const (
	RoleReleaseManager Role = "RELEASE_MANAGER"
	RoleStakeHolder    Role = "STAKE_HOLDER"
	RoleAuditor        Role = "AUDITOR"
	RoleLeadDeveloper  Role = "LEAD_DEVELOPER"
	RoleDeveloper      Role = "DEVELOPER"
	RoleLeadQA         Role = "LEAD_QA"
	RoleQA             Role = "QA"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleReleaseManager, RoleStakeHolder, RoleAuditor, RoleLeadDeveloper, RoleDeveloper, RoleLeadQA, RoleQA:
		return true
	}
	return false
}

// Permission grants a role to a user inside a team.
type Permission struct {
	ID     string `json:"id"`
	TeamID string `json:"teamId"`
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// Kind implements Entity.
func (Permission) Kind() Kind { return KindPermission }

// Validate implements Entity.
func (p Permission) Validate() error {
	if p.TeamID == "" || p.UserID == "" {
		return errors.New("teamId and userId are required")
	}
	if !p.Role.Valid() {
		return errors.New("role is invalid")
	}
	return nil
}
