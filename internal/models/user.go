package models

import "strings"

// UserRole represents the roles issued by the auth service.
type UserRole string

const (
	RoleAdmin     UserRole = "Admin"
	RoleEquipment UserRole = "Equipment"
	RoleCCR       UserRole = "CCR"
	RoleAMC       UserRole = "AMC"
	RoleRTU       UserRole = "RTU/Communication"
	RoleOM        UserRole = "O&M"
)

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID   string
	Role     UserRole
	Division string
	Vendor   string
	FullName string
}

// IsAdmin reports admin override rights.
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// HasRole reports whether the actor holds one of roles.
func (a Actor) HasRole(roles ...UserRole) bool {
	for _, r := range roles {
		if strings.EqualFold(string(a.Role), string(r)) {
			return true
		}
	}
	return false
}

// ParseRole resolves a role name case-insensitively.
func ParseRole(raw string) (UserRole, bool) {
	raw = strings.TrimSpace(raw)
	for _, role := range []UserRole{RoleAdmin, RoleEquipment, RoleCCR, RoleAMC, RoleRTU, RoleOM} {
		if strings.EqualFold(raw, string(role)) {
			return role, true
		}
	}
	return "", false
}

// DirectoryUser is the read-only view of a user used to resolve assignees.
type DirectoryUser struct {
	ID       string   `db:"id" json:"id"`
	FullName string   `db:"full_name" json:"full_name"`
	Role     UserRole `db:"role" json:"role"`
	Division string   `db:"division" json:"division"`
	Vendor   string   `db:"vendor" json:"vendor"`
	Active   bool     `db:"active" json:"active"`
}

// teamRoles maps routing targets to the role that works them.
var teamRoles = map[string]UserRole{
	"equipment team":         RoleEquipment,
	"ccr team":               RoleCCR,
	"amc team":               RoleAMC,
	"rtu/communication team": RoleRTU,
	"o&m team":               RoleOM,
}

// RoleForTeam resolves the role behind a routing target such as
// "Equipment Team". A bare role name is accepted as well.
func RoleForTeam(team string) (UserRole, bool) {
	key := strings.ToLower(strings.TrimSpace(team))
	if role, ok := teamRoles[key]; ok {
		return role, true
	}
	for _, role := range []UserRole{RoleEquipment, RoleCCR, RoleAMC, RoleRTU, RoleOM} {
		if strings.EqualFold(key, string(role)) {
			return role, true
		}
	}
	return "", false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NormalizePage applies list defaults.
func NormalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return page, size
}
