// Package authz decides whether an actor may perform an action on a
// target entity. All functions are pure: they operate on role data the
// caller has already loaded and perform no I/O.
package authz

import (
	"errors"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

// Decision errors returned by the membership checks. Handlers map these
// onto the HTTP error taxonomy.
var (
	// ErrForbidden means the actor's resolved role does not permit the action.
	ErrForbidden = errors.New("access denied")

	// ErrAlreadyMember means the target user already holds a role in the project.
	ErrAlreadyMember = errors.New("user is already a member of the project")

	// ErrOwnerProtected means the action would remove or re-role the
	// project owner, which no actor may do.
	ErrOwnerProtected = errors.New("project owner cannot be modified through membership")
)

// ResolveRole returns the actor's effective role within the project.
// The owner always resolves to owner regardless of the member map; other
// users resolve to their recorded membership role. ok is false when the
// user has no role at all.
func ResolveRole(p *models.Project, userID string) (models.ProjectRole, bool) {
	if userID == "" {
		return "", false
	}
	if userID == p.OwnerID {
		return models.ProjectRoleOwner, true
	}
	role, ok := p.Members[userID]
	return role, ok
}

// CanViewProject reports whether the actor may read the project.
// Private projects require a resolved role; public projects are readable
// by any authenticated actor. System admins see everything.
func CanViewProject(p *models.Project, userID string, systemRole models.Role) bool {
	if systemRole == models.RoleAdmin {
		return true
	}
	if _, ok := ResolveRole(p, userID); ok {
		return true
	}
	return p.IsPublic() && userID != ""
}

// CanUpdateProject reports whether the actor may mutate project fields.
func CanUpdateProject(p *models.Project, userID string) bool {
	role, ok := ResolveRole(p, userID)
	return ok && (role == models.ProjectRoleOwner || role == models.ProjectRoleAdmin)
}

// CanDeleteProject reports whether the actor may hard-delete the project.
// Only the owner qualifies.
func CanDeleteProject(p *models.Project, userID string) bool {
	role, ok := ResolveRole(p, userID)
	return ok && role == models.ProjectRoleOwner
}

// CanManageMembers reports whether the actor may add members or is
// generally allowed to remove them.
func CanManageMembers(p *models.Project, userID string) bool {
	return CanUpdateProject(p, userID)
}

// CheckAddMember validates adding targetID to the project's member set.
func CheckAddMember(p *models.Project, actorID, targetID string) error {
	if !CanManageMembers(p, actorID) {
		return ErrForbidden
	}
	if targetID == p.OwnerID {
		return ErrAlreadyMember
	}
	if _, ok := p.Members[targetID]; ok {
		return ErrAlreadyMember
	}
	return nil
}

// CheckRemoveMember validates removing targetID from the member set.
// Owners and project admins may remove anyone but the owner; any member
// may remove themselves.
func CheckRemoveMember(p *models.Project, actorID, targetID string) error {
	if targetID == p.OwnerID {
		return ErrOwnerProtected
	}
	if actorID == targetID {
		return nil
	}
	if !CanManageMembers(p, actorID) {
		return ErrForbidden
	}
	return nil
}

// CheckChangeMemberRole validates re-roling targetID. Only the owner may
// change member roles, and the owner's own role is immutable.
func CheckChangeMemberRole(p *models.Project, actorID, targetID string) error {
	if targetID == p.OwnerID {
		return ErrOwnerProtected
	}
	role, ok := ResolveRole(p, actorID)
	if !ok || role != models.ProjectRoleOwner {
		return ErrForbidden
	}
	return nil
}

// CanMutateTask reports whether the actor may create or modify tasks in
// the project: any resolved role qualifies.
func CanMutateTask(p *models.Project, userID string) bool {
	_, ok := ResolveRole(p, userID)
	return ok
}

// CanReadTask reports whether the actor may read tasks in the project:
// same rule as project visibility.
func CanReadTask(p *models.Project, userID string, systemRole models.Role) bool {
	return CanViewProject(p, userID, systemRole)
}

// CanCreateContent gates global creation actions (projects, tasks) on the
// system role hierarchy: at least member.
func CanCreateContent(systemRole models.Role) bool {
	return systemRole.AtLeast(models.RoleMember)
}
