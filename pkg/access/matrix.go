package access

import (
	"sort"

	"github.com/campfirehq/campfire/pkg/community"
)

// Per-role grants. Each tier is cumulative: a role holds its own grants plus
// everything the tiers below it hold, so the matrix is monotonic in the role
// order by construction. community:delete and payment:admin belong to the
// creator alone.
var (
	memberGrants = []Permission{
		{ResourceCommunity, ActionRead},
		{ResourceMember, ActionRead},
		{ResourceCourse, ActionRead},
		{ResourceLesson, ActionRead},
		{ResourcePost, ActionRead},
		{ResourcePost, ActionWrite},
		{ResourceComment, ActionRead},
		{ResourceComment, ActionWrite},
		{ResourcePoints, ActionRead},
		{ResourcePayment, ActionRead},
	}

	moderatorGrants = []Permission{
		{ResourcePost, ActionModerate},
		{ResourcePost, ActionDelete},
		{ResourceComment, ActionModerate},
		{ResourceComment, ActionDelete},
	}

	adminGrants = []Permission{
		{ResourceCommunity, ActionWrite},
		{ResourceCommunity, ActionAdmin},
		{ResourceMember, ActionWrite},
		{ResourceMember, ActionRemove},
		{ResourceCourse, ActionWrite},
		{ResourceCourse, ActionPublish},
		{ResourceCourse, ActionDelete},
		{ResourceLesson, ActionWrite},
		{ResourceLesson, ActionDelete},
		{ResourcePoints, ActionAdmin},
	}

	creatorGrants = []Permission{
		{ResourceCommunity, ActionDelete},
		{ResourcePayment, ActionAdmin},
	}
)

var matrix = buildMatrix()

func buildMatrix() map[Role]map[Permission]struct{} {
	m := make(map[Role]map[Permission]struct{}, len(roleRank))

	cumulative := make(map[Permission]struct{})
	grant := func(role Role, perms []Permission) {
		for _, p := range perms {
			cumulative[p] = struct{}{}
		}
		set := make(map[Permission]struct{}, len(cumulative))
		for p := range cumulative {
			set[p] = struct{}{}
		}
		m[role] = set
	}

	grant(RoleMember, memberGrants)
	grant(RoleModerator, moderatorGrants)
	grant(RoleAdmin, adminGrants)
	grant(RoleCreator, creatorGrants)

	return m
}

// HasPermission reports whether the role grants the permission. Roles and
// permissions outside the compiled-in matrix are never granted.
func HasPermission(role Role, p Permission) bool {
	set, ok := matrix[role]
	if !ok {
		return false
	}
	_, ok = set[p]
	return ok
}

// PermissionsFor returns the role's full permission set, sorted by the
// canonical "resource:action" form.
func PermissionsFor(role Role) []Permission {
	set, ok := matrix[role]
	if !ok {
		return nil
	}

	perms := make([]Permission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool {
		return perms[i].String() < perms[j].String()
	})

	return perms
}

// EffectiveRole computes the role actually used for a decision. The creator
// flag overrides everything, including a stored membership role. Without an
// active membership the caller falls back to member, the lowest tier, so
// public-read checks on public communities still resolve baseline
// permissions for anonymous and non-member callers.
func EffectiveRole(m *community.Membership, isCreator bool) Role {
	if isCreator {
		return RoleCreator
	}
	if m.Active() {
		return roleFromMembership(m.Role)
	}
	return RoleMember
}

func roleFromMembership(r community.Role) Role {
	switch r {
	case community.RoleAdmin:
		return RoleAdmin
	case community.RoleModerator:
		return RoleModerator
	default:
		return RoleMember
	}
}

// Write-class actions require a real active membership row (or creator
// status) regardless of the resolved role. Keep this list in sync when a
// new mutating action is added to the matrix: the member fallback in
// EffectiveRole would otherwise hand the new permission to non-members.
var escalatedActions = map[Action]struct{}{
	ActionWrite:    {},
	ActionAdmin:    {},
	ActionModerate: {},
	ActionDelete:   {},
	ActionPublish:  {},
}

// RequiresActiveMembership reports whether the permission is write-class.
func RequiresActiveMembership(p Permission) bool {
	_, ok := escalatedActions[p.Action]
	return ok
}
