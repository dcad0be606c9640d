package access

import (
	"github.com/campfirehq/campfire/pkg/community"
)

// Role is a user's privilege tier within one community, totally ordered by
// increasing privilege: member < moderator < admin < creator. The creator
// tier is derived (community.creator_id == user_id), never stored.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleCreator   Role = "creator"
)

var roleRank = map[Role]int{
	RoleMember:    0,
	RoleModerator: 1,
	RoleAdmin:     2,
	RoleCreator:   3,
}

// Rank returns the role's position in the privilege order. Unknown roles
// rank below member.
func (r Role) Rank() int {
	if rank, ok := roleRank[r]; ok {
		return rank
	}
	return -1
}

// AtLeast reports whether r holds at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank()
}

// Roles lists all roles in increasing privilege order.
func Roles() []Role {
	return []Role{RoleMember, RoleModerator, RoleAdmin, RoleCreator}
}

// Resource represents a resource type guarded by the permission matrix.
type Resource string

const (
	ResourceCommunity Resource = "community"
	ResourceMember    Resource = "member"
	ResourceCourse    Resource = "course"
	ResourceLesson    Resource = "lesson"
	ResourcePost      Resource = "post"
	ResourceComment   Resource = "comment"
	ResourcePoints    Resource = "points"
	ResourcePayment   Resource = "payment"
)

// Action represents an action that can be performed on a resource.
type Action string

const (
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionAdmin    Action = "admin"
	ActionDelete   Action = "delete"
	ActionRemove   Action = "remove"
	ActionPublish  Action = "publish"
	ActionModerate Action = "moderate"
)

// Permission represents a specific capability (resource + action).
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns the canonical "resource:action" form.
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// ParsePermission parses a "resource:action" string. It does not validate
// against the closed sets; HasPermission treats unrecognized permissions
// as not granted.
func ParsePermission(s string) Permission {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return Permission{Resource: Resource(s[:i]), Action: Action(s[i+1:])}
		}
	}
	return Permission{Resource: Resource(s)}
}

// AccessCheckResult is the outcome of a community access evaluation.
// It is computed fresh per call and never persisted.
type AccessCheckResult struct {
	HasAccess     bool                  `json:"has_access"`
	HasPaidAccess bool                  `json:"has_paid_access"`
	Role          Role                  `json:"role"`
	IsCreator     bool                  `json:"is_creator"`
	Membership    *community.Membership `json:"membership,omitempty"`
	Reason        string                `json:"reason,omitempty"`
}

// ContentAccessResult extends AccessCheckResult for a specific content item.
type ContentAccessResult struct {
	AccessCheckResult
	CanView     bool `json:"can_view"`
	CanEdit     bool `json:"can_edit"`
	CanDelete   bool `json:"can_delete"`
	CanModerate bool `json:"can_moderate"`
}

// UserPermissions summarizes what a user can do in one community.
type UserPermissions struct {
	Role          Role         `json:"role"`
	Permissions   []Permission `json:"permissions"`
	HasAccess     bool         `json:"has_access"`
	HasPaidAccess bool         `json:"has_paid_access"`
}

// Decision is the result of an imperative permission validation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// ValidateOptions tunes a single ValidatePermission call.
type ValidateOptions struct {
	// RequirePaidAccess additionally gates the action behind paid access to
	// the community (active or trialing subscription, or creator).
	RequirePaidAccess bool
}

// BulkOperation is a batch operation validated as a whole.
type BulkOperation string

const (
	BulkPublish  BulkOperation = "publish"
	BulkDelete   BulkOperation = "delete"
	BulkModerate BulkOperation = "moderate"
)

// BulkDecision is the uniform result of a bulk validation: the whole batch
// is either allowed or denied, never split.
type BulkDecision struct {
	Allowed    bool    `json:"allowed"`
	AllowedIDs []int64 `json:"allowed_ids"`
	DeniedIDs  []int64 `json:"denied_ids"`
	Reason     string  `json:"reason,omitempty"`
}
