package audit

import "time"

// Action tags the kind of event an entry records.
type Action string

const (
	ActionAccessDenied     Action = "ACCESS_DENIED"
	ActionAccessError      Action = "ACCESS_ERROR"
	ActionPermissionChange Action = "PERMISSION_CHANGE"
	ActionModeration       Action = "MODERATION_ACTION"
	ActionPayment          Action = "PAYMENT_EVENT"
	ActionMemberRemoved    Action = "MEMBER_REMOVED"
	ActionRoleChanged      Action = "ROLE_CHANGED"
)

// Entry is one immutable audit record. UserID is nil for anonymous callers.
// Resource is typically a permission string ("course:write") or a
// "type:id" pair ("lesson:42").
type Entry struct {
	ID          int64                  `json:"id"`
	UserID      *int64                 `json:"user_id,omitempty"`
	Action      Action                 `json:"action"`
	Resource    string                 `json:"resource"`
	Reason      string                 `json:"reason,omitempty"`
	CommunityID *int64                 `json:"community_id,omitempty"`
	IPAddress   string                 `json:"ip_address,omitempty"`
	UserAgent   string                 `json:"user_agent,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Filter selects entries for GetAuditLogs. Action and Resource match as
// substrings; results are ordered newest-first.
type Filter struct {
	UserID      *int64
	CommunityID *int64
	Action      string
	Resource    string
	StartTime   *time.Time
	EndTime     *time.Time
	Limit       int
	Offset      int
}

// SecuritySummary aggregates a community's audit activity over a trailing
// window.
type SecuritySummary struct {
	TotalEvents        int64    `json:"total_events"`
	AccessDeniedEvents int64    `json:"access_denied_events"`
	ModerationEvents   int64    `json:"moderation_events"`
	PermissionChanges  int64    `json:"permission_changes"`
	RecentEvents       []*Entry `json:"recent_events"`
}

// ExportFormat selects the serialization for exported entries.
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson"
)

// RetentionPolicy defines how long audit entries are kept.
type RetentionPolicy struct {
	RetentionDays int
}

// DefaultRetentionPolicy returns the default retention horizon (365 days).
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 365}
}
