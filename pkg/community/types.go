package community

import "time"

// Role is the stored membership role within a community. The creator tier is
// derived from Community.CreatorID and never stored on a membership row.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// MembershipStatus represents the lifecycle state of a membership row.
type MembershipStatus string

const (
	MembershipPending   MembershipStatus = "pending"
	MembershipActive    MembershipStatus = "active"
	MembershipSuspended MembershipStatus = "suspended"
)

// Community represents a community row.
type Community struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	CreatorID         int64     `json:"creator_id"`
	IsPublic          bool      `json:"is_public"`
	PriceMonthlyCents *int64    `json:"price_monthly_cents,omitempty"`
	PriceYearlyCents  *int64    `json:"price_yearly_cents,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Priced reports whether the community charges for premium content.
func (c *Community) Priced() bool {
	return c.PriceMonthlyCents != nil || c.PriceYearlyCents != nil
}

// Membership links a user to a community with a role and lifecycle status.
// (user_id, community_id) is unique.
type Membership struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"user_id"`
	CommunityID int64            `json:"community_id"`
	Role        Role             `json:"role"`
	Status      MembershipStatus `json:"status"`
	JoinedAt    time.Time        `json:"joined_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Active reports whether the membership confers role-based permissions.
// Pending and suspended rows behave as if no membership exists.
func (m *Membership) Active() bool {
	return m != nil && m.Status == MembershipActive
}

// SubscriptionStatus represents the status of a paid subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
)

// Subscription represents a paid subscription row for (user, community).
type Subscription struct {
	ID               int64              `json:"id"`
	UserID           int64              `json:"user_id"`
	CommunityID      int64              `json:"community_id"`
	Status           SubscriptionStatus `json:"status"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Paid reports whether the subscription currently grants paid access.
func (s *Subscription) Paid() bool {
	if s == nil {
		return false
	}
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// ContentType identifies the kind of content item being checked.
type ContentType string

const (
	ContentLesson  ContentType = "lesson"
	ContentPost    ContentType = "post"
	ContentComment ContentType = "comment"
)

// ContentRef is a flat projection of a content item and its owning community,
// produced by the multi-hop joins (lesson->course->community,
// comment->post->community) so callers never traverse relations themselves.
type ContentRef struct {
	Type        ContentType `json:"type"`
	ID          int64       `json:"id"`
	CommunityID int64       `json:"community_id"`
	AuthorID    *int64      `json:"author_id,omitempty"` // nil for lessons
	IsFree      bool        `json:"is_free"`             // always true for posts/comments
}
