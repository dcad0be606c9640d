package audit

import (
	"context"
	"fmt"
)

// Sink receives audit events. It is injected into the access core as a
// process-lifetime dependency; implementations must be safe for concurrent
// callers (each call inserts an independent row).
type Sink interface {
	// LogSecurityEvent appends one entry. CreatedAt is set by the sink.
	LogSecurityEvent(ctx context.Context, entry *Entry) error

	// LogPermissionChange records a role change performed on a member.
	LogPermissionChange(ctx context.Context, actorID, targetUserID, communityID int64, oldRole, newRole string) error

	// LogModerationEvent records a moderation action against a resource.
	LogModerationEvent(ctx context.Context, moderatorID, communityID int64, resource, reason string) error

	// LogPaymentEvent records a subscription/payment lifecycle event.
	LogPaymentEvent(ctx context.Context, userID, communityID int64, event string, metadata map[string]interface{}) error
}

// NopSink discards all events. Used in tests and when auditing is disabled.
type NopSink struct{}

func (NopSink) LogSecurityEvent(ctx context.Context, entry *Entry) error { return nil }

func (NopSink) LogPermissionChange(ctx context.Context, actorID, targetUserID, communityID int64, oldRole, newRole string) error {
	return nil
}

func (NopSink) LogModerationEvent(ctx context.Context, moderatorID, communityID int64, resource, reason string) error {
	return nil
}

func (NopSink) LogPaymentEvent(ctx context.Context, userID, communityID int64, event string, metadata map[string]interface{}) error {
	return nil
}

// permissionChangeEntry builds the entry shared by sink implementations for
// role changes.
func permissionChangeEntry(actorID, targetUserID, communityID int64, oldRole, newRole string) *Entry {
	return &Entry{
		UserID:      &actorID,
		Action:      ActionPermissionChange,
		Resource:    fmt.Sprintf("member:%d", targetUserID),
		Reason:      fmt.Sprintf("role changed from %s to %s", oldRole, newRole),
		CommunityID: &communityID,
		Metadata: map[string]interface{}{
			"target_user_id": targetUserID,
			"old_role":       oldRole,
			"new_role":       newRole,
		},
	}
}

func moderationEntry(moderatorID, communityID int64, resource, reason string) *Entry {
	return &Entry{
		UserID:      &moderatorID,
		Action:      ActionModeration,
		Resource:    resource,
		Reason:      reason,
		CommunityID: &communityID,
	}
}

func paymentEntry(userID, communityID int64, event string, metadata map[string]interface{}) *Entry {
	return &Entry{
		UserID:      &userID,
		Action:      ActionPayment,
		Resource:    event,
		CommunityID: &communityID,
		Metadata:    metadata,
	}
}
