// Package audit provides the durable, append-only record of access
// decisions: denials, permission changes, moderation actions, and payment
// events.
//
// # Overview
//
// Entries are write-once rows in PostgreSQL. The Sink interface is injected
// into the access core (no global logger); sink failures never propagate
// into the caller's access decision; audit logging is best-effort, not
// transactional with the decision.
//
// # Usage Example
//
//	sink, err := audit.NewDBSink(db)
//	...
//	sink.LogSecurityEvent(ctx, &audit.Entry{
//		UserID:      &userID,
//		Action:      audit.ActionAccessDenied,
//		Resource:    "course:write",
//		Reason:      "Insufficient permissions. Required: course:write",
//		CommunityID: &communityID,
//	})
//
// Query the trail:
//
//	logs, total, err := sink.GetAuditLogs(ctx, audit.Filter{
//		CommunityID: &communityID,
//		Action:      "ACCESS_DENIED",
//		Limit:       50,
//	})
//
// # Retention
//
// CleanupOldLogs deletes entries older than the retention horizon (default
// 365 days) and never touches newer entries. cmd/campfire-janitor runs it
// on a cron schedule.
package audit
