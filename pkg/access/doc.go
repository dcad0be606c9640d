// Package access implements the role/membership/payment-aware authorization
// engine that gates every read and write across communities, courses,
// lessons, posts, and comments.
//
// # Overview
//
// Decisions compose four pieces:
//
//   - a fixed, compiled-in permission matrix (Role -> set of Permission)
//   - effective-role resolution (creator override, active membership, default member)
//   - community access evaluation (visibility + paid gating)
//   - content access evaluation (premium lessons, authorship)
//
// The Validator is the imperative entry point used by write/delete/admin
// operations; every denial it produces is recorded through an audit.Sink.
//
// # Fail closed
//
// The public evaluators never return a Go error. Storage failures degrade to
// a deny result with a descriptive reason; an internal fault can never
// silently grant access.
//
// # Usage Example
//
//	ev := access.NewEvaluator(store, logger)
//	v := access.NewValidator(ev, sink, logger, metrics)
//
//	res := ev.CheckCommunityAccess(ctx, communityID, &userID)
//	if !res.HasAccess {
//		// 403 (or 401 for anonymous callers)
//	}
//
//	d := v.ValidatePermission(ctx, communityID, &userID,
//		access.Permission{Resource: access.ResourceCourse, Action: access.ActionWrite},
//		access.ValidateOptions{})
//	if !d.Allowed {
//		// d.Reason explains why; an ACCESS_DENIED audit entry already exists
//	}
//
// # Related Packages
//
//   - pkg/community: typed lookups the evaluators consume
//   - pkg/audit: durable record of every denial
package access
