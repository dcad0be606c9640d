package access

import (
	"context"
	"fmt"
	"time"

	"github.com/campfirehq/campfire/pkg/audit"
	"github.com/campfirehq/campfire/pkg/observability"
)

// Validator turns access evaluations into imperative allow/deny decisions
// and records every denial on the audit trail. Exactly one ACCESS_DENIED
// entry is written per denied call, carrying the same reason the caller
// receives.
type Validator struct {
	evaluator *Evaluator
	sink      audit.Sink
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewValidator creates a permission validator. sink may be audit.NopSink{}
// when auditing is disabled; metrics may be nil.
func NewValidator(evaluator *Evaluator, sink audit.Sink, logger *observability.Logger, metrics *observability.Metrics) *Validator {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Validator{
		evaluator: evaluator,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
	}
}

// ValidatePermission decides whether userID may exercise perm in the
// community. Checks run in order: community access, the active-membership
// requirement for write-class actions, the optional paid gate, then the
// permission matrix. The first failing check denies; passing all of them
// allows without any audit entry.
func (v *Validator) ValidatePermission(ctx context.Context, communityID int64, userID *int64, perm Permission, opts ValidateOptions) *Decision {
	start := time.Now()

	result, err := v.evaluator.communityAccess(ctx, communityID, userID)
	if err != nil {
		v.logger.WithError(err).WithFields(map[string]interface{}{
			"community_id": communityID,
			"user_id":      userID,
			"permission":   perm.String(),
		}).Error("permission validation failed")
		v.auditError(ctx, communityID, userID, perm, err)
		return v.finish(ctx, communityID, userID, perm, start, &Decision{
			Allowed: false,
			Reason:  ReasonCheckFailed,
		}, false)
	}

	if !result.HasAccess {
		reason := result.Reason
		if reason == "" {
			reason = "Access denied to community"
		}
		return v.finish(ctx, communityID, userID, perm, start, &Decision{Allowed: false, Reason: reason}, true)
	}

	if RequiresActiveMembership(perm) && !result.IsCreator && !result.Membership.Active() {
		return v.finish(ctx, communityID, userID, perm, start, &Decision{
			Allowed: false,
			Reason:  "Active membership required for this action",
		}, true)
	}

	if opts.RequirePaidAccess && !result.HasPaidAccess {
		return v.finish(ctx, communityID, userID, perm, start, &Decision{
			Allowed: false,
			Reason:  "Paid subscription required",
		}, true)
	}

	if !HasPermission(result.Role, perm) {
		return v.finish(ctx, communityID, userID, perm, start, &Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("Insufficient permissions. Required: %s", perm.String()),
		}, true)
	}

	return v.finish(ctx, communityID, userID, perm, start, &Decision{Allowed: true}, false)
}

// bulkPermissions maps bulk operations onto the permission each one needs.
var bulkPermissions = map[BulkOperation]Permission{
	BulkPublish:  {ResourceCourse, ActionPublish},
	BulkDelete:   {ResourceCourse, ActionDelete},
	BulkModerate: {ResourcePost, ActionModerate},
}

// ValidateBulkOperation validates one operation against a batch of item ids.
// The decision is uniform: the permission is checked once and applied to the
// whole batch, so AllowedIDs and DeniedIDs never split. Storage traffic does
// not grow with the batch size.
func (v *Validator) ValidateBulkOperation(ctx context.Context, communityID int64, userID *int64, op BulkOperation, itemIDs []int64) *BulkDecision {
	ids := make([]int64, len(itemIDs))
	copy(ids, itemIDs)

	perm, ok := bulkPermissions[op]
	if !ok {
		reason := fmt.Sprintf("Unknown bulk operation: %s", op)
		v.auditDenied(ctx, communityID, userID, fmt.Sprintf("bulk:%s", op), reason)
		return &BulkDecision{
			Allowed:    false,
			AllowedIDs: []int64{},
			DeniedIDs:  ids,
			Reason:     reason,
		}
	}

	decision := v.ValidatePermission(ctx, communityID, userID, perm, ValidateOptions{})
	if !decision.Allowed {
		return &BulkDecision{
			Allowed:    false,
			AllowedIDs: []int64{},
			DeniedIDs:  ids,
			Reason:     decision.Reason,
		}
	}

	return &BulkDecision{
		Allowed:    true,
		AllowedIDs: ids,
		DeniedIDs:  []int64{},
	}
}

// finish records metrics and, when audited is set, the ACCESS_DENIED entry,
// then returns the decision unchanged.
func (v *Validator) finish(ctx context.Context, communityID int64, userID *int64, perm Permission, start time.Time, decision *Decision, audited bool) *Decision {
	if v.metrics != nil {
		v.metrics.RecordAccessCheck(decision.Allowed, time.Since(start))
	}
	if audited && !decision.Allowed {
		v.auditDenied(ctx, communityID, userID, perm.String(), decision.Reason)
	}
	return decision
}

func (v *Validator) auditDenied(ctx context.Context, communityID int64, userID *int64, resource, reason string) {
	entry := &audit.Entry{
		UserID:      userID,
		Action:      audit.ActionAccessDenied,
		Resource:    resource,
		Reason:      reason,
		CommunityID: &communityID,
	}
	if err := v.sink.LogSecurityEvent(ctx, entry); err != nil {
		// A failing audit sink must not turn a deny into an error.
		v.logger.WithError(err).Warn("failed to write access denied audit entry")
	}
	if v.metrics != nil {
		v.metrics.RecordAuditEvent(string(audit.ActionAccessDenied))
	}
}

func (v *Validator) auditError(ctx context.Context, communityID int64, userID *int64, perm Permission, cause error) {
	entry := &audit.Entry{
		UserID:      userID,
		Action:      audit.ActionAccessError,
		Resource:    perm.String(),
		Reason:      cause.Error(),
		CommunityID: &communityID,
	}
	if err := v.sink.LogSecurityEvent(ctx, entry); err != nil {
		v.logger.WithError(err).Warn("failed to write access error audit entry")
	}
	if v.metrics != nil {
		v.metrics.RecordAuditEvent(string(audit.ActionAccessError))
	}
}
