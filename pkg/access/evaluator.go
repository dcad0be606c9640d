package access

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/campfirehq/campfire/pkg/community"
	"github.com/campfirehq/campfire/pkg/observability"
)

// Reason strings surfaced to callers on denial. Handlers and clients key off
// these values, so they are part of the API.
const (
	ReasonCommunityNotFound = "Community not found"
	ReasonCommunityPrivate  = "Community is private"
	ReasonContentNotFound   = "Content not found"
	ReasonCheckFailed       = "Access check failed"
	ReasonContentCheckFail  = "Content access check failed"
	ReasonPaidRequired      = "Paid subscription required for premium content"
)

// multiAccessConcurrency bounds the parallel community lookups in
// CheckMultipleCommunityAccess.
const multiAccessConcurrency = 8

// Evaluator answers access questions about communities and content. Its
// public methods never return an error: lookup and infrastructure failures
// degrade to a deny with Reason set, so a broken dependency can only make
// the system more restrictive.
type Evaluator struct {
	store  community.Store
	logger *observability.Logger
}

// NewEvaluator creates an access evaluator over the given store.
func NewEvaluator(store community.Store, logger *observability.Logger) *Evaluator {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Evaluator{store: store, logger: logger}
}

// deniedResult is the fail-closed fallback: no access, member role, reason
// attached.
func deniedResult(reason string) *AccessCheckResult {
	return &AccessCheckResult{
		HasAccess:     false,
		HasPaidAccess: false,
		Role:          RoleMember,
		Reason:        reason,
	}
}

// CheckCommunityAccess evaluates whether userID may access the community.
// userID is nil for anonymous callers. The result is computed fresh on every
// call; it is never cached or persisted.
func (e *Evaluator) CheckCommunityAccess(ctx context.Context, communityID int64, userID *int64) *AccessCheckResult {
	result, err := e.communityAccess(ctx, communityID, userID)
	if err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"community_id": communityID,
			"user_id":      userID,
		}).Error("community access check failed")
		return deniedResult(ReasonCheckFailed)
	}
	return result
}

// communityAccess is the error-returning core of CheckCommunityAccess. The
// validator calls it directly so infrastructure failures can be audited as
// ACCESS_ERROR before being degraded.
func (e *Evaluator) communityAccess(ctx context.Context, communityID int64, userID *int64) (*AccessCheckResult, error) {
	comm, err := e.store.GetCommunity(ctx, communityID)
	if errors.Is(err, community.ErrNotFound) {
		return deniedResult(ReasonCommunityNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get community %d: %w", communityID, err)
	}

	// Anonymous callers see public communities read-only and nothing else.
	if userID == nil {
		result := &AccessCheckResult{
			HasAccess: comm.IsPublic,
			Role:      RoleMember,
		}
		if !result.HasAccess {
			result.Reason = ReasonCommunityPrivate
		}
		return result, nil
	}

	isCreator := comm.CreatorID == *userID

	membership, err := e.store.GetMembership(ctx, communityID, *userID)
	if err != nil && !errors.Is(err, community.ErrNotFound) {
		return nil, fmt.Errorf("get membership community=%d user=%d: %w", communityID, *userID, err)
	}

	result := &AccessCheckResult{
		Role:       EffectiveRole(membership, isCreator),
		IsCreator:  isCreator,
		Membership: membership,
	}
	result.HasAccess = isCreator || membership.Active() || comm.IsPublic

	switch {
	case isCreator:
		// Creators always hold paid access to their own community.
		result.HasPaidAccess = true
	case !comm.Priced():
		// Free community: paid access is simply active membership.
		result.HasPaidAccess = result.HasAccess && membership.Active()
	default:
		sub, err := e.store.GetActiveSubscription(ctx, communityID, *userID)
		if err != nil && !errors.Is(err, community.ErrNotFound) {
			return nil, fmt.Errorf("get subscription community=%d user=%d: %w", communityID, *userID, err)
		}
		if sub.Paid() {
			result.HasPaidAccess = true
		} else if membership.Active() {
			result.Reason = ReasonPaidRequired
		}
	}

	if !result.HasAccess && result.Reason == "" {
		result.Reason = ReasonCommunityPrivate
	}

	return result, nil
}

// CheckContentAccess evaluates what userID may do with one content item
// (a lesson, post or comment). Like CheckCommunityAccess it never returns
// an error.
func (e *Evaluator) CheckContentAccess(ctx context.Context, contentType community.ContentType, contentID int64, userID *int64) *ContentAccessResult {
	result, err := e.contentAccess(ctx, contentType, contentID, userID)
	if err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"content_type": contentType,
			"content_id":   contentID,
			"user_id":      userID,
		}).Error("content access check failed")
		return &ContentAccessResult{AccessCheckResult: *deniedResult(ReasonContentCheckFail)}
	}
	return result
}

func (e *Evaluator) contentAccess(ctx context.Context, contentType community.ContentType, contentID int64, userID *int64) (*ContentAccessResult, error) {
	ref, err := e.contentRef(ctx, contentType, contentID)
	if errors.Is(err, community.ErrNotFound) {
		return &ContentAccessResult{AccessCheckResult: *deniedResult(ReasonContentNotFound)}, nil
	}
	if err != nil {
		return nil, err
	}

	base, err := e.communityAccess(ctx, ref.CommunityID, userID)
	if err != nil {
		return nil, err
	}

	result := &ContentAccessResult{AccessCheckResult: *base}
	if !base.HasAccess {
		return result, nil
	}

	premium := ref.Type == community.ContentLesson && !ref.IsFree
	result.CanView = !premium || base.HasPaidAccess
	if premium && !result.CanView && base.Role.AtLeast(RoleModerator) {
		// Staff preview premium lessons without a subscription.
		result.CanView = true
	}
	if !result.CanView && result.Reason == "" {
		result.Reason = ReasonPaidRequired
	}

	isAuthor := userID != nil && ref.AuthorID != nil && *ref.AuthorID == *userID
	writePerm := Permission{Resource: Resource(ref.Type), Action: ActionWrite}
	deletePerm := Permission{Resource: Resource(ref.Type), Action: ActionDelete}
	moderatePerm := Permission{Resource: Resource(ref.Type), Action: ActionModerate}

	result.CanEdit = isAuthor || base.IsCreator || HasPermission(base.Role, writePerm)
	result.CanDelete = isAuthor || base.IsCreator || HasPermission(base.Role, deletePerm)
	result.CanModerate = HasPermission(base.Role, moderatePerm)

	return result, nil
}

func (e *Evaluator) contentRef(ctx context.Context, contentType community.ContentType, contentID int64) (*community.ContentRef, error) {
	switch contentType {
	case community.ContentLesson:
		return e.store.GetLessonRef(ctx, contentID)
	case community.ContentPost:
		return e.store.GetPostRef(ctx, contentID)
	case community.ContentComment:
		return e.store.GetCommentRef(ctx, contentID)
	default:
		return nil, fmt.Errorf("content type %q: %w", contentType, community.ErrNotFound)
	}
}

// CheckMultipleCommunityAccess evaluates access to several communities
// concurrently. The returned map has one entry per distinct input id; each
// entry degrades independently, so one broken community cannot poison the
// rest.
func (e *Evaluator) CheckMultipleCommunityAccess(ctx context.Context, communityIDs []int64, userID *int64) map[int64]*AccessCheckResult {
	results := make(map[int64]*AccessCheckResult, len(communityIDs))
	if len(communityIDs) == 0 {
		return results
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(multiAccessConcurrency)

	seen := make(map[int64]struct{}, len(communityIDs))
	for _, id := range communityIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		id := id
		g.Go(func() error {
			result := e.CheckCommunityAccess(gctx, id, userID)
			mu.Lock()
			results[id] = result
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes.
	g.Wait()

	return results
}

// GetUserPermissions returns the user's effective role, full permission set
// and access flags for one community.
func (e *Evaluator) GetUserPermissions(ctx context.Context, communityID int64, userID *int64) *UserPermissions {
	result := e.CheckCommunityAccess(ctx, communityID, userID)

	perms := &UserPermissions{
		Role:          result.Role,
		HasAccess:     result.HasAccess,
		HasPaidAccess: result.HasPaidAccess,
	}
	if result.HasAccess {
		perms.Permissions = PermissionsFor(result.Role)
	} else {
		perms.Permissions = []Permission{}
	}

	return perms
}
