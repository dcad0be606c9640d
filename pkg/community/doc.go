// Package community holds the persistent entities the access core reads:
// communities, memberships, subscriptions, and flat content projections.
//
// # Overview
//
// The access core never writes through this package. Membership and
// subscription rows are owned by other services; this package exposes
// typed read-only lookups over PostgreSQL plus an optional two-tier
// (in-process LRU + Redis) read-through cache.
//
// # Lookups
//
//	store.GetCommunity(ctx, id)
//	store.GetMembership(ctx, communityID, userID)
//	store.GetActiveSubscription(ctx, communityID, userID)
//	store.GetLessonRef(ctx, id)   // lesson -> course -> community
//	store.GetPostRef(ctx, id)     // post -> community
//	store.GetCommentRef(ctx, id)  // comment -> post -> community
//
// All lookups return ErrNotFound (wrapped) when no row matches.
//
// # Related Packages
//
//   - pkg/access: consumes Store for access decisions
//   - pkg/audit: durable record of those decisions
package community
