package community

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped) by Store lookups when no row matches.
var ErrNotFound = errors.New("not found")

// Store provides the typed read-only lookups the access core consumes.
type Store interface {
	// GetCommunity retrieves a community by id.
	GetCommunity(ctx context.Context, id int64) (*Community, error)

	// GetMembership retrieves the membership row for (communityID, userID).
	GetMembership(ctx context.Context, communityID, userID int64) (*Membership, error)

	// GetActiveSubscription retrieves the active or trialing subscription for
	// (communityID, userID). Canceled and past_due rows are not returned.
	GetActiveSubscription(ctx context.Context, communityID, userID int64) (*Subscription, error)

	// GetLessonRef resolves a lesson to its owning community via its course.
	GetLessonRef(ctx context.Context, id int64) (*ContentRef, error)

	// GetPostRef resolves a post to its owning community.
	GetPostRef(ctx context.Context, id int64) (*ContentRef, error)

	// GetCommentRef resolves a comment to its owning community via its post.
	GetCommentRef(ctx context.Context, id int64) (*ContentRef, error)
}

// PostgresStore implements Store over a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetCommunity retrieves a community by id.
func (s *PostgresStore) GetCommunity(ctx context.Context, id int64) (*Community, error) {
	query := `
		SELECT id, name, creator_id, is_public, price_monthly_cents, price_yearly_cents,
		       created_at, updated_at
		FROM communities
		WHERE id = $1
	`
	c := &Community{}
	var monthly, yearly sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.CreatorID, &c.IsPublic, &monthly, &yearly,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("community %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get community: %w", err)
	}

	if monthly.Valid {
		v := monthly.Int64
		c.PriceMonthlyCents = &v
	}
	if yearly.Valid {
		v := yearly.Int64
		c.PriceYearlyCents = &v
	}

	return c, nil
}

// GetMembership retrieves the membership row for (communityID, userID).
func (s *PostgresStore) GetMembership(ctx context.Context, communityID, userID int64) (*Membership, error) {
	query := `
		SELECT id, user_id, community_id, role, status, joined_at, created_at
		FROM memberships
		WHERE community_id = $1 AND user_id = $2
	`
	m := &Membership{}
	err := s.db.QueryRowContext(ctx, query, communityID, userID).Scan(
		&m.ID, &m.UserID, &m.CommunityID, &m.Role, &m.Status, &m.JoinedAt, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("membership (%d,%d): %w", communityID, userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// GetActiveSubscription retrieves the active or trialing subscription row.
func (s *PostgresStore) GetActiveSubscription(ctx context.Context, communityID, userID int64) (*Subscription, error) {
	query := `
		SELECT id, user_id, community_id, status, current_period_end, created_at
		FROM subscriptions
		WHERE community_id = $1 AND user_id = $2 AND status IN ('active', 'trialing')
		ORDER BY created_at DESC
		LIMIT 1
	`
	sub := &Subscription{}
	var periodEnd sql.NullTime
	err := s.db.QueryRowContext(ctx, query, communityID, userID).Scan(
		&sub.ID, &sub.UserID, &sub.CommunityID, &sub.Status, &periodEnd, &sub.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscription (%d,%d): %w", communityID, userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if periodEnd.Valid {
		t := periodEnd.Time
		sub.CurrentPeriodEnd = &t
	}

	return sub, nil
}

// GetLessonRef resolves a lesson to its owning community via its course.
func (s *PostgresStore) GetLessonRef(ctx context.Context, id int64) (*ContentRef, error) {
	query := `
		SELECT l.id, l.is_free, c.community_id
		FROM lessons l
		JOIN courses c ON c.id = l.course_id
		WHERE l.id = $1
	`
	ref := &ContentRef{Type: ContentLesson}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&ref.ID, &ref.IsFree, &ref.CommunityID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lesson %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	return ref, nil
}

// GetPostRef resolves a post to its owning community.
func (s *PostgresStore) GetPostRef(ctx context.Context, id int64) (*ContentRef, error) {
	query := `
		SELECT id, author_id, community_id
		FROM posts
		WHERE id = $1
	`
	ref := &ContentRef{Type: ContentPost, IsFree: true}
	var authorID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&ref.ID, &authorID, &ref.CommunityID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	if authorID.Valid {
		v := authorID.Int64
		ref.AuthorID = &v
	}

	return ref, nil
}

// GetCommentRef resolves a comment to its owning community via its post.
func (s *PostgresStore) GetCommentRef(ctx context.Context, id int64) (*ContentRef, error) {
	query := `
		SELECT cm.id, cm.author_id, p.community_id
		FROM comments cm
		JOIN posts p ON p.id = cm.post_id
		WHERE cm.id = $1
	`
	ref := &ContentRef{Type: ContentComment, IsFree: true}
	var authorID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&ref.ID, &authorID, &ref.CommunityID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	if authorID.Valid {
		v := authorID.Int64
		ref.AuthorID = &v
	}

	return ref, nil
}
