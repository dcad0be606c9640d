package community

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestGetCommunity(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPostgresStore(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "name", "creator_id", "is_public", "price_monthly_cents", "price_yearly_cents",
		"created_at", "updated_at",
	}).AddRow(1, "gophers", 100, true, 2900, nil, now, now)

	mock.ExpectQuery(`SELECT id, name, creator_id, is_public`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	c, err := store.GetCommunity(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "gophers", c.Name)
	assert.Equal(t, int64(100), c.CreatorID)
	assert.True(t, c.IsPublic)
	require.NotNil(t, c.PriceMonthlyCents)
	assert.Equal(t, int64(2900), *c.PriceMonthlyCents)
	assert.Nil(t, c.PriceYearlyCents)
	assert.True(t, c.Priced())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCommunityNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPostgresStore(db)

	mock.ExpectQuery(`SELECT id, name, creator_id, is_public`).
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetCommunity(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetMembership(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPostgresStore(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "community_id", "role", "status", "joined_at", "created_at",
	}).AddRow(7, 200, 1, "moderator", "active", now, now)

	mock.ExpectQuery(`SELECT id, user_id, community_id, role, status`).
		WithArgs(int64(1), int64(200)).
		WillReturnRows(rows)

	m, err := store.GetMembership(context.Background(), 1, 200)
	require.NoError(t, err)
	assert.Equal(t, RoleModerator, m.Role)
	assert.Equal(t, MembershipActive, m.Status)
	assert.True(t, m.Active())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMembershipNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPostgresStore(db)

	mock.ExpectQuery(`SELECT id, user_id, community_id, role, status`).
		WithArgs(int64(1), int64(999)).
		WillReturnError(sql.ErrNoRows)

	m, err := store.GetMembership(context.Background(), 1, 999)
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, m.Active(), "nil membership is never active")
}

func TestGetActiveSubscription(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPostgresStore(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "community_id", "status", "current_period_end", "created_at",
	}).AddRow(3, 200, 1, "trialing", now.Add(7*24*time.Hour), now)

	mock.ExpectQuery(`status IN \('active', 'trialing'\)`).
		WithArgs(int64(1), int64(200)).
		WillReturnRows(rows)

	sub, err := store.GetActiveSubscription(context.Background(), 1, 200)
	require.NoError(t, err)
	assert.Equal(t, SubscriptionStatusTrialing, sub.Status)
	assert.True(t, sub.Paid())
	require.NotNil(t, sub.CurrentPeriodEnd)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLessonRef(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPostgresStore(db)

	rows := sqlmock.NewRows([]string{"id", "is_free", "community_id"}).
		AddRow(10, false, 1)

	mock.ExpectQuery(`FROM lessons l\s+JOIN courses c`).
		WithArgs(int64(10)).
		WillReturnRows(rows)

	ref, err := store.GetLessonRef(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, ContentLesson, ref.Type)
	assert.False(t, ref.IsFree)
	assert.Equal(t, int64(1), ref.CommunityID)
	assert.Nil(t, ref.AuthorID, "lessons have no author")
}

func TestGetPostRef(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPostgresStore(db)

	rows := sqlmock.NewRows([]string{"id", "author_id", "community_id"}).
		AddRow(20, 200, 1)

	mock.ExpectQuery(`FROM posts`).
		WithArgs(int64(20)).
		WillReturnRows(rows)

	ref, err := store.GetPostRef(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, ContentPost, ref.Type)
	assert.True(t, ref.IsFree, "posts are never premium")
	require.NotNil(t, ref.AuthorID)
	assert.Equal(t, int64(200), *ref.AuthorID)
}

func TestGetCommentRef(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewPostgresStore(db)

	rows := sqlmock.NewRows([]string{"id", "author_id", "community_id"}).
		AddRow(30, nil, 1)

	mock.ExpectQuery(`FROM comments cm\s+JOIN posts p`).
		WithArgs(int64(30)).
		WillReturnRows(rows)

	ref, err := store.GetCommentRef(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, ContentComment, ref.Type)
	assert.Nil(t, ref.AuthorID)
}

func TestSubscriptionPaid(t *testing.T) {
	tests := []struct {
		status SubscriptionStatus
		paid   bool
	}{
		{SubscriptionStatusActive, true},
		{SubscriptionStatusTrialing, true},
		{SubscriptionStatusCanceled, false},
		{SubscriptionStatusPastDue, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sub := &Subscription{Status: tt.status}
			assert.Equal(t, tt.paid, sub.Paid())
		})
	}

	var nilSub *Subscription
	assert.False(t, nilSub.Paid())
}
