package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store provides query and retention operations over the audit trail.
type Store interface {
	// GetAuditLogs returns entries matching the filter plus the total count
	// of matches, newest-first.
	GetAuditLogs(ctx context.Context, filter Filter) ([]*Entry, int64, error)

	// GetEntry retrieves one entry by id, or nil if it does not exist.
	GetEntry(ctx context.Context, id int64) (*Entry, error)

	// GetSecuritySummary aggregates a community's events over the trailing
	// window of the given number of days.
	GetSecuritySummary(ctx context.Context, communityID int64, days int) (*SecuritySummary, error)

	// CleanupOldLogs deletes entries older than retentionDays and returns
	// the number deleted.
	CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error)

	// Export serializes entries matching the filter in the given format.
	Export(ctx context.Context, filter Filter, format ExportFormat) ([]byte, error)
}

// DBSink implements Sink and Store over PostgreSQL.
type DBSink struct {
	db *sql.DB
}

// NewDBSink creates a database-backed audit sink and ensures the audit_logs
// table exists.
func NewDBSink(db *sql.DB) (*DBSink, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &DBSink{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}

	return s, nil
}

func (s *DBSink) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT,
		action VARCHAR(64) NOT NULL,
		resource VARCHAR(255) NOT NULL,
		reason TEXT,
		community_id BIGINT,
		ip_address VARCHAR(45),
		user_agent TEXT,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_community_id ON audit_logs(community_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
	`

	_, err := s.db.Exec(query)
	return err
}

// LogSecurityEvent appends one entry.
func (s *DBSink) LogSecurityEvent(ctx context.Context, entry *Entry) error {
	if entry.Action == "" {
		return fmt.Errorf("action is required")
	}
	if entry.Resource == "" {
		return fmt.Errorf("resource is required")
	}

	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO audit_logs (
			user_id, action, resource, reason, community_id,
			ip_address, user_agent, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		entry.UserID, entry.Action, entry.Resource, entry.Reason, entry.CommunityID,
		entry.IPAddress, entry.UserAgent, metadataJSON, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// LogPermissionChange records a role change performed on a member.
func (s *DBSink) LogPermissionChange(ctx context.Context, actorID, targetUserID, communityID int64, oldRole, newRole string) error {
	return s.LogSecurityEvent(ctx, permissionChangeEntry(actorID, targetUserID, communityID, oldRole, newRole))
}

// LogModerationEvent records a moderation action against a resource.
func (s *DBSink) LogModerationEvent(ctx context.Context, moderatorID, communityID int64, resource, reason string) error {
	return s.LogSecurityEvent(ctx, moderationEntry(moderatorID, communityID, resource, reason))
}

// LogPaymentEvent records a subscription/payment lifecycle event.
func (s *DBSink) LogPaymentEvent(ctx context.Context, userID, communityID int64, event string, metadata map[string]interface{}) error {
	return s.LogSecurityEvent(ctx, paymentEntry(userID, communityID, event, metadata))
}

const entryColumns = `id, user_id, action, resource, reason, community_id, ip_address, user_agent, metadata, created_at`

// GetAuditLogs returns entries matching the filter plus the total count.
func (s *DBSink) GetAuditLogs(ctx context.Context, filter Filter) ([]*Entry, int64, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	if filter.UserID != nil {
		where += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, *filter.UserID)
		argCount++
	}
	if filter.CommunityID != nil {
		where += fmt.Sprintf(" AND community_id = $%d", argCount)
		args = append(args, *filter.CommunityID)
		argCount++
	}
	if filter.Action != "" {
		where += fmt.Sprintf(" AND action ILIKE $%d", argCount)
		args = append(args, "%"+filter.Action+"%")
		argCount++
	}
	if filter.Resource != "" {
		where += fmt.Sprintf(" AND resource ILIKE $%d", argCount)
		args = append(args, "%"+filter.Resource+"%")
		argCount++
	}
	if filter.StartTime != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filter.StartTime)
		argCount++
	}
	if filter.EndTime != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filter.EndTime)
		argCount++
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM audit_logs" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := "SELECT " + entryColumns + " FROM audit_logs" + where + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return entries, total, nil
}

// GetEntry retrieves one entry by id, or nil if it does not exist.
func (s *DBSink) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	query := "SELECT " + entryColumns + " FROM audit_logs WHERE id = $1"
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	return entry, nil
}

// GetSecuritySummary aggregates a community's events over the trailing window.
func (s *DBSink) GetSecuritySummary(ctx context.Context, communityID int64, days int) (*SecuritySummary, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	summary := &SecuritySummary{}

	counts := []struct {
		dest   *int64
		clause string
		args   []interface{}
	}{
		{&summary.TotalEvents, "", nil},
		{&summary.AccessDeniedEvents, " AND action = $3", []interface{}{string(ActionAccessDenied)}},
		{&summary.ModerationEvents, " AND action = $3", []interface{}{string(ActionModeration)}},
		{&summary.PermissionChanges, " AND action = $3", []interface{}{string(ActionPermissionChange)}},
	}

	for _, c := range counts {
		query := "SELECT COUNT(*) FROM audit_logs WHERE community_id = $1 AND created_at >= $2" + c.clause
		args := append([]interface{}{communityID, since}, c.args...)
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count events: %w", err)
		}
	}

	query := "SELECT " + entryColumns + ` FROM audit_logs
		WHERE community_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 10`
	rows, err := s.db.QueryContext(ctx, query, communityID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	summary.RecentEvents = make([]*Entry, 0, 10)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		summary.RecentEvents = append(summary.RecentEvents, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent events: %w", err)
	}

	return summary, nil
}

// CleanupOldLogs deletes entries older than retentionDays. Entries within
// the retention window are never touched.
func (s *DBSink) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionPolicy().RetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_logs WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}

	return result.RowsAffected()
}

// Export serializes entries matching the filter in the given format.
func (s *DBSink) Export(ctx context.Context, filter Filter, format ExportFormat) ([]byte, error) {
	entries, _, err := s.GetAuditLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportFormatCSV:
		return exportCSV(entries)
	case ExportFormatNDJSON:
		return exportNDJSON(entries)
	default:
		return exportJSON(entries)
	}
}

func scanEntry(scanner interface {
	Scan(dest ...interface{}) error
}) (*Entry, error) {
	entry := &Entry{}
	var userID, communityID sql.NullInt64
	var reason, ipAddress, userAgent sql.NullString
	var metadataJSON []byte

	err := scanner.Scan(
		&entry.ID, &userID, &entry.Action, &entry.Resource, &reason, &communityID,
		&ipAddress, &userAgent, &metadataJSON, &entry.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit log: %w", err)
	}

	if userID.Valid {
		v := userID.Int64
		entry.UserID = &v
	}
	if communityID.Valid {
		v := communityID.Int64
		entry.CommunityID = &v
	}
	entry.Reason = reason.String
	entry.IPAddress = ipAddress.String
	entry.UserAgent = userAgent.String

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return entry, nil
}
