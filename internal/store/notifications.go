package store

import (
	"context"
	"fmt"

	"github.com/roach88/warranty/internal/model"
)

// InsertNotification records a notification unless one with the same
// (user_id, warranty_id, message) already exists.
//
// Uses ON CONFLICT DO NOTHING for idempotency - repeated inserts of the same
// triple are silently ignored and report inserted=false. This constraint, not
// any cadence check, is what makes a reminder record at most once.
func (s *Store) InsertNotification(ctx context.Context, n model.Notification) (inserted bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, warranty_id, message, created_at, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, warranty_id, message) DO NOTHING
	`, n.UserID, n.WarrantyID, n.Message, formatTimestamp(n.CreatedAt), string(model.NotificationUnread))
	if err != nil {
		return false, classify("insert notification", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notification: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT notification_id, user_id, warranty_id, message, created_at, status
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, notification_id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var (
			n              model.Notification
			created, state string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.WarrantyID, &n.Message, &created, &state); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if n.CreatedAt, err = parseTimestamp("created_at", created); err != nil {
			return nil, err
		}
		n.Status = model.NotificationStatus(state)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *Store) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND status = ?
	`, userID, string(model.NotificationUnread)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification of a user as read and returns
// how many changed.
func (s *Store) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET status = ? WHERE user_id = ? AND status = ?
	`, string(model.NotificationRead), userID, string(model.NotificationUnread))
	if err != nil {
		return 0, classify("mark notifications read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: rows affected: %w", err)
	}
	return n, nil
}
