package mysql

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db}
}

func (r *NotificationRepository) Create(notification *model.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	notification.CreatedAt = time.Now()

	query := `INSERT INTO notifications (id, user_id, title, message, severity, link_hint, is_read, created_at)
		  VALUES (?, ?, ?, ?, ?, ?, false, ?)`

	_, err := r.db.Exec(query,
		notification.ID, notification.UserID, notification.Title,
		notification.Message, notification.Severity, notification.LinkHint,
		notification.CreatedAt)
	if err != nil {
		util.Logger.Error("创建通知失败",
			zap.Error(err),
			zap.Int("user_id", notification.UserID))
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListByUser(userID int, onlyUnread bool) ([]*model.Notification, error) {
	query := `SELECT id, user_id, title, message, severity, link_hint, is_read, created_at
		  FROM notifications WHERE user_id = ?`
	if onlyUnread {
		query += ` AND is_read = false`
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		util.Logger.Error("查询通知列表失败", zap.Error(err), zap.Int("user_id", userID))
		return nil, err
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message,
			&n.Severity, &n.LinkHint, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkRead 带 user_id 条件，防止把别人的通知标成已读
func (r *NotificationRepository) MarkRead(id string, userID int) error {
	result, err := r.db.Exec(
		`UPDATE notifications SET is_read = true WHERE id = ? AND user_id = ?`,
		id, userID)
	if err != nil {
		util.Logger.Error("标记通知已读失败", zap.Error(err), zap.String("notification_id", id))
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(userID int) error {
	_, err := r.db.Exec(
		`UPDATE notifications SET is_read = true WHERE user_id = ? AND is_read = false`,
		userID)
	if err != nil {
		util.Logger.Error("批量标记通知已读失败", zap.Error(err), zap.Int("user_id", userID))
	}
	return err
}
