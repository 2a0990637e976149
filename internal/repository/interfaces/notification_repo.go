package interfaces

import "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"

// NotificationRepository 接口定义了通知仓库应该实现的方法
type NotificationRepository interface {
	Create(notification *model.Notification) error
	ListByUser(userID int, onlyUnread bool) ([]*model.Notification, error)
	MarkRead(id string, userID int) error
	MarkAllRead(userID int) error
}
