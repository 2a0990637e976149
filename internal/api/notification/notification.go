package notification

import (
	"database/sql"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

// NotificationHandler 站内通知接口
type NotificationHandler struct {
	notificationService *service.NotificationService
}

// NewNotificationHandler 创建一个新的 NotificationHandler 实例
func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService}
}

// List 通知列表，?unread=true 只看未读
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetInt("user_id")
	onlyUnread := c.Query("unread") == "true"

	notifications, err := h.notificationService.ListForUser(userID, onlyUnread)
	if err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrDatabase, "获取通知列表失败", err))
		return
	}

	errors.HandleSuccess(c, gin.H{"notifications": notifications}, "")
}

// MarkRead 标记单条通知已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetInt("user_id")
	id := c.Param("id")

	if err := h.notificationService.MarkRead(id, userID); err != nil {
		if err == sql.ErrNoRows {
			errors.HandleError(c, errors.New(errors.ErrResourceNotFound, "通知不存在"))
			return
		}
		errors.HandleError(c, errors.Wrap(errors.ErrDatabase, "标记通知失败", err))
		return
	}

	errors.HandleSuccess(c, nil, "")
}

// MarkAllRead 全部标记已读
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetInt("user_id")

	if err := h.notificationService.MarkAllRead(userID); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrDatabase, "标记通知失败", err))
		return
	}

	errors.HandleSuccess(c, nil, "")
}
