package service

import (
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/interfaces"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"go.uber.org/zap"
)

// NotificationService 站内通知 + 邮件。
// 通知是业务流程的副产品，写入失败只记日志，绝不让主流程跟着失败。
type NotificationService struct {
	notificationRepo interfaces.NotificationRepository
	userRepo         interfaces.UserRepository
	emailService     *EmailService
}

// NewNotificationService 创建一个新的 NotificationService 实例
func NewNotificationService(
	notificationRepo interfaces.NotificationRepository,
	userRepo interfaces.UserRepository,
	emailService *EmailService,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		emailService:     emailService,
	}
}

// Notify 写一条站内通知，并异步给用户发一封同内容的邮件
func (s *NotificationService) Notify(userID int, title, message, severity, linkHint string) {
	notification := &model.Notification{
		UserID:   userID,
		Title:    title,
		Message:  message,
		Severity: severity,
		LinkHint: linkHint,
	}
	if err := s.notificationRepo.Create(notification); err != nil {
		util.Logger.Error("写入站内通知失败",
			zap.Error(err),
			zap.Int("user_id", userID),
			zap.String("title", title))
	}

	go s.sendEmailCopy(userID, title, message)
}

func (s *NotificationService) sendEmailCopy(userID int, title, message string) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil || user == nil {
		util.Logger.Warn("查询通知收件人失败，跳过邮件",
			zap.Error(err),
			zap.Int("user_id", userID))
		return
	}
	s.emailService.SendOrderNotification(user.Email, title, message)
}

// ListForUser 返回用户的通知列表
func (s *NotificationService) ListForUser(userID int, onlyUnread bool) ([]*model.Notification, error) {
	return s.notificationRepo.ListByUser(userID, onlyUnread)
}

// MarkRead 标记单条通知已读
func (s *NotificationService) MarkRead(id string, userID int) error {
	return s.notificationRepo.MarkRead(id, userID)
}

// MarkAllRead 标记用户全部通知已读
func (s *NotificationService) MarkAllRead(userID int) error {
	return s.notificationRepo.MarkAllRead(userID)
}
