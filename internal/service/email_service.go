package service

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/config"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/interfaces"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

type EmailService struct {
	smtpHost  string
	smtpPort  int
	username  string
	password  string
	userRepo  interfaces.UserRepository
	jwtSecret string
}

func NewEmailService(userRepo interfaces.UserRepository) *EmailService {
	return &EmailService{
		smtpHost:  config.AppConfig.SMTPHost,
		smtpPort:  config.AppConfig.SMTPPort,
		username:  config.AppConfig.SMTPUsername,
		password:  config.AppConfig.SMTPPassword,
		userRepo:  userRepo,
		jwtSecret: config.AppConfig.JWTSecret,
	}
}

// SendVerificationEmail 注册后发送邮箱验证邮件
func (s *EmailService) SendVerificationEmail(email, username string) error {
	token, err := s.generateEmailVerificationToken(email)
	if err != nil {
		util.Logger.Error("生成验证令牌失败", zap.Error(err))
		return fmt.Errorf("生成验证令牌失败: %w", err)
	}

	verificationLink := fmt.Sprintf("%s/verify-email?token=%s", config.AppConfig.FrontendURL, token)

	subject := "验证您的邮箱 - BookNest"
	body := fmt.Sprintf("亲爱的 %s，<br><br>欢迎来到 BookNest 书店。请点击以下链接验证您的邮箱：<br><a href=\"%s\">%s</a><br><br>此链接将在24小时后过期。",
		username, verificationLink, verificationLink)

	s.sendEmailAsync(email, subject, body)
	return nil
}

// SendOrderNotification 订单相关的事件邮件，内容和站内通知一致
func (s *EmailService) SendOrderNotification(email, title, message string) {
	body := fmt.Sprintf("%s<br><br>您可以登录 <a href=\"%s\">BookNest</a> 查看订单详情。",
		message, config.AppConfig.FrontendURL)
	s.sendEmailAsync(email, title+" - BookNest", body)
}

// SendPasswordResetEmail 发送密码重置邮件
func (s *EmailService) SendPasswordResetEmail(email string) error {
	token, err := s.generatePasswordResetToken(email)
	if err != nil {
		util.Logger.Error("生成密码重置令牌失败", zap.Error(err))
		return fmt.Errorf("生成密码重置令牌失败: %w", err)
	}

	resetLink := fmt.Sprintf("%s/reset-password?token=%s", config.AppConfig.FrontendURL, token)

	subject := "重置您的密码 - BookNest"
	body := fmt.Sprintf("我们收到了您的密码重置请求。如果这不是您本人操作，请忽略此邮件。<br><br>点击链接重置密码：<br><a href=\"%s\">%s</a><br><br>此链接将在1小时后过期。",
		resetLink, resetLink)

	return s.sendEmail(email, subject, body)
}

func (s *EmailService) sendEmailAsync(to, subject, body string) {
	go func() {
		if err := s.sendEmail(to, subject, body); err != nil {
			util.Logger.Error("异步发送邮件失败", zap.Error(err), zap.String("to", to))
		}
	}()
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	if s.username == "" {
		util.Logger.Debug("SMTP 未配置，跳过发送邮件", zap.String("subject", subject))
		return nil
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.username)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := mail.NewDialer(s.smtpHost, s.smtpPort, s.username, s.password)
	d.Timeout = 20 * time.Second
	d.SSL = true
	d.TLSConfig = &tls.Config{InsecureSkipVerify: true}

	if err := d.DialAndSend(m); err != nil {
		util.Logger.Error("发送邮件失败", zap.Error(err), zap.String("to", to))
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	util.Logger.Info("邮件发送成功", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (s *EmailService) generateEmailVerificationToken(email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(s.jwtSecret))
}

// VerifyEmailToken 验证邮箱令牌，返回对应用户ID
func (s *EmailService) VerifyEmailToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		util.Logger.Error("解析令牌失败", zap.Error(err))
		return 0, fmt.Errorf("无效的令牌: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		email, ok := claims["email"].(string)
		if !ok {
			return 0, fmt.Errorf("无效的令牌: 缺少邮箱信息")
		}

		user, err := s.userRepo.FindByEmail(email)
		if err != nil {
			return 0, fmt.Errorf("查找用户失败: %w", err)
		}
		if user == nil {
			return 0, fmt.Errorf("未找到用户")
		}
		return user.ID, nil
	}
	return 0, fmt.Errorf("无效的令牌")
}

func (s *EmailService) generatePasswordResetToken(email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(1 * time.Hour).Unix(),
		"type":  "password_reset",
	})
	return token.SignedString([]byte(s.jwtSecret))
}

// VerifyPasswordResetToken 验证密码重置令牌，返回邮箱
func (s *EmailService) VerifyPasswordResetToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		util.Logger.Error("解析密码重置令牌失败", zap.Error(err))
		return "", fmt.Errorf("无效的令牌: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		email, ok := claims["email"].(string)
		if !ok {
			return "", fmt.Errorf("无效的令牌: 缺少邮箱信息")
		}
		tokenType, ok := claims["type"].(string)
		if !ok || tokenType != "password_reset" {
			return "", fmt.Errorf("无效的令牌类型")
		}
		return email, nil
	}
	return "", fmt.Errorf("无效的令牌")
}
