package service

import (
	"fmt"
	"log"
	"sync"
	"time"

	apperrors "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/interfaces"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserService 处理与用户相关的业务逻辑
type UserService struct {
	userRepo       interfaces.UserRepository
	emailService   *EmailService
	tokenBlacklist map[string]time.Time
	blacklistMutex sync.RWMutex
}

// NewUserService 创建一个新的 UserService 实例
func NewUserService(userRepo interfaces.UserRepository, emailService *EmailService) *UserService {
	return &UserService{
		userRepo:       userRepo,
		emailService:   emailService,
		tokenBlacklist: make(map[string]time.Time),
	}
}

// IsUsernameTaken 检查用户名是否已被使用
func (s *UserService) IsUsernameTaken(username string) (bool, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// Register 注册新用户
func (s *UserService) Register(user *model.User) error {
	taken, err := s.IsUsernameTaken(user.Username)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.New(apperrors.ErrUserExists, "用户名已被使用")
	}

	existing, err := s.userRepo.FindByEmail(user.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperrors.New(apperrors.ErrUserExists, "邮箱已被注册")
	}

	// 生成密码哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.PasswordHash), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashedPassword)

	if err := s.userRepo.Create(user); err != nil {
		return err
	}

	// 发送验证邮件，失败不影响注册
	if err := s.emailService.SendVerificationEmail(user.Email, user.Username); err != nil {
		util.Logger.Error("发送验证邮件失败", zap.Error(err))
	}
	return nil
}

// Login 用户登录
func (s *UserService) Login(email, password string) (*model.User, error) {
	log.Printf("尝试用户登录：%s", email)

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.New(apperrors.ErrInvalidCredentials, "邮箱或密码不正确")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Printf("用户登录失败，密码不正确：%v", err)
		return nil, apperrors.New(apperrors.ErrInvalidCredentials, "邮箱或密码不正确")
	}

	log.Printf("用户登录成功：ID=%d", user.ID)
	return user, nil
}

// GetUserByID 通过ID获取用户信息
func (s *UserService) GetUserByID(id int) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if user == nil {
		return nil, apperrors.New(apperrors.ErrUserNotFound, "用户不存在")
	}
	return user, nil
}

// UpdateUser 更新用户信息
func (s *UserService) UpdateUser(user *model.User) error {
	existingUser, err := s.GetUserByID(user.ID)
	if err != nil {
		return err
	}

	// 只更新允许修改的字段
	existingUser.Username = user.Username
	existingUser.Phone = user.Phone

	if err := s.userRepo.Update(existingUser); err != nil {
		return fmt.Errorf("更新用户失败: %w", err)
	}
	return nil
}

// VerifyEmail 验证邮箱
func (s *UserService) VerifyEmail(token string) error {
	userID, err := s.emailService.VerifyEmailToken(token)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidToken, "邮箱验证令牌无效", err)
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}

	user.IsVerified = true
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("更新用户验证状态失败: %w", err)
	}

	util.Logger.Info("邮箱验证成功", zap.Int("user_id", userID))
	return nil
}

// RequestPasswordReset 发起密码重置
func (s *UserService) RequestPasswordReset(email string) error {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		// 不暴露邮箱是否存在
		util.Logger.Info("密码重置请求的邮箱不存在", zap.String("email", email))
		return nil
	}
	return s.emailService.SendPasswordResetEmail(email)
}

// ResetPassword 用重置令牌设置新密码
func (s *UserService) ResetPassword(token, newPassword string) error {
	if len(newPassword) < 8 {
		return apperrors.New(apperrors.ErrWeakPassword, "密码长度至少8位")
	}

	email, err := s.emailService.VerifyPasswordResetToken(token)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidToken, "密码重置令牌无效", err)
	}

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.New(apperrors.ErrUserNotFound, "用户不存在")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = string(hashedPassword)
	if err := s.userRepo.Update(user); err != nil {
		util.Logger.Error("更新用户密码失败", zap.Error(err), zap.Int("user_id", user.ID))
		return err
	}

	util.Logger.Info("密码重置成功", zap.Int("user_id", user.ID))
	return nil
}

// Logout 注销：把令牌加入黑名单
func (s *UserService) Logout(token string) {
	s.blacklistMutex.Lock()
	s.tokenBlacklist[token] = time.Now().Add(24 * time.Hour) // 令牌在黑名单中保留24小时
	s.blacklistMutex.Unlock()
}

// IsTokenBlacklisted 检查令牌是否在黑名单中
func (s *UserService) IsTokenBlacklisted(token string) bool {
	s.blacklistMutex.RLock()
	expiry, exists := s.tokenBlacklist[token]
	s.blacklistMutex.RUnlock()
	if !exists {
		return false
	}
	if time.Now().After(expiry) {
		s.blacklistMutex.Lock()
		delete(s.tokenBlacklist, token)
		s.blacklistMutex.Unlock()
		return false
	}
	return true
}

// IsAdmin 判断用户是否为管理员
func (s *UserService) IsAdmin(userID int) (bool, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return false, err
	}
	return user.Role == "admin", nil
}

// GetUsers 分页获取用户列表
func (s *UserService) GetUsers(page, pageSize int) ([]*model.User, error) {
	return s.userRepo.FindAll(page, pageSize)
}

// UpdateUserRole 更新用户角色
func (s *UserService) UpdateUserRole(userID int, newRole string) error {
	if newRole != "user" && newRole != "admin" {
		return apperrors.New(apperrors.ErrValidation, "无效的角色")
	}
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	user.Role = newRole
	return s.userRepo.Update(user)
}

// DeleteAccount 注销用户账户（软删除）
func (s *UserService) DeleteAccount(userID int) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}

	now := time.Now()
	user.DeletedAt = &now
	return s.userRepo.Update(user)
}

// CreateAddress 创建收货地址
func (s *UserService) CreateAddress(address *model.UserAddress) error {
	if _, err := s.GetUserByID(address.UserID); err != nil {
		return err
	}
	if err := validateAddress(address); err != nil {
		return err
	}

	// 如果是默认地址，先取消其他默认地址
	if address.IsDefault {
		if err := s.handleDefaultAddress(address.UserID); err != nil {
			return fmt.Errorf("failed to handle default address: %w", err)
		}
	}

	if err := s.userRepo.CreateAddress(address); err != nil {
		util.Logger.Error("创建地址失败",
			zap.Error(err),
			zap.Int("user_id", address.UserID))
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

func validateAddress(address *model.UserAddress) error {
	if address.ReceiverName == "" {
		return apperrors.New(apperrors.ErrValidation, "收货人不能为空")
	}
	if address.Phone == "" {
		return apperrors.New(apperrors.ErrValidation, "电话不能为空")
	}
	if address.Province == "" || address.City == "" || address.District == "" {
		return apperrors.New(apperrors.ErrValidation, "省市区信息不完整")
	}
	if address.DetailAddress == "" {
		return apperrors.New(apperrors.ErrValidation, "详细地址不能为空")
	}
	return nil
}

func (s *UserService) handleDefaultAddress(userID int) error {
	addresses, err := s.userRepo.ListUserAddresses(userID)
	if err != nil {
		return err
	}
	for _, addr := range addresses {
		if addr.IsDefault {
			addr.IsDefault = false
			if err := s.userRepo.UpdateAddress(addr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *UserService) UpdateAddress(address *model.UserAddress) error {
	if err := validateAddress(address); err != nil {
		return err
	}
	return s.userRepo.UpdateAddress(address)
}

func (s *UserService) DeleteAddress(id int) error {
	return s.userRepo.DeleteAddress(id)
}

func (s *UserService) GetAddressByID(id int) (*model.UserAddress, error) {
	return s.userRepo.GetAddressByID(id)
}

func (s *UserService) ListUserAddresses(userID int) ([]*model.UserAddress, error) {
	return s.userRepo.ListUserAddresses(userID)
}

func (s *UserService) SetDefaultAddress(userID, addressID int) error {
	return s.userRepo.SetDefaultAddress(userID, addressID)
}
