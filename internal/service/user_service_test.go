package service

import (
	"testing"

	apperrors "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

func newUserService() (*UserService, *MockUserRepository) {
	userRepo := new(MockUserRepository)
	return NewUserService(userRepo, NewEmailService(userRepo)), userRepo
}

// TestRegister 注册成功后密码只以哈希形式存储
func TestRegister(t *testing.T) {
	svc, userRepo := newUserService()
	userRepo.On("FindByUsername", "张三").Return(nil, nil)
	userRepo.On("FindByEmail", "zhangsan@example.com").Return(nil, nil)
	userRepo.On("Create", mock.AnythingOfType("*model.User")).Return(nil)

	user := &model.User{
		Username:     "张三",
		Email:        "zhangsan@example.com",
		PasswordHash: "password123",
	}
	err := svc.Register(user)
	assert.NoError(t, err)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
	userRepo.AssertCalled(t, "Create", mock.Anything)
}

func TestRegisterDuplicate(t *testing.T) {
	t.Run("用户名已被使用", func(t *testing.T) {
		svc, userRepo := newUserService()
		userRepo.On("FindByUsername", "张三").Return(&model.User{ID: 1, Username: "张三"}, nil)

		err := svc.Register(&model.User{Username: "张三", Email: "new@example.com", PasswordHash: "password123"})
		assert.True(t, apperrors.Is(err, apperrors.ErrUserExists))
		userRepo.AssertNotCalled(t, "Create", mock.Anything)
	})

	t.Run("邮箱已被注册", func(t *testing.T) {
		svc, userRepo := newUserService()
		userRepo.On("FindByUsername", "李四").Return(nil, nil)
		userRepo.On("FindByEmail", "taken@example.com").Return(&model.User{ID: 2}, nil)

		err := svc.Register(&model.User{Username: "李四", Email: "taken@example.com", PasswordHash: "password123"})
		assert.True(t, apperrors.Is(err, apperrors.ErrUserExists))
		userRepo.AssertNotCalled(t, "Create", mock.Anything)
	})
}

// TestLogin 登录校验：未注册邮箱和错误密码返回同一种错误
func TestLogin(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	stored := &model.User{ID: 1, Email: "zhangsan@example.com", PasswordHash: string(hash)}

	t.Run("成功", func(t *testing.T) {
		svc, userRepo := newUserService()
		userRepo.On("FindByEmail", "zhangsan@example.com").Return(stored, nil)

		user, err := svc.Login("zhangsan@example.com", "password123")
		assert.NoError(t, err)
		assert.Equal(t, 1, user.ID)
	})

	t.Run("密码不正确", func(t *testing.T) {
		svc, userRepo := newUserService()
		userRepo.On("FindByEmail", "zhangsan@example.com").Return(stored, nil)

		_, err := svc.Login("zhangsan@example.com", "wrong-password")
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
	})

	t.Run("邮箱未注册", func(t *testing.T) {
		svc, userRepo := newUserService()
		userRepo.On("FindByEmail", "nobody@example.com").Return(nil, nil)

		_, err := svc.Login("nobody@example.com", "password123")
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
	})
}

// TestTokenBlacklist 注销后的令牌在黑名单里，其他令牌不受影响
func TestTokenBlacklist(t *testing.T) {
	svc, _ := newUserService()

	svc.Logout("token-a")
	assert.True(t, svc.IsTokenBlacklisted("token-a"))
	assert.False(t, svc.IsTokenBlacklisted("token-b"))
}

func TestUpdateUserRole(t *testing.T) {
	t.Run("成功", func(t *testing.T) {
		svc, userRepo := newUserService()
		userRepo.On("FindByID", 1).Return(&model.User{ID: 1, Role: "user"}, nil)
		userRepo.On("Update", mock.MatchedBy(func(u *model.User) bool {
			return u.Role == "admin"
		})).Return(nil)

		assert.NoError(t, svc.UpdateUserRole(1, "admin"))
		userRepo.AssertExpectations(t)
	})

	t.Run("无效角色", func(t *testing.T) {
		svc, userRepo := newUserService()
		err := svc.UpdateUserRole(1, "superuser")
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
		userRepo.AssertNotCalled(t, "Update", mock.Anything)
	})
}
