package service

import (
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/changefeed"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"github.com/stretchr/testify/mock"
)

func init() {
	// 测试里 service 会直接用全局 Logger
	util.InitLogger("error")
}

// MockOrderRepository 是 OrderRepository 的模拟实现
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(order *model.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(id int) (*model.Order, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(userID int, orderType model.OrderType) ([]*model.Order, error) {
	args := m.Called(userID, orderType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListForAdmin(page, pageSize int, status, search string) ([]*model.Order, int, error) {
	args := m.Called(page, pageSize, status, search)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*model.Order), args.Int(1), args.Error(2)
}

func (m *MockOrderRepository) ListPendingPayments() ([]*model.Order, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListPenaltyCandidates(before time.Time) ([]*model.Order, error) {
	args := m.Called(before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderRepository) Update(id, version int, patch *model.OrderPatch) error {
	args := m.Called(id, version, patch)
	return args.Error(0)
}

func (m *MockOrderRepository) CancelAndRestock(id, version int) error {
	args := m.Called(id, version)
	return args.Error(0)
}

func (m *MockOrderRepository) ChangedSince(since time.Time, userID int) ([]*model.Order, error) {
	args := m.Called(since, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderRepository) Stats() (*model.OrderStats, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderStats), args.Error(1)
}

// MockBookRepository 是 BookRepository 的模拟实现
type MockBookRepository struct {
	mock.Mock
}

func (m *MockBookRepository) Create(book *model.Book) error {
	args := m.Called(book)
	return args.Error(0)
}

func (m *MockBookRepository) GetByID(id int) (*model.Book, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Book), args.Error(1)
}

func (m *MockBookRepository) List(page, pageSize int, search string) ([]*model.Book, int, error) {
	args := m.Called(page, pageSize, search)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*model.Book), args.Int(1), args.Error(2)
}

func (m *MockBookRepository) Update(book *model.Book) error {
	args := m.Called(book)
	return args.Error(0)
}

func (m *MockBookRepository) Count() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func (m *MockBookRepository) AdjustStock(id, delta int) error {
	args := m.Called(id, delta)
	return args.Error(0)
}

// MockNotificationRepository 是 NotificationRepository 的模拟实现
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(notification *model.Notification) error {
	args := m.Called(notification)
	return args.Error(0)
}

func (m *MockNotificationRepository) ListByUser(userID int, onlyUnread bool) ([]*model.Notification, error) {
	args := m.Called(userID, onlyUnread)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkRead(id string, userID int) error {
	args := m.Called(id, userID)
	return args.Error(0)
}

func (m *MockNotificationRepository) MarkAllRead(userID int) error {
	args := m.Called(userID)
	return args.Error(0)
}

// MockUserRepository 是 UserRepository 的模拟实现
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *model.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(id int) (*model.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(email string) (*model.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(username string) (*model.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Update(user *model.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(id int) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockUserRepository) Count() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) FindAll(page, pageSize int) ([]*model.User, error) {
	args := m.Called(page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

func (m *MockUserRepository) CreateAddress(address *model.UserAddress) error {
	args := m.Called(address)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateAddress(address *model.UserAddress) error {
	args := m.Called(address)
	return args.Error(0)
}

func (m *MockUserRepository) DeleteAddress(id int) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockUserRepository) GetAddressByID(id int) (*model.UserAddress, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserAddress), args.Error(1)
}

func (m *MockUserRepository) ListUserAddresses(userID int) ([]*model.UserAddress, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UserAddress), args.Error(1)
}

func (m *MockUserRepository) SetDefaultAddress(userID, addressID int) error {
	args := m.Called(userID, addressID)
	return args.Error(0)
}

// recordingFeed 记录发布的变化事件
type recordingFeed struct {
	events []changefeed.Event
}

func (f *recordingFeed) Publish(event changefeed.Event) {
	f.events = append(f.events, event)
}

// newTestNotifier 构造一个不会真正发邮件的通知服务
func newTestNotifier() (*NotificationService, *MockNotificationRepository) {
	notificationRepo := new(MockNotificationRepository)
	notificationRepo.On("Create", mock.Anything).Return(nil).Maybe()

	userRepo := new(MockUserRepository)
	userRepo.On("FindByID", mock.Anything).Return(nil, nil).Maybe()

	return NewNotificationService(notificationRepo, userRepo, NewEmailService(userRepo)), notificationRepo
}
