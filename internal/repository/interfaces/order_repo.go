package interfaces

import (
	"errors"
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
)

// 订单仓库哨兵错误
var (
	// ErrVersionConflict 表示更新时携带的版本号已过期，调用方应重读后重试
	ErrVersionConflict = errors.New("order version conflict")
	// ErrInsufficientStock 表示下单数量超过图书现有库存
	ErrInsufficientStock = errors.New("insufficient stock")
)

// OrderRepository 接口定义了订单仓库应该实现的方法。
// Update 是唯一的字段级变更入口，带乐观锁版本校验。
type OrderRepository interface {
	// Create 在一个事务中插入订单、订单明细并扣减图书库存
	Create(order *model.Order) error
	GetByID(id int) (*model.Order, error)
	// ListByUser 返回用户订单，orderType 为空时不过滤，按下单时间倒序
	ListByUser(userID int, orderType model.OrderType) ([]*model.Order, error)
	ListForAdmin(page, pageSize int, status, search string) ([]*model.Order, int, error)
	// ListPendingPayments 返回待人工核验付款截图的订单
	ListPendingPayments() ([]*model.Order, error)
	// ListPenaltyCandidates 返回在 before 之前下单且可能需要加收罚金的订单
	ListPenaltyCandidates(before time.Time) ([]*model.Order, error)
	// Update 按 id+version 条件更新；版本过期返回 ErrVersionConflict
	Update(id, version int, patch *model.OrderPatch) error
	// CancelAndRestock 在一个事务中将订单置为 cancelled 并恢复库存，
	// 仅在 pending/confirmed 状态下生效，重复调用不会重复恢复库存
	CancelAndRestock(id, version int) error
	// ChangedSince 返回 since 之后有变更的订单，userID 为 0 时不过滤
	ChangedSince(since time.Time, userID int) ([]*model.Order, error)
	Stats() (*model.OrderStats, error)
}
