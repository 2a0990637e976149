package model

import "time"

// OrderType 订单类型：直接发货或先囤着（攒单）
type OrderType string

const (
	OrderTypeShipping OrderType = "shipping"
	OrderTypePile     OrderType = "pile"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// PaymentStatus 付款状态
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaying   PaymentStatus = "paying"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// 订单状态迁移表：所有合法迁移都集中在这里，各调用点不再各自判断
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusCompleted},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
	OrderStatusRejected:  {},
}

// 付款状态迁移表：unpaid→paying→paid/rejected，rejected 后允许重新提交
var paymentStatusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusUnpaid:   {PaymentStatusPaying},
	PaymentStatusPaying:   {PaymentStatusPaid, PaymentStatusRejected},
	PaymentStatusPaid:     {},
	PaymentStatusRejected: {PaymentStatusPaying},
}

// CanTransitionTo 判断订单状态迁移是否合法
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal 判断订单状态是否为终态
func (s OrderStatus) IsTerminal() bool {
	return len(orderStatusTransitions[s]) == 0
}

// CanTransitionTo 判断付款状态迁移是否合法
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CustomerInfo 下单时的收货信息快照
type CustomerInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// OrderItem 订单明细：下单时从图书信息生成的快照，创建后不可修改
type OrderItem struct {
	ID        int     `json:"id"`
	OrderID   int     `json:"order_id"`
	BookID    int     `json:"book_id"`
	Title     string  `json:"title"`
	Format    string  `json:"format"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image"`
}

// Order 订单模型
type Order struct {
	ID          int         `json:"id"`
	OrderNumber string      `json:"order_number"`
	UserID      int         `json:"user_id"`
	Items       []OrderItem `json:"items"`

	Subtotal    float64 `json:"subtotal"`
	ShippingFee float64 `json:"shipping_fee"`
	Total       float64 `json:"total"`

	OrderType     OrderType     `json:"order_type"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	CustomerInfo CustomerInfo `json:"customer_info"`

	PaymentScreenshot      string     `json:"payment_screenshot,omitempty"`
	PaymentSubmittedAt     *time.Time `json:"payment_submitted_at,omitempty"`
	PaymentVerifiedAt      *time.Time `json:"payment_verified_at,omitempty"`
	PaymentRejectedAt      *time.Time `json:"payment_rejected_at,omitempty"`
	PaymentRejectionReason string     `json:"payment_rejection_reason,omitempty"`

	PenaltyApplied bool `json:"penalty_applied"`

	TrackingNumber string     `json:"tracking_number,omitempty"`
	ShippedDate    *time.Time `json:"shipped_date,omitempty"`

	// Version 用于乐观锁：并发写入时旧版本的更新会被拒绝
	Version int `json:"version"`

	OrderDate time.Time `json:"order_date"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderPatch 部分字段更新：nil 字段保持原值
type OrderPatch struct {
	Status                 *OrderStatus
	PaymentStatus          *PaymentStatus
	OrderType              *OrderType
	CustomerInfo           *CustomerInfo
	ShippingFee            *float64
	Total                  *float64
	PaymentScreenshot      *string
	PaymentSubmittedAt     *time.Time
	PaymentVerifiedAt      *time.Time
	PaymentRejectedAt      *time.Time
	PaymentRejectionReason *string
	PenaltyApplied         *bool
	TrackingNumber         *string
	ShippedDate            *time.Time
}

// Apply 将补丁套用到订单副本上
func (p *OrderPatch) Apply(order *Order) {
	if p.Status != nil {
		order.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		order.PaymentStatus = *p.PaymentStatus
	}
	if p.OrderType != nil {
		order.OrderType = *p.OrderType
	}
	if p.CustomerInfo != nil {
		order.CustomerInfo = *p.CustomerInfo
	}
	if p.ShippingFee != nil {
		order.ShippingFee = *p.ShippingFee
	}
	if p.Total != nil {
		order.Total = *p.Total
	}
	if p.PaymentScreenshot != nil {
		order.PaymentScreenshot = *p.PaymentScreenshot
	}
	if p.PaymentSubmittedAt != nil {
		order.PaymentSubmittedAt = p.PaymentSubmittedAt
	}
	if p.PaymentVerifiedAt != nil {
		order.PaymentVerifiedAt = p.PaymentVerifiedAt
	}
	if p.PaymentRejectedAt != nil {
		order.PaymentRejectedAt = p.PaymentRejectedAt
	}
	if p.PaymentRejectionReason != nil {
		order.PaymentRejectionReason = *p.PaymentRejectionReason
	}
	if p.PenaltyApplied != nil {
		order.PenaltyApplied = *p.PenaltyApplied
	}
	if p.TrackingNumber != nil {
		order.TrackingNumber = *p.TrackingNumber
	}
	if p.ShippedDate != nil {
		order.ShippedDate = p.ShippedDate
	}
}
