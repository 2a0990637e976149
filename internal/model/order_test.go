package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestOrderStatusTransitions 验证订单状态迁移表
func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		// 已付款的订单可以不经 confirmed 直接发货或完成
		{OrderStatusPending, OrderStatusShipped, true},
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusConfirmed, OrderStatusCompleted, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCompleted, true},

		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusConfirmed, OrderStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

// TestPaymentStatusTransitions 验证付款状态迁移表
func TestPaymentStatusTransitions(t *testing.T) {
	cases := []struct {
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{PaymentStatusUnpaid, PaymentStatusPaying, true},
		{PaymentStatusPaying, PaymentStatusPaid, true},
		{PaymentStatusPaying, PaymentStatusRejected, true},
		// 被拒后可以重新提交
		{PaymentStatusRejected, PaymentStatusPaying, true},

		// paid 是终态
		{PaymentStatusPaid, PaymentStatusPaying, false},
		{PaymentStatusPaid, PaymentStatusRejected, false},
		{PaymentStatusPaid, PaymentStatusUnpaid, false},
		// 不能跳过 paying 直接 paid
		{PaymentStatusUnpaid, PaymentStatusPaid, false},
		{PaymentStatusRejected, PaymentStatusPaid, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusConfirmed.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
}

// TestOrderPatchApply 验证补丁只覆盖非 nil 字段
func TestOrderPatchApply(t *testing.T) {
	order := &Order{
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusUnpaid,
		Total:         100,
		CustomerInfo:  CustomerInfo{Name: "张三", Phone: "13800000000", Address: "旧地址"},
	}

	confirmed := OrderStatusConfirmed
	newTotal := 150.0
	patch := &OrderPatch{
		Status: &confirmed,
		Total:  &newTotal,
	}
	patch.Apply(order)

	assert.Equal(t, OrderStatusConfirmed, order.Status)
	assert.Equal(t, 150.0, order.Total)
	// 未出现在补丁里的字段保持原值
	assert.Equal(t, PaymentStatusUnpaid, order.PaymentStatus)
	assert.Equal(t, "旧地址", order.CustomerInfo.Address)
}
