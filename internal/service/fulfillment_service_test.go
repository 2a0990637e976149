package service

import (
	"testing"

	apperrors "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func fulfillmentOrder(status model.OrderStatus, paymentStatus model.PaymentStatus, orderType model.OrderType) *model.Order {
	return &model.Order{
		ID:            1,
		OrderNumber:   "BN-2026-000001",
		UserID:        7,
		Status:        status,
		PaymentStatus: paymentStatus,
		OrderType:     orderType,
		Subtotal:      80,
		Total:         80,
		Version:       5,
	}
}

func newFulfillmentService() (*FulfillmentService, *MockOrderRepository, *recordingFeed) {
	orderRepo := new(MockOrderRepository)
	notifier, _ := newTestNotifier()
	feed := &recordingFeed{}
	return NewFulfillmentService(orderRepo, notifier, feed), orderRepo, feed
}

// TestShipOrder 已付款的发货订单从 pending 或 confirmed 都可以发货
func TestShipOrder(t *testing.T) {
	for _, status := range []model.OrderStatus{model.OrderStatusPending, model.OrderStatusConfirmed} {
		svc, orderRepo, feed := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(status, model.PaymentStatusPaid, model.OrderTypeShipping), nil)
		orderRepo.On("Update", 1, 5, mock.AnythingOfType("*model.OrderPatch")).Return(nil)

		order, err := svc.ShipOrder(1, "SF123456789")
		assert.NoError(t, err, "from %s", status)
		assert.Equal(t, model.OrderStatusShipped, order.Status)
		assert.Equal(t, "SF123456789", order.TrackingNumber)
		assert.NotNil(t, order.ShippedDate)
		assert.Equal(t, "shipped", feed.events[0].Kind)
	}
}

// TestShipOrderPaymentGate 付款没有核验通过的订单一律不发货，任何订单状态都一样
func TestShipOrderPaymentGate(t *testing.T) {
	for _, status := range []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusConfirmed,
		model.OrderStatusCancelled,
	} {
		for _, paymentStatus := range []model.PaymentStatus{
			model.PaymentStatusUnpaid,
			model.PaymentStatusPaying,
			model.PaymentStatusRejected,
		} {
			svc, orderRepo, _ := newFulfillmentService()
			orderRepo.On("GetByID", 1).Return(
				fulfillmentOrder(status, paymentStatus, model.OrderTypeShipping), nil)

			_, err := svc.ShipOrder(1, "SF123456789")
			assert.True(t, apperrors.Is(err, apperrors.ErrPaymentRequired),
				"%s/%s", status, paymentStatus)
			orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		}
	}
}

func TestShipOrderGuards(t *testing.T) {
	t.Run("缺快递单号", func(t *testing.T) {
		svc, _, _ := newFulfillmentService()
		_, err := svc.ShipOrder(1, "")
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("囤货订单", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusConfirmed, model.PaymentStatusPaid, model.OrderTypePile), nil)
		_, err := svc.ShipOrder(1, "SF123456789")
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})

	t.Run("已发货", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusShipped, model.PaymentStatusPaid, model.OrderTypeShipping), nil)
		_, err := svc.ShipOrder(1, "SF123456789")
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})
}

// TestCompleteOrder 已付款订单从 pending/confirmed/shipped 都能完成
func TestCompleteOrder(t *testing.T) {
	for _, status := range []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusConfirmed,
		model.OrderStatusShipped,
	} {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(status, model.PaymentStatusPaid, model.OrderTypeShipping), nil)
		orderRepo.On("Update", 1, 5, mock.AnythingOfType("*model.OrderPatch")).Return(nil)

		order, err := svc.CompleteOrder(1, 7, false)
		assert.NoError(t, err, "from %s", status)
		assert.Equal(t, model.OrderStatusCompleted, order.Status)
	}
}

// TestCompleteOrderPaymentGate 未付款的订单不能完成，任何状态都一样
func TestCompleteOrderPaymentGate(t *testing.T) {
	for _, status := range []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusConfirmed,
		model.OrderStatusShipped,
	} {
		for _, paymentStatus := range []model.PaymentStatus{
			model.PaymentStatusUnpaid,
			model.PaymentStatusPaying,
			model.PaymentStatusRejected,
		} {
			svc, orderRepo, _ := newFulfillmentService()
			orderRepo.On("GetByID", 1).Return(
				fulfillmentOrder(status, paymentStatus, model.OrderTypeShipping), nil)
			_, err := svc.CompleteOrder(1, 7, false)
			assert.True(t, apperrors.Is(err, apperrors.ErrPaymentRequired),
				"%s/%s", status, paymentStatus)
		}
	}
}

func TestCompleteOrderGuards(t *testing.T) {
	t.Run("终态不能再完成", func(t *testing.T) {
		for _, status := range []model.OrderStatus{model.OrderStatusCompleted, model.OrderStatusCancelled} {
			svc, orderRepo, _ := newFulfillmentService()
			orderRepo.On("GetByID", 1).Return(
				fulfillmentOrder(status, model.PaymentStatusPaid, model.OrderTypeShipping), nil)
			_, err := svc.CompleteOrder(1, 7, false)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState), "status %s", status)
		}
	})

	t.Run("非本人且非管理员", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusShipped, model.PaymentStatusPaid, model.OrderTypeShipping), nil)
		_, err := svc.CompleteOrder(1, 8, false)
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	})
}

// TestCancelOrder 取消走 CancelAndRestock，库存恢复由仓库层保证
func TestCancelOrder(t *testing.T) {
	svc, orderRepo, feed := newFulfillmentService()
	orderRepo.On("GetByID", 1).Return(
		fulfillmentOrder(model.OrderStatusPending, model.PaymentStatusUnpaid, model.OrderTypeShipping), nil)
	orderRepo.On("CancelAndRestock", 1, 5).Return(nil)

	order, err := svc.CancelOrder(1)
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)
	assert.Equal(t, "cancelled", feed.events[0].Kind)
	orderRepo.AssertExpectations(t)
}

func TestCancelOrderGuards(t *testing.T) {
	t.Run("已发货不能取消", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusShipped, model.PaymentStatusPaid, model.OrderTypeShipping), nil)
		_, err := svc.CancelOrder(1)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
		orderRepo.AssertNotCalled(t, "CancelAndRestock", mock.Anything, mock.Anything)
	})

	t.Run("重复取消", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusCancelled, model.PaymentStatusUnpaid, model.OrderTypeShipping), nil)
		_, err := svc.CancelOrder(1)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
		// 库存不会被第二次恢复
		orderRepo.AssertNotCalled(t, "CancelAndRestock", mock.Anything, mock.Anything)
	})

	t.Run("并发冲突", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusPending, model.PaymentStatusUnpaid, model.OrderTypeShipping), nil)
		orderRepo.On("CancelAndRestock", 1, 5).Return(interfaces.ErrVersionConflict)
		_, err := svc.CancelOrder(1)
		assert.True(t, apperrors.Is(err, apperrors.ErrStaleVersion))
	})
}

// TestConvertPileToShipping 转发货：换类型、收货信息落位，运费留待管理员设置
func TestConvertPileToShipping(t *testing.T) {
	svc, orderRepo, feed := newFulfillmentService()
	orderRepo.On("GetByID", 1).Return(
		fulfillmentOrder(model.OrderStatusConfirmed, model.PaymentStatusPaid, model.OrderTypePile), nil)
	orderRepo.On("Update", 1, 5, mock.AnythingOfType("*model.OrderPatch")).Return(nil)

	order, err := svc.ConvertPileToShipping(1, 7, 5, testCustomerInfo())
	assert.NoError(t, err)
	assert.Equal(t, model.OrderTypeShipping, order.OrderType)
	assert.Equal(t, "张三", order.CustomerInfo.Name)
	// 运费协商定价，转换时不动金额
	assert.Equal(t, 0.0, order.ShippingFee)
	assert.Equal(t, 80.0, order.Total)
	assert.Equal(t, "converted_to_shipping", feed.events[0].Kind)
}

func TestConvertPileToShippingGuards(t *testing.T) {
	t.Run("发货单不能再转", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusConfirmed, model.PaymentStatusPaid, model.OrderTypeShipping), nil)
		_, err := svc.ConvertPileToShipping(1, 7, 5, testCustomerInfo())
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})

	t.Run("已取消不能转", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusCancelled, model.PaymentStatusUnpaid, model.OrderTypePile), nil)
		_, err := svc.ConvertPileToShipping(1, 7, 5, testCustomerInfo())
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})

	t.Run("非本人", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusConfirmed, model.PaymentStatusPaid, model.OrderTypePile), nil)
		_, err := svc.ConvertPileToShipping(1, 8, 5, testCustomerInfo())
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	})

	t.Run("缺收货信息", func(t *testing.T) {
		svc, _, _ := newFulfillmentService()
		_, err := svc.ConvertPileToShipping(1, 7, 5, model.CustomerInfo{Name: "张三"})
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("版本过期", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusConfirmed, model.PaymentStatusPaid, model.OrderTypePile), nil)
		orderRepo.On("Update", 1, 4, mock.Anything).Return(interfaces.ErrVersionConflict)
		_, err := svc.ConvertPileToShipping(1, 7, 4, testCustomerInfo())
		assert.True(t, apperrors.Is(err, apperrors.ErrStaleVersion))
	})
}

// TestSetShippingFee 管理员设置协商运费，总额按差额重算
func TestSetShippingFee(t *testing.T) {
	svc, orderRepo, feed := newFulfillmentService()
	orderRepo.On("GetByID", 1).Return(
		fulfillmentOrder(model.OrderStatusPending, model.PaymentStatusUnpaid, model.OrderTypeShipping), nil)
	orderRepo.On("Update", 1, 5, mock.AnythingOfType("*model.OrderPatch")).Return(nil)

	order, err := svc.SetShippingFee(1, 35)
	assert.NoError(t, err)
	assert.Equal(t, 35.0, order.ShippingFee)
	assert.Equal(t, 115.0, order.Total)
	assert.Equal(t, "shipping_fee_set", feed.events[0].Kind)
}

func TestSetShippingFeeGuards(t *testing.T) {
	t.Run("负运费", func(t *testing.T) {
		svc, _, _ := newFulfillmentService()
		_, err := svc.SetShippingFee(1, -1)
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("囤货订单", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusPending, model.PaymentStatusUnpaid, model.OrderTypePile), nil)
		_, err := svc.SetShippingFee(1, 35)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})

	t.Run("付款已核验", func(t *testing.T) {
		svc, orderRepo, _ := newFulfillmentService()
		orderRepo.On("GetByID", 1).Return(
			fulfillmentOrder(model.OrderStatusConfirmed, model.PaymentStatusPaid, model.OrderTypeShipping), nil)
		_, err := svc.SetShippingFee(1, 35)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})
}
