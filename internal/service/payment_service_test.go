package service

import (
	"testing"
	"time"

	apperrors "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func paymentOrder(paymentStatus model.PaymentStatus, status model.OrderStatus) *model.Order {
	return &model.Order{
		ID:            1,
		OrderNumber:   "BN-2026-000001",
		UserID:        7,
		Status:        status,
		PaymentStatus: paymentStatus,
		Total:         130,
		Version:       2,
	}
}

func newPaymentService() (*PaymentService, *MockOrderRepository, *recordingFeed) {
	orderRepo := new(MockOrderRepository)
	notifier, _ := newTestNotifier()
	feed := &recordingFeed{}
	return NewPaymentService(orderRepo, notifier, feed), orderRepo, feed
}

// TestSubmitPaymentProof 首次提交与被拒后重新提交都允许
func TestSubmitPaymentProof(t *testing.T) {
	for _, from := range []model.PaymentStatus{model.PaymentStatusUnpaid, model.PaymentStatusRejected} {
		svc, orderRepo, feed := newPaymentService()
		orderRepo.On("GetByID", 1).Return(paymentOrder(from, model.OrderStatusPending), nil)
		orderRepo.On("Update", 1, 2, mock.AnythingOfType("*model.OrderPatch")).Return(nil)

		order, err := svc.SubmitPaymentProof(1, 7, 2, "payments/1/proof.png")
		assert.NoError(t, err, "from %s", from)
		assert.Equal(t, model.PaymentStatusPaying, order.PaymentStatus)
		assert.Equal(t, "payments/1/proof.png", order.PaymentScreenshot)
		assert.NotNil(t, order.PaymentSubmittedAt)
		// 重新提交会清掉上次的拒绝原因
		assert.Empty(t, order.PaymentRejectionReason)
		assert.Equal(t, "payment_submitted", feed.events[0].Kind)
	}
}

func TestSubmitPaymentProofGuards(t *testing.T) {
	t.Run("已在核验中", func(t *testing.T) {
		svc, orderRepo, _ := newPaymentService()
		orderRepo.On("GetByID", 1).Return(paymentOrder(model.PaymentStatusPaying, model.OrderStatusPending), nil)
		_, err := svc.SubmitPaymentProof(1, 7, 2, "payments/1/proof.png")
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})

	t.Run("已付款", func(t *testing.T) {
		svc, orderRepo, _ := newPaymentService()
		orderRepo.On("GetByID", 1).Return(paymentOrder(model.PaymentStatusPaid, model.OrderStatusConfirmed), nil)
		_, err := svc.SubmitPaymentProof(1, 7, 2, "payments/1/proof.png")
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})

	t.Run("订单已取消", func(t *testing.T) {
		svc, orderRepo, _ := newPaymentService()
		orderRepo.On("GetByID", 1).Return(paymentOrder(model.PaymentStatusUnpaid, model.OrderStatusCancelled), nil)
		_, err := svc.SubmitPaymentProof(1, 7, 2, "payments/1/proof.png")
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState))
	})

	t.Run("非本人", func(t *testing.T) {
		svc, orderRepo, _ := newPaymentService()
		orderRepo.On("GetByID", 1).Return(paymentOrder(model.PaymentStatusUnpaid, model.OrderStatusPending), nil)
		_, err := svc.SubmitPaymentProof(1, 8, 2, "payments/1/proof.png")
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	})

	t.Run("订单不存在", func(t *testing.T) {
		svc, orderRepo, _ := newPaymentService()
		orderRepo.On("GetByID", 1).Return(nil, nil)
		_, err := svc.SubmitPaymentProof(1, 7, 2, "payments/1/proof.png")
		assert.True(t, apperrors.Is(err, apperrors.ErrOrderNotFound))
	})
}

// TestCanSubmitProof 上传截图前的预检和正式提交用同一套守卫
func TestCanSubmitProof(t *testing.T) {
	t.Run("可以提交", func(t *testing.T) {
		for _, from := range []model.PaymentStatus{model.PaymentStatusUnpaid, model.PaymentStatusRejected} {
			svc, orderRepo, _ := newPaymentService()
			orderRepo.On("GetByID", 1).Return(paymentOrder(from, model.OrderStatusPending), nil)
			assert.NoError(t, svc.CanSubmitProof(1, 7), "from %s", from)
		}
	})

	t.Run("已付款", func(t *testing.T) {
		svc, orderRepo, _ := newPaymentService()
		orderRepo.On("GetByID", 1).Return(paymentOrder(model.PaymentStatusPaid, model.OrderStatusConfirmed), nil)
		assert.True(t, apperrors.Is(svc.CanSubmitProof(1, 7), apperrors.ErrInvalidState))
	})

	t.Run("订单已结束", func(t *testing.T) {
		svc, orderRepo, _ := newPaymentService()
		orderRepo.On("GetByID", 1).Return(paymentOrder(model.PaymentStatusUnpaid, model.OrderStatusCancelled), nil)
		assert.True(t, apperrors.Is(svc.CanSubmitProof(1, 7), apperrors.ErrInvalidState))
	})

	t.Run("非本人", func(t *testing.T) {
		svc, orderRepo, _ := newPaymentService()
		orderRepo.On("GetByID", 1).Return(paymentOrder(model.PaymentStatusUnpaid, model.OrderStatusPending), nil)
		assert.True(t, apperrors.Is(svc.CanSubmitProof(1, 8), apperrors.ErrForbidden))
	})

	t.Run("订单不存在", func(t *testing.T) {
		svc, orderRepo, _ := newPaymentService()
		orderRepo.On("GetByID", 1).Return(nil, nil)
		assert.True(t, apperrors.Is(svc.CanSubmitProof(1, 7), apperrors.ErrOrderNotFound))
	})
}

// TestApprovePayment 核验通过：paid 落库，pending 顺势 confirmed
func TestApprovePayment(t *testing.T) {
	svc, orderRepo, feed := newPaymentService()
	orderRepo.On("GetByID", 1).Return(paymentOrder(model.PaymentStatusPaying, model.OrderStatusPending), nil)
	orderRepo.On("Update", 1, 2, mock.AnythingOfType("*model.OrderPatch")).Return(nil)

	order, err := svc.ApprovePayment(1)
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, model.OrderStatusConfirmed, order.Status)
	assert.NotNil(t, order.PaymentVerifiedAt)
	assert.Equal(t, "payment_verified", feed.events[0].Kind)
}

func TestApprovePaymentGuards(t *testing.T) {
	// 只有 paying 状态可以核验通过
	for _, from := range []model.PaymentStatus{
		model.PaymentStatusUnpaid,
		model.PaymentStatusPaid,
		model.PaymentStatusRejected,
	} {
		svc, orderRepo, _ := newPaymentService()
		orderRepo.On("GetByID", 1).Return(paymentOrder(from, model.OrderStatusPending), nil)
		_, err := svc.ApprovePayment(1)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidState), "from %s", from)
		orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	}
}

// TestRejectPayment 拒绝必须带原因，拒绝后保留原因待展示
func TestRejectPayment(t *testing.T) {
	svc, orderRepo, _ := newPaymentService()
	orderRepo.On("GetByID", 1).Return(paymentOrder(model.PaymentStatusPaying, model.OrderStatusPending), nil)
	orderRepo.On("Update", 1, 2, mock.AnythingOfType("*model.OrderPatch")).Return(nil)

	order, err := svc.RejectPayment(1, "截图金额与订单不符")
	assert.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRejected, order.PaymentStatus)
	assert.Equal(t, "截图金额与订单不符", order.PaymentRejectionReason)
	assert.NotNil(t, order.PaymentRejectedAt)
	// 拒绝付款不影响订单状态
	assert.Equal(t, model.OrderStatusPending, order.Status)
}

func TestRejectPaymentRequiresReason(t *testing.T) {
	svc, orderRepo, _ := newPaymentService()
	_, err := svc.RejectPayment(1, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	orderRepo.AssertNotCalled(t, "GetByID", mock.Anything)
}

// TestApplyLatePenalties 罚金清扫：逐单加罚金并更新总额
func TestApplyLatePenalties(t *testing.T) {
	setupPolicy()
	svc, orderRepo, feed := newPaymentService()

	overdue := paymentOrder(model.PaymentStatusUnpaid, model.OrderStatusPending)
	orderRepo.On("ListPenaltyCandidates", mock.AnythingOfType("time.Time")).
		Return([]*model.Order{overdue}, nil)
	orderRepo.On("Update", 1, 2, mock.AnythingOfType("*model.OrderPatch")).Return(nil)

	applied, err := svc.ApplyLatePenalties()
	assert.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 140.0, overdue.Total)
	assert.True(t, overdue.PenaltyApplied)
	assert.Equal(t, "penalty_applied", feed.events[0].Kind)
}

// TestApplyLatePenaltiesIdempotent 已加过罚金的订单不会再加
func TestApplyLatePenaltiesIdempotent(t *testing.T) {
	setupPolicy()
	svc, orderRepo, _ := newPaymentService()

	already := paymentOrder(model.PaymentStatusUnpaid, model.OrderStatusPending)
	already.PenaltyApplied = true
	already.Total = 140

	orderRepo.On("ListPenaltyCandidates", mock.AnythingOfType("time.Time")).
		Return([]*model.Order{already}, nil)

	applied, err := svc.ApplyLatePenalties()
	assert.NoError(t, err)
	// 没有实际加罚金的订单不计入本轮数量
	assert.Equal(t, 0, applied)
	// 总额不变，也没有发起更新
	assert.Equal(t, 140.0, already.Total)
	orderRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// TestPenaltySweepCutoff 清扫用的截止时间是当前时间减去宽限期
func TestPenaltySweepCutoff(t *testing.T) {
	setupPolicy()
	svc, orderRepo, _ := newPaymentService()

	var got time.Time
	orderRepo.On("ListPenaltyCandidates", mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) { got = args.Get(0).(time.Time) }).
		Return(nil, nil)

	_, err := svc.ApplyLatePenalties()
	assert.NoError(t, err)

	expected := time.Now().Add(-24 * time.Hour)
	assert.WithinDuration(t, expected, got, 5*time.Second)
}
