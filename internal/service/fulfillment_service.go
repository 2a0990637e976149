package service

import (
	"fmt"
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/changefeed"
	apperrors "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/interfaces"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"go.uber.org/zap"
)

// FulfillmentService 负责发货、完成、取消以及囤货单转发货单
type FulfillmentService struct {
	orderRepo interfaces.OrderRepository
	notifier  *NotificationService
	feed      changefeed.Publisher
}

// NewFulfillmentService 创建一个新的 FulfillmentService 实例
func NewFulfillmentService(orderRepo interfaces.OrderRepository, notifier *NotificationService, feed changefeed.Publisher) *FulfillmentService {
	return &FulfillmentService{
		orderRepo: orderRepo,
		notifier:  notifier,
		feed:      feed,
	}
}

// ShipOrder 管理员发货。没有核验通过的付款一律不发货。
func (s *FulfillmentService) ShipOrder(orderID int, trackingNumber string) (*model.Order, error) {
	if trackingNumber == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "发货必须填写快递单号")
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	if order == nil {
		return nil, apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
	}
	if order.PaymentStatus != model.PaymentStatusPaid {
		return nil, apperrors.New(apperrors.ErrPaymentRequired, "订单未完成付款，不能发货")
	}
	if order.OrderType != model.OrderTypeShipping {
		return nil, apperrors.New(apperrors.ErrInvalidState, "囤货订单需要先转为发货订单")
	}
	if !order.Status.CanTransitionTo(model.OrderStatusShipped) {
		return nil, apperrors.New(apperrors.ErrInvalidState,
			fmt.Sprintf("当前状态(%s)不能发货", order.Status))
	}

	now := time.Now()
	shipped := model.OrderStatusShipped
	patch := &model.OrderPatch{
		Status:         &shipped,
		TrackingNumber: &trackingNumber,
		ShippedDate:    &now,
	}

	if err := applyOrderPatch(s.orderRepo, s.feed, order, order.Version, patch, "shipped"); err != nil {
		return nil, err
	}

	s.notifier.Notify(order.UserID, "订单已发货",
		fmt.Sprintf("订单 %s 已发货，快递单号 %s。", order.OrderNumber, trackingNumber),
		model.SeverityInfo, order.OrderNumber)

	util.Logger.Info("订单已发货",
		zap.Int("order_id", order.ID),
		zap.String("tracking_number", trackingNumber))
	return order, nil
}

// CompleteOrder 完成订单，进入终态。
// 未发货但已付款的订单也可以直接完成（例如线下自提），未付款的一律拦下。
func (s *FulfillmentService) CompleteOrder(orderID, requesterID int, isAdmin bool) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	if order == nil {
		return nil, apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
	}
	if !isAdmin && order.UserID != requesterID {
		return nil, apperrors.New(apperrors.ErrForbidden, "无权操作该订单")
	}
	if order.PaymentStatus != model.PaymentStatusPaid {
		return nil, apperrors.New(apperrors.ErrPaymentRequired, "订单未完成付款，不能完成")
	}
	if !order.Status.CanTransitionTo(model.OrderStatusCompleted) {
		return nil, apperrors.New(apperrors.ErrInvalidState,
			fmt.Sprintf("当前状态(%s)不能完成订单", order.Status))
	}

	completed := model.OrderStatusCompleted
	patch := &model.OrderPatch{Status: &completed}

	if err := applyOrderPatch(s.orderRepo, s.feed, order, order.Version, patch, "completed"); err != nil {
		return nil, err
	}

	util.Logger.Info("订单已完成", zap.Int("order_id", order.ID))
	return order, nil
}

// CancelOrder 取消订单并恢复库存，仅管理员可用（路由层保证）。
// 只有 pending/confirmed 可取消；已发货的订单没有回头路。
func (s *FulfillmentService) CancelOrder(orderID int) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	if order == nil {
		return nil, apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
	}
	if !order.Status.CanTransitionTo(model.OrderStatusCancelled) {
		return nil, apperrors.New(apperrors.ErrInvalidState,
			fmt.Sprintf("当前状态(%s)不能取消", order.Status))
	}

	if err := s.orderRepo.CancelAndRestock(order.ID, order.Version); err != nil {
		switch err {
		case interfaces.ErrVersionConflict:
			return nil, apperrors.New(apperrors.ErrStaleVersion, "订单已被其他操作修改，请刷新后重试")
		default:
			util.Logger.Error("取消订单失败", zap.Error(err), zap.Int("order_id", order.ID))
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "取消订单失败", err)
		}
	}

	order.Status = model.OrderStatusCancelled
	order.Version++
	order.UpdatedAt = time.Now()

	s.feed.Publish(changefeed.Event{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Kind:        "cancelled",
	})

	s.notifier.Notify(order.UserID, "订单已取消",
		fmt.Sprintf("订单 %s 已取消，占用的库存已释放。", order.OrderNumber),
		model.SeverityInfo, order.OrderNumber)

	util.Logger.Info("订单已取消", zap.Int("order_id", order.ID))
	return order, nil
}

// ConvertPileToShipping 囤货单转发货单：补收货信息、补运费、重算总额。
// 转换是单向的，发货单不能转回囤货单。
func (s *FulfillmentService) ConvertPileToShipping(orderID, userID, version int, info model.CustomerInfo) (*model.Order, error) {
	if info.Name == "" || info.Phone == "" || info.Address == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "转发货必须填写收货人、电话和地址")
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	if order == nil {
		return nil, apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
	}
	if order.UserID != userID {
		return nil, apperrors.New(apperrors.ErrForbidden, "无权操作该订单")
	}
	if order.OrderType != model.OrderTypePile {
		return nil, apperrors.New(apperrors.ErrInvalidState, "只有囤货订单可以转为发货订单")
	}
	if order.Status == model.OrderStatusCancelled {
		return nil, apperrors.New(apperrors.ErrInvalidState, "已取消的订单不能转为发货订单")
	}

	// 囤货转发货的运费由管理员与用户协商后另行设置，这里保持 0
	shipping := model.OrderTypeShipping
	patch := &model.OrderPatch{
		OrderType:    &shipping,
		CustomerInfo: &info,
	}

	if err := applyOrderPatch(s.orderRepo, s.feed, order, version, patch, "converted_to_shipping"); err != nil {
		return nil, err
	}

	util.Logger.Info("囤货订单已转为发货订单", zap.Int("order_id", order.ID))
	return order, nil
}

// SetShippingFee 管理员为协商好的发货订单设置运费，并按差额重算总额。
// 付款核验通过后总额冻结，不允许再改运费。
func (s *FulfillmentService) SetShippingFee(orderID int, fee float64) (*model.Order, error) {
	if fee < 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "运费不能为负数")
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	if order == nil {
		return nil, apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
	}
	if order.OrderType != model.OrderTypeShipping {
		return nil, apperrors.New(apperrors.ErrInvalidState, "只有发货订单可以设置运费")
	}
	if order.Status.IsTerminal() {
		return nil, apperrors.New(apperrors.ErrInvalidState, "订单已结束，不能修改运费")
	}
	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil, apperrors.New(apperrors.ErrInvalidState, "付款已核验，不能再修改运费")
	}

	// 按差额调整，已加收的罚金保持不变
	newTotal := order.Total - order.ShippingFee + fee
	patch := &model.OrderPatch{
		ShippingFee: &fee,
		Total:       &newTotal,
	}

	if err := applyOrderPatch(s.orderRepo, s.feed, order, order.Version, patch, "shipping_fee_set"); err != nil {
		return nil, err
	}

	s.notifier.Notify(order.UserID, "运费已确定",
		fmt.Sprintf("订单 %s 的运费已确定为 %.2f，应付总额更新为 %.2f。", order.OrderNumber, fee, newTotal),
		model.SeverityInfo, order.OrderNumber)

	util.Logger.Info("订单运费已设置",
		zap.Int("order_id", order.ID),
		zap.Float64("fee", fee),
		zap.Float64("new_total", newTotal))
	return order, nil
}
