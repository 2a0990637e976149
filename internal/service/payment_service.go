package service

import (
	"fmt"
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/config"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/changefeed"
	apperrors "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/interfaces"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"go.uber.org/zap"
)

// PaymentService 负责付款凭证的提交与人工核验流程。
// 状态机：unpaid → paying → paid / rejected，rejected 后可重新提交。
type PaymentService struct {
	orderRepo interfaces.OrderRepository
	notifier  *NotificationService
	feed      changefeed.Publisher
}

// NewPaymentService 创建一个新的 PaymentService 实例
func NewPaymentService(orderRepo interfaces.OrderRepository, notifier *NotificationService, feed changefeed.Publisher) *PaymentService {
	return &PaymentService{
		orderRepo: orderRepo,
		notifier:  notifier,
		feed:      feed,
	}
}

// checkProofSubmittable 提交付款凭证的共用守卫
func checkProofSubmittable(order *model.Order, userID int) error {
	if order == nil {
		return apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
	}
	if order.UserID != userID {
		return apperrors.New(apperrors.ErrForbidden, "无权操作该订单")
	}
	if order.Status.IsTerminal() {
		return apperrors.New(apperrors.ErrInvalidState, "订单已结束，不能再提交付款")
	}
	if !order.PaymentStatus.CanTransitionTo(model.PaymentStatusPaying) {
		return apperrors.New(apperrors.ErrInvalidState,
			fmt.Sprintf("当前付款状态(%s)不能提交凭证", order.PaymentStatus))
	}
	return nil
}

// CanSubmitProof 上传截图前的预检，避免对不能提交的订单落下孤儿文件
func (s *PaymentService) CanSubmitProof(orderID, userID int) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	return checkProofSubmittable(order, userID)
}

// SubmitPaymentProof 用户上传付款截图。
// screenshotPath 是存储层返回的文件路径，截图本身在 handler 里已经落盘。
func (s *PaymentService) SubmitPaymentProof(orderID, userID, version int, screenshotPath string) (*model.Order, error) {
	if screenshotPath == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "付款截图不能为空")
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	if err := checkProofSubmittable(order, userID); err != nil {
		return nil, err
	}

	now := time.Now()
	paying := model.PaymentStatusPaying
	emptyReason := ""
	patch := &model.OrderPatch{
		PaymentStatus:          &paying,
		PaymentScreenshot:      &screenshotPath,
		PaymentSubmittedAt:     &now,
		PaymentRejectionReason: &emptyReason, // 重新提交时清掉上次的拒绝原因
	}

	if err := applyOrderPatch(s.orderRepo, s.feed, order, version, patch, "payment_submitted"); err != nil {
		return nil, err
	}

	util.Logger.Info("付款凭证已提交，等待人工核验",
		zap.Int("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))
	return order, nil
}

// ApprovePayment 管理员核验通过。
// 付款置为 paid（终态），订单若还在 pending 则顺势进入 confirmed。
func (s *PaymentService) ApprovePayment(orderID int) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	if order == nil {
		return nil, apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
	}
	if !order.PaymentStatus.CanTransitionTo(model.PaymentStatusPaid) {
		return nil, apperrors.New(apperrors.ErrInvalidState,
			fmt.Sprintf("当前付款状态(%s)不能核验通过", order.PaymentStatus))
	}

	now := time.Now()
	paid := model.PaymentStatusPaid
	patch := &model.OrderPatch{
		PaymentStatus:     &paid,
		PaymentVerifiedAt: &now,
	}
	if order.Status == model.OrderStatusPending {
		confirmed := model.OrderStatusConfirmed
		patch.Status = &confirmed
	}

	if err := applyOrderPatch(s.orderRepo, s.feed, order, order.Version, patch, "payment_verified"); err != nil {
		return nil, err
	}

	s.notifier.Notify(order.UserID, "付款已确认",
		fmt.Sprintf("订单 %s 的付款已核验通过。", order.OrderNumber),
		model.SeveritySuccess, order.OrderNumber)

	util.Logger.Info("付款核验通过",
		zap.Int("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))
	return order, nil
}

// RejectPayment 管理员核验不通过，必须给出原因。
// 用户之后可以重新上传截图再次进入 paying。
func (s *PaymentService) RejectPayment(orderID int, reason string) (*model.Order, error) {
	if reason == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "拒绝付款必须填写原因")
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	if order == nil {
		return nil, apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
	}
	if !order.PaymentStatus.CanTransitionTo(model.PaymentStatusRejected) {
		return nil, apperrors.New(apperrors.ErrInvalidState,
			fmt.Sprintf("当前付款状态(%s)不能拒绝", order.PaymentStatus))
	}

	now := time.Now()
	rejected := model.PaymentStatusRejected
	patch := &model.OrderPatch{
		PaymentStatus:          &rejected,
		PaymentRejectedAt:      &now,
		PaymentRejectionReason: &reason,
	}

	if err := applyOrderPatch(s.orderRepo, s.feed, order, order.Version, patch, "payment_rejected"); err != nil {
		return nil, err
	}

	s.notifier.Notify(order.UserID, "付款被退回",
		fmt.Sprintf("订单 %s 的付款凭证未通过核验：%s。请重新提交。", order.OrderNumber, reason),
		model.SeverityError, order.OrderNumber)

	util.Logger.Info("付款核验未通过",
		zap.Int("order_id", order.ID),
		zap.String("reason", reason))
	return order, nil
}

// ApplyLatePenalties 逾期未付款罚金的后台清扫。
// penalty_applied 标记保证同一订单只加一次，反复执行是安全的。
func (s *PaymentService) ApplyLatePenalties() (int, error) {
	grace := time.Duration(config.AppConfig.PenaltyAfterHours) * time.Hour
	cutoff := time.Now().Add(-grace)

	candidates, err := s.orderRepo.ListPenaltyCandidates(cutoff)
	if err != nil {
		util.Logger.Error("查询逾期订单失败", zap.Error(err))
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "查询逾期订单失败", err)
	}

	applied := 0
	for _, order := range candidates {
		ok, err := s.applyPenalty(order)
		if err != nil {
			// 单个订单失败不影响其他订单，版本冲突留给下一轮
			util.Logger.Warn("加收逾期罚金失败",
				zap.Error(err),
				zap.Int("order_id", order.ID))
			continue
		}
		if ok {
			applied++
		}
	}

	if applied > 0 {
		util.Logger.Info("逾期罚金清扫完成",
			zap.Int("candidates", len(candidates)),
			zap.Int("applied", applied))
	}
	return applied, nil
}

// applyPenalty 给单个订单加罚金，已加过时返回 false 表示本次没有动作
func (s *PaymentService) applyPenalty(order *model.Order) (bool, error) {
	if order.PenaltyApplied {
		return false, nil
	}

	penalty := config.AppConfig.LatePenalty
	newTotal := order.Total + penalty
	flag := true
	patch := &model.OrderPatch{
		Total:          &newTotal,
		PenaltyApplied: &flag,
	}

	if err := applyOrderPatch(s.orderRepo, s.feed, order, order.Version, patch, "penalty_applied"); err != nil {
		return false, err
	}

	s.notifier.Notify(order.UserID, "订单已加收逾期罚金",
		fmt.Sprintf("订单 %s 超过付款期限，已加收罚金 %.2f，应付总额更新为 %.2f。",
			order.OrderNumber, penalty, newTotal),
		model.SeverityWarning, order.OrderNumber)
	return true, nil
}

// StartPenaltySweeper 启动后台定时清扫，stop 关闭后退出
func (s *PaymentService) StartPenaltySweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		util.Logger.Info("逾期罚金清扫任务已启动", zap.Duration("interval", interval))
		for {
			select {
			case <-ticker.C:
				if _, err := s.ApplyLatePenalties(); err != nil {
					util.Logger.Error("逾期罚金清扫出错", zap.Error(err))
				}
			case <-stop:
				util.Logger.Info("逾期罚金清扫任务已停止")
				return
			}
		}
	}()
}
