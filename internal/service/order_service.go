package service

import (
	"database/sql"
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

// CreateOrderItem 下单请求中的单个条目
type CreateOrderItem struct {
	BookID   int `json:"book_id" binding:"required"`
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type OrderService struct {
	orderRepo interfaces.OrderRepository
	bookRepo  interfaces.BookRepository
	feed      changefeed.Publisher
}

// NewOrderService 创建一个新的 OrderService 实例
func NewOrderService(orderRepo interfaces.OrderRepository, bookRepo interfaces.BookRepository, feed changefeed.Publisher) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		bookRepo:  bookRepo,
		feed:      feed,
	}
}

// CreateOrder 创建订单。
// 明细是下单时刻的图书快照，价格以数据库里的为准，不信任请求。
// 囤货单不收运费也不要求收货信息，发货单两者都要。
func (s *OrderService) CreateOrder(userID int, orderType model.OrderType, items []CreateOrderItem, info model.CustomerInfo) (*model.Order, error) {
	if len(items) == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "订单不能没有商品")
	}
	if orderType != model.OrderTypeShipping && orderType != model.OrderTypePile {
		return nil, apperrors.New(apperrors.ErrValidation, "无效的订单类型")
	}
	if orderType == model.OrderTypeShipping {
		if info.Name == "" || info.Phone == "" || info.Address == "" {
			return nil, apperrors.New(apperrors.ErrValidation, "发货订单必须填写收货人、电话和地址")
		}
	}

	seen := make(map[int]bool, len(items))
	orderItems := make([]model.OrderItem, 0, len(items))
	var subtotal float64

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, apperrors.New(apperrors.ErrValidation, "商品数量必须大于0")
		}
		if seen[item.BookID] {
			return nil, apperrors.New(apperrors.ErrValidation, "同一本书不能重复出现在订单里")
		}
		seen[item.BookID] = true

		book, err := s.bookRepo.GetByID(item.BookID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询图书失败", err)
		}
		if book == nil {
			return nil, apperrors.New(apperrors.ErrBookNotFound, fmt.Sprintf("图书不存在: %d", item.BookID))
		}
		if book.Stock < item.Quantity {
			return nil, apperrors.New(apperrors.ErrInsufficientStock,
				fmt.Sprintf("《%s》库存不足", book.Title))
		}

		orderItems = append(orderItems, model.OrderItem{
			BookID:    book.ID,
			Title:     book.Title,
			Format:    book.Format,
			UnitPrice: book.Price,
			Quantity:  item.Quantity,
			Image:     book.ImageURL,
		})
		subtotal += book.Price * float64(item.Quantity)
	}

	var shippingFee float64
	if orderType == model.OrderTypeShipping {
		shippingFee = config.AppConfig.ShippingFee
	}

	order := &model.Order{
		UserID:        userID,
		Items:         orderItems,
		Subtotal:      subtotal,
		ShippingFee:   shippingFee,
		Total:         subtotal + shippingFee,
		OrderType:     orderType,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusUnpaid,
		CustomerInfo:  info,
	}

	if err := s.orderRepo.Create(order); err != nil {
		if err == interfaces.ErrInsufficientStock {
			// 并发下单把库存抢光了
			return nil, apperrors.New(apperrors.ErrInsufficientStock, "库存不足")
		}
		util.Logger.Error("创建订单失败", zap.Error(err), zap.Int("user_id", userID))
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "创建订单失败", err)
	}

	s.feed.Publish(changefeed.Event{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Kind:        "created",
	})

	util.Logger.Info("订单创建成功",
		zap.Int("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("order_type", string(order.OrderType)))
	return order, nil
}

// GetOrder 获取单个订单，非管理员只能看自己的
func (s *OrderService) GetOrder(orderID, requesterID int, isAdmin bool) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	if order == nil {
		return nil, apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
	}
	if !isAdmin && order.UserID != requesterID {
		return nil, apperrors.New(apperrors.ErrForbidden, "无权查看该订单")
	}
	return order, nil
}

// GetOrdersForUser 获取用户订单列表，orderType 为空时返回全部
func (s *OrderService) GetOrdersForUser(userID int, orderType model.OrderType) ([]*model.Order, error) {
	orders, err := s.orderRepo.ListByUser(userID, orderType)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单列表失败", err)
	}
	return orders, nil
}

// UpdateCustomerInfo 修改收货信息。
// 只允许订单主人在订单还没确认、还没付款时改。
// version 来自客户端读到的订单版本，过期的改动会被拒绝。
func (s *OrderService) UpdateCustomerInfo(orderID, userID, version int, info model.CustomerInfo) (*model.Order, error) {
	if info.Name == "" || info.Phone == "" || info.Address == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "收货人、电话和地址都不能为空")
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单失败", err)
	}
	if order == nil {
		return nil, apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
	}
	if order.UserID != userID {
		return nil, apperrors.New(apperrors.ErrForbidden, "无权修改该订单")
	}
	if order.Status != model.OrderStatusPending {
		return nil, apperrors.New(apperrors.ErrInvalidState, "订单已确认，收货信息不可修改")
	}
	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil, apperrors.New(apperrors.ErrInvalidState, "订单已付款，收货信息不可修改")
	}

	patch := &model.OrderPatch{CustomerInfo: &info}
	if err := applyOrderPatch(s.orderRepo, s.feed, order, version, patch, "customer_info_updated"); err != nil {
		return nil, err
	}
	return order, nil
}

// GetChangesSince 返回 since 之后有变更的订单，用于客户端轮询刷新
func (s *OrderService) GetChangesSince(since time.Time, userID int) ([]*model.Order, error) {
	orders, err := s.orderRepo.ChangedSince(since, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询订单变更失败", err)
	}
	return orders, nil
}

// applyOrderPatch 是订单字段变更的统一出口：走乐观锁更新、
// 套用补丁到内存副本、发布变化事件。付款和发货流程也走这里。
func applyOrderPatch(repo interfaces.OrderRepository, feed changefeed.Publisher,
	order *model.Order, version int, patch *model.OrderPatch, kind string) error {
	err := repo.Update(order.ID, version, patch)
	if err != nil {
		switch err {
		case interfaces.ErrVersionConflict:
			return apperrors.New(apperrors.ErrStaleVersion, "订单已被其他操作修改，请刷新后重试")
		case sql.ErrNoRows:
			return apperrors.New(apperrors.ErrOrderNotFound, "订单不存在")
		default:
			util.Logger.Error("更新订单失败", zap.Error(err), zap.Int("order_id", order.ID))
			return apperrors.Wrap(apperrors.ErrDatabase, "更新订单失败", err)
		}
	}

	patch.Apply(order)
	order.Version = version + 1
	order.UpdatedAt = time.Now()

	feed.Publish(changefeed.Event{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Kind:        kind,
	})
	return nil
}
