package service

import (
	apperrors "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/interfaces"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"go.uber.org/zap"
)

// AdminService 后台管理：订单总览、待核验付款队列、运营统计
type AdminService struct {
	orderRepo interfaces.OrderRepository
	bookRepo  interfaces.BookRepository
	userRepo  interfaces.UserRepository
}

// NewAdminService 创建一个新的 AdminService 实例
func NewAdminService(
	orderRepo interfaces.OrderRepository,
	bookRepo interfaces.BookRepository,
	userRepo interfaces.UserRepository,
) *AdminService {
	return &AdminService{
		orderRepo: orderRepo,
		bookRepo:  bookRepo,
		userRepo:  userRepo,
	}
}

// GetOrders 分页获取订单，支持按状态过滤和按订单号/收货人搜索
func (s *AdminService) GetOrders(page, pageSize int, status, search string) ([]*model.Order, int, error) {
	orders, total, err := s.orderRepo.ListForAdmin(page, pageSize, status, search)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrDatabase, "查询订单列表失败", err)
	}
	return orders, total, nil
}

// GetPendingPayments 获取待人工核验付款截图的订单队列
func (s *AdminService) GetPendingPayments() ([]*model.Order, error) {
	orders, err := s.orderRepo.ListPendingPayments()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询待核验付款失败", err)
	}
	return orders, nil
}

// GetStats 汇总系统统计数据
func (s *AdminService) GetStats() (*model.SystemStats, error) {
	orderStats, err := s.orderRepo.Stats()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "统计订单数据失败", err)
	}

	userCount, err := s.userRepo.Count()
	if err != nil {
		util.Logger.Error("统计用户数量失败", zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "统计用户数量失败", err)
	}

	bookCount, err := s.bookRepo.Count()
	if err != nil {
		util.Logger.Error("统计图书数量失败", zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "统计图书数量失败", err)
	}

	return &model.SystemStats{
		TotalUsers:      userCount,
		TotalBooks:      bookCount,
		TotalOrders:     orderStats.TotalOrders,
		TotalSales:      orderStats.TotalSales,
		PendingOrders:   orderStats.PendingOrders,
		PendingPayments: orderStats.PendingPayments,
		PileOrders:      orderStats.PileOrders,
	}, nil
}
