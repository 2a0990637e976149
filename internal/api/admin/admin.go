package admin

import (
	"strconv"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler 后台管理接口
type AdminHandler struct {
	adminService       *service.AdminService
	userService        *service.UserService
	fulfillmentService *service.FulfillmentService
	analytics          *errors.ErrorAnalytics
}

// NewAdminHandler 创建一个新的 AdminHandler 实例
func NewAdminHandler(
	adminService *service.AdminService,
	userService *service.UserService,
	fulfillmentService *service.FulfillmentService,
	analytics *errors.ErrorAnalytics,
) *AdminHandler {
	return &AdminHandler{
		adminService:       adminService,
		userService:        userService,
		fulfillmentService: fulfillmentService,
		analytics:          analytics,
	}
}

// GetOrders 订单总览，?page= ?page_size= ?status= ?search=
func (h *AdminHandler) GetOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orders, total, err := h.adminService.GetOrders(page, pageSize, c.Query("status"), c.Query("search"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{
		"orders": orders,
		"total":  total,
		"page":   page,
	}, "")
}

// GetPendingPayments 待核验付款队列
func (h *AdminHandler) GetPendingPayments(c *gin.Context) {
	orders, err := h.adminService.GetPendingPayments()
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"orders": orders}, "")
}

// ShipOrder 发货，请求体带快递单号
func (h *AdminHandler) ShipOrder(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单ID"))
		return
	}

	var req struct {
		TrackingNumber string `json:"tracking_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "必须填写快递单号", err))
		return
	}

	order, err := h.fulfillmentService.ShipOrder(orderID, req.TrackingNumber)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "订单已发货")
}

// CancelOrder 取消订单并释放库存
func (h *AdminHandler) CancelOrder(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单ID"))
		return
	}

	order, err := h.fulfillmentService.CancelOrder(orderID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "订单已取消")
}

// SetShippingFee 为协商好运费的订单设置运费
func (h *AdminHandler) SetShippingFee(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单ID"))
		return
	}

	var req struct {
		ShippingFee *float64 `json:"shipping_fee" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "必须填写运费", err))
		return
	}

	order, err := h.fulfillmentService.SetShippingFee(orderID, *req.ShippingFee)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "运费已设置")
}

// GetStats 运营统计
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetStats()
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"stats": stats}, "")
}

// GetUsers 用户列表
func (h *AdminHandler) GetUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	users, err := h.userService.GetUsers(page, pageSize)
	if err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrDatabase, "获取用户列表失败", err))
		return
	}

	errors.HandleSuccess(c, gin.H{"users": users}, "")
}

// UpdateUserRole 修改用户角色
func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的用户ID"))
		return
	}

	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的请求数据", err))
		return
	}

	if err := h.userService.UpdateUserRole(userID, req.Role); err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, nil, "用户角色已更新")
}

// GetErrorStats 错误统计，用于排查线上问题
func (h *AdminHandler) GetErrorStats(c *gin.Context) {
	errors.HandleSuccess(c, h.analytics.GetStats(), "")
}
