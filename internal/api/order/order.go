package order

import (
	"strconv"
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/service"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OrderHandler 处理订单相关的HTTP请求
type OrderHandler struct {
	orderService       *service.OrderService
	fulfillmentService *service.FulfillmentService
}

// NewOrderHandler 创建一个新的 OrderHandler 实例
func NewOrderHandler(orderService *service.OrderService, fulfillmentService *service.FulfillmentService) *OrderHandler {
	return &OrderHandler{
		orderService:       orderService,
		fulfillmentService: fulfillmentService,
	}
}

// CreateOrder 创建订单
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID := c.GetInt("user_id")

	var req struct {
		OrderType    string                    `json:"order_type" binding:"required"`
		Items        []service.CreateOrderItem `json:"items" binding:"required"`
		CustomerInfo model.CustomerInfo        `json:"customer_info"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Logger.Warn("创建订单失败，无效的请求数据", zap.Error(err))
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的请求数据", err))
		return
	}

	order, err := h.orderService.CreateOrder(userID, model.OrderType(req.OrderType), req.Items, req.CustomerInfo)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "订单创建成功")
}

// ListMyOrders 获取当前用户的订单列表，?type=shipping|pile 可选
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID := c.GetInt("user_id")
	orderType := model.OrderType(c.Query("type"))

	if orderType != "" && orderType != model.OrderTypeShipping && orderType != model.OrderTypePile {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单类型"))
		return
	}

	orders, err := h.orderService.GetOrdersForUser(userID, orderType)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"orders": orders}, "")
}

// GetOrder 获取单个订单
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单ID"))
		return
	}

	order, err := h.orderService.GetOrder(orderID, c.GetInt("user_id"), c.GetBool("is_admin"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "")
}

// UpdateCustomerInfo 修改收货信息，请求必须带上读到的订单版本号
func (h *OrderHandler) UpdateCustomerInfo(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单ID"))
		return
	}

	var req struct {
		Version      int                `json:"version" binding:"required"`
		CustomerInfo model.CustomerInfo `json:"customer_info" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的请求数据", err))
		return
	}

	order, err := h.orderService.UpdateCustomerInfo(orderID, c.GetInt("user_id"), req.Version, req.CustomerInfo)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "收货信息已更新")
}

// CompleteOrder 完成订单
func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单ID"))
		return
	}

	order, err := h.fulfillmentService.CompleteOrder(orderID, c.GetInt("user_id"), c.GetBool("is_admin"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "订单已完成")
}

// ConvertPileToShipping 囤货单转发货单
func (h *OrderHandler) ConvertPileToShipping(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单ID"))
		return
	}

	var req struct {
		Version      int                `json:"version" binding:"required"`
		CustomerInfo model.CustomerInfo `json:"customer_info" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的请求数据", err))
		return
	}

	order, err := h.fulfillmentService.ConvertPileToShipping(orderID, c.GetInt("user_id"), req.Version, req.CustomerInfo)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "已转为发货订单")
}

// GetChanges 轮询接口：返回 ?since=RFC3339 之后有变化的本人订单
func (h *OrderHandler) GetChanges(c *gin.Context) {
	sinceParam := c.Query("since")
	if sinceParam == "" {
		errors.HandleError(c, errors.New(errors.ErrValidation, "缺少 since 参数"))
		return
	}
	since, err := time.Parse(time.RFC3339, sinceParam)
	if err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的时间格式", err))
		return
	}

	orders, err := h.orderService.GetChangesSince(since, c.GetInt("user_id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{
		"orders": orders,
		"now":    time.Now().Format(time.RFC3339),
	}, "")
}
