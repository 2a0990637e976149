package payment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/service"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/storage"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 付款截图最大 5MB
const maxScreenshotSize = 5 << 20

// PaymentHandler 处理付款凭证相关的HTTP请求
type PaymentHandler struct {
	paymentService *service.PaymentService
	storage        storage.FileStorage
}

// NewPaymentHandler 创建一个新的 PaymentHandler 实例
func NewPaymentHandler(paymentService *service.PaymentService, storage storage.FileStorage) *PaymentHandler {
	return &PaymentHandler{paymentService, storage}
}

// SubmitProof 上传付款截图。multipart 表单：screenshot 文件 + version 字段。
func (h *PaymentHandler) SubmitProof(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单ID"))
		return
	}

	version, err := strconv.Atoi(c.PostForm("version"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "缺少订单版本号"))
		return
	}

	file, err := c.FormFile("screenshot")
	if err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "缺少付款截图", err))
		return
	}
	if file.Size > maxScreenshotSize {
		errors.HandleError(c, errors.New(errors.ErrValidation, "付款截图不能超过5MB"))
		return
	}
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		errors.HandleError(c, errors.New(errors.ErrValidation, "付款截图必须是图片"))
		return
	}

	// 先确认订单能收凭证，再上传，免得被拒时留下孤儿文件
	if err := h.paymentService.CanSubmitProof(orderID, c.GetInt("user_id")); err != nil {
		errors.HandleError(c, err)
		return
	}

	path := fmt.Sprintf("payments/%d/%s", orderID, util.GenerateUniqueFilename(file.Filename))
	screenshotPath, err := h.storage.UploadFile(file, path)
	if err != nil {
		util.Logger.Error("保存付款截图失败", zap.Error(err), zap.Int("order_id", orderID))
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "保存付款截图失败", err))
		return
	}

	order, err := h.paymentService.SubmitPaymentProof(orderID, c.GetInt("user_id"), version, screenshotPath)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "付款凭证已提交，等待核验")
}

// ApprovePayment 管理员核验通过
func (h *PaymentHandler) ApprovePayment(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单ID"))
		return
	}

	order, err := h.paymentService.ApprovePayment(orderID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "付款已确认")
}

// RejectPayment 管理员核验不通过
func (h *PaymentHandler) RejectPayment(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的订单ID"))
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "必须填写拒绝原因", err))
		return
	}

	order, err := h.paymentService.RejectPayment(orderID, req.Reason)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"order": order}, "付款已退回")
}
