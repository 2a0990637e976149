package user

import (
	"strconv"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/service"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProfileHandler 处理用户资料和收货地址相关的HTTP请求
type ProfileHandler struct {
	userService *service.UserService
}

// NewProfileHandler 创建一个新的 ProfileHandler 实例
func NewProfileHandler(userService *service.UserService) *ProfileHandler {
	return &ProfileHandler{userService}
}

// GetProfile 获取当前用户资料
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID := c.GetInt("user_id")
	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		util.Logger.Error("获取用户资料失败", zap.Error(err))
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{
		"user": user,
	}, "")
}

// UpdateProfile 更新当前用户资料
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	var updateData struct {
		Username string `json:"username" binding:"required"`
		Phone    string `json:"phone" binding:"omitempty,phone"`
	}
	if err := c.ShouldBindJSON(&updateData); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的请求数据", err))
		return
	}

	user := &model.User{
		ID:       userID,
		Username: updateData.Username,
		Phone:    updateData.Phone,
	}
	if err := h.userService.UpdateUser(user); err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, nil, "资料更新成功")
}

// CreateAddress 新增收货地址
func (h *ProfileHandler) CreateAddress(c *gin.Context) {
	userID := c.GetInt("user_id")

	var address model.UserAddress
	if err := c.ShouldBindJSON(&address); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的地址数据", err))
		return
	}
	address.UserID = userID

	if err := h.userService.CreateAddress(&address); err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"address": address}, "地址创建成功")
}

// ListAddresses 获取收货地址列表
func (h *ProfileHandler) ListAddresses(c *gin.Context) {
	userID := c.GetInt("user_id")

	addresses, err := h.userService.ListUserAddresses(userID)
	if err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrDatabase, "获取地址列表失败", err))
		return
	}

	errors.HandleSuccess(c, gin.H{"addresses": addresses}, "")
}

// UpdateAddress 更新收货地址
func (h *ProfileHandler) UpdateAddress(c *gin.Context) {
	userID := c.GetInt("user_id")
	addressID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的地址ID"))
		return
	}

	var address model.UserAddress
	if err := c.ShouldBindJSON(&address); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的地址数据", err))
		return
	}
	address.ID = addressID
	address.UserID = userID

	if err := h.userService.UpdateAddress(&address); err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, nil, "地址更新成功")
}

// DeleteAddress 删除收货地址
func (h *ProfileHandler) DeleteAddress(c *gin.Context) {
	userID := c.GetInt("user_id")
	addressID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的地址ID"))
		return
	}

	// 只能删自己的地址
	address, err := h.userService.GetAddressByID(addressID)
	if err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrDatabase, "查询地址失败", err))
		return
	}
	if address == nil || address.UserID != userID {
		errors.HandleError(c, errors.New(errors.ErrResourceNotFound, "地址不存在"))
		return
	}

	if err := h.userService.DeleteAddress(addressID); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrDatabase, "删除地址失败", err))
		return
	}

	errors.HandleSuccess(c, nil, "地址已删除")
}

// SetDefaultAddress 设置默认收货地址
func (h *ProfileHandler) SetDefaultAddress(c *gin.Context) {
	userID := c.GetInt("user_id")
	addressID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的地址ID"))
		return
	}

	if err := h.userService.SetDefaultAddress(userID, addressID); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrDatabase, "设置默认地址失败", err))
		return
	}

	errors.HandleSuccess(c, nil, "默认地址已更新")
}
