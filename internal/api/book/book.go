package book

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/service"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/storage"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookHandler 处理图书目录相关的HTTP请求
type BookHandler struct {
	bookService *service.BookService
	storage     storage.FileStorage
}

// NewBookHandler 创建一个新的 BookHandler 实例
func NewBookHandler(bookService *service.BookService, storage storage.FileStorage) *BookHandler {
	return &BookHandler{bookService, storage}
}

// ListBooks 图书列表，?page= ?page_size= ?search=
func (h *BookHandler) ListBooks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	books, total, err := h.bookService.ListBooks(page, pageSize, c.Query("search"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{
		"books": books,
		"total": total,
		"page":  page,
	}, "")
}

// GetBook 获取单本图书
func (h *BookHandler) GetBook(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的图书ID"))
		return
	}

	book, err := h.bookService.GetBook(id)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"book": book}, "")
}

// CreateBook 上架新书（管理员），multipart 表单可带封面图
func (h *BookHandler) CreateBook(c *gin.Context) {
	book, err := h.bindBookForm(c, 0)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	if err := h.bookService.CreateBook(book); err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"book": book}, "图书创建成功")
}

// UpdateBook 更新图书信息（管理员）
func (h *BookHandler) UpdateBook(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的图书ID"))
		return
	}

	book, bindErr := h.bindBookForm(c, id)
	if bindErr != nil {
		errors.HandleError(c, bindErr)
		return
	}

	if err := h.bookService.UpdateBook(book); err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{"book": book}, "图书更新成功")
}

// RestockBook 补货（管理员）
func (h *BookHandler) RestockBook(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrValidation, "无效的图书ID"))
		return
	}

	var req struct {
		Quantity int `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "无效的补货数量", err))
		return
	}

	if err := h.bookService.RestockBook(id, req.Quantity); err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, nil, "补货成功")
}

// bindBookForm 解析图书表单，有封面图就上传并写入 ImageURL
func (h *BookHandler) bindBookForm(c *gin.Context, id int) (*model.Book, error) {
	var form struct {
		Title       string  `form:"title" binding:"required"`
		Author      string  `form:"author" binding:"required"`
		Description string  `form:"description"`
		Format      string  `form:"format" binding:"required"`
		Price       float64 `form:"price" binding:"required"`
		Stock       int     `form:"stock"`
		ImageURL    string  `form:"image_url"`
	}
	if err := c.ShouldBind(&form); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "无效的图书数据", err)
	}

	book := &model.Book{
		ID:          id,
		Title:       form.Title,
		Author:      form.Author,
		Description: form.Description,
		Format:      form.Format,
		Price:       form.Price,
		Stock:       form.Stock,
		ImageURL:    form.ImageURL,
	}

	file, err := c.FormFile("image")
	if err == nil {
		if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
			return nil, errors.New(errors.ErrValidation, "封面必须是图片")
		}
		path := fmt.Sprintf("books/%s", util.GenerateUniqueFilename(file.Filename))
		imageURL, err := h.storage.UploadFile(file, path)
		if err != nil {
			util.Logger.Error("上传封面失败", zap.Error(err))
			return nil, errors.Wrap(errors.ErrInternal, "上传封面失败", err)
		}
		book.ImageURL = imageURL
	}

	return book, nil
}
