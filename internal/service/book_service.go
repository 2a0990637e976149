package service

import (
	apperrors "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/errors"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/interfaces"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"go.uber.org/zap"
)

var validFormats = map[string]bool{
	"paperback": true,
	"hardcover": true,
	"ebook":     true,
}

// BookService 处理图书目录的业务逻辑
type BookService struct {
	bookRepo interfaces.BookRepository
}

// NewBookService 创建一个新的 BookService 实例
func NewBookService(bookRepo interfaces.BookRepository) *BookService {
	return &BookService{bookRepo: bookRepo}
}

// CreateBook 上架新书
func (s *BookService) CreateBook(book *model.Book) error {
	if err := validateBook(book); err != nil {
		return err
	}
	if err := s.bookRepo.Create(book); err != nil {
		util.Logger.Error("创建图书失败", zap.Error(err), zap.String("title", book.Title))
		return apperrors.Wrap(apperrors.ErrDatabase, "创建图书失败", err)
	}
	return nil
}

// GetBook 获取单本图书
func (s *BookService) GetBook(id int) (*model.Book, error) {
	book, err := s.bookRepo.GetByID(id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "查询图书失败", err)
	}
	if book == nil {
		return nil, apperrors.New(apperrors.ErrBookNotFound, "图书不存在")
	}
	return book, nil
}

// ListBooks 分页获取图书列表，search 匹配书名或作者
func (s *BookService) ListBooks(page, pageSize int, search string) ([]*model.Book, int, error) {
	books, total, err := s.bookRepo.List(page, pageSize, search)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrDatabase, "查询图书列表失败", err)
	}
	return books, total, nil
}

// UpdateBook 更新图书信息
func (s *BookService) UpdateBook(book *model.Book) error {
	if err := validateBook(book); err != nil {
		return err
	}
	existing, err := s.GetBook(book.ID)
	if err != nil {
		return err
	}
	// 创建时间不允许改
	book.CreatedAt = existing.CreatedAt

	if err := s.bookRepo.Update(book); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "更新图书失败", err)
	}
	return nil
}

// RestockBook 补充库存
func (s *BookService) RestockBook(id, quantity int) error {
	if quantity <= 0 {
		return apperrors.New(apperrors.ErrValidation, "补货数量必须大于0")
	}
	if _, err := s.GetBook(id); err != nil {
		return err
	}
	if err := s.bookRepo.AdjustStock(id, quantity); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "补充库存失败", err)
	}
	util.Logger.Info("图书已补货", zap.Int("book_id", id), zap.Int("quantity", quantity))
	return nil
}

func validateBook(book *model.Book) error {
	if book.Title == "" {
		return apperrors.New(apperrors.ErrValidation, "书名不能为空")
	}
	if book.Author == "" {
		return apperrors.New(apperrors.ErrValidation, "作者不能为空")
	}
	if !validFormats[book.Format] {
		return apperrors.New(apperrors.ErrValidation, "无效的图书版本类型")
	}
	if book.Price <= 0 {
		return apperrors.New(apperrors.ErrValidation, "价格必须大于0")
	}
	if book.Stock < 0 {
		return apperrors.New(apperrors.ErrValidation, "库存不能为负数")
	}
	return nil
}
