package mysql

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/interfaces"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"go.uber.org/zap"
)

type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db}
}

func (r *BookRepository) Create(book *model.Book) error {
	query := `INSERT INTO books (title, author, description, format, price, stock, image_url, created_at, updated_at)
		  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now

	result, err := r.db.Exec(query,
		book.Title, book.Author, book.Description, book.Format,
		book.Price, book.Stock, book.ImageURL, book.CreatedAt, book.UpdatedAt)
	if err != nil {
		util.Logger.Error("创建图书失败", zap.Error(err), zap.String("title", book.Title))
		return fmt.Errorf("failed to create book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get book ID: %w", err)
	}
	book.ID = int(id)

	util.Logger.Info("图书创建成功", zap.Int("book_id", book.ID), zap.String("title", book.Title))
	return nil
}

func (r *BookRepository) GetByID(id int) (*model.Book, error) {
	query := `SELECT id, title, author, description, format, price, stock, image_url, created_at, updated_at
		  FROM books WHERE id = ?`

	book := &model.Book{}
	err := r.db.QueryRow(query, id).Scan(
		&book.ID, &book.Title, &book.Author, &book.Description, &book.Format,
		&book.Price, &book.Stock, &book.ImageURL, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		util.Logger.Error("查询图书失败", zap.Error(err), zap.Int("book_id", id))
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

func (r *BookRepository) List(page, pageSize int, search string) ([]*model.Book, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	condition := "1=1"
	args := []interface{}{}
	if search != "" {
		condition = "(title LIKE ? OR author LIKE ?)"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM books WHERE `+condition, args...).Scan(&total); err != nil {
		util.Logger.Error("统计图书数量失败", zap.Error(err))
		return nil, 0, err
	}

	query := `SELECT id, title, author, description, format, price, stock, image_url, created_at, updated_at
		  FROM books WHERE ` + condition + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		util.Logger.Error("查询图书列表失败", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	var books []*model.Book
	for rows.Next() {
		book := &model.Book{}
		if err := rows.Scan(
			&book.ID, &book.Title, &book.Author, &book.Description, &book.Format,
			&book.Price, &book.Stock, &book.ImageURL, &book.CreatedAt, &book.UpdatedAt); err != nil {
			return nil, 0, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

func (r *BookRepository) Update(book *model.Book) error {
	query := `UPDATE books SET title = ?, author = ?, description = ?, format = ?,
		  price = ?, stock = ?, image_url = ?, updated_at = NOW() WHERE id = ?`

	_, err := r.db.Exec(query,
		book.Title, book.Author, book.Description, book.Format,
		book.Price, book.Stock, book.ImageURL, book.ID)
	if err != nil {
		util.Logger.Error("更新图书失败", zap.Error(err), zap.Int("book_id", book.ID))
		return fmt.Errorf("failed to update book: %w", err)
	}
	return nil
}

func (r *BookRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&count); err != nil {
		util.Logger.Error("统计图书数量失败", zap.Error(err))
		return 0, err
	}
	return count, nil
}

// AdjustStock 调整库存。delta 为负时带 stock >= -delta 条件，
// 防止并发扣减把库存打成负数。
func (r *BookRepository) AdjustStock(id, delta int) error {
	var result sql.Result
	var err error
	if delta < 0 {
		result, err = r.db.Exec(
			`UPDATE books SET stock = stock + ?, updated_at = NOW() WHERE id = ? AND stock >= ?`,
			delta, id, -delta)
	} else {
		result, err = r.db.Exec(
			`UPDATE books SET stock = stock + ?, updated_at = NOW() WHERE id = ?`,
			delta, id)
	}
	if err != nil {
		util.Logger.Error("调整库存失败", zap.Error(err), zap.Int("book_id", id), zap.Int("delta", delta))
		return fmt.Errorf("failed to adjust stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if delta < 0 {
			return interfaces.ErrInsufficientStock
		}
		return sql.ErrNoRows
	}
	return nil
}
