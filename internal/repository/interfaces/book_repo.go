package interfaces

import "github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"

// BookRepository 接口定义了图书仓库应该实现的方法
type BookRepository interface {
	Create(book *model.Book) error
	GetByID(id int) (*model.Book, error)
	List(page, pageSize int, search string) ([]*model.Book, int, error)
	Update(book *model.Book) error
	Count() (int, error)
	// AdjustStock 调整库存，delta 可为负；扣减时不允许降到负数
	AdjustStock(id, delta int) error
}
