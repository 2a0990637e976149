package mysql

import (
	"testing"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func init() {
	util.InitLogger("error")
}

// TestStatsEmptyTable 空表时所有聚合列必须兜底成 0，
// 否则 SUM 返回的 NULL 会让 Scan 直接报错
func TestStatsEmptyTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewOrderRepository(db)

	// 逐列校验 COALESCE 都在，缺一个就会匹配失败
	mock.ExpectQuery(`SELECT COUNT\(\*\),\s*`+
		`COALESCE\(SUM\(CASE WHEN payment_status = \? THEN total ELSE 0 END\), 0\),\s*`+
		`COALESCE\(SUM\(status = \?\), 0\),\s*`+
		`COALESCE\(SUM\(payment_status = \?\), 0\),\s*`+
		`COALESCE\(SUM\(order_type = \? AND status NOT IN \(\?, \?\)\), 0\)\s*`+
		`FROM orders`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"total_orders", "total_sales", "pending_orders", "pending_payments", "pile_orders"}).
			AddRow(0, 0, 0, 0, 0))

	stats, err := repo.Stats()
	assert.NoError(t, err)
	assert.Equal(t, 0, stats.TotalOrders)
	assert.Equal(t, 0.0, stats.TotalSales)
	assert.Equal(t, 0, stats.PendingOrders)
	assert.Equal(t, 0, stats.PendingPayments)
	assert.Equal(t, 0, stats.PileOrders)
	assert.NoError(t, mock.ExpectationsWereMet())
}
