package mysql

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/common"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/model"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/repository/interfaces"
	"github.com/Jamemaniquiz/BOOKNEST-sub000/internal/util"

	"go.uber.org/zap"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db}
}

const orderColumns = `id, order_number, user_id, subtotal, shipping_fee, total,
	order_type, status, payment_status,
	customer_name, customer_phone, customer_address,
	payment_screenshot, payment_submitted_at, payment_verified_at,
	payment_rejected_at, payment_rejection_reason,
	penalty_applied, tracking_number, shipped_date,
	version, order_date, updated_at`

// Create 在一个事务中扣减库存并插入订单和明细。
// 库存扣减带 stock >= ? 条件，扣不动说明库存不足，整个事务回滚。
func (r *OrderRepository) Create(order *model.Order) error {
	util.Logger.Info("开始创建订单",
		zap.Int("user_id", order.UserID),
		zap.String("order_type", string(order.OrderType)),
		zap.Int("item_count", len(order.Items)))

	tx, err := r.db.Begin()
	if err != nil {
		util.Logger.Error("开始事务失败", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	// 先扣库存，扣不动直接失败
	for _, item := range order.Items {
		result, err := tx.Exec(
			`UPDATE books SET stock = stock - ?, updated_at = NOW() WHERE id = ? AND stock >= ?`,
			item.Quantity, item.BookID, item.Quantity)
		if err != nil {
			util.Logger.Error("扣减库存失败", zap.Error(err), zap.Int("book_id", item.BookID))
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			util.Logger.Warn("库存不足",
				zap.Int("book_id", item.BookID),
				zap.Int("quantity", item.Quantity))
			return interfaces.ErrInsufficientStock
		}
	}

	now := time.Now()
	order.OrderDate = now
	order.UpdatedAt = now
	order.Version = 1

	query := `INSERT INTO orders (order_number, user_id, subtotal, shipping_fee, total,
			order_type, status, payment_status,
			customer_name, customer_phone, customer_address,
			penalty_applied, version, order_date, updated_at)
		  VALUES ('TEMP', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 1, ?, ?)`

	result, err := tx.Exec(query,
		order.UserID, order.Subtotal, order.ShippingFee, order.Total,
		order.OrderType, order.Status, order.PaymentStatus,
		order.CustomerInfo.Name, order.CustomerInfo.Phone, order.CustomerInfo.Address,
		order.OrderDate, order.UpdatedAt)
	if err != nil {
		util.Logger.Error("插入订单记录失败", zap.Error(err))
		return fmt.Errorf("failed to insert order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		util.Logger.Error("获取订单ID失败", zap.Error(err))
		return fmt.Errorf("failed to get order ID: %w", err)
	}
	order.ID = int(id)

	// 生成并更新订单编号
	orderNumber := generateOrderNumber(order.ID)
	if _, err = tx.Exec(`UPDATE orders SET order_number = ? WHERE id = ?`, orderNumber, order.ID); err != nil {
		util.Logger.Error("更新订单编号失败", zap.Error(err), zap.Int("order_id", order.ID))
		return fmt.Errorf("failed to update order number: %w", err)
	}
	order.OrderNumber = orderNumber

	for i := range order.Items {
		item := &order.Items[i]
		itemResult, err := tx.Exec(
			`INSERT INTO order_items (order_id, book_id, title, format, unit_price, quantity, image)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			order.ID, item.BookID, item.Title, item.Format, item.UnitPrice, item.Quantity, item.Image)
		if err != nil {
			util.Logger.Error("插入订单明细失败", zap.Error(err), zap.Int("book_id", item.BookID))
			return fmt.Errorf("failed to insert order item: %w", err)
		}
		itemID, err := itemResult.LastInsertId()
		if err != nil {
			return err
		}
		item.ID = int(itemID)
		item.OrderID = order.ID
	}

	if err := tx.Commit(); err != nil {
		util.Logger.Error("提交事务失败", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	util.Logger.Info("订单创建成功",
		zap.Int("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Float64("total", order.Total))
	return nil
}

// generateOrderNumber 生成订单编号
// 格式: BN-年份-6位序号，例如: BN-2026-000042
func generateOrderNumber(orderID int) string {
	year := time.Now().Year()
	return fmt.Sprintf("BN-%d-%06d", year, orderID)
}

func (r *OrderRepository) GetByID(id int) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order, err := scanOrder(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		util.Logger.Error("查询订单失败", zap.Error(err), zap.Int("order_id", id))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := r.loadItems(order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) ListByUser(userID int, orderType model.OrderType) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ?`
	args := []interface{}{userID}
	if orderType != "" {
		query += ` AND order_type = ?`
		args = append(args, orderType)
	}
	query += ` ORDER BY order_date DESC`

	return r.queryOrders(query, args...)
}

func (r *OrderRepository) ListForAdmin(page, pageSize int, status, search string) ([]*model.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	where := []string{"1=1"}
	args := []interface{}{}
	if status != "" {
		where = append(where, "status = ?")
		args = append(args, status)
	}
	if search != "" {
		where = append(where, "(order_number LIKE ? OR customer_name LIKE ?)")
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	condition := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM orders WHERE `+condition, args...).Scan(&total); err != nil {
		util.Logger.Error("统计订单数量失败", zap.Error(err))
		return nil, 0, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + condition +
		` ORDER BY order_date DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	orders, err := r.queryOrders(query, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepository) ListPendingPayments() ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE payment_status = ? ORDER BY payment_submitted_at ASC`
	return r.queryOrders(query, model.PaymentStatusPaying)
}

func (r *OrderRepository) ListPenaltyCandidates(before time.Time) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE status IN (?, ?) AND payment_status IN (?, ?)
		  AND penalty_applied = 0 AND order_date < ?`

	// 罚金清扫在后台定时跑，连接抖动时重试而不是等下一轮
	var orders []*model.Order
	err := common.WithRetry(func() error {
		var qerr error
		orders, qerr = r.queryOrders(query,
			model.OrderStatusPending, model.OrderStatusConfirmed,
			model.PaymentStatusUnpaid, model.PaymentStatusPaying,
			before)
		return qerr
	}, 3)
	return orders, err
}

// Update 按 id+version 条件更新补丁中的非空字段，并将版本号加一。
// 没有命中任何行时区分两种情况：订单不存在返回 sql.ErrNoRows，
// 否则说明版本已过期，返回 ErrVersionConflict。
func (r *OrderRepository) Update(id, version int, patch *model.OrderPatch) error {
	set := []string{"version = version + 1", "updated_at = NOW()"}
	args := []interface{}{}

	appendField := func(column string, value interface{}) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}

	if patch.Status != nil {
		appendField("status", *patch.Status)
	}
	if patch.PaymentStatus != nil {
		appendField("payment_status", *patch.PaymentStatus)
	}
	if patch.OrderType != nil {
		appendField("order_type", *patch.OrderType)
	}
	if patch.CustomerInfo != nil {
		appendField("customer_name", patch.CustomerInfo.Name)
		appendField("customer_phone", patch.CustomerInfo.Phone)
		appendField("customer_address", patch.CustomerInfo.Address)
	}
	if patch.ShippingFee != nil {
		appendField("shipping_fee", *patch.ShippingFee)
	}
	if patch.Total != nil {
		appendField("total", *patch.Total)
	}
	if patch.PaymentScreenshot != nil {
		appendField("payment_screenshot", *patch.PaymentScreenshot)
	}
	if patch.PaymentSubmittedAt != nil {
		appendField("payment_submitted_at", *patch.PaymentSubmittedAt)
	}
	if patch.PaymentVerifiedAt != nil {
		appendField("payment_verified_at", *patch.PaymentVerifiedAt)
	}
	if patch.PaymentRejectedAt != nil {
		appendField("payment_rejected_at", *patch.PaymentRejectedAt)
	}
	if patch.PaymentRejectionReason != nil {
		appendField("payment_rejection_reason", *patch.PaymentRejectionReason)
	}
	if patch.PenaltyApplied != nil {
		appendField("penalty_applied", *patch.PenaltyApplied)
	}
	if patch.TrackingNumber != nil {
		appendField("tracking_number", *patch.TrackingNumber)
	}
	if patch.ShippedDate != nil {
		appendField("shipped_date", *patch.ShippedDate)
	}

	query := `UPDATE orders SET ` + strings.Join(set, ", ") + ` WHERE id = ? AND version = ?`
	args = append(args, id, version)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		util.Logger.Error("更新订单失败", zap.Error(err), zap.Int("order_id", id))
		return fmt.Errorf("failed to update order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := r.db.QueryRow(`SELECT 1 FROM orders WHERE id = ?`, id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return sql.ErrNoRows
			}
			return err
		}
		util.Logger.Warn("订单版本冲突，拒绝过期写入",
			zap.Int("order_id", id),
			zap.Int("stale_version", version))
		return interfaces.ErrVersionConflict
	}
	return nil
}

// CancelAndRestock 取消订单并恢复库存。
// 状态条件写进 UPDATE 里，保证库存只在真正进入 cancelled 的那一次恢复。
func (r *OrderRepository) CancelAndRestock(id, version int) error {
	util.Logger.Info("开始取消订单", zap.Int("order_id", id))

	tx, err := r.db.Begin()
	if err != nil {
		util.Logger.Error("开始事务失败", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE orders SET status = ?, version = version + 1, updated_at = NOW()
		 WHERE id = ? AND version = ? AND status IN (?, ?)`,
		model.OrderStatusCancelled, id, version,
		model.OrderStatusPending, model.OrderStatusConfirmed)
	if err != nil {
		util.Logger.Error("更新订单状态失败", zap.Error(err), zap.Int("order_id", id))
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRow(`SELECT 1 FROM orders WHERE id = ?`, id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return sql.ErrNoRows
			}
			return err
		}
		return interfaces.ErrVersionConflict
	}

	rows, err := tx.Query(`SELECT book_id, quantity FROM order_items WHERE order_id = ?`, id)
	if err != nil {
		util.Logger.Error("查询订单明细失败", zap.Error(err), zap.Int("order_id", id))
		return err
	}
	type restock struct {
		bookID   int
		quantity int
	}
	var restocks []restock
	for rows.Next() {
		var rs restock
		if err := rows.Scan(&rs.bookID, &rs.quantity); err != nil {
			rows.Close()
			return err
		}
		restocks = append(restocks, rs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, rs := range restocks {
		if _, err := tx.Exec(
			`UPDATE books SET stock = stock + ?, updated_at = NOW() WHERE id = ?`,
			rs.quantity, rs.bookID); err != nil {
			util.Logger.Error("恢复库存失败", zap.Error(err), zap.Int("book_id", rs.bookID))
			return fmt.Errorf("failed to restore stock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		util.Logger.Error("提交事务失败", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	util.Logger.Info("订单已取消，库存已恢复",
		zap.Int("order_id", id),
		zap.Int("restocked_items", len(restocks)))
	return nil
}

func (r *OrderRepository) ChangedSince(since time.Time, userID int) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE updated_at > ?`
	args := []interface{}{since}
	if userID != 0 {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY updated_at ASC`
	return r.queryOrders(query, args...)
}

func (r *OrderRepository) Stats() (*model.OrderStats, error) {
	stats := &model.OrderStats{}

	// 空表时 SUM 返回 NULL，全部兜底成 0
	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN payment_status = ? THEN total ELSE 0 END), 0),
		       COALESCE(SUM(status = ?), 0),
		       COALESCE(SUM(payment_status = ?), 0),
		       COALESCE(SUM(order_type = ? AND status NOT IN (?, ?)), 0)
		FROM orders`,
		model.PaymentStatusPaid,
		model.OrderStatusPending,
		model.PaymentStatusPaying,
		model.OrderTypePile,
		model.OrderStatusCancelled, model.OrderStatusCompleted,
	).Scan(&stats.TotalOrders, &stats.TotalSales, &stats.PendingOrders,
		&stats.PendingPayments, &stats.PileOrders)
	if err != nil {
		util.Logger.Error("统计订单数据失败", zap.Error(err))
		return nil, err
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var order model.Order
	var screenshot, rejectionReason, trackingNumber sql.NullString
	var submittedAt, verifiedAt, rejectedAt, shippedDate sql.NullTime

	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID,
		&order.Subtotal, &order.ShippingFee, &order.Total,
		&order.OrderType, &order.Status, &order.PaymentStatus,
		&order.CustomerInfo.Name, &order.CustomerInfo.Phone, &order.CustomerInfo.Address,
		&screenshot, &submittedAt, &verifiedAt,
		&rejectedAt, &rejectionReason,
		&order.PenaltyApplied, &trackingNumber, &shippedDate,
		&order.Version, &order.OrderDate, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	// 处理可能为 NULL 的字段
	order.PaymentScreenshot = screenshot.String
	order.PaymentRejectionReason = rejectionReason.String
	order.TrackingNumber = trackingNumber.String
	if submittedAt.Valid {
		order.PaymentSubmittedAt = &submittedAt.Time
	}
	if verifiedAt.Valid {
		order.PaymentVerifiedAt = &verifiedAt.Time
	}
	if rejectedAt.Valid {
		order.PaymentRejectedAt = &rejectedAt.Time
	}
	if shippedDate.Valid {
		order.ShippedDate = &shippedDate.Time
	}
	return &order, nil
}

func (r *OrderRepository) queryOrders(query string, args ...interface{}) ([]*model.Order, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		util.Logger.Error("查询订单列表失败", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		if err := r.loadItems(order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *OrderRepository) loadItems(order *model.Order) error {
	rows, err := r.db.Query(
		`SELECT id, order_id, book_id, title, format, unit_price, quantity, image
		 FROM order_items WHERE order_id = ? ORDER BY id ASC`, order.ID)
	if err != nil {
		util.Logger.Error("查询订单明细失败", zap.Error(err), zap.Int("order_id", order.ID))
		return err
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.BookID,
			&item.Title, &item.Format, &item.UnitPrice, &item.Quantity, &item.Image); err != nil {
			return err
		}
		items = append(items, item)
	}
	order.Items = items
	return rows.Err()
}
