package model

// OrderStats 订单维度的统计数据
type OrderStats struct {
	TotalOrders     int     `json:"total_orders"`
	TotalSales      float64 `json:"total_sales"`
	PendingOrders   int     `json:"pending_orders"`
	PendingPayments int     `json:"pending_payments"`
	PileOrders      int     `json:"pile_orders"`
}

// SystemStats 系统统计数据
type SystemStats struct {
	TotalUsers      int     `json:"total_users"`
	TotalBooks      int     `json:"total_books"`
	TotalOrders     int     `json:"total_orders"`
	TotalSales      float64 `json:"total_sales"`
	PendingOrders   int     `json:"pending_orders"`
	PendingPayments int     `json:"pending_payments"`
	PileOrders      int     `json:"pile_orders"`
}
