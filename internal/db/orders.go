package db

import (
	"database/sql"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Order is a confirmed quotation undergoing separation. Counters are
// derived from order_items and rewritten on every batch.
type Order struct {
	ID              int64   `json:"id"`
	OrderNumber     string  `json:"order_number"`
	ClientName      string  `json:"client_name"`
	SellerName      string  `json:"seller_name"`
	OrderDate       string  `json:"order_date"`
	TotalValue      float64 `json:"total_value"`
	LogisticsType   *string `json:"logistics_type"`
	PackageType     *string `json:"package_type"`
	Observations    string  `json:"observations"`
	Status          string  `json:"status"`
	ItemsCount      int     `json:"items_count"`
	ItemsSeparated  int     `json:"items_separated"`
	ItemsInPurchase int     `json:"items_in_purchase"`
	ItemsNotSent    int     `json:"items_not_sent"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	CompletedAt     *string `json:"completed_at"`
}

const orderColumns = `id, order_number, client_name, seller_name, order_date, total_value,
		logistics_type, package_type, observations, status,
		items_count, items_separated, items_in_purchase, items_not_sent,
		created_at, updated_at, completed_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*Order, error) {
	var o Order
	var logistics, pkg, completed sql.NullString
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.ClientName, &o.SellerName, &o.OrderDate, &o.TotalValue,
		&logistics, &pkg, &o.Observations, &o.Status,
		&o.ItemsCount, &o.ItemsSeparated, &o.ItemsInPurchase, &o.ItemsNotSent,
		&o.CreatedAt, &o.UpdatedAt, &completed,
	)
	if err != nil {
		return nil, err
	}
	o.LogisticsType = strPtr(logistics)
	o.PackageType = strPtr(pkg)
	o.CompletedAt = strPtr(completed)
	return &o, nil
}

// InsertOrderTx inserts an order inside tx and fills ID and timestamps.
// A duplicate order_number surfaces as a UNIQUE violation.
func InsertOrderTx(tx *sql.Tx, o *Order) error {
	ts := now()
	if o.Status == "" {
		o.Status = StatusPending
	}
	res, err := tx.Exec(`
		INSERT INTO orders (
			order_number, client_name, seller_name, order_date, total_value,
			logistics_type, package_type, observations, status,
			items_count, items_separated, items_in_purchase, items_not_sent,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.OrderNumber, o.ClientName, o.SellerName, o.OrderDate, o.TotalValue,
		nullStr(o.LogisticsType), nullStr(o.PackageType), o.Observations, o.Status,
		o.ItemsCount, o.ItemsSeparated, o.ItemsInPurchase, o.ItemsNotSent,
		ts, ts,
	)
	if err != nil {
		return err
	}
	o.ID, _ = res.LastInsertId()
	o.CreatedAt = ts
	o.UpdatedAt = ts
	return nil
}

// GetOrder returns the order with the given id, or nil if none exists.
func (d *DB) GetOrder(id int64) (*Order, error) {
	o, err := scanOrder(d.sql.QueryRow("SELECT "+orderColumns+" FROM orders WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

// GetOrderTx is GetOrder inside an open transaction.
func GetOrderTx(tx *sql.Tx, id int64) (*Order, error) {
	o, err := scanOrder(tx.QueryRow("SELECT "+orderColumns+" FROM orders WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

// GetOrderByNumber returns the order with the given order_number, or nil.
func (d *DB) GetOrderByNumber(number string) (*Order, error) {
	o, err := scanOrder(d.sql.QueryRow("SELECT "+orderColumns+" FROM orders WHERE order_number = ?", number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

// ListOrders returns one page of orders, newest first, optionally filtered
// by status, plus the unpaged total.
func (d *DB) ListOrders(status string, page, perPage int) ([]Order, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, status)
	}

	var total int
	if err := d.sql.QueryRow("SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := d.sql.Query(
		"SELECT "+orderColumns+" FROM orders"+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, perPage, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	if out == nil {
		out = []Order{}
	}
	return out, total, rows.Err()
}

// RecountOrderTx recounts item facets for an order from its rows.
func RecountOrderTx(tx *sql.Tx, orderID int64) (separated, inPurchase, notSent, total int, err error) {
	err = tx.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(is_separated), 0),
		       COALESCE(SUM(sent_to_purchase), 0),
		       COALESCE(SUM(not_sent), 0)
		  FROM order_items
		 WHERE order_id = ?
	`, orderID).Scan(&total, &separated, &inPurchase, &notSent)
	return
}

// UpdateOrderStateTx rewrites the derived counters, status and
// completed_at for an order inside tx, stamping updated_at.
func UpdateOrderStateTx(tx *sql.Tx, o *Order) error {
	o.UpdatedAt = now()
	_, err := tx.Exec(`
		UPDATE orders
		   SET items_count = ?, items_separated = ?, items_in_purchase = ?, items_not_sent = ?,
		       status = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?
	`,
		o.ItemsCount, o.ItemsSeparated, o.ItemsInPurchase, o.ItemsNotSent,
		o.Status, nullStr(o.CompletedAt), o.UpdatedAt, o.ID,
	)
	return err
}

// OrderStats aggregates the dashboard counters.
type OrderStats struct {
	TotalOrders        int     `json:"total_orders"`
	PendingOrders      int     `json:"pending_orders"`
	InProgressOrders   int     `json:"in_progress_orders"`
	CompletedOrders    int     `json:"completed_orders"`
	CancelledOrders    int     `json:"cancelled_orders"`
	TotalItems         int     `json:"total_items"`
	SeparatedItems     int     `json:"separated_items"`
	PurchaseItems      int     `json:"purchase_items"`
	NotSentItems       int     `json:"not_sent_items"`
	AvgSeparationHours float64 `json:"average_separation_time_hours"`
}

// OrderStatsSince computes order/item totals plus the average
// creation-to-completion time over orders completed after cutoff
// (RFC3339). Cutoff applies only to the average.
func (d *DB) OrderStatsSince(cutoff string) (*OrderStats, error) {
	var s OrderStats
	err := d.sql.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(status = 'pending'), 0),
		       COALESCE(SUM(status = 'in_progress'), 0),
		       COALESCE(SUM(status = 'completed'), 0),
		       COALESCE(SUM(status = 'cancelled'), 0),
		       COALESCE(SUM(items_count), 0),
		       COALESCE(SUM(items_separated), 0),
		       COALESCE(SUM(items_in_purchase), 0),
		       COALESCE(SUM(items_not_sent), 0)
		  FROM orders
	`).Scan(
		&s.TotalOrders, &s.PendingOrders, &s.InProgressOrders, &s.CompletedOrders, &s.CancelledOrders,
		&s.TotalItems, &s.SeparatedItems, &s.PurchaseItems, &s.NotSentItems,
	)
	if err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	err = d.sql.QueryRow(`
		SELECT AVG((julianday(completed_at) - julianday(created_at)) * 24)
		  FROM orders
		 WHERE status = 'completed' AND completed_at IS NOT NULL AND completed_at >= ?
	`, cutoff).Scan(&avg)
	if err != nil {
		return nil, err
	}
	if avg.Valid {
		s.AvgSeparationHours = avg.Float64
	}
	return &s, nil
}
