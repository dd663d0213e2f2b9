package db

import (
	"database/sql"
)

// OrderItem is one line of an order. The three facets are independent
// booleans, each with its own timestamp and operator reference.
type OrderItem struct {
	ID                 int64   `json:"id"`
	OrderID            int64   `json:"order_id"`
	ProductCode        string  `json:"product_code"`
	ProductReference   string  `json:"product_reference"`
	ProductName        string  `json:"product_name"`
	Quantity           int     `json:"quantity"`
	UnitPrice          float64 `json:"unit_price"`
	TotalPrice         float64 `json:"total_price"`
	IsSeparated        bool    `json:"is_separated"`
	SeparatedAt        *string `json:"separated_at"`
	SeparatedByID      *int64  `json:"separated_by_id"`
	SentToPurchase     bool    `json:"sent_to_purchase"`
	SentToPurchaseAt   *string `json:"sent_to_purchase_at"`
	SentToPurchaseByID *int64  `json:"sent_to_purchase_by_id"`
	NotSent            bool    `json:"not_sent"`
	NotSentAt          *string `json:"not_sent_at"`
	NotSentByID        *int64  `json:"not_sent_by_id"`
	NotSentReason      *string `json:"not_sent_reason"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

const itemColumns = `id, order_id, product_code, product_reference, product_name,
		quantity, unit_price, total_price,
		is_separated, separated_at, separated_by_id,
		sent_to_purchase, sent_to_purchase_at, sent_to_purchase_by_id,
		not_sent, not_sent_at, not_sent_by_id, not_sent_reason,
		created_at, updated_at`

func scanItem(row interface{ Scan(...interface{}) error }) (*OrderItem, error) {
	var it OrderItem
	var sepAt, purAt, nsAt, nsReason sql.NullString
	var sepBy, purBy, nsBy sql.NullInt64
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductCode, &it.ProductReference, &it.ProductName,
		&it.Quantity, &it.UnitPrice, &it.TotalPrice,
		&it.IsSeparated, &sepAt, &sepBy,
		&it.SentToPurchase, &purAt, &purBy,
		&it.NotSent, &nsAt, &nsBy, &nsReason,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.SeparatedAt = strPtr(sepAt)
	it.SeparatedByID = intPtr(sepBy)
	it.SentToPurchaseAt = strPtr(purAt)
	it.SentToPurchaseByID = intPtr(purBy)
	it.NotSentAt = strPtr(nsAt)
	it.NotSentByID = intPtr(nsBy)
	it.NotSentReason = strPtr(nsReason)
	return &it, nil
}

// InsertItemTx inserts an item inside tx and fills ID and timestamps.
func InsertItemTx(tx *sql.Tx, it *OrderItem) error {
	ts := now()
	res, err := tx.Exec(`
		INSERT INTO order_items (
			order_id, product_code, product_reference, product_name,
			quantity, unit_price, total_price, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		it.OrderID, it.ProductCode, it.ProductReference, it.ProductName,
		it.Quantity, it.UnitPrice, it.TotalPrice, ts, ts,
	)
	if err != nil {
		return err
	}
	it.ID, _ = res.LastInsertId()
	it.CreatedAt = ts
	it.UpdatedAt = ts
	return nil
}

// GetItem returns the item with the given id, or nil if none exists.
func (d *DB) GetItem(id int64) (*OrderItem, error) {
	it, err := scanItem(d.sql.QueryRow("SELECT "+itemColumns+" FROM order_items WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return it, err
}

// GetItemTx is GetItem inside an open transaction.
func GetItemTx(tx *sql.Tx, id int64) (*OrderItem, error) {
	it, err := scanItem(tx.QueryRow("SELECT "+itemColumns+" FROM order_items WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return it, err
}

// ListItems returns all items of an order, alphabetical by product name.
func (d *DB) ListItems(orderID int64) ([]OrderItem, error) {
	rows, err := d.sql.Query(
		"SELECT "+itemColumns+" FROM order_items WHERE order_id = ? ORDER BY product_name, id",
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	if out == nil {
		out = []OrderItem{}
	}
	return out, rows.Err()
}

// SaveItemTx rewrites the three facet groups of an item inside tx,
// stamping updated_at. Immutable product fields are left untouched.
func SaveItemTx(tx *sql.Tx, it *OrderItem) error {
	it.UpdatedAt = now()
	_, err := tx.Exec(`
		UPDATE order_items
		   SET is_separated = ?, separated_at = ?, separated_by_id = ?,
		       sent_to_purchase = ?, sent_to_purchase_at = ?, sent_to_purchase_by_id = ?,
		       not_sent = ?, not_sent_at = ?, not_sent_by_id = ?, not_sent_reason = ?,
		       updated_at = ?
		 WHERE id = ?
	`,
		it.IsSeparated, nullStr(it.SeparatedAt), nullInt(it.SeparatedByID),
		it.SentToPurchase, nullStr(it.SentToPurchaseAt), nullInt(it.SentToPurchaseByID),
		it.NotSent, nullStr(it.NotSentAt), nullInt(it.NotSentByID), nullStr(it.NotSentReason),
		it.UpdatedAt, it.ID,
	)
	return err
}
