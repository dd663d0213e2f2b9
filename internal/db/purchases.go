package db

import (
	"database/sql"
)

// PurchaseItem is a purchase-queue entry, at most one per order item.
type PurchaseItem struct {
	ID              int64   `json:"id"`
	OrderItemID     int64   `json:"order_item_id"`
	RequestedAt     string  `json:"requested_at"`
	RequestedByID   int64   `json:"requested_by_id"`
	IsCompleted     bool    `json:"is_completed"`
	CompletedAt     *string `json:"completed_at"`
	CompletedByID   *int64  `json:"completed_by_id"`
	Notes           string  `json:"notes"`
	CompletionNotes string  `json:"completion_notes"`
}

// PurchaseQueueEntry is a purchase item joined with its product and
// order context for the buyer dashboard.
type PurchaseQueueEntry struct {
	PurchaseItem
	ProductCode string  `json:"product_code"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	OrderID     int64   `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	ClientName  string  `json:"client_name"`
}

// InsertPurchaseTx creates the queue entry for an item inside tx.
func InsertPurchaseTx(tx *sql.Tx, orderItemID, requestedByID int64, notes string) error {
	_, err := tx.Exec(`
		INSERT INTO purchase_items (order_item_id, requested_at, requested_by_id, notes)
		VALUES (?, ?, ?, ?)
	`, orderItemID, now(), requestedByID, notes)
	return err
}

// DeletePurchaseTx removes the queue entry of an item inside tx, if any.
func DeletePurchaseTx(tx *sql.Tx, orderItemID int64) error {
	_, err := tx.Exec("DELETE FROM purchase_items WHERE order_item_id = ?", orderItemID)
	return err
}

const purchaseColumns = "id, order_item_id, requested_at, requested_by_id, is_completed, completed_at, completed_by_id, notes, completion_notes"

func scanPurchase(row interface{ Scan(...interface{}) error }) (*PurchaseItem, error) {
	var p PurchaseItem
	var completedAt sql.NullString
	var completedBy sql.NullInt64
	err := row.Scan(
		&p.ID, &p.OrderItemID, &p.RequestedAt, &p.RequestedByID,
		&p.IsCompleted, &completedAt, &completedBy, &p.Notes, &p.CompletionNotes,
	)
	if err != nil {
		return nil, err
	}
	p.CompletedAt = strPtr(completedAt)
	p.CompletedByID = intPtr(completedBy)
	return &p, nil
}

// GetPurchaseItem returns the queue entry with the given id, or nil.
func (d *DB) GetPurchaseItem(id int64) (*PurchaseItem, error) {
	p, err := scanPurchase(d.sql.QueryRow("SELECT "+purchaseColumns+" FROM purchase_items WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetPurchaseByItem returns the queue entry of an order item, or nil.
func (d *DB) GetPurchaseByItem(orderItemID int64) (*PurchaseItem, error) {
	p, err := scanPurchase(d.sql.QueryRow("SELECT "+purchaseColumns+" FROM purchase_items WHERE order_item_id = ?", orderItemID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// CompletePurchase marks a queue entry fulfilled. The entry stays in the
// table; only the completion fields change.
func (d *DB) CompletePurchase(id, completedByID int64, completionNotes string) error {
	_, err := d.sql.Exec(`
		UPDATE purchase_items
		   SET is_completed = 1, completed_at = ?, completed_by_id = ?, completion_notes = ?
		 WHERE id = ?
	`, now(), completedByID, completionNotes, id)
	return err
}

// ListPurchaseQueue returns queue entries joined with item and order
// context, oldest request first. pendingOnly hides completed entries.
func (d *DB) ListPurchaseQueue(pendingOnly bool) ([]PurchaseQueueEntry, error) {
	query := `
		SELECT p.id, p.order_item_id, p.requested_at, p.requested_by_id,
		       p.is_completed, p.completed_at, p.completed_by_id, p.notes, p.completion_notes,
		       i.product_code, i.product_name, i.quantity, i.unit_price,
		       o.id, o.order_number, o.client_name
		  FROM purchase_items p
		  JOIN order_items i ON i.id = p.order_item_id
		  JOIN orders o ON o.id = i.order_id
	`
	if pendingOnly {
		query += " WHERE p.is_completed = 0"
	}
	query += " ORDER BY p.requested_at, p.id"

	rows, err := d.sql.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PurchaseQueueEntry
	for rows.Next() {
		var e PurchaseQueueEntry
		var completedAt sql.NullString
		var completedBy sql.NullInt64
		err := rows.Scan(
			&e.ID, &e.OrderItemID, &e.RequestedAt, &e.RequestedByID,
			&e.IsCompleted, &completedAt, &completedBy, &e.Notes, &e.CompletionNotes,
			&e.ProductCode, &e.ProductName, &e.Quantity, &e.UnitPrice,
			&e.OrderID, &e.OrderNumber, &e.ClientName,
		)
		if err != nil {
			return nil, err
		}
		e.CompletedAt = strPtr(completedAt)
		e.CompletedByID = intPtr(completedBy)
		out = append(out, e)
	}
	if out == nil {
		out = []PurchaseQueueEntry{}
	}
	return out, rows.Err()
}
