package orders

// Event types pushed to separation clients. Item events go to the order's
// members; order_updated, order_completed and new_order go to the fleet.
const (
	EventItemSeparated      = "item_separated"
	EventItemSentToPurchase = "item_sent_to_purchase"
	EventItemNotSent        = "item_not_sent"
	EventOrderUpdated       = "order_updated"
	EventOrderCompleted     = "order_completed"
	EventNewOrder           = "new_order"
)

// Publisher is the broadcast surface the service emits through; the
// websocket hub implements it. Envelope framing and serialization are the
// publisher's concern.
type Publisher interface {
	BroadcastToOrder(orderID int64, eventType string, data interface{})
	BroadcastToAll(eventType string, data interface{})
}

// ItemProgressData is the payload of item_separated and item_not_sent:
// the progress value is a snapshot taken right after that update applied,
// so a batch yields a strictly advancing sequence.
type ItemProgressData struct {
	OrderID            int64   `json:"order_id"`
	ItemID             int64   `json:"item_id"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// ItemQueuedData is the payload of item_sent_to_purchase, which carries
// no progress because queueing an item does not advance it.
type ItemQueuedData struct {
	OrderID int64 `json:"order_id"`
	ItemID  int64 `json:"item_id"`
}

type OrderProgressData struct {
	OrderID            int64   `json:"order_id"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

type OrderCompletedData struct {
	OrderID int64 `json:"order_id"`
}

type NewOrderData struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	ClientName  string `json:"client_name"`
}

// pendingEvent is an event decided inside a batch transaction and held
// until commit; a rolled-back batch publishes nothing.
type pendingEvent struct {
	eventType string
	data      interface{}
}
