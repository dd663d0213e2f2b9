package ws

import (
	"encoding/json"
	"time"
)

// Server-to-client event types carried in the envelope. The item and order
// events originate in the separation service; the presence pair and pong
// originate here.
const (
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventPong       = "pong"
)

// Envelope is the frame sent to clients. Data is event-specific and the
// timestamp is stamped at serialization time.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

func envelope(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// inbound is a client frame. Data stays raw until the type is known.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// orderRef is the payload of join_order and leave_order.
type orderRef struct {
	OrderID int64 `json:"order_id"`
}

// pingProbe carries the client's own timestamp, echoed back verbatim in
// the pong so the client can measure the round trip. Raw because clients
// send either epoch millis or a string.
type pingProbe struct {
	Timestamp json.RawMessage `json:"timestamp"`
}

// fleetPresence announces a connection-level join or leave to everyone.
type fleetPresence struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

// orderPresence announces membership changes to the operators inside one
// order.
type orderPresence struct {
	OrderID  int64  `json:"order_id"`
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

// Member is one entry of an order's live presence snapshot.
type Member struct {
	UserID      int64  `json:"user_id"`
	UserName    string `json:"user_name"`
	ConnectedAt string `json:"connected_at"`
}
