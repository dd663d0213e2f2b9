package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendBuffer bounds the per-client outbound queue; a client that lets
	// it fill is dropped rather than buffered without limit.
	sendBuffer = 32

	// writeWait bounds a single socket write.
	writeWait = 5 * time.Second
)

// Conn is the socket surface the hub drives. *websocket.Conn satisfies it;
// tests substitute an in-memory fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client is one live socket. currentOrder and the stop flag are guarded by
// the hub mutex; the pumps own their respective socket directions.
type client struct {
	hub         *Hub
	conn        Conn
	userID      int64
	userName    string
	connID      string // distinguishes this socket from a replaced predecessor
	connectedAt time.Time

	send chan []byte
	done chan struct{}

	currentOrder int64 // 0 means browsing the board
	stopped      bool
}

// stop wakes the write pump and anything blocked on done. Called under the
// hub mutex so the channel closes exactly once.
func (c *client) stop() {
	if !c.stopped {
		c.stopped = true
		close(c.done)
	}
}

// writePump drains the send queue onto the socket. A failed or timed-out
// write demotes the connection to disconnected.
func (c *client) writePump() {
	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[WS] write to user %d failed: %v", c.userID, err)
				c.hub.disconnect(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump consumes client frames until the socket dies. A frame that is
// not JSON at all is a protocol violation and closes the socket; a valid
// frame with an unknown type is logged and ignored.
func (c *client) readPump() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[WS] unreadable frame from user %d: %v", c.userID, err)
			c.closeWith(websocket.CloseInternalServerErr, "unreadable message")
			return
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg inbound) {
	switch msg.Type {
	case "join_order":
		var ref orderRef
		if err := json.Unmarshal(msg.Data, &ref); err != nil || ref.OrderID == 0 {
			log.Printf("[WS] join_order without order_id from user %d", c.userID)
			return
		}
		c.hub.JoinOrder(c.userID, ref.OrderID)
	case "leave_order":
		var ref orderRef
		if err := json.Unmarshal(msg.Data, &ref); err != nil || ref.OrderID == 0 {
			log.Printf("[WS] leave_order without order_id from user %d", c.userID)
			return
		}
		c.hub.LeaveOrder(c.userID, ref.OrderID)
	case "ping":
		var probe pingProbe
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &probe); err != nil {
				probe.Timestamp = nil
			}
		}
		c.pong(probe.Timestamp)
	default:
		log.Printf("[WS] unknown message type %q from user %d", msg.Type, c.userID)
	}
}

// pong answers a liveness probe to the originating socket only, echoing
// the client's timestamp.
func (c *client) pong(ts json.RawMessage) {
	data := map[string]json.RawMessage{}
	if len(ts) > 0 {
		data["timestamp"] = ts
	}
	payload, err := envelope(EventPong, data)
	if err != nil {
		return
	}
	c.hub.deliver([]*client{c}, payload)
}

// closeWith sends a close frame with the given code before the caller
// tears the connection down.
func (c *client) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
