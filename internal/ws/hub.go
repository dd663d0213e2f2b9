// Package ws keeps the live picture of who is connected and who is looking
// at which order, and fans separation events out to them. State is process
// local; a restart rebuilds it from reconnecting clients.
package ws

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AccessCloser closes a user's open order-access sessions when their
// socket drops. *db.DB satisfies it.
type AccessCloser interface {
	LeaveAllAccesses(userID int64) (int, error)
}

// Hub is the connection registry and broadcast fan-out. One mutex guards
// both maps; socket writes never happen under it.
type Hub struct {
	access AccessCloser

	mu      sync.Mutex
	conns   map[int64]*client            // by user ID, at most one live socket per operator
	members map[int64]map[int64]struct{} // order ID to set of member user IDs
}

func NewHub(access AccessCloser) *Hub {
	return &Hub{
		access:  access,
		conns:   make(map[int64]*client),
		members: make(map[int64]map[int64]struct{}),
	}
}

// Serve registers the socket and pumps frames until the connection drops.
// It blocks for the lifetime of the connection, so the HTTP handler calls
// it last.
func (h *Hub) Serve(conn Conn, userID int64, userName string) {
	c := h.connect(conn, userID, userName)
	go c.writePump()
	c.readPump()
	h.disconnect(c)
}

// connect records the socket. A user reconnecting from a second tab
// replaces their previous socket in place: membership is preserved and no
// presence events fire, because as far as the fleet is concerned the user
// never left.
func (h *Hub) connect(conn Conn, userID int64, userName string) *client {
	c := &client{
		hub:         h,
		conn:        conn,
		userID:      userID,
		userName:    userName,
		connID:      uuid.NewString(),
		connectedAt: time.Now().UTC(),
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
	}

	h.mu.Lock()
	old := h.conns[userID]
	if old != nil {
		c.currentOrder = old.currentOrder
		old.stop()
	}
	h.conns[userID] = c
	h.mu.Unlock()

	if old != nil {
		old.conn.Close()
		log.Printf("[WS] user %d (%s) reconnected, previous socket replaced", userID, userName)
		return c
	}

	log.Printf("[WS] user %d (%s) connected", userID, userName)
	h.broadcastAll(EventUserJoined, fleetPresence{UserID: userID, UserName: userName}, userID)
	return c
}

// disconnect tears c down if it still owns the user's registry slot. A
// socket that was already replaced by a reconnect no longer matches by
// connection ID, so its late teardown is a no-op.
func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	cur := h.conns[c.userID]
	if cur == nil || cur.connID != c.connID {
		h.mu.Unlock()
		c.conn.Close()
		return
	}
	delete(h.conns, c.userID)
	orderID := c.currentOrder
	if orderID != 0 {
		h.removeMemberLocked(orderID, c.userID)
		c.currentOrder = 0
	}
	c.stop()
	h.mu.Unlock()

	c.conn.Close()
	if n, err := h.access.LeaveAllAccesses(c.userID); err != nil {
		log.Printf("[WS] close access sessions for user %d: %v", c.userID, err)
	} else if n > 0 {
		log.Printf("[WS] user %d disconnect closed %d access session(s)", c.userID, n)
	}
	log.Printf("[WS] user %d (%s) disconnected", c.userID, c.userName)

	if orderID != 0 {
		h.broadcastOrder(orderID, EventUserLeft, orderPresence{OrderID: orderID, UserID: c.userID, UserName: c.userName}, c.userID)
	}
	h.broadcastAll(EventUserLeft, fleetPresence{UserID: c.userID, UserName: c.userName}, c.userID)
}

// JoinOrder marks the user present in an order's coordination channel.
// Re-joining the current order is a no-op; switching orders leaves the
// previous one first.
func (h *Hub) JoinOrder(userID, orderID int64) {
	h.mu.Lock()
	c := h.conns[userID]
	if c == nil || c.currentOrder == orderID {
		h.mu.Unlock()
		return
	}
	prev := c.currentOrder
	if prev != 0 {
		h.removeMemberLocked(prev, userID)
	}
	set := h.members[orderID]
	if set == nil {
		set = make(map[int64]struct{})
		h.members[orderID] = set
	}
	set[userID] = struct{}{}
	c.currentOrder = orderID
	name := c.userName
	h.mu.Unlock()

	if prev != 0 {
		log.Printf("[WS] user %d (%s) left order %d", userID, name, prev)
		h.broadcastOrder(prev, EventUserLeft, orderPresence{OrderID: prev, UserID: userID, UserName: name}, userID)
	}
	log.Printf("[WS] user %d (%s) joined order %d", userID, name, orderID)
	h.broadcastOrder(orderID, EventUserJoined, orderPresence{OrderID: orderID, UserID: userID, UserName: name}, userID)
}

// LeaveOrder removes the user from an order's channel. Leaving an order
// the user is not in is a no-op; clients fire those on navigation races.
func (h *Hub) LeaveOrder(userID, orderID int64) {
	h.mu.Lock()
	c := h.conns[userID]
	if c == nil || c.currentOrder != orderID {
		h.mu.Unlock()
		return
	}
	h.removeMemberLocked(orderID, userID)
	c.currentOrder = 0
	name := c.userName
	h.mu.Unlock()

	log.Printf("[WS] user %d (%s) left order %d", userID, name, orderID)
	h.broadcastOrder(orderID, EventUserLeft, orderPresence{OrderID: orderID, UserID: userID, UserName: name}, userID)
}

// removeMemberLocked drops a user from an order's member set and reclaims
// the set when it empties. Caller holds h.mu.
func (h *Hub) removeMemberLocked(orderID, userID int64) {
	set := h.members[orderID]
	delete(set, userID)
	if len(set) == 0 {
		delete(h.members, orderID)
	}
}

// UsersInOrder snapshots an order's live presence for the REST surface,
// ordered by user ID for stable output.
func (h *Hub) UsersInOrder(orderID int64) []Member {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.members[orderID]
	out := make([]Member, 0, len(set))
	for userID := range set {
		c := h.conns[userID]
		if c == nil {
			continue
		}
		out = append(out, Member{
			UserID:      userID,
			UserName:    c.userName,
			ConnectedAt: c.connectedAt.Format(time.RFC3339),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// BroadcastToAll sends an event to every connected operator.
func (h *Hub) BroadcastToAll(eventType string, data interface{}) {
	h.broadcastAll(eventType, data, 0)
}

// BroadcastToOrder sends an event to the operators inside one order.
func (h *Hub) BroadcastToOrder(orderID int64, eventType string, data interface{}) {
	h.broadcastOrder(orderID, eventType, data, 0)
}

func (h *Hub) broadcastAll(eventType string, data interface{}, exclude int64) {
	payload, err := envelope(eventType, data)
	if err != nil {
		log.Printf("[WS] drop %s broadcast: %v", eventType, err)
		return
	}
	h.mu.Lock()
	targets := make([]*client, 0, len(h.conns))
	for userID, c := range h.conns {
		if userID == exclude {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()
	h.deliver(targets, payload)
}

func (h *Hub) broadcastOrder(orderID int64, eventType string, data interface{}, exclude int64) {
	payload, err := envelope(eventType, data)
	if err != nil {
		log.Printf("[WS] drop %s broadcast: %v", eventType, err)
		return
	}
	h.mu.Lock()
	set := h.members[orderID]
	targets := make([]*client, 0, len(set))
	for userID := range set {
		if userID == exclude {
			continue
		}
		if c := h.conns[userID]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()
	h.deliver(targets, payload)
}

// deliver enqueues a serialized frame outside the registry lock so one
// slow socket cannot stall the fan-out. A full queue means the client
// stopped draining; treat it like a dead socket.
func (h *Hub) deliver(targets []*client, payload []byte) {
	for _, c := range targets {
		select {
		case c.send <- payload:
		case <-c.done:
		default:
			log.Printf("[WS] user %d send queue full, dropping connection", c.userID)
			h.disconnect(c)
		}
	}
}
