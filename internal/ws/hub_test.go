package ws

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeConn scripts inbound frames and records what the hub writes back.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu         sync.Mutex
	wrote      [][]byte
	failWrites bool
	closeCode  int
	closeText  string
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case raw := <-f.frames:
		return websocket.TextMessage, raw, nil
	case <-f.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("connection closed")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("broken pipe")
	}
	f.wrote = append(f.wrote, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		f.mu.Lock()
		f.closeCode = int(binary.BigEndian.Uint16(data[:2]))
		f.closeText = string(data[2:])
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) feed(frame string) { f.frames <- []byte(frame) }

func (f *fakeConn) envelopes(t *testing.T) []Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.wrote))
	for _, raw := range f.wrote {
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad frame %q: %v", raw, err)
		}
		out = append(out, env)
	}
	return out
}

type fakeAccess struct {
	mu    sync.Mutex
	swept []int64
}

func (f *fakeAccess) LeaveAllAccesses(userID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swept = append(f.swept, userID)
	return 1, nil
}

func (f *fakeAccess) sweptUsers() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.swept...)
}

func newTestHub() (*Hub, *fakeAccess) {
	access := &fakeAccess{}
	return NewHub(access), access
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func connectUser(t *testing.T, h *Hub, id int64, name string) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	go h.Serve(conn, id, name)
	waitFor(t, "registration", func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		c := h.conns[id]
		return c != nil && c.conn == conn
	})
	return conn
}

func waitEnvelopes(t *testing.T, conn *fakeConn, n int) []Envelope {
	t.Helper()
	var evs []Envelope
	waitFor(t, "frames", func() bool {
		evs = conn.envelopes(t)
		return len(evs) >= n
	})
	return evs
}

func joinOrder(t *testing.T, h *Hub, userID, orderID int64) {
	t.Helper()
	h.JoinOrder(userID, orderID)
	waitFor(t, "membership", func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		_, ok := h.members[orderID][userID]
		return ok
	})
}

func field(t *testing.T, env Envelope, key string) interface{} {
	t.Helper()
	m, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("event %s data = %T", env.Type, env.Data)
	}
	return m[key]
}

func TestConnectAnnouncesToFleet(t *testing.T) {
	h, _ := newTestHub()
	alice := connectUser(t, h, 1, "Alice")
	bruno := connectUser(t, h, 2, "Bruno")

	evs := waitEnvelopes(t, alice, 1)
	if evs[0].Type != EventUserJoined {
		t.Fatalf("type = %q", evs[0].Type)
	}
	if id, _ := field(t, evs[0], "user_id").(float64); id != 2 {
		t.Errorf("user_id = %v", field(t, evs[0], "user_id"))
	}
	if name, _ := field(t, evs[0], "user_name").(string); name != "Bruno" {
		t.Errorf("user_name = %v", field(t, evs[0], "user_name"))
	}
	if _, err := time.Parse(time.RFC3339, evs[0].Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", evs[0].Timestamp, err)
	}

	// The newly connected user does not hear their own arrival.
	time.Sleep(20 * time.Millisecond)
	if got := bruno.envelopes(t); len(got) != 0 {
		t.Errorf("second user received %+v", got)
	}
}

func TestJoinOrderPresence(t *testing.T) {
	h, _ := newTestHub()
	alice := connectUser(t, h, 1, "Alice")
	bruno := connectUser(t, h, 2, "Bruno")
	waitEnvelopes(t, alice, 1) // Bruno's fleet arrival

	joinOrder(t, h, 1, 42)
	// Joining through the frame protocol, not the method, for one user.
	bruno.feed(`{"type":"join_order","data":{"order_id":42}}`)
	waitFor(t, "membership", func() bool {
		return len(h.UsersInOrder(42)) == 2
	})

	evs := waitEnvelopes(t, alice, 2)
	joined := evs[1]
	if joined.Type != EventUserJoined {
		t.Fatalf("type = %q", joined.Type)
	}
	if oid, _ := field(t, joined, "order_id").(float64); oid != 42 {
		t.Errorf("order_id = %v", field(t, joined, "order_id"))
	}
	if id, _ := field(t, joined, "user_id").(float64); id != 2 {
		t.Errorf("user_id = %v", field(t, joined, "user_id"))
	}

	members := h.UsersInOrder(42)
	if len(members) != 2 || members[0].UserID != 1 || members[1].UserID != 2 {
		t.Fatalf("members = %+v", members)
	}
	if members[1].UserName != "Bruno" || members[1].ConnectedAt == "" {
		t.Errorf("member = %+v", members[1])
	}

	// Re-joining the same order emits nothing.
	before := len(alice.envelopes(t))
	h.JoinOrder(2, 42)
	time.Sleep(20 * time.Millisecond)
	if after := len(alice.envelopes(t)); after != before {
		t.Errorf("duplicate join emitted %d extra frames", after-before)
	}
}

func TestJoinSwitchLeavesPreviousOrder(t *testing.T) {
	h, _ := newTestHub()
	alice := connectUser(t, h, 1, "Alice")
	connectUser(t, h, 2, "Bruno")
	waitEnvelopes(t, alice, 1)
	joinOrder(t, h, 1, 10)
	joinOrder(t, h, 2, 10)
	waitEnvelopes(t, alice, 2) // Bruno joined order 10

	joinOrder(t, h, 2, 11)

	evs := waitEnvelopes(t, alice, 3)
	left := evs[2]
	if left.Type != EventUserLeft {
		t.Fatalf("type = %q", left.Type)
	}
	if oid, _ := field(t, left, "order_id").(float64); oid != 10 {
		t.Errorf("order_id = %v", field(t, left, "order_id"))
	}

	if members := h.UsersInOrder(10); len(members) != 1 || members[0].UserID != 1 {
		t.Errorf("order 10 members = %+v", members)
	}
	if members := h.UsersInOrder(11); len(members) != 1 || members[0].UserID != 2 {
		t.Errorf("order 11 members = %+v", members)
	}
}

func TestLeaveOrderReclaimsEmptySet(t *testing.T) {
	h, _ := newTestHub()
	alice := connectUser(t, h, 1, "Alice")
	connectUser(t, h, 2, "Bruno")
	waitEnvelopes(t, alice, 1)
	joinOrder(t, h, 1, 42)
	joinOrder(t, h, 2, 42)
	waitEnvelopes(t, alice, 2)

	h.LeaveOrder(2, 42)
	evs := waitEnvelopes(t, alice, 3)
	if evs[2].Type != EventUserLeft {
		t.Fatalf("type = %q", evs[2].Type)
	}

	// Leaving again, or leaving an order the user never joined, changes
	// nothing.
	h.LeaveOrder(2, 42)
	h.LeaveOrder(2, 99)
	time.Sleep(20 * time.Millisecond)
	if got := len(alice.envelopes(t)); got != 3 {
		t.Errorf("frames = %d, want 3", got)
	}

	h.LeaveOrder(1, 42)
	waitFor(t, "set reclaim", func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		_, ok := h.members[42]
		return !ok
	})
}

func TestBroadcastRouting(t *testing.T) {
	h, _ := newTestHub()
	alice := connectUser(t, h, 1, "Alice")
	bruno := connectUser(t, h, 2, "Bruno")
	carla := connectUser(t, h, 3, "Carla")
	joinOrder(t, h, 1, 42)
	joinOrder(t, h, 2, 43)

	aliceBase := len(waitEnvelopes(t, alice, 2))
	brunoBase := len(waitEnvelopes(t, bruno, 1))
	carlaBase := len(waitEnvelopes(t, carla, 0))

	h.BroadcastToOrder(42, "item_separated", map[string]interface{}{"order_id": 42, "item_id": 7})
	evs := waitEnvelopes(t, alice, aliceBase+1)
	if got := evs[len(evs)-1]; got.Type != "item_separated" {
		t.Fatalf("type = %q", got.Type)
	}
	time.Sleep(20 * time.Millisecond)
	if got := len(bruno.envelopes(t)); got != brunoBase {
		t.Errorf("order 43 member received an order 42 event")
	}
	if got := len(carla.envelopes(t)); got != carlaBase {
		t.Errorf("non-member received an order event")
	}

	h.BroadcastToAll("order_updated", map[string]interface{}{"order_id": 42})
	waitEnvelopes(t, alice, aliceBase+2)
	waitEnvelopes(t, bruno, brunoBase+1)
	waitEnvelopes(t, carla, carlaBase+1)
}

func TestReconnectReplacesSocketSilently(t *testing.T) {
	h, access := newTestHub()
	first := connectUser(t, h, 1, "Alice")
	bruno := connectUser(t, h, 2, "Bruno")
	joinOrder(t, h, 2, 42)
	joinOrder(t, h, 1, 42)
	waitEnvelopes(t, bruno, 1) // Alice joined order 42
	base := len(bruno.envelopes(t))

	// Second tab: same user, new socket.
	second := newFakeConn()
	go h.Serve(second, 1, "Alice")
	waitFor(t, "replacement", func() bool { return first.isClosed() })

	// Membership survives and nobody hears about it.
	if members := h.UsersInOrder(42); len(members) != 2 {
		t.Fatalf("members after reconnect = %+v", members)
	}
	time.Sleep(30 * time.Millisecond)
	if got := len(bruno.envelopes(t)); got != base {
		t.Errorf("reconnect leaked %d frames to the order", got-base)
	}
	if swept := access.sweptUsers(); len(swept) != 0 {
		t.Errorf("reconnect swept access sessions: %v", swept)
	}

	// Traffic lands on the replacement socket.
	h.BroadcastToOrder(42, "order_updated", map[string]interface{}{"order_id": 42})
	evs := waitEnvelopes(t, second, 1)
	if evs[len(evs)-1].Type != "order_updated" {
		t.Errorf("replacement socket frames = %+v", evs)
	}
}

func TestDisconnectSweepsPresenceAndAccess(t *testing.T) {
	h, access := newTestHub()
	alice := connectUser(t, h, 1, "Alice")
	bruno := connectUser(t, h, 2, "Bruno")
	joinOrder(t, h, 2, 42)
	joinOrder(t, h, 1, 42)
	waitEnvelopes(t, bruno, 1) // Alice joined order 42
	base := len(bruno.envelopes(t))

	alice.Close() // client hangs up

	evs := waitEnvelopes(t, bruno, base+2)
	orderLeft, fleetLeft := evs[base], evs[base+1]
	if orderLeft.Type != EventUserLeft || fleetLeft.Type != EventUserLeft {
		t.Fatalf("events = %+v", evs[base:])
	}
	if oid, _ := field(t, orderLeft, "order_id").(float64); oid != 42 {
		t.Errorf("first user_left order_id = %v", field(t, orderLeft, "order_id"))
	}
	if _, hasOrder := orderLeft.Data.(map[string]interface{})["order_id"]; !hasOrder {
		t.Errorf("order-level user_left missing order_id")
	}
	if _, hasOrder := fleetLeft.Data.(map[string]interface{})["order_id"]; hasOrder {
		t.Errorf("fleet user_left carries order_id")
	}

	if members := h.UsersInOrder(42); len(members) != 1 || members[0].UserID != 2 {
		t.Errorf("members = %+v", members)
	}
	waitFor(t, "access sweep", func() bool {
		swept := access.sweptUsers()
		return len(swept) == 1 && swept[0] == 1
	})
}

func TestPingPong(t *testing.T) {
	h, _ := newTestHub()
	alice := connectUser(t, h, 1, "Alice")
	bruno := connectUser(t, h, 2, "Bruno")
	waitEnvelopes(t, alice, 1)

	bruno.feed(`{"type":"ping","data":{"timestamp":1723456789}}`)

	evs := waitEnvelopes(t, bruno, 1)
	if evs[0].Type != EventPong {
		t.Fatalf("type = %q", evs[0].Type)
	}
	if ts, _ := field(t, evs[0], "timestamp").(float64); ts != 1723456789 {
		t.Errorf("timestamp = %v", field(t, evs[0], "timestamp"))
	}
	time.Sleep(20 * time.Millisecond)
	if got := alice.envelopes(t); len(got) != 1 {
		t.Errorf("pong leaked to the fleet: %+v", got)
	}
}

func TestUnknownMessageTypeIgnored(t *testing.T) {
	h, _ := newTestHub()
	alice := connectUser(t, h, 1, "Alice")

	alice.feed(`{"type":"subscribe_weather","data":{}}`)
	alice.feed(`{"type":"ping","data":{"timestamp":1}}`)

	// The unknown frame did not kill the connection: the ping after it
	// still answers.
	evs := waitEnvelopes(t, alice, 1)
	if evs[0].Type != EventPong {
		t.Errorf("frames = %+v", evs)
	}
}

func TestMalformedFrameClosesConnection(t *testing.T) {
	h, access := newTestHub()
	alice := connectUser(t, h, 1, "Alice")
	bruno := connectUser(t, h, 2, "Bruno")
	waitEnvelopes(t, alice, 1)

	alice.feed(`not json at all{{{`)

	waitFor(t, "close frame", func() bool {
		alice.mu.Lock()
		defer alice.mu.Unlock()
		return alice.closeCode != 0
	})
	alice.mu.Lock()
	code, text := alice.closeCode, alice.closeText
	alice.mu.Unlock()
	if code != websocket.CloseInternalServerErr || text != "unreadable message" {
		t.Errorf("close = %d %q", code, text)
	}

	waitFor(t, "unregistration", func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.conns[1] == nil
	})
	evs := waitEnvelopes(t, bruno, 1)
	if evs[len(evs)-1].Type != EventUserLeft {
		t.Errorf("frames = %+v", evs)
	}
	waitFor(t, "access sweep", func() bool { return len(access.sweptUsers()) == 1 })
}

func TestWriteFailureDropsConnection(t *testing.T) {
	h, _ := newTestHub()
	alice := connectUser(t, h, 1, "Alice")

	alice.mu.Lock()
	alice.failWrites = true
	alice.mu.Unlock()

	h.BroadcastToAll("order_updated", map[string]interface{}{"order_id": 1})

	waitFor(t, "drop", func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.conns[1] == nil
	})
	if !alice.isClosed() {
		t.Error("socket left open after write failure")
	}
}

func TestFullSendQueueDropsConnection(t *testing.T) {
	h, access := newTestHub()
	// Register without starting the write pump, so nothing drains the
	// queue.
	stalled := h.connect(newFakeConn(), 9, "Stalled")

	for i := 0; i <= sendBuffer; i++ {
		h.BroadcastToAll("order_updated", map[string]interface{}{"order_id": 1})
	}

	h.mu.Lock()
	_, connected := h.conns[9]
	h.mu.Unlock()
	if connected {
		t.Fatal("client with a full queue was not dropped")
	}
	if !stalled.conn.(*fakeConn).isClosed() {
		t.Error("socket left open")
	}
	if swept := access.sweptUsers(); len(swept) != 1 || swept[0] != 9 {
		t.Errorf("swept = %v", swept)
	}
}
