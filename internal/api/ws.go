package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleOrderSocket upgrades the connection and authenticates via the
// token query parameter. Auth failures close the socket after the upgrade
// so browser clients can read the close reason.
func (s *Server) handleOrderSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade: %v", err)
		return
	}

	if token == "" {
		closeWithPolicy(conn, "Token required")
		return
	}
	user, err := s.auth.Authenticate(token)
	if err != nil {
		closeWithPolicy(conn, "Authentication failed")
		return
	}

	s.hub.Serve(conn, user.ID, user.Name)
}

func closeWithPolicy(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}
