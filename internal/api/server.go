// Package api is the HTTP surface of the separation service: the REST
// routes under /api/v1 plus the live order feed WebSocket. Handlers decode
// requests, call the services, and translate service errors into status
// codes and machine-readable error codes; business rules live in the
// services themselves.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"pmcell-separacao/internal/auth"
	"pmcell-separacao/internal/config"
	"pmcell-separacao/internal/db"
	"pmcell-separacao/internal/orders"
	"pmcell-separacao/internal/pdfparse"
	"pmcell-separacao/internal/ws"
)

// Server is the HTTP API server that connects the PDF parser, order
// service, auth service, and presence hub.
type Server struct {
	cfg     *config.Config
	db      *db.DB
	auth    *auth.Service
	orders  *orders.Service
	parser  *pdfparse.Parser
	hub     *ws.Hub
	version string
}

// NewServer creates a Server over the given services.
func NewServer(cfg *config.Config, database *db.DB, authSvc *auth.Service, orderSvc *orders.Service, parser *pdfparse.Parser, hub *ws.Hub, version string) *Server {
	return &Server{
		cfg:     cfg,
		db:      database,
		auth:    authSvc,
		orders:  orderSvc,
		parser:  parser,
		hub:     hub,
		version: version,
	}
}

// Handler returns the HTTP handler with all API routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	// Auth
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/me", s.withAuth(s.handleMe))
	mux.HandleFunc("POST /api/v1/auth/logout", s.withAuth(s.handleLogout))
	// User administration
	mux.HandleFunc("GET /api/v1/users", s.withRole(s.handleListUsers, db.RoleAdmin))
	mux.HandleFunc("POST /api/v1/users", s.withRole(s.handleCreateUser, db.RoleAdmin))
	mux.HandleFunc("GET /api/v1/users/{id}", s.withRole(s.handleGetUser, db.RoleAdmin))
	mux.HandleFunc("PUT /api/v1/users/{id}", s.withRole(s.handleUpdateUser, db.RoleAdmin))
	mux.HandleFunc("DELETE /api/v1/users/{id}", s.withRole(s.handleDeleteUser, db.RoleAdmin))
	// Orders
	mux.HandleFunc("POST /api/v1/orders/upload", s.withAuth(s.handleUpload))
	mux.HandleFunc("POST /api/v1/orders/confirm", s.withAuth(s.handleConfirm))
	mux.HandleFunc("GET /api/v1/orders", s.withAuth(s.handleListOrders))
	mux.HandleFunc("GET /api/v1/orders/stats", s.withAuth(s.handleStats))
	mux.HandleFunc("GET /api/v1/orders/purchase-items", s.withAuth(s.handlePurchaseQueue))
	mux.HandleFunc("PATCH /api/v1/orders/purchase-items/{id}/complete", s.withRole(s.handleCompletePurchase, db.RoleBuyer, db.RoleAdmin))
	mux.HandleFunc("GET /api/v1/orders/{id}", s.withAuth(s.handleGetOrder))
	mux.HandleFunc("GET /api/v1/orders/{id}/detail", s.withAuth(s.handleOrderDetail))
	mux.HandleFunc("GET /api/v1/orders/{id}/accesses", s.withAuth(s.handleOrderAccesses))
	mux.HandleFunc("GET /api/v1/orders/{id}/active-users", s.withAuth(s.handleActiveUsers))
	mux.HandleFunc("PATCH /api/v1/orders/{id}/items", s.withAuth(s.handleBatchItems))
	mux.HandleFunc("PATCH /api/v1/orders/{id}/items/{itemID}/purchase", s.withAuth(s.handleSendToPurchase))
	mux.HandleFunc("POST /api/v1/orders/{id}/complete", s.withRole(s.handleCompleteOrder, db.RoleAdmin, db.RoleSeparator))
	// Live order feed
	mux.HandleFunc("GET /ws/orders", s.handleOrderSocket)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError emits the API error body: a human-readable detail plus a
// machine-readable code clients can branch on.
func writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": detail, "code": code})
}

// writeOrderError maps order service errors onto status and error codes.
func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		writeError(w, 404, "ORDER_NOT_FOUND", "order not found")
	case errors.Is(err, orders.ErrItemNotInOrder):
		writeError(w, 404, "ITEM_NOT_IN_ORDER", "item does not belong to this order")
	case errors.Is(err, orders.ErrDuplicateOrderNumber):
		writeError(w, 400, "DUPLICATE_ORDER_NUMBER", "an order with this number already exists")
	case errors.Is(err, orders.ErrAlreadyCompleted):
		writeError(w, 400, "ALREADY_COMPLETED", "order is already completed")
	case errors.Is(err, orders.ErrAlreadySentToPurchase):
		writeError(w, 400, "ALREADY_SENT_TO_PURCHASE", "item is already in the purchase queue")
	case errors.Is(err, orders.ErrPurchaseNotFound):
		writeError(w, 404, "PURCHASE_NOT_FOUND", "purchase item not found")
	case errors.Is(err, orders.ErrPurchaseCompleted):
		writeError(w, 400, "ALREADY_COMPLETED", "purchase item is already completed")
	case errors.Is(err, orders.ErrInvalidInput):
		writeError(w, 400, "VALIDATION_ERROR", err.Error())
	default:
		log.Printf("[API] %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
	}
}

type ctxKey int

const userCtxKey ctxKey = 0

// requestUser returns the authenticated user stored by withAuth.
func requestUser(r *http.Request) *db.User {
	u, _ := r.Context().Value(userCtxKey).(*db.User)
	return u
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// withAuth resolves the bearer token into the acting user before invoking
// next. Requests without a valid token never reach the handler.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, 401, "NOT_AUTHENTICATED", "missing bearer token")
			return
		}
		user, err := s.auth.Authenticate(token)
		if err != nil {
			if errors.Is(err, auth.ErrUserInactive) {
				writeError(w, 403, "USER_INACTIVE", "user account is deactivated")
				return
			}
			writeError(w, 401, "NOT_AUTHENTICATED", "invalid or expired token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userCtxKey, user)))
	}
}

// withRole additionally requires the acting user to hold one of the roles.
func (s *Server) withRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return s.withAuth(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireRole(requestUser(r), roles...); err != nil {
			writeError(w, 403, "PERMISSION_DENIED", "insufficient role")
			return
		}
		next(w, r)
	})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		log.Printf("[API] health check: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(503)
		json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "version": s.version, "database": "down"})
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "version": s.version, "database": "up"})
}
