package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"pmcell-separacao/internal/auth"
	"pmcell-separacao/internal/db"
)

// --- Auth ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pin string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "VALIDATION_ERROR", "invalid json")
		return
	}
	req.Pin = strings.TrimSpace(req.Pin)
	if req.Pin == "" {
		writeError(w, 400, "VALIDATION_ERROR", "pin is required")
		return
	}

	token, user, err := s.auth.Login(req.Pin)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserInactive):
			writeError(w, 403, "USER_INACTIVE", "user account is deactivated")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, 401, "INVALID_CREDENTIALS", "invalid PIN")
		default:
			log.Printf("[AUTH] login: %v", err)
			writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	log.Printf("[AUTH] %s logged in (%s)", user.Name, user.Role)
	writeJSON(w, map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, requestUser(r))
}

// Tokens are stateless, so logout is an acknowledgment the client uses to
// drop its copy.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] %s logged out", requestUser(r).Name)
	writeJSON(w, map[string]string{"status": "ok"})
}

// --- User administration ---

type userPayload struct {
	Name     *string `json:"name"`
	Pin      *string `json:"pin"`
	Role     *string `json:"role"`
	PhotoURL *string `json:"photo_url"`
	IsActive *bool   `json:"is_active"`
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func validUserName(name string) bool {
	n := len(strings.TrimSpace(name))
	return n >= 2 && n <= 100
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.db.ListUsers()
	if err != nil {
		log.Printf("[API] list users: %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		return
	}
	writeJSON(w, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "VALIDATION_ERROR", "invalid json")
		return
	}
	if req.Name == nil || !validUserName(*req.Name) {
		writeError(w, 400, "VALIDATION_ERROR", "name must be 2 to 100 characters")
		return
	}
	if req.Pin == nil || !validPIN(*req.Pin) {
		writeError(w, 400, "VALIDATION_ERROR", "pin must be 4 to 6 digits")
		return
	}
	if req.Role == nil || !db.ValidRole(*req.Role) {
		writeError(w, 400, "VALIDATION_ERROR", "role must be admin, separator, seller or buyer")
		return
	}

	existing, err := s.db.GetUserByPin(*req.Pin)
	if err != nil {
		log.Printf("[API] create user: %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		return
	}
	if existing != nil {
		writeError(w, 400, "VALIDATION_ERROR", "a user with this PIN already exists")
		return
	}

	hash, err := auth.HashPIN(*req.Pin)
	if err != nil {
		log.Printf("[API] create user: %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		return
	}

	user := &db.User{
		Name:     strings.TrimSpace(*req.Name),
		Pin:      *req.Pin,
		PinHash:  hash,
		Role:     *req.Role,
		PhotoURL: req.PhotoURL,
		IsActive: true,
	}
	if err := s.db.CreateUser(user); err != nil {
		if db.IsUniqueViolation(err) {
			writeError(w, 400, "VALIDATION_ERROR", "a user with this PIN already exists")
			return
		}
		log.Printf("[API] create user: %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		return
	}

	log.Printf("[API] user %s created by %s", user.Name, requestUser(r).Name)
	writeJSON(w, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid user id")
		return
	}
	user, err := s.db.GetUser(id)
	if err != nil {
		log.Printf("[API] get user: %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		return
	}
	if user == nil {
		writeError(w, 404, "USER_NOT_FOUND", "user not found")
		return
	}
	writeJSON(w, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid user id")
		return
	}
	var req userPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "VALIDATION_ERROR", "invalid json")
		return
	}

	user, err := s.db.GetUser(id)
	if err != nil {
		log.Printf("[API] update user: %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		return
	}
	if user == nil {
		writeError(w, 404, "USER_NOT_FOUND", "user not found")
		return
	}

	if req.Name != nil {
		if !validUserName(*req.Name) {
			writeError(w, 400, "VALIDATION_ERROR", "name must be 2 to 100 characters")
			return
		}
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Pin != nil && *req.Pin != user.Pin {
		if !validPIN(*req.Pin) {
			writeError(w, 400, "VALIDATION_ERROR", "pin must be 4 to 6 digits")
			return
		}
		other, err := s.db.GetUserByPin(*req.Pin)
		if err != nil {
			log.Printf("[API] update user: %v", err)
			writeError(w, 500, "INTERNAL_ERROR", "internal server error")
			return
		}
		if other != nil && other.ID != id {
			writeError(w, 400, "VALIDATION_ERROR", "a user with this PIN already exists")
			return
		}
		hash, err := auth.HashPIN(*req.Pin)
		if err != nil {
			log.Printf("[API] update user: %v", err)
			writeError(w, 500, "INTERNAL_ERROR", "internal server error")
			return
		}
		user.Pin = *req.Pin
		user.PinHash = hash
	}
	if req.Role != nil {
		if !db.ValidRole(*req.Role) {
			writeError(w, 400, "VALIDATION_ERROR", "role must be admin, separator, seller or buyer")
			return
		}
		user.Role = *req.Role
	}
	if req.PhotoURL != nil {
		user.PhotoURL = req.PhotoURL
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.db.UpdateUser(user); err != nil {
		if db.IsUniqueViolation(err) {
			writeError(w, 400, "VALIDATION_ERROR", "a user with this PIN already exists")
			return
		}
		log.Printf("[API] update user: %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		return
	}

	log.Printf("[API] user %s updated by %s", user.Name, requestUser(r).Name)
	writeJSON(w, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid user id")
		return
	}
	if id == requestUser(r).ID {
		writeError(w, 400, "VALIDATION_ERROR", "cannot deactivate your own account")
		return
	}
	user, err := s.db.GetUser(id)
	if err != nil {
		log.Printf("[API] delete user: %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		return
	}
	if user == nil {
		writeError(w, 404, "USER_NOT_FOUND", "user not found")
		return
	}
	if err := s.db.DeactivateUser(id); err != nil {
		log.Printf("[API] delete user: %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		return
	}
	log.Printf("[API] user %s deactivated by %s", user.Name, requestUser(r).Name)
	writeJSON(w, map[string]string{"status": "deactivated"})
}
