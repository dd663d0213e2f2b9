package db

import (
	"database/sql"
	"fmt"
	"strings"
)

const (
	RoleAdmin     = "admin"
	RoleSeparator = "separator"
	RoleSeller    = "seller"
	RoleBuyer     = "buyer"
)

// User is a warehouse operator account. PIN material never serializes.
type User struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Pin       string  `json:"-"`
	PinHash   string  `json:"-"`
	Role      string  `json:"role"`
	PhotoURL  *string `json:"photo_url"`
	IsActive  bool    `json:"is_active"`
	LastLogin *string `json:"last_login"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin:
		return RoleAdmin
	case RoleSeparator:
		return RoleSeparator
	case RoleSeller:
		return RoleSeller
	case RoleBuyer:
		return RoleBuyer
	default:
		return ""
	}
}

// ValidRole reports whether role is one of the four known roles
// (case- and space-insensitive).
func ValidRole(role string) bool {
	return normalizeRole(role) != ""
}

// CreateUser inserts a user and fills ID and timestamps.
// A duplicate PIN surfaces as a UNIQUE violation (see IsUniqueViolation).
func (d *DB) CreateUser(u *User) error {
	role := normalizeRole(u.Role)
	if role == "" {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	u.Role = role
	ts := now()
	res, err := d.sql.Exec(`
		INSERT INTO users (name, pin, pin_hash, role, photo_url, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.Name, u.Pin, u.PinHash, u.Role, nullStr(u.PhotoURL), u.IsActive, ts, ts)
	if err != nil {
		return err
	}
	u.ID, _ = res.LastInsertId()
	u.CreatedAt = ts
	u.UpdatedAt = ts
	return nil
}

const userColumns = "id, name, pin, pin_hash, role, photo_url, is_active, last_login, created_at, updated_at"

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	var photo, lastLogin sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Pin, &u.PinHash, &u.Role, &photo, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.PhotoURL = strPtr(photo)
	u.LastLogin = strPtr(lastLogin)
	return &u, nil
}

// GetUser returns the user with the given id, or nil if none exists.
func (d *DB) GetUser(id int64) (*User, error) {
	u, err := scanUser(d.sql.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// GetUserByPin returns the user holding the verbatim PIN, or nil if none exists.
func (d *DB) GetUserByPin(pin string) (*User, error) {
	u, err := scanUser(d.sql.QueryRow("SELECT "+userColumns+" FROM users WHERE pin = ?", pin))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// ListUsers returns all users ordered by name.
func (d *DB) ListUsers() ([]User, error) {
	rows, err := d.sql.Query("SELECT " + userColumns + " FROM users ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	if out == nil {
		out = []User{}
	}
	return out, rows.Err()
}

// UpdateUser persists name, PIN material, role, photo and active flag.
func (d *DB) UpdateUser(u *User) error {
	role := normalizeRole(u.Role)
	if role == "" {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	u.Role = role
	u.UpdatedAt = now()
	_, err := d.sql.Exec(`
		UPDATE users
		   SET name = ?, pin = ?, pin_hash = ?, role = ?, photo_url = ?, is_active = ?, updated_at = ?
		 WHERE id = ?
	`, u.Name, u.Pin, u.PinHash, u.Role, nullStr(u.PhotoURL), u.IsActive, u.UpdatedAt, u.ID)
	return err
}

// DeactivateUser flips is_active off. Accounts are never deleted.
func (d *DB) DeactivateUser(id int64) error {
	_, err := d.sql.Exec("UPDATE users SET is_active = 0, updated_at = ? WHERE id = ?", now(), id)
	return err
}

// TouchLastLogin stamps last_login with the current time.
func (d *DB) TouchLastLogin(id int64) error {
	_, err := d.sql.Exec("UPDATE users SET last_login = ? WHERE id = ?", now(), id)
	return err
}

// CountUsers returns the number of user rows, active or not.
func (d *DB) CountUsers() (int, error) {
	var n int
	err := d.sql.QueryRow("SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
