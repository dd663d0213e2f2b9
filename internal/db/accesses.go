package db

import (
	"database/sql"
	"time"
)

// OrderAccess is one viewing session of an order by a user.
// left_at is null while the session is live.
type OrderAccess struct {
	ID         int64   `json:"id"`
	OrderID    int64   `json:"order_id"`
	UserID     int64   `json:"user_id"`
	UserName   string  `json:"user_name"`
	AccessedAt string  `json:"accessed_at"`
	LeftAt     *string `json:"left_at"`
}

const accessColumns = `a.id, a.order_id, a.user_id, COALESCE(u.name, ''), a.accessed_at, a.left_at`

func scanAccess(row interface{ Scan(...interface{}) error }) (*OrderAccess, error) {
	var a OrderAccess
	var left sql.NullString
	if err := row.Scan(&a.ID, &a.OrderID, &a.UserID, &a.UserName, &a.AccessedAt, &left); err != nil {
		return nil, err
	}
	a.LeftAt = strPtr(left)
	return &a, nil
}

func (d *DB) liveAccess(orderID, userID int64) (*OrderAccess, error) {
	a, err := scanAccess(d.sql.QueryRow(`
		SELECT `+accessColumns+`
		  FROM order_accesses a
		  LEFT JOIN users u ON u.id = a.user_id
		 WHERE a.order_id = ? AND a.user_id = ? AND a.left_at IS NULL
	`, orderID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// OpenAccess starts a viewing session. Idempotent: if the user already
// has a live session on the order, that session is returned unchanged.
// Concurrent opens race on the partial unique index; the loser re-reads
// the winner's row.
func (d *DB) OpenAccess(orderID, userID int64) (*OrderAccess, error) {
	if live, err := d.liveAccess(orderID, userID); err != nil || live != nil {
		return live, err
	}
	ts := now()
	res, err := d.sql.Exec(`
		INSERT INTO order_accesses (order_id, user_id, accessed_at) VALUES (?, ?, ?)
	`, orderID, userID, ts)
	if IsUniqueViolation(err) {
		return d.liveAccess(orderID, userID)
	}
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	return &OrderAccess{ID: id, OrderID: orderID, UserID: userID, AccessedAt: ts}, nil
}

// LeaveAccess closes the live session of a user on an order, if any.
func (d *DB) LeaveAccess(orderID, userID int64) error {
	_, err := d.sql.Exec(`
		UPDATE order_accesses SET left_at = ?
		 WHERE order_id = ? AND user_id = ? AND left_at IS NULL
	`, now(), orderID, userID)
	return err
}

// LeaveAllAccesses closes every live session of a user in one pass and
// returns how many were closed. The presence layer calls this on disconnect.
func (d *DB) LeaveAllAccesses(userID int64) (int, error) {
	res, err := d.sql.Exec(`
		UPDATE order_accesses SET left_at = ? WHERE user_id = ? AND left_at IS NULL
	`, now(), userID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (d *DB) queryAccesses(query string, args ...interface{}) ([]OrderAccess, error) {
	rows, err := d.sql.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderAccess
	for rows.Next() {
		a, err := scanAccess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if out == nil {
		out = []OrderAccess{}
	}
	return out, rows.Err()
}

// AccessHistory returns every session of an order, newest first.
func (d *DB) AccessHistory(orderID int64) ([]OrderAccess, error) {
	return d.queryAccesses(`
		SELECT `+accessColumns+`
		  FROM order_accesses a
		  LEFT JOIN users u ON u.id = a.user_id
		 WHERE a.order_id = ?
		 ORDER BY a.accessed_at DESC, a.id DESC
	`, orderID)
}

// ActiveAccesses returns the live sessions of an order.
func (d *DB) ActiveAccesses(orderID int64) ([]OrderAccess, error) {
	return d.queryAccesses(`
		SELECT `+accessColumns+`
		  FROM order_accesses a
		  LEFT JOIN users u ON u.id = a.user_id
		 WHERE a.order_id = ? AND a.left_at IS NULL
		 ORDER BY a.accessed_at
	`, orderID)
}

// ActiveAccessesForUser returns the live sessions of a user across orders.
func (d *DB) ActiveAccessesForUser(userID int64) ([]OrderAccess, error) {
	return d.queryAccesses(`
		SELECT `+accessColumns+`
		  FROM order_accesses a
		  LEFT JOIN users u ON u.id = a.user_id
		 WHERE a.user_id = ? AND a.left_at IS NULL
		 ORDER BY a.accessed_at
	`, userID)
}

// AccessStats summarizes closed sessions inside a day window.
type AccessStats struct {
	TotalAccesses      int     `json:"total_accesses"`
	UniqueUsers        int     `json:"unique_users"`
	AvgDurationMinutes float64 `json:"average_duration_minutes"`
}

// AccessStatsFor aggregates sessions opened in the last `days` days,
// optionally scoped to one order and/or one user. Average duration
// counts closed sessions only.
func (d *DB) AccessStatsFor(orderID, userID *int64, days int) (*AccessStats, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)

	where := " WHERE accessed_at >= ?"
	args := []interface{}{cutoff}
	if orderID != nil {
		where += " AND order_id = ?"
		args = append(args, *orderID)
	}
	if userID != nil {
		where += " AND user_id = ?"
		args = append(args, *userID)
	}

	var s AccessStats
	var avg sql.NullFloat64
	err := d.sql.QueryRow(`
		SELECT COUNT(*),
		       COUNT(DISTINCT user_id),
		       AVG(CASE WHEN left_at IS NOT NULL
		                THEN (julianday(left_at) - julianday(accessed_at)) * 24 * 60
		           END)
		  FROM order_accesses`+where, args...,
	).Scan(&s.TotalAccesses, &s.UniqueUsers, &avg)
	if err != nil {
		return nil, err
	}
	if avg.Valid {
		s.AvgDurationMinutes = avg.Float64
	}
	return &s, nil
}
