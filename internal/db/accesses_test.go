package db

import "testing"

func TestOpenAccessIdempotent(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	u := seedUser(t, d, "Maria", "1234", "separator")
	o, _ := seedOrder(t, d, "27820", 1)

	first, err := d.OpenAccess(o.ID, u.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, err := d.OpenAccess(o.ID, u.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("reopen created a second live session: %d != %d", second.ID, first.ID)
	}

	active, err := d.ActiveAccesses(o.ID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].UserID != u.ID || active[0].UserName != "Maria" {
		t.Fatalf("active = %+v", active)
	}
}

func TestLeaveAndLeaveAll(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	u := seedUser(t, d, "Maria", "1234", "separator")
	o1, _ := seedOrder(t, d, "30001", 1)
	o2, _ := seedOrder(t, d, "30002", 1)

	if _, err := d.OpenAccess(o1.ID, u.ID); err != nil {
		t.Fatalf("open o1: %v", err)
	}
	if _, err := d.OpenAccess(o2.ID, u.ID); err != nil {
		t.Fatalf("open o2: %v", err)
	}

	if err := d.LeaveAccess(o1.ID, u.ID); err != nil {
		t.Fatalf("leave o1: %v", err)
	}
	live, _ := d.ActiveAccessesForUser(u.ID)
	if len(live) != 1 || live[0].OrderID != o2.ID {
		t.Fatalf("after leave: %+v", live)
	}

	// Reopening after leave creates a fresh session.
	again, err := d.OpenAccess(o1.ID, u.ID)
	if err != nil {
		t.Fatalf("reopen o1: %v", err)
	}
	if again.LeftAt != nil {
		t.Fatal("fresh session already closed")
	}

	closed, err := d.LeaveAllAccesses(u.ID)
	if err != nil {
		t.Fatalf("leave all: %v", err)
	}
	if closed != 2 {
		t.Fatalf("leave all closed %d, want 2", closed)
	}
	live, _ = d.ActiveAccessesForUser(u.ID)
	if len(live) != 0 {
		t.Fatalf("live sessions after leave all: %+v", live)
	}

	history, err := d.AccessHistory(o1.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	for _, a := range history {
		if a.LeftAt == nil {
			t.Fatalf("history has live session: %+v", a)
		}
	}
}

func TestLiveSessionUniquePerUser(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	u := seedUser(t, d, "Maria", "1234", "separator")
	o, _ := seedOrder(t, d, "27820", 1)

	insert := func() error {
		_, err := d.sql.Exec(`
			INSERT INTO order_accesses (order_id, user_id, accessed_at) VALUES (?, ?, ?)
		`, o.ID, u.ID, now())
		return err
	}
	if err := insert(); err != nil {
		t.Fatalf("first live session: %v", err)
	}
	err := insert()
	if err == nil {
		t.Fatal("second live session for the same (order, user) accepted")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}

	// A closed session does not block a fresh one.
	if err := d.LeaveAccess(o.ID, u.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := insert(); err != nil {
		t.Fatalf("session after leave: %v", err)
	}

	active, err := d.ActiveAccesses(o.ID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("live sessions = %d, want 1", len(active))
	}
}

func TestAccessStatsFor(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	u1 := seedUser(t, d, "Maria", "1234", "separator")
	u2 := seedUser(t, d, "João", "5678", "separator")
	o, _ := seedOrder(t, d, "27820", 1)

	d.OpenAccess(o.ID, u1.ID)
	d.OpenAccess(o.ID, u2.ID)
	d.LeaveAccess(o.ID, u1.ID)

	stats, err := d.AccessStatsFor(&o.ID, nil, 7)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAccesses != 2 || stats.UniqueUsers != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.AvgDurationMinutes < 0 {
		t.Errorf("negative average duration: %v", stats.AvgDurationMinutes)
	}

	scoped, err := d.AccessStatsFor(&o.ID, &u1.ID, 7)
	if err != nil {
		t.Fatalf("scoped stats: %v", err)
	}
	if scoped.TotalAccesses != 1 || scoped.UniqueUsers != 1 {
		t.Fatalf("scoped stats = %+v", scoped)
	}
}
