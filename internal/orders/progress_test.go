package orders

import (
	"math"
	"testing"

	"pmcell-separacao/internal/db"
)

func TestProgress(t *testing.T) {
	cases := []struct {
		name                                  string
		count, separated, inPurchase, notSent int
		want                                  float64
	}{
		{"empty order", 0, 0, 0, 0, 0},
		{"untouched", 4, 0, 0, 0, 0},
		{"one separated", 4, 1, 0, 0, 25},
		{"half resolved", 4, 1, 0, 1, 50},
		{"purchase does not advance", 4, 0, 4, 0, 0},
		{"all resolved", 4, 3, 0, 1, 100},
		{"thirds", 3, 1, 0, 0, 33.333333},
	}
	for _, tc := range cases {
		o := &db.Order{
			ItemsCount:      tc.count,
			ItemsSeparated:  tc.separated,
			ItemsInPurchase: tc.inPurchase,
			ItemsNotSent:    tc.notSent,
		}
		if got := Progress(o); math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("%s: Progress = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRecomputeStatus(t *testing.T) {
	cases := []struct {
		name                                  string
		count, separated, inPurchase, notSent int
		want                                  string
	}{
		{"no items", 0, 0, 0, 0, db.StatusPending},
		{"untouched", 4, 0, 0, 0, db.StatusPending},
		{"separating", 4, 1, 0, 0, db.StatusInProgress},
		{"purchase only still in progress", 4, 0, 1, 0, db.StatusInProgress},
		{"all resolved", 4, 2, 0, 2, db.StatusCompleted},
		{"purchase blocks completion", 4, 3, 1, 0, db.StatusInProgress},
	}
	for _, tc := range cases {
		o := &db.Order{
			ItemsCount:      tc.count,
			ItemsSeparated:  tc.separated,
			ItemsInPurchase: tc.inPurchase,
			ItemsNotSent:    tc.notSent,
		}
		recomputeStatus(o)
		if o.Status != tc.want {
			t.Errorf("%s: status = %q, want %q", tc.name, o.Status, tc.want)
		}
		if (o.CompletedAt != nil) != (tc.want == db.StatusCompleted) {
			t.Errorf("%s: completed_at = %v", tc.name, o.CompletedAt)
		}
	}
}

func TestRecomputeStatusKeepsFirstCompletionStamp(t *testing.T) {
	o := &db.Order{ItemsCount: 2, ItemsSeparated: 2}
	recomputeStatus(o)
	first := o.CompletedAt
	if first == nil {
		t.Fatal("completed_at not stamped")
	}
	recomputeStatus(o)
	if o.CompletedAt != first {
		t.Errorf("completed_at restamped: %v != %v", o.CompletedAt, first)
	}
}

func TestRecomputeStatusReopenClearsStamp(t *testing.T) {
	o := &db.Order{ItemsCount: 2, ItemsSeparated: 2}
	recomputeStatus(o)
	if o.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}

	o.ItemsSeparated = 1
	recomputeStatus(o)
	if o.Status != db.StatusInProgress {
		t.Fatalf("status after reversal = %q, want %q", o.Status, db.StatusInProgress)
	}
	if o.CompletedAt != nil {
		t.Errorf("completed_at survived reopening: %v", *o.CompletedAt)
	}

	o.ItemsSeparated = 0
	recomputeStatus(o)
	if o.Status != db.StatusPending || o.CompletedAt != nil {
		t.Errorf("full reversal = (%q, %v), want (%q, nil)", o.Status, o.CompletedAt, db.StatusPending)
	}
}
