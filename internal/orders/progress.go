package orders

import "pmcell-separacao/internal/db"

// Progress returns the separation percentage of an order. Separated and
// not-sent items both count as resolved; purchase-queued items do not
// advance progress until they are also separated or declared not sent.
func Progress(o *db.Order) float64 {
	if o.ItemsCount == 0 {
		return 0
	}
	return float64(o.ItemsSeparated+o.ItemsNotSent) / float64(o.ItemsCount) * 100
}

func isComplete(o *db.Order) bool {
	return o.ItemsCount > 0 && o.ItemsSeparated+o.ItemsNotSent == o.ItemsCount
}

// recomputeStatus derives the order status from the counters. Completion
// stamps completed_at on first entry and keeps the original stamp on
// batches applied after it; a reversal that reopens the order clears the
// stamp so completed_at is non-null exactly while the status is completed.
func recomputeStatus(o *db.Order) {
	switch {
	case o.ItemsCount == 0:
		o.Status = db.StatusPending
		o.CompletedAt = nil
	case isComplete(o):
		o.Status = db.StatusCompleted
		if o.CompletedAt == nil {
			ts := db.Now()
			o.CompletedAt = &ts
		}
	case o.ItemsSeparated > 0 || o.ItemsInPurchase > 0 || o.ItemsNotSent > 0:
		o.Status = db.StatusInProgress
		o.CompletedAt = nil
	default:
		o.Status = db.StatusPending
		o.CompletedAt = nil
	}
}
