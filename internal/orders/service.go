package orders

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"pmcell-separacao/internal/db"
	"pmcell-separacao/internal/pdfparse"
)

var (
	ErrDuplicateOrderNumber  = errors.New("order number already exists")
	ErrOrderNotFound         = errors.New("order not found")
	ErrItemNotInOrder        = errors.New("item does not belong to order")
	ErrAlreadyCompleted      = errors.New("order already completed")
	ErrAlreadySentToPurchase = errors.New("item already sent to purchase")
	ErrInvalidInput          = errors.New("invalid input")
	ErrPurchaseNotFound      = errors.New("purchase item not found")
	ErrPurchaseCompleted     = errors.New("purchase item already completed")
)

const maxObservationsLen = 500

// Service coordinates order separation: creation from confirmed parses,
// detail reads, batched item mutations, the purchase queue and manual
// completion. Mutations of one order serialize through a per-order mutex
// so concurrent operators cannot corrupt counters or publish a completion
// out of order.
type Service struct {
	db  *db.DB
	pub Publisher

	mu    sync.Mutex
	locks map[int64]*sync.Mutex

	stats statsCache
}

func NewService(d *db.DB, pub Publisher) *Service {
	return &Service{db: d, pub: pub, locks: make(map[int64]*sync.Mutex)}
}

// orderLock returns the mutex serializing mutations of one order. Locks
// are never dropped from the registry; one mutex per order ever seen is
// cheaper than tracking in-flight holders.
func (s *Service) orderLock(orderID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[orderID] = l
	}
	return l
}

// OrderView is an order summary plus its derived progress percentage.
type OrderView struct {
	*db.Order
	ProgressPercentage float64 `json:"progress_percentage"`
}

// OrderDetail adds the item list to a view.
type OrderDetail struct {
	OrderView
	Items []db.OrderItem `json:"items"`
}

// CreateInput carries a confirmed parse plus the seller-chosen shipping
// options. The parsed payload round-trips via the client between upload
// and confirm, so it is re-validated here.
type CreateInput struct {
	Parsed        *pdfparse.ParsedOrder `json:"parsed_order"`
	LogisticsType string                `json:"logistics_type"`
	PackageType   string                `json:"package_type"`
	Observations  string                `json:"observations"`
}

// Create persists a confirmed order with its items and announces it to
// the fleet. A reused order number fails with ErrDuplicateOrderNumber and
// leaves no row behind.
func (s *Service) Create(in CreateInput) (*OrderDetail, error) {
	if in.Parsed == nil || strings.TrimSpace(in.Parsed.OrderNumber) == "" {
		return nil, fmt.Errorf("%w: order number required", ErrInvalidInput)
	}
	if len(in.Parsed.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	if err := pdfparse.ValidateItems(in.Parsed.Items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(in.Observations) > maxObservationsLen {
		return nil, fmt.Errorf("%w: observations longer than %d characters", ErrInvalidInput, maxObservationsLen)
	}
	logistics, err := NormalizeLogisticsType(in.LogisticsType)
	if err != nil {
		return nil, err
	}
	pkg, err := NormalizePackageType(in.PackageType)
	if err != nil {
		return nil, err
	}

	o := &db.Order{
		OrderNumber:  in.Parsed.OrderNumber,
		ClientName:   in.Parsed.ClientName,
		SellerName:   in.Parsed.SellerName,
		OrderDate:    in.Parsed.OrderDate,
		TotalValue:   in.Parsed.TotalValue,
		Observations: in.Observations,
		ItemsCount:   len(in.Parsed.Items),
	}
	if logistics != "" {
		o.LogisticsType = &logistics
	}
	if pkg != "" {
		o.PackageType = &pkg
	}

	tx, err := s.db.SqlDB().Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := db.InsertOrderTx(tx, o); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, o.OrderNumber)
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}
	items := make([]db.OrderItem, 0, len(in.Parsed.Items))
	for _, pi := range in.Parsed.Items {
		it := db.OrderItem{
			OrderID:          o.ID,
			ProductCode:      pi.ProductCode,
			ProductReference: pi.ProductReference,
			ProductName:      pi.ProductName,
			Quantity:         pi.Quantity,
			UnitPrice:        pi.UnitPrice,
			TotalPrice:       pi.TotalPrice,
		}
		if err := db.InsertItemTx(tx, &it); err != nil {
			return nil, fmt.Errorf("insert item %s: %w", pi.ProductCode, err)
		}
		items = append(items, it)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.pub.BroadcastToAll(EventNewOrder, NewOrderData{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		ClientName:  o.ClientName,
	})
	return &OrderDetail{
		OrderView: OrderView{Order: o, ProgressPercentage: Progress(o)},
		Items:     items,
	}, nil
}

// Get returns the order summary.
func (s *Service) Get(orderID int64) (*OrderView, error) {
	o, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return &OrderView{Order: o, ProgressPercentage: Progress(o)}, nil
}

// Detail returns the order with its items and records the viewer in the
// access log (idempotent for a user with a live session).
func (s *Service) Detail(orderID, userID int64) (*OrderDetail, error) {
	o, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if _, err := s.db.OpenAccess(orderID, userID); err != nil {
		return nil, fmt.Errorf("open access: %w", err)
	}
	items, err := s.db.ListItems(orderID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return &OrderDetail{
		OrderView: OrderView{Order: o, ProgressPercentage: Progress(o)},
		Items:     items,
	}, nil
}

// List returns one page of order summaries plus the unpaged total.
func (s *Service) List(status string, page, perPage int) ([]OrderView, int, error) {
	os, total, err := s.db.ListOrders(status, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	views := make([]OrderView, len(os))
	for i := range os {
		views[i] = OrderView{Order: &os[i], ProgressPercentage: Progress(&os[i])}
	}
	return views, total, nil
}

// ItemUpdate is one per-item mutation in a batch. Nil facet pointers mean
// "leave unchanged"; a false value reverses the facet. NotSentReason
// accompanies not_sent=true, PurchaseNotes accompanies
// sent_to_purchase=true.
type ItemUpdate struct {
	ItemID         int64  `json:"item_id"`
	IsSeparated    *bool  `json:"is_separated,omitempty"`
	SentToPurchase *bool  `json:"sent_to_purchase,omitempty"`
	NotSent        *bool  `json:"not_sent,omitempty"`
	NotSentReason  string `json:"not_sent_reason,omitempty"`
	PurchaseNotes  string `json:"purchase_notes,omitempty"`
}

// ApplyBatch atomically applies a list of item updates as one actor.
// Either every update persists or none do. Events are decided inside the
// transaction and published only after commit: per-item events in update
// order, then order_updated, then order_completed when the batch newly
// finished the order.
func (s *Service) ApplyBatch(orderID int64, updates []ItemUpdate, actor *db.User) (*OrderDetail, error) {
	return s.apply(orderID, updates, actor, false)
}

// SendItemToPurchase is the single-item purchase endpoint: unlike a batch
// update, re-sending an already queued item is an error rather than a
// no-op.
func (s *Service) SendItemToPurchase(orderID, itemID int64, notes string, actor *db.User) (*OrderDetail, error) {
	queued := true
	return s.apply(orderID, []ItemUpdate{{
		ItemID:         itemID,
		SentToPurchase: &queued,
		PurchaseNotes:  notes,
	}}, actor, true)
}

func (s *Service) apply(orderID int64, updates []ItemUpdate, actor *db.User, failOnQueued bool) (*OrderDetail, error) {
	l := s.orderLock(orderID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.SqlDB().Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	o, err := db.GetOrderTx(tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	prevStatus := o.Status

	var events []pendingEvent
	for _, u := range updates {
		it, err := db.GetItemTx(tx, u.ItemID)
		if err != nil {
			return nil, fmt.Errorf("load item %d: %w", u.ItemID, err)
		}
		if it == nil || it.OrderID != o.ID {
			return nil, fmt.Errorf("%w: item %d", ErrItemNotInOrder, u.ItemID)
		}

		var separated, queued, notSent, changed bool

		if u.IsSeparated != nil && *u.IsSeparated != it.IsSeparated {
			if *u.IsSeparated {
				ts := db.Now()
				it.IsSeparated = true
				it.SeparatedAt = &ts
				it.SeparatedByID = &actor.ID
				o.ItemsSeparated++
				separated = true
			} else {
				it.IsSeparated = false
				it.SeparatedAt = nil
				it.SeparatedByID = nil
				o.ItemsSeparated--
			}
			changed = true
		}

		if u.SentToPurchase != nil {
			switch {
			case *u.SentToPurchase && it.SentToPurchase:
				if failOnQueued {
					return nil, fmt.Errorf("%w: item %d", ErrAlreadySentToPurchase, u.ItemID)
				}
			case *u.SentToPurchase:
				ts := db.Now()
				it.SentToPurchase = true
				it.SentToPurchaseAt = &ts
				it.SentToPurchaseByID = &actor.ID
				if err := db.InsertPurchaseTx(tx, it.ID, actor.ID, u.PurchaseNotes); err != nil {
					return nil, fmt.Errorf("queue purchase for item %d: %w", it.ID, err)
				}
				o.ItemsInPurchase++
				queued = true
				changed = true
			case it.SentToPurchase:
				// Reversal removes the purchase facet entirely.
				it.SentToPurchase = false
				it.SentToPurchaseAt = nil
				it.SentToPurchaseByID = nil
				if err := db.DeletePurchaseTx(tx, it.ID); err != nil {
					return nil, fmt.Errorf("dequeue purchase for item %d: %w", it.ID, err)
				}
				o.ItemsInPurchase--
				changed = true
			}
		}

		if u.NotSent != nil && *u.NotSent != it.NotSent {
			if *u.NotSent {
				ts := db.Now()
				it.NotSent = true
				it.NotSentAt = &ts
				it.NotSentByID = &actor.ID
				it.NotSentReason = nil
				if r := strings.TrimSpace(u.NotSentReason); r != "" {
					it.NotSentReason = &r
				}
				o.ItemsNotSent++
				notSent = true
			} else {
				it.NotSent = false
				it.NotSentAt = nil
				it.NotSentByID = nil
				it.NotSentReason = nil
				o.ItemsNotSent--
			}
			changed = true
		}

		if changed {
			if err := db.SaveItemTx(tx, it); err != nil {
				return nil, fmt.Errorf("save item %d: %w", it.ID, err)
			}
		}

		// Progress snapshot after this update; reversals emit nothing and
		// are reflected by the closing order_updated.
		p := Progress(o)
		if separated {
			events = append(events, pendingEvent{EventItemSeparated, ItemProgressData{o.ID, it.ID, p}})
		}
		if queued {
			events = append(events, pendingEvent{EventItemSentToPurchase, ItemQueuedData{o.ID, it.ID}})
		}
		if notSent {
			events = append(events, pendingEvent{EventItemNotSent, ItemProgressData{o.ID, it.ID, p}})
		}
	}

	// Authoritative recount; the incremental counters above exist only for
	// per-event progress snapshots.
	sep, inPurchase, notSentCount, total, err := db.RecountOrderTx(tx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("recount: %w", err)
	}
	o.ItemsSeparated, o.ItemsInPurchase, o.ItemsNotSent, o.ItemsCount = sep, inPurchase, notSentCount, total
	recomputeStatus(o)
	if err := db.UpdateOrderStateTx(tx, o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	for _, ev := range events {
		s.pub.BroadcastToOrder(o.ID, ev.eventType, ev.data)
	}
	s.pub.BroadcastToAll(EventOrderUpdated, OrderProgressData{OrderID: o.ID, ProgressPercentage: Progress(o)})
	if o.Status == db.StatusCompleted && prevStatus != db.StatusCompleted {
		s.pub.BroadcastToAll(EventOrderCompleted, OrderCompletedData{OrderID: o.ID})
	}

	items, err := s.db.ListItems(o.ID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return &OrderDetail{
		OrderView: OrderView{Order: o, ProgressPercentage: Progress(o)},
		Items:     items,
	}, nil
}

// MarkCompleted force-completes an order regardless of remaining items.
// Role enforcement (admin or separator) happens at the HTTP layer.
func (s *Service) MarkCompleted(orderID int64) (*OrderView, error) {
	l := s.orderLock(orderID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.SqlDB().Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	o, err := db.GetOrderTx(tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.Status == db.StatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	o.Status = db.StatusCompleted
	if o.CompletedAt == nil {
		ts := db.Now()
		o.CompletedAt = &ts
	}
	if err := db.UpdateOrderStateTx(tx, o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.pub.BroadcastToAll(EventOrderCompleted, OrderCompletedData{OrderID: o.ID})
	return &OrderView{Order: o, ProgressPercentage: Progress(o)}, nil
}

// Accesses returns the full access history of an order, live sessions
// first.
func (s *Service) Accesses(orderID int64) ([]db.OrderAccess, error) {
	o, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return s.db.AccessHistory(orderID)
}

// PurchaseQueue lists purchase entries with their item and order context.
func (s *Service) PurchaseQueue(pendingOnly bool) ([]db.PurchaseQueueEntry, error) {
	return s.db.ListPurchaseQueue(pendingOnly)
}

// CompletePurchase marks a purchase entry fulfilled. The entry stays in
// the queue history; completing twice is an error.
func (s *Service) CompletePurchase(purchaseID int64, actor *db.User, notes string) (*db.PurchaseItem, error) {
	p, err := s.db.GetPurchaseItem(purchaseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	if p == nil {
		return nil, ErrPurchaseNotFound
	}
	if p.IsCompleted {
		return nil, ErrPurchaseCompleted
	}
	if err := s.db.CompletePurchase(purchaseID, actor.ID, notes); err != nil {
		return nil, fmt.Errorf("complete purchase: %w", err)
	}
	return s.db.GetPurchaseItem(purchaseID)
}
