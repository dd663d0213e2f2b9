package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pmcell-separacao/internal/orders"
	"pmcell-separacao/internal/pdfparse"
)

// writePDFError maps parse pipeline errors onto the upload error codes.
func writePDFError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pdfparse.ErrExtractionEmpty):
		writeError(w, 400, "EXTRACTION_EMPTY", "no text could be extracted from the PDF")
	case errors.Is(err, pdfparse.ErrInvalidFile):
		writeError(w, 400, "INVALID_FILE", "file is not a readable PDF")
	case errors.Is(err, pdfparse.ErrPatternMiss):
		writeError(w, 400, "PATTERN_MISS", err.Error())
	case errors.Is(err, pdfparse.ErrItemArithmetic):
		writeError(w, 400, "ITEM_ARITHMETIC", err.Error())
	default:
		log.Printf("[PDF] %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
	}
}

// handleUpload parses an uploaded quotation PDF and returns the extraction
// for the seller to review. Nothing is persisted until confirm.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, 400, "VALIDATION_ERROR", fmt.Sprintf("file exceeds the %d byte upload limit", tooBig.Limit))
			return
		}
		writeError(w, 400, "VALIDATION_ERROR", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, 400, "VALIDATION_ERROR", "filename is required")
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, 400, "INVALID_FILE", "only PDF files are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("[PDF] read upload: %v", err)
		writeError(w, 500, "INTERNAL_ERROR", "internal server error")
		return
	}

	start := time.Now()
	res, err := s.parser.Parse(r.Context(), data)
	if err != nil {
		writePDFError(w, err)
		return
	}
	log.Printf("[PDF] %s parsed order %s: %d items in %dms",
		requestUser(r).Name, res.Order.OrderNumber, len(res.Order.Items), time.Since(start).Milliseconds())

	writeJSON(w, map[string]interface{}{
		"parsed_order":    res.Order,
		"validation_info": res.ValidationInfo,
	})
}

// handleConfirm persists a reviewed parse as a new order.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, 400, "VALIDATION_ERROR", "invalid json")
		return
	}
	detail, err := s.orders.Create(in)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	log.Printf("[ORDER] %s confirmed by %s: %d items", detail.OrderNumber, requestUser(r).Name, len(detail.Items))
	writeJSON(w, detail)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, 400, "VALIDATION_ERROR", "page must be a positive integer")
			return
		}
		page = n
	}
	perPage := 20
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, 400, "VALIDATION_ERROR", "per_page must be between 1 and 100")
			return
		}
		perPage = n
	}
	status, err := orders.NormalizeStatus(q.Get("status"))
	if err != nil {
		writeError(w, 400, "VALIDATION_ERROR", err.Error())
		return
	}

	list, total, err := s.orders.List(status, page, perPage)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"orders":   list,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orders.Stats()
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid order id")
		return
	}
	view, err := s.orders.Get(id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, view)
}

// handleOrderDetail returns the full order with items and opens an access
// log session for the viewing user.
func (s *Server) handleOrderDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid order id")
		return
	}
	detail, err := s.orders.Detail(id, requestUser(r).ID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleOrderAccesses(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid order id")
		return
	}
	accesses, err := s.orders.Accesses(id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, accesses)
}

// handleActiveUsers snapshots live hub presence for one order.
func (s *Server) handleActiveUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid order id")
		return
	}
	if _, err := s.orders.Get(id); err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, s.hub.UsersInOrder(id))
}

// handleBatchItems applies a batch of item facet changes atomically.
func (s *Server) handleBatchItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid order id")
		return
	}
	var req struct {
		Updates []orders.ItemUpdate `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "VALIDATION_ERROR", "invalid json")
		return
	}
	if len(req.Updates) == 0 {
		writeError(w, 400, "VALIDATION_ERROR", "updates must not be empty")
		return
	}

	detail, err := s.orders.ApplyBatch(id, req.Updates, requestUser(r))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, detail)
}

// handleSendToPurchase queues a single item for purchase with optional
// buyer notes.
func (s *Server) handleSendToPurchase(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid order id")
		return
	}
	itemID, ok := pathID(r, "itemID")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid item id")
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, 400, "VALIDATION_ERROR", "invalid json")
		return
	}

	detail, err := s.orders.SendItemToPurchase(orderID, itemID, req.Notes, requestUser(r))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, detail)
}

// handleCompleteOrder force-completes an order regardless of remaining
// items.
func (s *Server) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid order id")
		return
	}
	view, err := s.orders.MarkCompleted(id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	log.Printf("[ORDER] %s completed manually by %s", view.OrderNumber, requestUser(r).Name)
	writeJSON(w, view)
}

// --- Purchase queue ---

func (s *Server) handlePurchaseQueue(w http.ResponseWriter, r *http.Request) {
	pending := false
	if v := r.URL.Query().Get("pending"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, 400, "VALIDATION_ERROR", "pending must be true or false")
			return
		}
		pending = b
	}
	entries, err := s.orders.PurchaseQueue(pending)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleCompletePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 400, "VALIDATION_ERROR", "invalid purchase item id")
		return
	}
	var req struct {
		CompletionNotes string `json:"completion_notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, 400, "VALIDATION_ERROR", "invalid json")
		return
	}

	item, err := s.orders.CompletePurchase(id, requestUser(r), req.CompletionNotes)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	log.Printf("[PURCHASE] item %d completed by %s", item.OrderItemID, requestUser(r).Name)
	writeJSON(w, item)
}
