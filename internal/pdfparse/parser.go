package pdfparse

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrExtractionEmpty = errors.New("no text could be extracted")
	ErrInvalidFile     = errors.New("invalid pdf file")
	ErrPatternMiss     = errors.New("quotation fields not found")
	ErrItemArithmetic  = errors.New("item arithmetic mismatch")
)

// ParsedOrder is the structured result of a successful parse.
type ParsedOrder struct {
	OrderNumber string       `json:"order_number"`
	ClientName  string       `json:"client_name"`
	SellerName  string       `json:"seller_name"`
	OrderDate   string       `json:"order_date"`
	TotalValue  float64      `json:"total_value"`
	Items       []ParsedItem `json:"items"`
}

// ParsedItem is one extracted quotation line.
type ParsedItem struct {
	ProductCode      string  `json:"product_code"`
	ProductReference string  `json:"product_reference"`
	ProductName      string  `json:"product_name"`
	Quantity         int     `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	TotalPrice       float64 `json:"total_price"`
}

// Result pairs the parsed order with its totals reconciliation, which the
// seller reviews before confirming.
type Result struct {
	Order          *ParsedOrder    `json:"order"`
	ValidationInfo *ValidationInfo `json:"validation_info"`
}

// Parser turns quotation PDFs into structured orders. Extraction is
// CPU-bound, so concurrent parses are capped by a worker semaphore.
type Parser struct {
	sem chan struct{}
}

func New(workers int) *Parser {
	if workers < 1 {
		workers = 1
	}
	return &Parser{sem: make(chan struct{}, workers)}
}

// Parse extracts, normalizes and validates one PDF document.
func (p *Parser) Parse(ctx context.Context, data []byte) (*Result, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	text, err := Extract(ctx, data)
	if err != nil {
		return nil, err
	}
	return p.parseText(text)
}

// parseText runs the text pipeline: header fields come from the raw
// extraction (their patterns are anchored on labels the sieve may eat),
// items from the normalized and sieved text.
func (p *Parser) parseText(text string) (*Result, error) {
	cleaned := Sieve(Normalize(text))

	order, err := buildOrder(ExtractFields(text), ExtractItems(cleaned))
	if err != nil {
		return nil, err
	}
	if err := ValidateItems(order.Items); err != nil {
		return nil, err
	}
	return &Result{Order: order, ValidationInfo: BuildValidationInfo(order)}, nil
}

func buildOrder(f Fields, items []ParsedItem) (*ParsedOrder, error) {
	if f.OrderNumber == "" {
		return nil, fmt.Errorf("%w: order number", ErrPatternMiss)
	}
	if f.ClientName == "" {
		return nil, fmt.Errorf("%w: client name", ErrPatternMiss)
	}
	if f.SellerName == "" {
		return nil, fmt.Errorf("%w: seller name", ErrPatternMiss)
	}
	date, ok := ParseDate(f.OrderDate)
	if !ok {
		return nil, fmt.Errorf("%w: order date", ErrPatternMiss)
	}
	total, ok := ParseMoney(f.TotalValue)
	if !ok || total <= 0 {
		return nil, fmt.Errorf("%w: total value", ErrPatternMiss)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrPatternMiss)
	}
	return &ParsedOrder{
		OrderNumber: f.OrderNumber,
		ClientName:  f.ClientName,
		SellerName:  f.SellerName,
		OrderDate:   date,
		TotalValue:  total,
		Items:       items,
	}, nil
}
