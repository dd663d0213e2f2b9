package pdfparse

import (
	"fmt"
	"math"
)

// Both arithmetic checks share a one-cent absolute tolerance.
const tolerance = 0.01

// ValidationInfo reconciles the summed item totals against the document
// total. A mismatch is not fatal: legitimate discounts produce one, so
// the seller confirms or aborts with this record in hand.
type ValidationInfo struct {
	CalculatedTotal float64 `json:"calculated_total"`
	PDFTotal        float64 `json:"pdf_total"`
	ItemsCount      int     `json:"items_count"`
	ModelsCount     int     `json:"models_count"`
	TotalsMatch     bool    `json:"totals_match"`
	Difference      float64 `json:"difference"`
}

// ValidateItems enforces total = quantity × unit price per item. A
// violation means a misparsed numeric column and fails the extraction.
func ValidateItems(items []ParsedItem) error {
	for _, it := range items {
		expected := float64(it.Quantity) * it.UnitPrice
		if math.Abs(it.TotalPrice-expected) > tolerance {
			return fmt.Errorf("%w: item %s total %.2f, expected %d × %.2f",
				ErrItemArithmetic, it.ProductCode, it.TotalPrice, it.Quantity, it.UnitPrice)
		}
	}
	return nil
}

// BuildValidationInfo sums the item totals and quantities and compares
// the sum against the header total.
func BuildValidationInfo(order *ParsedOrder) *ValidationInfo {
	var calculated float64
	var quantities int
	for _, it := range order.Items {
		calculated += it.TotalPrice
		quantities += it.Quantity
	}
	diff := math.Abs(calculated - order.TotalValue)
	return &ValidationInfo{
		CalculatedTotal: round2(calculated),
		PDFTotal:        order.TotalValue,
		ItemsCount:      quantities,
		ModelsCount:     len(order.Items),
		TotalsMatch:     diff <= tolerance,
		Difference:      round2(diff),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
