package pdfparse

import (
	"regexp"
	"strconv"
	"strings"
)

// itemPattern is one entry of the ranked item list. withFiller marks the
// shapes that capture the optional filler field between description and
// the UN marker; their submatch layout has one extra group.
type itemPattern struct {
	re         *regexp.Regexp
	withFiller bool
}

// The ranked item patterns, tried in order. The canonical shape is
// CODE / REFERENCE --> DESCRIPTION / UN / QTY / UNIT / TOTAL with the
// description and filler optional; two variants accept angle-bracket
// damage the normalizer may have missed; the last accepts short legacy
// codes. Fallbacks run only when the canonical shape matched nothing,
// and the first fallback producing items wins.
var itemPatterns = []itemPattern{
	{re: regexp.MustCompile(`(?im)(?:^|\s)(\d{4,5})\s*/\s*([^/]+?)(?:\s*-->\s*([^/]+?))?\s*(?:/\s*([^/]*?))?\s*/\s*UN\s*/\s*(\d+)\s*/\s*([\d,\.]+)\s*/\s*([\d,\.]+)`), withFiller: true},
	{re: regexp.MustCompile(`(?im)(?:^|\s)(\d{4,5})\s*/\s*([^/]+?)(?:\s*-->\s*([^/]+?))?\s*(?:/\s*([^/]*?))?\s*/?<?/?<?\s*UN\s*/?\s*(\d+)\s*/\s*([\d,\.]+)\s*/\s*([\d,\.]+)`), withFiller: true},
	{re: regexp.MustCompile(`(?im)(?:^|\s)(\d{4,5})\s*/\s*([^/]+?)(?:\s*-->\s*([^/]+?))?\s*/<<UN\s*/\s*(\d+)\s*/\s*([\d,\.]+)\s*/\s*([\d,\.]+)`)},
	{re: regexp.MustCompile(`(?im)(?:^|\s)(\d{4,5})\s*/\s*([^/]+?)(?:\s*-->\s*([^/]+?))?\s*</<\s*UN\s*/\s*(\d+)\s*/\s*([\d,\.]+)\s*/\s*([\d,\.]+)`)},
	{re: regexp.MustCompile(`(?im)(\d+)\s*/\s*([^/]+?)(?:\s*-->\s*([^/]+?))?\s*(?:/\s*([^/]*?))?\s*/\s*UN\s*/\s*(\d+)\s*/\s*([\d,\.]+)\s*/\s*([\d,\.]+)`), withFiller: true},
}

var productCodeRe = regexp.MustCompile(`^\d{3,5}$`)

// Codes these artifacts produce are never real products.
var suspiciousCodes = map[string]bool{"07": true, "00": true}

var artifactWords = []string{
	"Código Produto",
	"Unid. Quant.",
	"Valor Total",
	"dia(s)",
	"\n",
}

// ExtractItems applies the ranked patterns to the sieved text and
// de-duplicates by product code, first occurrence winning.
func ExtractItems(text string) []ParsedItem {
	items := extractWithPattern(text, itemPatterns[0])
	if len(items) == 0 {
		for _, p := range itemPatterns[1:] {
			if found := extractWithPattern(text, p); len(found) > 0 {
				items = found
				break
			}
		}
	}

	seen := make(map[string]bool, len(items))
	unique := items[:0]
	for _, it := range items {
		if !seen[it.ProductCode] {
			seen[it.ProductCode] = true
			unique = append(unique, it)
		}
	}
	return unique
}

func extractWithPattern(text string, p itemPattern) []ParsedItem {
	var items []ParsedItem
	for _, m := range p.re.FindAllStringSubmatch(text, -1) {
		var code, ref, desc, filler, qtyS, unitS, totalS string
		if p.withFiller {
			code, ref, desc, filler = m[1], m[2], m[3], m[4]
			qtyS, unitS, totalS = m[5], m[6], m[7]
		} else {
			code, ref, desc = m[1], m[2], m[3]
			qtyS, unitS, totalS = m[4], m[5], m[6]
		}
		code = strings.TrimSpace(code)
		ref = strings.TrimSpace(ref)
		desc = strings.TrimSpace(desc)
		filler = strings.TrimSpace(filler)

		if isSuspiciousMatch(code, ref) {
			continue
		}
		if !isValidItemData(code, ref, qtyS, unitS, totalS) {
			continue
		}

		name := ref
		if desc != "" {
			name = ref + " - " + desc
			if filler != "" {
				name += " (" + filler + ")"
			}
		}
		qty, _ := strconv.Atoi(strings.TrimSpace(qtyS))
		unit, _ := ParseMoney(unitS)
		total, _ := ParseMoney(totalS)
		items = append(items, ParsedItem{
			ProductCode:      code,
			ProductReference: ref,
			ProductName:      name,
			Quantity:         qty,
			UnitPrice:        unit,
			TotalPrice:       total,
		})
	}
	return items
}

// isSuspiciousMatch rejects matches that are almost certainly page
// artifacts rather than products: too-short or blocklisted codes, and
// references carrying header words or embedded newlines.
func isSuspiciousMatch(code, reference string) bool {
	if len(code) < 3 || suspiciousCodes[code] {
		return true
	}
	if reference != "" {
		for _, w := range artifactWords {
			if strings.Contains(reference, w) {
				return true
			}
		}
	}
	return false
}

// isValidItemData accepts 3-5 digit codes, references of at least two
// characters, a positive integer quantity, and two positive prices.
func isValidItemData(code, reference, quantity, unitPrice, totalPrice string) bool {
	if !productCodeRe.MatchString(code) {
		return false
	}
	if len(strings.TrimSpace(reference)) < 2 {
		return false
	}
	qty, err := strconv.Atoi(strings.TrimSpace(quantity))
	if err != nil || qty <= 0 {
		return false
	}
	unit, ok := ParseMoney(unitPrice)
	if !ok || unit <= 0 {
		return false
	}
	total, ok := ParseMoney(totalPrice)
	if !ok || total <= 0 {
		return false
	}
	return true
}
