package pdfparse

import (
	"regexp"
	"strings"
)

// Page-artifact catalogue: headers, tax lines, addresses, payment terms,
// column headers, day-count footers, page markers, and full-line
// restatements of fields captured elsewhere.
var artifactRes = compileAll(
	`^PMCELL\s+São\s+Paulo`,
	`^V\.\s+Zabin\s+Tecnologia`,
	`^CNPJ:\s*\d+`,
	`^I\.E:\s*\d+`,
	`^Rua\s+Comendador`,
	`^Condição\s+de\s+Pagto`,
	`^Forma\s+de\s+Pagto`,
	`^Validade\s+do\s+Orçamento`,
	`^Código\s+Produto\s+Unid`,
	`^\s*\d+\s+dia\(s\)\s*$`,
	`^\d{1,2}\s+dia\(s\)\s*$`,
	`^\s*\d+\s*-\s*\d+\s+dia\(s\)`,
	`^Página\s+\d+\s*$`,
	`^Orçamento\s*N[ºo°]?:?\s*\d+`,
	`^Código:\s*\d+.*Data:`,
	`^Cliente:\s*[\d\.].*Forma\s*de`,
	`^Vendedor:.*Validade`,
)

// Header lines kept alongside the item strings.
var headerRes = compileAll(
	`Orçamento\s*N[ºo°]?:?\s*\d+`,
	`Cliente:\s*`,
	`Vendedor:\s*`,
	`Data:\s*\d{2}/\d{2}/\d{2}`,
	`VALOR\s+TOTAL\s*R\$`,
	`VALOR\s+A\s+PAGAR`,
	`DESCONTO\s*R\$`,
)

var (
	itemOpenRe    = regexp.MustCompile(`^\d{4,5}\s*/`)
	itemShapeRe   = regexp.MustCompile(`^\d{3,5}\s*/`)
	unitMarkerRe  = regexp.MustCompile(`/\s*UN\s*/`)
	priceTailRe   = regexp.MustCompile(`/\s*\d+\s*/\s*[\d,\.]+\s*/\s*[\d,\.]+`)
	numericFldRe  = regexp.MustCompile(`[\d,\.]+`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?i)` + p)
	}
	return res
}

func matchesAny(res []*regexp.Regexp, line string) bool {
	for _, re := range res {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Sieve segments normalized text into whole-item strings plus the header
// lines the field patterns consume. Item descriptions wrap across lines
// and artifacts can appear anywhere, so this is the one place the
// cross-line join happens:
//
//   - an artifact line finalizes any open accumulator and is dropped;
//   - a 4-5 digit code followed by a slash opens a new accumulator;
//   - lines carrying the unit marker or the numeric tail continue it;
//   - anything else while accumulating is a wrapped description;
//   - finalized accumulators must pass isValidItemLine or are discarded.
func Sieve(text string) string {
	var kept []string
	current := ""

	flush := func() {
		if current != "" && isValidItemLine(current) {
			kept = append(kept, current)
		}
		current = ""
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if matchesAny(artifactRes, line) {
			flush()
			continue
		}

		switch {
		case itemOpenRe.MatchString(line):
			flush()
			current = line
		case current != "" && (unitMarkerRe.MatchString(line) || priceTailRe.MatchString(line)):
			current += " " + line
		case current != "":
			current += " " + line
		default:
			if isValidItemLine(line) || matchesAny(headerRes, line) {
				kept = append(kept, line)
			}
		}
	}
	flush()

	return strings.Join(kept, "\n")
}

// isValidItemLine gates finalized accumulators: item-open shape, a UN
// marker, at least three numeric fields, and none of the header residue
// that survives joining.
func isValidItemLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	if !itemShapeRe.MatchString(line) || !unitMarkerRe.MatchString(line) {
		return false
	}
	if len(numericFldRe.FindAllString(line, -1)) < 3 {
		return false
	}
	if strings.Contains(line, "Código Produto Unid") ||
		strings.Contains(line, "Quant. Valor Total") ||
		strings.Contains(line, "dia(s)") ||
		len(strings.Fields(line)) < 4 {
		return false
	}
	return true
}
