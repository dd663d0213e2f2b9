package pdfparse

import (
	"regexp"
	"strings"
)

// Ranked patterns per header field: the canonical label first, then
// fallbacks tolerating looser punctuation around the colon. The first
// capture of the first match wins.
var (
	orderNumberRes = compileField(
		`Orçamento\s*N[ºo°]?:?\s*(\d+)`,
		`Or[çc]amento\s*[-:]*\s*(\d+)`,
		`N[ºo°]\s*[:]*\s*(\d+)`,
	)
	clientRes = compileField(
		`Cliente:\s*([^\n]+?)(?:\s*Forma\s*de\s*Pagto|$)`,
		`Cliente\s*[-:]\s*([^\n]+?)(?:\s*Forma|$)`,
		`Cliente\s+([^\n]+?)(?:\s*Forma|$)`,
	)
	sellerRes = compileField(
		`Vendedor:\s*([^\n]+?)(?:\s*Validade\s*do\s*Orçamento|$)`,
		`Vendedor\s*[-:]\s*([^\n]+?)(?:\s*Validade|$)`,
		`Vendedor\s+([^\n]+?)(?:\s*Validade|$)`,
	)
	dateRes = compileField(
		`Data:\s*(\d{2}/\d{2}/\d{2})`,
		`Data\s*[-:]\s*(\d{2}/\d{2}/\d{2})`,
		`(\d{2}/\d{2}/\d{2})`,
	)
	totalValueRes = compileField(
		`VALOR\s+A\s+PAGAR\s*R\$\s*([\d\.,]+)`,
		`TOTAL\s*R\$\s*([\d\.,]+)`,
		`VALOR\s*TOTAL\s*R\$\s*([\d\.,]+)`,
	)
)

func compileField(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?im)` + p)
	}
	return res
}

func findFirst(res []*regexp.Regexp, text string) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// Fields holds the raw header captures. Date and total stay unparsed
// strings here; client and seller are already cleaned.
type Fields struct {
	OrderNumber string
	ClientName  string
	SellerName  string
	OrderDate   string
	TotalValue  string
}

// ExtractFields pulls the five header fields out of the extracted text.
func ExtractFields(text string) Fields {
	return Fields{
		OrderNumber: findFirst(orderNumberRes, text),
		ClientName:  cleanField(findFirst(clientRes, text)),
		SellerName:  cleanField(findFirst(sellerRes, text)),
		OrderDate:   findFirst(dateRes, text),
		TotalValue:  findFirst(totalValueRes, text),
	}
}

// cleanField collapses embedded newlines, strips label prefixes that can
// recur inside a capture, and cuts at known right-boundary phrases.
func cleanField(s string) string {
	if s == "" {
		return ""
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))

	for _, prefix := range []string{"Cliente:", "CLIENTE:", "Vendedor:", "VENDEDOR:"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}
	for _, boundary := range []string{"Forma", "Validade"} {
		if i := strings.Index(s, boundary); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
	}
	return s
}
