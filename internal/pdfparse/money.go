package pdfparse

import (
	"strconv"
	"strings"
	"time"
)

// ParseMoney converts a Brazilian-format currency string to a float:
// comma is the decimal separator, dots are thousands separators, an R$
// prefix is tolerated. Values without a comma fall back on a heuristic:
// a final dot-group longer than two digits means dot-separated thousands
// without cents ("1.234.567"), otherwise the value is read as American
// ("1234.56").
func ParseMoney(value string) (float64, bool) {
	value = strings.TrimSpace(strings.ReplaceAll(value, "R$", ""))
	if value == "" {
		return 0, false
	}

	if strings.Contains(value, ",") {
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	} else if strings.Contains(value, ".") {
		parts := strings.Split(value, ".")
		if len(parts[len(parts)-1]) > 2 {
			value = strings.ReplaceAll(value, ".", "")
		}
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDate reads DD/MM/YY (years under 100 promoted by adding 2000) and
// returns the calendar day as YYYY-MM-DD. Impossible dates are rejected.
func ParseDate(value string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 3 {
		return "", false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	if year < 100 {
		year += 2000
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
