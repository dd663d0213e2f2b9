package orders

import (
	"fmt"
	"strings"

	"pmcell-separacao/internal/db"
)

// Canonical enum values as stored. Clients may send display variants
// ("Melhor Envio", "Ônibus", "IN_PROGRESS"); normalization lowercases,
// folds accents and joins words with underscores before validating.
var (
	logisticsTypes = map[string]bool{
		"lalamove":        true,
		"correios":        true,
		"melhor_envio":    true,
		"retirada":        true,
		"entrega":         true,
		"cliente_na_loja": true,
		"onibus":          true,
	}
	packageTypes = map[string]bool{
		"caixa":  true,
		"sacola": true,
	}
	orderStatuses = map[string]bool{
		db.StatusPending:    true,
		db.StatusInProgress: true,
		db.StatusCompleted:  true,
		db.StatusCancelled:  true,
	}
)

var accentFold = strings.NewReplacer(
	"á", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

func normalizeEnum(s string) string {
	s = accentFold.Replace(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(strings.Fields(s), "_")
}

// NormalizeLogisticsType canonicalizes a logistics label. Empty input is
// allowed (the field is optional at confirm time).
func NormalizeLogisticsType(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	v := normalizeEnum(s)
	if !logisticsTypes[v] {
		return "", fmt.Errorf("%w: logistics_type %q", ErrInvalidInput, s)
	}
	return v, nil
}

// NormalizePackageType canonicalizes a package label; empty is allowed.
func NormalizePackageType(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	v := normalizeEnum(s)
	if !packageTypes[v] {
		return "", fmt.Errorf("%w: package_type %q", ErrInvalidInput, s)
	}
	return v, nil
}

// NormalizeStatus canonicalizes a status filter; empty means no filter.
func NormalizeStatus(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	v := normalizeEnum(s)
	if !orderStatuses[v] {
		return "", fmt.Errorf("%w: status %q", ErrInvalidInput, s)
	}
	return v, nil
}
