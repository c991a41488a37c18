package normalize

import (
	"regexp"
	"strings"

	"pcprice-service/internal/models"
)

// Names of the stock rules, reported by ClassifyStock
const (
	StockRuleMoreThan   = "more_than"
	StockRuleExactCount = "exact_count"
	StockRuleOutOfStock = "out_of_stock"
	StockRuleAvailable  = "available"
	StockRuleLowStock   = "low_stock"
	StockRuleDefault    = "default"
)

var integerPattern = regexp.MustCompile(`\d+`)

// Vocabularies are matched against folded (lowercase, accent-free) text.
var (
	moreThanQualifiers = []string{"mayor a", "mayor de", "mas de", "more than"}
	outOfStockWords    = []string{"agotado", "sin stock", "out of stock", "no disponible"}
	availableWords     = []string{"disponible", "en stock", "stock", "available"}
	lowStockWords      = []string{"pocas unidades", "ultimas unidades", "low stock"}
)

type stockRule struct {
	name  string
	apply func(folded string) (string, bool)
}

// stockRules is evaluated in order; the first rule that applies wins.
var stockRules = []stockRule{
	{name: StockRuleMoreThan, apply: func(text string) (string, bool) {
		n, ok := firstInteger(text)
		if !ok || !containsAny(text, moreThanQualifiers) {
			return "", false
		}
		return "+" + n, true
	}},
	{name: StockRuleExactCount, apply: firstInteger},
	{name: StockRuleOutOfStock, apply: vocabulary(outOfStockWords, models.StockOut)},
	{name: StockRuleAvailable, apply: vocabulary(availableWords, models.StockAvailable)},
	{name: StockRuleLowStock, apply: vocabulary(lowStockWords, models.StockLow)},
}

// ParseStock maps free-form availability text onto a canonical stock token:
// an exact count, "+N", "1-4" or "0". It never fails; unrecognized text
// yields "0".
func ParseStock(text string) string {
	token, _ := ClassifyStock(text)
	return token
}

// ClassifyStock is ParseStock that also reports which rule produced the
// token, so an explicit zero can be told apart from StockRuleDefault.
func ClassifyStock(text string) (token, rule string) {
	folded := Fold(strings.TrimSpace(text))
	if folded == "" {
		return models.StockOut, StockRuleDefault
	}

	for _, r := range stockRules {
		if token, ok := r.apply(folded); ok {
			return token, r.name
		}
	}
	return models.StockOut, StockRuleDefault
}

// StandardizeStockToken accepts an already-normalized stock value from a
// scraper, rewriting the legacy "10+" and ">10" spellings to "+10".
func StandardizeStockToken(stock string) string {
	stock = strings.TrimSpace(stock)
	switch {
	case stock == "":
		return models.StockOut
	case strings.HasSuffix(stock, "+") && isDigits(stock[:len(stock)-1]):
		return "+" + trimZeros(stock[:len(stock)-1])
	case strings.HasPrefix(stock, ">") && isDigits(stock[1:]):
		return "+" + trimZeros(stock[1:])
	}
	return stock
}

func vocabulary(words []string, token string) func(string) (string, bool) {
	return func(text string) (string, bool) {
		if containsAny(text, words) {
			return token, true
		}
		return "", false
	}
}

func firstInteger(text string) (string, bool) {
	m := integerPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return trimZeros(m), true
}

func trimZeros(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
