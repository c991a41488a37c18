package normalize

import (
	"regexp"
	"strings"

	"pcprice-service/internal/models"

	"github.com/shopspring/decimal"
)

// Price is the canonical dual-currency amount parsed from listing text
type Price struct {
	USD      decimal.Decimal
	Local    decimal.NullDecimal
	Currency string
}

// HasLocal reports whether a local-currency amount was found
func (p Price) HasLocal() bool {
	return p.Local.Valid
}

// amountPattern captures one amount. Space-grouped thousands ("1 326.49") are
// only allowed before the decimal part, so a count after a finished amount
// is not absorbed.
const amountPattern = `(\d{1,3}(?:[ \x{a0}]\d{3})+(?:[.,]\d+)?|[\d.,]+)`

var (
	whitespacePattern = regexp.MustCompile(`\s+`)

	// $91,80 (S/319,46)
	usdParenLocalPattern = regexp.MustCompile(`\$\s*` + amountPattern + `\s*\(\s*S/\s*` + amountPattern + `\s*\)`)
	// $131.00 - S/445.40, $389.00 - S/1 326.49
	usdDashLocalPattern = regexp.MustCompile(`\$\s*` + amountPattern + `\s*-\s*S/\s*` + amountPattern)
	// $ 345.00 ó S/ 1,186.50
	usdOrLocalPattern = regexp.MustCompile(`\$\s*` + amountPattern + `\s*(?:ó|o)\s*S/\s*` + amountPattern)

	usdPattern   = regexp.MustCompile(`\$\s*` + amountPattern)
	localPattern = regexp.MustCompile(`S/\s*` + amountPattern)
)

type priceRule struct {
	name  string
	parse func(text string) (Price, bool)
}

// priceRules is tried in order; the first rule that yields a price wins.
var priceRules = []priceRule{
	{name: "usd_paren_local", parse: pairRule(usdParenLocalPattern)},
	{name: "usd_dash_local", parse: pairRule(usdDashLocalPattern)},
	{name: "usd_or_local", parse: pairRule(usdOrLocalPattern)},
	{name: "usd_fallback", parse: parseUSDFallback},
}

// ParsePrice extracts the USD and optional local amounts from free-form
// price text. ok is false when no dollar amount can be found; callers must
// treat that as an unknown price, never as zero.
func ParsePrice(text string) (price Price, ok bool) {
	price, _, ok = parsePriceRule(text)
	return price, ok
}

func parsePriceRule(text string) (Price, string, bool) {
	text = collapseSpaces(text)
	if text == "" {
		return Price{}, "", false
	}

	for _, rule := range priceRules {
		if price, ok := rule.parse(text); ok {
			return price, rule.name, true
		}
	}
	return Price{}, "", false
}

func pairRule(pattern *regexp.Regexp) func(string) (Price, bool) {
	return func(text string) (Price, bool) {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			return Price{}, false
		}

		usd, ok := parseAmount(m[1])
		if !ok {
			return Price{}, false
		}
		local, ok := parseAmount(m[2])
		if !ok {
			return Price{}, false
		}

		return Price{
			USD:      usd,
			Local:    decimal.NewNullDecimal(local),
			Currency: models.CurrencyLocal,
		}, true
	}
}

func parseUSDFallback(text string) (Price, bool) {
	m := usdPattern.FindStringSubmatch(text)
	if m == nil {
		return Price{}, false
	}

	usd, ok := parseAmount(m[1])
	if !ok {
		return Price{}, false
	}

	price := Price{USD: usd, Currency: models.CurrencyUSD}
	if lm := localPattern.FindStringSubmatch(text); lm != nil {
		if local, ok := parseAmount(lm[1]); ok {
			price.Local = decimal.NewNullDecimal(local)
			price.Currency = models.CurrencyLocal
		}
	}
	return price, true
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	// sentence punctuation directly after the amount
	raw = strings.TrimRight(strings.TrimSpace(raw), ".,")
	normalized := NormalizeNumber(raw)
	if normalized == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// NormalizeNumber rewrites a locale-formatted amount so that '.' is the only
// decimal separator and no thousands separators remain.
//
//	"1.953,67" -> "1953.67"
//	"1,953.67" -> "1953.67"
//	"1 326.49" -> "1326.49"
//	"91,80"    -> "91.80"
//	"1,000"    -> "1000"
//
// The output never contains a comma or more than one dot, so the function is
// idempotent.
func NormalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, " \u00a0") {
		s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(s)
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
		if commas == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots == 1 && commas == 1:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas == 1:
		digitsAfter := len(s) - strings.LastIndex(s, ",") - 1
		if digitsAfter == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	return s
}

func collapseSpaces(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
