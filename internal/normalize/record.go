package normalize

import (
	"errors"
	"fmt"
	"strings"

	"pcprice-service/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInvalidRecord marks a scraper record that breaks the ingestion contract
var ErrInvalidRecord = errors.New("invalid scraped record")

// Sources reported in Result when a value was not parsed from text
const (
	PriceRuleProvided = "provided"
	StockRuleProvided = "provided"
)

// Result is a canonical product ready for persistence plus how each field
// was derived
type Result struct {
	Product    models.Product
	PriceKnown bool
	PriceRule  string
	StockRule  string
}

// Canonicalize is the single entry point that turns a raw scraper record
// into a canonical product. Unparseable price text is not an error: the
// product keeps an unknown price and PriceKnown is false.
func Canonicalize(rec *models.ScrapedProduct) (*Result, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}

	name := collapseSpaces(rec.Name)
	store := strings.TrimSpace(rec.Store)
	sourceURL := strings.TrimSpace(rec.SourceURL)
	sku := strings.TrimSpace(rec.SKU)

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	if store == "" {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidRecord)
	}
	if sourceURL == "" && sku == "" {
		return nil, fmt.Errorf("%w: source_url or sku is required (store=%s, name=%q)", ErrInvalidRecord, store, name)
	}

	product := models.Product{
		Store:          store,
		Name:           name,
		NormalizedName: NormalizeName(name),
		SKU:            sku,
		SourceURL:      sourceURL,
		ImageURL:       strings.TrimSpace(rec.ImageURL),
		IsActive:       true,
	}

	res := &Result{}

	priceRule, err := applyPrice(rec, &product)
	if err != nil {
		return nil, err
	}
	res.PriceRule = priceRule
	res.PriceKnown = product.PriceUSD.Valid

	switch {
	case strings.TrimSpace(rec.StockText) != "":
		product.Stock, res.StockRule = ClassifyStock(rec.StockText)
	case strings.TrimSpace(rec.Stock) != "":
		product.Stock, res.StockRule = StandardizeStockToken(rec.Stock), StockRuleProvided
	default:
		product.Stock, res.StockRule = models.StockOut, StockRuleDefault
	}

	product.Brand = strings.TrimSpace(rec.Brand)
	if product.Brand == "" {
		product.Brand = DetectBrand(name)
	}

	product.ComponentType = strings.TrimSpace(rec.ComponentType)
	if product.ComponentType == "" {
		product.ComponentType = DetectComponentType(name, rec.Category)
	}

	res.Product = product
	return res, nil
}

// applyPrice prefers price text; pre-normalized amounts are used as given
// when there is no text or the text does not parse.
func applyPrice(rec *models.ScrapedProduct, product *models.Product) (string, error) {
	if rec.PriceUSD != nil && rec.PriceUSD.IsNegative() {
		return "", fmt.Errorf("%w: negative price_usd %s", ErrInvalidRecord, rec.PriceUSD.String())
	}
	if rec.PriceLocal != nil && rec.PriceLocal.IsNegative() {
		return "", fmt.Errorf("%w: negative price_local %s", ErrInvalidRecord, rec.PriceLocal.String())
	}

	if strings.TrimSpace(rec.PriceText) != "" {
		if price, rule, ok := parsePriceRule(rec.PriceText); ok {
			product.PriceUSD = decimal.NewNullDecimal(price.USD)
			product.PriceLocal = price.Local
			product.Currency = price.Currency
			return rule, nil
		}
	}

	if rec.PriceUSD == nil {
		product.Currency = models.CurrencyUSD
		return "", nil
	}

	product.PriceUSD = decimal.NewNullDecimal(*rec.PriceUSD)
	product.Currency = models.CurrencyUSD
	if rec.PriceLocal != nil {
		product.PriceLocal = decimal.NewNullDecimal(*rec.PriceLocal)
		product.Currency = models.CurrencyLocal
	}
	if c := strings.ToUpper(strings.TrimSpace(rec.Currency)); c != "" {
		product.Currency = c
	}
	return PriceRuleProvided, nil
}
