package normalize

import (
	"testing"

	"pcprice-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeFromText(t *testing.T) {
	res, err := Canonicalize(&models.ScrapedProduct{
		Name:      "Intel Core i5-12400F",
		SKU:       "BX8071512400F",
		Store:     "A",
		PriceText: "$131.00 - S/445.40",
		StockText: "Mayor a 10 Artículos",
		SourceURL: "https://a.example/p/1",
	})
	require.NoError(t, err)

	p := res.Product
	assert.True(t, res.PriceKnown)
	assert.Equal(t, "usd_dash_local", res.PriceRule)
	assert.Equal(t, StockRuleMoreThan, res.StockRule)
	assert.True(t, decimal.RequireFromString("131.00").Equal(p.PriceUSD.Decimal))
	assert.True(t, decimal.RequireFromString("445.40").Equal(p.PriceLocal.Decimal))
	assert.Equal(t, models.CurrencyLocal, p.Currency)
	assert.Equal(t, "+10", p.Stock)
	assert.Equal(t, "INTEL CORE I5-12400F", p.NormalizedName)
	assert.Equal(t, "Intel", p.Brand)
	assert.Equal(t, "procesador", p.ComponentType)
	assert.True(t, p.IsActive)
}

func TestCanonicalizePreNormalized(t *testing.T) {
	usd := decimal.RequireFromString("99.90")
	res, err := Canonicalize(&models.ScrapedProduct{
		Name:          "Kingston Fury 16GB",
		Brand:         "kingston",
		ComponentType: "memoria_ram",
		Store:         "B",
		SKU:           "KF432C16BB/16",
		PriceUSD:      &usd,
		Stock:         "10+",
	})
	require.NoError(t, err)

	assert.Equal(t, PriceRuleProvided, res.PriceRule)
	assert.Equal(t, StockRuleProvided, res.StockRule)
	assert.Equal(t, "+10", res.Product.Stock)
	assert.Equal(t, models.CurrencyUSD, res.Product.Currency)
	assert.Equal(t, "kingston", res.Product.Brand)
	assert.Equal(t, "memoria_ram", res.Product.ComponentType)
	assert.Empty(t, res.Product.SourceURL)
}

func TestCanonicalizeUnknownPrice(t *testing.T) {
	res, err := Canonicalize(&models.ScrapedProduct{
		Name:      "ASUS Dual RTX 4060",
		Store:     "C",
		PriceText: "Consultar",
		SourceURL: "https://c.example/rtx",
	})
	require.NoError(t, err)

	assert.False(t, res.PriceKnown)
	assert.False(t, res.Product.PriceUSD.Valid)
	assert.Equal(t, StockRuleDefault, res.StockRule)
	assert.Equal(t, models.StockOut, res.Product.Stock)
}

func TestCanonicalizeTextFallsBackToProvidedPrice(t *testing.T) {
	usd := decimal.RequireFromString("50")
	res, err := Canonicalize(&models.ScrapedProduct{
		Name:      "Mouse Logitech G203",
		Store:     "C",
		PriceText: "Consultar",
		PriceUSD:  &usd,
		SourceURL: "https://c.example/g203",
	})
	require.NoError(t, err)

	assert.True(t, res.PriceKnown)
	assert.Equal(t, PriceRuleProvided, res.PriceRule)
}

func TestCanonicalizeContractViolations(t *testing.T) {
	negative := decimal.RequireFromString("-1")

	tests := map[string]*models.ScrapedProduct{
		"nil record":        nil,
		"missing name":      {Store: "A", SourceURL: "https://a.example/x"},
		"missing store":     {Name: "Ryzen 5 5600X", SourceURL: "https://a.example/x"},
		"no identity":       {Name: "Ryzen 5 5600X", Store: "A"},
		"negative price":    {Name: "Ryzen 5 5600X", Store: "A", SKU: "100-100000065BOX", PriceUSD: &negative},
		"blank name spaces": {Name: "   ", Store: "A", SKU: "X1"},
	}

	for name, rec := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Canonicalize(rec)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}
