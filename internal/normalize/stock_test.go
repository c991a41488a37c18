package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStock(t *testing.T) {
	tests := []struct {
		text  string
		token string
		rule  string
	}{
		{"Mayor a 10 Artículos", "+10", StockRuleMoreThan},
		{"Más de 20 unidades", "+20", StockRuleMoreThan},
		{"more than 3", "+3", StockRuleMoreThan},
		{"Stock: 5", "5", StockRuleExactCount},
		{"Stock: 007", "7", StockRuleExactCount},
		{"0 unidades", "0", StockRuleExactCount},
		{"Agotado", "0", StockRuleOutOfStock},
		{"No disponible", "0", StockRuleOutOfStock},
		{"SIN STOCK", "0", StockRuleOutOfStock},
		{"Disponible", "+5", StockRuleAvailable},
		{"En stock", "+5", StockRuleAvailable},
		// "stock" is generic availability and is checked first
		{"Low stock", "+5", StockRuleAvailable},
		{"Pocas unidades", "1-4", StockRuleLowStock},
		{"Últimas unidades", "1-4", StockRuleLowStock},
		{"", "0", StockRuleDefault},
		{"Consultar", "0", StockRuleDefault},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			token, rule := ClassifyStock(tt.text)
			assert.Equal(t, tt.token, token)
			assert.Equal(t, tt.rule, rule)
			assert.Equal(t, tt.token, ParseStock(tt.text))
		})
	}
}

func TestStandardizeStockToken(t *testing.T) {
	tests := map[string]string{
		"10+":  "+10",
		">10":  "+10",
		"+10":  "+10",
		"1-4":  "1-4",
		"5":    "5",
		"":     "0",
		" 8 ":  "8",
		"010+": "+10",
	}

	for in, want := range tests {
		assert.Equal(t, want, StandardizeStockToken(in), "input %q", in)
	}
}
