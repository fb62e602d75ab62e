// Package money holds the pure line and cart arithmetic. Values are plain
// float64 amounts; rounding to currency precision is a presentation concern
// and never happens here.
package money

import "salepoint/backend/internal/domain"

// LineAmount computes quantity * unitPrice * (1 - discountPercent/100).
// Callers validate ranges (quantity >= 0, price >= 0, discount in [0,100])
// before reaching this function.
func LineAmount(quantity int, unitPrice float64, discountPercent float64) float64 {
	return float64(quantity) * unitPrice * (1 - discountPercent/100)
}

// CartTotal sums LineAmount over all lines. An empty cart totals 0.
func CartTotal(lines []domain.LineItem) float64 {
	total := 0.0
	for _, line := range lines {
		total += LineAmount(line.Quantity, line.UnitPrice, line.DiscountPercent)
	}
	return total
}
