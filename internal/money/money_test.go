package money

import (
	"math"
	"testing"

	"salepoint/backend/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestLineAmountZeroDiscountIsQuantityTimesPrice(t *testing.T) {
	got := LineAmount(3, 4.50, 0)
	if !almostEqual(got, 13.5) {
		t.Fatalf("expected 13.5, got %v", got)
	}
}

func TestLineAmountFullDiscountIsZero(t *testing.T) {
	got := LineAmount(7, 19.99, 100)
	if !almostEqual(got, 0) {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestLineAmountZeroQuantityIsZero(t *testing.T) {
	got := LineAmount(0, 9.90, 15)
	if !almostEqual(got, 0) {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestLineAmountPartialDiscount(t *testing.T) {
	// 3 * 4.00 at 25% off = 9.00
	got := LineAmount(3, 4.00, 25)
	if !almostEqual(got, 9.0) {
		t.Fatalf("expected 9.0, got %v", got)
	}
}

func TestCartTotalSumsLineAmounts(t *testing.T) {
	lines := []domain.LineItem{
		{Quantity: 2, UnitPrice: 1.80},
		{Quantity: 1, UnitPrice: 9.90, DiscountPercent: 10},
	}
	got := CartTotal(lines)
	want := 3.60 + 8.91
	if !almostEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCartTotalEmptyIsZero(t *testing.T) {
	if got := CartTotal(nil); !almostEqual(got, 0) {
		t.Fatalf("expected 0, got %v", got)
	}
}
