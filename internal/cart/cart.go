// Package cart maintains the working set of line items for one sale
// composition. A Cart is exclusively owned by a single composer session and
// is not safe for concurrent use on its own; the session serializes access.
package cart

import (
	"fmt"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/money"
	"salepoint/backend/internal/store"
)

type Cart struct {
	lines []domain.LineItem
}

func New() *Cart {
	return &Cart{lines: make([]domain.LineItem, 0, 8)}
}

// Load replaces the cart contents with lines from a previously saved sale.
func (c *Cart) Load(lines []domain.LineItem) {
	c.lines = make([]domain.LineItem, len(lines))
	copy(c.lines, lines)
	for i := range c.lines {
		c.recompute(i)
	}
}

// AddProduct appends a new line with quantity 1, or increments the quantity
// of the existing line for the same product. The unit price is snapshotted
// from the product at this moment and never re-read from the catalog.
func (c *Cart) AddProduct(product domain.Product) {
	for i := range c.lines {
		if c.lines[i].ProductID == product.ID {
			c.lines[i].Quantity++
			c.recompute(i)
			return
		}
	}
	line := domain.LineItem{
		ProductID:       product.ID,
		ProductCode:     product.Code,
		ProductName:     product.Name,
		UnitPrice:       product.RetailPrice,
		Quantity:        1,
		DiscountPercent: 0,
	}
	line.Amount = money.LineAmount(line.Quantity, line.UnitPrice, line.DiscountPercent)
	c.lines = append(c.lines, line)
}

// UpdateQuantity sets the quantity for the product's line. A quantity of 0
// removes the line; a negative quantity is rejected without mutation.
func (c *Cart) UpdateQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", store.ErrValidation)
	}
	idx := c.index(productID)
	if idx < 0 {
		return fmt.Errorf("%w: no line for product %s", store.ErrNotFound, productID)
	}
	if quantity == 0 {
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
		return nil
	}
	c.lines[idx].Quantity = quantity
	c.recompute(idx)
	return nil
}

// UpdateDiscount sets the discount percent for the product's line. Values
// outside [0,100] are rejected without mutation.
func (c *Cart) UpdateDiscount(productID string, discountPercent float64) error {
	if discountPercent < 0 || discountPercent > 100 {
		return fmt.Errorf("%w: discount percent must be between 0 and 100", store.ErrValidation)
	}
	idx := c.index(productID)
	if idx < 0 {
		return fmt.Errorf("%w: no line for product %s", store.ErrNotFound, productID)
	}
	c.lines[idx].DiscountPercent = discountPercent
	c.recompute(idx)
	return nil
}

// Remove drops the product's line locally and returns it. Server-side
// deletion of persisted lines is the session's responsibility and must
// succeed before calling Remove.
func (c *Cart) Remove(productID string) (domain.LineItem, bool) {
	idx := c.index(productID)
	if idx < 0 {
		return domain.LineItem{}, false
	}
	removed := c.lines[idx]
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	return removed, true
}

// Line returns the line for the product, if present.
func (c *Cart) Line(productID string) (domain.LineItem, bool) {
	idx := c.index(productID)
	if idx < 0 {
		return domain.LineItem{}, false
	}
	return c.lines[idx], true
}

// Snapshot returns a copy of the lines in insertion order.
func (c *Cart) Snapshot() []domain.LineItem {
	out := make([]domain.LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Total() float64 {
	return money.CartTotal(c.lines)
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) Reset() {
	c.lines = c.lines[:0]
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) recompute(idx int) {
	line := &c.lines[idx]
	line.Amount = money.LineAmount(line.Quantity, line.UnitPrice, line.DiscountPercent)
}
