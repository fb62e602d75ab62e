package composer

import (
	"context"
	"time"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/money"
)

// Backend is the slice of the sale store the reconciler writes through.
type Backend interface {
	GetSaleWithLines(ctx context.Context, saleID string) (*domain.Sale, error)
	ListProducts(ctx context.Context, page domain.Page) ([]domain.Product, int, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	UpdateSale(ctx context.Context, saleID string, sale domain.Sale) error
	CreateSaleLines(ctx context.Context, lines []domain.SaleLine) error
	UpdateSaleLines(ctx context.Context, lines []domain.SaleLine) error
}

// LineDeleter performs the eager server-side deletion of a persisted line
// when it is removed mid-edit. Kept as its own interface so a deferred,
// transactional variant can replace the eager one without touching the
// session code.
type LineDeleter interface {
	DeleteSaleLine(ctx context.Context, lineID string) error
}

// Plan is the set of write operations that brings the server's line items in
// sync with the current cart. Existing lines are re-submitted unconditionally
// as idempotent overwrites; the plan never diffs field-by-field against the
// baseline. Lines removed from the cart do not appear here at all: their
// deletion already happened at removal time.
type Plan struct {
	Header  domain.Sale
	Updates []domain.SaleLine
	Creates []domain.SaleLine
}

// BuildPlan partitions the cart lines by presence of a persisted line id and
// computes the sale header. saleID is empty when composing a new sale; the
// created lines then receive the server-assigned sale id at apply time.
func BuildPlan(saleID string, salespersonID string, comments string, lines []domain.LineItem, now time.Time) Plan {
	plan := Plan{
		Header: domain.Sale{
			ID:            saleID,
			SalespersonID: salespersonID,
			Total:         money.CartTotal(lines),
			SaleDate:      now,
			Comments:      comments,
			UpdatedDate:   now,
		},
	}
	for _, line := range lines {
		persisted := domain.SaleLine{
			ID:              line.LineID,
			SaleID:          saleID,
			ProductID:       line.ProductID,
			UnitPrice:       line.UnitPrice,
			Quantity:        line.Quantity,
			DiscountPercent: line.DiscountPercent,
		}
		if line.LineID == "" {
			plan.Creates = append(plan.Creates, persisted)
		} else {
			plan.Updates = append(plan.Updates, persisted)
		}
	}
	return plan
}

// Apply runs the plan against the backend. The header operation always goes
// first: a new sale needs its server-assigned id before any line can be
// created, and for edits the ordering keeps the code path uniform. If the
// header write fails no line operation is attempted. If a line batch fails
// after the header succeeded the error is returned as-is; the header change
// is not rolled back (no transaction spans header and lines).
func Apply(ctx context.Context, backend Backend, plan Plan) (*domain.Sale, error) {
	var saved *domain.Sale
	if plan.Header.ID == "" {
		created, err := backend.CreateSale(ctx, plan.Header)
		if err != nil {
			return nil, err
		}
		saved = created
		for i := range plan.Creates {
			plan.Creates[i].SaleID = created.ID
		}
	} else {
		if err := backend.UpdateSale(ctx, plan.Header.ID, plan.Header); err != nil {
			return nil, err
		}
		header := plan.Header
		saved = &header
	}

	if len(plan.Updates) > 0 {
		if err := backend.UpdateSaleLines(ctx, plan.Updates); err != nil {
			return saved, err
		}
	}
	if len(plan.Creates) > 0 {
		if err := backend.CreateSaleLines(ctx, plan.Creates); err != nil {
			return saved, err
		}
	}
	return saved, nil
}
