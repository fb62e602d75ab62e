package composer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
)

// fakeBackend records every write in call order so tests can assert
// header-first sequencing.
type fakeBackend struct {
	products []domain.Product
	sale     *domain.Sale

	saleErr        error
	createSaleErr  error
	updateSaleErr  error
	createLinesErr error
	updateLinesErr error
	deleteLineErr  error

	calls        []string
	updatedSale  *domain.Sale
	createdSale  *domain.Sale
	createdLines [][]domain.SaleLine
	updatedLines [][]domain.SaleLine
	deletedLines []string
}

func (f *fakeBackend) ListProducts(_ context.Context, _ domain.Page) ([]domain.Product, int, error) {
	return f.products, len(f.products), nil
}

func (f *fakeBackend) GetSaleWithLines(_ context.Context, saleID string) (*domain.Sale, error) {
	if f.saleErr != nil {
		return nil, f.saleErr
	}
	if f.sale == nil || f.sale.ID != saleID {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	copySale := *f.sale
	return &copySale, nil
}

func (f *fakeBackend) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	f.calls = append(f.calls, "create_sale")
	if f.createSaleErr != nil {
		return nil, f.createSaleErr
	}
	sale.ID = "sale-created"
	f.createdSale = &sale
	return &sale, nil
}

func (f *fakeBackend) UpdateSale(_ context.Context, saleID string, sale domain.Sale) error {
	f.calls = append(f.calls, "update_sale")
	if f.updateSaleErr != nil {
		return f.updateSaleErr
	}
	sale.ID = saleID
	f.updatedSale = &sale
	return nil
}

func (f *fakeBackend) CreateSaleLines(_ context.Context, lines []domain.SaleLine) error {
	f.calls = append(f.calls, "create_lines")
	if f.createLinesErr != nil {
		return f.createLinesErr
	}
	f.createdLines = append(f.createdLines, lines)
	return nil
}

func (f *fakeBackend) UpdateSaleLines(_ context.Context, lines []domain.SaleLine) error {
	f.calls = append(f.calls, "update_lines")
	if f.updateLinesErr != nil {
		return f.updateLinesErr
	}
	f.updatedLines = append(f.updatedLines, lines)
	return nil
}

func (f *fakeBackend) DeleteSaleLine(_ context.Context, lineID string) error {
	f.calls = append(f.calls, "delete_line")
	if f.deleteLineErr != nil {
		return f.deleteLineErr
	}
	f.deletedLines = append(f.deletedLines, lineID)
	return nil
}

func catalog() []domain.Product {
	return []domain.Product{
		{ID: "prod-pen", Code: "PEN-GEL", Name: "Gel Pen 0.5mm Black", RetailPrice: 1.80},
		{ID: "prod-stapler", Code: "STAPLER", Name: "Desktop Stapler", RetailPrice: 9.90},
		{ID: "prod-tape", Code: "TAPE-50", Name: "Packing Tape 50m", RetailPrice: 2.75},
	}
}

type eventRecorder struct {
	events []Event
}

func (r *eventRecorder) listener() Listener {
	return func(_ string, event Event) {
		r.events = append(r.events, event)
	}
}

func (r *eventRecorder) count(event Event) int {
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func newStartedSession(t *testing.T, backend *fakeBackend, rec *eventRecorder) *Session {
	t.Helper()
	session := NewSession(backend, backend, rec.listener())
	if err := session.StartNew(context.Background()); err != nil {
		t.Fatalf("start new: %v", err)
	}
	return session
}

func TestSaveRequiresSalesperson(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	rec := &eventRecorder{}
	session := newStartedSession(t, backend, rec)

	if err := session.AddProduct("prod-pen"); err != nil {
		t.Fatalf("add product: %v", err)
	}

	_, err := session.Save(context.Background())
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("expected no backend writes, got %v", backend.calls)
	}
	if session.Ended() {
		t.Fatalf("failed save must not end the session")
	}
}

func TestSaveRequiresLines(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	session := newStartedSession(t, backend, &eventRecorder{})
	session.SetSalesperson("sp-1")

	_, err := session.Save(context.Background())
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("expected no backend writes, got %v", backend.calls)
	}
}

func TestSaveNewSaleCreatesHeaderBeforeLines(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	rec := &eventRecorder{}
	session := newStartedSession(t, backend, rec)

	session.SetSalesperson("sp-1")
	session.SetComments("walk-in")
	if err := session.AddProduct("prod-pen"); err != nil {
		t.Fatalf("add pen: %v", err)
	}
	if err := session.AddProduct("prod-pen"); err != nil {
		t.Fatalf("add pen again: %v", err)
	}
	if err := session.AddProduct("prod-stapler"); err != nil {
		t.Fatalf("add stapler: %v", err)
	}

	saved, err := session.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if len(backend.calls) != 2 || backend.calls[0] != "create_sale" || backend.calls[1] != "create_lines" {
		t.Fatalf("expected [create_sale create_lines], got %v", backend.calls)
	}
	if saved.ID != "sale-created" {
		t.Fatalf("expected server-assigned sale id, got %q", saved.ID)
	}
	// 2 * 1.80 + 1 * 9.90
	if backend.createdSale.Total != 13.5 {
		t.Fatalf("expected header total 13.5, got %v", backend.createdSale.Total)
	}
	if backend.createdSale.SalespersonID != "sp-1" || backend.createdSale.Comments != "walk-in" {
		t.Fatalf("header fields not carried: %+v", backend.createdSale)
	}
	lines := backend.createdLines[0]
	if len(lines) != 2 {
		t.Fatalf("expected 2 created lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line.SaleID != "sale-created" {
			t.Fatalf("created line missing server-assigned sale id: %+v", line)
		}
	}

	if !session.Ended() {
		t.Fatalf("successful save must end the session")
	}
	if rec.count(EventSessionEnded) != 1 {
		t.Fatalf("expected one session-ended event, got %v", rec.events)
	}
	if len(session.Snapshot()) != 0 {
		t.Fatalf("expected cart reset after save")
	}
}

func TestSaveEditPartitionsUpdatesAndCreates(t *testing.T) {
	backend := &fakeBackend{
		products: catalog(),
		sale: &domain.Sale{
			ID:            "sale-9",
			SalespersonID: "sp-2",
			Comments:      "phone order",
			Lines: []domain.SaleLine{
				{ID: "line-1", SaleID: "sale-9", ProductID: "prod-pen", UnitPrice: 1.80, Quantity: 2},
				{ID: "line-2", SaleID: "sale-9", ProductID: "prod-stapler", UnitPrice: 9.90, Quantity: 1, DiscountPercent: 10},
			},
		},
	}
	rec := &eventRecorder{}
	session := NewSession(backend, backend, rec.listener())
	if err := session.StartEdit(context.Background(), "sale-9"); err != nil {
		t.Fatalf("start edit: %v", err)
	}

	if err := session.AddProduct("prod-tape"); err != nil {
		t.Fatalf("add tape: %v", err)
	}

	if _, err := session.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	want := []string{"update_sale", "update_lines", "create_lines"}
	if len(backend.calls) != 3 {
		t.Fatalf("expected calls %v, got %v", want, backend.calls)
	}
	for i := range want {
		if backend.calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, backend.calls)
		}
	}

	updates := backend.updatedLines[0]
	if len(updates) != 2 || updates[0].ID != "line-1" || updates[1].ID != "line-2" {
		t.Fatalf("expected unconditional updates for both persisted lines, got %+v", updates)
	}
	creates := backend.createdLines[0]
	if len(creates) != 1 || creates[0].ID != "" || creates[0].SaleID != "sale-9" {
		t.Fatalf("expected one create bound to sale-9, got %+v", creates)
	}
	if backend.updatedSale.SalespersonID != "sp-2" {
		t.Fatalf("expected salesperson preserved from loaded sale, got %+v", backend.updatedSale)
	}
}

func TestSaveHeaderFailureAbortsLineWrites(t *testing.T) {
	backend := &fakeBackend{products: catalog(), createSaleErr: errors.New("connection reset")}
	session := newStartedSession(t, backend, &eventRecorder{})
	session.SetSalesperson("sp-1")
	if err := session.AddProduct("prod-pen"); err != nil {
		t.Fatalf("add pen: %v", err)
	}

	_, err := session.Save(context.Background())
	if err == nil {
		t.Fatalf("expected save to fail")
	}
	if len(backend.calls) != 1 || backend.calls[0] != "create_sale" {
		t.Fatalf("expected only the header attempt, got %v", backend.calls)
	}
	if session.Ended() {
		t.Fatalf("failed save must leave the session open")
	}
	if len(session.Snapshot()) != 1 {
		t.Fatalf("failed save must keep the cart for retry")
	}
}

func TestStartEditLoadFailureEndsSession(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	rec := &eventRecorder{}
	session := NewSession(backend, backend, rec.listener())

	err := session.StartEdit(context.Background(), "sale-missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if !session.Ended() {
		t.Fatalf("failed edit start must end the session")
	}
	if rec.count(EventSessionEnded) != 1 {
		t.Fatalf("expected session-ended event, got %v", rec.events)
	}
	if len(session.Snapshot()) != 0 {
		t.Fatalf("expected empty cart after failed edit start")
	}
}

func TestStartEditMissingProductGetsPlaceholderLabel(t *testing.T) {
	backend := &fakeBackend{
		products: catalog(),
		sale: &domain.Sale{
			ID:            "sale-9",
			SalespersonID: "sp-2",
			Lines: []domain.SaleLine{
				{ID: "line-1", SaleID: "sale-9", ProductID: "prod-retired", UnitPrice: 5.00, Quantity: 1},
			},
		},
	}
	session := NewSession(backend, backend, nil)
	if err := session.StartEdit(context.Background(), "sale-9"); err != nil {
		t.Fatalf("start edit: %v", err)
	}

	lines := session.Snapshot()
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].ProductName != "Product prod-retired" {
		t.Fatalf("expected placeholder label, got %q", lines[0].ProductName)
	}
	// The line stays editable despite the missing product.
	if err := session.UpdateQuantity(context.Background(), "prod-retired", 4); err != nil {
		t.Fatalf("update quantity on placeholder line: %v", err)
	}
}

func TestRemovePersistedLineDeletesOnServerFirst(t *testing.T) {
	backend := &fakeBackend{
		products: catalog(),
		sale: &domain.Sale{
			ID:            "sale-9",
			SalespersonID: "sp-2",
			Lines: []domain.SaleLine{
				{ID: "line-1", SaleID: "sale-9", ProductID: "prod-pen", UnitPrice: 1.80, Quantity: 2},
			},
		},
	}
	session := NewSession(backend, backend, nil)
	if err := session.StartEdit(context.Background(), "sale-9"); err != nil {
		t.Fatalf("start edit: %v", err)
	}

	if err := session.RemoveLine(context.Background(), "prod-pen"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(backend.deletedLines) != 1 || backend.deletedLines[0] != "line-1" {
		t.Fatalf("expected server delete of line-1, got %v", backend.deletedLines)
	}
	if len(session.Snapshot()) != 0 {
		t.Fatalf("expected line gone from cart")
	}
}

func TestRemovePersistedLineKeepsLineWhenDeleteFails(t *testing.T) {
	backend := &fakeBackend{
		products:      catalog(),
		deleteLineErr: fmt.Errorf("%w: line referenced elsewhere", store.ErrConflict),
		sale: &domain.Sale{
			ID:            "sale-9",
			SalespersonID: "sp-2",
			Lines: []domain.SaleLine{
				{ID: "line-1", SaleID: "sale-9", ProductID: "prod-pen", UnitPrice: 1.80, Quantity: 2},
			},
		},
	}
	rec := &eventRecorder{}
	session := NewSession(backend, backend, rec.listener())
	if err := session.StartEdit(context.Background(), "sale-9"); err != nil {
		t.Fatalf("start edit: %v", err)
	}

	err := session.RemoveLine(context.Background(), "prod-pen")
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if len(session.Snapshot()) != 1 {
		t.Fatalf("line must stay in the cart when the server delete fails")
	}
	if rec.count(EventCartChanged) != 0 {
		t.Fatalf("no cart-changed event expected for a failed removal, got %v", rec.events)
	}
}

func TestUpdateQuantityZeroDeletesPersistedLineOnServer(t *testing.T) {
	backend := &fakeBackend{
		products: catalog(),
		sale: &domain.Sale{
			ID:            "sale-9",
			SalespersonID: "sp-2",
			Lines: []domain.SaleLine{
				{ID: "line-1", SaleID: "sale-9", ProductID: "prod-pen", UnitPrice: 1.80, Quantity: 2},
			},
		},
	}
	session := NewSession(backend, backend, nil)
	if err := session.StartEdit(context.Background(), "sale-9"); err != nil {
		t.Fatalf("start edit: %v", err)
	}

	if err := session.UpdateQuantity(context.Background(), "prod-pen", 0); err != nil {
		t.Fatalf("update quantity to 0: %v", err)
	}
	if len(backend.deletedLines) != 1 || backend.deletedLines[0] != "line-1" {
		t.Fatalf("quantity 0 must delete the persisted line on the server, got deletes=%v", backend.deletedLines)
	}
	if len(session.Snapshot()) != 0 {
		t.Fatalf("expected line gone from cart")
	}
}

func TestUpdateQuantityZeroKeepsPersistedLineWhenDeleteFails(t *testing.T) {
	backend := &fakeBackend{
		products:      catalog(),
		deleteLineErr: fmt.Errorf("%w: line referenced elsewhere", store.ErrConflict),
		sale: &domain.Sale{
			ID:            "sale-9",
			SalespersonID: "sp-2",
			Lines: []domain.SaleLine{
				{ID: "line-1", SaleID: "sale-9", ProductID: "prod-pen", UnitPrice: 1.80, Quantity: 2},
			},
		},
	}
	session := NewSession(backend, backend, nil)
	if err := session.StartEdit(context.Background(), "sale-9"); err != nil {
		t.Fatalf("start edit: %v", err)
	}

	err := session.UpdateQuantity(context.Background(), "prod-pen", 0)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if len(session.Snapshot()) != 1 {
		t.Fatalf("line must stay in the cart when the server delete fails")
	}
}

func TestRemoveUnpersistedLineSkipsServer(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	session := newStartedSession(t, backend, &eventRecorder{})
	if err := session.AddProduct("prod-pen"); err != nil {
		t.Fatalf("add pen: %v", err)
	}

	if err := session.RemoveLine(context.Background(), "prod-pen"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	for _, call := range backend.calls {
		if call == "delete_line" {
			t.Fatalf("unpersisted line removal must not call the server, got %v", backend.calls)
		}
	}
}

func TestAddProductUnknownInSnapshot(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	session := newStartedSession(t, backend, &eventRecorder{})

	err := session.AddProduct("prod-unknown")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestVersionAdvancesOnMutation(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	session := newStartedSession(t, backend, &eventRecorder{})

	before := session.State().Version
	if err := session.AddProduct("prod-pen"); err != nil {
		t.Fatalf("add pen: %v", err)
	}
	after := session.State().Version
	if after <= before {
		t.Fatalf("expected version to advance, got %d -> %d", before, after)
	}
}

func TestAbandonEndsSessionWithoutWrites(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	rec := &eventRecorder{}
	session := newStartedSession(t, backend, rec)
	if err := session.AddProduct("prod-pen"); err != nil {
		t.Fatalf("add pen: %v", err)
	}

	session.Abandon()

	if !session.Ended() {
		t.Fatalf("expected session to end")
	}
	if len(backend.calls) != 0 {
		t.Fatalf("abandon must not write, got %v", backend.calls)
	}
	if rec.count(EventSessionEnded) != 1 {
		t.Fatalf("expected session-ended event, got %v", rec.events)
	}
}
