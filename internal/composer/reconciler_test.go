package composer

import (
	"context"
	"errors"
	"testing"
	"time"

	"salepoint/backend/internal/domain"
)

func TestBuildPlanPartitionsByLineID(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	lines := []domain.LineItem{
		{LineID: "line-1", ProductID: "prod-pen", UnitPrice: 1.80, Quantity: 2},
		{ProductID: "prod-tape", UnitPrice: 2.75, Quantity: 1},
		{LineID: "line-2", ProductID: "prod-stapler", UnitPrice: 9.90, Quantity: 1, DiscountPercent: 10},
	}

	plan := BuildPlan("sale-9", "sp-1", "counter", lines, now)

	if len(plan.Updates) != 2 {
		t.Fatalf("expected 2 updates, got %+v", plan.Updates)
	}
	if plan.Updates[0].ID != "line-1" || plan.Updates[1].ID != "line-2" {
		t.Fatalf("updates out of order: %+v", plan.Updates)
	}
	if len(plan.Creates) != 1 || plan.Creates[0].ID != "" || plan.Creates[0].ProductID != "prod-tape" {
		t.Fatalf("expected one create for the new line, got %+v", plan.Creates)
	}

	// 2*1.80 + 1*2.75 + 1*9.90*0.9
	want := 3.60 + 2.75 + 8.91
	if diff := plan.Header.Total - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected header total %v, got %v", want, plan.Header.Total)
	}
	if plan.Header.ID != "sale-9" || plan.Header.SalespersonID != "sp-1" || plan.Header.Comments != "counter" {
		t.Fatalf("header fields not carried: %+v", plan.Header)
	}
	if !plan.Header.SaleDate.Equal(now) || !plan.Header.UpdatedDate.Equal(now) {
		t.Fatalf("header dates not set from now: %+v", plan.Header)
	}
}

func TestBuildPlanEmptySaleIDMarksAllCreates(t *testing.T) {
	lines := []domain.LineItem{
		{ProductID: "prod-pen", UnitPrice: 1.80, Quantity: 1},
		{ProductID: "prod-tape", UnitPrice: 2.75, Quantity: 3},
	}

	plan := BuildPlan("", "sp-1", "", lines, time.Now())

	if len(plan.Updates) != 0 || len(plan.Creates) != 2 {
		t.Fatalf("expected all lines as creates, got updates=%d creates=%d", len(plan.Updates), len(plan.Creates))
	}
	if plan.Header.ID != "" {
		t.Fatalf("expected empty header id for a new sale, got %q", plan.Header.ID)
	}
}

func TestApplyNewSaleAssignsServerIDToCreates(t *testing.T) {
	backend := &fakeBackend{}
	plan := BuildPlan("", "sp-1", "", []domain.LineItem{
		{ProductID: "prod-pen", UnitPrice: 1.80, Quantity: 1},
	}, time.Now())

	saved, err := Apply(context.Background(), backend, plan)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if saved.ID != "sale-created" {
		t.Fatalf("expected created sale id, got %q", saved.ID)
	}
	if backend.createdLines[0][0].SaleID != "sale-created" {
		t.Fatalf("create batch must carry the server-assigned sale id, got %+v", backend.createdLines[0])
	}
}

func TestApplySkipsEmptyBatches(t *testing.T) {
	backend := &fakeBackend{}
	plan := BuildPlan("sale-9", "sp-1", "", []domain.LineItem{
		{LineID: "line-1", ProductID: "prod-pen", UnitPrice: 1.80, Quantity: 1},
	}, time.Now())

	if _, err := Apply(context.Background(), backend, plan); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, call := range backend.calls {
		if call == "create_lines" {
			t.Fatalf("no create batch expected, got %v", backend.calls)
		}
	}
}

func TestApplyLineFailureReturnsErrorWithoutRollback(t *testing.T) {
	backend := &fakeBackend{updateLinesErr: errors.New("timeout")}
	plan := BuildPlan("sale-9", "sp-1", "", []domain.LineItem{
		{LineID: "line-1", ProductID: "prod-pen", UnitPrice: 1.80, Quantity: 1},
	}, time.Now())

	saved, err := Apply(context.Background(), backend, plan)
	if err == nil {
		t.Fatalf("expected line batch error")
	}
	// The header write already went through and is reported as applied.
	if saved == nil || saved.ID != "sale-9" {
		t.Fatalf("expected applied header alongside the error, got %+v", saved)
	}
	if backend.updatedSale == nil {
		t.Fatalf("expected header update before the failing batch")
	}
}

func TestManagerOpenGetAndEnd(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	manager := NewManager(backend, backend, nil)

	session, err := manager.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	got, err := manager.Get(session.ID())
	if err != nil || got != session {
		t.Fatalf("expected to get the registered session, got %v err=%v", got, err)
	}

	session.SetSalesperson("sp-1")
	if err := session.AddProduct("prod-pen"); err != nil {
		t.Fatalf("add pen: %v", err)
	}
	if _, err := session.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := manager.Get(session.ID()); err == nil {
		t.Fatalf("expected ended session to be unregistered")
	}
}

func TestManagerOpenEditFailureDoesNotRegister(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	manager := NewManager(backend, backend, nil)

	if _, err := manager.Open(context.Background(), "sale-missing"); err == nil {
		t.Fatalf("expected edit open to fail")
	}
}

func TestManagerAbandonUnknownIsIgnored(t *testing.T) {
	backend := &fakeBackend{products: catalog()}
	manager := NewManager(backend, backend, nil)
	manager.Abandon("session-unknown")
}
