package service

import (
	"context"
	"log"
	"time"

	"salepoint/backend/internal/cache"
	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
)

// composerBackend routes composer reads through the catalog cache and
// everything else straight to the repository. Cache failures degrade to a
// repository read; they never fail the session.
type composerBackend struct {
	repo    store.Repository
	catalog cache.CatalogCache
	ttl     time.Duration
}

func (b *composerBackend) ListProducts(ctx context.Context, page domain.Page) ([]domain.Product, int, error) {
	if page.Offset == 0 && page.Limit == 0 {
		if cached, ok, err := b.catalog.GetProducts(ctx); err != nil {
			log.Printf("[cache] WARN: catalog read failed: %v", err)
		} else if ok {
			return cached, len(cached), nil
		}
	}

	products, total, err := b.repo.ListProducts(ctx, page)
	if err != nil {
		return nil, 0, err
	}

	if page.Offset == 0 && page.Limit == 0 {
		if err := b.catalog.SetProducts(ctx, products, b.ttl); err != nil {
			log.Printf("[cache] WARN: catalog write failed: %v", err)
		}
	}
	return products, total, nil
}

func (b *composerBackend) GetSaleWithLines(ctx context.Context, saleID string) (*domain.Sale, error) {
	return b.repo.GetSaleWithLines(ctx, saleID)
}

func (b *composerBackend) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	return b.repo.CreateSale(ctx, sale)
}

func (b *composerBackend) UpdateSale(ctx context.Context, saleID string, sale domain.Sale) error {
	return b.repo.UpdateSale(ctx, saleID, sale)
}

func (b *composerBackend) CreateSaleLines(ctx context.Context, lines []domain.SaleLine) error {
	return b.repo.CreateSaleLines(ctx, lines)
}

func (b *composerBackend) UpdateSaleLines(ctx context.Context, lines []domain.SaleLine) error {
	return b.repo.UpdateSaleLines(ctx, lines)
}
