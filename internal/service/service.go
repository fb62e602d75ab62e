package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"salepoint/backend/internal/cache"
	"salepoint/backend/internal/composer"
	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	catalog  cache.CatalogCache
	sessions *composer.Manager
}

func New(repo store.Repository, catalog cache.CatalogCache, catalogTTL time.Duration) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	backend := &composerBackend{repo: repo, catalog: catalog, ttl: catalogTTL}
	svc := &Service{repo: repo, catalog: catalog}
	svc.sessions = composer.NewManager(backend, repo, func(sessionID string, event composer.Event) {
		if event == composer.EventSessionEnded {
			log.Printf("[composer] session %s ended", sessionID)
		}
	})
	return svc
}

// catalog is kept on the service so product mutations can invalidate the
// snapshot that composer sessions read.
func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: failed to invalidate catalog cache: %v", err)
	}
}

func (s *Service) ListProducts(ctx context.Context, page domain.Page) (domain.ProductListResponse, error) {
	products, total, err := s.repo.ListProducts(ctx, page)
	if err != nil {
		return domain.ProductListResponse{}, err
	}
	return domain.ProductListResponse{Products: products, TotalCount: total}, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: code and name are required", store.ErrValidation)
	}
	if req.RetailPrice < 0 {
		return domain.Product{}, fmt.Errorf("%w: retail price must not be negative", store.ErrValidation)
	}

	product := domain.Product{
		ID:          xid.New("prod"),
		Code:        req.Code,
		Name:        req.Name,
		RetailPrice: req.RetailPrice,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("code=%s,price=%.2f", created.Code, created.RetailPrice))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		if code == "" {
			return domain.Product{}, fmt.Errorf("%w: code must not be empty", store.ErrValidation)
		}
		updated.Code = code
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.RetailPrice != nil {
		if *req.RetailPrice < 0 {
			return domain.Product{}, fmt.Errorf("%w: retail price must not be negative", store.ErrValidation)
		}
		updated.RetailPrice = *req.RetailPrice
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("code=%s,price=%.2f", saved.Code, saved.RetailPrice))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) ListSalespersons(ctx context.Context, page domain.Page) (domain.SalespersonListResponse, error) {
	salespersons, total, err := s.repo.ListSalespersons(ctx, page)
	if err != nil {
		return domain.SalespersonListResponse{}, err
	}
	return domain.SalespersonListResponse{Salespersons: salespersons, TotalCount: total}, nil
}

func (s *Service) GetSalesperson(ctx context.Context, id string) (domain.Salesperson, error) {
	sp, err := s.repo.GetSalespersonByID(ctx, id)
	if err != nil {
		return domain.Salesperson{}, err
	}
	return *sp, nil
}

func (s *Service) CreateSalesperson(ctx context.Context, req domain.SalespersonCreateRequest) (domain.Salesperson, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Salesperson{}, err
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		return domain.Salesperson{}, fmt.Errorf("%w: code and name are required", store.ErrValidation)
	}

	sp := domain.Salesperson{
		ID:   xid.New("sp"),
		Code: req.Code,
		Name: req.Name,
	}

	created, err := s.repo.CreateSalesperson(ctx, sp)
	if err != nil {
		return domain.Salesperson{}, err
	}

	s.logAudit(ctx, "salesperson_create", "salesperson", created.ID, fmt.Sprintf("code=%s", created.Code))
	return *created, nil
}

func (s *Service) UpdateSalesperson(ctx context.Context, id string, req domain.SalespersonUpdateRequest) (domain.Salesperson, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Salesperson{}, err
	}

	existing, err := s.repo.GetSalespersonByID(ctx, id)
	if err != nil {
		return domain.Salesperson{}, err
	}

	updated := *existing
	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		if code == "" {
			return domain.Salesperson{}, fmt.Errorf("%w: code must not be empty", store.ErrValidation)
		}
		updated.Code = code
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Salesperson{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}

	saved, err := s.repo.UpdateSalesperson(ctx, updated)
	if err != nil {
		return domain.Salesperson{}, err
	}

	s.logAudit(ctx, "salesperson_update", "salesperson", saved.ID, fmt.Sprintf("code=%s", saved.Code))
	return *saved, nil
}

func (s *Service) DeleteSalesperson(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteSalesperson(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "salesperson_delete", "salesperson", id, "")
	return nil
}

func (s *Service) ListSales(ctx context.Context, page domain.Page) (domain.SaleListResponse, error) {
	sales, total, err := s.repo.ListSales(ctx, page)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	return domain.SaleListResponse{Sales: sales, TotalCount: total}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleResponse, error) {
	sale, err := s.repo.GetSaleWithLines(ctx, id)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	return domain.SaleResponse{Sale: *sale}, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteSale(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "sale_delete", "sale", id, "")
	return nil
}

// OpenComposer starts a composition session: new-sale mode when saleID is
// empty, edit mode otherwise. Edit mode failing to load its sale returns the
// error without registering a session; the caller should navigate back to
// the records view.
func (s *Service) OpenComposer(ctx context.Context, req domain.ComposerOpenRequest) (domain.ComposerSessionResponse, error) {
	session, err := s.sessions.Open(ctx, strings.TrimSpace(req.SaleID))
	if err != nil {
		return domain.ComposerSessionResponse{}, err
	}
	s.logAudit(ctx, "composer_open", "composer_session", session.ID(), fmt.Sprintf("sale_id=%s", req.SaleID))
	return session.State(), nil
}

func (s *Service) GetComposer(sessionID string) (domain.ComposerSessionResponse, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.ComposerSessionResponse{}, err
	}
	return session.State(), nil
}

func (s *Service) UpdateComposer(ctx context.Context, sessionID string, req domain.ComposerUpdateRequest) (domain.ComposerSessionResponse, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.ComposerSessionResponse{}, err
	}

	if req.SalespersonID != nil {
		id := strings.TrimSpace(*req.SalespersonID)
		if id != "" {
			if _, err := s.repo.GetSalespersonByID(ctx, id); err != nil {
				return domain.ComposerSessionResponse{}, err
			}
		}
		session.SetSalesperson(id)
	}
	if req.Comments != nil {
		session.SetComments(strings.TrimSpace(*req.Comments))
	}
	return session.State(), nil
}

func (s *Service) AddComposerLine(ctx context.Context, sessionID string, req domain.ComposerAddLineRequest) (domain.ComposerSessionResponse, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.ComposerSessionResponse{}, err
	}
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return domain.ComposerSessionResponse{}, fmt.Errorf("%w: product_id is required", store.ErrValidation)
	}
	if err := session.AddProduct(productID); err != nil {
		return domain.ComposerSessionResponse{}, err
	}
	return session.State(), nil
}

func (s *Service) UpdateComposerLine(ctx context.Context, sessionID string, productID string, req domain.ComposerUpdateLineRequest) (domain.ComposerSessionResponse, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.ComposerSessionResponse{}, err
	}

	if req.Quantity != nil {
		// Quantity 0 is a removal, including the eager server delete for a
		// persisted line, and is audited like one.
		if *req.Quantity == 0 {
			return s.RemoveComposerLine(ctx, sessionID, productID)
		}
		if err := session.UpdateQuantity(ctx, productID, *req.Quantity); err != nil {
			return domain.ComposerSessionResponse{}, err
		}
	}
	if req.DiscountPercent != nil {
		if err := session.UpdateDiscount(productID, *req.DiscountPercent); err != nil {
			return domain.ComposerSessionResponse{}, err
		}
	}
	return session.State(), nil
}

func (s *Service) RemoveComposerLine(ctx context.Context, sessionID string, productID string) (domain.ComposerSessionResponse, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.ComposerSessionResponse{}, err
	}

	line, hadLine := lineFor(session.Snapshot(), productID)
	if err := session.RemoveLine(ctx, productID); err != nil {
		return domain.ComposerSessionResponse{}, err
	}
	if hadLine && line.LineID != "" {
		s.logAudit(ctx, "sale_line_delete", "sale_line", line.LineID, fmt.Sprintf("product_id=%s", productID))
	}
	return session.State(), nil
}

func (s *Service) SaveComposer(ctx context.Context, sessionID string) (domain.SaleResponse, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	lineCount := len(session.Snapshot())
	saved, err := session.Save(ctx)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.logAudit(ctx, "sale_save", "sale", saved.ID, fmt.Sprintf("total=%.2f,lines=%d", saved.Total, lineCount))
	return domain.SaleResponse{Sale: *saved}, nil
}

func (s *Service) AbandonComposer(ctx context.Context, sessionID string) {
	s.sessions.Abandon(sessionID)
	s.logAudit(ctx, "composer_abandon", "composer_session", sessionID, "")
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	return nil
}

func lineFor(lines []domain.LineItem, productID string) (domain.LineItem, bool) {
	for _, line := range lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return domain.LineItem{}, false
}
