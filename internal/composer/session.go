package composer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"salepoint/backend/internal/cart"
	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
)

// Event identifies a session notification delivered to the registered
// listener.
type Event string

const (
	EventCartChanged  Event = "cart_changed"
	EventSessionEnded Event = "session_ended"
)

// Listener receives session events. Delivery is synchronous on the mutating
// goroutine; listeners must not call back into the session.
type Listener func(sessionID string, event Event)

// Session drives one sale composition: a cart, the persisted lines captured
// when editing began (carried on the cart lines via LineID), and the selected
// header fields. All methods are safe for concurrent use; the session
// serializes access to its cart.
type Session struct {
	id      string
	backend Backend
	deleter LineDeleter

	mu            sync.Mutex
	cart          *cart.Cart
	products      map[string]domain.Product
	saleID        string
	salespersonID string
	comments      string
	version       uint64
	ended         bool
	listener      Listener

	now func() time.Time
}

func NewSession(backend Backend, deleter LineDeleter, listener Listener) *Session {
	return &Session{
		id:       uuid.NewString(),
		backend:  backend,
		deleter:  deleter,
		cart:     cart.New(),
		products: make(map[string]domain.Product),
		listener: listener,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Session) ID() string {
	return s.id
}

// StartNew resets the session to an empty cart and takes a fresh snapshot of
// the product catalog. The snapshot is not re-read during the session;
// catalog changes become visible at the next start.
func (s *Session) StartNew(ctx context.Context) error {
	products, err := s.loadCatalog(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
	s.cart.Reset()
	s.saleID = ""
	s.salespersonID = ""
	s.comments = ""
	s.version++
	return nil
}

// StartEdit loads the sale's persisted lines into the cart, resolving each
// referenced product against the catalog snapshot.
// A product that no longer exists gets a placeholder label; the line itself
// stays editable. Failure to load the sale is fatal to the session: the
// caller is signalled to navigate away and the cart stays empty.
func (s *Session) StartEdit(ctx context.Context, saleID string) error {
	products, err := s.loadCatalog(ctx)
	if err != nil {
		return err
	}

	sale, err := s.backend.GetSaleWithLines(ctx, saleID)
	if err != nil {
		s.mu.Lock()
		s.ended = true
		s.mu.Unlock()
		s.notify(EventSessionEnded)
		return fmt.Errorf("load sale %s: %w", saleID, err)
	}

	lines := make([]domain.LineItem, 0, len(sale.Lines))
	for _, persisted := range sale.Lines {
		line := domain.LineItem{
			LineID:          persisted.ID,
			ProductID:       persisted.ProductID,
			UnitPrice:       persisted.UnitPrice,
			Quantity:        persisted.Quantity,
			DiscountPercent: persisted.DiscountPercent,
		}
		if product, ok := products[persisted.ProductID]; ok {
			line.ProductCode = product.Code
			line.ProductName = product.Name
		} else {
			line.ProductName = fmt.Sprintf("Product %s", persisted.ProductID)
		}
		lines = append(lines, line)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
	s.cart.Load(lines)
	s.saleID = sale.ID
	s.salespersonID = sale.SalespersonID
	s.comments = sale.Comments
	s.version++
	return nil
}

// AddProduct adds one unit of the product to the cart, merging into an
// existing line for the same product.
func (s *Session) AddProduct(productID string) error {
	s.mu.Lock()
	product, ok := s.products[productID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: product %s is not in the catalog", store.ErrNotFound, productID)
	}
	s.cart.AddProduct(product)
	s.version++
	s.mu.Unlock()
	s.notify(EventCartChanged)
	return nil
}

// UpdateQuantity sets the quantity for the product's line. Quantity 0 is
// equivalent to RemoveLine, including the server-side delete for a line
// loaded from a saved sale.
func (s *Session) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity == 0 {
		return s.RemoveLine(ctx, productID)
	}

	s.mu.Lock()
	err := s.cart.UpdateQuantity(productID, quantity)
	if err == nil {
		s.version++
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(EventCartChanged)
	return nil
}

func (s *Session) UpdateDiscount(productID string, discountPercent float64) error {
	s.mu.Lock()
	err := s.cart.UpdateDiscount(productID, discountPercent)
	if err == nil {
		s.version++
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(EventCartChanged)
	return nil
}

// RemoveLine drops the product's line from the cart. A line that was loaded
// from a saved sale is deleted on the server first; if that delete fails
// (conflict, transport) the line stays in the cart and the error is
// returned. The server-side deletion is immediate and is not undone by
// abandoning the session afterwards.
func (s *Session) RemoveLine(ctx context.Context, productID string) error {
	s.mu.Lock()
	line, ok := s.cart.Line(productID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no line for product %s", store.ErrNotFound, productID)
	}

	if line.LineID != "" {
		if err := s.deleter.DeleteSaleLine(ctx, line.LineID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cart.Remove(productID)
	s.version++
	s.mu.Unlock()
	s.notify(EventCartChanged)
	return nil
}

func (s *Session) SetSalesperson(salespersonID string) {
	s.mu.Lock()
	s.salespersonID = salespersonID
	s.version++
	s.mu.Unlock()
}

func (s *Session) SetComments(comments string) {
	s.mu.Lock()
	s.comments = comments
	s.version++
	s.mu.Unlock()
}

func (s *Session) Snapshot() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Snapshot()
}

func (s *Session) CurrentTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

// State returns a view of the session for rendering.
func (s *Session) State() domain.ComposerSessionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ComposerSessionResponse{
		SessionID:     s.id,
		SaleID:        s.saleID,
		Editing:       s.saleID != "",
		SalespersonID: s.salespersonID,
		Comments:      s.comments,
		Lines:         s.cart.Snapshot(),
		Total:         s.cart.Total(),
		Version:       s.version,
	}
}

func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Save validates the session, reconciles the cart against the server and, on
// success, resets to a fresh new-sale state and signals completion. A failed
// header write leaves cart state untouched so the user can retry. A failed
// line batch after the header succeeded is reported without rollback.
func (s *Session) Save(ctx context.Context) (*domain.Sale, error) {
	s.mu.Lock()
	if s.salespersonID == "" {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: a salesperson must be selected", store.ErrValidation)
	}
	if s.cart.Len() == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: the sale has no line items", store.ErrValidation)
	}
	plan := BuildPlan(s.saleID, s.salespersonID, s.comments, s.cart.Snapshot(), s.now())
	s.mu.Unlock()

	saved, err := Apply(ctx, s.backend, plan)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cart.Reset()
	s.saleID = ""
	s.salespersonID = ""
	s.comments = ""
	s.ended = true
	s.version++
	s.mu.Unlock()
	s.notify(EventSessionEnded)
	return saved, nil
}

// Abandon discards all local state without persisting anything. Line
// deletions already confirmed by the server stay deleted.
func (s *Session) Abandon() {
	s.mu.Lock()
	s.cart.Reset()
	s.ended = true
	s.mu.Unlock()
	s.notify(EventSessionEnded)
}

func (s *Session) loadCatalog(ctx context.Context) (map[string]domain.Product, error) {
	products, _, err := s.backend.ListProducts(ctx, domain.Page{})
	if err != nil {
		return nil, fmt.Errorf("load catalog snapshot: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	return byID, nil
}

func (s *Session) notify(event Event) {
	if s.listener != nil {
		s.listener(s.id, event)
	}
}
