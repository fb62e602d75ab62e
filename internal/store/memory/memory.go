package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

// Store is the in-memory repository used for dev/demo mode and tests. It
// enforces the same uniqueness and referential rules as the PostgreSQL store
// so callers see identical error semantics.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	salespersons    map[string]domain.Salesperson
	sales           map[string]domain.Sale
	linesBySale     map[string][]domain.SaleLine
	saleByLine      map[string]string
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		salespersons:    make(map[string]domain.Salesperson),
		sales:           make(map[string]domain.Sale),
		linesBySale:     make(map[string][]domain.SaleLine),
		saleByLine:      make(map[string]string),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()

	for _, p := range []domain.Product{
		{ID: xid.New("prod"), Code: "NOTE-A5", Name: "Notebook A5 Ruled", RetailPrice: 4.50},
		{ID: xid.New("prod"), Code: "PEN-GEL", Name: "Gel Pen 0.5mm Black", RetailPrice: 1.80},
		{ID: xid.New("prod"), Code: "STAPLER", Name: "Desktop Stapler", RetailPrice: 9.90},
		{ID: xid.New("prod"), Code: "MARKER", Name: "Whiteboard Marker", RetailPrice: 2.40},
		{ID: xid.New("prod"), Code: "FOLDER", Name: "Document Folder A4", RetailPrice: 3.20},
		{ID: xid.New("prod"), Code: "TAPE-50", Name: "Packing Tape 50m", RetailPrice: 2.75},
		{ID: xid.New("prod"), Code: "CLIP-BX", Name: "Paper Clips Box", RetailPrice: 1.10},
		{ID: xid.New("prod"), Code: "ENV-C4", Name: "Envelope C4 (pack of 25)", RetailPrice: 5.60},
	} {
		s.products[p.ID] = p
	}

	for _, sp := range []domain.Salesperson{
		{ID: xid.New("sp"), Code: "SP-01", Name: "Rina Wulandari"},
		{ID: xid.New("sp"), Code: "SP-02", Name: "Budi Santoso"},
		{ID: xid.New("sp"), Code: "SP-03", Name: "Dewi Lestari"},
	} {
		s.salespersons[sp.ID] = sp
	}

	return s
}

func (s *Store) ListProducts(_ context.Context, page domain.Page) ([]domain.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Code, b.Code)
	})

	total := len(products)
	return applyPage(products, page), total, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Code == "" || product.Name == "" {
		return nil, fmt.Errorf("%w: product id, code and name are required", store.ErrValidation)
	}
	if s.productCodeTaken(product.Code, product.ID) {
		return nil, fmt.Errorf("%w: product code %s already exists", store.ErrConflict, product.Code)
	}

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, product.ID)
	}
	if product.Code == "" || product.Name == "" {
		return nil, fmt.Errorf("%w: product code and name are required", store.ErrValidation)
	}
	if s.productCodeTaken(product.Code, product.ID) {
		return nil, fmt.Errorf("%w: product code %s already exists", store.ErrConflict, product.Code)
	}

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}
	for _, lines := range s.linesBySale {
		for _, line := range lines {
			if line.ProductID == id {
				return fmt.Errorf("%w: product %s is referenced by sale lines", store.ErrConflict, id)
			}
		}
	}

	delete(s.products, id)
	return nil
}

func (s *Store) ListSalespersons(_ context.Context, page domain.Page) ([]domain.Salesperson, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	salespersons := make([]domain.Salesperson, 0, len(s.salespersons))
	for _, sp := range s.salespersons {
		salespersons = append(salespersons, sp)
	}
	slices.SortFunc(salespersons, func(a, b domain.Salesperson) int {
		return cmpString(a.Code, b.Code)
	})

	total := len(salespersons)
	return applyPage(salespersons, page), total, nil
}

func (s *Store) GetSalespersonByID(_ context.Context, id string) (*domain.Salesperson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, exists := s.salespersons[id]
	if !exists {
		return nil, fmt.Errorf("%w: salesperson %s", store.ErrNotFound, id)
	}
	copySP := sp
	return &copySP, nil
}

func (s *Store) CreateSalesperson(_ context.Context, sp domain.Salesperson) (*domain.Salesperson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sp.ID == "" || sp.Code == "" || sp.Name == "" {
		return nil, fmt.Errorf("%w: salesperson id, code and name are required", store.ErrValidation)
	}
	if s.salespersonCodeTaken(sp.Code, sp.ID) {
		return nil, fmt.Errorf("%w: salesperson code %s already exists", store.ErrConflict, sp.Code)
	}

	s.salespersons[sp.ID] = sp
	created := sp
	return &created, nil
}

func (s *Store) UpdateSalesperson(_ context.Context, sp domain.Salesperson) (*domain.Salesperson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salespersons[sp.ID]; !exists {
		return nil, fmt.Errorf("%w: salesperson %s", store.ErrNotFound, sp.ID)
	}
	if sp.Code == "" || sp.Name == "" {
		return nil, fmt.Errorf("%w: salesperson code and name are required", store.ErrValidation)
	}
	if s.salespersonCodeTaken(sp.Code, sp.ID) {
		return nil, fmt.Errorf("%w: salesperson code %s already exists", store.ErrConflict, sp.Code)
	}

	s.salespersons[sp.ID] = sp
	updated := sp
	return &updated, nil
}

func (s *Store) DeleteSalesperson(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salespersons[id]; !exists {
		return fmt.Errorf("%w: salesperson %s", store.ErrNotFound, id)
	}
	for _, sale := range s.sales {
		if sale.SalespersonID == id {
			return fmt.Errorf("%w: salesperson %s is referenced by sales", store.ErrConflict, id)
		}
	}

	delete(s.salespersons, id)
	return nil
}

func (s *Store) ListSales(_ context.Context, page domain.Page) ([]domain.Sale, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.SaleDate.Equal(b.SaleDate) {
			return cmpString(b.ID, a.ID)
		}
		if a.SaleDate.After(b.SaleDate) {
			return -1
		}
		return 1
	})

	total := len(sales)
	return applyPage(sales, page), total, nil
}

func (s *Store) GetSaleWithLines(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[saleID]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}

	copySale := sale
	copySale.Lines = make([]domain.SaleLine, len(s.linesBySale[saleID]))
	copy(copySale.Lines, s.linesBySale[saleID])
	return &copySale, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salespersons[sale.SalespersonID]; !exists {
		return nil, fmt.Errorf("%w: salesperson %s does not exist", store.ErrConflict, sale.SalespersonID)
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if _, exists := s.sales[sale.ID]; exists {
		return nil, fmt.Errorf("%w: sale %s already exists", store.ErrConflict, sale.ID)
	}

	sale.Lines = nil
	s.sales[sale.ID] = sale
	s.linesBySale[sale.ID] = nil
	created := sale
	return &created, nil
}

func (s *Store) UpdateSale(_ context.Context, saleID string, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.sales[saleID]
	if !exists {
		return fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	if _, exists := s.salespersons[sale.SalespersonID]; !exists {
		return fmt.Errorf("%w: salesperson %s does not exist", store.ErrConflict, sale.SalespersonID)
	}

	existing.SalespersonID = sale.SalespersonID
	existing.Total = sale.Total
	existing.Comments = sale.Comments
	existing.UpdatedDate = sale.UpdatedDate
	s.sales[saleID] = existing
	return nil
}

func (s *Store) DeleteSale(_ context.Context, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sales[saleID]; !exists {
		return fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}

	for _, line := range s.linesBySale[saleID] {
		delete(s.saleByLine, line.ID)
	}
	delete(s.linesBySale, saleID)
	delete(s.sales, saleID)
	return nil
}

func (s *Store) CreateSaleLines(_ context.Context, lines []domain.SaleLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, line := range lines {
		if _, exists := s.sales[line.SaleID]; !exists {
			return fmt.Errorf("%w: sale %s does not exist", store.ErrConflict, line.SaleID)
		}
		if _, exists := s.products[line.ProductID]; !exists {
			return fmt.Errorf("%w: product %s does not exist", store.ErrConflict, line.ProductID)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("%w: line %d quantity must be positive", store.ErrValidation, i)
		}

		if line.ID == "" {
			line.ID = xid.New("line")
		}
		if _, exists := s.saleByLine[line.ID]; exists {
			return fmt.Errorf("%w: sale line %s already exists", store.ErrConflict, line.ID)
		}
		s.linesBySale[line.SaleID] = append(s.linesBySale[line.SaleID], line)
		s.saleByLine[line.ID] = line.SaleID
	}
	return nil
}

func (s *Store) UpdateSaleLines(_ context.Context, lines []domain.SaleLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range lines {
		saleID, exists := s.saleByLine[line.ID]
		if !exists {
			return fmt.Errorf("%w: sale line %s", store.ErrNotFound, line.ID)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("%w: sale line %s quantity must be positive", store.ErrValidation, line.ID)
		}

		stored := s.linesBySale[saleID]
		for i := range stored {
			if stored[i].ID == line.ID {
				line.SaleID = saleID
				stored[i] = line
				break
			}
		}
	}
	return nil
}

func (s *Store) DeleteSaleLine(_ context.Context, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saleID, exists := s.saleByLine[lineID]
	if !exists {
		return fmt.Errorf("%w: sale line %s", store.ErrNotFound, lineID)
	}

	stored := s.linesBySale[saleID]
	for i := range stored {
		if stored[i].ID == lineID {
			s.linesBySale[saleID] = append(stored[:i], stored[i+1:]...)
			break
		}
	}
	delete(s.saleByLine, lineID)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, len(s.auditLogs))
	copy(result, s.auditLogs)
	slices.Reverse(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("%w: username %s already exists", store.ErrConflict, user.Username)
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) productCodeTaken(code string, selfID string) bool {
	for _, p := range s.products {
		if p.ID != selfID && strings.EqualFold(p.Code, code) {
			return true
		}
	}
	return false
}

func (s *Store) salespersonCodeTaken(code string, selfID string) bool {
	for _, sp := range s.salespersons {
		if sp.ID != selfID && strings.EqualFold(sp.Code, code) {
			return true
		}
	}
	return false
}

func applyPage[T any](items []T, page domain.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[page.Offset:]
	if page.Limit > 0 && len(items) > page.Limit {
		items = items[:page.Limit]
	}
	return items
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
