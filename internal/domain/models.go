package domain

import "time"

type Product struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	RetailPrice float64 `json:"retail_price"`
}

type ProductCreateRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	RetailPrice float64 `json:"retail_price"`
}

type ProductUpdateRequest struct {
	Code        *string  `json:"code,omitempty"`
	Name        *string  `json:"name,omitempty"`
	RetailPrice *float64 `json:"retail_price,omitempty"`
}

type ProductListResponse struct {
	Products   []Product `json:"products"`
	TotalCount int       `json:"total_count"`
}

type Salesperson struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type SalespersonCreateRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type SalespersonUpdateRequest struct {
	Code *string `json:"code,omitempty"`
	Name *string `json:"name,omitempty"`
}

type SalespersonListResponse struct {
	Salespersons []Salesperson `json:"salespersons"`
	TotalCount   int           `json:"total_count"`
}

// SaleLine is a persisted line item as stored on the server. Cart-side
// lines in progress are represented by LineItem.
type SaleLine struct {
	ID              string  `json:"id"`
	SaleID          string  `json:"sale_id"`
	ProductID       string  `json:"product_id"`
	UnitPrice       float64 `json:"unit_price"`
	Quantity        int     `json:"quantity"`
	DiscountPercent float64 `json:"discount_percent"`
}

type Sale struct {
	ID            string     `json:"id"`
	SalespersonID string     `json:"salesperson_id"`
	Total         float64    `json:"total"`
	SaleDate      time.Time  `json:"sale_date"`
	Comments      string     `json:"comments,omitempty"`
	UpdatedDate   time.Time  `json:"updated_date"`
	Lines         []SaleLine `json:"lines,omitempty"`
}

type SaleListResponse struct {
	Sales      []Sale `json:"sales"`
	TotalCount int    `json:"total_count"`
}

// LineItem is one product line inside a cart being composed or edited.
// LineID is empty for lines added during the current session; it carries the
// server-assigned id for lines loaded from a previously saved sale.
// UnitPrice is a snapshot of the product's retail price taken when the line
// was added or loaded, never re-read from the live catalog.
type LineItem struct {
	LineID          string  `json:"line_id,omitempty"`
	ProductID       string  `json:"product_id"`
	ProductCode     string  `json:"product_code"`
	ProductName     string  `json:"product_name"`
	UnitPrice       float64 `json:"unit_price"`
	Quantity        int     `json:"quantity"`
	DiscountPercent float64 `json:"discount_percent"`
	Amount          float64 `json:"amount"`
}

// Page carries offset/limit pagination for list operations.
type Page struct {
	Offset int
	Limit  int
}

type ComposerOpenRequest struct {
	SaleID string `json:"sale_id,omitempty"`
}

type ComposerUpdateRequest struct {
	SalespersonID *string `json:"salesperson_id,omitempty"`
	Comments      *string `json:"comments,omitempty"`
}

type ComposerAddLineRequest struct {
	ProductID string `json:"product_id"`
}

type ComposerUpdateLineRequest struct {
	Quantity        *int     `json:"quantity,omitempty"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
}

type ComposerSessionResponse struct {
	SessionID     string     `json:"session_id"`
	SaleID        string     `json:"sale_id,omitempty"`
	Editing       bool       `json:"editing"`
	SalespersonID string     `json:"salesperson_id,omitempty"`
	Comments      string     `json:"comments,omitempty"`
	Lines         []LineItem `json:"lines"`
	Total         float64    `json:"total"`
	Version       uint64     `json:"version"`
}

type SaleResponse struct {
	Sale Sale `json:"sale"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
