package store

import (
	"context"
	"errors"

	"salepoint/backend/internal/domain"
)

var (
	// ErrNotFound reports that a referenced product, salesperson, sale or
	// sale line does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a write refused by a referential or uniqueness
	// constraint (duplicate code, delete blocked by dependent records).
	ErrConflict = errors.New("conflict")
	// ErrValidation reports input that violates a stated constraint. The
	// operation is rejected and state is unchanged.
	ErrValidation = errors.New("validation")
)

type Repository interface {
	ListProducts(ctx context.Context, page domain.Page) ([]domain.Product, int, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListSalespersons(ctx context.Context, page domain.Page) ([]domain.Salesperson, int, error)
	GetSalespersonByID(ctx context.Context, id string) (*domain.Salesperson, error)
	CreateSalesperson(ctx context.Context, sp domain.Salesperson) (*domain.Salesperson, error)
	UpdateSalesperson(ctx context.Context, sp domain.Salesperson) (*domain.Salesperson, error)
	DeleteSalesperson(ctx context.Context, id string) error

	ListSales(ctx context.Context, page domain.Page) ([]domain.Sale, int, error)
	GetSaleWithLines(ctx context.Context, saleID string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	UpdateSale(ctx context.Context, saleID string, sale domain.Sale) error
	DeleteSale(ctx context.Context, saleID string) error

	CreateSaleLines(ctx context.Context, lines []domain.SaleLine) error
	UpdateSaleLines(ctx context.Context, lines []domain.SaleLine) error
	DeleteSaleLine(ctx context.Context, lineID string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
