package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

// Store is the PostgreSQL repository. Uniqueness and referential integrity
// are enforced by the schema; constraint violations surface as
// store.ErrConflict.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, page domain.Page) ([]domain.Product, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, retail_price
		FROM products
		ORDER BY code
		OFFSET $1 LIMIT $2
	`, page.Offset, limitOrAll(page.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.RetailPrice); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, retail_price
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Code, &p.Name, &p.RetailPrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Code == "" || product.Name == "" {
		return nil, fmt.Errorf("%w: product id, code and name are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, code, name, retail_price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now(),now())
	`, product.ID, product.Code, product.Name, product.RetailPrice)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product code %s already exists", store.ErrConflict, product.Code)
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Code == "" || product.Name == "" {
		return nil, fmt.Errorf("%w: product code and name are required", store.ErrValidation)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET code = $2, name = $3, retail_price = $4, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Code, product.Name, product.RetailPrice)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product code %s already exists", store.ErrConflict, product.Code)
		}
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, product.ID)
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: product %s is referenced by sale lines", store.ErrConflict, id)
		}
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}
	return nil
}

func (s *Store) ListSalespersons(ctx context.Context, page domain.Page) ([]domain.Salesperson, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM salespersons`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name
		FROM salespersons
		ORDER BY code
		OFFSET $1 LIMIT $2
	`, page.Offset, limitOrAll(page.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	salespersons := make([]domain.Salesperson, 0, 32)
	for rows.Next() {
		var sp domain.Salesperson
		if err := rows.Scan(&sp.ID, &sp.Code, &sp.Name); err != nil {
			return nil, 0, err
		}
		salespersons = append(salespersons, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return salespersons, total, nil
}

func (s *Store) GetSalespersonByID(ctx context.Context, id string) (*domain.Salesperson, error) {
	var sp domain.Salesperson
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name
		FROM salespersons
		WHERE id = $1
	`, id).Scan(&sp.ID, &sp.Code, &sp.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: salesperson %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	return &sp, nil
}

func (s *Store) CreateSalesperson(ctx context.Context, sp domain.Salesperson) (*domain.Salesperson, error) {
	if sp.ID == "" || sp.Code == "" || sp.Name == "" {
		return nil, fmt.Errorf("%w: salesperson id, code and name are required", store.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salespersons (id, code, name, created_at, updated_at)
		VALUES ($1,$2,$3,now(),now())
	`, sp.ID, sp.Code, sp.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: salesperson code %s already exists", store.ErrConflict, sp.Code)
		}
		return nil, err
	}

	created := sp
	return &created, nil
}

func (s *Store) UpdateSalesperson(ctx context.Context, sp domain.Salesperson) (*domain.Salesperson, error) {
	if sp.Code == "" || sp.Name == "" {
		return nil, fmt.Errorf("%w: salesperson code and name are required", store.ErrValidation)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE salespersons
		SET code = $2, name = $3, updated_at = now()
		WHERE id = $1
	`, sp.ID, sp.Code, sp.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: salesperson code %s already exists", store.ErrConflict, sp.Code)
		}
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, fmt.Errorf("%w: salesperson %s", store.ErrNotFound, sp.ID)
	}

	updated := sp
	return &updated, nil
}

func (s *Store) DeleteSalesperson(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM salespersons WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: salesperson %s is referenced by sales", store.ErrConflict, id)
		}
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: salesperson %s", store.ErrNotFound, id)
	}
	return nil
}

func (s *Store) ListSales(ctx context.Context, page domain.Page) ([]domain.Sale, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sales`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, salesperson_id, total, sale_date, comments, updated_date
		FROM sales
		ORDER BY sale_date DESC, id DESC
		OFFSET $1 LIMIT $2
	`, page.Offset, limitOrAll(page.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.SalespersonID, &sale.Total, &sale.SaleDate, &sale.Comments, &sale.UpdatedDate); err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return sales, total, nil
}

func (s *Store) GetSaleWithLines(ctx context.Context, saleID string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, salesperson_id, total, sale_date, comments, updated_date
		FROM sales
		WHERE id = $1
	`, saleID).Scan(&sale.ID, &sale.SalespersonID, &sale.Total, &sale.SaleDate, &sale.Comments, &sale.UpdatedDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, unit_price, quantity, discount_percent
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.UnitPrice, &line.Quantity, &line.DiscountPercent); err != nil {
			return nil, err
		}
		sale.Lines = append(sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, salesperson_id, total, sale_date, comments, updated_date)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, sale.ID, sale.SalespersonID, sale.Total, sale.SaleDate, sale.Comments, sale.UpdatedDate)
	if err != nil {
		if isUniqueViolation(err) || isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: sale %s rejected by constraint", store.ErrConflict, sale.ID)
		}
		return nil, err
	}

	sale.Lines = nil
	created := sale
	return &created, nil
}

func (s *Store) UpdateSale(ctx context.Context, saleID string, sale domain.Sale) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET salesperson_id = $2, total = $3, comments = $4, updated_date = $5
		WHERE id = $1
	`, saleID, sale.SalespersonID, sale.Total, sale.Comments, sale.UpdatedDate)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: salesperson %s does not exist", store.ErrConflict, sale.SalespersonID)
		}
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	return nil
}

func (s *Store) DeleteSale(ctx context.Context, saleID string) error {
	// sale_lines rows go with the sale via ON DELETE CASCADE.
	result, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	return nil
}

func (s *Store) CreateSaleLines(ctx context.Context, lines []domain.SaleLine) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, line := range lines {
		if line.Quantity < 1 {
			return fmt.Errorf("%w: line %d quantity must be positive", store.ErrValidation, i)
		}
		if line.ID == "" {
			line.ID = xid.New("line")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_lines (id, sale_id, product_id, unit_price, quantity, discount_percent)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, line.ID, line.SaleID, line.ProductID, line.UnitPrice, line.Quantity, line.DiscountPercent)
		if err != nil {
			if isUniqueViolation(err) || isForeignKeyViolation(err) {
				return fmt.Errorf("%w: sale line for product %s rejected by constraint", store.ErrConflict, line.ProductID)
			}
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) UpdateSaleLines(ctx context.Context, lines []domain.SaleLine) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, line := range lines {
		if line.Quantity < 1 {
			return fmt.Errorf("%w: sale line %s quantity must be positive", store.ErrValidation, line.ID)
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE sale_lines
			SET unit_price = $2, quantity = $3, discount_percent = $4
			WHERE id = $1
		`, line.ID, line.UnitPrice, line.Quantity, line.DiscountPercent)
		if err != nil {
			return err
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: sale line %s", store.ErrNotFound, line.ID)
		}
	}

	return tx.Commit()
}

func (s *Store) DeleteSaleLine(ctx context.Context, lineID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sale_lines WHERE id = $1`, lineID)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: sale line %s", store.ErrNotFound, lineID)
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: username %s already exists", store.ErrConflict, user.Username)
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return nil
}

func limitOrAll(limit int) any {
	if limit < 1 {
		return nil
	}
	return limit
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
