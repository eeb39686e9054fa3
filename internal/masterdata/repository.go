package masterdata

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/maanisingh/Accounting-software-sub001/internal/platform/db"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Queries runs master data SQL on a pool or an open transaction.
type Queries struct {
	db db.DBTX
}

// NewQueries binds the query set to db.
func NewQueries(conn db.DBTX) *Queries {
	return &Queries{db: conn}
}

const productColumns = `id, company_id, code, name, sale_price, purchase_price, tax_rate, is_active, is_saleable, is_purchasable, track_inventory, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CompanyID, &p.Code, &p.Name, &p.SalePrice, &p.PurchasePrice, &p.TaxRate,
		&p.IsActive, &p.IsSaleable, &p.IsPurchasable, &p.TrackInventory, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const warehouseColumns = `id, company_id, code, name, address, is_default, is_active, created_at, updated_at`

func scanWarehouse(row pgx.Row) (Warehouse, error) {
	var w Warehouse
	err := row.Scan(&w.ID, &w.CompanyID, &w.Code, &w.Name, &w.Address, &w.IsDefault, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func notFound(err error, format string, args ...any) error {
	if db.IsNoRows(err) {
		return shared.NotFoundf(format, args...)
	}
	return fmt.Errorf("masterdata: %s: %w", fmt.Sprintf(format, args...), err)
}

// GetProduct loads a product of the company.
func (q *Queries) GetProduct(ctx context.Context, companyID, id int64) (Product, error) {
	p, err := scanProduct(q.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE company_id = $1 AND id = $2`, companyID, id))
	if err != nil {
		return Product{}, notFound(err, "product %d", id)
	}
	return p, nil
}

// GetWarehouse loads a warehouse of the company.
func (q *Queries) GetWarehouse(ctx context.Context, companyID, id int64) (Warehouse, error) {
	w, err := scanWarehouse(q.db.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE company_id = $1 AND id = $2`, companyID, id))
	if err != nil {
		return Warehouse{}, notFound(err, "warehouse %d", id)
	}
	return w, nil
}

// DefaultWarehouse loads the active default warehouse of the company.
func (q *Queries) DefaultWarehouse(ctx context.Context, companyID int64) (Warehouse, error) {
	w, err := scanWarehouse(q.db.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE company_id = $1 AND is_default AND is_active ORDER BY id LIMIT 1`, companyID))
	if err != nil {
		return Warehouse{}, notFound(err, "default warehouse of company %d", companyID)
	}
	return w, nil
}

// FirstActiveWarehouse loads the active warehouse with the lowest id.
func (q *Queries) FirstActiveWarehouse(ctx context.Context, companyID int64) (Warehouse, error) {
	w, err := scanWarehouse(q.db.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE company_id = $1 AND is_active ORDER BY id LIMIT 1`, companyID))
	if err != nil {
		return Warehouse{}, notFound(err, "active warehouse of company %d", companyID)
	}
	return w, nil
}

func appendFilters(query string, args []any, filters ListFilters) (string, []any) {
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		query += ` AND is_active = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY code`
	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, filters.Offset)
	query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	return query, args
}

// ListProducts lists products of the company.
func (q *Queries) ListProducts(ctx context.Context, filters ListFilters) ([]Product, error) {
	query, args := appendFilters(`SELECT `+productColumns+` FROM products WHERE company_id = $1`, []any{filters.CompanyID}, filters)
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("masterdata: list products: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateProduct inserts a product.
func (q *Queries) CreateProduct(ctx context.Context, p Product) (Product, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO products (company_id, code, name, sale_price, purchase_price, tax_rate, is_active, is_saleable, is_purchasable, track_inventory, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()) RETURNING `+productColumns,
		p.CompanyID, p.Code, p.Name, p.SalePrice, p.PurchasePrice, p.TaxRate, p.IsActive, p.IsSaleable, p.IsPurchasable, p.TrackInventory)
	created, err := scanProduct(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Product{}, fmt.Errorf("%w: product code %s", shared.ErrDuplicateEntry, p.Code)
		}
		return Product{}, fmt.Errorf("masterdata: create product: %w", err)
	}
	return created, nil
}

// ListWarehouses lists warehouses of the company.
func (q *Queries) ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, error) {
	query, args := appendFilters(`SELECT `+warehouseColumns+` FROM warehouses WHERE company_id = $1`, []any{filters.CompanyID}, filters)
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("masterdata: list warehouses: %w", err)
	}
	defer rows.Close()
	var out []Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateWarehouse inserts a warehouse. A new default clears the previous one in the same
// statement.
func (q *Queries) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	row := q.db.QueryRow(ctx, `WITH cleared AS (
	UPDATE warehouses SET is_default = FALSE, updated_at = NOW() WHERE company_id = $1 AND $5 AND is_default
)
INSERT INTO warehouses (company_id, code, name, address, is_default, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW()) RETURNING `+warehouseColumns,
		w.CompanyID, w.Code, w.Name, w.Address, w.IsDefault)
	created, err := scanWarehouse(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Warehouse{}, fmt.Errorf("%w: warehouse code %s", shared.ErrDuplicateEntry, w.Code)
		}
		return Warehouse{}, fmt.Errorf("masterdata: create warehouse: %w", err)
	}
	return created, nil
}
