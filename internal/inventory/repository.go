package inventory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maanisingh/Accounting-software-sub001/internal/masterdata"
	"github.com/maanisingh/Accounting-software-sub001/internal/numbering"
	"github.com/maanisingh/Accounting-software-sub001/internal/platform/db"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Queries runs ledger SQL on a pool or an open transaction.
type Queries struct {
	db db.DBTX
	*masterdata.Queries
	*numbering.PGSequencer
}

// NewQueries binds the query set to conn.
func NewQueries(conn db.DBTX) *Queries {
	return &Queries{db: conn, Queries: masterdata.NewQueries(conn), PGSequencer: numbering.NewPGSequencer(conn)}
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	*Queries
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, Queries: NewQueries(pool)}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewQueries(tx))
	})
}

const stockColumns = `company_id, product_id, warehouse_id, quantity, reserved_qty, available_qty, updated_at`

func scanStock(row pgx.Row) (Stock, error) {
	var s Stock
	err := row.Scan(&s.CompanyID, &s.ProductID, &s.WarehouseID, &s.Quantity, &s.ReservedQty, &s.AvailableQty, &s.UpdatedAt)
	return s, err
}

const movementColumns = `id, company_id, product_id, warehouse_id, movement_type, quantity, unit_price, total_value, balance_after, reference_type, reference_id, reference_number, note, movement_date, created_by`

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	err := row.Scan(&m.ID, &m.CompanyID, &m.ProductID, &m.WarehouseID, &m.Type, &m.Quantity, &m.UnitPrice, &m.TotalValue,
		&m.BalanceAfter, &m.ReferenceType, &m.ReferenceID, &m.ReferenceNumber, &m.Note, &m.MovementDate, &m.CreatedBy)
	return m, err
}

func collectMovements(rows pgx.Rows, err error) ([]Movement, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LockStock implements LedgerStore.
func (q *Queries) LockStock(ctx context.Context, companyID, productID, warehouseID int64) (Stock, error) {
	if _, err := q.db.Exec(ctx, `INSERT INTO stock (company_id, product_id, warehouse_id, quantity, reserved_qty, available_qty, updated_at)
VALUES ($1, $2, $3, 0, 0, 0, NOW()) ON CONFLICT (product_id, warehouse_id) DO NOTHING`, companyID, productID, warehouseID); err != nil {
		return Stock{}, err
	}
	return scanStock(q.db.QueryRow(ctx, `SELECT `+stockColumns+` FROM stock WHERE company_id = $1 AND product_id = $2 AND warehouse_id = $3 FOR UPDATE`, companyID, productID, warehouseID))
}

// UpdateStock implements LedgerStore.
func (q *Queries) UpdateStock(ctx context.Context, s Stock) error {
	tag, err := q.db.Exec(ctx, `UPDATE stock SET quantity = $4, reserved_qty = $5, available_qty = $6, updated_at = NOW()
WHERE company_id = $1 AND product_id = $2 AND warehouse_id = $3`, s.CompanyID, s.ProductID, s.WarehouseID, s.Quantity, s.ReservedQty, s.AvailableQty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStockNotFound
	}
	return nil
}

// InsertMovement implements LedgerStore.
func (q *Queries) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `INSERT INTO stock_movements (company_id, product_id, warehouse_id, movement_type, quantity, unit_price, total_value, balance_after, reference_type, reference_id, reference_number, note, movement_date, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		m.CompanyID, m.ProductID, m.WarehouseID, m.Type, m.Quantity, m.UnitPrice, m.TotalValue, m.BalanceAfter,
		m.ReferenceType, m.ReferenceID, m.ReferenceNumber, m.Note, m.MovementDate, m.CreatedBy).Scan(&id)
	return id, err
}

// ListMovementsByReference implements LedgerStore.
func (q *Queries) ListMovementsByReference(ctx context.Context, companyID int64, referenceType string, referenceID int64) ([]Movement, error) {
	return collectMovements(q.db.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE company_id = $1 AND reference_type = $2 AND reference_id = $3 ORDER BY id`, companyID, referenceType, referenceID))
}

// Availability implements StockReader. warehouseID 0 sums every active warehouse.
func (q *Queries) Availability(ctx context.Context, companyID, productID, warehouseID int64) (Availability, error) {
	var a Availability
	err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(s.available_qty), 0)
FROM stock s JOIN warehouses w ON w.id = s.warehouse_id AND w.company_id = s.company_id
WHERE s.company_id = $1 AND s.product_id = $2 AND w.is_active AND ($3 = 0 OR s.warehouse_id = $3)`,
		companyID, productID, warehouseID).Scan(&a.Quantity)
	if err != nil {
		return Availability{}, fmt.Errorf("inventory: availability: %w", err)
	}
	return a, nil
}

// RecordAudit writes an audit row on the same connection.
func (q *Queries) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(q.db).Record(ctx, log)
}

// GetStock loads one stock row.
func (q *Queries) GetStock(ctx context.Context, companyID, productID, warehouseID int64) (Stock, error) {
	s, err := scanStock(q.db.QueryRow(ctx, `SELECT `+stockColumns+` FROM stock WHERE company_id = $1 AND product_id = $2 AND warehouse_id = $3`, companyID, productID, warehouseID))
	if err != nil {
		if db.IsNoRows(err) {
			return Stock{}, shared.NotFoundf("stock of product %d in warehouse %d", productID, warehouseID)
		}
		return Stock{}, err
	}
	return s, nil
}

// ListStock lists stock rows of a product, or of every product when productID is 0.
func (q *Queries) ListStock(ctx context.Context, companyID, productID int64) ([]Stock, error) {
	rows, err := q.db.Query(ctx, `SELECT `+stockColumns+` FROM stock WHERE company_id = $1 AND ($2 = 0 OR product_id = $2) ORDER BY product_id, warehouse_id`, companyID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StockCard lists movements of a product in a warehouse in posting order.
func (q *Queries) StockCard(ctx context.Context, f StockCardFilter) ([]Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE company_id = $1 AND product_id = $2 AND warehouse_id = $3`
	args := []any{f.CompanyID, f.ProductID, f.WarehouseID}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += ` AND movement_date >= $` + strconv.Itoa(len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += ` AND movement_date <= $` + strconv.Itoa(len(args))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query += ` ORDER BY id LIMIT $` + strconv.Itoa(len(args))
	return collectMovements(q.db.Query(ctx, query, args...))
}

// Reconcile reports stock rows whose quantity differs from the movement sum.
func (q *Queries) Reconcile(ctx context.Context, companyID int64) ([]Drift, error) {
	rows, err := q.db.Query(ctx, `SELECT s.company_id, s.product_id, s.warehouse_id, s.quantity, COALESCE(SUM(m.quantity), 0)
FROM stock s
LEFT JOIN stock_movements m ON m.product_id = s.product_id AND m.warehouse_id = s.warehouse_id
WHERE s.company_id = $1
GROUP BY s.company_id, s.product_id, s.warehouse_id, s.quantity
HAVING s.quantity <> COALESCE(SUM(m.quantity), 0)
ORDER BY s.product_id, s.warehouse_id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("inventory: reconcile: %w", err)
	}
	defer rows.Close()
	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.CompanyID, &d.ProductID, &d.WarehouseID, &d.Stock, &d.Ledger); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListCompanies lists companies that hold stock.
func (q *Queries) ListCompanies(ctx context.Context) ([]int64, error) {
	rows, err := q.db.Query(ctx, `SELECT DISTINCT company_id FROM stock ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
