package parties

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/platform/db"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Queries runs party SQL on a pool or an open transaction.
type Queries struct {
	db db.DBTX
}

// NewQueries binds the query set to conn.
func NewQueries(conn db.DBTX) *Queries {
	return &Queries{db: conn}
}

// Repository persists parties in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	*Queries
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, Queries: NewQueries(pool)}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewQueries(tx))
	})
}

const partyColumns = `id, company_id, role, name, COALESCE(email, ''), phone, current_balance, credit_limit, credit_days, is_active, created_by, created_at, updated_at`

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.CompanyID, &p.Role, &p.Name, &p.Email, &p.Phone, &p.CurrentBalance, &p.CreditLimit,
		&p.CreditDays, &p.IsActive, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func wrapLookup(err error, id int64) error {
	if db.IsNoRows(err) {
		return shared.NotFoundf("party %d", id)
	}
	return fmt.Errorf("parties: get %d: %w", id, err)
}

// Get loads a party of the company.
func (q *Queries) Get(ctx context.Context, companyID, id int64) (Party, error) {
	p, err := scanParty(q.db.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE company_id = $1 AND id = $2`, companyID, id))
	if err != nil {
		return Party{}, wrapLookup(err, id)
	}
	return p, nil
}

// GetForUpdate loads a party and locks its row until the transaction ends.
func (q *Queries) GetForUpdate(ctx context.Context, companyID, id int64) (Party, error) {
	p, err := scanParty(q.db.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE company_id = $1 AND id = $2 FOR UPDATE`, companyID, id))
	if err != nil {
		return Party{}, wrapLookup(err, id)
	}
	return p, nil
}

// FindByEmailKey loads a party by folded email.
func (q *Queries) FindByEmailKey(ctx context.Context, companyID int64, role Role, key string) (Party, error) {
	p, err := scanParty(q.db.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE company_id = $1 AND role = $2 AND email_key = $3`, companyID, role, key))
	if err != nil {
		if db.IsNoRows(err) {
			return Party{}, shared.NotFoundf("party email %s", key)
		}
		return Party{}, fmt.Errorf("parties: find by email: %w", err)
	}
	return p, nil
}

// List lists parties of the company.
func (q *Queries) List(ctx context.Context, filters ListFilters) ([]Party, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := q.db.Query(ctx, `SELECT `+partyColumns+` FROM parties
WHERE company_id = $1 AND ($2 = '' OR role = $2)
ORDER BY name LIMIT $3 OFFSET $4`, filters.CompanyID, string(filters.Role), limit, filters.Offset)
	if err != nil {
		return nil, fmt.Errorf("parties: list: %w", err)
	}
	defer rows.Close()
	var out []Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a party.
func (q *Queries) Create(ctx context.Context, p Party) (Party, error) {
	var email, emailKey *string
	if p.Email != "" {
		key := EmailKey(p.Email)
		email, emailKey = &p.Email, &key
	}
	row := q.db.QueryRow(ctx, `INSERT INTO parties (company_id, role, name, email, email_key, phone, current_balance, credit_limit, credit_days, is_active, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()) RETURNING `+partyColumns,
		p.CompanyID, p.Role, p.Name, email, emailKey, p.Phone, p.CurrentBalance, p.CreditLimit, p.CreditDays, p.IsActive, p.CreatedBy)
	created, err := scanParty(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Party{}, fmt.Errorf("%w: party email %s", shared.ErrDuplicateEntry, p.Email)
		}
		return Party{}, fmt.Errorf("parties: create: %w", err)
	}
	return created, nil
}

// AdjustBalance adds delta to current_balance and returns the new balance.
func (q *Queries) AdjustBalance(ctx context.Context, companyID, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.db.QueryRow(ctx, `UPDATE parties SET current_balance = current_balance + $3, updated_at = NOW()
WHERE company_id = $1 AND id = $2 RETURNING current_balance`, companyID, id, delta).Scan(&balance)
	if err != nil {
		return decimal.Zero, wrapLookup(err, id)
	}
	return balance, nil
}

// InsertPayment records a payment row.
func (q *Queries) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `INSERT INTO party_payments (company_id, party_id, amount, paid_at, reference, balance_after, recorded_by)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`, p.CompanyID, p.PartyID, p.Amount, p.PaidAt, p.Reference, p.BalanceAfter, p.RecordedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("parties: insert payment: %w", err)
	}
	return id, nil
}

// RecordAudit writes an audit row on the same connection.
func (q *Queries) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(q.db).Record(ctx, log)
}
