package documents

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	"github.com/maanisingh/Accounting-software-sub001/internal/lifecycle"
	"github.com/maanisingh/Accounting-software-sub001/internal/parties"
	"github.com/maanisingh/Accounting-software-sub001/internal/platform/db"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Queries runs document SQL on a pool or an open transaction.
type Queries struct {
	db db.DBTX
}

// NewQueries binds the query set to conn.
func NewQueries(conn db.DBTX) *Queries {
	return &Queries{db: conn}
}

// stockQueries names the embedded ledger query set of pgTx.
type stockQueries = inventory.Queries

// pgTx composes the query sets of every package a document operation touches on one
// transaction.
type pgTx struct {
	*Queries
	*stockQueries
	parties *parties.Queries
}

func newPGTx(conn db.DBTX) *pgTx {
	return &pgTx{Queries: NewQueries(conn), stockQueries: inventory.NewQueries(conn), parties: parties.NewQueries(conn)}
}

func (t *pgTx) GetPartyForUpdate(ctx context.Context, companyID, id int64) (parties.Party, error) {
	return t.parties.GetForUpdate(ctx, companyID, id)
}

func (t *pgTx) AdjustPartyBalance(ctx context.Context, companyID, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	return t.parties.AdjustBalance(ctx, companyID, id, delta)
}

// Repository persists documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	*Queries
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, Queries: NewQueries(pool)}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newPGTx(tx))
	})
}

const documentColumns = `d.id, d.company_id, d.kind, d.number, d.status, d.party_id, COALESCE(p.name, ''), COALESCE(d.source_id, 0),
COALESCE(d.warehouse_id, 0), COALESCE(d.return_reason, ''), d.issue_date, d.due_date, d.reference, d.notes,
d.billing_address, d.shipping_address, d.subtotal, d.discount_amount, d.tax_amount, d.total,
d.created_by, d.updated_by, d.created_at, d.updated_at`

const documentFrom = ` FROM documents d LEFT JOIN parties p ON p.id = d.party_id`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.CompanyID, &d.Kind, &d.Number, &d.Status, &d.PartyID, &d.PartyName, &d.SourceID,
		&d.WarehouseID, &d.ReturnReason, &d.IssueDate, &d.DueDate, &d.Reference, &d.Notes,
		&d.BillingAddress, &d.ShippingAddress, &d.Subtotal, &d.DiscountAmount, &d.TaxAmount, &d.Total,
		&d.CreatedBy, &d.UpdatedBy, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const lineColumns = `id, document_id, line_no, product_id, description, quantity, unit_price, tax_rate, discount_amount,
tax_amount, amount, fulfilled_qty, COALESCE(source_line_id, 0)`

func (q *Queries) lines(ctx context.Context, documentID int64) ([]Line, error) {
	rows, err := q.db.Query(ctx, `SELECT `+lineColumns+` FROM document_lines WHERE document_id = $1 ORDER BY line_no`, documentID)
	if err != nil {
		return nil, fmt.Errorf("documents: lines: %w", err)
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.LineNo, &l.ProductID, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.TaxRate, &l.DiscountAmount, &l.TaxAmount, &l.Amount, &l.FulfilledQty, &l.SourceLineID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q *Queries) getDocument(ctx context.Context, companyID, id int64, lock string) (Document, error) {
	doc, err := scanDocument(q.db.QueryRow(ctx, `SELECT `+documentColumns+documentFrom+` WHERE d.company_id = $1 AND d.id = $2`+lock, companyID, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Document{}, shared.NotFoundf("document %d", id)
		}
		return Document{}, fmt.Errorf("documents: get %d: %w", id, err)
	}
	doc.Lines, err = q.lines(ctx, doc.ID)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// GetDocument loads a document with its lines.
func (q *Queries) GetDocument(ctx context.Context, companyID, id int64) (Document, error) {
	return q.getDocument(ctx, companyID, id, "")
}

// GetDocumentForUpdate loads a document and locks its header row.
func (q *Queries) GetDocumentForUpdate(ctx context.Context, companyID, id int64) (Document, error) {
	return q.getDocument(ctx, companyID, id, " FOR UPDATE OF d")
}

// ListDocuments lists document headers.
func (q *Queries) ListDocuments(ctx context.Context, f ListFilters) ([]Document, error) {
	var (
		where = []string{"d.company_id = $1"}
		args  = []any{f.CompanyID}
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Kind != "" {
		add("d.kind = ?", string(f.Kind))
	}
	if f.Status != "" {
		add("d.status = ?", string(f.Status))
	}
	if f.PartyID != 0 {
		add("d.party_id = ?", f.PartyID)
	}
	if f.SourceID != 0 {
		add("d.source_id = ?", f.SourceID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, f.Offset)
	query := `SELECT ` + documentColumns + documentFrom + ` WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(" ORDER BY d.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return q.collect(ctx, query, args...)
}

// ListDependents lists documents whose source is sourceID.
func (q *Queries) ListDependents(ctx context.Context, companyID, sourceID int64) ([]Document, error) {
	return q.collect(ctx, `SELECT `+documentColumns+documentFrom+` WHERE d.company_id = $1 AND d.source_id = $2 ORDER BY d.id`, companyID, sourceID)
}

func (q *Queries) collect(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("documents: list: %w", err)
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// InsertDocument inserts the header and lines and returns them with ids.
func (q *Queries) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	err := q.db.QueryRow(ctx, `INSERT INTO documents (company_id, kind, number, status, party_id, source_id, warehouse_id, return_reason,
issue_date, due_date, reference, notes, billing_address, shipping_address, subtotal, discount_amount, tax_amount, total,
created_by, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		doc.CompanyID, doc.Kind, doc.Number, doc.Status, doc.PartyID, nullID(doc.SourceID), nullID(doc.WarehouseID),
		nullString(string(doc.ReturnReason)), doc.IssueDate, doc.DueDate, doc.Reference, doc.Notes, doc.BillingAddress,
		doc.ShippingAddress, doc.Subtotal, doc.DiscountAmount, doc.TaxAmount, doc.Total, doc.CreatedBy,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Document{}, fmt.Errorf("%w: document number %s", shared.ErrDuplicateEntry, doc.Number)
		}
		return Document{}, fmt.Errorf("documents: insert: %w", err)
	}
	doc.UpdatedBy = doc.CreatedBy
	doc.Lines, err = q.insertLines(ctx, doc.ID, doc.Lines)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (q *Queries) insertLines(ctx context.Context, documentID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for i, l := range lines {
		l.DocumentID = documentID
		l.LineNo = i + 1
		err := q.db.QueryRow(ctx, `INSERT INTO document_lines (document_id, line_no, product_id, description, quantity, unit_price,
tax_rate, discount_amount, tax_amount, amount, fulfilled_qty, source_line_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
			documentID, l.LineNo, l.ProductID, l.Description, l.Quantity, l.UnitPrice, l.TaxRate, l.DiscountAmount,
			l.TaxAmount, l.Amount, l.FulfilledQty, nullID(l.SourceLineID)).Scan(&l.ID)
		if err != nil {
			return nil, fmt.Errorf("documents: insert line %d: %w", l.LineNo, err)
		}
		out = append(out, l)
	}
	return out, nil
}

// UpdateDocument rewrites the editable header fields and totals.
func (q *Queries) UpdateDocument(ctx context.Context, doc Document) error {
	tag, err := q.db.Exec(ctx, `UPDATE documents SET party_id = $3, warehouse_id = $4, issue_date = $5, due_date = $6, reference = $7,
notes = $8, billing_address = $9, shipping_address = $10, subtotal = $11, discount_amount = $12, tax_amount = $13, total = $14,
updated_by = $15, updated_at = NOW()
WHERE company_id = $1 AND id = $2`,
		doc.CompanyID, doc.ID, doc.PartyID, nullID(doc.WarehouseID), doc.IssueDate, doc.DueDate, doc.Reference, doc.Notes,
		doc.BillingAddress, doc.ShippingAddress, doc.Subtotal, doc.DiscountAmount, doc.TaxAmount, doc.Total, doc.UpdatedBy)
	if err != nil {
		return fmt.Errorf("documents: update %d: %w", doc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("document %d", doc.ID)
	}
	return nil
}

// ReplaceLines deletes the lines of a document and inserts the given ones.
func (q *Queries) ReplaceLines(ctx context.Context, documentID int64, lines []Line) ([]Line, error) {
	if _, err := q.db.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1`, documentID); err != nil {
		return nil, fmt.Errorf("documents: delete lines: %w", err)
	}
	return q.insertLines(ctx, documentID, lines)
}

// SetLineFulfilled stores the fulfilled quantity of an order line.
func (q *Queries) SetLineFulfilled(ctx context.Context, lineID int64, qty decimal.Decimal) error {
	_, err := q.db.Exec(ctx, `UPDATE document_lines SET fulfilled_qty = $2 WHERE id = $1`, lineID, qty)
	if err != nil {
		return fmt.Errorf("documents: set fulfilled %d: %w", lineID, err)
	}
	return nil
}

// SetStatus stores a status already validated by the lifecycle machine.
func (q *Queries) SetStatus(ctx context.Context, companyID, id int64, status lifecycle.Status, actorID int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE documents SET status = $3, updated_by = $4, updated_at = NOW() WHERE company_id = $1 AND id = $2`,
		companyID, id, status, actorID)
	if err != nil {
		return fmt.Errorf("documents: set status %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("document %d", id)
	}
	return nil
}

// DeleteDocument removes a document and its lines.
func (q *Queries) DeleteDocument(ctx context.Context, companyID, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM documents WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return fmt.Errorf("documents: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("document %d", id)
	}
	return nil
}
