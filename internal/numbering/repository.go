package numbering

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Queryer is satisfied by pgx.Tx and *pgxpool.Pool.
type Queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGSequencer keeps counters in document_sequences. Use it with the caller's
// transaction so the number is released on rollback.
type PGSequencer struct {
	db Queryer
}

// NewPGSequencer builds a sequencer on top of a pool or transaction.
func NewPGSequencer(db Queryer) *PGSequencer {
	return &PGSequencer{db: db}
}

const nextSequenceSQL = `INSERT INTO document_sequences (company_id, prefix, last_value, updated_at)
VALUES ($1, $2, 1, NOW())
ON CONFLICT (company_id, prefix)
DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = NOW()
RETURNING last_value`

// NextSequence implements Sequencer.
func (s *PGSequencer) NextSequence(ctx context.Context, companyID int64, prefix string) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, nextSequenceSQL, companyID, prefix).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
