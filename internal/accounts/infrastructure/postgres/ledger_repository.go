package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	accounts "decoder-ledger/internal/accounts/domain"
)

const defaultPropagationsTable = "cutoff_propagations"

// LedgerRepository persists propagation progress.
type LedgerRepository struct {
	db    DBTX
	table string
}

// NewLedgerRepository constructs a repository.
func NewLedgerRepository(db DBTX, opts ...LedgerOption) *LedgerRepository {
	repo := &LedgerRepository{db: db, table: defaultPropagationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// LedgerOption configures the repository.
type LedgerOption func(*LedgerRepository)

// WithLedgerTable overrides the default table name.
func WithLedgerTable(table string) LedgerOption {
	return func(repo *LedgerRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Save upserts a propagation and its row states.
func (r *LedgerRepository) Save(ctx context.Context, p accounts.Propagation) error {
	if r == nil || r.db == nil {
		return errors.New("ledger repo: nil db")
	}
	if p.ID == "" {
		return errors.New("ledger repo: empty id")
	}
	rows, err := json.Marshal(p.Rows)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, source_account_id, device_index, email, new_cutoff, rows, failed_count, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9
)
ON CONFLICT (id)
DO UPDATE SET
	rows = EXCLUDED.rows,
	failed_count = EXCLUDED.failed_count,
	updated_at = EXCLUDED.updated_at`, r.table)
	_, err = r.db.ExecContext(ctx, query,
		p.ID,
		p.SourceAccountID,
		p.DeviceIndex,
		p.Email,
		p.NewCutoff,
		string(rows),
		p.FailedCount(),
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

// Get loads a propagation by id.
func (r *LedgerRepository) Get(ctx context.Context, id string) (*accounts.Propagation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, source_account_id, device_index, email, new_cutoff, rows, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)
	var (
		p   accounts.Propagation
		raw []byte
	)
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.SourceAccountID,
		&p.DeviceIndex,
		&p.Email,
		&p.NewCutoff,
		&raw,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p.Rows); err != nil {
			return nil, fmt.Errorf("ledger repo: decode rows: %w", err)
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
