package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	accounts "decoder-ledger/internal/accounts/domain"
)

const defaultAccountsTable = "accounts"

// AccountRepository stores accounts with their devices as a JSONB column.
type AccountRepository struct {
	db     DBTX
	table  string
	logger *zap.Logger
}

// NewAccountRepository constructs a repository.
func NewAccountRepository(db DBTX, opts ...AccountOption) *AccountRepository {
	repo := &AccountRepository{db: db, table: defaultAccountsTable, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// AccountOption configures the repository.
type AccountOption func(*AccountRepository)

// WithAccountTable overrides the default table name.
func WithAccountTable(table string) AccountOption {
	return func(repo *AccountRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithAccountLogger receives the rows skipped as malformed.
func WithAccountLogger(logger *zap.Logger) AccountOption {
	return func(repo *AccountRepository) {
		if logger != nil {
			repo.logger = logger
		}
	}
}

// List returns every account ordered by creation. Malformed rows are logged
// and left out.
func (r *AccountRepository) List(ctx context.Context) ([]accounts.Account, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("account repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, email, alias, devices, created_at, updated_at
FROM %s
ORDER BY created_at ASC, id ASC`, r.table)
	return r.query(ctx, query)
}

// ListByEmail returns the accounts sharing email, oldest first.
func (r *AccountRepository) ListByEmail(ctx context.Context, email string) ([]accounts.Account, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("account repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, email, alias, devices, created_at, updated_at
FROM %s
WHERE btrim(email) = btrim($1)
ORDER BY created_at ASC, id ASC`, r.table)
	return r.query(ctx, query, email)
}

// Get loads an account by id.
func (r *AccountRepository) Get(ctx context.Context, id string) (*accounts.Account, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("account repo: nil db")
	}
	if id == "" {
		return nil, errors.New("account repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT id, email, alias, devices, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Insert creates a new row.
func (r *AccountRepository) Insert(ctx context.Context, account accounts.Account) error {
	if r == nil || r.db == nil {
		return errors.New("account repo: nil db")
	}
	if account.ID == "" {
		return errors.New("account repo: empty id")
	}
	devices, err := encodeDevices(account.Devices)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = account.CreatedAt
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, email, alias, devices, created_at, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6)`, r.table)
	_, err = r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.Alias,
		devices,
		account.CreatedAt,
		account.UpdatedAt,
	)
	return err
}

// Update overwrites email, alias and devices of an existing row.
func (r *AccountRepository) Update(ctx context.Context, account accounts.Account) error {
	if r == nil || r.db == nil {
		return errors.New("account repo: nil db")
	}
	if account.ID == "" {
		return errors.New("account repo: empty id")
	}
	devices, err := encodeDevices(account.Devices)
	if err != nil {
		return err
	}
	updatedAt := account.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`
UPDATE %s
SET email = $2,
	alias = $3,
	devices = $4::jsonb,
	updated_at = $5
WHERE id = $1`, r.table)
	res, err := r.db.ExecContext(ctx, query, account.ID, account.Email, account.Alias, devices, updatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return accounts.ErrAccountNotFound
	}
	return nil
}

// Delete removes an account and, with it, its devices.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("account repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return accounts.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) query(ctx context.Context, query string, args ...any) ([]accounts.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result  []accounts.Account
		skipped int
	)
	for rows.Next() {
		account, err := scanAccount(rows)
		if errors.Is(err, accounts.ErrMalformedRecord) {
			skipped++
			r.logger.Warn("skipping malformed account row", zap.String("account_id", account.ID), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		r.logger.Error("account rows rejected", zap.String("table", r.table), zap.Int("skipped", skipped), zap.Int("loaded", len(result)))
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (accounts.Account, error) {
	var (
		account accounts.Account
		alias   sql.NullString
		raw     []byte
	)
	if err := row.Scan(&account.ID, &account.Email, &alias, &raw, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return accounts.Account{}, err
	}
	account.Alias = alias.String
	devices, err := decodeDevices(raw)
	if err == nil {
		err = accounts.ValidateDevices(devices)
	}
	if err != nil {
		return accounts.Account{ID: account.ID}, fmt.Errorf("%w: account %s: %v", accounts.ErrMalformedRecord, account.ID, err)
	}
	account.Devices = devices
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return account, nil
}

func encodeDevices(devices []accounts.Device) (string, error) {
	if devices == nil {
		devices = []accounts.Device{}
	}
	payload, err := json.Marshal(devices)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func decodeDevices(raw []byte) ([]accounts.Device, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []accounts.Device{}, nil
	}
	var devices []accounts.Device
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []accounts.Device{}
	}
	return devices, nil
}
