package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

// CreateWallet does not abort the surrounding transaction when the wallet
// already exists; it reports store.ErrDuplicate instead.
func (t *tx) CreateWallet(w *models.Wallet) error {
	w.Version = 1
	err := t.queryRow(`
		INSERT INTO wallets (owner_id, kind, balance, total_credited, total_distributed, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id, kind) DO NOTHING
		RETURNING id`,
		w.OwnerID, w.Kind, w.Balance, w.TotalCredited, w.TotalDistributed, w.Version, w.CreatedAt, w.UpdatedAt).Scan(&w.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrDuplicate
	}
	return translate(err)
}

const walletColumns = `id, owner_id, kind, balance, total_credited, total_distributed, version, created_at, updated_at`

func scanWallet(row scanner) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.OwnerID, &w.Kind, &w.Balance, &w.TotalCredited, &w.TotalDistributed,
		&w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (t *tx) GetWallet(ownerID int64, kind models.WalletKind) (*models.Wallet, error) {
	return scanWallet(t.queryRow(`
		SELECT `+walletColumns+`
		FROM wallets
		WHERE owner_id = $1 AND kind = $2`, ownerID, kind))
}

func (t *tx) LockWallet(ownerID int64, kind models.WalletKind) (*models.Wallet, error) {
	return scanWallet(t.queryRow(`
		SELECT `+walletColumns+`
		FROM wallets
		WHERE owner_id = $1 AND kind = $2
		FOR UPDATE`, ownerID, kind))
}

func (t *tx) UpdateWallet(w *models.Wallet) error {
	res, err := t.exec(`
		UPDATE wallets
		SET balance = $1, total_credited = $2, total_distributed = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`,
		w.Balance, w.TotalCredited, w.TotalDistributed, w.UpdatedAt, w.ID, w.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrVersionConflict
	}

	w.Version++
	return nil
}

func (t *tx) InsertTransaction(tr *models.Transaction) error {
	err := t.queryRow(`
		INSERT INTO transactions (wallet_id, owner_id, kind, amount, balance_after, description, related_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		tr.WalletID, tr.OwnerID, tr.Kind, tr.Amount, tr.BalanceAfter, tr.Description,
		nullInt64(tr.RelatedUserID), tr.CreatedAt).Scan(&tr.ID)
	return translate(err)
}

const transactionColumns = `id, wallet_id, owner_id, kind, amount, balance_after, description, related_user_id, created_at`

func scanTransaction(row scanner) (*models.Transaction, error) {
	var (
		tr      models.Transaction
		related sql.NullInt64
	)
	err := row.Scan(&tr.ID, &tr.WalletID, &tr.OwnerID, &tr.Kind, &tr.Amount, &tr.BalanceAfter,
		&tr.Description, &related, &tr.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	tr.RelatedUserID = int64Ptr(related)
	return &tr, nil
}

func (t *tx) ListTransactions(walletID int64, limit int) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE wallet_id = $1 ORDER BY id DESC`
	args := []any{walletID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tr)
	}
	return out, rows.Err()
}

func (t *tx) LatestTransaction(walletID int64) (*models.Transaction, error) {
	return scanTransaction(t.queryRow(`
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY id DESC
		LIMIT 1`, walletID))
}

func now() time.Time {
	return time.Now().UTC()
}
