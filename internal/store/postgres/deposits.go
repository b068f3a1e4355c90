package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

const depositColumns = `id, end_user_id, distributor_id, amount, status, remarks, requested_at, processed_at, processed_by`

func scanDepositRequest(row scanner) (*models.DepositRequest, error) {
	var (
		r           models.DepositRequest
		processedAt sql.NullTime
		processedBy sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.EndUserID, &r.DistributorID, &r.Amount, &r.Status, &r.Remarks,
		&r.RequestedAt, &processedAt, &processedBy)
	if err != nil {
		return nil, translate(err)
	}
	if processedAt.Valid {
		at := processedAt.Time
		r.ProcessedAt = &at
	}
	r.ProcessedBy = int64Ptr(processedBy)
	return &r, nil
}

func (t *tx) CreateDepositRequest(r *models.DepositRequest) error {
	err := t.queryRow(`
		INSERT INTO deposit_requests (end_user_id, distributor_id, amount, status, remarks, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		r.EndUserID, r.DistributorID, r.Amount, r.Status, r.Remarks, r.RequestedAt).Scan(&r.ID)
	return translate(err)
}

func (t *tx) LockDepositRequest(id int64) (*models.DepositRequest, error) {
	return scanDepositRequest(t.queryRow(`SELECT `+depositColumns+` FROM deposit_requests WHERE id = $1 FOR UPDATE`, id))
}

func (t *tx) UpdateDepositRequest(r *models.DepositRequest) error {
	var processedAt sql.NullTime
	if r.ProcessedAt != nil {
		processedAt = sql.NullTime{Time: *r.ProcessedAt, Valid: true}
	}
	return t.execOne(`
		UPDATE deposit_requests SET status = $1, remarks = $2, processed_at = $3, processed_by = $4
		WHERE id = $5`,
		r.Status, r.Remarks, processedAt, nullInt64(r.ProcessedBy), r.ID)
}

func (t *tx) ListDepositRequests(f store.DepositRequestFilter) ([]models.DepositRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.EndUserID != 0 {
		args = append(args, f.EndUserID)
		where = append(where, fmt.Sprintf("end_user_id = $%d", len(args)))
	}
	if f.DistributorID != 0 {
		args = append(args, f.DistributorID)
		where = append(where, fmt.Sprintf("distributor_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + depositColumns + ` FROM deposit_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`

	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.DepositRequest
	for rows.Next() {
		r, err := scanDepositRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
