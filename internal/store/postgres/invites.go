package postgres

import (
	"database/sql"

	"github.com/cricketduel/backend/internal/models"
)

const inviteColumns = `id, session_id, inviter_id, invitee_id, invitee_username, invitee_email, code,
	status, message, created_at, expires_at, accepted_at`

func scanInvite(row scanner) (*models.SessionInvite, error) {
	var (
		i          models.SessionInvite
		invitee    sql.NullInt64
		acceptedAt sql.NullTime
	)
	err := row.Scan(&i.ID, &i.SessionID, &i.InviterID, &invitee, &i.InviteeUsername, &i.InviteeEmail, &i.Code,
		&i.Status, &i.Message, &i.CreatedAt, &i.ExpiresAt, &acceptedAt)
	if err != nil {
		return nil, translate(err)
	}
	i.InviteeID = int64Ptr(invitee)
	if acceptedAt.Valid {
		at := acceptedAt.Time
		i.AcceptedAt = &at
	}
	return &i, nil
}

func (t *tx) CreateInvite(i *models.SessionInvite) error {
	err := t.queryRow(`
		INSERT INTO session_invites (session_id, inviter_id, invitee_id, invitee_username, invitee_email, code,
			status, message, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		i.SessionID, i.InviterID, nullInt64(i.InviteeID), i.InviteeUsername, i.InviteeEmail, i.Code,
		i.Status, i.Message, i.CreatedAt, i.ExpiresAt).Scan(&i.ID)
	return translate(err)
}

func (t *tx) GetInvite(id int64) (*models.SessionInvite, error) {
	return scanInvite(t.queryRow(`SELECT `+inviteColumns+` FROM session_invites WHERE id = $1`, id))
}

func (t *tx) GetInviteByCode(code string) (*models.SessionInvite, error) {
	return scanInvite(t.queryRow(`SELECT `+inviteColumns+` FROM session_invites WHERE code = $1`, code))
}

func (t *tx) UpdateInvite(i *models.SessionInvite) error {
	var acceptedAt sql.NullTime
	if i.AcceptedAt != nil {
		acceptedAt = sql.NullTime{Time: *i.AcceptedAt, Valid: true}
	}
	return t.execOne(`
		UPDATE session_invites SET invitee_id = $1, status = $2, accepted_at = $3
		WHERE id = $4`,
		nullInt64(i.InviteeID), i.Status, acceptedAt, i.ID)
}

func (t *tx) ListInvitesForUser(userID int64) ([]models.SessionInvite, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT `+inviteColumns+`
		FROM session_invites
		WHERE inviter_id = $1 OR invitee_id = $1
		ORDER BY id DESC`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.SessionInvite
	for rows.Next() {
		i, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}
