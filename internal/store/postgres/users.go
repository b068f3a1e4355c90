package postgres

import (
	"database/sql"
	"strings"

	"github.com/cricketduel/backend/internal/models"
)

func (t *tx) CreateUser(u *models.User) error {
	err := t.queryRow(`
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		u.Username, strings.ToLower(u.Email), u.PasswordHash, u.CreatedAt).Scan(&u.ID)
	return translate(err)
}

const userColumns = `id, username, email, password_hash, created_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (t *tx) GetUser(id int64) (*models.User, error) {
	return scanUser(t.queryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (t *tx) GetUserByUsername(username string) (*models.User, error) {
	return scanUser(t.queryRow(`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username))
}

func (t *tx) GetUserByEmail(email string) (*models.User, error) {
	return scanUser(t.queryRow(`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
}

func (t *tx) CreateProfile(p *models.Profile) error {
	_, err := t.exec(`
		INSERT INTO profiles (user_id, user_type, parent_id, distributor_code, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.UserID, p.UserType, nullInt64(p.ParentID), nullString(p.DistributorCode), p.IsActive, p.CreatedAt)
	return err
}

func (t *tx) GetProfile(userID int64) (*models.Profile, error) {
	var (
		p      models.Profile
		parent sql.NullInt64
		code   sql.NullString
	)
	err := t.queryRow(`
		SELECT user_id, user_type, parent_id, distributor_code, is_active, created_at
		FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.UserType, &parent, &code, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	p.ParentID = int64Ptr(parent)
	p.DistributorCode = code.String
	return &p, nil
}

func (t *tx) UpdateProfile(p *models.Profile) error {
	return t.execOne(`
		UPDATE profiles SET user_type = $1, parent_id = $2, distributor_code = $3, is_active = $4
		WHERE user_id = $5`,
		p.UserType, nullInt64(p.ParentID), nullString(p.DistributorCode), p.IsActive, p.UserID)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
