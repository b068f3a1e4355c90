package postgres

import (
	"github.com/lib/pq"

	"github.com/cricketduel/backend/internal/models"
)

const matchColumns = `id, api_id, team_a_id, team_b_id, title, venue, match_date, status`

func scanMatch(row scanner) (*models.Match, error) {
	var m models.Match
	err := row.Scan(&m.ID, &m.APIID, &m.TeamAID, &m.TeamBID, &m.Title, &m.Venue, &m.MatchDate, &m.Status)
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (t *tx) GetMatch(id int64) (*models.Match, error) {
	return scanMatch(t.queryRow(`SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
}

func (t *tx) GetMatchByAPIID(apiID string) (*models.Match, error) {
	return scanMatch(t.queryRow(`SELECT `+matchColumns+` FROM matches WHERE api_id = $1`, apiID))
}

func (t *tx) UpsertMatch(m *models.Match) error {
	err := t.queryRow(`
		INSERT INTO matches (api_id, team_a_id, team_b_id, title, venue, match_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (api_id)
		DO UPDATE SET team_a_id = EXCLUDED.team_a_id, team_b_id = EXCLUDED.team_b_id, title = EXCLUDED.title,
			venue = EXCLUDED.venue, match_date = EXCLUDED.match_date, status = EXCLUDED.status
		RETURNING id`,
		m.APIID, m.TeamAID, m.TeamBID, m.Title, m.Venue, m.MatchDate, m.Status).Scan(&m.ID)
	return translate(err)
}

func (t *tx) UpdateMatchStatus(id int64, status models.MatchStatus) error {
	return t.execOne(`UPDATE matches SET status = $2 WHERE id = $1`, id, status)
}

func (t *tx) ListMatches(statuses ...models.MatchStatus) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches`
	var args []any
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		query += ` WHERE status = ANY($1)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY match_date, id`

	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (t *tx) GetTeam(id int64) (*models.Team, error) {
	var team models.Team
	err := t.queryRow(`SELECT id, api_id, name, short_name FROM teams WHERE id = $1`, id).
		Scan(&team.ID, &team.APIID, &team.Name, &team.ShortName)
	if err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

func (t *tx) UpsertTeam(team *models.Team) error {
	err := t.queryRow(`
		INSERT INTO teams (api_id, name, short_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (api_id)
		DO UPDATE SET name = EXCLUDED.name, short_name = EXCLUDED.short_name
		RETURNING id`,
		team.APIID, team.Name, team.ShortName).Scan(&team.ID)
	return translate(err)
}

const playerColumns = `id, api_id, name, team_id, role`

func scanPlayer(row scanner) (*models.Player, error) {
	var p models.Player
	if err := row.Scan(&p.ID, &p.APIID, &p.Name, &p.TeamID, &p.Role); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *tx) GetPlayer(id int64) (*models.Player, error) {
	return scanPlayer(t.queryRow(`SELECT `+playerColumns+` FROM players WHERE id = $1`, id))
}

func (t *tx) UpsertPlayer(p *models.Player) error {
	err := t.queryRow(`
		INSERT INTO players (api_id, name, team_id, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (api_id)
		DO UPDATE SET name = EXCLUDED.name, team_id = EXCLUDED.team_id, role = EXCLUDED.role
		RETURNING id`,
		p.APIID, p.Name, p.TeamID, p.Role).Scan(&p.ID)
	return translate(err)
}

func (t *tx) ListPlayersByTeam(teamID int64) ([]models.Player, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+playerColumns+` FROM players WHERE team_id = $1 ORDER BY id`, teamID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (t *tx) ListMatchStats(matchID int64) ([]models.PlayerMatchStats, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT player_id, match_id, runs_scored, balls_faced, updated_at
		FROM player_match_stats
		WHERE match_id = $1`, matchID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.PlayerMatchStats
	for rows.Next() {
		var s models.PlayerMatchStats
		if err := rows.Scan(&s.PlayerID, &s.MatchID, &s.RunsScored, &s.BallsFaced, &s.UpdatedAt); err != nil {
			return nil, translate(err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *tx) UpsertPlayerStats(s *models.PlayerMatchStats) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now()
	}
	_, err := t.exec(`
		INSERT INTO player_match_stats (player_id, match_id, runs_scored, balls_faced, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id, match_id)
		DO UPDATE SET runs_scored = EXCLUDED.runs_scored, balls_faced = EXCLUDED.balls_faced, updated_at = EXCLUDED.updated_at`,
		s.PlayerID, s.MatchID, s.RunsScored, s.BallsFaced, s.UpdatedAt)
	return err
}
