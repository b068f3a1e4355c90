package postgres

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/cricketduel/backend/internal/models"
)

const sessionColumns = `id, match_id, side_a_user_id, opponent_id, players_per_side, fixed_bet_amount,
	current_turn, toss_winner, toss_completed, status, picks_completed, bets_completed,
	side_a_stake_placed, side_b_stake_placed, side_a_total_runs, side_b_total_runs,
	side_a_winnings, side_b_winnings, winner, settled_at, created_at, updated_at`

func scanSession(row scanner) (*models.BettingSession, error) {
	var (
		s                        models.BettingSession
		opponent                 sql.NullInt64
		turn, tossWinner, winner sql.NullString
		settledAt                sql.NullTime
	)
	err := row.Scan(&s.ID, &s.MatchID, &s.SideAUserID, &opponent, &s.PlayersPerSide, &s.FixedBetAmount,
		&turn, &tossWinner, &s.TossCompleted, &s.Status, &s.PicksCompleted, &s.BetsCompleted,
		&s.SideAStakePlaced, &s.SideBStakePlaced, &s.SideATotalRuns, &s.SideBTotalRuns,
		&s.SideAWinnings, &s.SideBWinnings, &winner, &settledAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}

	s.OpponentID = int64Ptr(opponent)
	s.CurrentTurn = sidePtr(turn)
	s.TossWinner = sidePtr(tossWinner)
	s.Winner = sidePtr(winner)
	if settledAt.Valid {
		at := settledAt.Time
		s.SettledAt = &at
	}
	return &s, nil
}

func (t *tx) listSessions(query string, args ...any) ([]models.BettingSession, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.BettingSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (t *tx) CreateSession(s *models.BettingSession) error {
	err := t.queryRow(`
		INSERT INTO betting_sessions (match_id, side_a_user_id, opponent_id, players_per_side, fixed_bet_amount,
			status, side_a_winnings, side_b_winnings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		s.MatchID, s.SideAUserID, nullInt64(s.OpponentID), s.PlayersPerSide, s.FixedBetAmount,
		s.Status, s.SideAWinnings, s.SideBWinnings, s.CreatedAt, s.UpdatedAt).Scan(&s.ID)
	return translate(err)
}

func (t *tx) GetSession(id int64) (*models.BettingSession, error) {
	return scanSession(t.queryRow(`SELECT `+sessionColumns+` FROM betting_sessions WHERE id = $1`, id))
}

func (t *tx) LockSession(id int64) (*models.BettingSession, error) {
	return scanSession(t.queryRow(`SELECT `+sessionColumns+` FROM betting_sessions WHERE id = $1 FOR UPDATE`, id))
}

func (t *tx) UpdateSession(s *models.BettingSession) error {
	var settledAt sql.NullTime
	if s.SettledAt != nil {
		settledAt = sql.NullTime{Time: *s.SettledAt, Valid: true}
	}
	return t.execOne(`
		UPDATE betting_sessions SET
			opponent_id = $1, current_turn = $2, toss_winner = $3, toss_completed = $4, status = $5,
			picks_completed = $6, bets_completed = $7, side_a_stake_placed = $8, side_b_stake_placed = $9,
			side_a_total_runs = $10, side_b_total_runs = $11, side_a_winnings = $12, side_b_winnings = $13,
			winner = $14, settled_at = $15, updated_at = $16
		WHERE id = $17`,
		nullInt64(s.OpponentID), nullSide(s.CurrentTurn), nullSide(s.TossWinner), s.TossCompleted, s.Status,
		s.PicksCompleted, s.BetsCompleted, s.SideAStakePlaced, s.SideBStakePlaced,
		s.SideATotalRuns, s.SideBTotalRuns, s.SideAWinnings, s.SideBWinnings,
		nullSide(s.Winner), settledAt, s.UpdatedAt, s.ID)
}

func (t *tx) FindActiveSession(userID, matchID int64) (*models.BettingSession, error) {
	return scanSession(t.queryRow(`
		SELECT `+sessionColumns+`
		FROM betting_sessions
		WHERE match_id = $1 AND (side_a_user_id = $2 OR opponent_id = $2) AND status = ANY($3)
		ORDER BY id
		LIMIT 1`,
		matchID, userID, pq.Array(sessionStatusNames(models.ActiveSessionStatuses))))
}

func (t *tx) ListSessionsByMatch(matchID int64, statuses ...models.SessionStatus) ([]models.BettingSession, error) {
	if len(statuses) == 0 {
		return t.listSessions(`SELECT `+sessionColumns+` FROM betting_sessions WHERE match_id = $1 ORDER BY id`, matchID)
	}
	return t.listSessions(`
		SELECT `+sessionColumns+`
		FROM betting_sessions
		WHERE match_id = $1 AND status = ANY($2)
		ORDER BY id`, matchID, pq.Array(sessionStatusNames(statuses)))
}

func (t *tx) ListSessionsByUser(userID int64) ([]models.BettingSession, error) {
	return t.listSessions(`
		SELECT `+sessionColumns+`
		FROM betting_sessions
		WHERE side_a_user_id = $1 OR opponent_id = $1
		ORDER BY id DESC`, userID)
}

func (t *tx) InsertPick(p *models.PickedPlayer) error {
	err := t.queryRow(`
		INSERT INTO picked_players (session_id, side, user_id, player_id, picked_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.SessionID, p.Side, p.UserID, p.PlayerID, p.PickedAt).Scan(&p.ID)
	return translate(err)
}

func (t *tx) ListPicks(sessionID int64) ([]models.PickedPlayer, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT id, session_id, side, user_id, player_id, picked_at
		FROM picked_players
		WHERE session_id = $1
		ORDER BY id`, sessionID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.PickedPlayer
	for rows.Next() {
		var p models.PickedPlayer
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Side, &p.UserID, &p.PlayerID, &p.PickedAt); err != nil {
			return nil, translate(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const betColumns = `id, session_id, picked_player_id, side, user_id, amount_per_run, insurance_percentage,
	insurance_premium, insured_amount, insurance_claimed, insurance_refunded, runs_scored, total_payout,
	is_settled, created_at`

func (t *tx) InsertBet(b *models.Bet) error {
	err := t.queryRow(`
		INSERT INTO bets (session_id, picked_player_id, side, user_id, amount_per_run, insurance_percentage,
			insurance_premium, insured_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		b.SessionID, b.PickedPlayerID, b.Side, b.UserID, b.AmountPerRun, b.InsurancePercentage,
		b.InsurancePremium, b.InsuredAmount, b.CreatedAt).Scan(&b.ID)
	return translate(err)
}

func (t *tx) UpdateBet(b *models.Bet) error {
	var runs sql.NullInt64
	if b.RunsScored != nil {
		runs = sql.NullInt64{Int64: int64(*b.RunsScored), Valid: true}
	}
	var payout decimal.NullDecimal
	if b.TotalPayout != nil {
		payout = decimal.NullDecimal{Decimal: *b.TotalPayout, Valid: true}
	}
	return t.execOne(`
		UPDATE bets SET insurance_claimed = $1, insurance_refunded = $2, runs_scored = $3,
			total_payout = $4, is_settled = $5
		WHERE id = $6`,
		b.InsuranceClaimed, b.InsuranceRefunded, runs, payout, b.IsSettled, b.ID)
}

func (t *tx) ListBets(sessionID int64) ([]models.Bet, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+betColumns+` FROM bets WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []models.Bet
	for rows.Next() {
		var (
			b      models.Bet
			runs   sql.NullInt64
			payout decimal.NullDecimal
		)
		err := rows.Scan(&b.ID, &b.SessionID, &b.PickedPlayerID, &b.Side, &b.UserID, &b.AmountPerRun,
			&b.InsurancePercentage, &b.InsurancePremium, &b.InsuredAmount, &b.InsuranceClaimed,
			&b.InsuranceRefunded, &runs, &payout, &b.IsSettled, &b.CreatedAt)
		if err != nil {
			return nil, translate(err)
		}
		if runs.Valid {
			r := int(runs.Int64)
			b.RunsScored = &r
		}
		if payout.Valid {
			p := payout.Decimal
			b.TotalPayout = &p
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func sessionStatusNames(statuses []models.SessionStatus) []string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}
