package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

var walletCols = []string{"id", "owner_id", "kind", "balance", "total_credited", "total_distributed", "version", "created_at", "updated_at"}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestStore_WithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		st, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := st.WithTx(ctx, func(tx store.Tx) error { return nil })
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		st, mock := newMock(t)
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := st.WithTx(ctx, func(tx store.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTx_Wallets(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("lock reads the row for update", func(t *testing.T) {
		st, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE owner_id = \\$1 AND kind = \\$2 FOR UPDATE").
			WithArgs(7, "user").
			WillReturnRows(sqlmock.NewRows(walletCols).AddRow(3, 7, "user", "150.50", "0", "0", 4, now, now))
		mock.ExpectCommit()

		var w *models.Wallet
		err := st.WithTx(ctx, func(tx store.Tx) error {
			var err error
			w, err = tx.LockWallet(7, models.WalletKindUser)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), w.ID)
		assert.Equal(t, models.WalletKindUser, w.Kind)
		assert.True(t, decimal.RequireFromString("150.50").Equal(w.Balance))
		assert.Equal(t, 4, w.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing wallet", func(t *testing.T) {
		st, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM wallets").
			WithArgs(7, "distributor").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := st.WithTx(ctx, func(tx store.Tx) error {
			_, err := tx.GetWallet(7, models.WalletKindDistributor)
			return err
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create reports an existing wallet", func(t *testing.T) {
		st, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO wallets (.+) ON CONFLICT \\(owner_id, kind\\) DO NOTHING").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.CreateWallet(&models.Wallet{OwnerID: 7, Kind: models.WalletKindUser, CreatedAt: now, UpdatedAt: now})
		})
		assert.ErrorIs(t, err, store.ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update checks the version", func(t *testing.T) {
		st, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE wallets SET (.+) WHERE id = \\$5 AND version = \\$6").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 3, 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE wallets SET (.+) WHERE id = \\$5 AND version = \\$6").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 3, 5).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		w := &models.Wallet{ID: 3, OwnerID: 7, Kind: models.WalletKindUser, Balance: decimal.NewFromInt(10), Version: 4}
		err := st.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.UpdateWallet(w); err != nil {
				return err
			}
			assert.Equal(t, 5, w.Version)
			return tx.UpdateWallet(w)
		})
		assert.ErrorIs(t, err, store.ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTx_InsertPickDuplicate(t *testing.T) {
	ctx := context.Background()
	st, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO picked_players").
		WithArgs(1, "A", 10, 11, sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "picked_players_session_id_player_id_key"})
	mock.ExpectRollback()

	err := st.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertPick(&models.PickedPlayer{SessionID: 1, Side: models.SideA, UserID: 10, PlayerID: 11, PickedAt: time.Now()})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTx_Sessions(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	cols := []string{"id", "match_id", "side_a_user_id", "opponent_id", "players_per_side", "fixed_bet_amount",
		"current_turn", "toss_winner", "toss_completed", "status", "picks_completed", "bets_completed",
		"side_a_stake_placed", "side_b_stake_placed", "side_a_total_runs", "side_b_total_runs",
		"side_a_winnings", "side_b_winnings", "winner", "settled_at", "created_at", "updated_at"}

	t.Run("scan maps nullable columns", func(t *testing.T) {
		st, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM betting_sessions WHERE id = \\$1 FOR UPDATE").
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(
				5, 100, 10, 20, 2, "100.00",
				"B", "A", true, "picking", false, false,
				false, false, 0, 0,
				"0", "0", nil, nil, now, now))
		mock.ExpectCommit()

		var sess *models.BettingSession
		err := st.WithTx(ctx, func(tx store.Tx) error {
			var err error
			sess, err = tx.LockSession(5)
			return err
		})
		require.NoError(t, err)
		require.NotNil(t, sess.OpponentID)
		assert.Equal(t, int64(20), *sess.OpponentID)
		assert.Equal(t, models.SideB, *sess.CurrentTurn)
		assert.Equal(t, models.SideA, *sess.TossWinner)
		assert.Nil(t, sess.Winner)
		assert.Nil(t, sess.SettledAt)
		assert.Equal(t, models.SessionPicking, sess.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update of a missing session", func(t *testing.T) {
		st, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE betting_sessions SET").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.UpdateSession(&models.BettingSession{ID: 99, Status: models.SessionCancelled})
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTx_Catalogue(t *testing.T) {
	ctx := context.Background()
	kickoff := time.Date(2026, 11, 2, 9, 30, 0, 0, time.UTC)

	t.Run("upserts return the row id", func(t *testing.T) {
		st, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO teams (.+) ON CONFLICT \\(api_id\\) DO UPDATE (.+) RETURNING id").
			WithArgs("india", "India", "IND").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
		mock.ExpectQuery("INSERT INTO players (.+) ON CONFLICT \\(api_id\\) DO UPDATE (.+) RETURNING id").
			WithArgs("p-1", "Rohit Sharma", 4, "Batsman").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(40))
		mock.ExpectQuery("INSERT INTO matches (.+) ON CONFLICT \\(api_id\\) DO UPDATE (.+) RETURNING id").
			WithArgs("m-1", 4, 5, "IND v AUS", "Mumbai", kickoff, "upcoming").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(400))
		mock.ExpectCommit()

		team := &models.Team{APIID: "india", Name: "India", ShortName: "IND"}
		player := &models.Player{APIID: "p-1", Name: "Rohit Sharma", Role: "Batsman"}
		match := &models.Match{APIID: "m-1", TeamAID: 4, TeamBID: 5, Title: "IND v AUS", Venue: "Mumbai", MatchDate: kickoff, Status: models.MatchUpcoming}
		err := st.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.UpsertTeam(team); err != nil {
				return err
			}
			player.TeamID = team.ID
			if err := tx.UpsertPlayer(player); err != nil {
				return err
			}
			return tx.UpsertMatch(match)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4), team.ID)
		assert.Equal(t, int64(40), player.ID)
		assert.Equal(t, int64(400), match.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("match lookup by feed id", func(t *testing.T) {
		st, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM matches WHERE api_id = \\$1").
			WithArgs("m-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "api_id", "team_a_id", "team_b_id", "title", "venue", "match_date", "status"}).
				AddRow(400, "m-1", 4, 5, "IND v AUS", "Mumbai", kickoff, "live"))
		mock.ExpectCommit()

		var m *models.Match
		err := st.WithTx(ctx, func(tx store.Tx) error {
			var err error
			m, err = tx.GetMatchByAPIID("m-1")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(400), m.ID)
		assert.Equal(t, models.MatchLive, m.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status update on a missing match", func(t *testing.T) {
		st, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE matches SET status = \\$2 WHERE id = \\$1").
			WithArgs(999, "completed").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.UpdateMatchStatus(999, models.MatchCompleted)
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
