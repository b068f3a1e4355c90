package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	st := New()

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(&models.User{Username: "alice", Email: "alice@example.com"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = st.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetUserByUsername("alice")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().WithTx(ctx, func(tx store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTx_Uniqueness(t *testing.T) {
	ctx := context.Background()
	st := New()

	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateUser(&models.User{Username: "alice", Email: "alice@example.com"}))
		assert.ErrorIs(t, tx.CreateUser(&models.User{Username: "ALICE", Email: "other@example.com"}), store.ErrDuplicate)
		assert.ErrorIs(t, tx.CreateUser(&models.User{Username: "bob", Email: "Alice@Example.com"}), store.ErrDuplicate)

		require.NoError(t, tx.CreateWallet(&models.Wallet{OwnerID: 1, Kind: models.WalletKindUser}))
		assert.ErrorIs(t, tx.CreateWallet(&models.Wallet{OwnerID: 1, Kind: models.WalletKindUser}), store.ErrDuplicate)
		assert.NoError(t, tx.CreateWallet(&models.Wallet{OwnerID: 1, Kind: models.WalletKindDistributor}))

		require.NoError(t, tx.InsertPick(&models.PickedPlayer{SessionID: 1, PlayerID: 11, Side: models.SideA}))
		assert.ErrorIs(t, tx.InsertPick(&models.PickedPlayer{SessionID: 1, PlayerID: 11, Side: models.SideB}), store.ErrDuplicate)
		assert.NoError(t, tx.InsertPick(&models.PickedPlayer{SessionID: 2, PlayerID: 11, Side: models.SideA}))
		return nil
	})
	require.NoError(t, err)
}

func TestTx_UpdateWalletVersion(t *testing.T) {
	ctx := context.Background()
	st := New()

	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateWallet(&models.Wallet{OwnerID: 1, Kind: models.WalletKindUser}))

		first, err := tx.LockWallet(1, models.WalletKindUser)
		require.NoError(t, err)
		stale := *first

		first.Balance = decimal.NewFromInt(10)
		require.NoError(t, tx.UpdateWallet(first))
		assert.Equal(t, 2, first.Version)

		stale.Balance = decimal.NewFromInt(99)
		assert.ErrorIs(t, tx.UpdateWallet(&stale), store.ErrVersionConflict)
		return nil
	})
	require.NoError(t, err)
}

func TestTx_FindActiveSession(t *testing.T) {
	ctx := context.Background()
	st := New()
	opponent := int64(2)

	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateSession(&models.BettingSession{MatchID: 100, SideAUserID: 1, Status: models.SessionCancelled}))
		live := &models.BettingSession{MatchID: 100, SideAUserID: 1, OpponentID: &opponent, Status: models.SessionBetting}
		require.NoError(t, tx.CreateSession(live))

		found, err := tx.FindActiveSession(2, 100)
		require.NoError(t, err)
		assert.Equal(t, live.ID, found.ID)

		_, err = tx.FindActiveSession(1, 200)
		assert.ErrorIs(t, err, store.ErrNotFound)

		byUser, err := tx.ListSessionsByUser(1)
		require.NoError(t, err)
		require.Len(t, byUser, 2)
		assert.Equal(t, live.ID, byUser[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
teams:
  - {id: 1, api_id: "ind", name: India, short_name: IND}
  - {id: 2, api_id: "aus", name: Australia, short_name: AUS}
players:
  - {id: 10, api_id: "p-10", name: Rohit Sharma, team_id: 1, role: batsman}
matches:
  - {id: 50, api_id: "m-50", team_a_id: 1, team_b_id: 2, title: IND v AUS, venue: Mumbai, match_date: 2026-11-02T09:30:00Z, status: upcoming}
stats:
  - {player_id: 10, match_id: 50, runs_scored: 64, balls_faced: 41}
`), 0o600))

	fixtures, err := LoadFixtures(path)
	require.NoError(t, err)
	require.Len(t, fixtures.Matches, 1)
	assert.Equal(t, models.MatchUpcoming, fixtures.Matches[0].Status)
	assert.Equal(t, 2026, fixtures.Matches[0].MatchDate.Year())

	st := New()
	st.Seed(fixtures)

	err = st.WithTx(context.Background(), func(tx store.Tx) error {
		require.NoError(t, tx.UpdateMatchStatus(50, models.MatchCompleted))
		assert.ErrorIs(t, tx.UpdateMatchStatus(999, models.MatchCompleted), store.ErrNotFound)

		m, err := tx.GetMatch(50)
		require.NoError(t, err)
		assert.Equal(t, models.MatchCompleted, m.Status)

		stats, err := tx.ListMatchStats(50)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, 64, stats[0].RunsScored)

		players, err := tx.ListPlayersByTeam(1)
		require.NoError(t, err)
		assert.Len(t, players, 1)

		// New records are numbered after the seeded ones.
		u := &models.User{Username: "alice", Email: "alice@example.com"}
		require.NoError(t, tx.CreateUser(u))
		assert.Greater(t, u.ID, int64(50))
		return nil
	})
	require.NoError(t, err)

	_, err = LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTx_CatalogueUpserts(t *testing.T) {
	st := New()
	ctx := context.Background()

	var match models.Match
	err := st.WithTx(ctx, func(tx store.Tx) error {
		india := &models.Team{APIID: "india", Name: "India", ShortName: "IND"}
		require.NoError(t, tx.UpsertTeam(india))
		aus := &models.Team{APIID: "australia", Name: "Australia", ShortName: "AUS"}
		require.NoError(t, tx.UpsertTeam(aus))
		assert.NotEqual(t, india.ID, aus.ID)

		again := &models.Team{APIID: "india", Name: "India", ShortName: "IN"}
		require.NoError(t, tx.UpsertTeam(again))
		assert.Equal(t, india.ID, again.ID)
		team, err := tx.GetTeam(india.ID)
		require.NoError(t, err)
		assert.Equal(t, "IN", team.ShortName)

		rohit := &models.Player{APIID: "p-1", Name: "Rohit Sharma", TeamID: india.ID, Role: "Batsman"}
		require.NoError(t, tx.UpsertPlayer(rohit))
		rohit2 := &models.Player{APIID: "p-1", Name: "Rohit Sharma", TeamID: india.ID, Role: "Batting Allrounder"}
		require.NoError(t, tx.UpsertPlayer(rohit2))
		assert.Equal(t, rohit.ID, rohit2.ID)
		players, err := tx.ListPlayersByTeam(india.ID)
		require.NoError(t, err)
		require.Len(t, players, 1)
		assert.Equal(t, "Batting Allrounder", players[0].Role)

		assert.ErrorIs(t, tx.UpsertPlayer(&models.Player{APIID: "p-9", TeamID: 999}), store.ErrNotFound)

		match = models.Match{APIID: "m-1", TeamAID: india.ID, TeamBID: aus.ID, Title: "IND v AUS", Status: models.MatchUpcoming}
		require.NoError(t, tx.UpsertMatch(&match))
		update := models.Match{APIID: "m-1", TeamAID: india.ID, TeamBID: aus.ID, Title: "IND v AUS", Status: models.MatchLive}
		require.NoError(t, tx.UpsertMatch(&update))
		assert.Equal(t, match.ID, update.ID)
		return nil
	})
	require.NoError(t, err)

	err = st.WithTx(ctx, func(tx store.Tx) error {
		m, err := tx.GetMatchByAPIID("m-1")
		require.NoError(t, err)
		assert.Equal(t, match.ID, m.ID)
		assert.Equal(t, models.MatchLive, m.Status)

		_, err = tx.GetMatchByAPIID("m-missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}
