package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/providers"
	"github.com/cricketduel/backend/internal/store"
)

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) CurrentMatches(ctx context.Context) ([]providers.FeedMatch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]providers.FeedMatch), args.Error(1)
}

func (m *mockFeed) MatchSquad(ctx context.Context, matchAPIID string) ([]providers.FeedSquad, error) {
	args := m.Called(ctx, matchAPIID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]providers.FeedSquad), args.Error(1)
}

var (
	sriLanka = providers.FeedTeam{APIID: "sri-lanka", Name: "Sri Lanka", ShortName: "SL"}
	pakistan = providers.FeedTeam{APIID: "pakistan", Name: "Pakistan", ShortName: "PAK"}
	india    = providers.FeedTeam{APIID: "india", Name: "India", ShortName: "IND"}
	aus      = providers.FeedTeam{APIID: "australia", Name: "Australia", ShortName: "AUS"}
)

func feedMatch(apiID string, a, b providers.FeedTeam, status models.MatchStatus) providers.FeedMatch {
	return providers.FeedMatch{
		APIID:     apiID,
		Title:     a.Name + " vs " + b.Name,
		Venue:     "Colombo",
		MatchDate: time.Date(2026, 11, 5, 9, 30, 0, 0, time.UTC),
		Status:    status,
		TeamA:     a,
		TeamB:     b,
	}
}

func (e *testEnv) match(t *testing.T, lookup func(tx store.Tx) (*models.Match, error)) *models.Match {
	t.Helper()
	var m *models.Match
	require.NoError(t, e.store.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		m, err = lookup(tx)
		return err
	}))
	return m
}

func TestMatchSyncService_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("new fixture brings its teams and squads", func(t *testing.T) {
		env := newTestEnv(t)
		feed := &mockFeed{}
		feed.On("CurrentMatches", mock.Anything).
			Return([]providers.FeedMatch{feedMatch("m-9", sriLanka, pakistan, models.MatchUpcoming)}, nil)
		feed.On("MatchSquad", mock.Anything, "m-9").Return([]providers.FeedSquad{
			{Team: sriLanka, Players: []providers.FeedPlayer{{APIID: "p-90", Name: "Kusal Mendis", Role: "WK-Batsman"}}},
			{Team: pakistan, Players: []providers.FeedPlayer{
				{APIID: "p-91", Name: "Babar Azam", Role: "Batsman"},
				{APIID: "p-92", Name: "Shaheen Afridi", Role: "Bowler"},
			}},
		}, nil)

		report, err := NewMatchSyncService(env.store, feed, zap.NewNop()).Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, &SyncReport{Created: 1, Players: 3}, report)

		m := env.match(t, func(tx store.Tx) (*models.Match, error) { return tx.GetMatchByAPIID("m-9") })
		assert.Equal(t, models.MatchUpcoming, m.Status)
		assert.Equal(t, "Sri Lanka vs Pakistan", m.Title)

		require.NoError(t, env.store.WithTx(ctx, func(tx store.Tx) error {
			team, err := tx.GetTeam(m.TeamBID)
			require.NoError(t, err)
			assert.Equal(t, "PAK", team.ShortName)
			players, err := tx.ListPlayersByTeam(m.TeamBID)
			require.NoError(t, err)
			assert.Len(t, players, 2)
			return nil
		}))

		open, err := env.sessions.ListMatches(ctx)
		require.NoError(t, err)
		assert.Len(t, open, 2)
		feed.AssertExpectations(t)
	})

	t.Run("feed result completes a tracked match", func(t *testing.T) {
		env := newTestEnv(t)
		feed := &mockFeed{}
		feed.On("CurrentMatches", mock.Anything).
			Return([]providers.FeedMatch{feedMatch("m-100", india, aus, models.MatchCompleted)}, nil)

		report, err := NewMatchSyncService(env.store, feed, zap.NewNop()).Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Updated)
		assert.Equal(t, 1, report.Completed)

		m := env.match(t, func(tx store.Tx) (*models.Match, error) { return tx.GetMatch(upcomingMatch) })
		assert.Equal(t, models.MatchCompleted, m.Status)
		assert.Equal(t, int64(1), m.TeamAID)
		assert.Equal(t, int64(2), m.TeamBID)
		feed.AssertNotCalled(t, "MatchSquad", mock.Anything, mock.Anything)
	})

	t.Run("status never moves backwards", func(t *testing.T) {
		env := newTestEnv(t)
		env.setMatchStatus(t, upcomingMatch, models.MatchLive)
		feed := &mockFeed{}
		feed.On("CurrentMatches", mock.Anything).
			Return([]providers.FeedMatch{
				feedMatch("m-100", india, aus, models.MatchUpcoming),
				feedMatch("m-200", india, aus, models.MatchLive),
			}, nil)
		feed.On("MatchSquad", mock.Anything, "m-100").Return(nil, errors.New("squad not announced"))

		report, err := NewMatchSyncService(env.store, feed, zap.NewNop()).Sync(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Updated)

		m := env.match(t, func(tx store.Tx) (*models.Match, error) { return tx.GetMatch(upcomingMatch) })
		assert.Equal(t, models.MatchLive, m.Status)
		m = env.match(t, func(tx store.Tx) (*models.Match, error) { return tx.GetMatch(completedMatch) })
		assert.Equal(t, models.MatchCompleted, m.Status)
		feed.AssertNotCalled(t, "MatchSquad", mock.Anything, "m-200")
	})

	t.Run("squad for a known match joins its existing teams", func(t *testing.T) {
		env := newTestEnv(t)
		feed := &mockFeed{}
		feed.On("CurrentMatches", mock.Anything).
			Return([]providers.FeedMatch{feedMatch("m-100", india, aus, models.MatchUpcoming)}, nil)
		feed.On("MatchSquad", mock.Anything, "m-100").Return([]providers.FeedSquad{
			{Team: india, Players: []providers.FeedPlayer{{APIID: "p-14", Name: "KL Rahul", Role: "WK-Batsman"}}},
		}, nil)

		_, err := NewMatchSyncService(env.store, feed, zap.NewNop()).Sync(ctx)
		require.NoError(t, err)

		require.NoError(t, env.store.WithTx(ctx, func(tx store.Tx) error {
			players, err := tx.ListPlayersByTeam(1)
			require.NoError(t, err)
			assert.Len(t, players, 4)
			return nil
		}))
	})

	t.Run("feed outage", func(t *testing.T) {
		env := newTestEnv(t)
		feed := &mockFeed{}
		feed.On("CurrentMatches", mock.Anything).Return(nil, errors.New("feed down"))

		_, err := NewMatchSyncService(env.store, feed, zap.NewNop()).Sync(ctx)
		assert.ErrorContains(t, err, "feed down")
	})

	t.Run("no feed configured", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewMatchSyncService(env.store, nil, zap.NewNop())
		assert.False(t, svc.Enabled())
		_, err := svc.Sync(ctx)
		assert.ErrorIs(t, err, providers.ErrNotConfigured)
	})
}

func TestMatchSyncService_SetMatchStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewMatchSyncService(env.store, nil, zap.NewNop())
	master, user := env.register(t, "master"), env.register(t, "alice")
	_, err := env.distributors.PromoteMaster(ctx, "master")
	require.NoError(t, err)

	_, err = svc.SetMatchStatus(ctx, user, upcomingMatch, models.MatchLive)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.SetMatchStatus(ctx, master, upcomingMatch, "postponed")
	assert.ErrorIs(t, err, ErrValidation)

	m, err := svc.SetMatchStatus(ctx, master, upcomingMatch, models.MatchLive)
	require.NoError(t, err)
	assert.Equal(t, models.MatchLive, m.Status)

	_, err = svc.SetMatchStatus(ctx, master, upcomingMatch, models.MatchUpcoming)
	assert.ErrorIs(t, err, ErrStateConflict)

	_, err = svc.SetMatchStatus(ctx, master, 999, models.MatchCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweeper_SyncsBeforeSettling(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, b := env.register(t, "alice"), env.register(t, "bob")
	env.fund(t, a, "100")
	env.fund(t, b, "100")
	sess := env.stakedSession(t, a, b, "100", "0")

	feed := &mockFeed{}
	feed.On("CurrentMatches", mock.Anything).
		Return([]providers.FeedMatch{feedMatch("m-100", india, aus, models.MatchCompleted)}, nil)
	env.provider.On("GetFinalStats", mock.Anything, "m-100").
		Return(finalStats(map[string]int{"p-11": 1, "p-12": 1, "p-21": 0, "p-22": 0}), nil)

	sync := NewMatchSyncService(env.store, feed, zap.NewNop())
	sweeper := NewSweeper(env.settlement, sync, env.store, env.cfg.SettlementSweepInterval, zap.NewNop())

	settled, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	require.NoError(t, env.store.WithTx(ctx, func(tx store.Tx) error {
		s, err := tx.GetSession(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionCompleted, s.Status)
		return nil
	}))
}
