package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricketduel/backend/internal/events"
	"github.com/cricketduel/backend/internal/models"
)

func TestSessionService_PerformToss(t *testing.T) {
	ctx := context.Background()

	t.Run("waits for an opponent", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.register(t, "alice")
		sess, err := env.sessions.CreateSession(ctx, a, CreateSessionInput{
			MatchID: upcomingMatch, PlayersPerSide: 2, FixedBetAmount: decimalOf("100"),
		})
		require.NoError(t, err)

		_, err = env.sessions.PerformToss(ctx, a, sess.ID)
		assert.ErrorIs(t, err, ErrAwaitingOpponent)
	})

	t.Run("result is fixed once decided", func(t *testing.T) {
		env := newTestEnv(t)
		a, b := env.register(t, "alice"), env.register(t, "bob")
		sess := env.pickingSession(t, a, b, 2, "100")

		require.True(t, sess.TossCompleted)
		assert.Equal(t, models.SessionPicking, sess.Status)
		assert.Equal(t, models.SideA, *sess.TossWinner)
		assert.Equal(t, models.SideA, *sess.CurrentTurn)

		env.sessions.toss = func() models.Side { return models.SideB }
		again, err := env.sessions.PerformToss(ctx, b, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SideA, *again.TossWinner)

		tosses := 0
		for _, typ := range env.events.types() {
			if typ == events.TossCompleted {
				tosses++
			}
		}
		assert.Equal(t, 1, tosses)
	})

	t.Run("outsider is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		a, b, c := env.register(t, "alice"), env.register(t, "bob"), env.register(t, "carol")
		sess := env.pickingSession(t, a, b, 1, "100")

		_, err := env.sessions.PerformToss(ctx, c, sess.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestSessionService_Pick(t *testing.T) {
	ctx := context.Background()

	t.Run("alternating picks close the picking phase", func(t *testing.T) {
		env := newTestEnv(t)
		a, b := env.register(t, "alice"), env.register(t, "bob")
		sess := env.pickingSession(t, a, b, 2, "100")

		turns := []models.Side{models.SideB, models.SideA, models.SideB}
		for i, p := range []struct {
			user   int64
			player int64
		}{{a, 11}, {b, 21}, {a, 12}, {b, 22}} {
			res, err := env.sessions.Pick(ctx, p.user, sess.ID, p.player)
			require.NoError(t, err)
			if i < len(turns) {
				require.NotNil(t, res.Session.CurrentTurn)
				assert.Equal(t, turns[i], *res.Session.CurrentTurn)
				assert.Equal(t, models.SessionPicking, res.Session.Status)
			} else {
				assert.Nil(t, res.Session.CurrentTurn)
				assert.True(t, res.Session.PicksCompleted)
				assert.Equal(t, models.SessionBetting, res.Session.Status)
			}
		}

		_, err := env.sessions.Pick(ctx, a, sess.ID, 13)
		assert.ErrorIs(t, err, ErrPickingNotActive)
	})

	t.Run("out of turn", func(t *testing.T) {
		env := newTestEnv(t)
		a, b := env.register(t, "alice"), env.register(t, "bob")
		sess := env.pickingSession(t, a, b, 2, "100")

		_, err := env.sessions.Pick(ctx, b, sess.ID, 21)
		assert.ErrorIs(t, err, ErrNotYourTurn)
	})

	t.Run("player can be owned by only one side", func(t *testing.T) {
		env := newTestEnv(t)
		a, b := env.register(t, "alice"), env.register(t, "bob")
		sess := env.pickingSession(t, a, b, 2, "100")

		_, err := env.sessions.Pick(ctx, a, sess.ID, 11)
		require.NoError(t, err)
		_, err = env.sessions.Pick(ctx, b, sess.ID, 11)
		assert.ErrorIs(t, err, ErrPlayerTaken)
	})

	t.Run("player outside the match", func(t *testing.T) {
		env := newTestEnv(t)
		a, b := env.register(t, "alice"), env.register(t, "bob")
		sess := env.pickingSession(t, a, b, 2, "100")

		_, err := env.sessions.Pick(ctx, a, sess.ID, 31)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown player", func(t *testing.T) {
		env := newTestEnv(t)
		a, b := env.register(t, "alice"), env.register(t, "bob")
		sess := env.pickingSession(t, a, b, 2, "100")

		_, err := env.sessions.Pick(ctx, a, sess.ID, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent picks of the same player", func(t *testing.T) {
		env := newTestEnv(t)
		a, b := env.register(t, "alice"), env.register(t, "bob")
		sess := env.pickingSession(t, a, b, 2, "100")

		const attempts = 8
		errs := make([]error, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.sessions.Pick(ctx, a, sess.ID, 11)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, ErrPlayerTaken), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)

		snap, err := env.sessions.Snapshot(ctx, a, sess.ID, nil)
		require.NoError(t, err)
		assert.Len(t, snap.Picks[models.SideA], 1)
		assert.Equal(t, models.SideB, *snap.Session.CurrentTurn)
	})
}

func TestSessionService_CanPick(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, b := env.register(t, "alice"), env.register(t, "bob")
	sess := env.pickingSession(t, a, b, 2, "100")

	verdict, err := env.sessions.CanPick(ctx, a, sess.ID, 11)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Empty(t, verdict.Reason)

	verdict, err = env.sessions.CanPick(ctx, b, sess.ID, 11)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, ErrNotYourTurn.Msg, verdict.Reason)

	_, err = env.sessions.Pick(ctx, a, sess.ID, 11)
	require.NoError(t, err)

	verdict, err = env.sessions.CanPick(ctx, b, sess.ID, 11)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, ErrPlayerTaken.Msg, verdict.Reason)
}
