package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricketduel/backend/internal/events"
	"github.com/cricketduel/backend/internal/models"
)

func (e *testEnv) openSession(t *testing.T, creator int64) *models.BettingSession {
	t.Helper()
	sess, err := e.sessions.CreateSession(context.Background(), creator, CreateSessionInput{
		MatchID: upcomingMatch, PlayersPerSide: 1, FixedBetAmount: decimalOf("25"),
	})
	require.NoError(t, err)
	return sess
}

func TestInviteService_SendAndAccept(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, b, c := env.register(t, "alice"), env.register(t, "bob"), env.register(t, "carol")
	sess := env.openSession(t, a)

	invite, err := env.invites.SendInvite(ctx, a, sess.ID, SendInviteInput{InviteeUsername: "bob", Message: "Fancy a duel?"})
	require.NoError(t, err)
	assert.Len(t, invite.Code, env.cfg.InviteCodeLength)
	assert.Equal(t, models.InvitePending, invite.Status)
	assert.Equal(t, b, *invite.InviteeID)
	assert.Equal(t, "bob@example.com", invite.InviteeEmail)

	_, err = env.invites.AcceptInvite(ctx, c, invite.Code)
	assert.ErrorIs(t, err, ErrForbidden)

	joined, err := env.invites.AcceptInvite(ctx, b, invite.Code)
	require.NoError(t, err)
	assert.Equal(t, b, *joined.OpponentID)
	assert.Contains(t, env.events.types(), events.SessionJoined)

	_, err = env.invites.AcceptInvite(ctx, b, invite.Code)
	assert.ErrorIs(t, err, ErrInviteUnavailable)

	listed, err := env.invites.ListInvites(ctx, b)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, models.InviteAccepted, listed[0].Status)
	assert.NotNil(t, listed[0].AcceptedAt)
}

func TestInviteService_SendInvite(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, b := env.register(t, "alice"), env.register(t, "bob")
	sess := env.openSession(t, a)

	tests := []struct {
		name    string
		inviter int64
		input   SendInviteInput
		want    error
	}{
		{"nobody named", a, SendInviteInput{}, ErrValidation},
		{"unknown username", a, SendInviteInput{InviteeUsername: "ghost"}, ErrNotFound},
		{"self invite", a, SendInviteInput{InviteeUsername: "alice"}, ErrValidation},
		{"not the creator", b, SendInviteInput{InviteeUsername: "alice"}, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.invites.SendInvite(ctx, tt.inviter, sess.ID, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("email of someone not registered yet", func(t *testing.T) {
		invite, err := env.invites.SendInvite(ctx, a, sess.ID, SendInviteInput{InviteeEmail: "New.Player@Example.com"})
		require.NoError(t, err)
		assert.Nil(t, invite.InviteeID)
		assert.Equal(t, "new.player@example.com", invite.InviteeEmail)

		newcomer, err := env.auth.Register(ctx, RegisterRequest{Username: "newplayer", Email: "new.player@example.com", Password: "password123"})
		require.NoError(t, err)

		_, err = env.invites.AcceptInvite(ctx, b, invite.Code)
		assert.ErrorIs(t, err, ErrForbidden)

		joined, err := env.invites.AcceptInvite(ctx, newcomer.User.ID, invite.Code)
		require.NoError(t, err)
		assert.Equal(t, newcomer.User.ID, *joined.OpponentID)
	})

	t.Run("session already has an opponent", func(t *testing.T) {
		_, err := env.invites.SendInvite(ctx, a, sess.ID, SendInviteInput{InviteeUsername: "bob"})
		assert.ErrorIs(t, err, ErrSessionNotPending)
	})
}

func TestInviteService_Expiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, b := env.register(t, "alice"), env.register(t, "bob")
	sess := env.openSession(t, a)

	invite, err := env.invites.SendInvite(ctx, a, sess.ID, SendInviteInput{InviteeUsername: "bob"})
	require.NoError(t, err)

	later := time.Now().UTC().Add(env.cfg.InviteTTL + time.Hour)
	env.invites.now = func() time.Time { return later }

	listed, err := env.invites.ListInvites(ctx, a)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, models.InviteExpired, listed[0].Status)

	_, err = env.invites.AcceptInvite(ctx, b, invite.Code)
	assert.ErrorIs(t, err, ErrInviteExpired)

	// The expiry was persisted, so the invite is no longer acceptable at all.
	_, err = env.invites.AcceptInvite(ctx, b, invite.Code)
	assert.ErrorIs(t, err, ErrInviteUnavailable)

	snap, err := env.sessions.Snapshot(ctx, a, sess.ID, nil)
	require.NoError(t, err)
	assert.False(t, snap.Session.HasOpponent())
}

func TestInviteService_DeclineInvite(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a, b, c := env.register(t, "alice"), env.register(t, "bob"), env.register(t, "carol")
	sess := env.openSession(t, a)

	invite, err := env.invites.SendInvite(ctx, a, sess.ID, SendInviteInput{InviteeUsername: "bob"})
	require.NoError(t, err)

	_, err = env.invites.DeclineInvite(ctx, c, invite.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	declined, err := env.invites.DeclineInvite(ctx, b, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteDeclined, declined.Status)

	_, err = env.invites.AcceptInvite(ctx, b, invite.Code)
	assert.ErrorIs(t, err, ErrInviteUnavailable)

	_, err = env.invites.DeclineInvite(ctx, b, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInviteService_InviteQR(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.register(t, "alice")
	env.register(t, "bob")
	sess := env.openSession(t, a)

	invite, err := env.invites.SendInvite(ctx, a, sess.ID, SendInviteInput{InviteeUsername: "bob"})
	require.NoError(t, err)

	qr, err := env.invites.InviteQR(ctx, invite.Code)
	require.NoError(t, err)
	assert.Equal(t, env.cfg.InviteBaseURL+invite.Code, qr.Link)

	raw, err := base64.StdEncoding.DecodeString(qr.Image)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, inviteQRSize, img.Bounds().Dx())

	_, err = env.invites.InviteQR(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
