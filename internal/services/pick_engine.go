package services

import (
	"context"
	"errors"

	"github.com/cricketduel/backend/internal/events"
	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

// PerformToss decides who picks first. Once decided the result is returned
// unchanged on every later call.
func (s *SessionService) PerformToss(ctx context.Context, userID, sessionID int64) (*models.BettingSession, error) {
	var (
		sess   *models.BettingSession
		tossed bool
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		sess, err = lockSession(tx, sessionID)
		if err != nil {
			return err
		}
		if _, ok := sess.SideOf(userID); !ok {
			return ErrNotParticipant
		}
		if sess.TossCompleted {
			return nil
		}
		if !sess.HasOpponent() {
			return ErrAwaitingOpponent
		}
		if sess.Status != models.SessionPending {
			return ErrSessionNotPending
		}

		winner := s.toss()
		first := winner
		sess.TossWinner = &winner
		sess.CurrentTurn = &first
		sess.TossCompleted = true
		sess.Status = models.SessionPicking
		sess.UpdatedAt = s.now()
		tossed = true
		return tx.UpdateSession(sess)
	})
	if err != nil {
		return nil, err
	}

	if tossed {
		s.publish(ctx, events.TossCompleted, sess.ID, userID, map[string]any{"winner": *sess.TossWinner})
	}
	return sess, nil
}

type PickVerdict struct {
	Allowed bool   `json:"can_pick"`
	Reason  string `json:"reason,omitempty"`
}

// CanPick reports whether the user could pick the player right now, and why
// not when they cannot.
func (s *SessionService) CanPick(ctx context.Context, userID, sessionID, playerID int64) (*PickVerdict, error) {
	var verdict *PickVerdict
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		sess, err := getSession(tx, sessionID)
		if err != nil {
			return err
		}
		side, ok := sess.SideOf(userID)
		if !ok {
			return ErrNotParticipant
		}
		state, err := loadPickState(tx, sess, playerID)
		if err != nil {
			return err
		}

		verdict = &PickVerdict{Allowed: true}
		var rule *Error
		if err := state.check(side); errors.As(err, &rule) {
			verdict = &PickVerdict{Allowed: false, Reason: rule.Msg}
		} else if err != nil {
			return err
		}
		return nil
	})
	return verdict, err
}

type PickResult struct {
	Pick    *models.PickedPlayer   `json:"pick"`
	Session *models.BettingSession `json:"session"`
}

// Pick claims a player for the caller's side and hands the turn over, or
// closes picking once both sides are full.
func (s *SessionService) Pick(ctx context.Context, userID, sessionID, playerID int64) (*PickResult, error) {
	res := &PickResult{}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		sess, err := lockSession(tx, sessionID)
		if err != nil {
			return err
		}
		side, ok := sess.SideOf(userID)
		if !ok {
			return ErrNotParticipant
		}
		state, err := loadPickState(tx, sess, playerID)
		if err != nil {
			return err
		}

		// A repeated request for a player that just went through must read
		// as "taken", not as a turn violation.
		if state.taken() {
			return ErrPlayerTaken
		}
		if err := state.check(side); err != nil {
			return err
		}

		pick := &models.PickedPlayer{
			SessionID: sess.ID,
			Side:      side,
			UserID:    userID,
			PlayerID:  playerID,
			PickedAt:  s.now(),
		}
		if err := tx.InsertPick(pick); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrPlayerTaken
			}
			return err
		}

		if len(state.picks)+1 >= sess.TotalPicks() {
			sess.PicksCompleted = true
			sess.Status = models.SessionBetting
			sess.CurrentTurn = nil
		} else {
			next := side.Other()
			sess.CurrentTurn = &next
		}
		sess.UpdatedAt = pick.PickedAt
		if err := tx.UpdateSession(sess); err != nil {
			return err
		}

		res.Pick = pick
		res.Session = sess
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			s.metrics.Pick("rejected")
		}
		return nil, err
	}

	s.metrics.Pick("accepted")
	s.publish(ctx, events.PlayerPicked, sessionID, userID, map[string]any{
		"player_id":       playerID,
		"side":            res.Pick.Side,
		"picks_completed": res.Session.PicksCompleted,
	})
	return res, nil
}

// pickState is everything the pick rules look at, read under one unit of work.
type pickState struct {
	session *models.BettingSession
	match   *models.Match
	player  *models.Player
	team    *models.Team
	picks   []models.PickedPlayer
	teamOf  map[int64]int64
}

func loadPickState(tx store.Tx, sess *models.BettingSession, playerID int64) (*pickState, error) {
	player, err := tx.GetPlayer(playerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Player")
	}
	if err != nil {
		return nil, err
	}
	team, err := tx.GetTeam(player.TeamID)
	if err != nil {
		return nil, err
	}
	match, err := tx.GetMatch(sess.MatchID)
	if err != nil {
		return nil, err
	}
	picks, err := tx.ListPicks(sess.ID)
	if err != nil {
		return nil, err
	}

	teamOf := make(map[int64]int64, len(picks))
	for _, p := range picks {
		picked, err := tx.GetPlayer(p.PlayerID)
		if err != nil {
			return nil, err
		}
		teamOf[picked.ID] = picked.TeamID
	}

	return &pickState{
		session: sess,
		match:   match,
		player:  player,
		team:    team,
		picks:   picks,
		teamOf:  teamOf,
	}, nil
}

func (st *pickState) taken() bool {
	for _, p := range st.picks {
		if p.PlayerID == st.player.ID {
			return true
		}
	}
	return false
}

// check applies the pick rules in order: phase, turn, availability, then the
// per-team quota of the picking side.
func (st *pickState) check(side models.Side) error {
	sess := st.session
	if sess.Status != models.SessionPicking {
		return ErrPickingNotActive
	}
	if sess.CurrentTurn == nil || *sess.CurrentTurn != side {
		return ErrNotYourTurn
	}
	if st.taken() {
		return ErrPlayerTaken
	}

	fromTeam := 0
	for _, p := range st.picks {
		if p.Side == side && st.teamOf[p.PlayerID] == st.player.TeamID {
			fromTeam++
		}
	}
	if fromTeam >= sess.PlayersPerSide {
		return newError(ErrStateConflict, "You have already picked %d players from %s", fromTeam, st.team.Name)
	}

	if !st.match.HasTeam(st.player.TeamID) {
		return newError(ErrValidation, "%s does not play in this match", st.player.Name)
	}
	return nil
}
