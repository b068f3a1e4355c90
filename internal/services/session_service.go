package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/config"
	"github.com/cricketduel/backend/internal/events"
	"github.com/cricketduel/backend/internal/metrics"
	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

// SessionService drives a betting session from creation to the betting phase.
// Settlement lives in SettlementService.
type SessionService struct {
	store   store.Store
	ledger  *LedgerService
	cfg     *config.BettingConfig
	events  events.Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
	toss    func() models.Side
}

func NewSessionService(st store.Store, ledger *LedgerService, cfg *config.BettingConfig, pub events.Publisher, m *metrics.Metrics, log *zap.Logger) *SessionService {
	return &SessionService{
		store:   st,
		ledger:  ledger,
		cfg:     cfg,
		events:  pub,
		metrics: m,
		log:     log.Named("sessions"),
		now:     func() time.Time { return time.Now().UTC() },
		toss:    coinToss,
	}
}

func coinToss() models.Side {
	if rand.IntN(2) == 0 {
		return models.SideA
	}
	return models.SideB
}

type CreateSessionInput struct {
	MatchID        int64           `json:"match_id" validate:"required,gt=0" example:"1"`
	PlayersPerSide int             `json:"players_per_side" validate:"required,min=1,max=11" example:"2"`
	FixedBetAmount decimal.Decimal `json:"fixed_bet_amount" validate:"required,gt=0" swaggertype:"string" example:"100.00"`
}

func (s *SessionService) CreateSession(ctx context.Context, userID int64, in CreateSessionInput) (*models.BettingSession, error) {
	if in.PlayersPerSide < s.cfg.MinPlayersPerSide || in.PlayersPerSide > s.cfg.MaxPlayersPerSide {
		return nil, newError(ErrValidation, "Players per side must be between %d and %d",
			s.cfg.MinPlayersPerSide, s.cfg.MaxPlayersPerSide)
	}
	if !in.FixedBetAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var sess *models.BettingSession
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		match, err := tx.GetMatch(in.MatchID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Match")
		}
		if err != nil {
			return err
		}
		if !match.Bettable() {
			return ErrMatchNotBettable
		}

		_, err = tx.FindActiveSession(userID, match.ID)
		if err == nil {
			return ErrActiveSession
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := s.now()
		sess = &models.BettingSession{
			MatchID:        match.ID,
			SideAUserID:    userID,
			PlayersPerSide: in.PlayersPerSide,
			FixedBetAmount: in.FixedBetAmount.Round(2),
			Status:         models.SessionPending,
			SideAWinnings:  decimal.Zero,
			SideBWinnings:  decimal.Zero,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateSession(sess); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrActiveSession
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SessionCreated()
	s.publish(ctx, events.SessionCreated, sess.ID, userID, sess)
	return sess, nil
}

func (s *SessionService) JoinSession(ctx context.Context, userID, sessionID int64) (*models.BettingSession, error) {
	var sess *models.BettingSession
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		sess, err = s.joinTx(tx, userID, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.SessionJoined, sess.ID, userID, nil)
	return sess, nil
}

func (s *SessionService) joinTx(tx store.Tx, userID, sessionID int64) (*models.BettingSession, error) {
	sess, err := lockSession(tx, sessionID)
	if err != nil {
		return nil, err
	}

	switch {
	case sess.Status != models.SessionPending:
		return nil, ErrSessionNotPending
	case sess.SideAUserID == userID:
		return nil, ErrOwnSession
	case sess.HasOpponent():
		return nil, ErrSessionFull
	}

	opponent := userID
	sess.OpponentID = &opponent
	sess.UpdatedAt = s.now()
	if err := tx.UpdateSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

type StakeInput struct {
	InsurancePercentage decimal.Decimal `json:"insurance_percentage" validate:"gte=0,lte=20" swaggertype:"string" example:"10"`
}

type StakeResult struct {
	Session      *models.BettingSession `json:"session"`
	Bets         []models.Bet           `json:"bets"`
	Transactions []*models.Transaction  `json:"transactions"`
}

// PlaceStake withdraws the session's fixed stake from the caller and spreads it
// evenly over the caller's picks, one Bet per pick. The last pick carries any
// rounding remainder.
func (s *SessionService) PlaceStake(ctx context.Context, userID, sessionID int64, in StakeInput) (*StakeResult, error) {
	pct := in.InsurancePercentage
	if pct.IsNegative() || pct.GreaterThan(s.cfg.MaxInsurancePercentage) {
		return nil, newError(ErrValidation, "Insurance percentage must be between 0 and %s",
			s.cfg.MaxInsurancePercentage.String())
	}

	res := &StakeResult{}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		sess, err := lockSession(tx, sessionID)
		if err != nil {
			return err
		}
		side, ok := sess.SideOf(userID)
		if !ok {
			return ErrNotParticipant
		}
		if sess.Status != models.SessionBetting {
			return ErrBettingNotActive
		}
		if sess.StakePlaced(side) {
			return ErrStakeAlreadyPlaced
		}

		picks, err := tx.ListPicks(sess.ID)
		if err != nil {
			return err
		}
		var mine []models.PickedPlayer
		for _, p := range picks {
			if p.Side == side {
				mine = append(mine, p)
			}
		}
		if len(mine) == 0 {
			return newError(ErrStateConflict, "You have no picks to bet on")
		}

		amounts := splitStake(sess.FixedBetAmount, len(mine))
		totalPremium := decimal.Zero
		for _, amount := range amounts {
			_, premium := s.insuranceTerms(amount, pct)
			totalPremium = totalPremium.Add(premium)
		}

		wallet, err := s.ledger.LockWalletTx(tx, UserWallet(userID))
		if err != nil {
			return err
		}
		stake, err := s.ledger.WithdrawTx(tx, wallet, Entry{
			Kind:        models.TxBetPlaced,
			Amount:      sess.FixedBetAmount,
			Description: fmt.Sprintf("Stake for session #%d", sess.ID),
		})
		if err != nil {
			return err
		}
		res.Transactions = append(res.Transactions, stake)

		if totalPremium.IsPositive() {
			entry, err := s.ledger.WithdrawTx(tx, wallet, Entry{
				Kind:        models.TxInsurancePremium,
				Amount:      totalPremium,
				Description: fmt.Sprintf("Insurance premium for session #%d (%s%%)", sess.ID, pct.String()),
			})
			if err != nil {
				return err
			}
			res.Transactions = append(res.Transactions, entry)
		}

		now := s.now()
		for i, p := range mine {
			insured, premium := s.insuranceTerms(amounts[i], pct)
			bet := models.Bet{
				SessionID:           sess.ID,
				PickedPlayerID:      p.ID,
				Side:                side,
				UserID:              userID,
				AmountPerRun:        amounts[i],
				InsurancePercentage: pct,
				InsurancePremium:    premium,
				InsuredAmount:       insured,
				InsuranceRefunded:   decimal.Zero,
				CreatedAt:           now,
			}
			if err := tx.InsertBet(&bet); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return ErrStakeAlreadyPlaced
				}
				return err
			}
			res.Bets = append(res.Bets, bet)
		}

		sess.MarkStakePlaced(side)
		sess.UpdatedAt = now
		if err := tx.UpdateSession(sess); err != nil {
			return err
		}
		res.Session = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Committed(res.Transactions...)
	s.metrics.StakePlaced()
	s.publish(ctx, events.StakePlaced, sessionID, userID, map[string]any{
		"bets":           len(res.Bets),
		"bets_completed": res.Session.BetsCompleted,
	})
	return res, nil
}

// splitStake divides total into n cent amounts. Every share is truncated to
// cents and the last one absorbs the remainder, so the shares sum to total.
func splitStake(total decimal.Decimal, n int) []decimal.Decimal {
	share := total.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	amounts := make([]decimal.Decimal, n)
	for i := range amounts {
		amounts[i] = share
	}
	amounts[n-1] = total.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
	return amounts
}

// insuranceTerms prices cover on a notional innings: the insured amount is pct
// of amountPerRun over InsuranceEstimatedRuns runs, the premium a fixed share
// of that.
func (s *SessionService) insuranceTerms(amountPerRun, pct decimal.Decimal) (insured, premium decimal.Decimal) {
	if !pct.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	notional := amountPerRun.Mul(decimal.NewFromInt(int64(s.cfg.InsuranceEstimatedRuns)))
	insured = notional.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
	premium = insured.Mul(s.cfg.InsurancePremiumRate).Round(2)
	return insured, premium
}

// CancelSession closes a session before both stakes are in, while its match is
// still upcoming. A stake already withdrawn is returned with its premiums.
func (s *SessionService) CancelSession(ctx context.Context, userID, sessionID int64) (*models.BettingSession, error) {
	var (
		sess    *models.BettingSession
		entries []*models.Transaction
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
		if sess.Status.Terminal() {
			return ErrSessionClosed
		}
		if sess.BetsCompleted {
			return ErrCancelNotAllowed
		}
		match, err := tx.GetMatch(sess.MatchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchUpcoming {
			return ErrCancelNotAllowed
		}

		bets, err := tx.ListBets(sess.ID)
		if err != nil {
			return err
		}

		for _, side := range []models.Side{models.SideA, models.SideB} {
			if !sess.StakePlaced(side) {
				continue
			}
			owner, _ := sess.UserFor(side)
			amount := sess.FixedBetAmount
			for _, b := range bets {
				if b.Side == side {
					amount = amount.Add(b.InsurancePremium)
				}
			}

			w, err := s.ledger.LockWalletTx(tx, UserWallet(owner))
			if err != nil {
				return err
			}
			entry, err := s.ledger.DepositTx(tx, w, Entry{
				Kind:        models.TxRefund,
				Amount:      amount,
				Description: fmt.Sprintf("Refund for cancelled session #%d", sess.ID),
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		sess.Status = models.SessionCancelled
		sess.CurrentTurn = nil
		sess.UpdatedAt = s.now()
		return tx.UpdateSession(sess)
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Committed(entries...)
	s.publish(ctx, events.SessionCancelled, sess.ID, userID, nil)
	return sess, nil
}

type PickView struct {
	PickID     int64       `json:"pick_id"`
	PlayerID   int64       `json:"player_id"`
	PlayerName string      `json:"player_name"`
	TeamID     int64       `json:"team_id"`
	TeamName   string      `json:"team_name"`
	Side       models.Side `json:"side"`
	PickedAt   time.Time   `json:"picked_at"`
}

type RecentPick struct {
	PickView
	IsOpponent bool `json:"is_opponent"`
}

// SessionSnapshot is what a participant polls. When nothing changed since the
// client's last_update only SessionUpdated=false is filled in.
type SessionSnapshot struct {
	SessionUpdated   bool                          `json:"session_updated"`
	Session          *models.BettingSession        `json:"session,omitempty"`
	Match            *models.Match                 `json:"match,omitempty"`
	YourSide         models.Side                   `json:"your_side,omitempty"`
	IsYourTurn       bool                          `json:"is_your_turn"`
	CanPlaceStake    bool                          `json:"can_place_stake"`
	Picks            map[models.Side][]PickView    `json:"picks,omitempty"`
	TeamCounts       map[models.Side]map[int64]int `json:"team_counts,omitempty"`
	AvailablePlayers map[int64][]models.Player     `json:"available_players,omitempty"`
	RecentPicks      []RecentPick                  `json:"recent_picks,omitempty"`
	Teams            map[int64]*models.Team        `json:"teams,omitempty"`
}

func (s *SessionService) Snapshot(ctx context.Context, userID, sessionID int64, lastUpdate *time.Time) (*SessionSnapshot, error) {
	snap := &SessionSnapshot{}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		sess, err := getSession(tx, sessionID)
		if err != nil {
			return err
		}
		side, ok := sess.SideOf(userID)
		if !ok {
			return ErrNotParticipant
		}
		if lastUpdate != nil && !sess.UpdatedAt.After(*lastUpdate) {
			return nil
		}

		match, err := tx.GetMatch(sess.MatchID)
		if err != nil {
			return err
		}
		picks, err := tx.ListPicks(sess.ID)
		if err != nil {
			return err
		}

		snap.SessionUpdated = true
		snap.Session = sess
		snap.Match = match
		snap.YourSide = side
		snap.IsYourTurn = sess.Status == models.SessionPicking && sess.CurrentTurn != nil && *sess.CurrentTurn == side
		snap.CanPlaceStake = sess.Status == models.SessionBetting && !sess.StakePlaced(side)
		snap.Picks = map[models.Side][]PickView{models.SideA: {}, models.SideB: {}}
		snap.TeamCounts = map[models.Side]map[int64]int{
			models.SideA: {match.TeamAID: 0, match.TeamBID: 0},
			models.SideB: {match.TeamAID: 0, match.TeamBID: 0},
		}
		snap.AvailablePlayers = map[int64][]models.Player{}
		snap.Teams = map[int64]*models.Team{}

		for _, teamID := range []int64{match.TeamAID, match.TeamBID} {
			team, err := tx.GetTeam(teamID)
			if err != nil {
				return err
			}
			snap.Teams[teamID] = team
		}

		taken := make(map[int64]bool, len(picks))
		views := make([]PickView, 0, len(picks))
		for _, p := range picks {
			player, err := tx.GetPlayer(p.PlayerID)
			if err != nil {
				return err
			}
			view := PickView{
				PickID:     p.ID,
				PlayerID:   player.ID,
				PlayerName: player.Name,
				TeamID:     player.TeamID,
				Side:       p.Side,
				PickedAt:   p.PickedAt,
			}
			if team, ok := snap.Teams[player.TeamID]; ok {
				view.TeamName = team.Name
			}
			taken[player.ID] = true
			views = append(views, view)
			snap.Picks[p.Side] = append(snap.Picks[p.Side], view)
			snap.TeamCounts[p.Side][player.TeamID]++
		}

		for _, teamID := range []int64{match.TeamAID, match.TeamBID} {
			players, err := tx.ListPlayersByTeam(teamID)
			if err != nil {
				return err
			}
			available := []models.Player{}
			for _, pl := range players {
				if !taken[pl.ID] {
					available = append(available, pl)
				}
			}
			snap.AvailablePlayers[teamID] = available
		}

		snap.RecentPicks = s.recentPicks(views, side)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *SessionService) recentPicks(views []PickView, viewer models.Side) []RecentPick {
	cutoff := s.now().Add(-s.cfg.RecentPickWindow)

	recent := []RecentPick{}
	for _, v := range views {
		if v.PickedAt.After(cutoff) {
			recent = append(recent, RecentPick{PickView: v, IsOpponent: v.Side != viewer})
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].PickedAt.After(recent[j].PickedAt)
	})
	if len(recent) > s.cfg.RecentPickLimit {
		recent = recent[:s.cfg.RecentPickLimit]
	}
	return recent
}

// ListOpenSessions returns sessions on the match still waiting for an
// opponent, excluding the viewer's own.
func (s *SessionService) ListOpenSessions(ctx context.Context, viewerID, matchID int64) ([]models.BettingSession, error) {
	var out []models.BettingSession
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		sessions, err := tx.ListSessionsByMatch(matchID, models.SessionPending)
		if err != nil {
			return err
		}
		out = []models.BettingSession{}
		for _, sess := range sessions {
			if !sess.HasOpponent() && sess.SideAUserID != viewerID {
				out = append(out, sess)
			}
		}
		return nil
	})
	return out, err
}

func (s *SessionService) ListUserSessions(ctx context.Context, userID int64) ([]models.BettingSession, error) {
	var out []models.BettingSession
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListSessionsByUser(userID)
		return err
	})
	return out, err
}

// ListActiveSessions returns the user's sessions that are not yet terminal.
func (s *SessionService) ListActiveSessions(ctx context.Context, userID int64) ([]models.BettingSession, error) {
	all, err := s.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := []models.BettingSession{}
	for _, sess := range all {
		if !sess.Status.Terminal() {
			active = append(active, sess)
		}
	}
	return active, nil
}

// ListMatches returns matches that still accept new sessions.
func (s *SessionService) ListMatches(ctx context.Context) ([]models.Match, error) {
	var out []models.Match
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListMatches(models.MatchUpcoming, models.MatchLive)
		return err
	})
	return out, err
}

func (s *SessionService) publish(ctx context.Context, typ events.Type, sessionID, userID int64, payload any) {
	publish(ctx, s.events, s.log, events.Event{
		Type:       typ,
		SessionID:  sessionID,
		UserID:     userID,
		Payload:    payload,
		OccurredAt: s.now(),
	})
}

// publish never fails the operation: the state change is already committed.
func publish(ctx context.Context, pub events.Publisher, log *zap.Logger, e events.Event) {
	if err := pub.Publish(ctx, e); err != nil {
		log.Warn("failed to publish event",
			zap.String("type", string(e.Type)),
			zap.Int64("session_id", e.SessionID),
			zap.Error(err),
		)
	}
}

func lockSession(tx store.Tx, id int64) (*models.BettingSession, error) {
	sess, err := tx.LockSession(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Session")
	}
	return sess, err
}

func getSession(tx store.Tx, id int64) (*models.BettingSession, error) {
	sess, err := tx.GetSession(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Session")
	}
	return sess, err
}
