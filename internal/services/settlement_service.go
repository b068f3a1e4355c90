package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/config"
	"github.com/cricketduel/backend/internal/events"
	"github.com/cricketduel/backend/internal/metrics"
	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

// MatchScoreProvider yields the final batting line of every player in a
// completed match, keyed by the player's feed id.
type MatchScoreProvider interface {
	GetFinalStats(ctx context.Context, matchAPIID string) (map[string]models.PlayerStat, error)
}

type SettlementResult struct {
	SessionID      int64                 `json:"session_id"`
	AlreadySettled bool                  `json:"already_settled"`
	Winner         *models.Side          `json:"winner,omitempty"`
	SideATotalRuns int                   `json:"side_a_total_runs"`
	SideBTotalRuns int                   `json:"side_b_total_runs"`
	Margin         decimal.Decimal       `json:"margin"`
	Bets           []models.Bet          `json:"bets,omitempty"`
	Transactions   []*models.Transaction `json:"transactions,omitempty"`
}

// SettlementService turns final match statistics into payouts. A session is
// settled exactly once; later calls return the recorded outcome.
type SettlementService struct {
	store    store.Store
	ledger   *LedgerService
	provider MatchScoreProvider
	cfg      *config.BettingConfig
	events   events.Publisher
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewSettlementService(st store.Store, ledger *LedgerService, provider MatchScoreProvider, cfg *config.BettingConfig, pub events.Publisher, m *metrics.Metrics, log *zap.Logger) *SettlementService {
	return &SettlementService{
		store:    st,
		ledger:   ledger,
		provider: provider,
		cfg:      cfg,
		events:   pub,
		metrics:  m,
		log:      log.Named("settlement"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SettleSessionAs settles on behalf of a participant.
func (s *SettlementService) SettleSessionAs(ctx context.Context, userID, sessionID int64) (*SettlementResult, error) {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		sess, err := getSession(tx, sessionID)
		if err != nil {
			return err
		}
		if _, ok := sess.SideOf(userID); !ok {
			return ErrNotParticipant
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.SettleSession(ctx, sessionID)
}

func (s *SettlementService) SettleSession(ctx context.Context, sessionID int64) (*SettlementResult, error) {
	started := time.Now()

	var (
		sess  *models.BettingSession
		match *models.Match
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if sess, err = getSession(tx, sessionID); err != nil {
			return err
		}
		match, err = tx.GetMatch(sess.MatchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionCompleted {
		return recordedResult(sess), nil
	}
	if err := eligibleForSettlement(sess, match); err != nil {
		return nil, err
	}

	// The feed is called once per pass and outside the unit of work.
	feed := s.fetchStats(ctx, match)

	var (
		res       *SettlementResult
		fallbacks []string
	)
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		res, fallbacks = nil, nil

		sess, err := lockSession(tx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status == models.SessionCompleted {
			res = recordedResult(sess)
			return nil
		}
		if err := eligibleForSettlement(sess, match); err != nil {
			return err
		}

		opponent, _ := sess.UserFor(models.SideB)
		walletA, walletB, err := s.ledger.LockPairTx(tx, UserWallet(sess.SideAUserID), UserWallet(opponent))
		if err != nil {
			return err
		}
		wallets := map[models.Side]*models.Wallet{models.SideA: walletA, models.SideB: walletB}

		recorded, err := tx.ListMatchStats(match.ID)
		if err != nil {
			return err
		}
		internal := make(map[int64]models.PlayerMatchStats, len(recorded))
		for _, st := range recorded {
			internal[st.PlayerID] = st
		}

		picks, err := tx.ListPicks(sess.ID)
		if err != nil {
			return err
		}
		playerOf := make(map[int64]int64, len(picks))
		for _, p := range picks {
			playerOf[p.ID] = p.PlayerID
		}

		bets, err := tx.ListBets(sess.ID)
		if err != nil {
			return err
		}

		res = &SettlementResult{SessionID: sess.ID, Margin: decimal.Zero}
		now := s.now()
		totals := map[models.Side]int{}

		for i := range bets {
			b := &bets[i]
			if b.IsSettled {
				if b.RunsScored != nil {
					totals[b.Side] += *b.RunsScored
				}
				continue
			}

			player, err := tx.GetPlayer(playerOf[b.PickedPlayerID])
			if err != nil {
				return fmt.Errorf("bet %d: %w", b.ID, err)
			}
			stat, source := resolveStat(feed, internal, player)
			if source != "feed" {
				fallbacks = append(fallbacks, source)
			}

			runs := stat.Runs
			payout := b.AmountPerRun.Mul(decimal.NewFromInt(int64(runs)))
			b.RunsScored = &runs
			b.TotalPayout = &payout

			if b.Insured() && !b.InsuranceClaimed && runs < s.cfg.InsuranceClaimThreshold && b.InsuredAmount.IsPositive() {
				entry, err := s.ledger.DepositTx(tx, wallets[b.Side], Entry{
					Kind:        models.TxInsuranceRefund,
					Amount:      b.InsuredAmount,
					Description: fmt.Sprintf("Insurance refund for %s (%d runs)", player.Name, runs),
				})
				if err != nil {
					return err
				}
				b.InsuranceClaimed = true
				b.InsuranceRefunded = b.InsuredAmount
				res.Transactions = append(res.Transactions, entry)
			}

			b.IsSettled = true
			if err := tx.UpdateBet(b); err != nil {
				return err
			}
			if err := tx.UpsertPlayerStats(&models.PlayerMatchStats{
				PlayerID:   player.ID,
				MatchID:    match.ID,
				RunsScored: stat.Runs,
				BallsFaced: stat.BallsFaced,
				UpdatedAt:  now,
			}); err != nil {
				return err
			}
			totals[b.Side] += runs
		}

		sess.SideATotalRuns = totals[models.SideA]
		sess.SideBTotalRuns = totals[models.SideB]
		sess.SideAWinnings = decimal.Zero
		sess.SideBWinnings = decimal.Zero
		sess.Winner = nil

		if diff := sess.SideATotalRuns - sess.SideBTotalRuns; diff != 0 {
			winner := models.SideA
			if diff < 0 {
				winner = models.SideB
				diff = -diff
			}
			margin := decimal.NewFromInt(int64(diff)).Mul(sess.FixedBetAmount)
			entry, err := s.ledger.DepositTx(tx, wallets[winner], Entry{
				Kind:        models.TxBetWon,
				Amount:      margin,
				Description: fmt.Sprintf("Won session #%d by %d runs", sess.ID, diff),
			})
			if err != nil {
				return err
			}
			res.Transactions = append(res.Transactions, entry)
			res.Margin = margin
			sess.Winner = &winner
			if winner == models.SideA {
				sess.SideAWinnings = margin
			} else {
				sess.SideBWinnings = margin
			}
		}

		sess.Status = models.SessionCompleted
		sess.CurrentTurn = nil
		sess.SettledAt = &now
		sess.UpdatedAt = now
		if err := tx.UpdateSession(sess); err != nil {
			return err
		}

		res.Winner = sess.Winner
		res.SideATotalRuns = sess.SideATotalRuns
		res.SideBTotalRuns = sess.SideBTotalRuns
		res.Bets = bets
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.AlreadySettled {
		return res, nil
	}

	for _, source := range fallbacks {
		s.metrics.StatsFallback(source)
	}
	s.ledger.Committed(res.Transactions...)
	s.metrics.Settled(settlementOutcome(res), time.Since(started))
	publish(ctx, s.events, s.log, events.Event{
		Type:       events.SessionSettled,
		SessionID:  res.SessionID,
		Payload:    res,
		OccurredAt: s.now(),
	})
	s.log.Info("session settled",
		zap.Int64("session_id", res.SessionID),
		zap.Int("side_a_runs", res.SideATotalRuns),
		zap.Int("side_b_runs", res.SideBTotalRuns),
		zap.String("margin", res.Margin.StringFixed(2)),
	)
	return res, nil
}

// SettleMatch settles every session on the match whose stakes are in. A
// failing session is logged and skipped.
func (s *SettlementService) SettleMatch(ctx context.Context, matchID int64) (int, error) {
	var sessions []models.BettingSession
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		sessions, err = tx.ListSessionsByMatch(matchID, models.SessionBetting)
		return err
	})
	if err != nil {
		return 0, err
	}

	settled := 0
	var errs []error
	for _, sess := range sessions {
		if !sess.BetsCompleted {
			continue
		}
		if _, err := s.SettleSession(ctx, sess.ID); err != nil {
			s.log.Error("failed to settle session", zap.Int64("session_id", sess.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("session %d: %w", sess.ID, err))
			continue
		}
		settled++
	}
	return settled, errors.Join(errs...)
}

func (s *SettlementService) fetchStats(ctx context.Context, match *models.Match) map[string]models.PlayerStat {
	if s.provider == nil {
		return nil
	}
	stats, err := s.provider.GetFinalStats(ctx, match.APIID)
	if err != nil {
		s.log.Warn("score feed unavailable, falling back to recorded stats",
			zap.Int64("match_id", match.ID),
			zap.String("match_api_id", match.APIID),
			zap.Error(err),
		)
		return nil
	}
	return stats
}

// resolveStat prefers the feed, then stats recorded earlier, then zero runs.
func resolveStat(feed map[string]models.PlayerStat, internal map[int64]models.PlayerMatchStats, p *models.Player) (models.PlayerStat, string) {
	if st, ok := feed[p.APIID]; ok {
		return st, "feed"
	}
	if st, ok := internal[p.ID]; ok {
		return models.PlayerStat{Runs: st.RunsScored, BallsFaced: st.BallsFaced}, "recorded"
	}
	return models.PlayerStat{}, "default"
}

func eligibleForSettlement(sess *models.BettingSession, match *models.Match) error {
	switch {
	case sess.Status == models.SessionCancelled:
		return ErrSessionClosed
	case match.Status != models.MatchCompleted:
		return ErrMatchNotCompleted
	case !sess.BetsCompleted || sess.Status != models.SessionBetting:
		return ErrBetsIncomplete
	}
	return nil
}

func recordedResult(sess *models.BettingSession) *SettlementResult {
	margin := sess.SideAWinnings
	if sess.Winner != nil && *sess.Winner == models.SideB {
		margin = sess.SideBWinnings
	}
	return &SettlementResult{
		SessionID:      sess.ID,
		AlreadySettled: true,
		Winner:         sess.Winner,
		SideATotalRuns: sess.SideATotalRuns,
		SideBTotalRuns: sess.SideBTotalRuns,
		Margin:         margin,
	}
}

func settlementOutcome(res *SettlementResult) string {
	if res.Winner == nil {
		return "tie"
	}
	return "side_" + string(*res.Winner)
}
