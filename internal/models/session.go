package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies one of the two participants of a betting session.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionPicking   SessionStatus = "picking"
	SessionBetting   SessionStatus = "betting"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// ActiveSessionStatuses are the statuses that block a user from opening a
// second session on the same match.
var ActiveSessionStatuses = []SessionStatus{SessionPending, SessionPicking, SessionBetting}

type BettingSession struct {
	ID               int64           `json:"id" db:"id"`
	MatchID          int64           `json:"match_id" db:"match_id"`
	SideAUserID      int64           `json:"side_a_user_id" db:"side_a_user_id"`
	OpponentID       *int64          `json:"opponent_id,omitempty" db:"opponent_id"`
	PlayersPerSide   int             `json:"players_per_side" db:"players_per_side"`
	FixedBetAmount   decimal.Decimal `json:"fixed_bet_amount" db:"fixed_bet_amount"`
	CurrentTurn      *Side           `json:"current_turn,omitempty" db:"current_turn"`
	TossWinner       *Side           `json:"toss_winner,omitempty" db:"toss_winner"`
	TossCompleted    bool            `json:"toss_completed" db:"toss_completed"`
	Status           SessionStatus   `json:"status" db:"status"`
	PicksCompleted   bool            `json:"picks_completed" db:"picks_completed"`
	BetsCompleted    bool            `json:"bets_completed" db:"bets_completed"`
	SideAStakePlaced bool            `json:"side_a_stake_placed" db:"side_a_stake_placed"`
	SideBStakePlaced bool            `json:"side_b_stake_placed" db:"side_b_stake_placed"`
	SideATotalRuns   int             `json:"side_a_total_runs" db:"side_a_total_runs"`
	SideBTotalRuns   int             `json:"side_b_total_runs" db:"side_b_total_runs"`
	SideAWinnings    decimal.Decimal `json:"side_a_winnings" db:"side_a_winnings"`
	SideBWinnings    decimal.Decimal `json:"side_b_winnings" db:"side_b_winnings"`
	Winner           *Side           `json:"winner,omitempty" db:"winner"`
	SettledAt        *time.Time      `json:"settled_at,omitempty" db:"settled_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// SideOf returns the side the user plays on, if any.
func (s *BettingSession) SideOf(userID int64) (Side, bool) {
	if s.SideAUserID == userID {
		return SideA, true
	}
	if s.OpponentID != nil && *s.OpponentID == userID {
		return SideB, true
	}
	return "", false
}

// UserFor returns the user on the given side. Side B has no user until an
// opponent joins.
func (s *BettingSession) UserFor(side Side) (int64, bool) {
	if side == SideA {
		return s.SideAUserID, true
	}
	if s.OpponentID == nil {
		return 0, false
	}
	return *s.OpponentID, true
}

func (s *BettingSession) HasOpponent() bool {
	return s.OpponentID != nil
}

func (s *BettingSession) StakePlaced(side Side) bool {
	if side == SideA {
		return s.SideAStakePlaced
	}
	return s.SideBStakePlaced
}

func (s *BettingSession) MarkStakePlaced(side Side) {
	if side == SideA {
		s.SideAStakePlaced = true
	} else {
		s.SideBStakePlaced = true
	}
	s.BetsCompleted = s.SideAStakePlaced && s.SideBStakePlaced
}

// TotalPicks is the number of picks after which picking is complete.
func (s *BettingSession) TotalPicks() int {
	return 2 * s.PlayersPerSide
}

// PickedPlayer records that a side claimed a player within a session.
type PickedPlayer struct {
	ID        int64     `json:"id" db:"id"`
	SessionID int64     `json:"session_id" db:"session_id"`
	Side      Side      `json:"side" db:"side"`
	UserID    int64     `json:"user_id" db:"user_id"`
	PlayerID  int64     `json:"player_id" db:"player_id"`
	PickedAt  time.Time `json:"picked_at" db:"picked_at"`
}

type Bet struct {
	ID                  int64            `json:"id" db:"id"`
	SessionID           int64            `json:"session_id" db:"session_id"`
	PickedPlayerID      int64            `json:"picked_player_id" db:"picked_player_id"`
	Side                Side             `json:"side" db:"side"`
	UserID              int64            `json:"user_id" db:"user_id"`
	AmountPerRun        decimal.Decimal  `json:"amount_per_run" db:"amount_per_run"`
	InsurancePercentage decimal.Decimal  `json:"insurance_percentage" db:"insurance_percentage"`
	InsurancePremium    decimal.Decimal  `json:"insurance_premium" db:"insurance_premium"`
	InsuredAmount       decimal.Decimal  `json:"insured_amount" db:"insured_amount"`
	InsuranceClaimed    bool             `json:"insurance_claimed" db:"insurance_claimed"`
	InsuranceRefunded   decimal.Decimal  `json:"insurance_refunded" db:"insurance_refunded"`
	RunsScored          *int             `json:"runs_scored,omitempty" db:"runs_scored"`
	TotalPayout         *decimal.Decimal `json:"total_payout,omitempty" db:"total_payout"`
	IsSettled           bool             `json:"is_settled" db:"is_settled"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
}

func (b *Bet) Insured() bool {
	return b.InsurancePercentage.IsPositive()
}

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
	InviteExpired  InviteStatus = "expired"
)

type SessionInvite struct {
	ID              int64        `json:"id" db:"id"`
	SessionID       int64        `json:"session_id" db:"session_id"`
	InviterID       int64        `json:"inviter_id" db:"inviter_id"`
	InviteeID       *int64       `json:"invitee_id,omitempty" db:"invitee_id"`
	InviteeUsername string       `json:"invitee_username,omitempty" db:"invitee_username"`
	InviteeEmail    string       `json:"invitee_email,omitempty" db:"invitee_email"`
	Code            string       `json:"code" db:"code"`
	Status          InviteStatus `json:"status" db:"status"`
	Message         string       `json:"message,omitempty" db:"message"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	ExpiresAt       time.Time    `json:"expires_at" db:"expires_at"`
	AcceptedAt      *time.Time   `json:"accepted_at,omitempty" db:"accepted_at"`
}

func (i *SessionInvite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// AddressedTo reports whether u may accept the invite. An invite without a
// named invitee or email is open to anyone.
func (i *SessionInvite) AddressedTo(u *User) bool {
	switch {
	case i.InviteeID != nil:
		return *i.InviteeID == u.ID
	case i.InviteeEmail != "":
		return strings.EqualFold(i.InviteeEmail, u.Email)
	}
	return true
}
