// Package store defines the persistence boundary of the betting core. Every
// mutating operation runs inside WithTx; implementations guarantee that the
// function either commits as a whole or leaves no trace.
package store

import (
	"context"
	"errors"

	"github.com/cricketduel/backend/internal/models"
)

var (
	ErrNotFound        = errors.New("store: record not found")
	ErrDuplicate       = errors.New("store: duplicate record")
	ErrVersionConflict = errors.New("store: version conflict")
)

type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx exposes every repository inside a single unit of work.
type Tx interface {
	UserRepository
	WalletRepository
	MatchRepository
	SessionRepository
	InviteRepository
	DepositRequestRepository
}

type UserRepository interface {
	CreateUser(u *models.User) error
	GetUser(id int64) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)

	CreateProfile(p *models.Profile) error
	GetProfile(userID int64) (*models.Profile, error)
	UpdateProfile(p *models.Profile) error
}

type WalletRepository interface {
	CreateWallet(w *models.Wallet) error
	GetWallet(ownerID int64, kind models.WalletKind) (*models.Wallet, error)
	// LockWallet reads the wallet and holds a row lock until the unit of work ends.
	LockWallet(ownerID int64, kind models.WalletKind) (*models.Wallet, error)
	// UpdateWallet persists balances when w.Version still matches the stored
	// version and bumps it. A mismatch yields ErrVersionConflict.
	UpdateWallet(w *models.Wallet) error

	InsertTransaction(t *models.Transaction) error
	ListTransactions(walletID int64, limit int) ([]models.Transaction, error)
	LatestTransaction(walletID int64) (*models.Transaction, error)
}

type MatchRepository interface {
	GetMatch(id int64) (*models.Match, error)
	GetMatchByAPIID(apiID string) (*models.Match, error)
	ListMatches(statuses ...models.MatchStatus) ([]models.Match, error)
	// UpsertMatch inserts or rewrites the match keyed by APIID and sets m.ID.
	UpsertMatch(m *models.Match) error
	UpdateMatchStatus(id int64, status models.MatchStatus) error
	GetTeam(id int64) (*models.Team, error)
	// UpsertTeam and UpsertPlayer are keyed by APIID and set the record ID.
	UpsertTeam(team *models.Team) error
	GetPlayer(id int64) (*models.Player, error)
	UpsertPlayer(p *models.Player) error
	ListPlayersByTeam(teamID int64) ([]models.Player, error)
	ListMatchStats(matchID int64) ([]models.PlayerMatchStats, error)
	UpsertPlayerStats(s *models.PlayerMatchStats) error
}

type SessionRepository interface {
	CreateSession(s *models.BettingSession) error
	GetSession(id int64) (*models.BettingSession, error)
	// LockSession reads the session and holds a row lock until the unit of work ends.
	LockSession(id int64) (*models.BettingSession, error)
	UpdateSession(s *models.BettingSession) error
	FindActiveSession(userID, matchID int64) (*models.BettingSession, error)
	ListSessionsByMatch(matchID int64, statuses ...models.SessionStatus) ([]models.BettingSession, error)
	ListSessionsByUser(userID int64) ([]models.BettingSession, error)

	// InsertPick yields ErrDuplicate when the player is already picked in the session.
	InsertPick(p *models.PickedPlayer) error
	ListPicks(sessionID int64) ([]models.PickedPlayer, error)

	// InsertBet yields ErrDuplicate when the pick already carries a bet.
	InsertBet(b *models.Bet) error
	UpdateBet(b *models.Bet) error
	ListBets(sessionID int64) ([]models.Bet, error)
}

type InviteRepository interface {
	CreateInvite(i *models.SessionInvite) error
	GetInvite(id int64) (*models.SessionInvite, error)
	GetInviteByCode(code string) (*models.SessionInvite, error)
	UpdateInvite(i *models.SessionInvite) error
	ListInvitesForUser(userID int64) ([]models.SessionInvite, error)
}

type DepositRequestRepository interface {
	CreateDepositRequest(r *models.DepositRequest) error
	LockDepositRequest(id int64) (*models.DepositRequest, error)
	UpdateDepositRequest(r *models.DepositRequest) error
	ListDepositRequests(filter DepositRequestFilter) ([]models.DepositRequest, error)
}

type DepositRequestFilter struct {
	EndUserID     int64
	DistributorID int64
	Status        models.DepositRequestStatus
}
