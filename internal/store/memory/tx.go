package memory

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

type tx struct {
	st *state
}

var _ store.Tx = (*tx)(nil)

// users

func (t *tx) CreateUser(u *models.User) error {
	for _, existing := range t.st.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	u.ID = t.st.id()
	t.st.users[u.ID] = *u
	return nil
}

func (t *tx) GetUser(id int64) (*models.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (t *tx) GetUserByUsername(username string) (*models.User, error) {
	for _, u := range t.st.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) GetUserByEmail(email string) (*models.User, error) {
	for _, u := range t.st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) CreateProfile(p *models.Profile) error {
	if _, ok := t.st.profiles[p.UserID]; ok {
		return store.ErrDuplicate
	}
	if p.DistributorCode != "" {
		for _, existing := range t.st.profiles {
			if existing.DistributorCode == p.DistributorCode {
				return store.ErrDuplicate
			}
		}
	}
	t.st.profiles[p.UserID] = *p
	return nil
}

func (t *tx) GetProfile(userID int64) (*models.Profile, error) {
	p, ok := t.st.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *tx) UpdateProfile(p *models.Profile) error {
	if _, ok := t.st.profiles[p.UserID]; !ok {
		return store.ErrNotFound
	}
	if p.DistributorCode != "" {
		for _, existing := range t.st.profiles {
			if existing.UserID != p.UserID && existing.DistributorCode == p.DistributorCode {
				return store.ErrDuplicate
			}
		}
	}
	t.st.profiles[p.UserID] = *p
	return nil
}

// wallets

func (t *tx) CreateWallet(w *models.Wallet) error {
	if _, err := t.GetWallet(w.OwnerID, w.Kind); err == nil {
		return store.ErrDuplicate
	}
	w.ID = t.st.id()
	w.Version = 1
	t.st.wallets[w.ID] = *w
	return nil
}

func (t *tx) GetWallet(ownerID int64, kind models.WalletKind) (*models.Wallet, error) {
	for _, w := range t.st.wallets {
		if w.OwnerID == ownerID && w.Kind == kind {
			return &w, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) LockWallet(ownerID int64, kind models.WalletKind) (*models.Wallet, error) {
	return t.GetWallet(ownerID, kind)
}

func (t *tx) UpdateWallet(w *models.Wallet) error {
	current, ok := t.st.wallets[w.ID]
	if !ok {
		return store.ErrNotFound
	}
	if current.Version != w.Version {
		return store.ErrVersionConflict
	}
	w.Version++
	t.st.wallets[w.ID] = *w
	return nil
}

func (t *tx) InsertTransaction(tr *models.Transaction) error {
	tr.ID = t.st.id()
	t.st.txns = append(t.st.txns, *tr)
	return nil
}

func (t *tx) ListTransactions(walletID int64, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	for i := len(t.st.txns) - 1; i >= 0; i-- {
		if t.st.txns[i].WalletID != walletID {
			continue
		}
		out = append(out, t.st.txns[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *tx) LatestTransaction(walletID int64) (*models.Transaction, error) {
	for i := len(t.st.txns) - 1; i >= 0; i-- {
		if t.st.txns[i].WalletID == walletID {
			tr := t.st.txns[i]
			return &tr, nil
		}
	}
	return nil, store.ErrNotFound
}

// matches

func (t *tx) GetMatch(id int64) (*models.Match, error) {
	m, ok := t.st.matches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (t *tx) GetMatchByAPIID(apiID string) (*models.Match, error) {
	for _, m := range t.st.matches {
		if m.APIID == apiID {
			return &m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) UpsertMatch(m *models.Match) error {
	if existing, err := t.GetMatchByAPIID(m.APIID); err == nil {
		m.ID = existing.ID
	} else {
		m.ID = t.st.id()
	}
	t.st.matches[m.ID] = *m
	return nil
}

func (t *tx) UpdateMatchStatus(id int64, status models.MatchStatus) error {
	m, ok := t.st.matches[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Status = status
	t.st.matches[id] = m
	return nil
}

func (t *tx) ListMatches(statuses ...models.MatchStatus) ([]models.Match, error) {
	out := sortedValues(t.st.matches, func(m models.Match) bool {
		return len(statuses) == 0 || slices.Contains(statuses, m.Status)
	})
	return out, nil
}

func (t *tx) GetTeam(id int64) (*models.Team, error) {
	team, ok := t.st.teams[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &team, nil
}

func (t *tx) UpsertTeam(team *models.Team) error {
	team.ID = 0
	for id, existing := range t.st.teams {
		if existing.APIID == team.APIID {
			team.ID = id
			break
		}
	}
	if team.ID == 0 {
		team.ID = t.st.id()
	}
	t.st.teams[team.ID] = *team
	return nil
}

func (t *tx) GetPlayer(id int64) (*models.Player, error) {
	p, ok := t.st.players[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *tx) UpsertPlayer(p *models.Player) error {
	if _, ok := t.st.teams[p.TeamID]; !ok {
		return fmt.Errorf("player %s: team %d: %w", p.APIID, p.TeamID, store.ErrNotFound)
	}
	p.ID = 0
	for id, existing := range t.st.players {
		if existing.APIID == p.APIID {
			p.ID = id
			break
		}
	}
	if p.ID == 0 {
		p.ID = t.st.id()
	}
	t.st.players[p.ID] = *p
	return nil
}

func (t *tx) ListPlayersByTeam(teamID int64) ([]models.Player, error) {
	return sortedValues(t.st.players, func(p models.Player) bool { return p.TeamID == teamID }), nil
}

func (t *tx) ListMatchStats(matchID int64) ([]models.PlayerMatchStats, error) {
	var out []models.PlayerMatchStats
	for k, s := range t.st.stats {
		if k.matchID == matchID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t *tx) UpsertPlayerStats(s *models.PlayerMatchStats) error {
	t.st.stats[statsKey{playerID: s.PlayerID, matchID: s.MatchID}] = *s
	return nil
}

// sessions

func (t *tx) CreateSession(s *models.BettingSession) error {
	s.ID = t.st.id()
	t.st.sessions[s.ID] = *s
	return nil
}

func (t *tx) GetSession(id int64) (*models.BettingSession, error) {
	s, ok := t.st.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (t *tx) LockSession(id int64) (*models.BettingSession, error) {
	return t.GetSession(id)
}

func (t *tx) UpdateSession(s *models.BettingSession) error {
	if _, ok := t.st.sessions[s.ID]; !ok {
		return store.ErrNotFound
	}
	t.st.sessions[s.ID] = *s
	return nil
}

func (t *tx) FindActiveSession(userID, matchID int64) (*models.BettingSession, error) {
	for _, s := range sortedValues(t.st.sessions, nil) {
		if s.MatchID != matchID || !slices.Contains(models.ActiveSessionStatuses, s.Status) {
			continue
		}
		if _, ok := s.SideOf(userID); ok {
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) ListSessionsByMatch(matchID int64, statuses ...models.SessionStatus) ([]models.BettingSession, error) {
	return sortedValues(t.st.sessions, func(s models.BettingSession) bool {
		return s.MatchID == matchID && (len(statuses) == 0 || slices.Contains(statuses, s.Status))
	}), nil
}

func (t *tx) ListSessionsByUser(userID int64) ([]models.BettingSession, error) {
	out := sortedValues(t.st.sessions, func(s models.BettingSession) bool {
		_, ok := s.SideOf(userID)
		return ok
	})
	return reversed(out), nil
}

func (t *tx) InsertPick(p *models.PickedPlayer) error {
	for _, existing := range t.st.picks {
		if existing.SessionID == p.SessionID && existing.PlayerID == p.PlayerID {
			return store.ErrDuplicate
		}
	}
	p.ID = t.st.id()
	t.st.picks = append(t.st.picks, *p)
	return nil
}

func (t *tx) ListPicks(sessionID int64) ([]models.PickedPlayer, error) {
	var out []models.PickedPlayer
	for _, p := range t.st.picks {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *tx) InsertBet(b *models.Bet) error {
	for _, existing := range t.st.bets {
		if existing.PickedPlayerID == b.PickedPlayerID {
			return store.ErrDuplicate
		}
	}
	b.ID = t.st.id()
	t.st.bets[b.ID] = *b
	return nil
}

func (t *tx) UpdateBet(b *models.Bet) error {
	if _, ok := t.st.bets[b.ID]; !ok {
		return store.ErrNotFound
	}
	t.st.bets[b.ID] = *b
	return nil
}

func (t *tx) ListBets(sessionID int64) ([]models.Bet, error) {
	return sortedValues(t.st.bets, func(b models.Bet) bool { return b.SessionID == sessionID }), nil
}

// invites

func (t *tx) CreateInvite(i *models.SessionInvite) error {
	if _, err := t.GetInviteByCode(i.Code); err == nil {
		return store.ErrDuplicate
	}
	i.ID = t.st.id()
	t.st.invites[i.ID] = *i
	return nil
}

func (t *tx) GetInvite(id int64) (*models.SessionInvite, error) {
	i, ok := t.st.invites[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &i, nil
}

func (t *tx) GetInviteByCode(code string) (*models.SessionInvite, error) {
	for _, i := range t.st.invites {
		if i.Code == code {
			return &i, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) UpdateInvite(i *models.SessionInvite) error {
	if _, ok := t.st.invites[i.ID]; !ok {
		return store.ErrNotFound
	}
	t.st.invites[i.ID] = *i
	return nil
}

func (t *tx) ListInvitesForUser(userID int64) ([]models.SessionInvite, error) {
	out := sortedValues(t.st.invites, func(i models.SessionInvite) bool {
		return i.InviterID == userID || (i.InviteeID != nil && *i.InviteeID == userID)
	})
	return reversed(out), nil
}

// deposit requests

func (t *tx) CreateDepositRequest(r *models.DepositRequest) error {
	r.ID = t.st.id()
	t.st.deposits[r.ID] = *r
	return nil
}

func (t *tx) LockDepositRequest(id int64) (*models.DepositRequest, error) {
	r, ok := t.st.deposits[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (t *tx) UpdateDepositRequest(r *models.DepositRequest) error {
	if _, ok := t.st.deposits[r.ID]; !ok {
		return store.ErrNotFound
	}
	t.st.deposits[r.ID] = *r
	return nil
}

func (t *tx) ListDepositRequests(f store.DepositRequestFilter) ([]models.DepositRequest, error) {
	out := sortedValues(t.st.deposits, func(r models.DepositRequest) bool {
		if f.EndUserID != 0 && r.EndUserID != f.EndUserID {
			return false
		}
		if f.DistributorID != 0 && r.DistributorID != f.DistributorID {
			return false
		}
		return f.Status == "" || r.Status == f.Status
	})
	return reversed(out), nil
}
