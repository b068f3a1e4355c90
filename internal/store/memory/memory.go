// Package memory is an in-process store. Units of work are serialized behind a
// single mutex and applied copy-on-write, so a failed unit leaves no trace.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
)

type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type statsKey struct {
	playerID int64
	matchID  int64
}

type state struct {
	nextID int64

	users    map[int64]models.User
	profiles map[int64]models.Profile
	wallets  map[int64]models.Wallet
	txns     []models.Transaction

	teams   map[int64]models.Team
	players map[int64]models.Player
	matches map[int64]models.Match
	stats   map[statsKey]models.PlayerMatchStats

	sessions map[int64]models.BettingSession
	picks    []models.PickedPlayer
	bets     map[int64]models.Bet

	invites  map[int64]models.SessionInvite
	deposits map[int64]models.DepositRequest
}

func newState() *state {
	return &state{
		users:    map[int64]models.User{},
		profiles: map[int64]models.Profile{},
		wallets:  map[int64]models.Wallet{},
		teams:    map[int64]models.Team{},
		players:  map[int64]models.Player{},
		matches:  map[int64]models.Match{},
		stats:    map[statsKey]models.PlayerMatchStats{},
		sessions: map[int64]models.BettingSession{},
		bets:     map[int64]models.Bet{},
		invites:  map[int64]models.SessionInvite{},
		deposits: map[int64]models.DepositRequest{},
	}
}

func (st *state) clone() *state {
	return &state{
		nextID:   st.nextID,
		users:    copyMap(st.users),
		profiles: copyMap(st.profiles),
		wallets:  copyMap(st.wallets),
		txns:     append([]models.Transaction(nil), st.txns...),
		teams:    copyMap(st.teams),
		players:  copyMap(st.players),
		matches:  copyMap(st.matches),
		stats:    copyMap(st.stats),
		sessions: copyMap(st.sessions),
		picks:    append([]models.PickedPlayer(nil), st.picks...),
		bets:     copyMap(st.bets),
		invites:  copyMap(st.invites),
		deposits: copyMap(st.deposits),
	}
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedValues[V any](m map[int64]V, keep func(V) bool) []V {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func reversed[V any](in []V) []V {
	for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
		in[i], in[j] = in[j], in[i]
	}
	return in
}
