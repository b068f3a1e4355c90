package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/audit"
	"github.com/cricketduel/backend/internal/config"
	"github.com/cricketduel/backend/internal/events"
	"github.com/cricketduel/backend/internal/metrics"
	"github.com/cricketduel/backend/internal/models"
	"github.com/cricketduel/backend/internal/store"
	"github.com/cricketduel/backend/internal/store/memory"
)

const (
	upcomingMatch  int64 = 100
	completedMatch int64 = 200
)

const testFixtures = `
teams:
  - {id: 1, api_id: "t-1", name: India, short_name: IND}
  - {id: 2, api_id: "t-2", name: Australia, short_name: AUS}
  - {id: 3, api_id: "t-3", name: England, short_name: ENG}
players:
  - {id: 11, api_id: "p-11", name: Rohit Sharma, team_id: 1, role: batsman}
  - {id: 12, api_id: "p-12", name: Virat Kohli, team_id: 1, role: batsman}
  - {id: 13, api_id: "p-13", name: Shubman Gill, team_id: 1, role: batsman}
  - {id: 21, api_id: "p-21", name: Travis Head, team_id: 2, role: batsman}
  - {id: 22, api_id: "p-22", name: Steve Smith, team_id: 2, role: batsman}
  - {id: 23, api_id: "p-23", name: Glenn Maxwell, team_id: 2, role: all-rounder}
  - {id: 31, api_id: "p-31", name: Joe Root, team_id: 3, role: batsman}
matches:
  - {id: 100, api_id: "m-100", team_a_id: 1, team_b_id: 2, title: IND v AUS, venue: Mumbai, match_date: 2026-11-02T09:30:00Z, status: upcoming}
  - {id: 200, api_id: "m-200", team_a_id: 1, team_b_id: 2, title: IND v AUS, venue: Sydney, match_date: 2026-10-01T09:30:00Z, status: completed}
`

// MockScoreProvider stands in for the live score feed.
type MockScoreProvider struct {
	mock.Mock
}

func (m *MockScoreProvider) GetFinalStats(ctx context.Context, matchAPIID string) (map[string]models.PlayerStat, error) {
	args := m.Called(ctx, matchAPIID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.PlayerStat), args.Error(1)
}

// recordingPublisher keeps every published event for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	store        *memory.Store
	cfg          *config.BettingConfig
	provider     *MockScoreProvider
	events       *recordingPublisher
	ledger       *LedgerService
	sessions     *SessionService
	settlement   *SettlementService
	invites      *InviteService
	distributors *DistributorService
	auth         *AuthService
}

func testBettingConfig() *config.BettingConfig {
	return &config.BettingConfig{
		MinPlayersPerSide:       1,
		MaxPlayersPerSide:       11,
		MaxInsurancePercentage:  decimal.NewFromInt(20),
		InsuranceEstimatedRuns:  100,
		InsurancePremiumRate:    decimal.RequireFromString("0.5"),
		InsuranceClaimThreshold: 20,
		InviteTTL:               24 * time.Hour,
		InviteCodeLength:        32,
		InviteBaseURL:           "http://localhost:8080/invites/",
		RecentPickWindow:        30 * time.Second,
		RecentPickLimit:         5,
		SettlementSweepInterval: time.Minute,
	}
}

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:        "test-secret",
		JWTExpiry:        time.Hour,
		Argon2Time:       1,
		Argon2Memory:     1024,
		Argon2Threads:    1,
		Argon2KeyLength:  32,
		Argon2SaltLength: 16,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fixtures, err := memory.ParseFixtures([]byte(testFixtures))
	require.NoError(t, err)
	st := memory.New()
	st.Seed(fixtures)

	log := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	auditLog := audit.NewLogger(log)
	cfg := testBettingConfig()
	pub := &recordingPublisher{}
	provider := &MockScoreProvider{}

	ledger := NewLedgerService(st, auditLog, m, log)
	sessions := NewSessionService(st, ledger, cfg, pub, m, log)
	sessions.toss = func() models.Side { return models.SideA }

	return &testEnv{
		store:        st,
		cfg:          cfg,
		provider:     provider,
		events:       pub,
		ledger:       ledger,
		sessions:     sessions,
		settlement:   NewSettlementService(st, ledger, provider, cfg, pub, m, log),
		invites:      NewInviteService(st, sessions, cfg, log),
		distributors: NewDistributorService(st, ledger, auditLog, log),
		auth:         NewAuthService(st, nil, testAuthConfig(), log),
	}
}

func (e *testEnv) register(t *testing.T, username string) int64 {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return resp.User.ID
}

func (e *testEnv) fund(t *testing.T, userID int64, amount string) {
	t.Helper()
	_, err := e.ledger.Deposit(context.Background(), userID, decimal.RequireFromString(amount), "")
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID int64) decimal.Decimal {
	t.Helper()
	b, err := e.ledger.Balance(context.Background(), UserWallet(userID))
	require.NoError(t, err)
	return b
}

// pickingSession returns a session on the upcoming match with both sides
// joined and the toss won by side A.
func (e *testEnv) pickingSession(t *testing.T, a, b int64, playersPerSide int, bet string) *models.BettingSession {
	t.Helper()
	ctx := context.Background()

	sess, err := e.sessions.CreateSession(ctx, a, CreateSessionInput{
		MatchID:        upcomingMatch,
		PlayersPerSide: playersPerSide,
		FixedBetAmount: decimal.RequireFromString(bet),
	})
	require.NoError(t, err)
	_, err = e.sessions.JoinSession(ctx, b, sess.ID)
	require.NoError(t, err)
	sess, err = e.sessions.PerformToss(ctx, a, sess.ID)
	require.NoError(t, err)
	return sess
}

// bettingSession picks A: 11, 12 and B: 21, 22 alternately.
func (e *testEnv) bettingSession(t *testing.T, a, b int64, bet string) *models.BettingSession {
	t.Helper()
	ctx := context.Background()

	sess := e.pickingSession(t, a, b, 2, bet)
	for _, p := range []struct {
		user   int64
		player int64
	}{{a, 11}, {b, 21}, {a, 12}, {b, 22}} {
		res, err := e.sessions.Pick(ctx, p.user, sess.ID, p.player)
		require.NoError(t, err)
		sess = res.Session
	}
	return sess
}

// stakedSession has both stakes in, side A optionally insured.
func (e *testEnv) stakedSession(t *testing.T, a, b int64, bet, insurance string) *models.BettingSession {
	t.Helper()
	ctx := context.Background()

	sess := e.bettingSession(t, a, b, bet)
	_, err := e.sessions.PlaceStake(ctx, a, sess.ID, StakeInput{InsurancePercentage: decimal.RequireFromString(insurance)})
	require.NoError(t, err)
	res, err := e.sessions.PlaceStake(ctx, b, sess.ID, StakeInput{InsurancePercentage: decimal.Zero})
	require.NoError(t, err)
	return res.Session
}

func (e *testEnv) completeMatch(t *testing.T, matchID int64) {
	t.Helper()
	e.setMatchStatus(t, matchID, models.MatchCompleted)
}

func (e *testEnv) setMatchStatus(t *testing.T, matchID int64, status models.MatchStatus) {
	t.Helper()
	require.NoError(t, e.store.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.UpdateMatchStatus(matchID, status)
	}))
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}
