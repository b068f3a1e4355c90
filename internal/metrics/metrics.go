package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	sessionsCreated  prometheus.Counter
	picks            *prometheus.CounterVec
	stakes           prometheus.Counter
	settlements      *prometheus.CounterVec
	settleDuration   prometheus.Histogram
	ledgerEntries    *prometheus.CounterVec
	providerFallback *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cricketduel_sessions_created_total",
			Help: "betting sessions opened",
		}),
		picks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cricketduel_picks_total",
			Help: "pick attempts by outcome",
		}, []string{"outcome"}),
		stakes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cricketduel_stakes_placed_total",
			Help: "stakes placed",
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cricketduel_settlements_total",
			Help: "settled sessions by result",
		}, []string{"result"}),
		settleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cricketduel_settlement_duration_seconds",
			Help:    "time spent settling one session",
			Buckets: prometheus.DefBuckets,
		}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cricketduel_ledger_entries_total",
			Help: "ledger entries written by kind",
		}, []string{"kind"}),
		providerFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cricketduel_stats_fallbacks_total",
			Help: "player stats not served by the score feed",
		}, []string{"source"}),
	}

	reg.MustRegister(m.sessionsCreated, m.picks, m.stakes, m.settlements, m.settleDuration,
		m.ledgerEntries, m.providerFallback)
	return m
}

func (m *Metrics) SessionCreated() { m.sessionsCreated.Inc() }

func (m *Metrics) Pick(outcome string) { m.picks.WithLabelValues(outcome).Inc() }

func (m *Metrics) StakePlaced() { m.stakes.Inc() }

func (m *Metrics) Settled(result string, took time.Duration) {
	m.settlements.WithLabelValues(result).Inc()
	m.settleDuration.Observe(took.Seconds())
}

func (m *Metrics) LedgerEntry(kind string) { m.ledgerEntries.WithLabelValues(kind).Inc() }

// StatsFallback counts a player whose runs came from source instead of the feed.
func (m *Metrics) StatsFallback(source string) { m.providerFallback.WithLabelValues(source).Inc() }
