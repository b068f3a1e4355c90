package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// BettingConfig carries the rules of a betting session.
type BettingConfig struct {
	MinPlayersPerSide int
	MaxPlayersPerSide int

	MaxInsurancePercentage decimal.Decimal
	// InsuranceEstimatedRuns is the notional innings length insurance cover is priced on.
	InsuranceEstimatedRuns  int
	InsurancePremiumRate    decimal.Decimal
	InsuranceClaimThreshold int

	InviteTTL        time.Duration
	InviteCodeLength int
	InviteBaseURL    string

	RecentPickWindow time.Duration
	RecentPickLimit  int

	SettlementSweepInterval time.Duration
}

func LoadBettingConfig() *BettingConfig {
	return &BettingConfig{
		MinPlayersPerSide:       getEnvAsInt("BETTING_MIN_PLAYERS_PER_SIDE", 1),
		MaxPlayersPerSide:       getEnvAsInt("BETTING_MAX_PLAYERS_PER_SIDE", 11),
		MaxInsurancePercentage:  getEnvAsDecimal("BETTING_MAX_INSURANCE_PERCENTAGE", decimal.NewFromInt(20)),
		InsuranceEstimatedRuns:  getEnvAsInt("BETTING_INSURANCE_ESTIMATED_RUNS", 100),
		InsurancePremiumRate:    getEnvAsDecimal("BETTING_INSURANCE_PREMIUM_RATE", decimal.RequireFromString("0.5")),
		InsuranceClaimThreshold: getEnvAsInt("BETTING_INSURANCE_CLAIM_THRESHOLD", 20),
		InviteTTL:               getEnvAsDuration("BETTING_INVITE_TTL", 7*24*time.Hour),
		InviteCodeLength:        getEnvAsInt("BETTING_INVITE_CODE_LENGTH", 32),
		InviteBaseURL:           getEnv("BETTING_INVITE_BASE_URL", "http://localhost:8080/invites/"),
		RecentPickWindow:        getEnvAsDuration("BETTING_RECENT_PICK_WINDOW", 30*time.Second),
		RecentPickLimit:         getEnvAsInt("BETTING_RECENT_PICK_LIMIT", 5),
		SettlementSweepInterval: getEnvAsDuration("BETTING_SETTLEMENT_SWEEP_INTERVAL", time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return defaultVal
}
