package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STATS_CACHE_TTL", "30m")
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("JWT_EXPIRY_HOURS", "2")

	// No .env in the package directory; defaults and env still apply.
	cfg, _ := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "k1:9092,k2:9092", cfg.KafkaBrokers)
	assert.Equal(t, "cricketduel.sessions", cfg.KafkaTopic)
	assert.Equal(t, 30*time.Minute, cfg.StatsCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.StatsTimeout)

	auth := LoadAuthConfig()
	assert.Equal(t, "s3cret", auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, auth.JWTExpiry)
	assert.Equal(t, uint32(64*1024), auth.Argon2Memory)
	assert.Equal(t, uint8(4), auth.Argon2Threads)
	assert.Equal(t, 16, auth.Argon2SaltLength)
}

func TestLoadBettingConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadBettingConfig()
		assert.Equal(t, 1, cfg.MinPlayersPerSide)
		assert.Equal(t, 11, cfg.MaxPlayersPerSide)
		assert.True(t, decimal.NewFromInt(20).Equal(cfg.MaxInsurancePercentage))
		assert.True(t, decimal.RequireFromString("0.5").Equal(cfg.InsurancePremiumRate))
		assert.Equal(t, 20, cfg.InsuranceClaimThreshold)
		assert.Equal(t, 7*24*time.Hour, cfg.InviteTTL)
	})

	t.Run("overrides and bad values", func(t *testing.T) {
		t.Setenv("BETTING_MAX_PLAYERS_PER_SIDE", "5")
		t.Setenv("BETTING_INVITE_TTL", "48h")
		t.Setenv("BETTING_INSURANCE_PREMIUM_RATE", "not-a-number")
		t.Setenv("BETTING_RECENT_PICK_LIMIT", "ten")

		cfg := LoadBettingConfig()
		assert.Equal(t, 5, cfg.MaxPlayersPerSide)
		assert.Equal(t, 48*time.Hour, cfg.InviteTTL)
		assert.True(t, decimal.RequireFromString("0.5").Equal(cfg.InsurancePremiumRate))
		assert.Equal(t, 5, cfg.RecentPickLimit)
	})
}
