package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the process-level configuration read through viper from .env
// and the environment.
type Config struct {
	Env         string
	ServiceName string
	Port        string

	StoreDriver  string
	FixturesPath string

	KafkaBrokers string
	KafkaTopic   string

	StatsBaseURL  string
	StatsAPIKey   string
	StatsTimeout  time.Duration
	StatsCacheTTL time.Duration

	CORSOrigins []string

	// MasterUsername is promoted to master distributor at startup when set.
	MasterUsername string
}

var envBindings = map[string]string{
	"app.env":            "APP_ENV",
	"app.port":           "PORT",
	"database.host":      "DATABASE_HOST",
	"database.port":      "DATABASE_PORT",
	"database.user":      "DATABASE_USER",
	"database.password":  "DATABASE_PASSWORD",
	"database.name":      "DATABASE_NAME",
	"database.ssl_mode":  "DATABASE_SSL_MODE",
	"redis.host":         "REDIS_HOST",
	"redis.port":         "REDIS_PORT",
	"redis.password":     "REDIS_PASSWORD",
	"redis.db":           "REDIS_DB",
	"jwt.secret_key":     "JWT_SECRET_KEY",
	"jwt.expiry_hours":   "JWT_EXPIRY_HOURS",
	"argon2.time":        "ARGON2_TIME",
	"argon2.memory":      "ARGON2_MEMORY",
	"argon2.threads":     "ARGON2_THREADS",
	"argon2.key_length":  "ARGON2_KEY_LENGTH",
	"argon2.salt_length": "ARGON2_SALT_LENGTH",
	"store.driver":       "STORE_DRIVER",
	"store.fixtures":     "STORE_FIXTURES",
	"kafka.brokers":      "KAFKA_BROKERS",
	"kafka.topic":        "KAFKA_TOPIC",
	"stats.base_url":     "STATS_BASE_URL",
	"stats.api_key":      "STATS_API_KEY",
	"stats.timeout":      "STATS_TIMEOUT",
	"stats.cache_ttl":    "STATS_CACHE_TTL",
	"cors.origins":       "CORS_ORIGINS",
	"distributor.master": "MASTER_DISTRIBUTOR_USERNAME",
}

func setDefaults() {
	viper.SetDefault("app.env", "local")
	viper.SetDefault("app.port", "8080")
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("kafka.topic", "cricketduel.sessions")
	viper.SetDefault("stats.timeout", 10*time.Second)
	viper.SetDefault("stats.cache_ttl", 10*time.Minute)
	viper.SetDefault("cors.origins", []string{"https://*", "http://*"})
}

// Load reads .env (if present) and the environment. The returned error is only
// informational; defaults still apply when the file is missing.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}
	setDefaults()

	err := viper.ReadInConfig()

	return &Config{
		Env:            viper.GetString("app.env"),
		ServiceName:    "cricketduel-api",
		Port:           viper.GetString("app.port"),
		StoreDriver:    viper.GetString("store.driver"),
		FixturesPath:   viper.GetString("store.fixtures"),
		KafkaBrokers:   viper.GetString("kafka.brokers"),
		KafkaTopic:     viper.GetString("kafka.topic"),
		StatsBaseURL:   viper.GetString("stats.base_url"),
		StatsAPIKey:    viper.GetString("stats.api_key"),
		StatsTimeout:   viper.GetDuration("stats.timeout"),
		StatsCacheTTL:  viper.GetDuration("stats.cache_ttl"),
		CORSOrigins:    viper.GetStringSlice("cors.origins"),
		MasterUsername: viper.GetString("distributor.master"),
	}, err
}

// AuthConfig holds token signing and password hashing parameters.
type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration

	Argon2Time       uint32
	Argon2Memory     uint32
	Argon2Threads    uint8
	Argon2KeyLength  uint32
	Argon2SaltLength int
}

// LoadAuthConfig reads the jwt.* and argon2.* keys. Call after Load.
func LoadAuthConfig() *AuthConfig {
	return &AuthConfig{
		JWTSecret:        viper.GetString("jwt.secret_key"),
		JWTExpiry:        time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour,
		Argon2Time:       uint32(viper.GetInt("argon2.time")),
		Argon2Memory:     uint32(viper.GetInt("argon2.memory")),
		Argon2Threads:    uint8(viper.GetInt("argon2.threads")),
		Argon2KeyLength:  uint32(viper.GetInt("argon2.key_length")),
		Argon2SaltLength: viper.GetInt("argon2.salt_length"),
	}
}
