package config

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"propshare-backend/internal/constants"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                  string
	Port                 string
	LogLevel             string
	DatabaseURL          string
	RedisURL             string
	PaymentWebhookSecret string
	SendinblueAPIKey     string // SENDINBLUE_API_KEY for exit/acquisition notifications (Brevo)
	MailFrom             string
	HealthAdminKey       string
	SuperadminRole       string
	FrontendURLEndsWith  string
	DevPassword          string

	Tx     TxConfig
	Limits map[string]TierLimit

	CapabilityCacheTTL time.Duration
}

// TxConfig bounds every ledger transaction.
type TxConfig struct {
	Isolation      sql.IsolationLevel
	Timeout        time.Duration
	MaxRetries     uint64
	RetryBaseDelay time.Duration
}

// TierLimit is the withdrawal ceiling pair for one tier.
type TierLimit struct {
	Daily  decimal.Decimal
	Single decimal.Decimal
}

// DefaultLimits are used for any tier not overridden by LIMIT_<TIER>_DAILY / LIMIT_<TIER>_SINGLE.
func DefaultLimits() map[string]TierLimit {
	return map[string]TierLimit{
		"basic":  {Daily: decimal.NewFromInt(10_000_000), Single: decimal.NewFromInt(10_000_000)},
		"silver": {Daily: decimal.NewFromInt(25_000_000), Single: decimal.NewFromInt(15_000_000)},
		"gold":   {Daily: decimal.NewFromInt(100_000_000), Single: decimal.NewFromInt(50_000_000)},
	}
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TX_ISOLATION", "serializable")
	viper.SetDefault("TX_TIMEOUT", "10s")
	viper.SetDefault("TX_MAX_RETRIES", 3)
	viper.SetDefault("TX_RETRY_BASE_DELAY", "50ms")
	viper.SetDefault("CAPABILITY_CACHE_TTL", "5m")
	viper.SetDefault("SUPERADMIN_ROLE", constants.Superadmin)

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	isolation, err := ParseIsolation(viper.GetString("TX_ISOLATION"))
	if err != nil {
		return nil, err
	}

	superadmin := viper.GetString("SUPERADMIN_ROLE")
	if !constants.IsValidRole(superadmin) {
		return nil, fmt.Errorf("SUPERADMIN_ROLE %q is not a known role", superadmin)
	}

	limits, err := loadLimits()
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:                  env,
		Port:                 viper.GetString("PORT"),
		LogLevel:             viper.GetString("LOG_LEVEL"),
		DatabaseURL:          dbURL,
		RedisURL:             viper.GetString("REDIS_URL"),
		PaymentWebhookSecret: viper.GetString("PAYMENT_WEBHOOK_SECRET"),
		SendinblueAPIKey:     viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:             viper.GetString("MAIL_FROM"),
		HealthAdminKey:       viper.GetString("HEALTH_ADMIN_KEY"),
		SuperadminRole:       superadmin,
		FrontendURLEndsWith:  viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:          viper.GetString("DEV_PASSWORD"),
		Tx: TxConfig{
			Isolation:      isolation,
			Timeout:        viper.GetDuration("TX_TIMEOUT"),
			MaxRetries:     viper.GetUint64("TX_MAX_RETRIES"),
			RetryBaseDelay: viper.GetDuration("TX_RETRY_BASE_DELAY"),
		},
		Limits:             limits,
		CapabilityCacheTTL: viper.GetDuration("CAPABILITY_CACHE_TTL"),
	}, nil
}

func loadLimits() (map[string]TierLimit, error) {
	limits := DefaultLimits()
	for tier, l := range limits {
		prefix := "LIMIT_" + strings.ToUpper(tier)
		if v := viper.GetString(prefix + "_DAILY"); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("%s_DAILY: %w", prefix, err)
			}
			l.Daily = d
		}
		if v := viper.GetString(prefix + "_SINGLE"); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("%s_SINGLE: %w", prefix, err)
			}
			l.Single = d
		}
		limits[tier] = l
	}
	return limits, nil
}

// ParseIsolation maps TX_ISOLATION values to database/sql levels. "default"
// leaves the choice to the driver (SQLite only supports that).
func ParseIsolation(s string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return sql.LevelDefault, nil
	case "serializable":
		return sql.LevelSerializable, nil
	case "repeatable_read", "repeatable-read":
		return sql.LevelRepeatableRead, nil
	case "read_committed", "read-committed":
		return sql.LevelReadCommitted, nil
	}
	return sql.LevelDefault, fmt.Errorf("TX_ISOLATION %q is not supported", s)
}
