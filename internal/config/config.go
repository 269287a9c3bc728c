package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tropicaldog17/navledger/internal/db"
	"github.com/tropicaldog17/navledger/internal/models"
)

type Config struct {
	App        AppConfig         `mapstructure:"app"`
	Server     ServerConfig      `mapstructure:"server"`
	Log        LogConfig         `mapstructure:"log"`
	DB         DBConfig          `mapstructure:"db"`
	Cron       CronConfig        `mapstructure:"cron"`
	Ledger     LedgerConfig      `mapstructure:"ledger"`
	Portfolios []PortfolioConfig `mapstructure:"portfolios"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type CronConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	DailyClose string `mapstructure:"daily_close"`
}

type LedgerConfig struct {
	Benchmark          string `mapstructure:"benchmark"`
	MonthlyCashPosting bool   `mapstructure:"monthly_cash_posting"`
	PostingDay         string `mapstructure:"posting_day"`
	ReturnPlaces       int    `mapstructure:"return_places"`
	MaxParallel        int    `mapstructure:"max_parallel"`
	StrictCash         bool   `mapstructure:"strict_cash"`
}

// PortfolioConfig is one entry of the portfolios list. Inception is the first
// day closed by a backfill; empty means the first transaction date.
type PortfolioConfig struct {
	ID          string                       `mapstructure:"id"`
	Currency    string                       `mapstructure:"currency"`
	DayCount    *int                         `mapstructure:"day_count"`
	Inception   string                       `mapstructure:"inception"`
	APYTimeline []models.APYIntervalDocument `mapstructure:"apy_timeline"`
}

// Load reads an optional .env file, then path (skipped when empty) with
// NAVLEDGER_ environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("NAVLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("db.driver", db.DriverPostgres)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "navledger")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "5m")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.daily_close", "0 30 22 * * *")
	v.SetDefault("ledger.benchmark", "SPY")
	v.SetDefault("ledger.monthly_cash_posting", false)
	v.SetDefault("ledger.posting_day", "last")
	v.SetDefault("ledger.return_places", 10)
	v.SetDefault("ledger.max_parallel", 4)
	v.SetDefault("ledger.strict_cash", false)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Database converts the db section into a connection config.
func (c Config) Database() *db.Config {
	return &db.Config{
		Driver:          c.DB.Driver,
		DSN:             c.DB.DSN,
		Host:            c.DB.Host,
		Port:            c.DB.Port,
		User:            c.DB.User,
		Password:        c.DB.Password,
		Name:            c.DB.Name,
		SSLMode:         c.DB.SSLMode,
		MaxOpenConns:    c.DB.MaxOpenConns,
		MaxIdleConns:    c.DB.MaxIdleConns,
		ConnMaxLifetime: c.DB.ConnMaxLifetime,
	}
}

// PostingDay parses ledger.posting_day.
func (c Config) PostingDay() (models.PostingDay, error) {
	return models.ParsePostingDay(c.Ledger.PostingDay)
}

// Flags returns the engine feature flags.
func (c Config) Flags() models.FeatureFlags {
	return models.FeatureFlags{MonthlyCashPosting: c.Ledger.MonthlyCashPosting}
}

// Policies validates every configured portfolio's cash policy. The first
// invalid document aborts loading.
func (c Config) Policies() (map[string]*models.CashPolicy, error) {
	out := make(map[string]*models.CashPolicy, len(c.Portfolios))
	for _, p := range c.Portfolios {
		if p.ID == "" {
			return nil, fmt.Errorf("portfolio entry without id")
		}
		if _, dup := out[p.ID]; dup {
			return nil, fmt.Errorf("portfolio %s configured twice", p.ID)
		}
		policy, err := models.NewCashPolicy(p.ID, models.CashPolicyDocument{
			Currency:    p.Currency,
			DayCount:    p.DayCount,
			APYTimeline: p.APYTimeline,
		})
		if err != nil {
			return nil, err
		}
		out[p.ID] = policy
	}
	return out, nil
}

// Inception returns the configured first close date of a portfolio, nil when
// it is not set.
func (c Config) Inception(portfolioID string) (*time.Time, error) {
	for _, p := range c.Portfolios {
		if p.ID != portfolioID || p.Inception == "" {
			continue
		}
		d, err := models.ParseDate(p.Inception)
		if err != nil {
			return nil, fmt.Errorf("portfolio %s inception: %w", portfolioID, err)
		}
		return &d, nil
	}
	return nil, nil
}
