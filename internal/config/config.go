package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Store drivers.
const (
	StoreMongoDB  = "mongodb"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	MongoDB    MongoDBConfig
	Lock       LockConfig
	Settlement SettlementConfig
	WhatsApp   WhatsAppConfig
	Sheets     SheetsConfig
	Reconcile  ReconcileConfig
	Notify     NotifyConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port     string
	LogLevel string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string
	// DSN is used by the postgres and sqlite drivers.
	DSN string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
	// Transactions requires a replica set. Without it settlements commit in
	// best-effort order and the reconciliation job finishes interrupted ones.
	Transactions bool
}

// LockConfig configures the per-counterparty lock. An empty RedisAddress
// selects the in-process lock.
type LockConfig struct {
	RedisAddress string
	TTL          time.Duration
	Wait         time.Duration
}

// SettlementConfig holds the per-flow business rules.
type SettlementConfig struct {
	Timezone         string
	Location         *time.Location
	FarmerMinPayment decimal.Decimal
	MemberMinPayment decimal.Decimal
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
}

// Enabled reports whether settlement messages should be sent.
func (w WhatsAppConfig) Enabled() bool {
	return w.AccessToken != "" && w.PhoneNumberID != ""
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	JournalRange    string
}

// Enabled reports whether settlements should be journaled to a sheet.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// ReconcileConfig holds scheduler-related settings.
type ReconcileConfig struct {
	CronSchedule string
	Grace        time.Duration
}

// NotifyConfig bounds each notification delivery.
type NotifyConfig struct {
	Timeout time.Duration
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the process environment without validating it.
func FromEnv() (*Config, error) {
	var errs []error
	duration := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(getenvWithDefault(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	amount := func(key, fallback string) decimal.Decimal {
		d, err := decimal.NewFromString(getenvWithDefault(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	boolean := func(key string, fallback bool) bool {
		raw := os.Getenv(key)
		if raw == "" {
			return fallback
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getenvWithDefault("APP_PORT", "8080"),
			LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver: getenvWithDefault("STORE_DRIVER", StoreMongoDB),
			DSN:    os.Getenv("DATABASE_DSN"),
		},
		MongoDB: MongoDBConfig{
			URI:          getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName:       getenvWithDefault("MONGODB_DB_NAME", "dairy"),
			Transactions: boolean("MONGODB_TRANSACTIONS", true),
		},
		Lock: LockConfig{
			RedisAddress: os.Getenv("REDIS_ADDRESS"),
			TTL:          duration("LOCK_TTL", "30s"),
			Wait:         duration("LOCK_WAIT", "5s"),
		},
		Settlement: SettlementConfig{
			Timezone:         getenvWithDefault("TIMEZONE", "Africa/Conakry"),
			FarmerMinPayment: amount("FARMER_MIN_PAYMENT", "0"),
			MemberMinPayment: amount("MEMBER_MIN_PAYMENT", "1"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			JournalRange:    getenvWithDefault("GOOGLE_SHEET_JOURNAL_RANGE", "Settlements!A:J"),
		},
		Reconcile: ReconcileConfig{
			CronSchedule: getenvWithDefault("RECONCILE_CRON_SCHEDULE", "*/5 * * * *"),
			Grace:        duration("RECONCILE_GRACE", "2m"),
		},
		Notify: NotifyConfig{
			Timeout: duration("NOTIFY_TIMEOUT", "10s"),
		},
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	loc, err := time.LoadLocation(cfg.Settlement.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Settlement.Location = loc
	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case StoreMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	case StorePostgres, StoreSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("DATABASE_DSN must be provided for %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.Store.Driver)
	}

	if c.Lock.TTL <= 0 {
		return errors.New("LOCK_TTL must be positive")
	}
	if c.Lock.Wait <= 0 {
		return errors.New("LOCK_WAIT must be positive")
	}

	if c.Settlement.FarmerMinPayment.IsNegative() {
		return errors.New("FARMER_MIN_PAYMENT must not be negative")
	}
	if c.Settlement.MemberMinPayment.IsNegative() {
		return errors.New("MEMBER_MIN_PAYMENT must not be negative")
	}

	if c.WhatsApp.Enabled() {
		if c.WhatsApp.BaseURL == "" {
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		}
		if c.WhatsApp.APIVersion == "" {
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Sheets.Enabled() && c.Sheets.JournalRange == "" {
		return errors.New("GOOGLE_SHEET_JOURNAL_RANGE must not be empty")
	}

	if c.Reconcile.CronSchedule == "" {
		return errors.New("RECONCILE_CRON_SCHEDULE must be provided")
	}
	if _, err := cron.ParseStandard(c.Reconcile.CronSchedule); err != nil {
		return fmt.Errorf("RECONCILE_CRON_SCHEDULE: %w", err)
	}
	if c.Reconcile.Grace < 0 {
		return errors.New("RECONCILE_GRACE must not be negative")
	}

	if c.Notify.Timeout <= 0 {
		return errors.New("NOTIFY_TIMEOUT must be positive")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
