// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        // e.g. "8080"
	BackofficePort       string        // e.g. "8081"
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration // default 10s
	WriteTimeout         time.Duration // default 10s
	BackofficeAllowedIPs string        // comma-separated IPs; "" = allow all
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// JWTConfig holds JWT signing settings.
type JWTConfig struct {
	AccessSecret  string        // must be set
	RefreshSecret string        // must be set
	AccessTTL     time.Duration // default 15m
	RefreshTTL    time.Duration // default 720h (30 days)
}

// AuctionConfig holds bidding and settlement business rules.
type AuctionConfig struct {
	MinIncrement    float64       // minimum amount a new bid must exceed the standing bid by
	CommissionRate  float64       // marketplace cut of the winning amount, e.g. 0.05 = 5%
	MinDuration     time.Duration // shortest allowed bidding window, default 1h
	MaxDuration     time.Duration // longest allowed bidding window, default 30 days
	DefaultDuration time.Duration // used when the seller gives no end time, default 7 days
}

// SchedulerConfig holds the auction clock's tick intervals and retry policy.
type SchedulerConfig struct {
	OpenInterval      time.Duration // scheduled → open scan, default 5s
	CloseInterval     time.Duration // expired-open scan, default 5s
	RetryInterval     time.Duration // stuck-closing rescan, default 30s
	MaxSettleAttempts int           // settlement attempts before manual review, default 5
}

// PaymentConfig holds the payment collaborator's API settings.
type PaymentConfig struct {
	BaseURL   string        // default "https://api.stripe.com"
	SecretKey string        // must be set in production
	Currency  string        // default "usd"
	Timeout   time.Duration // per-call bound, default 10s
}

// RegistrarConfig holds the Namecheap-style registrar API settings.
type RegistrarConfig struct {
	BaseURL  string        // default sandbox endpoint
	APIUser  string
	APIKey   string
	Username string
	ClientIP string
	Timeout  time.Duration // per-call bound, default 10s
}

// RedisConfig holds the optional event-publisher settings.
// An empty Addr disables Redis publishing entirely.
type RedisConfig struct {
	Addr         string // "" = disabled
	Password     string
	DB           int
	EventChannel string // default "market.events"
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	JWT       JWTConfig
	Auction   AuctionConfig
	Scheduler SchedulerConfig
	Payment   PaymentConfig
	Registrar RegistrarConfig
	Redis     RedisConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	// JWT secrets are mandatory
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET must be set"))
	}

	// In production, DB DSN and collaborator credentials must be explicit
	if c.IsProd() {
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
		}
		if c.Payment.SecretKey == "" {
			errs = append(errs, errors.New("PAYMENT_SECRET_KEY must be set in production"))
		}
		if c.Registrar.APIKey == "" {
			errs = append(errs, errors.New("REGISTRAR_API_KEY must be set in production"))
		}
	}

	// Bidding rule sanity checks
	if c.Auction.MinIncrement <= 0 {
		errs = append(errs, fmt.Errorf(
			"AUCTION_MIN_INCREMENT must be positive, got %.4f", c.Auction.MinIncrement))
	}
	if c.Auction.CommissionRate < 0 || c.Auction.CommissionRate >= 1 {
		errs = append(errs, fmt.Errorf(
			"AUCTION_COMMISSION_RATE must be in [0, 1), got %.4f", c.Auction.CommissionRate))
	}
	if c.Auction.MinDuration >= c.Auction.MaxDuration {
		errs = append(errs, fmt.Errorf(
			"AUCTION_MIN_DURATION (%s) must be shorter than AUCTION_MAX_DURATION (%s)",
			c.Auction.MinDuration, c.Auction.MaxDuration))
	}

	if c.Scheduler.MaxSettleAttempts < 1 {
		errs = append(errs, fmt.Errorf(
			"SCHEDULER_MAX_SETTLE_ATTEMPTS must be at least 1, got %d",
			c.Scheduler.MaxSettleAttempts))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "8080"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "alanadi_market"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		AccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		RefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		AccessTTL:     getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:    getDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
	}

	// ── Auction rules ─────────────────────────────────────────────────────────
	increment, err := getFloat("AUCTION_MIN_INCREMENT", 5)
	if err != nil {
		return nil, fmt.Errorf("AUCTION_MIN_INCREMENT: %w", err)
	}
	commission, err := getFloat("AUCTION_COMMISSION_RATE", 0.05)
	if err != nil {
		return nil, fmt.Errorf("AUCTION_COMMISSION_RATE: %w", err)
	}

	cfg.Auction = AuctionConfig{
		MinIncrement:    increment,
		CommissionRate:  commission,
		MinDuration:     getDuration("AUCTION_MIN_DURATION", time.Hour),
		MaxDuration:     getDuration("AUCTION_MAX_DURATION", 30*24*time.Hour),
		DefaultDuration: getDuration("AUCTION_DEFAULT_DURATION", 7*24*time.Hour),
	}

	// ── Scheduler ─────────────────────────────────────────────────────────────
	maxAttempts, err := getInt("SCHEDULER_MAX_SETTLE_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULER_MAX_SETTLE_ATTEMPTS: %w", err)
	}

	cfg.Scheduler = SchedulerConfig{
		OpenInterval:      getDuration("SCHEDULER_OPEN_INTERVAL", 5*time.Second),
		CloseInterval:     getDuration("SCHEDULER_CLOSE_INTERVAL", 5*time.Second),
		RetryInterval:     getDuration("SCHEDULER_RETRY_INTERVAL", 30*time.Second),
		MaxSettleAttempts: maxAttempts,
	}

	// ── Payment collaborator ──────────────────────────────────────────────────
	cfg.Payment = PaymentConfig{
		BaseURL:   getEnv("PAYMENT_BASE_URL", "https://api.stripe.com"),
		SecretKey: getEnv("PAYMENT_SECRET_KEY", ""),
		Currency:  getEnv("PAYMENT_CURRENCY", "usd"),
		Timeout:   getDuration("PAYMENT_TIMEOUT", 10*time.Second),
	}

	// ── Registrar collaborator ────────────────────────────────────────────────
	cfg.Registrar = RegistrarConfig{
		BaseURL:  getEnv("REGISTRAR_BASE_URL", "https://api.sandbox.namecheap.com/xml.response"),
		APIUser:  getEnv("REGISTRAR_API_USER", ""),
		APIKey:   getEnv("REGISTRAR_API_KEY", ""),
		Username: getEnv("REGISTRAR_USERNAME", ""),
		ClientIP: getEnv("REGISTRAR_CLIENT_IP", ""),
		Timeout:  getDuration("REGISTRAR_TIMEOUT", 10*time.Second),
	}

	// ── Redis event publisher (optional) ──────────────────────────────────────
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.Redis = RedisConfig{
		Addr:         getEnv("REDIS_ADDR", ""),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           redisDB,
		EventChannel: getEnv("REDIS_EVENT_CHANNEL", "market.events"),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
