// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/modules/ordering"
	"github.com/aristath/restock/internal/modules/strategy"
	"github.com/aristath/restock/internal/modules/workhours"
	"github.com/aristath/restock/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for state, archives and the ledger (always absolute)
	LogLevel  string
	LogPretty bool
	Port      int
	DevMode   bool

	Timezone string
	Location *time.Location

	AutoOrder      bool
	MaxOrderAmount float64
	// MaxSubOrderAmount bounds each order of a split; zero means MaxOrderAmount
	MaxSubOrderAmount float64
	MinConfidence     int

	ActiveStartHour int
	ActiveEndHour   int
	ActiveWeekdays  []time.Weekday
	Holidays        []string

	JitterMin         time.Duration
	JitterMax         time.Duration
	InactiveSleep     time.Duration
	SplitOrderDelay   time.Duration
	BackorderCooldown time.Duration

	ProductsFile string
	Products     []domain.ProductConfig
	Selectors    ordering.Selectors

	Supplier SupplierConfig
	Browser  BrowserConfig

	ScreenshotDir        string
	R2                   R2Config
	ArchiveRetentionDays int
}

// SupplierConfig holds the web shop endpoints and account
type SupplierConfig struct {
	BaseURL        string
	Username       string
	Password       string
	LoginPath      string
	CartPath       string
	BackordersPath string
}

// LoginURL returns the absolute login page URL
func (s SupplierConfig) LoginURL() string { return s.url(s.LoginPath) }

// CartURL returns the absolute cart page URL
func (s SupplierConfig) CartURL() string { return s.url(s.CartPath) }

// BackordersURL returns the absolute backorder list URL
func (s SupplierConfig) BackordersURL() string { return s.url(s.BackordersPath) }

func (s SupplierConfig) url(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + path
}

// BrowserConfig holds Chrome launch settings
type BrowserConfig struct {
	Headless  bool
	RemoteURL string
	BinPath   string
}

// R2Config holds the archive bucket credentials
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Enabled reports whether every credential is present
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.SecretAccessKey != "" && r.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	dataDir := getEnv("RESTOCK_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", absDataDir, err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		Port:      getEnvAsInt("HTTP_PORT", 8080),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		Timezone:  getEnv("TIMEZONE", "Europe/Stockholm"),

		AutoOrder:         getEnvAsBool("AUTO_ORDER_ENABLED", false),
		MaxOrderAmount:    getEnvAsFloat("MAX_ORDER_AMOUNT", 250000),
		MaxSubOrderAmount: getEnvAsFloat("MAX_SUBORDER_AMOUNT", 0),
		MinConfidence:     getEnvAsInt("MIN_CONFIDENCE", 0),

		ActiveStartHour: getEnvAsInt("ACTIVE_START_HOUR", 7),
		ActiveEndHour:   getEnvAsInt("ACTIVE_END_HOUR", 18),
		Holidays:        workhours.DefaultHolidays,

		JitterMin:         getEnvAsDuration("POLL_JITTER_MIN", 8*time.Second),
		JitterMax:         getEnvAsDuration("POLL_JITTER_MAX", 12*time.Second),
		InactiveSleep:     getEnvAsDuration("INACTIVE_SLEEP", 30*time.Minute),
		SplitOrderDelay:   getEnvAsDuration("SPLIT_ORDER_DELAY", 30*time.Second),
		BackorderCooldown: getEnvAsDuration("BACKORDER_COOLDOWN", 180*time.Second),

		ProductsFile: getEnv("PRODUCTS_FILE", ""),

		Supplier: SupplierConfig{
			BaseURL:        getEnv("SUPPLIER_BASE_URL", "https://oriola4care.oriola-kd.com"),
			Username:       getEnv("SUPPLIER_USERNAME", ""),
			Password:       getEnv("SUPPLIER_PASSWORD", ""),
			LoginPath:      getEnv("SUPPLIER_LOGIN_PATH", "/login"),
			CartPath:       getEnv("SUPPLIER_CART_PATH", "/cart"),
			BackordersPath: getEnv("SUPPLIER_BACKORDERS_PATH", "/my-account/backorders"),
		},
		Browser: BrowserConfig{
			Headless:  getEnvAsBool("BROWSER_HEADLESS", true),
			RemoteURL: getEnv("BROWSER_REMOTE_URL", ""),
			BinPath:   getEnv("BROWSER_BIN", ""),
		},

		ScreenshotDir: getEnv("SCREENSHOT_DIR", filepath.Join(absDataDir, "screenshots")),
		R2: R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("R2_BUCKET", ""),
		},
		ArchiveRetentionDays: getEnvAsInt("ARCHIVE_RETENTION_DAYS", 90),
	}

	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	cfg.ActiveWeekdays, err = parseWeekdays(getEnv("ACTIVE_WEEKDAYS", "1,2,3,4,5"))
	if err != nil {
		return nil, err
	}
	if holidays := utils.ParseCSV(os.Getenv("HOLIDAYS")); holidays != nil {
		cfg.Holidays = holidays
	}

	products, err := LoadProducts(cfg.ProductsFile)
	if err != nil {
		return nil, err
	}
	cfg.Products = products.Products
	cfg.Selectors = products.Selectors
	if err := applyProductOverrides(cfg.Products); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is consistent
func (c *Config) Validate() error {
	if c.ActiveEndHour <= c.ActiveStartHour {
		return fmt.Errorf("ACTIVE_END_HOUR (%d) must be after ACTIVE_START_HOUR (%d)", c.ActiveEndHour, c.ActiveStartHour)
	}
	if c.ActiveStartHour < 0 || c.ActiveEndHour > 24 {
		return fmt.Errorf("active hours must be within 0-24")
	}
	if c.JitterMin > c.JitterMax {
		return fmt.Errorf("POLL_JITTER_MIN (%s) exceeds POLL_JITTER_MAX (%s)", c.JitterMin, c.JitterMax)
	}
	if c.MaxOrderAmount <= 0 {
		return fmt.Errorf("MAX_ORDER_AMOUNT must be positive")
	}
	if c.MaxSubOrderAmount < 0 || c.MaxSubOrderAmount > c.MaxOrderAmount {
		return fmt.Errorf("MAX_SUBORDER_AMOUNT must be within 0-%.2f", c.MaxOrderAmount)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("MIN_CONFIDENCE must be within 0-100")
	}
	if len(c.Products) == 0 {
		return fmt.Errorf("no products configured")
	}

	seen := make(map[string]bool, len(c.Products))
	for i, p := range c.Products {
		if p.ID == "" {
			return fmt.Errorf("product %d has no id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate product id %q", p.ID)
		}
		seen[p.ID] = true
		if p.URL == "" {
			return fmt.Errorf("product %q has no url", p.ID)
		}
		if p.ReductionDivisor <= 0 {
			return fmt.Errorf("product %q: reduction divisor must be positive", p.ID)
		}
		if p.MinQuantity <= 0 {
			return fmt.Errorf("product %q: min quantity must be positive", p.ID)
		}
	}
	return nil
}

// Schedule builds the active-hours gate configuration
func (c *Config) Schedule() workhours.Config {
	cfg := workhours.DefaultConfig()
	cfg.Location = c.Location
	cfg.Weekdays = c.ActiveWeekdays
	cfg.Holidays = c.Holidays
	cfg.StartHour = c.ActiveStartHour
	cfg.EndHour = c.ActiveEndHour
	cfg.JitterMin = c.JitterMin
	cfg.JitterMax = c.JitterMax
	cfg.InactiveSleep = c.InactiveSleep
	return cfg
}

// Budget returns the spending limits the planner splits orders against
func (c *Config) Budget() strategy.Budget {
	return strategy.Budget{Total: c.MaxOrderAmount, PerOrder: c.MaxSubOrderAmount}
}

// StatePath is the daily state file
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "daily-state.json")
}

// ArchiveDir holds rolled-over daily state files
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.DataDir, "archive")
}

func parseWeekdays(s string) ([]time.Weekday, error) {
	values, err := utils.ParseIntCSV(s)
	if err != nil {
		return nil, fmt.Errorf("invalid ACTIVE_WEEKDAYS: %w", err)
	}
	days := make([]time.Weekday, 0, len(values))
	for _, v := range values {
		if v < 0 || v > 6 {
			return nil, fmt.Errorf("invalid ACTIVE_WEEKDAYS: %d is not a weekday (0=Sunday..6=Saturday)", v)
		}
		days = append(days, time.Weekday(v))
	}
	return days, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("30s", "2m") or plain seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
