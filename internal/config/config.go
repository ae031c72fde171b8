package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// Storage
	DataDir      string
	ArchiveDir   string
	AuditLogPath string

	// HTTP server
	HTTPAddr string

	// AMQP (mutation events; disabled when URL is empty)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	SheetsSpreadsheetID string
	SheetsSheetName     string

	// Mirror worker
	MirrorBatchSize int
	MirrorInterval  time.Duration

	// HTTP read cache
	CacheTTL  time.Duration
	CacheSize int

	LogLevel string
}

func Default() *Config {
	return &Config{
		DataDir:      "data",
		ArchiveDir:   "archive",
		AuditLogPath: "",

		HTTPAddr: ":8080",

		AMQPURL:      "",
		AMQPExchange: "tally.events",
		AMQPQueue:    "tally.mirror",

		SheetsSpreadsheetID: "",
		SheetsSheetName:     "Ledger",

		MirrorBatchSize: 50,
		MirrorInterval:  5 * time.Minute,

		CacheTTL:  5 * time.Minute,
		CacheSize: 256,

		LogLevel: "info",
	}
}

// Load builds the configuration in three layers: defaults, then the optional
// TOML file, then TALLY_* environment variables.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom is Load with an explicit config file path. An empty or missing
// path skips the file layer.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// DefaultPath returns the config file location: TALLY_CONFIG if set,
// otherwise <user config dir>/tally/config.toml.
func DefaultPath() string {
	if p := os.Getenv("TALLY_CONFIG"); p != "" {
		return p
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "tally", "config.toml")
}

// duration lets the TOML file use strings like "30s" or "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type fileConfig struct {
	DataDir      string `toml:"data_dir"`
	ArchiveDir   string `toml:"archive_dir"`
	AuditLogPath string `toml:"audit_log_path"`

	HTTPAddr string `toml:"http_addr"`

	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	SheetsSpreadsheetID string `toml:"sheets_spreadsheet_id"`
	SheetsSheetName     string `toml:"sheets_sheet_name"`

	MirrorBatchSize int      `toml:"mirror_batch_size"`
	MirrorInterval  duration `toml:"mirror_interval"`

	CacheTTL  duration `toml:"cache_ttl"`
	CacheSize int      `toml:"cache_size"`

	LogLevel string `toml:"log_level"`
}

func (c *Config) applyFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	// Seed the file struct with the current values so absent keys keep them.
	fc := fileConfig{
		DataDir:             c.DataDir,
		ArchiveDir:          c.ArchiveDir,
		AuditLogPath:        c.AuditLogPath,
		HTTPAddr:            c.HTTPAddr,
		AMQPURL:             c.AMQPURL,
		AMQPExchange:        c.AMQPExchange,
		AMQPQueue:           c.AMQPQueue,
		SheetsSpreadsheetID: c.SheetsSpreadsheetID,
		SheetsSheetName:     c.SheetsSheetName,
		MirrorBatchSize:     c.MirrorBatchSize,
		MirrorInterval:      duration{c.MirrorInterval},
		CacheTTL:            duration{c.CacheTTL},
		CacheSize:           c.CacheSize,
		LogLevel:            c.LogLevel,
	}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.DataDir = fc.DataDir
	c.ArchiveDir = fc.ArchiveDir
	c.AuditLogPath = fc.AuditLogPath
	c.HTTPAddr = fc.HTTPAddr
	c.AMQPURL = fc.AMQPURL
	c.AMQPExchange = fc.AMQPExchange
	c.AMQPQueue = fc.AMQPQueue
	c.SheetsSpreadsheetID = fc.SheetsSpreadsheetID
	c.SheetsSheetName = fc.SheetsSheetName
	c.MirrorBatchSize = fc.MirrorBatchSize
	c.MirrorInterval = fc.MirrorInterval.Duration
	c.CacheTTL = fc.CacheTTL.Duration
	c.CacheSize = fc.CacheSize
	c.LogLevel = fc.LogLevel
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("TALLY_DATA_DIR", c.DataDir)
	c.ArchiveDir = getEnv("TALLY_ARCHIVE_DIR", c.ArchiveDir)
	c.AuditLogPath = getEnv("TALLY_AUDIT_LOG", c.AuditLogPath)

	c.HTTPAddr = getEnv("TALLY_HTTP_ADDR", c.HTTPAddr)

	c.AMQPURL = getEnv("TALLY_AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("TALLY_AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("TALLY_AMQP_QUEUE", c.AMQPQueue)

	c.SheetsSpreadsheetID = getEnv("TALLY_SHEETS_SPREADSHEET_ID", c.SheetsSpreadsheetID)
	c.SheetsSheetName = getEnv("TALLY_SHEETS_SHEET_NAME", c.SheetsSheetName)

	c.MirrorBatchSize = getEnvInt("TALLY_MIRROR_BATCH_SIZE", c.MirrorBatchSize)
	c.MirrorInterval = getEnvDuration("TALLY_MIRROR_INTERVAL", c.MirrorInterval)

	c.CacheTTL = getEnvDuration("TALLY_CACHE_TTL", c.CacheTTL)
	c.CacheSize = getEnvInt("TALLY_CACHE_SIZE", c.CacheSize)

	c.LogLevel = getEnv("TALLY_LOG_LEVEL", c.LogLevel)
}

// Validate checks the configuration and returns every problem in one error.
func (c *Config) Validate() error {
	var errors []string

	if c.DataDir == "" {
		errors = append(errors, "data dir cannot be empty")
	} else if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		errors = append(errors, fmt.Sprintf("cannot create data dir '%s': %v", c.DataDir, err))
	}

	if c.ArchiveDir == "" {
		errors = append(errors, "archive dir cannot be empty")
	} else if err := os.MkdirAll(c.ArchiveDir, 0755); err != nil {
		errors = append(errors, fmt.Sprintf("cannot create archive dir '%s': %v", c.ArchiveDir, err))
	}

	if c.HTTPAddr == "" {
		errors = append(errors, "http addr cannot be empty")
	} else if _, portStr, err := net.SplitHostPort(c.HTTPAddr); err != nil {
		errors = append(errors, fmt.Sprintf("invalid http addr '%s': %v", c.HTTPAddr, err))
	} else if port, err := strconv.Atoi(portStr); err != nil {
		errors = append(errors, fmt.Sprintf("invalid http port '%s': must be a number", portStr))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid http port %d: must be between 1 and 65535", port))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsSpreadsheetID != "" && c.SheetsSheetName == "" {
		errors = append(errors, "sheet name cannot be empty when a spreadsheet ID is provided")
	}

	if c.MirrorBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid mirror batch size %d: must be at least 1", c.MirrorBatchSize))
	} else if c.MirrorBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid mirror batch size %d: must be at most 1000", c.MirrorBatchSize))
	}

	if c.MirrorInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must be at least 1 second", c.MirrorInterval))
	} else if c.MirrorInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must be at most 24 hours", c.MirrorInterval))
	}

	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	isValidLevel := false
	for _, level := range validLevels {
		if c.LogLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// MirrorEnabled reports whether the Sheets mirror is fully configured.
func (c *Config) MirrorEnabled() bool {
	return c.SheetsSpreadsheetID != "" && c.SheetsSheetName != ""
}

// EventsEnabled reports whether AMQP mutation events are configured.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
