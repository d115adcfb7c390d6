package application

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	indexing "stats-indexer/internal/indexing/domain"
)

// DatabaseConfig defines the relational source.
type DatabaseConfig struct {
	Driver         string `yaml:"driver"`
	DSN            string `yaml:"dsn"`
	ProgramsTable  string `yaml:"programs_table"`
	StatsTable     string `yaml:"stats_table"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	ConnectTimeout string `yaml:"connect_timeout"`
}

// RatesConfig defines the exchange rate source.
type RatesConfig struct {
	BaseURL        string `yaml:"base_url"`
	AccessKey      string `yaml:"access_key"`
	BaseCurrency   string `yaml:"base_currency"`
	AnchorCurrency string `yaml:"anchor_currency"`
	Timeout        string `yaml:"timeout"`
	Timezone       string `yaml:"timezone"`
}

// ElasticsearchConfig defines the bulk sink.
type ElasticsearchConfig struct {
	Addresses   []string `yaml:"addresses"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	APIKey      string   `yaml:"api_key"`
	IndexPrefix string   `yaml:"index_prefix"`
	Partition   string   `yaml:"partition"`
	Timeout     string   `yaml:"timeout"`
}

// RunConfig defines run behaviour.
type RunConfig struct {
	LookbackDays int    `yaml:"lookback_days"`
	Concurrency  int    `yaml:"concurrency"`
	DailyAt      string `yaml:"daily_at"`
	ReportDir    string `yaml:"report_dir"`
}

// NotifyConfig defines failure alerts.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// MetricsConfig defines metrics export.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	JobName        string `yaml:"job_name"`
}

// HTTPConfig defines the serve mode listener.
type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Config defines stats-indexer configuration.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Rates         RatesConfig         `yaml:"rates"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Run           RunConfig           `yaml:"run"`
	Notify        NotifyConfig        `yaml:"notify"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	HTTP          HTTPConfig          `yaml:"http"`
}

// LoadConfig loads config from the yaml file named by STATS_INDEXER_CONFIG,
// then fills unset values from the environment and defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if path := os.Getenv("STATS_INDEXER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setDefault(&c.Database.Driver, getenvDefault("DB_DRIVER", "pgx"))
	setDefault(&c.Database.DSN, os.Getenv("DATABASE_URL"))
	setDefault(&c.Database.ProgramsTable, getenvDefault("PROGRAMS_TABLE", "NsPrograms"))
	setDefault(&c.Database.StatsTable, getenvDefault("STATS_TABLE", "NsStats"))
	setDefault(&c.Database.ConnectTimeout, "10s")
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = getenvIntDefault("DB_MAX_OPEN_CONNS", 4)
	}

	setDefault(&c.Rates.BaseURL, getenvDefault("RATES_BASE_URL", "https://api.exchangeratesapi.io/v1"))
	setDefault(&c.Rates.AccessKey, os.Getenv("RATES_ACCESS_KEY"))
	setDefault(&c.Rates.BaseCurrency, getenvDefault("BASE_CURRENCY", "SEK"))
	setDefault(&c.Rates.AnchorCurrency, getenvDefault("RATES_ANCHOR_CURRENCY", "EUR"))
	setDefault(&c.Rates.Timeout, getenvDefault("RATES_TIMEOUT", "10s"))
	setDefault(&c.Rates.Timezone, getenvDefault("INDEX_TIMEZONE", "UTC"))

	if len(c.Elasticsearch.Addresses) == 0 {
		c.Elasticsearch.Addresses = splitCSV(getenvDefault("ELASTICSEARCH_URL", "http://localhost:9200"))
	}
	setDefault(&c.Elasticsearch.Username, os.Getenv("ELASTICSEARCH_USERNAME"))
	setDefault(&c.Elasticsearch.Password, os.Getenv("ELASTICSEARCH_PASSWORD"))
	setDefault(&c.Elasticsearch.APIKey, os.Getenv("ELASTICSEARCH_API_KEY"))
	setDefault(&c.Elasticsearch.IndexPrefix, getenvDefault("INDEX_PREFIX", "wdn-allan-nifty-stats"))
	setDefault(&c.Elasticsearch.Partition, getenvDefault("INDEX_PARTITION", string(indexing.PartitionMonthly)))
	setDefault(&c.Elasticsearch.Timeout, getenvDefault("ELASTICSEARCH_TIMEOUT", "60s"))

	if c.Run.LookbackDays == 0 {
		c.Run.LookbackDays = getenvIntDefault("LOOKBACK_DAYS", DefaultLookbackDays)
	}
	if c.Run.Concurrency == 0 {
		c.Run.Concurrency = getenvIntDefault("INDEX_CONCURRENCY", defaultConcurrency)
	}
	setDefault(&c.Run.DailyAt, getenvDefault("INDEX_DAILY_AT", "03:00"))
	setDefault(&c.Run.ReportDir, os.Getenv("INDEX_REPORT_DIR"))

	setDefault(&c.Notify.WebhookURL, os.Getenv("INDEX_WEBHOOK_URL"))

	setDefault(&c.Metrics.PushgatewayURL, os.Getenv("PUSHGATEWAY_URL"))
	setDefault(&c.Metrics.JobName, getenvDefault("METRICS_JOB_NAME", "stats_indexer"))

	setDefault(&c.HTTP.Addr, getenvDefault("HTTP_ADDR", ":8080"))
	setDefault(&c.HTTP.JWTSecret, os.Getenv("AUTH_JWT_SECRET"))
}

// Validate checks required values and formats.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "pgx", "mysql":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: database dsn required")
	}
	if c.Rates.BaseCurrency == "" {
		return errors.New("config: base currency required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	for name, value := range map[string]string{
		"rates.timeout":            c.Rates.Timeout,
		"elasticsearch.timeout":    c.Elasticsearch.Timeout,
		"database.connect_timeout": c.Database.ConnectTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return errors.New("config: elasticsearch address required")
	}
	if c.Elasticsearch.IndexPrefix == "" {
		return indexing.ErrEmptyIndexPrefix
	}
	if _, err := indexing.ParsePartitioning(c.Elasticsearch.Partition); err != nil {
		return fmt.Errorf("config: partition %q: %w", c.Elasticsearch.Partition, err)
	}
	if c.Run.LookbackDays < 1 {
		return errors.New("config: lookback_days must be positive")
	}
	if c.Run.Concurrency < 1 {
		return errors.New("config: concurrency must be positive")
	}
	if _, _, err := parseDailyAt(c.Run.DailyAt); err != nil {
		return fmt.Errorf("config: daily_at %q: %w", c.Run.DailyAt, err)
	}
	return nil
}

// Location returns the time zone used for "today".
func (c Config) Location() (*time.Location, error) {
	if c.Rates.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Rates.Timezone)
}

// Partitioning returns the parsed partition granularity.
func (c Config) Partitioning() indexing.Partitioning {
	p, err := indexing.ParsePartitioning(c.Elasticsearch.Partition)
	if err != nil {
		return indexing.PartitionMonthly
	}
	return p
}

// RatesTimeout returns the rate source timeout.
func (c Config) RatesTimeout() time.Duration {
	return durationOr(c.Rates.Timeout, 10*time.Second)
}

// ElasticsearchTimeout returns the bulk request timeout.
func (c Config) ElasticsearchTimeout() time.Duration {
	return durationOr(c.Elasticsearch.Timeout, 60*time.Second)
}

// ConnectTimeout returns the database ping timeout.
func (c Config) ConnectTimeout() time.Duration {
	return durationOr(c.Database.ConnectTimeout, 10*time.Second)
}

func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func setDefault(target *string, value string) {
	if *target == "" {
		*target = value
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
