package application

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	indexing "stats-indexer/internal/indexing/domain"
)

func TestLoadConfigFromYAMLWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexer.yaml")
	content := `
database:
  driver: mysql
  dsn: "user:pass@tcp(localhost:3306)/stats"
rates:
  access_key: secret
  base_currency: usd
elasticsearch:
  addresses: ["http://es-1:9200", "http://es-2:9200"]
  index_prefix: nifty-stats
  partition: daily
run:
  lookback_days: 7
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STATS_INDEXER_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Database.Driver != "mysql" || cfg.Database.ProgramsTable != "NsPrograms" || cfg.Database.StatsTable != "NsStats" {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if len(cfg.Elasticsearch.Addresses) != 2 {
		t.Fatalf("expected 2 addresses, got %v", cfg.Elasticsearch.Addresses)
	}
	if cfg.Partitioning() != indexing.PartitionDaily {
		t.Fatalf("expected daily partitioning, got %s", cfg.Partitioning())
	}
	if cfg.Run.LookbackDays != 7 || cfg.Run.Concurrency != defaultConcurrency {
		t.Fatalf("unexpected run config: %+v", cfg.Run)
	}
	if cfg.Rates.AnchorCurrency != "EUR" || cfg.Run.DailyAt != "03:00" {
		t.Fatalf("expected defaults, got %+v %+v", cfg.Rates, cfg.Run)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STATS_INDEXER_CONFIG", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/stats")
	t.Setenv("ELASTICSEARCH_URL", "http://a:9200, http://b:9200")
	t.Setenv("LOOKBACK_DAYS", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Database.Driver != "pgx" || cfg.Database.DSN != "postgres://localhost/stats" {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Run.LookbackDays != 3 {
		t.Fatalf("expected lookback 3, got %d", cfg.Run.LookbackDays)
	}
	if cfg.Elasticsearch.Addresses[1] != "http://b:9200" {
		t.Fatalf("unexpected addresses %v", cfg.Elasticsearch.Addresses)
	}
	if cfg.Elasticsearch.IndexPrefix != "wdn-allan-nifty-stats" || cfg.Rates.BaseCurrency != "SEK" {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Elasticsearch, cfg.Rates)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("STATS_INDEXER_CONFIG", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/stats")
	base, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	cases := map[string]func(*Config){
		"driver":    func(c *Config) { c.Database.Driver = "sqlite" },
		"dsn":       func(c *Config) { c.Database.DSN = "" },
		"partition": func(c *Config) { c.Elasticsearch.Partition = "hourly" },
		"timezone":  func(c *Config) { c.Rates.Timezone = "Mars/Olympus" },
		"daily_at":  func(c *Config) { c.Run.DailyAt = "25:00" },
		"timeout":   func(c *Config) { c.Rates.Timeout = "soon" },
	}
	for name, mutate := range cases {
		cfg := base
		cfg.Elasticsearch.Addresses = append([]string(nil), base.Elasticsearch.Addresses...)
		mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
		if !strings.HasPrefix(err.Error(), "config:") {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}
