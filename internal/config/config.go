package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

// Population sources.
const (
	PopulationCSV      = "csv"
	PopulationPostgres = "postgres"
)

// Ratio sources.
const (
	RatiosSpreadsheet = "spreadsheet"
	RatiosPage        = "page"
	RatiosFirecrawl   = "firecrawl"
	RatiosNone        = "none"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Hermes     HermesConfig     `yaml:"hermes"`
	Population PopulationConfig `yaml:"population"`
	Ratios     RatiosConfig     `yaml:"ratios"`
	Ticker     TickerConfig     `yaml:"ticker"`
	Audit      AuditConfig      `yaml:"audit"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
	RateLimit   int    `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type PopulationConfig struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
	Cache  bool   `yaml:"cache"`
	// RefreshIntervalMs reloads a cached population periodically; 0 disables.
	RefreshIntervalMs int `yaml:"refresh_interval_ms"`
}

type RatiosConfig struct {
	Source          string `yaml:"source"`
	SpreadsheetPath string `yaml:"spreadsheet_path"`
	PageURL         string `yaml:"page_url"`
	FirecrawlURL    string `yaml:"firecrawl_url"`
	FirecrawlAPIKey string `yaml:"firecrawl_api_key"`
	TimeoutMs       int    `yaml:"timeout_ms"`
}

type TickerConfig struct {
	SearchURL      string `yaml:"search_url"`
	ExchangeSuffix string `yaml:"exchange_suffix"`
	AltSuffix      string `yaml:"alt_suffix"`
	TimeoutMs      int    `yaml:"timeout_ms"`
}

type AuditConfig struct {
	Dir          string `yaml:"dir"`
	StoreEnabled bool   `yaml:"store_enabled"`
}

type ScoringConfig struct {
	Weights scoring.WeightTable `yaml:"weights"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) PopulationRefreshInterval() time.Duration {
	return time.Duration(c.Population.RefreshIntervalMs) * time.Millisecond
}

func (c *Config) RatiosTimeout() time.Duration {
	return time.Duration(c.Ratios.TimeoutMs) * time.Millisecond
}

func (c *Config) TickerTimeout() time.Duration {
	return time.Duration(c.Ticker.TimeoutMs) * time.Millisecond
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Population.Source {
	case PopulationCSV:
		if c.Population.Path == "" {
			return fmt.Errorf("population.path is required for the csv source")
		}
	case PopulationPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres population source")
		}
	default:
		return fmt.Errorf("unknown population source %q", c.Population.Source)
	}

	switch c.Ratios.Source {
	case RatiosSpreadsheet:
		if c.Ratios.SpreadsheetPath == "" {
			return fmt.Errorf("ratios.spreadsheet_path is required for the spreadsheet source")
		}
	case RatiosPage:
		if c.Ratios.PageURL == "" {
			return fmt.Errorf("ratios.page_url is required for the page source")
		}
	case RatiosFirecrawl:
		if c.Ratios.FirecrawlURL == "" || c.Ratios.PageURL == "" {
			return fmt.Errorf("ratios.firecrawl_url and ratios.page_url are required for the firecrawl source")
		}
	case RatiosNone:
	default:
		return fmt.Errorf("unknown ratios source %q", c.Ratios.Source)
	}

	if c.Audit.StoreEnabled && c.Database.URL == "" {
		return fmt.Errorf("audit.store_enabled requires database.url")
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
			RateLimit:   120,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Population: PopulationConfig{
			Source: PopulationCSV,
			Path:   "data/final_data.csv",
			Cache:  true,
		},
		Ratios: RatiosConfig{
			Source:          RatiosSpreadsheet,
			SpreadsheetPath: "data/ratios.csv",
			PageURL:         "https://www.investing.com/equities/{slug}-ratios",
			FirecrawlURL:    "https://api.firecrawl.dev",
			TimeoutMs:       30000,
		},
		Ticker: TickerConfig{
			SearchURL:      "https://query2.finance.yahoo.com/v1/finance/search",
			ExchangeSuffix: ".NS",
			AltSuffix:      ".BO",
			TimeoutMs:      10000,
		},
		Audit: AuditConfig{
			Dir: "data/audit",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// A weights table in the file replaces the defaults as a whole.
	if len(cfg.Scoring.Weights.Financial) == 0 && len(cfg.Scoring.Weights.Repayment) == 0 {
		cfg.Scoring.Weights = scoring.DefaultWeights()
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RISKSCORE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("RISKSCORE_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("RISKSCORE_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("RISKSCORE_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("RISKSCORE_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("RISKSCORE_POPULATION_SOURCE"); v != "" {
		cfg.Population.Source = v
	}
	if v := os.Getenv("RISKSCORE_POPULATION_PATH"); v != "" {
		cfg.Population.Path = v
	}
	if v := os.Getenv("RISKSCORE_POPULATION_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Population.Cache = b
		}
	}
	if v := os.Getenv("RISKSCORE_POPULATION_REFRESH_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Population.RefreshIntervalMs = n
		}
	}
	if v := os.Getenv("RISKSCORE_RATIOS_SOURCE"); v != "" {
		cfg.Ratios.Source = v
	}
	if v := os.Getenv("RISKSCORE_RATIOS_SPREADSHEET_PATH"); v != "" {
		cfg.Ratios.SpreadsheetPath = v
	}
	if v := os.Getenv("RISKSCORE_RATIOS_PAGE_URL"); v != "" {
		cfg.Ratios.PageURL = v
	}
	if v := os.Getenv("RISKSCORE_FIRECRAWL_URL"); v != "" {
		cfg.Ratios.FirecrawlURL = v
	}
	if v := os.Getenv("RISKSCORE_FIRECRAWL_API_KEY"); v != "" {
		cfg.Ratios.FirecrawlAPIKey = v
	}
	if v := os.Getenv("RISKSCORE_TICKER_SEARCH_URL"); v != "" {
		cfg.Ticker.SearchURL = v
	}
	if v := os.Getenv("RISKSCORE_TICKER_SUFFIX"); v != "" {
		cfg.Ticker.ExchangeSuffix = v
	}
	if v := os.Getenv("RISKSCORE_AUDIT_DIR"); v != "" {
		cfg.Audit.Dir = v
	}
	if v := os.Getenv("RISKSCORE_AUDIT_STORE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Audit.StoreEnabled = b
		}
	}
	if v := os.Getenv("RISKSCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RISKSCORE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
