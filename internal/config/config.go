// Package config loads the application configuration from defaults, TOML
// files, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the budget ledger.
type Config struct {
	Ledger     LedgerConfig     `toml:"ledger"`
	Storage    StorageConfig    `toml:"storage"`
	Classifier ClassifierConfig `toml:"classifier"`
	Gemini     GeminiConfig     `toml:"gemini"`
	Server     ServerConfig     `toml:"server"`
	BigQuery   BigQueryConfig   `toml:"bigquery"`
	Notion     NotionConfig     `toml:"notion"`
	Logging    LoggingConfig    `toml:"logging"`
}

// LedgerConfig holds the defaults applied to CSV imports.
type LedgerConfig struct {
	SkipExisting      bool              `toml:"skip_existing"`
	DefaultCategoryID string            `toml:"default_category_id"`
	CategoryByAccount map[string]string `toml:"category_by_account"`

	// ImportDir, when set, is the only directory local CSV sources may be
	// read from.
	ImportDir string `toml:"import_dir"`
}

// StorageConfig selects where the ledger document lives.
type StorageConfig struct {
	Backend string `toml:"backend"` // "file" or "gcs"
	Path    string `toml:"path"`
	GCSURI  string `toml:"gcs_uri"`
}

// ClassifierConfig tunes the suggestion engine and the batch worker.
type ClassifierConfig struct {
	MaxExamples  int    `toml:"max_examples"`
	KeywordsFile string `toml:"keywords_file"` // optional YAML override of the built-in table
	LogBuffer    int    `toml:"log_buffer"`
	ResultBuffer int    `toml:"result_buffer"`
	StopWait     string `toml:"stop_wait"`
	AILogLimit   int    `toml:"ai_log_limit"`
}

// GetStopWait parses and returns the stop wait duration
func (c *ClassifierConfig) GetStopWait() time.Duration {
	d, err := time.ParseDuration(c.StopWait)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration. An empty APIKey disables the
// remote stage.
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// AllowedOrigins lists the browser origins allowed by CORS. Empty
	// allows any origin.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Addr is host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BigQueryConfig holds the ledger export destination.
type BigQueryConfig struct {
	ProjectID string `toml:"project_id"`
	Dataset   string `toml:"dataset"`
}

// NotionConfig holds the Notion mirror settings.
type NotionConfig struct {
	Token      string `toml:"token"`
	DatabaseID string `toml:"database_id"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefault returns a Config with sensible defaults
func NewDefault() *Config {
	return &Config{
		Ledger: LedgerConfig{
			SkipExisting: true,
		},
		Storage: StorageConfig{
			Backend: "file",
			Path:    "budget_data.json",
		},
		Classifier: ClassifierConfig{
			MaxExamples:  12,
			LogBuffer:    256,
			ResultBuffer: 64,
			StopWait:     "1s",
			AILogLimit:   500,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.2,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		BigQuery: BigQueryConfig{
			Dataset: "budget",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from files with environment overrides. Missing
// files are skipped; later files override earlier ones. A .env file in the
// working directory is loaded into the environment first, without
// overriding variables that are already set.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	config := NewDefault()
	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("BUDGET_DATA_FILE"); v != "" {
		config.Storage.Path = v
	}
	if v := os.Getenv("BUDGET_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("BUDGET_GCS_URI"); v != "" {
		config.Storage.GCSURI = v
	}

	if v := os.Getenv("BUDGET_IMPORT_DIR"); v != "" {
		config.Ledger.ImportDir = v
	}

	if v := os.Getenv("BUDGET_MAX_EXAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Classifier.MaxExamples = n
		}
	}
	if v := os.Getenv("BUDGET_KEYWORDS_FILE"); v != "" {
		config.Classifier.KeywordsFile = v
	}

	if key := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY", "BUDGET_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if v := os.Getenv("BUDGET_GEMINI_MODEL"); v != "" {
		config.Gemini.Model = v
	}

	if v := os.Getenv("BUDGET_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("BUDGET_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Server.Port = p
		}
	}
	if v := os.Getenv("BUDGET_ALLOWED_ORIGINS"); v != "" {
		config.Server.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.Server.AllowedOrigins = append(config.Server.AllowedOrigins, origin)
			}
		}
	}

	if v := firstEnv("BUDGET_BQ_PROJECT", "GOOGLE_CLOUD_PROJECT"); v != "" {
		config.BigQuery.ProjectID = v
	}
	if v := os.Getenv("BUDGET_BQ_DATASET"); v != "" {
		config.BigQuery.Dataset = v
	}

	if v := firstEnv("BUDGET_NOTION_TOKEN", "NOTION_TOKEN"); v != "" {
		config.Notion.Token = v
	}
	if v := os.Getenv("BUDGET_NOTION_DATABASE_ID"); v != "" {
		config.Notion.DatabaseID = v
	}

	if v := os.Getenv("BUDGET_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("BUDGET_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case "file":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the file backend"))
		}
	case "gcs":
		if !strings.HasPrefix(c.Storage.GCSURI, "gs://") {
			errs = append(errs, fmt.Errorf("storage.gcs_uri must be a gs:// URI, got %q", c.Storage.GCSURI))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be \"file\" or \"gcs\", got %q", c.Storage.Backend))
	}

	if c.Classifier.MaxExamples <= 0 {
		errs = append(errs, fmt.Errorf("classifier.max_examples must be positive, got %d", c.Classifier.MaxExamples))
	}
	if c.Classifier.LogBuffer <= 0 || c.Classifier.ResultBuffer <= 0 {
		errs = append(errs, errors.New("classifier buffers must be positive"))
	}
	if c.Classifier.AILogLimit <= 0 {
		errs = append(errs, fmt.Errorf("classifier.ai_log_limit must be positive, got %d", c.Classifier.AILogLimit))
	}
	if c.Classifier.StopWait != "" {
		if d, err := time.ParseDuration(c.Classifier.StopWait); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("classifier.stop_wait must be a positive duration, got %q", c.Classifier.StopWait))
		}
	}

	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		errs = append(errs, fmt.Errorf("gemini.temperature must be within [0, 2], got %v", c.Gemini.Temperature))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	return errors.Join(errs...)
}
