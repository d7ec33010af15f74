package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds hatescan configuration.
type Config struct {
	Lexicon     LexiconConfig     `yaml:"lexicon"`
	Rules       RulesConfig       `yaml:"rules"`
	Model       ModelConfig       `yaml:"model"`
	Language    LanguageConfig    `yaml:"language"`
	Translation TranslationConfig `yaml:"translation"`
	Logging     LoggingConfig     `yaml:"logging"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Events      EventsConfig      `yaml:"events"`
}

type LexiconConfig struct {
	Path string `yaml:"path"` // newline-delimited terms, e.g. "data/hate_keywords.txt"
}

type RulesConfig struct {
	// Path to a YAML rule table. Empty means the built-in table.
	Path string `yaml:"path"`
}

type ModelConfig struct {
	Dir       string `yaml:"dir"`       // artifact dir (vectorizer + model, optional manifest/state)
	Backend   string `yaml:"backend"`   // native | onnx (manifest wins when present)
	Disabled  bool   `yaml:"disabled"`  // run rule-based only
	OnnxLib   string `yaml:"onnx_lib"`  // explicit onnxruntime shared library
	Stopwords *bool  `yaml:"stopwords"` // default preprocessing when no manifest
	Lemmatize *bool  `yaml:"lemmatize"` // default preprocessing when no manifest
}

type LanguageConfig struct {
	Detector  string   `yaml:"detector"`  // lingua | whatlang | none
	Languages []string `yaml:"languages"` // ISO-639-1 codes to restrict lingua to; unset = DefaultLanguages, [] = all
}

// DefaultLanguages keeps lingua from loading every language model when the
// config does not name any.
var DefaultLanguages = []string{"en", "de", "fr", "es", "it", "pt", "nl", "ro"}

type TranslationConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Endpoint       string  `yaml:"endpoint"`    // LibreTranslate-compatible base URL
	APIKeyEnv      string  `yaml:"api_key_env"` // e.g. "HATESCAN_TRANSLATE_KEY"
	Target         string  `yaml:"target"`
	TimeoutMs      int     `yaml:"timeout_ms"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
	CacheSize      int     `yaml:"cache_size"`
	CacheTTLSecond int     `yaml:"cache_ttl_seconds"`
}

type LoggingConfig struct {
	Level       string   `yaml:"level"` // debug | info | warn | error
	Development bool     `yaml:"development"`
	OutputPaths []string `yaml:"output_paths"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
	Service  string `yaml:"service"`
}

// EventsConfig controls the moderation event feed.
type EventsConfig struct {
	Enabled           bool          `yaml:"enabled"`
	OnlyHate          *bool         `yaml:"only_hate"` // emit analyses only when flagged (default true)
	Preview           string        `yaml:"preview"`   // metadata | redacted | full
	QueueSize         int           `yaml:"queue_size"`
	Workers           int           `yaml:"workers"`
	ShutdownTimeoutMs int           `yaml:"shutdown_timeout_ms"`
	File              string        `yaml:"file"` // JSONL path
	Webhook           WebhookConfig `yaml:"webhook"`
}

type WebhookConfig struct {
	URL        string            `yaml:"url"`
	Headers    map[string]string `yaml:"headers"`
	TimeoutMs  int               `yaml:"timeout_ms"`
	MaxRetries int               `yaml:"max_retries"`
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Lexicon.Path == "" {
		cfg.Lexicon.Path = "data/hate_keywords.txt"
	}

	if cfg.Model.Dir == "" {
		cfg.Model.Dir = "ml_model"
	}
	if cfg.Model.Backend == "" {
		cfg.Model.Backend = "native"
	}
	if cfg.Model.Stopwords == nil {
		cfg.Model.Stopwords = boolPtr(true)
	}
	if cfg.Model.Lemmatize == nil {
		cfg.Model.Lemmatize = boolPtr(true)
	}

	if cfg.Language.Detector == "" {
		cfg.Language.Detector = "lingua"
	}
	if cfg.Language.Languages == nil {
		cfg.Language.Languages = append([]string(nil), DefaultLanguages...)
	}

	if cfg.Translation.Target == "" {
		cfg.Translation.Target = "en"
	}
	if cfg.Translation.TimeoutMs <= 0 {
		cfg.Translation.TimeoutMs = 3000
	}
	if cfg.Translation.RatePerSecond <= 0 {
		cfg.Translation.RatePerSecond = 5
	}
	if cfg.Translation.Burst <= 0 {
		cfg.Translation.Burst = 10
	}
	if cfg.Translation.CacheSize <= 0 {
		cfg.Translation.CacheSize = 1024
	}
	if cfg.Translation.CacheTTLSecond <= 0 {
		cfg.Translation.CacheTTLSecond = 3600
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if len(cfg.Logging.OutputPaths) == 0 {
		cfg.Logging.OutputPaths = []string{"stderr"}
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "hatescan"
	}

	if cfg.Events.OnlyHate == nil {
		cfg.Events.OnlyHate = boolPtr(true)
	}
	if cfg.Events.Preview == "" {
		cfg.Events.Preview = "metadata"
	}
	if cfg.Events.QueueSize <= 0 {
		cfg.Events.QueueSize = 1000
	}
	if cfg.Events.Workers <= 0 {
		cfg.Events.Workers = 1
	}
	if cfg.Events.ShutdownTimeoutMs <= 0 {
		cfg.Events.ShutdownTimeoutMs = 2000
	}
	if cfg.Events.Webhook.TimeoutMs <= 0 {
		cfg.Events.Webhook.TimeoutMs = 2000
	}
}

// APIKey resolves the translation key from the configured env var.
func (c TranslationConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

func boolPtr(v bool) *bool {
	return &v
}
