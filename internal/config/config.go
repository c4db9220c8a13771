package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Assistant   AssistantConfig           `json:"assistant"`
	Wellness    WellnessConfig            `json:"wellness"`
	Log         LogConfig                 `json:"log"`
}

type BasicConfig struct {
	ServerAddress  string   `json:"server_address"`
	TokenTTLHours  int      `json:"token_ttl_hours"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// RedisConfig is optional; an empty host disables the token cache.
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// AssistantConfig selects the chat provider used by the wellness assistant.
type AssistantConfig struct {
	Provider       string `json:"provider"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	HistoryTurns   int    `json:"history_turns"`
}

// WellnessConfig holds the scoring and alerting knobs.
type WellnessConfig struct {
	ScoringStrategy  string  `json:"scoring_strategy"`
	EmotionSource    string  `json:"emotion_source"`
	AlertThreshold   int     `json:"alert_threshold"`
	BurnoutThreshold float64 `json:"burnout_threshold"`
	AssignmentMode   string  `json:"assignment_mode"`
}

type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	Console    bool   `json:"console"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

const (
	StrategyPolarity = "polarity"
	StrategyEmotion  = "emotion"

	EmotionSourceLexicon = "lexicon"
	EmotionSourceModel   = "model"

	AssignmentPair          = "pair"
	AssignmentSingleManager = "single_manager"
)

// Default returns a configuration usable for local development with sqlite.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress: ":8090",
			TokenTTLHours: 24,
		},
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "stressguard.db"},
		},
		Providers: map[string]ProviderConfig{},
		Assistant: AssistantConfig{
			Provider:       "gemini",
			TimeoutSeconds: 30,
			HistoryTurns:   6,
		},
		Wellness: WellnessConfig{
			ScoringStrategy:  StrategyPolarity,
			EmotionSource:    EmotionSourceLexicon,
			AlertThreshold:   75,
			BurnoutThreshold: 70,
			AssignmentMode:   AssignmentSingleManager,
		},
		Log: LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
	}
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file is not an error; defaults and env overrides apply.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		for name, db := range cfg.Databases {
			if db.DSN != "" && db.DSN != ":memory:" && isSQLite(name) && !filepath.IsAbs(db.DSN) {
				db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
				cfg.Databases[name] = db
			}
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the scoring core cannot work with.
func (c *Config) Validate() error {
	w := c.Wellness
	if w.AlertThreshold < 0 || w.AlertThreshold > 100 {
		return fmt.Errorf("alert_threshold must be within [0,100], got %d", w.AlertThreshold)
	}
	if w.BurnoutThreshold < 0 || w.BurnoutThreshold > 100 {
		return fmt.Errorf("burnout_threshold must be within [0,100], got %v", w.BurnoutThreshold)
	}
	switch w.ScoringStrategy {
	case StrategyPolarity, StrategyEmotion:
	default:
		return fmt.Errorf("unknown scoring_strategy %q", w.ScoringStrategy)
	}
	switch w.EmotionSource {
	case EmotionSourceLexicon, EmotionSourceModel:
	default:
		return fmt.Errorf("unknown emotion_source %q", w.EmotionSource)
	}
	switch w.AssignmentMode {
	case AssignmentPair, AssignmentSingleManager:
	default:
		return fmt.Errorf("unknown assignment_mode %q", w.AssignmentMode)
	}
	if len(c.Databases) == 0 {
		return errors.New("at least one database must be configured")
	}
	return nil
}

// Provider returns the provider block for name, filling the API key from the
// conventional environment variable when the file leaves it empty.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	if p.APIKey == "" {
		if key := os.Getenv(providerKeyEnv[name]); key != "" {
			p.APIKey = key
			ok = true
		}
	}
	return p, ok
}

var providerKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
}

func (c *Config) applyEnv() {
	envOverride(&c.BasicConfig.ServerAddress, "STRESSGUARD_ADDR")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverride(&c.Redis.Host, "REDIS_HOST")
	envOverrideInt(&c.Redis.Port, "REDIS_PORT")
	envOverride(&c.Redis.Password, "REDIS_PASSWORD")
	envOverride(&c.Assistant.Provider, "STRESSGUARD_ASSISTANT_PROVIDER")
	envOverride(&c.Wellness.ScoringStrategy, "STRESSGUARD_SCORING")
	envOverride(&c.Wellness.EmotionSource, "STRESSGUARD_EMOTION_SOURCE")
	envOverrideInt(&c.Wellness.AlertThreshold, "STRESSGUARD_ALERT_THRESHOLD")
	envOverride(&c.Wellness.AssignmentMode, "STRESSGUARD_ASSIGNMENT_MODE")
	c.Wellness.ScoringStrategy = strings.ToLower(strings.TrimSpace(c.Wellness.ScoringStrategy))
	c.Wellness.EmotionSource = strings.ToLower(strings.TrimSpace(c.Wellness.EmotionSource))
	c.Wellness.AssignmentMode = strings.ToLower(strings.TrimSpace(c.Wellness.AssignmentMode))
}

func isSQLite(name string) bool {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
