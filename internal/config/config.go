package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SQLCorpusConfig points the corpus loader at a database table.
type SQLCorpusConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	Table   string `yaml:"table"`
	OrderBy string `yaml:"order_by,omitempty"`
}

// CorpusConfig selects where statute sections are read from.
type CorpusConfig struct {
	Source            string           `yaml:"source"`
	Path              string           `yaml:"path"`
	SectionColumn     string           `yaml:"section_column"`
	DescriptionColumn string           `yaml:"description_column"`
	SQL               *SQLCorpusConfig `yaml:"sql,omitempty"`
}

// MatcherConfig configures ranking.
type MatcherConfig struct {
	TopK      int    `yaml:"top_k"`
	StopWords string `yaml:"stop_words"`
}

// RateLimitConfig caps outgoing completion calls. Zero disables the limiter.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// OpenAIConfig holds configuration for an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

type GeminiConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// GenerationConfig selects and configures the completion backend.
type GenerationConfig struct {
	Provider          string          `yaml:"provider"`
	Temperature       float64         `yaml:"temperature"`
	MaxOutputTokens   int             `yaml:"max_output_tokens"`
	SystemInstruction string          `yaml:"system_instruction"`
	TimeoutSecs       int             `yaml:"timeout_secs"`
	MaxRetries        int             `yaml:"max_retries"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	OpenAI            *OpenAIConfig   `yaml:"openai,omitempty"`
	Gemini            *GeminiConfig   `yaml:"gemini,omitempty"`
}

// Timeout returns the per-call timeout.
func (g GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Matcher    MatcherConfig    `yaml:"matcher"`
	Generation GenerationConfig `yaml:"generation"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	// Keys missing from the file keep their default; explicit zeros survive.
	cfg := baseConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/firassist/config.yaml.
// If neither exists, it writes defaults to ~/.config/firassist/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadEnv reads KEY=value pairs from the given .env files (default ".env")
// into the process environment. Missing files are ignored and variables
// already set are never overwritten.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Validate rejects settings the application cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Corpus.Source {
	case "csv":
		if c.Corpus.Path == "" {
			return errors.New("corpus.path is required for csv source")
		}
	case "sql":
		if c.Corpus.SQL == nil || c.Corpus.SQL.DSN == "" || c.Corpus.SQL.Table == "" {
			return errors.New("corpus.sql.dsn and corpus.sql.table are required for sql source")
		}
		switch c.Corpus.SQL.Driver {
		case "sqlite", "pgx":
		default:
			return fmt.Errorf("unknown corpus.sql.driver %q", c.Corpus.SQL.Driver)
		}
	default:
		return fmt.Errorf("unknown corpus.source %q", c.Corpus.Source)
	}
	if c.Matcher.TopK < 1 {
		return fmt.Errorf("matcher.top_k must be positive, got %d", c.Matcher.TopK)
	}
	switch c.Matcher.StopWords {
	case "none", "english":
	default:
		return fmt.Errorf("unknown matcher.stop_words %q", c.Matcher.StopWords)
	}
	switch c.Generation.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown generation.provider %q", c.Generation.Provider)
	}
	if c.Generation.MaxRetries < 0 {
		return errors.New("generation.max_retries must not be negative")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature %.2f out of range [0, 2]", c.Generation.Temperature)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "firassist", "config.yaml"), nil
}

// baseConfig holds the defaults for numeric settings where zero is a valid
// choice. Provider-specific sections are filled in by applyConfigDefaults.
func baseConfig() *AppConfig {
	return &AppConfig{
		Corpus:  CorpusConfig{Source: "csv", Path: "fir_sections.csv"},
		Matcher: MatcherConfig{TopK: 5, StopWords: "none"},
		Generation: GenerationConfig{
			Provider:    "openai",
			Temperature: 0.5,
			MaxRetries:  2,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

func defaultConfig() *AppConfig {
	cfg := baseConfig()
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Corpus.Source == "" {
		cfg.Corpus.Source = "csv"
	}
	if cfg.Corpus.SectionColumn == "" {
		cfg.Corpus.SectionColumn = "Section"
	}
	if cfg.Corpus.DescriptionColumn == "" {
		cfg.Corpus.DescriptionColumn = "Description"
	}
	if cfg.Corpus.SQL != nil && cfg.Corpus.SQL.Driver == "" {
		cfg.Corpus.SQL.Driver = "sqlite"
	}
	if cfg.Matcher.TopK == 0 {
		cfg.Matcher.TopK = 5
	}
	if cfg.Matcher.StopWords == "" {
		cfg.Matcher.StopWords = "none"
	}
	g := &cfg.Generation
	if g.Provider == "" {
		g.Provider = "openai"
	}
	if g.MaxOutputTokens == 0 {
		g.MaxOutputTokens = 2000
	}
	if g.SystemInstruction == "" {
		g.SystemInstruction = "You are a legal assistant specializing in Indian law."
	}
	if g.TimeoutSecs == 0 {
		g.TimeoutSecs = 60
	}
	switch g.Provider {
	case "openai":
		if g.OpenAI == nil {
			g.OpenAI = &OpenAIConfig{}
		}
		if g.OpenAI.BaseURL == "" {
			g.OpenAI.BaseURL = "https://api.groq.com/openai/v1"
		}
		if g.OpenAI.APIKeyEnv == "" {
			g.OpenAI.APIKeyEnv = "GROQ_API_KEY"
		}
		if g.OpenAI.Model == "" {
			g.OpenAI.Model = "mixtral-8x7b-32768"
		}
	case "gemini":
		if g.Gemini == nil {
			g.Gemini = &GeminiConfig{}
		}
		if g.Gemini.APIKeyEnv == "" {
			g.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if g.Gemini.Model == "" {
			g.Gemini.Model = "gemini-1.5-flash"
		}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
