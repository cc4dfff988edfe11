// Package config loads and validates pdfrag configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. User config ($XDG_CONFIG_HOME/pdfrag/config.yaml)
//  3. Project config (.pdfrag.yaml, .pdfrag.yml or .pdfrag.toml)
//  4. A .env file in the working directory (never overrides the real environment)
//  5. PDFRAG_* environment variables, plus OPENAI_API_KEY and OPENAI_BASE_URL
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/logging"
)

// Provider names accepted for embeddings and llm.
const (
	ProviderStatic = "static"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// CurrentVersion is the config schema version written by WriteYAML.
const CurrentVersion = 1

// DefaultTemplate is the prompt sent to the language model.
const DefaultTemplate = "You are an AI assistant specialized in analyzing PDF documents. " +
	"Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n" +
	"Context:\n{context}\n\n" +
	"Question: {question}\n\n" +
	"Answer:"

// Config represents the complete pdfrag configuration.
type Config struct {
	Version    int              `yaml:"version" toml:"version" json:"version"`
	Chunking   ChunkingConfig   `yaml:"chunking" toml:"chunking" json:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" toml:"retrieval" json:"retrieval"`
	Prompt     PromptConfig     `yaml:"prompt" toml:"prompt" json:"prompt"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" toml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" toml:"llm" json:"llm"`
	OpenAI     OpenAIConfig     `yaml:"openai" toml:"openai" json:"openai"`
	Index      IndexConfig      `yaml:"index" toml:"index" json:"index"`
	Sessions   SessionsConfig   `yaml:"sessions" toml:"sessions" json:"sessions"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging" json:"logging"`
}

// ChunkingConfig configures the text splitter.
type ChunkingConfig struct {
	// Size is the maximum chunk length in characters.
	Size int `yaml:"size" toml:"size" json:"size"`

	// Overlap is the number of trailing characters repeated in the next chunk.
	Overlap int `yaml:"overlap" toml:"overlap" json:"overlap"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	K        int     `yaml:"k" toml:"k" json:"k"`
	MinScore float64 `yaml:"min_score" toml:"min_score" json:"min_score"`
}

// PromptConfig configures prompt assembly.
type PromptConfig struct {
	// MaxContextChars caps the context block. Zero disables the cap.
	MaxContextChars int `yaml:"max_context_chars" toml:"max_context_chars" json:"max_context_chars"`

	// Template overrides DefaultTemplate. Must contain {context} and {question}.
	Template string `yaml:"template,omitempty" toml:"template,omitempty" json:"template,omitempty"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider" toml:"provider" json:"provider"`
	Model     string `yaml:"model,omitempty" toml:"model,omitempty" json:"model,omitempty"`
	Host      string `yaml:"host,omitempty" toml:"host,omitempty" json:"host,omitempty"`
	BatchSize int    `yaml:"batch_size" toml:"batch_size" json:"batch_size"`
	Workers   int    `yaml:"workers" toml:"workers" json:"workers"`

	// CacheSize is the number of query embeddings kept in memory. Zero disables caching.
	CacheSize int `yaml:"cache_size" toml:"cache_size" json:"cache_size"`

	// Timeout is a Go duration string applied per provider request.
	Timeout string `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// LLMConfig configures the answer generator.
type LLMConfig struct {
	Provider    string  `yaml:"provider" toml:"provider" json:"provider"`
	Model       string  `yaml:"model,omitempty" toml:"model,omitempty" json:"model,omitempty"`
	Host        string  `yaml:"host,omitempty" toml:"host,omitempty" json:"host,omitempty"`
	Temperature float64 `yaml:"temperature" toml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens" json:"max_tokens"`
	Timeout     string  `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// OpenAIConfig holds credentials shared by the OpenAI adapters.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty" toml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" toml:"base_url,omitempty" json:"base_url,omitempty"`
}

// IndexConfig tunes the vector index.
type IndexConfig struct {
	// ExactThreshold is the entry count up to which queries scan every vector.
	ExactThreshold int `yaml:"exact_threshold" toml:"exact_threshold" json:"exact_threshold"`
	M              int `yaml:"m" toml:"m" json:"m"`
	EfSearch       int `yaml:"ef_search" toml:"ef_search" json:"ef_search"`
}

// SessionsConfig configures chat transcript storage.
type SessionsConfig struct {
	StoragePath string `yaml:"storage_path" toml:"storage_path" json:"storage_path"`
	MaxSessions int    `yaml:"max_sessions" toml:"max_sessions" json:"max_sessions"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalConfig{
			K: 4,
		},
		Prompt: PromptConfig{
			MaxContextChars: 12000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  ProviderOllama,
			Host:      "http://localhost:11434",
			BatchSize: 32,
			Workers:   4,
			CacheSize: 256,
			Timeout:   "60s",
		},
		LLM: LLMConfig{
			Provider:  ProviderOllama,
			Host:      "http://localhost:11434",
			MaxTokens: 1024,
			Timeout:   "120s",
		},
		Index: IndexConfig{
			ExactThreshold: 2048,
			M:              16,
			EfSearch:       64,
		},
		Sessions: SessionsConfig{
			StoragePath: defaultSessionsPath(),
			MaxSessions: 50,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

func defaultSessionsPath() string {
	return filepath.Join(logging.DefaultDataDir(), "sessions")
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/pdfrag/config.yaml, or ~/.config/pdfrag/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pdfrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "pdfrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "pdfrag", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration for the project directory dir and validates it.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if path := findProjectFile(dir); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	dotenv, err := readDotEnv(dir)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.Sessions.StoragePath = expandHome(cfg.Sessions.StoragePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findProjectFile returns the first project config file present in dir.
func findProjectFile(dir string) string {
	for _, name := range []string{".pdfrag.yaml", ".pdfrag.yml", ".pdfrag.toml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// LoadFile decodes a YAML or TOML file over the current values. Keys absent
// from the file keep their current value, so explicit zeros are honoured.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

func readDotEnv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, ".env")
	if !fileExists(path) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.ConfigError("failed to parse .env", err).WithDetail("path", path)
	}
	return values, nil
}

// ApplyEnv applies environment overrides read through lookup.
// Malformed numbers are reported as ConfigError rather than ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("%s must be an integer, got %q", key, v), err)
		}
		*dst = n
		return nil
	}
	float := func(key string, dst *float64) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("%s must be a number, got %q", key, v), err)
		}
		*dst = f
		return nil
	}

	for key, dst := range map[string]*int{
		"PDFRAG_CHUNK_SIZE":            &c.Chunking.Size,
		"PDFRAG_CHUNK_OVERLAP":         &c.Chunking.Overlap,
		"PDFRAG_RETRIEVAL_K":           &c.Retrieval.K,
		"PDFRAG_MAX_CONTEXT_CHARS":     &c.Prompt.MaxContextChars,
		"PDFRAG_EMBEDDINGS_WORKERS":    &c.Embeddings.Workers,
		"PDFRAG_EMBEDDINGS_BATCH":      &c.Embeddings.BatchSize,
		"PDFRAG_LLM_MAX_TOKENS":        &c.LLM.MaxTokens,
		"PDFRAG_INDEX_EXACT_THRESHOLD": &c.Index.ExactThreshold,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	if err := float("PDFRAG_MIN_SCORE", &c.Retrieval.MinScore); err != nil {
		return err
	}
	if err := float("PDFRAG_LLM_TEMPERATURE", &c.LLM.Temperature); err != nil {
		return err
	}

	str("PDFRAG_EMBEDDINGS_PROVIDER", &c.Embeddings.Provider)
	str("PDFRAG_EMBEDDINGS_MODEL", &c.Embeddings.Model)
	str("PDFRAG_LLM_PROVIDER", &c.LLM.Provider)
	str("PDFRAG_LLM_MODEL", &c.LLM.Model)
	if v, ok := lookup("PDFRAG_OLLAMA_HOST"); ok && v != "" {
		c.Embeddings.Host = v
		c.LLM.Host = v
	}
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("PDFRAG_SESSIONS_PATH", &c.Sessions.StoragePath)
	str("PDFRAG_LOG_LEVEL", &c.Logging.Level)
	return nil
}

// Validate checks the configuration and returns a ConfigError describing the
// first problem found.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return errors.New(errors.ErrCodeInvalidChunking,
			fmt.Sprintf("chunking.size must be positive, got %d", c.Chunking.Size), nil)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return errors.New(errors.ErrCodeInvalidChunking,
			fmt.Sprintf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap), nil)
	}
	if c.Retrieval.K <= 0 {
		return errors.ConfigError(fmt.Sprintf("retrieval.k must be positive, got %d", c.Retrieval.K), nil)
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return errors.ConfigError(fmt.Sprintf("retrieval.min_score must be between -1 and 1, got %g", c.Retrieval.MinScore), nil)
	}
	if c.Prompt.MaxContextChars < 0 {
		return errors.ConfigError(fmt.Sprintf("prompt.max_context_chars must be non-negative, got %d", c.Prompt.MaxContextChars), nil)
	}
	if t := c.Prompt.Template; t != "" {
		if !strings.Contains(t, "{context}") || !strings.Contains(t, "{question}") {
			return errors.ConfigError("prompt.template must contain {context} and {question}", nil)
		}
	}

	if err := validateProvider("embeddings.provider", c.Embeddings.Provider); err != nil {
		return err
	}
	if err := validateProvider("llm.provider", c.LLM.Provider); err != nil {
		return err
	}
	if c.Embeddings.BatchSize <= 0 {
		return errors.ConfigError(fmt.Sprintf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize), nil)
	}
	if c.Embeddings.Workers <= 0 {
		return errors.ConfigError(fmt.Sprintf("embeddings.workers must be positive, got %d", c.Embeddings.Workers), nil)
	}
	if c.Embeddings.CacheSize < 0 {
		return errors.ConfigError(fmt.Sprintf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize), nil)
	}
	if _, err := parseTimeout("embeddings.timeout", c.Embeddings.Timeout); err != nil {
		return err
	}
	if _, err := parseTimeout("llm.timeout", c.LLM.Timeout); err != nil {
		return err
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.ConfigError(fmt.Sprintf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature), nil)
	}
	if c.LLM.MaxTokens < 0 {
		return errors.ConfigError(fmt.Sprintf("llm.max_tokens must be non-negative, got %d", c.LLM.MaxTokens), nil)
	}

	usesOpenAI := strings.EqualFold(c.Embeddings.Provider, ProviderOpenAI) ||
		strings.EqualFold(c.LLM.Provider, ProviderOpenAI)
	if usesOpenAI && c.OpenAI.APIKey == "" {
		return errors.New(errors.ErrCodeMissingCredentials, "openai provider selected but no API key configured", nil).
			WithSuggestion("Set OPENAI_API_KEY in the environment or a .env file")
	}

	if c.Index.ExactThreshold < 0 || c.Index.M < 0 || c.Index.EfSearch < 0 {
		return errors.ConfigError("index settings must be non-negative", nil)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.ConfigError(fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil)
	}
	return nil
}

func validateProvider(field, provider string) error {
	switch strings.ToLower(provider) {
	case ProviderStatic, ProviderOllama, ProviderOpenAI:
		return nil
	}
	return errors.ConfigError(fmt.Sprintf("%s must be 'static', 'ollama', or 'openai', got %q", field, provider), nil)
}

func parseTimeout(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, errors.ConfigError(fmt.Sprintf("%s must be a duration like 30s, got %q", field, value), err)
	}
	return d, nil
}

// EmbeddingsTimeout returns the parsed embeddings timeout. Zero means none.
func (c *Config) EmbeddingsTimeout() time.Duration {
	d, _ := parseTimeout("embeddings.timeout", c.Embeddings.Timeout)
	return d
}

// LLMTimeout returns the parsed llm timeout. Zero means none.
func (c *Config) LLMTimeout() time.Duration {
	d, _ := parseTimeout("llm.timeout", c.LLM.Timeout)
	return d
}

// PromptTemplate returns the configured template or DefaultTemplate.
func (c *Config) PromptTemplate() string {
	if c.Prompt.Template != "" {
		return c.Prompt.Template
	}
	return DefaultTemplate
}

// Redacted returns a copy safe to print, with credentials masked.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.OpenAI.APIKey != "" {
		cp.OpenAI.APIKey = "****"
	}
	return &cp
}

// WriteYAML writes the configuration to a YAML file, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
