package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the nao-llm configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Logging      LoggingConfig      `yaml:"logging"`
	Auth         AuthConfig         `yaml:"auth"`
	Database     DatabaseConfig     `yaml:"database"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Generation   GenerationConfig   `yaml:"generation"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Knowledge    KnowledgeConfig    `yaml:"knowledge"`
	Conversation ConversationConfig `yaml:"conversation"`
	Chat         ChatConfig         `yaml:"chat"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error (default: determined by env)
	File       string `yaml:"file"`  // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis/Valkey connection settings, used by the redis conversation driver.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds both embedding backends.
type EmbeddingConfig struct {
	Local      LocalEmbeddingConfig  `yaml:"local"`
	Remote     RemoteEmbeddingConfig `yaml:"remote"`
	TimeoutSec int                   `yaml:"timeout_sec"` // per call
}

// LocalEmbeddingConfig points at the sentence-embedding model served next to the process
// through an OpenAI-compatible /embeddings endpoint.
type LocalEmbeddingConfig struct {
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	QueryInstruction    string `yaml:"query_instruction"`
	DocumentInstruction string `yaml:"document_instruction"`
}

// RemoteEmbeddingConfig holds the Ollama embedding backend settings.
type RemoteEmbeddingConfig struct {
	Disabled bool   `yaml:"disabled"`
	Host     string `yaml:"host"` // empty: OLLAMA_HOST or localhost:11434
	Model    string `yaml:"model"`
}

// GenerationConfig holds generation service settings.
type GenerationConfig struct {
	Provider    string   `yaml:"provider"` // ollama (default), openai
	Host        string   `yaml:"host"`     // ollama host
	BaseURL     string   `yaml:"base_url"` // openai-compatible base url
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"`
	TimeoutSec  int      `yaml:"timeout_sec"`
	Persona     string   `yaml:"persona"`
	Template    string   `yaml:"template"`
}

// RetrievalConfig holds ranking settings.
type RetrievalConfig struct {
	TopK         int      `yaml:"top_k"`
	LocalWeight  *float64 `yaml:"local_weight"`
	RemoteWeight *float64 `yaml:"remote_weight"`
}

// KnowledgeConfig holds dataset settings.
type KnowledgeConfig struct {
	DatasetPath     string `yaml:"dataset_path"`
	AllowEmpty      bool   `yaml:"allow_empty"`
	LoadConcurrency int    `yaml:"load_concurrency"`
}

// ConversationConfig holds context store settings.
type ConversationConfig struct {
	Driver         string `yaml:"driver"` // file (default), badger, redis, valkey
	Dir            string `yaml:"dir"`    // file driver
	BadgerPath     string `yaml:"badger_path"`
	KeyPrefix      string `yaml:"key_prefix"`
	RetentionHours int    `yaml:"retention_hours"` // redis driver, 0 keeps transcripts forever
	IdleTimeoutSec int    `yaml:"idle_timeout_sec"`
}

// ChatConfig holds orchestrator settings.
type ChatConfig struct {
	AssistantName   string   `yaml:"assistant_name"`
	DefaultSession  string   `yaml:"default_session"`
	FarewellReply   string   `yaml:"farewell_reply"`
	FarewellWords   []string `yaml:"farewell_words"`   // exact matches
	FarewellPhrases []string `yaml:"farewell_phrases"` // substring matches
	FallbackReply   string   `yaml:"fallback_reply"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 5000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.Local.BaseURL == "" {
		c.Embedding.Local.BaseURL = "http://localhost:8081/v1"
	}
	if c.Embedding.Local.Model == "" {
		c.Embedding.Local.Model = "all-MiniLM-L6-v2"
	}
	if c.Embedding.Remote.Model == "" {
		c.Embedding.Remote.Model = "llama3.2"
	}

	if c.Generation.Provider == "" {
		c.Generation.Provider = "ollama"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "llama3.2"
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 120
	}

	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 3
	}
	if c.Retrieval.LocalWeight == nil {
		w := 0.5
		c.Retrieval.LocalWeight = &w
	}
	if c.Retrieval.RemoteWeight == nil {
		w := 0.5
		c.Retrieval.RemoteWeight = &w
	}

	if c.Knowledge.LoadConcurrency <= 0 {
		c.Knowledge.LoadConcurrency = 4
	}

	if c.Conversation.Driver == "" {
		c.Conversation.Driver = "file"
	}
	if c.Conversation.Dir == "" {
		c.Conversation.Dir = "contexts"
	}
	if c.Conversation.BadgerPath == "" {
		c.Conversation.BadgerPath = "data/contexts"
	}
	if c.Conversation.KeyPrefix == "" {
		c.Conversation.KeyPrefix = "nao:context:"
	}
	if c.Conversation.IdleTimeoutSec <= 0 {
		c.Conversation.IdleTimeoutSec = 60
	}

	if c.Chat.AssistantName == "" {
		c.Chat.AssistantName = "Nao"
	}
	if c.Chat.DefaultSession == "" {
		c.Chat.DefaultSession = "default"
	}
	if c.Chat.FarewellReply == "" {
		c.Chat.FarewellReply = "Goodbye! Have a great day!"
	}
	if c.Chat.FarewellWords == nil {
		c.Chat.FarewellWords = []string{"exit", "bye", "quit"}
	}
	if c.Chat.FarewellPhrases == nil {
		c.Chat.FarewellPhrases = []string{"goodbye"}
	}
	if c.Chat.FallbackReply == "" {
		c.Chat.FallbackReply = "Sorry, I can't answer that right now. Please try again."
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Knowledge.DatasetPath == "" {
		return fmt.Errorf("knowledge.dataset_path is required")
	}

	lw, rw := c.Retrieval.weights()
	if lw < 0 || rw < 0 {
		return fmt.Errorf("retrieval weights must be non-negative, got local=%v remote=%v", lw, rw)
	}
	if lw+rw <= 0 {
		return fmt.Errorf("retrieval weights must have a positive sum")
	}

	switch c.Generation.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("generation.provider must be \"ollama\" or \"openai\", got %q", c.Generation.Provider)
	}

	switch c.Conversation.Driver {
	case "file", "badger":
	case "redis", "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for conversation.driver %q", c.Conversation.Driver)
		}
	default:
		return fmt.Errorf(
			"conversation.driver must be one of file, badger, redis, valkey, got %q", c.Conversation.Driver,
		)
	}
	return nil
}

func (r RetrievalConfig) weights() (float64, float64) {
	var lw, rw float64
	if r.LocalWeight != nil {
		lw = *r.LocalWeight
	}
	if r.RemoteWeight != nil {
		rw = *r.RemoteWeight
	}
	return lw, rw
}

// Weights returns the configured local and remote similarity weights.
func (r RetrievalConfig) Weights() (local, remote float64) { return r.weights() }

// IdleTimeout returns the session idle timeout.
func (c ConversationConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// Retention returns how long the redis driver keeps a transcript.
func (c ConversationConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
