package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	APITypeAzure  = "azure"
	APITypeOpenAI = "openai"
)

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
	defaultSeparator    = "\n"
	defaultTopK         = 4
	defaultTemperature  = 0.6
	defaultAddr         = ":8501"
	defaultMaxUploadMB  = 32
	defaultSessionTTL   = time.Hour
	defaultLogLevel     = "debug"
)

// ErrMissingSetting is returned by Validate when a required LLM setting is empty.
var ErrMissingSetting = errors.New("missing required setting")

// LLMConfig holds the hosted model settings. All values are passed through
// to the client constructors as-is.
type LLMConfig struct {
	APIType             string  `yaml:"api_type"`
	Key                 string  `yaml:"key"`
	Endpoint            string  `yaml:"endpoint"`
	APIVersion          string  `yaml:"api_version"`
	ChatDeployment      string  `yaml:"chat_deployment"`
	ChatModel           string  `yaml:"chat_model"`
	EmbeddingDeployment string  `yaml:"embedding_deployment"`
	EmbeddingModel      string  `yaml:"embedding_model"`
	Temperature         float64 `yaml:"temperature"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Separator    string `yaml:"separator"`
	TopK         int    `yaml:"top_k"`
	// CondenseEmptyHistory keeps the condense call even when there is no
	// conversation history.
	CondenseEmptyHistory *bool `yaml:"condense_empty_history"`
	// HistoryTurns is how many previous turns of a session are sent along
	// with a new question. Zero sends none.
	HistoryTurns int `yaml:"history_turns"`
}

type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	MaxUploadMB int64         `yaml:"max_upload_mb"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

type Config struct {
	LLM      LLMConfig    `yaml:"llm"`
	RAG      RAGConfig    `yaml:"rag"`
	Server   ServerConfig `yaml:"server"`
	LogLevel string       `yaml:"log_level"`
}

// envBindings maps environment variables onto config fields.
var envBindings = []struct {
	name  string
	field func(*Config) *string
}{
	{"AZURE_OPENAI_API_TYPE", func(c *Config) *string { return &c.LLM.APIType }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) *string { return &c.LLM.Key }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) *string { return &c.LLM.Endpoint }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) *string { return &c.LLM.APIVersion }},
	{"AZURE_OPENAI_DEPLOYMENT_NAME", func(c *Config) *string { return &c.LLM.ChatDeployment }},
	{"AZURE_OPENAI_MODEL_NAME", func(c *Config) *string { return &c.LLM.ChatModel }},
	{"AZURE_OPENAI_ADA_DEPLOYMENT_NAME", func(c *Config) *string { return &c.LLM.EmbeddingDeployment }},
	{"AZURE_OPENAI_ADA_MODEL_NAME", func(c *Config) *string { return &c.LLM.EmbeddingModel }},
	{"PDFQA_ADDR", func(c *Config) *string { return &c.Server.Addr }},
	{"PDFQA_LOG_LEVEL", func(c *Config) *string { return &c.LogLevel }},
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// fills defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	for _, b := range envBindings {
		if v, ok := os.LookupEnv(b.name); ok && v != "" {
			*b.field(cfg) = v
		}
	}
	if v := os.Getenv("PDFQA_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LLM.Temperature = t
		}
	}
}

func applyDefaults(cfg *Config) {
	cfg.LLM.APIType = strings.ToLower(strings.TrimSpace(cfg.LLM.APIType))
	if cfg.LLM.APIType == "" {
		cfg.LLM.APIType = APITypeAzure
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = defaultTemperature
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.ChunkOverlap <= 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = min(defaultChunkOverlap, cfg.RAG.ChunkSize/2)
	}
	if cfg.RAG.Separator == "" {
		cfg.RAG.Separator = defaultSeparator
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.CondenseEmptyHistory == nil {
		condense := true
		cfg.RAG.CondenseEmptyHistory = &condense
	}
	if cfg.RAG.HistoryTurns < 0 {
		cfg.RAG.HistoryTurns = 0
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = defaultMaxUploadMB
	}
	if cfg.Server.SessionTTL <= 0 {
		cfg.Server.SessionTTL = defaultSessionTTL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
}

// Validate checks that the settings needed to reach the hosted model are
// present. Values themselves are not checked.
func (c *Config) Validate() error {
	var missing []string
	if c.LLM.Key == "" {
		missing = append(missing, "AZURE_OPENAI_API_KEY")
	}
	if c.LLM.Endpoint == "" {
		missing = append(missing, "AZURE_OPENAI_ENDPOINT")
	}
	switch c.LLM.APIType {
	case APITypeAzure:
		if c.LLM.APIVersion == "" {
			missing = append(missing, "AZURE_OPENAI_API_VERSION")
		}
		if c.LLM.ChatDeployment == "" {
			missing = append(missing, "AZURE_OPENAI_DEPLOYMENT_NAME")
		}
		if c.LLM.EmbeddingDeployment == "" {
			missing = append(missing, "AZURE_OPENAI_ADA_DEPLOYMENT_NAME")
		}
	case APITypeOpenAI:
		if c.LLM.ChatModel == "" {
			missing = append(missing, "AZURE_OPENAI_MODEL_NAME")
		}
		if c.LLM.EmbeddingModel == "" {
			missing = append(missing, "AZURE_OPENAI_ADA_MODEL_NAME")
		}
	default:
		return fmt.Errorf("unknown api type %q", c.LLM.APIType)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}
	return nil
}

// CondenseEmptyHistory reports whether the condense call runs with no history.
func (c *Config) CondenseEmptyHistory() bool {
	return c.RAG.CondenseEmptyHistory == nil || *c.RAG.CondenseEmptyHistory
}

// MaxUploadBytes is the largest accepted request body.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

// Redacted returns a copy that is safe to log.
func (c *Config) Redacted() Config {
	out := *c
	if out.LLM.Key != "" {
		out.LLM.Key = "****"
	}
	return out
}
