package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"document-qa/internal/chunker"
	"document-qa/internal/models"
)

const (
	StoreSupabase = "supabase"
	StoreChromem  = "chromem"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DriverPgdriver = "pgdriver"
	DriverPq       = "pq"

	defaultEmbeddingModel = "text-embedding-3-small"
	defaultChatModel      = "gpt-4-turbo-preview"
	defaultDimension      = 1536
	defaultTemperature    = 0.7
	defaultMaxTokens      = 1000
	defaultCollection     = "documents"
	defaultChromemPath    = "./chromemdb"
	defaultInclude        = "**/*.docx"
)

type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Database    DatabaseConfig    `yaml:"database"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	ChatLLM     LLMConfig         `yaml:"chat_llm"`
	RAG         RAGConfig         `yaml:"rag"`
	Generation  GenerationConfig  `yaml:"generation"`
}

// DatabaseConfig points at the Supabase (Postgres + pgvector) database
type DatabaseConfig struct {
	URL       string `yaml:"url"`
	Password  string `yaml:"password"`
	Driver    string `yaml:"driver"`
	Debug     bool   `yaml:"debug"`
	Dimension int    `yaml:"dimension"`
}

type VectorStoreConfig struct {
	Type          string `yaml:"type"`
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	chunker.Config      `yaml:",inline"`
	DocumentsPath       string   `yaml:"documents_path"`
	Includes            []string `yaml:"includes"`
	Excludes            []string `yaml:"excludes"`
	TopK                int      `yaml:"top_k"`
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
}

type GenerationConfig struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LoadConfig reads the YAML file at path, then the .env file next to the
// working directory, and finally applies environment overrides and defaults.
// A missing YAML file is not an error.
func LoadConfig(path string) (*Config, error) {
	// zero is a valid threshold and temperature, so these are set before decoding
	cfg := Config{
		RAG:        RAGConfig{SimilarityThreshold: models.DefaultSimilarityThreshold},
		Generation: GenerationConfig{Temperature: defaultTemperature},
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv applies the environment variables used by existing deployments.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.EmbedLLM.Key = v
		cfg.ChatLLM.Key = v
	}
	setString(&cfg.EmbedLLM.Model, "EMBEDDING_MODEL")
	setString(&cfg.ChatLLM.Model, "CHAT_MODEL")
	// SUPABASE_URL and SUPABASE_KEY name the REST endpoint and API key, not the Postgres DSN
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Password, "DATABASE_PASSWORD")
	setString(&cfg.RAG.DocumentsPath, "DOCUMENTS_PATH")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	if err := setInt(&cfg.RAG.ChunkSize, "CHUNK_SIZE"); err != nil {
		return err
	}
	return setInt(&cfg.RAG.Overlap, "CHUNK_OVERLAP")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPgdriver
	}
	if cfg.Database.Dimension == 0 {
		cfg.Database.Dimension = defaultDimension
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = StoreSupabase
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = defaultChromemPath
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = defaultCollection
	}

	llmDefaults(&cfg.EmbedLLM, defaultEmbeddingModel)
	llmDefaults(&cfg.ChatLLM, defaultChatModel)

	// zero overlap is a legitimate setting, so only fill it in together with the size
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = chunker.DefaultChunkSize
		if cfg.RAG.Overlap == 0 {
			cfg.RAG.Overlap = chunker.DefaultOverlap
		}
	}
	if cfg.RAG.MinChunkLength == 0 {
		cfg.RAG.MinChunkLength = chunker.DefaultMinChunkLength
	}
	if cfg.RAG.MaxIterations == 0 {
		cfg.RAG.MaxIterations = chunker.DefaultMaxIterations
	}
	if len(cfg.RAG.Includes) == 0 {
		cfg.RAG.Includes = []string{defaultInclude}
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = models.DefaultTopK
	}

	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = defaultMaxTokens
	}
}

func llmDefaults(c *LLMConfig, model string) {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Model == "" {
		c.Model = model
	}
}

// Validate checks the settings the core depends on.
func (c *Config) Validate() error {
	if err := c.RAG.Config.Validate(); err != nil {
		return err
	}
	if c.RAG.TopK < 1 || c.RAG.TopK > 20 {
		return fmt.Errorf("top_k must be between 1 and 20, got %d", c.RAG.TopK)
	}
	if c.RAG.SimilarityThreshold < 0 || c.RAG.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be between 0 and 1, got %v", c.RAG.SimilarityThreshold)
	}
	switch c.VectorStore.Type {
	case StoreSupabase, StoreChromem:
	default:
		return fmt.Errorf("unsupported vector store type: %s", c.VectorStore.Type)
	}
	switch c.Database.Driver {
	case DriverPgdriver, DriverPq:
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	for _, llm := range []LLMConfig{c.EmbedLLM, c.ChatLLM} {
		if llm.Provider != ProviderOpenAI && llm.Provider != ProviderOllama {
			return fmt.Errorf("unsupported llm provider: %s", llm.Provider)
		}
	}
	if c.Database.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Database.Dimension)
	}
	return nil
}

// StoreDimension is the vector length the configured store requires, 0 when any length is accepted.
func (c *Config) StoreDimension() int {
	if c.VectorStore.Type == StoreSupabase {
		return c.Database.Dimension
	}
	return 0
}
