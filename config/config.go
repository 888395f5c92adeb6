package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/report-qa/cli/internal/log"
)

// Config holds application configuration
type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Database string `yaml:"database"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Table    string `yaml:"table"`
		SSLMode  string `yaml:"sslmode"`

		MaxConns        int32         `yaml:"max_conns"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	} `yaml:"database"`
	// VectorStore selects the backend: pgvector, qdrant or memory.
	// Scores are cosine similarity mapped onto [0, 1].
	VectorStore struct {
		Type      string `yaml:"type"`
		Dimension int    `yaml:"dimension"`
		Qdrant    struct {
			Host       string `yaml:"host"`
			Port       int    `yaml:"port"`
			Collection string `yaml:"collection"`
			APIKeyEnv  string `yaml:"api_key_env"`
			UseTLS     bool   `yaml:"use_tls"`
		} `yaml:"qdrant"`
	} `yaml:"vector_store"`
	// Provider picks ollama or openai for each capability.
	Provider struct {
		Chat       string `yaml:"chat"`
		Embeddings string `yaml:"embeddings"`
	} `yaml:"provider"`
	Ollama struct {
		BaseURL        string `yaml:"base_url"`
		ChatModel      string `yaml:"chat_model"`
		EmbeddingModel string `yaml:"embedding_model"`
	} `yaml:"ollama"`
	OpenAI struct {
		BaseURL        string `yaml:"base_url"`
		APIKeyEnv      string `yaml:"api_key_env"`
		ChatModel      string `yaml:"chat_model"`
		EmbeddingModel string `yaml:"embedding_model"`
		TimeoutSecs    int    `yaml:"timeout_secs"`
	} `yaml:"openai"`
	Embeddings struct {
		BatchSize         int     `yaml:"batch_size"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"embeddings"`
	Processing struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
		MaxChunkSize int `yaml:"max_chunk_size"`

		// MarkdownLines > 0 chunks .md files by line windows instead.
		MarkdownLines        int `yaml:"markdown_lines"`
		MarkdownOverlapLines int `yaml:"markdown_overlap_lines"`
	} `yaml:"processing"`
	Retrieval struct {
		TopK            int  `yaml:"top_k"`
		FilterByCompany bool `yaml:"filter_by_company"`
	} `yaml:"retrieval"`
	Chat struct {
		MaxMessages    int           `yaml:"max_messages"`
		SessionTimeout time.Duration `yaml:"session_timeout"`
	} `yaml:"chat"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Ingest struct {
		Workers      int    `yaml:"workers"`
		DocumentsDir string `yaml:"documents_dir"`
	} `yaml:"ingest"`
	Log log.Config `yaml:"log"`
}

// DefaultPath is ~/.report-qa/config.yaml.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".report-qa", "config.yaml")
}

// Load reads configuration from path, or from ./config.yaml and then
// DefaultPath when path is empty. A missing file yields defaults. Variables
// from a .env file in the working directory are loaded first.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = "config.yaml"
		if _, err := os.Stat(path); err != nil {
			path = DefaultPath()
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the configuration to path, or DefaultPath when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.Database = "postgres"
	cfg.Database.User = "postgres"
	cfg.Database.Table = "rag_embeddings"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxConnLifetime = time.Hour
	cfg.Database.MaxConnIdleTime = 30 * time.Minute

	cfg.VectorStore.Type = "pgvector"
	cfg.VectorStore.Dimension = 768
	cfg.VectorStore.Qdrant.Host = "localhost"
	cfg.VectorStore.Qdrant.Port = 6334
	cfg.VectorStore.Qdrant.Collection = "rag_embeddings"

	cfg.Provider.Chat = "ollama"
	cfg.Provider.Embeddings = "ollama"

	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.EmbeddingModel = "nomic-embed-text"

	cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	cfg.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	cfg.OpenAI.ChatModel = "gpt-4o-mini"
	cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	cfg.OpenAI.TimeoutSecs = 120

	cfg.Embeddings.BatchSize = 10

	cfg.Processing.ChunkSize = 300
	cfg.Processing.ChunkOverlap = 50
	cfg.Processing.MaxChunkSize = 500

	cfg.Retrieval.TopK = 10

	cfg.Chat.MaxMessages = 20
	cfg.Chat.SessionTimeout = 30 * time.Minute

	cfg.Server.Addr = ":8080"

	cfg.Ingest.Workers = 4
	cfg.Ingest.DocumentsDir = filepath.Join(os.Getenv("HOME"), "reports")

	cfg.Log = log.Config{Level: "info", Format: "console", Output: "stderr"}

	return cfg
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Database.Port == 0 {
		c.Database.Port = d.Database.Port
	}
	if c.Database.Table == "" {
		c.Database.Table = d.Database.Table
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = d.VectorStore.Type
	}
	if c.VectorStore.Dimension <= 0 {
		c.VectorStore.Dimension = d.VectorStore.Dimension
	}
	if c.Embeddings.BatchSize <= 0 {
		c.Embeddings.BatchSize = d.Embeddings.BatchSize
	}
	if c.Processing.ChunkSize <= 0 {
		c.Processing.ChunkSize = d.Processing.ChunkSize
	}
	if c.Processing.ChunkOverlap < 0 {
		c.Processing.ChunkOverlap = 0
	}
	if c.Processing.MaxChunkSize < c.Processing.ChunkSize {
		c.Processing.MaxChunkSize = c.Processing.ChunkSize
	}
	if c.Processing.MarkdownOverlapLines < 0 {
		c.Processing.MarkdownOverlapLines = 0
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = d.Retrieval.TopK
	}
	if c.Chat.MaxMessages <= 0 {
		c.Chat.MaxMessages = d.Chat.MaxMessages
	}
	if c.Chat.SessionTimeout <= 0 {
		c.Chat.SessionTimeout = d.Chat.SessionTimeout
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = d.Ingest.Workers
	}
	if c.OpenAI.TimeoutSecs <= 0 {
		c.OpenAI.TimeoutSecs = d.OpenAI.TimeoutSecs
	}
}

// applyEnv lets the environment override secrets and logging.
func (c *Config) applyEnv() {
	if v := os.Getenv("PGPASSWORD"); v != "" && c.Database.Password == "" {
		c.Database.Password = v
	}
	if v := os.Getenv("REPORT_QA_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	c.Log.ApplyEnv()
}

// DSN returns the PostgreSQL connection string for the database section.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:   "/" + c.Database.Database,
	}
	if c.Database.Password != "" {
		u.User = url.UserPassword(c.Database.User, c.Database.Password)
	} else {
		u.User = url.User(c.Database.User)
	}
	if c.Database.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.Database.SSLMode)
	}
	return u.String()
}

// OpenAIKey returns the API key named by openai.api_key_env.
func (c *Config) OpenAIKey() string {
	return os.Getenv(c.OpenAI.APIKeyEnv)
}

// QdrantKey returns the API key named by vector_store.qdrant.api_key_env.
func (c *Config) QdrantKey() string {
	if c.VectorStore.Qdrant.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.VectorStore.Qdrant.APIKeyEnv)
}
