package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"docqa"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docqa"`

	// RegistryEnabled turns the Postgres document registry on. When it is on
	// but unreachable the server starts without it.
	RegistryEnabled bool `envconfig:"REGISTRY_ENABLED" default:"true"`

	// Vector store. The CHROMA_* names are kept so existing deployments
	// keep pointing at the same host.
	VectorHost   string `envconfig:"CHROMA_HOST" default:"localhost"`
	VectorPort   int    `envconfig:"CHROMA_PORT" default:"8080"`
	VectorScheme string `envconfig:"VECTOR_SCHEME" default:"http"`

	ChatServiceURL     string `envconfig:"CHAT_SERVICE_URL" default:"http://khoj:4000"`
	ChatTimeoutSeconds int    `envconfig:"CHAT_TIMEOUT_SECONDS" default:"30"`
	ChatContextMode    string `envconfig:"CHAT_CONTEXT_MODE" default:"remote"`

	EmbeddingProvider  string `envconfig:"EMBEDDING_PROVIDER" default:"gemini"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimension int    `envconfig:"EMBEDDING_DIMENSION" default:"768"`
	GeminiAPIKey       string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey       string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL      string `envconfig:"OPENAI_BASE_URL"`

	RerankProvider string `envconfig:"RERANK_PROVIDER" default:"none"`
	RerankAPIKey   string `envconfig:"RERANK_API_KEY"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`
	TopK         int `envconfig:"TOP_K" default:"5"`

	NSQLookupd         string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost           string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP           string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	EnableEvents       bool   `envconfig:"ENABLE_EVENTS" default:"false"`
	EnableIngestWorker bool   `envconfig:"ENABLE_INGEST_WORKER" default:"false"`
	IngestMaxAttempts  int    `envconfig:"INGEST_MAX_ATTEMPTS" default:"5"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8000"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"data"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win over .env files.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.VectorHost == "" {
		return fmt.Errorf("%w: CHROMA_HOST", ErrMissingRequired)
	}
	if c.ChatServiceURL == "" {
		return fmt.Errorf("%w: CHAT_SERVICE_URL", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", ErrInvalid)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: TOP_K must be positive", ErrInvalid)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: EMBEDDING_DIMENSION must be positive", ErrInvalid)
	}
	switch c.EmbeddingProvider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("%w: EMBEDDING_PROVIDER %q", ErrInvalid, c.EmbeddingProvider)
	}
	switch c.ChatContextMode {
	case "remote", "local":
	default:
		return fmt.Errorf("%w: CHAT_CONTEXT_MODE %q", ErrInvalid, c.ChatContextMode)
	}
	return nil
}

// VectorAddr is the host:port of the vector store.
func (c *Config) VectorAddr() string {
	return fmt.Sprintf("%s:%d", c.VectorHost, c.VectorPort)
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
