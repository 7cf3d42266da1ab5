// Package config provides configuration loading for hybridq.
//
// Configuration is read from an optional YAML file and overridden by
// HYBRIDQ_* environment variables. See LoadWithFile for precedence rules.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete hybridq configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Cache       CacheConfig       `koanf:"cache"`
	Query       QueryConfig       `koanf:"query"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Events      EventsConfig      `koanf:"events"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds the relational connection used at startup.
// The connection string is optional; clients can connect later over HTTP.
type DatabaseConfig struct {
	ConnectionString Secret   `koanf:"connection_string"`
	ConnectTimeout   Duration `koanf:"connect_timeout"`
	MaxOpenConns     int      `koanf:"max_open_conns"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	Provider string   `koanf:"provider"` // fastembed or tei
	Model    string   `koanf:"model"`
	BaseURL  string   `koanf:"base_url"`
	CacheDir string   `koanf:"cache_dir"`
	Timeout  Duration `koanf:"timeout"`
}

// VectorStoreConfig configures the persistent vector mirror.
type VectorStoreConfig struct {
	Provider string        `koanf:"provider"` // chromem, qdrant or none
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds embedded chromem-go settings.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
}

// QdrantConfig holds Qdrant gRPC settings.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	UseTLS     bool   `koanf:"use_tls"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	TTL Duration `koanf:"ttl"`
}

// QueryConfig holds per-path limits for the retrieval orchestrator.
type QueryConfig struct {
	SQLTimeout    Duration `koanf:"sql_timeout"`
	DocTimeout    Duration `koanf:"doc_timeout"`
	MaxDocResults int      `koanf:"max_doc_results"`
	DefaultLimit  int      `koanf:"default_limit"`
}

// IngestConfig holds upload limits.
type IngestConfig struct {
	MaxUploadBytes int64    `koanf:"max_upload_bytes"`
	Timeout        Duration `koanf:"timeout"`
}

// EventsConfig holds the NATS publisher settings. An empty URL disables events.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig is the subset of logging settings exposed in the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// TelemetryConfig is the subset of OpenTelemetry settings exposed in the config file.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Embeddings.Provider {
	case "fastembed", "tei":
	default:
		return fmt.Errorf("unknown embeddings provider %q (want fastembed or tei)", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "tei" && c.Embeddings.BaseURL == "" {
		return errors.New("embeddings.base_url required for tei provider")
	}

	switch c.VectorStore.Provider {
	case "chromem", "none":
	case "qdrant":
		if c.VectorStore.Qdrant.Port < 1 || c.VectorStore.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d", c.VectorStore.Qdrant.Port)
		}
	default:
		return fmt.Errorf("unknown vectorstore provider %q (want chromem, qdrant or none)", c.VectorStore.Provider)
	}

	if c.Cache.TTL.Duration() <= 0 {
		return errors.New("cache ttl must be positive")
	}
	if c.Query.MaxDocResults < 1 {
		return fmt.Errorf("query.max_doc_results must be >= 1, got %d", c.Query.MaxDocResults)
	}
	if c.Ingest.MaxUploadBytes <= 0 {
		return errors.New("ingest.max_upload_bytes must be positive")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = Duration(10 * time.Second)
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = Duration(30 * time.Second)
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "./chroma_db"
	}
	if cfg.VectorStore.Chromem.Collection == "" {
		cfg.VectorStore.Chromem.Collection = "documents"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = "documents"
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(5 * time.Minute)
	}

	if cfg.Query.SQLTimeout == 0 {
		cfg.Query.SQLTimeout = Duration(10 * time.Second)
	}
	if cfg.Query.DocTimeout == 0 {
		cfg.Query.DocTimeout = Duration(10 * time.Second)
	}
	if cfg.Query.MaxDocResults == 0 {
		cfg.Query.MaxDocResults = 5
	}
	if cfg.Query.DefaultLimit == 0 {
		cfg.Query.DefaultLimit = 10
	}

	if cfg.Ingest.MaxUploadBytes == 0 {
		cfg.Ingest.MaxUploadBytes = 32 << 20
	}
	if cfg.Ingest.Timeout == 0 {
		cfg.Ingest.Timeout = Duration(2 * time.Minute)
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "hybridq"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "hybridq"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}
