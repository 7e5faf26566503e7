package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the recall service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Index       IndexConfig       `yaml:"index"`
	Cache       CacheConfig       `yaml:"cache"`
	Search      SearchConfig      `yaml:"search"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Evidence    EvidenceConfig    `yaml:"evidence"`
	Remediation RemediationConfig `yaml:"remediation"`
	Ingest      IngestConfig      `yaml:"ingest"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// EmbeddingConfig selects the embedding model. Provider "openai" talks to any
// OpenAI-compatible endpoint; "hash" is a local lexical model.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`
	Host      string        `yaml:"host"`
	Model     string        `yaml:"model"`
	Token     string        `yaml:"token"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
	LRUSize   int           `yaml:"lruSize"`
}

// IndexConfig selects and configures the vector store.
type IndexConfig struct {
	Backend            string       `yaml:"backend"`
	SemanticCollection string       `yaml:"semanticCollection"`
	EntityCollection   string       `yaml:"entityCollection"`
	Qdrant             QdrantConfig `yaml:"qdrant"`
	Badger             BadgerConfig `yaml:"badger"`
}

// QdrantConfig configures the remote vector database.
type QdrantConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// BadgerConfig configures the embedded vector store.
type BadgerConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"inMemory"`
}

// CacheConfig controls the Valkey-backed shared embedding cache.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	EmbeddingTTL time.Duration `yaml:"embeddingTTL"`
}

// SearchConfig tunes candidate retrieval.
type SearchConfig struct {
	DefaultTopK     int    `yaml:"defaultTopK"`
	OverfetchFactor int    `yaml:"overfetchFactor"`
	OverfetchFloor  int    `yaml:"overfetchFloor"`
	MaxTopK         int    `yaml:"maxTopK"`
	RankBy          string `yaml:"rankBy"`
}

// ScoringConfig holds the hybrid score calibration.
type ScoringConfig struct {
	VectorWeight      float64 `yaml:"vectorWeight"`
	OverlapWeight     float64 `yaml:"overlapWeight"`
	Saturation        float64 `yaml:"saturation"`
	SystemsWeight     float64 `yaml:"systems"`
	VendorsWeight     float64 `yaml:"vendors"`
	PortsWeight       float64 `yaml:"ports"`
	ProtocolsWeight   float64 `yaml:"protocols"`
	ObservablesWeight float64 `yaml:"observables"`
}

// EvidenceConfig controls where uploads are written.
type EvidenceConfig struct {
	UploadDir string `yaml:"uploadDir"`
}

// RemediationConfig points at an optional checklist file.
type RemediationConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig sizes the embedding worker pool.
type IngestConfig struct {
	PoolSize int `yaml:"poolSize"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_RECALL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.Host == "" || c.Embedding.Model == "" {
			return fmt.Errorf("embedding.host and embedding.model are required for the openai provider")
		}
	case "hash":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Index.Backend {
	case "qdrant":
		if c.Index.Qdrant.URL == "" {
			return fmt.Errorf("index.qdrant.url is required for the qdrant backend")
		}
	case "badger":
		if c.Index.Badger.Path == "" && !c.Index.Badger.InMemory {
			return fmt.Errorf("index.badger.path is required unless index.badger.inMemory is set")
		}
	default:
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	if c.Index.SemanticCollection == c.Index.EntityCollection {
		return fmt.Errorf("semantic and entity collections must differ")
	}
	switch c.Search.RankBy {
	case "retrieval", "score":
	default:
		return fmt.Errorf("unknown search.rankBy %q", c.Search.RankBy)
	}
	if c.Search.MaxTopK <= 0 || c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.maxTopK must be positive and at least search.defaultTopK")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when the cache is enabled")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Model:     "all-minilm",
			Dimension: 384,
			Timeout:   10 * time.Second,
			LRUSize:   4096,
		},
		Index: IndexConfig{
			Backend:            "badger",
			SemanticCollection: "incidents_semantic",
			EntityCollection:   "incidents_entities",
			Qdrant:             QdrantConfig{Timeout: 5 * time.Second},
			Badger:             BadgerConfig{Path: "data/index"},
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			EmbeddingTTL: 24 * time.Hour,
		},
		Search: SearchConfig{
			DefaultTopK:     5,
			OverfetchFactor: 6,
			OverfetchFloor:  30,
			MaxTopK:         100,
			RankBy:          "retrieval",
		},
		Scoring: ScoringConfig{
			VectorWeight:      0.7,
			OverlapWeight:     0.3,
			Saturation:        8.0,
			SystemsWeight:     1.0,
			VendorsWeight:     1.0,
			PortsWeight:       1.0,
			ProtocolsWeight:   0.5,
			ObservablesWeight: 0.5,
		},
		Evidence:    EvidenceConfig{UploadDir: "data/uploads"},
		Remediation: RemediationConfig{Path: "configs/remediation/default.yaml"},
		Ingest:      IngestConfig{PoolSize: 4},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_RECALL_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_RECALL_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_RECALL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_RECALL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_RECALL_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("MIRADOR_RECALL_EMBEDDING_HOST"); v != "" {
		cfg.Embedding.Host = v
	}
	if v := os.Getenv("MIRADOR_RECALL_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("MIRADOR_RECALL_EMBEDDING_TOKEN"); v != "" {
		cfg.Embedding.Token = v
	}
	if v := os.Getenv("MIRADOR_RECALL_EMBEDDING_DIMENSION"); v != "" {
		if dim, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimension = dim
		}
	}
	if v := os.Getenv("MIRADOR_RECALL_INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
	if v := os.Getenv("MIRADOR_RECALL_QDRANT_URL"); v != "" {
		cfg.Index.Qdrant.URL = v
	}
	if v := os.Getenv("MIRADOR_RECALL_QDRANT_API_KEY"); v != "" {
		cfg.Index.Qdrant.APIKey = v
	}
	if v := os.Getenv("MIRADOR_RECALL_BADGER_PATH"); v != "" {
		cfg.Index.Badger.Path = v
	}
	if v := os.Getenv("MIRADOR_RECALL_BADGER_IN_MEMORY"); v != "" {
		cfg.Index.Badger.InMemory = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_RECALL_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_RECALL_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MIRADOR_RECALL_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MIRADOR_RECALL_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MIRADOR_RECALL_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_RECALL_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("MIRADOR_RECALL_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.EmbeddingTTL = d
		}
	}
	if v := os.Getenv("MIRADOR_RECALL_SEARCH_RANK_BY"); v != "" {
		cfg.Search.RankBy = v
	}
	if v := os.Getenv("MIRADOR_RECALL_SEARCH_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultTopK = k
		}
	}
	if v := os.Getenv("MIRADOR_RECALL_SEARCH_MAX_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxTopK = k
		}
	}
	if v := os.Getenv("MIRADOR_RECALL_UPLOAD_DIR"); v != "" {
		cfg.Evidence.UploadDir = v
	}
	if v := os.Getenv("MIRADOR_RECALL_REMEDIATION_PATH"); v != "" {
		cfg.Remediation.Path = v
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
