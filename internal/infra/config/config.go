package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Store          StoreConfig          `yaml:"store"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	Cache          CacheConfig          `yaml:"cache"`
	Scoring        ScoringConfig        `yaml:"scoring"`
	Retrieval      RetrievalConfig      `yaml:"retrieval"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	MCP            MCPConfig            `yaml:"mcp"`
	Logger         LoggerConfig         `yaml:"logger"`
	Tracer         TracerConfig         `yaml:"tracer"`
	Security       SecurityConfig       `yaml:"security"`
	Includes       []string             `yaml:"includes,omitempty"`
}

// StoreConfig holds the hybrid vector-relational store's on-disk settings.
type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"` // overrides data_dir/memories.db when set
}

// EmbeddingConfig holds text embedding provider settings.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // "openai", "gemini", "ollama", "local"
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key,omitempty"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
}

// CacheConfig holds the shared embedding LRU cache's settings.
type CacheConfig struct {
	MaxSize int `yaml:"max_size"`
}

// ScoringConfig holds the composite ranking score's weights.
// Weights need not sum to 1; they are used as configured.
type ScoringConfig struct {
	SimilarityWeight float64 `yaml:"similarity_weight"`
	RecencyWeight    float64 `yaml:"recency_weight"`
	PriorityWeight   float64 `yaml:"priority_weight"`
	UsageWeight      float64 `yaml:"usage_weight"`
}

// RetrievalConfig holds the dedup and search tuning thresholds.
type RetrievalConfig struct {
	DuplicateThreshold float32 `yaml:"duplicate_threshold"` // τ_dup, default 0.9
	SimilarityFloor    float32 `yaml:"similarity_floor"`    // τ_sim, default 0.7
	DedupCheckEnabled  bool    `yaml:"dedup_check_enabled"`
	DefaultLimit       int     `yaml:"default_limit"`
	MaxLimit           int     `yaml:"max_limit"`
}

// RateLimitConfig throttles outbound calls to HTTP-backed embedding providers.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CircuitBreakerConfig protects HTTP-backed embedding providers from
// cascading failures.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// MCPConfig holds the tool-server transport settings.
type MCPConfig struct {
	Name      string `yaml:"name"`
	Transport string `yaml:"transport"` // "stdio" or "http"
	Addr      string `yaml:"addr,omitempty"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// SecurityConfig holds settings unrelated to the request path proper.
type SecurityConfig struct {
	Encryption EncryptionConfig `yaml:"encryption"`
}

// EncryptionConfig holds at-rest secret encryption settings.
// Passphrase is read from the MEMORYVAULT_CONFIG_KEY env var.
type EncryptionConfig struct {
	Enabled bool `yaml:"enabled"`
}

// defaultDataDir returns the persistent data directory under $HOME/.memoryvault/data.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".memoryvault", "data")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Store: StoreConfig{
			DataDir: dataDir,
		},
		Embedding: EmbeddingConfig{
			Provider:   "local",
			Model:      "local-hash",
			Dimensions: 384,
			Timeout:    30 * time.Second,
		},
		Cache: CacheConfig{
			MaxSize: 1000,
		},
		Scoring: ScoringConfig{
			SimilarityWeight: 0.4,
			RecencyWeight:    0.2,
			PriorityWeight:   0.2,
			UsageWeight:      0.2,
		},
		Retrieval: RetrievalConfig{
			DuplicateThreshold: 0.9,
			SimilarityFloor:    0.7,
			DedupCheckEnabled:  true,
			DefaultLimit:       10,
			MaxLimit:           100,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:     true,
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			Interval:    60 * time.Second,
		},
		MCP: MCPConfig{
			Name:      "memoryvault",
			Transport: "stdio",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Security: SecurityConfig{
			Encryption: EncryptionConfig{Enabled: false},
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass: unmarshal to get the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Process includes (merges included files into cfg).
	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}

		// Second pass: re-unmarshal main config so it takes precedence over includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	passphrase := os.Getenv("MEMORYVAULT_CONFIG_KEY")
	if passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps MEMORYVAULT_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEMORYVAULT_STORE_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("MEMORYVAULT_STORE_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("MEMORYVAULT_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("MEMORYVAULT_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("MEMORYVAULT_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("MEMORYVAULT_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("MEMORYVAULT_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("MEMORYVAULT_EMBEDDING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Embedding.Timeout = d
		}
	}
	if v := os.Getenv("MEMORYVAULT_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Cache.MaxSize = n
		}
	}
	if v := os.Getenv("MEMORYVAULT_RETRIEVAL_DUPLICATE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Retrieval.DuplicateThreshold = float32(f)
		}
	}
	if v := os.Getenv("MEMORYVAULT_RETRIEVAL_SIMILARITY_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Retrieval.SimilarityFloor = float32(f)
		}
	}
	if v := os.Getenv("MEMORYVAULT_RETRIEVAL_DEDUP_CHECK_ENABLED"); v != "" {
		cfg.Retrieval.DedupCheckEnabled = v == "true"
	}
	if v := os.Getenv("MEMORYVAULT_RATE_LIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = v == "true"
	}
	if v := os.Getenv("MEMORYVAULT_RATE_LIMIT_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateLimit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("MEMORYVAULT_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = v == "true"
	}
	if v := os.Getenv("MEMORYVAULT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("MEMORYVAULT_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("MEMORYVAULT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("MEMORYVAULT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("MEMORYVAULT_MCP_TRANSPORT"); v != "" {
		cfg.MCP.Transport = v
	}
	if v := os.Getenv("MEMORYVAULT_MCP_ADDR"); v != "" {
		cfg.MCP.Addr = v
	}
	if v := os.Getenv("MEMORYVAULT_SECURITY_ENCRYPTION_ENABLED"); v == "true" {
		cfg.Security.Encryption.Enabled = true
	}
}

// decryptSecrets finds "enc:..." values among secret-bearing fields and
// decrypts them in place.
func decryptSecrets(cfg *Config, passphrase string) error {
	if strings.HasPrefix(cfg.Embedding.APIKey, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(cfg.Embedding.APIKey, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("embedding api_key: %w", err)
		}
		cfg.Embedding.APIKey = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
