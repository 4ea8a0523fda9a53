package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MaxBatchLimit is the hard ceiling for images per batch request.
const MaxBatchLimit = 10

const (
	maxDocWorkers      = 64
	weightSumTolerance = 1e-6
)

type ModelConfig struct {
	Dir              string
	RuntimeLibPath   string
	PoolSize         int
	ObjectThreshold  float64
	DiseaseThreshold float64
	RetireGrace      time.Duration
	// QualityWeights are freshness, color, texture and size, summing to 1
	QualityWeights [4]float64
	DefectPenalty  float64
}

type UploadConfig struct {
	Backend        string // "local" or "azure"
	Dir            string
	AzureAccount   string
	AzureKey       string
	AzureContainer string
}

// Config configures the herb analysis service.
type Config struct {
	Host               string
	Port               string
	LogLevel           string
	RequestTimeout     time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64
	MaxBatchSize       int
	SigningSecret      string
	APIKey             string
	HistoryDBPath      string
	Models             ModelConfig
	Uploads            UploadConfig
}

func (c *Config) ServerAddress() string {
	return joinHostPort(c.Host, c.Port)
}

// DocServiceConfig configures the document validation / reasoning service.
type DocServiceConfig struct {
	Host               string
	Port               string
	LogLevel           string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	ModelDir           string
	RuntimeLibPath     string
	PoolSize           int
	KnowledgeBasePath  string
	YieldModelPath     string
	OCREnabled         bool
	OCRLanguages       []string
	Workers            int
}

func (c *DocServiceConfig) ServerAddress() string {
	return joinHostPort(c.Host, c.Port)
}

// LoadDotEnv loads a .env file from the working directory when one exists.
// Values already present in the environment are not overridden.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadFromEnv() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "5000"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 30*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 50*1024*1024), // 50MB
		MaxBatchSize:       int(parseIntOrDefault("MAX_BATCH_SIZE", MaxBatchLimit)),
		SigningSecret:      os.Getenv("SIGNING_SECRET"),
		APIKey:             getEnvOrDefault("API_KEY", os.Getenv("GACP_API_KEY")),
		HistoryDBPath:      os.Getenv("HISTORY_DB_PATH"),
		Models: ModelConfig{
			Dir:              getEnvOrDefault("MODEL_DIR", "./models"),
			RuntimeLibPath:   os.Getenv("ONNXRUNTIME_LIB_PATH"),
			PoolSize:         int(parseIntOrDefault("MODEL_POOL_SIZE", 2)),
			ObjectThreshold:  parseFloatOrDefault("OBJECT_CONFIDENCE_THRESHOLD", 0.25),
			DiseaseThreshold: parseFloatOrDefault("DISEASE_CONFIDENCE_THRESHOLD", 0.5),
			RetireGrace:      parseDurationOrDefault("MODEL_RETIRE_GRACE", 30*time.Second),
			DefectPenalty:    parseFloatOrDefault("DEFECT_PENALTY", 0.05),
		},
		Uploads: UploadConfig{
			Backend:        strings.ToLower(getEnvOrDefault("UPLOAD_BACKEND", "local")),
			Dir:            getEnvOrDefault("UPLOAD_DIR", "./uploads"),
			AzureAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
			AzureKey:       os.Getenv("AZURE_STORAGE_KEY"),
			AzureContainer: getEnvOrDefault("AZURE_STORAGE_CONTAINER", "uploads"),
		},
	}

	weights, err := parseWeights(getEnvOrDefault("QUALITY_WEIGHTS", "0.30,0.30,0.20,0.20"))
	if err != nil {
		return nil, err
	}
	cfg.Models.QualityWeights = weights

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validatePort(c.Port); err != nil {
		return err
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s)",
			c.RequestTimeout, c.AnalysisTimeout)
	}
	if c.MaxBatchSize < 1 || c.MaxBatchSize > MaxBatchLimit {
		return fmt.Errorf("MAX_BATCH_SIZE must be within 1..%d (got %d)", MaxBatchLimit, c.MaxBatchSize)
	}
	if c.Models.PoolSize < 1 {
		return fmt.Errorf("MODEL_POOL_SIZE must be >= 1 (got %d)", c.Models.PoolSize)
	}
	if !inUnitRange(c.Models.ObjectThreshold) || !inUnitRange(c.Models.DiseaseThreshold) {
		return fmt.Errorf("confidence thresholds must be within [0,1] (got object=%g, disease=%g)",
			c.Models.ObjectThreshold, c.Models.DiseaseThreshold)
	}
	if !inUnitRange(c.Models.DefectPenalty) {
		return fmt.Errorf("DEFECT_PENALTY must be within [0,1] (got %g)", c.Models.DefectPenalty)
	}
	if err := validateWeights(c.Models.QualityWeights); err != nil {
		return err
	}
	switch c.Uploads.Backend {
	case "local":
		if strings.TrimSpace(c.Uploads.Dir) == "" {
			return fmt.Errorf("UPLOAD_DIR must not be empty")
		}
	case "azure":
		if c.Uploads.AzureAccount == "" || c.Uploads.AzureKey == "" {
			return fmt.Errorf("azure upload backend requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
	default:
		return fmt.Errorf("unsupported UPLOAD_BACKEND: %q", c.Uploads.Backend)
	}
	return nil
}

func LoadDocServiceFromEnv() (*DocServiceConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &DocServiceConfig{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8000"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 50*1024*1024),
		ModelDir:           getEnvOrDefault("MODEL_DIR", "./models"),
		RuntimeLibPath:     os.Getenv("ONNXRUNTIME_LIB_PATH"),
		PoolSize:           int(parseIntOrDefault("MODEL_POOL_SIZE", 2)),
		KnowledgeBasePath:  getEnvOrDefault("KNOWLEDGE_BASE_PATH", "./knowledge/gacp_rules.json"),
		YieldModelPath:     getEnvOrDefault("YIELD_MODEL_PATH", "./models/yield_predictor.json"),
		OCREnabled:         parseBoolOrDefault("OCR_ENABLED", false),
		OCRLanguages:       splitList(getEnvOrDefault("OCR_LANGUAGES", "eng+tha"), "+"),
		Workers:            int(parseIntOrDefault("DOC_WORKERS", 4)),
	}

	if err := validatePort(cfg.Port); err != nil {
		return nil, err
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be > 0 (got %s)", cfg.RequestTimeout)
	}
	if cfg.PoolSize < 1 {
		return nil, fmt.Errorf("MODEL_POOL_SIZE must be >= 1 (got %d)", cfg.PoolSize)
	}
	if cfg.Workers < 1 || cfg.Workers > maxDocWorkers {
		return nil, fmt.Errorf("DOC_WORKERS must be within 1..%d (got %d)", maxDocWorkers, cfg.Workers)
	}
	return cfg, nil
}

func joinHostPort(host, port string) string {
	return net.JoinHostPort(strings.TrimSpace(host), strings.TrimSpace(port))
}

func validatePort(port string) error {
	p, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", port)
	}
	return nil
}

// parseWeights reads four comma-separated quality weights
func parseWeights(value string) ([4]float64, error) {
	var w [4]float64
	parts := splitList(value, ",")
	if len(parts) != len(w) {
		return w, fmt.Errorf("QUALITY_WEIGHTS needs 4 values (got %q)", value)
	}
	for i, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return w, fmt.Errorf("invalid QUALITY_WEIGHTS value %q: %w", part, err)
		}
		w[i] = f
	}
	return w, nil
}

func validateWeights(w [4]float64) error {
	sum := 0.0
	for _, v := range w {
		if !inUnitRange(v) {
			return fmt.Errorf("QUALITY_WEIGHTS must be within [0,1] (got %v)", w)
		}
		sum += v
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("QUALITY_WEIGHTS must sum to 1 (got %g)", sum)
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

func splitList(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
