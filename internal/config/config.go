package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Environment   string
	App           AppConfig
	AWS           AWSConfig
	API           APIConfig
	Analysis      AnalysisConfig
	Catalog       CatalogConfig
	Worker        WorkerConfig
	Analyzer      AnalyzerConfig
	Observability ObservabilityConfig
	CORS          CORSConfig
}

// AppConfig holds service identity reported by the info endpoint.
type AppConfig struct {
	Name    string
	Version string
}

// AWSConfig holds AWS-specific configuration.
type AWSConfig struct {
	Region        string
	VideoBucket   string
	DynamoDBTable string
	SQSQueueURL   string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// APIConfig holds API server configuration.
type APIConfig struct {
	Port           string
	JWTSecret      string
	MaxUploadBytes int64
	// QueueDispatch hands processing to the worker through SQS instead of
	// running it in the API process.
	QueueDispatch bool
	// TrustedProxyHops is how many reverse proxies sit in front of the API.
	TrustedProxyHops int
}

// AnalysisConfig decides between remote analysis and simulation.
type AnalysisConfig struct {
	FunctionURL     string
	FunctionToken   string
	UseRemote       bool
	GeminiAPIKey    string
	OpenAIAPIKey    string
	Timeout         time.Duration
	SimulationDelay time.Duration
}

// CatalogConfig holds music catalog credentials and endpoints.
type CatalogConfig struct {
	ClientID          string
	ClientSecret      string
	TokenURL          string
	APIBaseURL        string
	Market            string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// WorkerConfig holds worker-specific configuration.
type WorkerConfig struct {
	MaxConcurrentJobs int
	MetricsPort       int
}

// AnalyzerConfig holds configuration for the analysis function service.
type AnalyzerConfig struct {
	Port string
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTLPEndpoint string
	LogLevel     string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// Default values
const (
	DefaultPort              = "8000"
	DefaultAnalyzerPort      = "8081"
	DefaultMetricsPort       = 2112
	DefaultMaxConcurrentJobs = 2
	DefaultOTLPEndpoint      = "localhost:4317"
	DefaultRegion            = "us-west-2"
	DefaultMaxUploadBytes    = 100 * 1024 * 1024
	DefaultAnalysisTimeout   = 10 * time.Minute
	DefaultCatalogTokenURL   = "https://accounts.spotify.com/api/token"
	DefaultCatalogAPIBaseURL = "https://api.spotify.com/v1"
	DefaultCatalogMarket     = "US"
	DefaultCatalogRPS        = 5
	DefaultCatalogTimeout    = 10 * time.Second

	// PlaceholderCatalogClientID is the value shipped in sample env files.
	PlaceholderCatalogClientID = "your_spotify_client_id_here"
)

// Load reads an optional .env file and environment variables.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment is authoritative.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENV", "dev"),
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Video to Music API"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		AWS: AWSConfig{
			Region:        getEnv("AWS_REGION", DefaultRegion),
			VideoBucket:   os.Getenv("VIDEO_BUCKET"),
			DynamoDBTable: os.Getenv("DYNAMODB_TABLE"),
			SQSQueueURL:   os.Getenv("SQS_QUEUE_URL"),
			PublicBaseURL: os.Getenv("VIDEO_PUBLIC_BASE_URL"),
			PresignTTL:    getEnvDuration("VIDEO_PRESIGN_TTL", 0),
		},
		API: APIConfig{
			Port:             getEnv("PORT", DefaultPort),
			JWTSecret:        os.Getenv("JWT_SECRET"),
			MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
			QueueDispatch:    getEnvBool("QUEUE_DISPATCH", false),
			TrustedProxyHops: getEnvInt("TRUSTED_PROXY_HOPS", 0),
		},
		Analysis: AnalysisConfig{
			FunctionURL:     os.Getenv("ANALYSIS_FUNCTION_URL"),
			FunctionToken:   os.Getenv("ANALYSIS_FUNCTION_TOKEN"),
			UseRemote:       getEnvBool("USE_REMOTE_ANALYSIS", true),
			GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			Timeout:         getEnvDuration("ANALYSIS_TIMEOUT", DefaultAnalysisTimeout),
			SimulationDelay: getEnvDuration("SIMULATION_DELAY", 0),
		},
		Catalog: CatalogConfig{
			ClientID:          os.Getenv("SPOTIFY_CLIENT_ID"),
			ClientSecret:      os.Getenv("SPOTIFY_CLIENT_SECRET"),
			TokenURL:          getEnv("CATALOG_TOKEN_URL", DefaultCatalogTokenURL),
			APIBaseURL:        getEnv("CATALOG_API_BASE_URL", DefaultCatalogAPIBaseURL),
			Market:            getEnv("CATALOG_MARKET", DefaultCatalogMarket),
			RequestsPerSecond: getEnvFloat("CATALOG_REQUESTS_PER_SECOND", DefaultCatalogRPS),
			Timeout:           getEnvDuration("CATALOG_TIMEOUT", DefaultCatalogTimeout),
		},
		Worker: WorkerConfig{
			MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", DefaultMaxConcurrentJobs),
			MetricsPort:       getEnvInt("METRICS_PORT", DefaultMetricsPort),
		},
		Analyzer: AnalyzerConfig{
			Port: getEnv("ANALYZER_PORT", DefaultAnalyzerPort),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", DefaultOTLPEndpoint),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}),
		},
	}

	return cfg, nil
}

// LoadAPI loads configuration required for the API service.
func LoadAPI() (*Config, error) {
	return loadValidated((*Config).ValidateAPI)
}

// LoadWorker loads configuration required for the Worker service.
func LoadWorker() (*Config, error) {
	return loadValidated((*Config).ValidateWorker)
}

// LoadAnalyzer loads configuration required for the analysis function service.
func LoadAnalyzer() (*Config, error) {
	return loadValidated((*Config).ValidateAnalyzer)
}

func loadValidated(validate func(*Config) error) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateAPI validates configuration required for the API service.
func (c *Config) ValidateAPI() error {
	var errs []string

	if c.AWS.VideoBucket == "" {
		errs = append(errs, "VIDEO_BUCKET is required")
	}
	if c.AWS.DynamoDBTable == "" {
		errs = append(errs, "DYNAMODB_TABLE is required")
	}
	if c.API.QueueDispatch && c.AWS.SQSQueueURL == "" {
		errs = append(errs, "SQS_QUEUE_URL is required when QUEUE_DISPATCH is enabled")
	}
	if c.API.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.API.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
	}
	if c.RemoteAnalysisEnabled() && c.Analysis.FunctionToken == "" && c.IsProduction() {
		errs = append(errs, "ANALYSIS_FUNCTION_TOKEN is required in production when remote analysis is enabled")
	}

	return joinErrors(errs)
}

// ValidateWorker validates configuration required for the Worker service.
func (c *Config) ValidateWorker() error {
	var errs []string

	if c.AWS.SQSQueueURL == "" {
		errs = append(errs, "SQS_QUEUE_URL is required")
	}
	if c.AWS.DynamoDBTable == "" {
		errs = append(errs, "DYNAMODB_TABLE is required")
	}

	return joinErrors(errs)
}

// ValidateAnalyzer validates configuration required for the analysis function service.
func (c *Config) ValidateAnalyzer() error {
	var errs []string

	if c.AWS.DynamoDBTable == "" {
		errs = append(errs, "DYNAMODB_TABLE is required")
	}
	if c.IsProduction() && c.Analysis.FunctionToken == "" {
		errs = append(errs, "ANALYSIS_FUNCTION_TOKEN is required in production")
	}

	return joinErrors(errs)
}

func joinErrors(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "prod" || env == "production"
}

// HasAICredentials reports whether a usable Gemini or OpenAI key is configured.
// Sample placeholder values do not count.
func (c *Config) HasAICredentials() bool {
	return strings.HasPrefix(c.Analysis.GeminiAPIKey, "AIza") ||
		strings.HasPrefix(c.Analysis.OpenAIAPIKey, "sk-")
}

// RemoteAnalysisEnabled reports whether processing is delegated to the
// external analysis function. It requires AI credentials, the delegation
// flag and a function URL.
func (c *Config) RemoteAnalysisEnabled() bool {
	return c.HasAICredentials() && c.Analysis.UseRemote && c.Analysis.FunctionURL != ""
}

// CatalogConfigured reports whether catalog credentials are present and not placeholders.
func (c *Config) CatalogConfigured() bool {
	return c.Catalog.ClientID != "" &&
		c.Catalog.ClientSecret != "" &&
		c.Catalog.ClientID != PlaceholderCatalogClientID
}

// GetJWTSecret returns the identity provider signing secret.
func (c *Config) GetJWTSecret() ([]byte, error) {
	secret := c.API.JWTSecret

	if secret == "" {
		return nil, errors.New("JWT_SECRET is required (set it even for development)")
	}

	if len(secret) < 32 && c.IsProduction() {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}

	return []byte(secret), nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
