package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the server and observability configuration for the speech
// synthesis function
type Config struct {
	// Server configuration. The Functions host hands the custom handler its port.
	Port  string `envconfig:"FUNCTIONS_CUSTOMHANDLER_PORT" default:"8080"`
	Route string `envconfig:"FUNCTION_ROUTE" default:"/api/synthesize"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""`    // Empty disables the gRPC health server
}

// SpeechConfig holds the settings the synthesizer is built from. It is loaded
// separately from Config: an error here fails synthesizer construction, not startup.
type SpeechConfig struct {
	// Key and region carry no defaults and are not validated here: an absent
	// value is handed to the synthesizer, which refuses to construct.
	Key          string        `envconfig:"SPEECH_KEY"`
	Region       string        `envconfig:"SPEECH_REGION"`
	Voice        string        `envconfig:"SPEECH_VOICE" default:"pt-BR-FranciscaNeural"`
	OutputFormat string        `envconfig:"SPEECH_OUTPUT_FORMAT" default:"riff-16khz-16bit-mono-pcm"`
	Endpoint     string        `envconfig:"SPEECH_ENDPOINT" default:""`  // Overrides the region endpoint
	Timeout      time.Duration `envconfig:"SPEECH_TIMEOUT" default:"0s"` // 0 inherits the host timeout

	// Resilience configuration (0 failures disables the breaker)
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"0"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// LoadSpeechFromEnv loads the synthesizer settings from environment variables
func LoadSpeechFromEnv() (*SpeechConfig, error) {
	var cfg SpeechConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load speech config: %w", err)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("SPEECH_TIMEOUT must not be negative, got %s", cfg.Timeout)
	}
	if cfg.CircuitBreakerMaxFailures < 0 {
		return nil, fmt.Errorf("CIRCUIT_BREAKER_MAX_FAILURES must not be negative, got %d", cfg.CircuitBreakerMaxFailures)
	}
	if cfg.CircuitBreakerResetTimeout < 0 {
		return nil, fmt.Errorf("CIRCUIT_BREAKER_RESET_TIMEOUT must not be negative, got %d", cfg.CircuitBreakerResetTimeout)
	}

	return &cfg, nil
}

// CircuitBreakerEnabled reports whether calls to the speech service go through a breaker
func (c *SpeechConfig) CircuitBreakerEnabled() bool {
	return c.CircuitBreakerMaxFailures > 0
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
