package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Model provider. GEMINI_API_KEY is the one required credential.
	ModelProvider   string        `mapstructure:"MODEL_PROVIDER"`
	GeminiAPIKey    string        `mapstructure:"GEMINI_API_KEY"`
	ModelName       string        `mapstructure:"MODEL_NAME"`
	Temperature     float32       `mapstructure:"TEMPERATURE"`
	MaxSteps        int           `mapstructure:"MAX_STEPS"`
	StreamTimeout   time.Duration `mapstructure:"STREAM_TIMEOUT"`
	ExecutorLatency time.Duration `mapstructure:"EXECUTOR_LATENCY"`

	// Temporal context.
	Timezone string `mapstructure:"TIMEZONE"`
	Locale   string `mapstructure:"LOCALE"`

	// Resident identity injected into the system prompt.
	ResidentName string `mapstructure:"RESIDENT_NAME"`
	ResidentUnit string `mapstructure:"RESIDENT_UNIT"`

	// Session transcripts.
	TranscriptStore string        `mapstructure:"TRANSCRIPT_STORE"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB  int           `mapstructure:"REDIS_SESSION_DB"`
}

const (
	ProviderGemini = "gemini"
	ProviderLocal  = "local"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)

	v.SetDefault("MODEL_PROVIDER", ProviderGemini)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("MODEL_NAME", "gemini-1.5-flash")
	v.SetDefault("TEMPERATURE", 0.7)
	v.SetDefault("MAX_STEPS", 5)
	v.SetDefault("STREAM_TIMEOUT", "30s")
	v.SetDefault("EXECUTOR_LATENCY", "300ms")

	v.SetDefault("TIMEZONE", "Europe/Madrid")
	v.SetDefault("LOCALE", "es-ES")

	v.SetDefault("RESIDENT_NAME", "")
	v.SetDefault("RESIDENT_UNIT", "")

	v.SetDefault("TRANSCRIPT_STORE", StoreMemory)
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_SESSION_DB", 3)
}

// Validate fails fast on settings that would otherwise corrupt every
// request downstream, most importantly the notion of "now".
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("LOCALE %q: %w", c.Locale, err)
	}
	switch c.ModelProvider {
	case ProviderGemini, ProviderLocal:
	default:
		return fmt.Errorf("MODEL_PROVIDER %q: expected %q or %q", c.ModelProvider, ProviderGemini, ProviderLocal)
	}
	switch c.TranscriptStore {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("TRANSCRIPT_STORE %q: expected %q or %q", c.TranscriptStore, StoreMemory, StoreRedis)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("MAX_STEPS must be positive, got %d", c.MaxSteps)
	}
	if c.StreamTimeout <= 0 {
		return fmt.Errorf("STREAM_TIMEOUT must be positive, got %s", c.StreamTimeout)
	}
	return nil
}

// CredentialConfigured reports whether the selected model provider can be
// called. The local provider needs no credential.
func (c Config) CredentialConfigured() bool {
	if c.ModelProvider == ProviderLocal {
		return true
	}
	return c.GeminiAPIKey != ""
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
