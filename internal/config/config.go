package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`

	EmbeddedPostgres     bool   `env:"EMBEDDED_POSTGRES" envDefault:"false"`
	EmbeddedPostgresPort uint32 `env:"EMBEDDED_POSTGRES_PORT" envDefault:"5433"`
	EmbeddedPostgresDir  string `env:"EMBEDDED_POSTGRES_DIR" envDefault:"./.pgdata"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"90s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken   string   `env:"AUTH_TOKEN"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	UserHeader  string   `env:"USER_HEADER" envDefault:"X-User-ID"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`

	LLMProvider    string        `env:"LLM_PROVIDER" envDefault:"gemini"`
	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMModel       string        `env:"LLM_MODEL"`
	LLMBaseURL     string        `env:"LLM_BASE_URL"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	LLMTemperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.8"`
	LLMTopP        float64       `env:"LLM_TOP_P" envDefault:"0.95"`
	LLMTopK        int           `env:"LLM_TOP_K" envDefault:"40"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"2048"`

	// QuestionCount overrides the prompts file when set.
	QuestionCount   int    `env:"QUESTION_COUNT"`
	MinAnswerLength int    `env:"MIN_ANSWER_LENGTH" envDefault:"30"`
	PromptsFile     string `env:"PROMPTS_FILE"`

	RecordingsDir  string   `env:"RECORDINGS_DIR" envDefault:"./recordings"`
	MaxRecordingMB int      `env:"MAX_RECORDING_MB" envDefault:"25"`
	S3             S3Config `envPrefix:"S3_"`

	MQTTBrokerURL    string `env:"MQTT_BROKER_URL"`
	MQTTClientID     string `env:"MQTT_CLIENT_ID" envDefault:"mockprep"`
	MQTTUsername     string `env:"MQTT_USERNAME"`
	MQTTPassword     string `env:"MQTT_PASSWORD"`
	MQTTTopicPrefix  string `env:"MQTT_TOPIC_PREFIX" envDefault:"mockprep"`
	MQTTEmbeddedAddr string `env:"MQTT_EMBEDDED_ADDR"`

	EventRingSize int `env:"EVENT_RING_SIZE" envDefault:"256"`
}

// S3Config configures the S3-compatible recording store. An empty Bucket
// keeps recordings on local disk.
type S3Config struct {
	Bucket        string        `env:"BUCKET"`
	Endpoint      string        `env:"ENDPOINT"`
	Region        string        `env:"REGION" envDefault:"us-east-1"`
	AccessKey     string        `env:"ACCESS_KEY"`
	SecretKey     string        `env:"SECRET_KEY"`
	Prefix        string        `env:"PREFIX"`
	PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
}

func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile       string
	HTTPAddr      string
	LogLevel      string
	DatabaseURL   string
	RecordingsDir string
	PromptsFile   string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.RecordingsDir != "" {
		cfg.RecordingsDir = overrides.RecordingsDir
	}
	if overrides.PromptsFile != "" {
		cfg.PromptsFile = overrides.PromptsFile
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" && !c.EmbeddedPostgres {
		errs = append(errs, errors.New("DATABASE_URL is required unless EMBEDDED_POSTGRES=true"))
	}
	if c.QuestionCount < 0 {
		errs = append(errs, fmt.Errorf("QUESTION_COUNT must not be negative, got %d", c.QuestionCount))
	}
	if c.MinAnswerLength < 0 {
		errs = append(errs, fmt.Errorf("MIN_ANSWER_LENGTH must be >= 0, got %d", c.MinAnswerLength))
	}
	switch strings.ToLower(c.LLMProvider) {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be gemini or openai, got %q", c.LLMProvider))
	}
	if c.MaxRecordingMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_RECORDING_MB must be positive, got %d", c.MaxRecordingMB))
	}
	return errors.Join(errs...)
}

// MaxRecordingBytes is MaxRecordingMB in bytes.
func (c *Config) MaxRecordingBytes() int64 {
	return int64(c.MaxRecordingMB) << 20
}
