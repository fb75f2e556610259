package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Set required env vars for all subtests
	cleanup := setEnvs(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/test",
		"LLM_API_KEY":  "k",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.RecordingsDir != "./recordings" {
			t.Errorf("RecordingsDir = %q, want ./recordings", cfg.RecordingsDir)
		}
		if cfg.LLMProvider != "gemini" {
			t.Errorf("LLMProvider = %q, want gemini", cfg.LLMProvider)
		}
		if cfg.LLMTimeout != 60*time.Second {
			t.Errorf("LLMTimeout = %v, want 60s", cfg.LLMTimeout)
		}
		if cfg.LLMTemperature != 0.8 || cfg.LLMTopP != 0.95 || cfg.LLMTopK != 40 || cfg.LLMMaxTokens != 2048 {
			t.Errorf("generation defaults = %v/%v/%v/%v", cfg.LLMTemperature, cfg.LLMTopP, cfg.LLMTopK, cfg.LLMMaxTokens)
		}
		if cfg.MinAnswerLength != 30 {
			t.Errorf("MinAnswerLength = %d, want 30", cfg.MinAnswerLength)
		}
		if cfg.QuestionCount != 0 {
			t.Errorf("QuestionCount = %d, want 0 (prompts file decides)", cfg.QuestionCount)
		}
		if cfg.UserHeader != "X-User-ID" {
			t.Errorf("UserHeader = %q, want X-User-ID", cfg.UserHeader)
		}
		if cfg.MQTTTopicPrefix != "mockprep" {
			t.Errorf("MQTTTopicPrefix = %q, want mockprep", cfg.MQTTTopicPrefix)
		}
		if cfg.S3.Enabled() {
			t.Error("S3 enabled without a bucket")
		}
		if cfg.S3.PresignExpiry != time.Hour {
			t.Errorf("S3.PresignExpiry = %v, want 1h", cfg.S3.PresignExpiry)
		}
		if cfg.MaxRecordingBytes() != 25<<20 {
			t.Errorf("MaxRecordingBytes = %d", cfg.MaxRecordingBytes())
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:       "nonexistent.env",
			HTTPAddr:      ":9090",
			LogLevel:      "debug",
			DatabaseURL:   "postgres://override/db",
			RecordingsDir: "/tmp/rec",
			PromptsFile:   "/etc/mockprep/prompts.yaml",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.DatabaseURL != "postgres://override/db" {
			t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
		}
		if cfg.RecordingsDir != "/tmp/rec" {
			t.Errorf("RecordingsDir = %q, want /tmp/rec", cfg.RecordingsDir)
		}
		if cfg.PromptsFile != "/etc/mockprep/prompts.yaml" {
			t.Errorf("PromptsFile = %q", cfg.PromptsFile)
		}
	})

	t.Run("empty_overrides_use_env", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		// Empty override fields should not overwrite env values
		if cfg.DatabaseURL != "postgres://localhost/test" {
			t.Errorf("DatabaseURL = %q, want env value", cfg.DatabaseURL)
		}
	})
}

func TestLoadNested(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"DATABASE_URL":   "postgres://localhost/test",
		"S3_BUCKET":      "recordings",
		"S3_ENDPOINT":    "http://minio:9000",
		"S3_PREFIX":      "dev",
		"CORS_ORIGINS":   "http://localhost:3000,https://app.example.com",
		"QUESTION_COUNT": "7",
	})
	defer cleanup()

	cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.S3.Enabled() || cfg.S3.Bucket != "recordings" || cfg.S3.Endpoint != "http://minio:9000" || cfg.S3.Prefix != "dev" {
		t.Errorf("S3 = %+v", cfg.S3)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://app.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.QuestionCount != 7 {
		t.Errorf("QuestionCount = %d, want 7", cfg.QuestionCount)
	}
}

func TestLoadEnvFile(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"DATABASE_URL": "", "LLM_MODEL": ""})
	defer cleanup()
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("LLM_MODEL")

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("DATABASE_URL=postgres://fromfile/db\nLLM_MODEL=gemini-2.0-flash\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv.Load sets process env; clean it up afterwards
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("LLM_MODEL")
	})

	cfg, err := Load(Overrides{EnvFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://fromfile/db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.LLMModel != "gemini-2.0-flash" {
		t.Errorf("LLMModel = %q", cfg.LLMModel)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	// Clear any existing values
	cleanup := setEnvs(t, map[string]string{
		"DATABASE_URL":      "",
		"EMBEDDED_POSTGRES": "",
	})
	defer cleanup()
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("EMBEDDED_POSTGRES")

	_, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}

	os.Setenv("EMBEDDED_POSTGRES", "true")
	if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err != nil {
		t.Errorf("embedded postgres should not need DATABASE_URL: %v", err)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown_provider", "LLM_PROVIDER", "llama"},
		{"negative_question_count", "QUESTION_COUNT", "-1"},
		{"zero_recording_size", "MAX_RECORDING_MB", "0"},
		{"bad_duration", "LLM_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setEnvs(t, map[string]string{
				"DATABASE_URL": "postgres://localhost/test",
				tt.key:         tt.val,
			})
			defer cleanup()
			if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
