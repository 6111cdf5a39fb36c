package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                string
	DBPath              string
	JWTSecret           string
	TokenTTL            time.Duration
	CORSOrigins         []string
	MigrationsDir       string
	IntentPath          string
	Timezone            string
	Location            *time.Location
	AggregateMaxRetries int
	LogLevel            string
	LogFormat           string
	Calendar            CalendarConfig
}

type CalendarConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// FileConfig is the optional YAML file named by FOCUSFLOW_CONFIG. Values in
// it replace the built-in defaults; environment variables still win.
type FileConfig struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Database struct {
		Path          string `yaml:"path"`
		MigrationsDir string `yaml:"migrations_dir"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret     string `yaml:"jwt_secret"`
		TokenTTLHours int    `yaml:"token_ttl_hours"`
	} `yaml:"auth"`
	Focus struct {
		Timezone            string `yaml:"timezone"`
		IntentPath          string `yaml:"intent_path"`
		AggregateMaxRetries *int   `yaml:"aggregate_max_retries"`
	} `yaml:"focus"`
	Calendar struct {
		Endpoint       string `yaml:"endpoint"`
		Token          string `yaml:"token"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"calendar"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func LoadFile(path string) (*FileConfig, error) {
	if path == "" {
		return &FileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var file FileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &file, nil
}

// Load reads the optional config file, then the environment.
func Load() (Config, error) {
	file, err := LoadFile(os.Getenv("FOCUSFLOW_CONFIG"))
	if err != nil {
		return Config{}, err
	}

	maxRetries := 5
	if file.Focus.AggregateMaxRetries != nil {
		maxRetries = *file.Focus.AggregateMaxRetries
	}

	cfg := Config{
		Port:                getEnv("PORT", orDefault(file.Server.Port, "8080")),
		DBPath:              getEnv("DB_PATH", orDefault(file.Database.Path, "./data/focusflow.db")),
		JWTSecret:           getEnv("JWT_SECRET", orDefault(file.Auth.JWTSecret, "change-this-secret")),
		TokenTTL:            time.Duration(getEnvInt("TOKEN_TTL_HOURS", orDefaultInt(file.Auth.TokenTTLHours, 72))) * time.Hour,
		CORSOrigins:         getEnvList("CORS_ORIGINS", orDefaultList(file.Server.CORSOrigins, []string{"http://localhost:3000", "http://127.0.0.1:3000"})),
		MigrationsDir:       getEnv("MIGRATIONS_DIR", orDefault(file.Database.MigrationsDir, "./migrations")),
		IntentPath:          getEnv("INTENT_PATH", orDefault(file.Focus.IntentPath, "./data/intent.yaml")),
		Timezone:            getEnv("TIMEZONE", orDefault(file.Focus.Timezone, "Local")),
		AggregateMaxRetries: getEnvInt("AGGREGATE_MAX_RETRIES", maxRetries),
		LogLevel:            getEnv("LOG_LEVEL", orDefault(file.Log.Level, "info")),
		LogFormat:           getEnv("LOG_FORMAT", orDefault(file.Log.Format, "text")),
		Calendar: CalendarConfig{
			Endpoint: getEnv("CALENDAR_ENDPOINT", file.Calendar.Endpoint),
			Token:    getEnv("CALENDAR_TOKEN", file.Calendar.Token),
			Timeout:  time.Duration(getEnvInt("CALENDAR_TIMEOUT_SECONDS", orDefaultInt(file.Calendar.TimeoutSeconds, 10))) * time.Second,
		},
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	if cfg.AggregateMaxRetries < 0 {
		cfg.AggregateMaxRetries = 0
	}
	return cfg, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func orDefaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func orDefaultList(value, fallback []string) []string {
	if len(value) == 0 {
		return fallback
	}
	return value
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
