package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. ACTMS_SERVER__ADDRESS.
const EnvPrefix = "ACTMS_"

// DefaultFile is read when no --config flag is given and the file exists.
const DefaultFile = "actms.yaml"

type Config struct {
	Environment string `koanf:"environment" validate:"oneof=development production test"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Fraud    FraudConfig    `koanf:"fraud"`
	Chat     ChatConfig     `koanf:"chat"`
	Uploads  UploadsConfig  `koanf:"uploads"`
	Security SecurityConfig `koanf:"security"`
}

type ServerConfig struct {
	Address         string        `koanf:"address" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type CacheConfig struct {
	Backend      string        `koanf:"backend" validate:"oneof=memory redis"`
	RedisURL     string        `koanf:"redis_url" validate:"required_if=Backend redis"`
	DashboardTTL time.Duration `koanf:"dashboard_ttl"`
	ChatTTL      time.Duration `koanf:"chat_ttl"`
}

type FraudConfig struct {
	ModelDir        string  `koanf:"model_dir" validate:"required"`
	Contamination   float64 `koanf:"contamination" validate:"gt=0,lt=0.5"`
	Trees           int     `koanf:"trees" validate:"gt=0"`
	MaxSamples      int     `koanf:"max_samples" validate:"gt=1"`
	MinTrainingBids int     `koanf:"min_training_bids" validate:"gt=0"`
	Seed            uint64  `koanf:"seed"`
}

type ChatConfig struct {
	Provider          string        `koanf:"provider" validate:"oneof=gemini openai none"`
	GeminiAPIKey      string        `koanf:"gemini_api_key"`
	GeminiModel       string        `koanf:"gemini_model"`
	OpenAIAPIKey      string        `koanf:"openai_api_key"`
	OpenAIModel       string        `koanf:"openai_model"`
	OpenAIBaseURL     string        `koanf:"openai_base_url"`
	RequestsPerMinute int           `koanf:"requests_per_minute" validate:"gte=0"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	FAQFile           string        `koanf:"faq_file"`
}

type UploadsConfig struct {
	Dir     string `koanf:"dir" validate:"required"`
	MaxSize int64  `koanf:"max_size" validate:"gt=0"`
}

type SecurityConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	TokenExpiry time.Duration `koanf:"token_expiry" validate:"gt=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Address:         "0.0.0.0:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			RequestTimeout:  45 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:actms.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		},
		Cache: CacheConfig{
			Backend:      "memory",
			DashboardTTL: 30 * time.Second,
			ChatTTL:      10 * time.Minute,
		},
		Fraud: FraudConfig{
			ModelDir:        "models_store",
			Contamination:   0.1,
			Trees:           100,
			MaxSamples:      256,
			MinTrainingBids: 10,
			Seed:            42,
		},
		Chat: ChatConfig{
			Provider:          "gemini",
			GeminiModel:       "gemini-2.5-flash",
			OpenAIModel:       "gpt-4o-mini",
			RequestsPerMinute: 30,
			Timeout:           20 * time.Second,
		},
		Uploads: UploadsConfig{
			Dir:     "uploads",
			MaxSize: 15 << 20,
		},
		Security: SecurityConfig{
			TokenExpiry: 24 * time.Hour,
		},
	}
}

// aliases maps well-known environment variables onto config keys.
var aliases = map[string]string{
	"GEMINI_API_KEY": "chat.gemini_api_key",
	"OPENAI_API_KEY": "chat.openai_api_key",
	"SESSION_SECRET": "security.jwt_secret",
	"POSTGRES_CONN":  "database.dsn",
	"SERVER_ADDRESS": "server.address",
	"REDIS_URL":      "cache.redis_url",
}

// Load merges defaults, the YAML file at path and the environment.
// An empty path falls back to DefaultFile when it exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	for name, key := range aliases {
		if v := os.Getenv(name); v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("applying %s: %w", name, err)
			}
		}
	}
	// POSTGRES_CONN only makes sense with the postgres driver.
	if os.Getenv("POSTGRES_CONN") != "" && os.Getenv(EnvPrefix+"DATABASE__DRIVER") == "" {
		if err := k.Set("database.driver", "postgres"); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList flattens comma separated entries, as set from the environment.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuthEnabled reports whether bearer tokens are required.
func (c *Config) AuthEnabled() bool {
	return c.Security.JWTSecret != ""
}
