package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full process configuration
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=neo4j sqlite"`
}

// Neo4jConfig holds connection settings. There are no credential defaults.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri" validate:"required"`
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Database string `mapstructure:"database"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LLMConfig selects the completion provider used by the extractor
type LLMConfig struct {
	Provider string        `mapstructure:"provider" validate:"oneof=groq openai anthropic ollama"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey   string        `mapstructure:"api_key" validate:"required_unless=Provider ollama"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type PipelineConfig struct {
	TypePolicy string `mapstructure:"type_policy" validate:"oneof=extracted heuristic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
	File   string `mapstructure:"file"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// envBindings maps config keys to the environment variables read for them,
// in precedence order. Every key also answers to POLKG_<KEY>.
var envBindings = map[string][]string{
	"store.backend":        nil,
	"neo4j.uri":            {"NEO4J_URI"},
	"neo4j.username":       {"NEO4J_USERNAME", "NEO4J_USER"},
	"neo4j.password":       {"NEO4J_PASSWORD"},
	"neo4j.database":       {"NEO4J_DATABASE"},
	"sqlite.path":          nil,
	"llm.provider":         nil,
	"llm.model":            nil,
	"llm.base_url":         nil,
	"llm.api_key":          {"GROQ_API_KEY"},
	"llm.timeout":          nil,
	"pipeline.type_policy": nil,
	"log.level":            nil,
	"log.format":           nil,
	"log.file":             nil,
	"server.addr":          nil,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", "neo4j")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("sqlite.path", "polkg.db")
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("pipeline.type_policy", "extracted")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.addr", ":8080")
}

// Load reads configuration from an optional YAML file and the environment.
// An empty path searches ./polkg.yaml then <user config dir>/polkg/config.yaml.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	for key, extra := range envBindings {
		names := append([]string{"POLKG_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, extra...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func findConfigFile() string {
	candidates := []string{"polkg.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "polkg", "config.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	return v
}

// Validate checks the parts of the configuration the given command needs.
// Store settings are only checked for the selected backend, and LLM settings
// only when withLLM is set.
func (c *Config) Validate(withLLM bool) error {
	targets := []any{c.Store, c.Pipeline, c.Log, c.Server}
	switch c.Store.Backend {
	case "neo4j":
		targets = append(targets, c.Neo4j)
	case "sqlite":
		targets = append(targets, c.SQLite)
	}
	if withLLM {
		targets = append(targets, c.LLM)
	}

	var msgs []string
	for _, t := range targets {
		if err := validate.Struct(t); err != nil {
			msgs = append(msgs, formatValidationError(err)...)
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
	}
	return nil
}

func formatValidationError(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, formatFieldError(e))
	}
	return out
}

func formatFieldError(e validator.FieldError) string {
	// Namespace is "<Section>Config.<key>"
	section, _, _ := strings.Cut(e.Namespace(), ".")
	field := strings.ToLower(strings.TrimSuffix(section, "Config")) + "." + e.Field()

	switch e.Tag() {
	case "required", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
