package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"auto_wordpress_post_publisher/generator"
)

// Config is the service configuration. Secrets normally arrive through the
// environment (or .env) rather than the file.
type Config struct {
	ServerAddr string           `json:"server_addr,omitempty" yaml:"server_addr"`
	DBPath     string           `json:"db_path,omitempty" yaml:"db_path"`
	JWTSecret  string           `json:"jwt_secret,omitempty" yaml:"jwt_secret"`
	SecretKey  string           `json:"secret_key,omitempty" yaml:"secret_key"`
	LogLevel   string           `json:"log_level,omitempty" yaml:"log_level"`
	LLM        *LLMConfig       `json:"llm,omitempty" yaml:"llm"`
	WordPress  *WordPressConfig `json:"wordpress,omitempty" yaml:"wordpress"`
}

// LLMConfig 生成模块的模型配置；api_key 可被用户设置中的 key 覆盖。
type LLMConfig struct {
	Provider string `json:"provider,omitempty" yaml:"provider"`
	Model    string `json:"model,omitempty" yaml:"model"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url"`
}

// WordPressConfig is the default target of the post command.
type WordPressConfig struct {
	URL      string `json:"url" yaml:"url"`
	UserName string `json:"user_name" yaml:"user_name"`
	Password string `json:"password" yaml:"password"`
}

const (
	envPrefix       = "WPWIZ_"
	defaultAddr     = ":8080"
	defaultDBPath   = "wpwiz.db"
	defaultLogLevel = "info"
	defaultProvider = "openai"
	envServerAddr   = envPrefix + "SERVER_ADDR"
	envDBPath       = envPrefix + "DB_PATH"
	envJWTSecret    = envPrefix + "JWT_SECRET"
	envSecretKey    = envPrefix + "SECRET_KEY"
	envLLMAPIKey    = envPrefix + "LLM_API_KEY"
	envLogLevel     = envPrefix + "LOG_LEVEL"
	envWPPassword   = envPrefix + "WP_PASSWORD"
)

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Load reads path (JSON, or YAML for .yaml/.yml), then .env, then WPWIZ_*
// variables. An empty path skips the file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.ServerAddr, envServerAddr)
	override(&c.DBPath, envDBPath)
	override(&c.JWTSecret, envJWTSecret)
	override(&c.SecretKey, envSecretKey)
	override(&c.LogLevel, envLogLevel)
	if v := os.Getenv(envLLMAPIKey); v != "" {
		if c.LLM == nil {
			c.LLM = &LLMConfig{}
		}
		c.LLM.APIKey = v
	}
	if c.WordPress != nil {
		override(&c.WordPress.Password, envWPPassword)
	}
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = defaultAddr
	}
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultProvider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = generator.DefaultModel
	}
}

// Validate checks fields every command needs.
func (c Config) Validate() error {
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level %q must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.LLM != nil {
		switch c.LLM.Provider {
		case "openai", "mock":
		case "compatible":
			if c.LLM.BaseURL == "" {
				return errors.New("llm provider compatible requires base_url")
			}
		default:
			return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
		}
	}
	if c.WordPress != nil && c.WordPress.URL == "" {
		return errors.New("wordpress.url is required when wordpress is set")
	}
	return nil
}

// ValidateServer checks what serve needs on top of Validate.
func (c Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required (or set %s)", envJWTSecret)
	}
	return nil
}

// LLMSettings builds generator settings. A non-empty userKey (from the
// user's settings record) wins over the configured key.
func (c Config) LLMSettings(userKey string) generator.LLMSettings {
	var s generator.LLMSettings
	if c.LLM != nil {
		s = generator.LLMSettings{
			Provider: c.LLM.Provider,
			Model:    c.LLM.Model,
			APIKey:   c.LLM.APIKey,
			BaseURL:  c.LLM.BaseURL,
		}
	}
	if userKey != "" {
		s.APIKey = userKey
	}
	return s
}
