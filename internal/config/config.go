package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "restobject.yml"

// Config models restobject.yml.
type Config struct {
	Client struct {
		BaseURL   string        `yaml:"base_url"`
		Root      string        `yaml:"root"`
		Timeout   time.Duration `yaml:"timeout"`
		CacheSize int           `yaml:"cache_size"`
	} `yaml:"client"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
		Seed     int    `yaml:"seed"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		Subject   string        `yaml:"subject"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with restobj config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Client.BaseURL == "" {
		return fmt.Errorf("config.client.base_url is required")
	}
	u, err := url.Parse(c.Client.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.client.base_url must be an absolute url")
	}
	if !strings.HasPrefix(c.Client.Root, "/") {
		return fmt.Errorf("config.client.root must start with /")
	}
	if c.Client.Timeout < 0 {
		return fmt.Errorf("config.client.timeout must not be negative")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Server.Seed < 0 {
		return fmt.Errorf("config.server.seed must not be negative")
	}
	if c.Auth.JWTSecret != "" && c.Auth.Subject == "" {
		return fmt.Errorf("config.auth.subject is required when jwt_secret is set")
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("config.auth.token_ttl must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(baseURL string) string {
	return fmt.Sprintf(defaultTemplate, baseURL)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(GenerateDefault(DefaultBaseURL)), &cfg)
	return &cfg
}

const DefaultBaseURL = "http://127.0.0.1:8081"

// FromYAML parses and validates config from raw YAML bytes. Missing keys
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `client:
  base_url: %s
  root: /example/api
  timeout: 10s
  cache_size: 256

server:
  addr: 127.0.0.1:8081
  base_path: /example/api
  seed: 20

auth:
  # Leave empty to serve without authentication.
  jwt_secret: ""
  subject: restobj
  token_ttl: 1h
`
