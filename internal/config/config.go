package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kbmcp/internal/logging"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const APP_NAME = "kbmcp" // application name used for config and data directories

// ConfigPathEnv overrides the config file location.
const ConfigPathEnv = "KBMCP_CONFIG_PATH"

// Transports understood by the MCP server and client.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// Providers understood by the model adapters.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DefaultMaxFileSize bounds knowledge files read from disk.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds user configuration for kbmcp.
type Config struct {
	Version  string `yaml:"version"`   // Track config version
	InitTime int64  `yaml:"init_time"` // Unix timestamp of first save

	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Server    ServerConfig    `yaml:"server"`
	Models    ModelsConfig    `yaml:"models"`
}

// KnowledgeConfig says where the knowledge base lives.
type KnowledgeConfig struct {
	// Path is a .json, .yaml, .txt file or a directory of markdown files.
	// With a git source it is relative to the clone root.
	Path string `yaml:"path"`
	// GitURL optionally points at a repository that holds Path.
	GitURL string `yaml:"git_url,omitempty"`
	// GitBranch selects a branch of GitURL, default branch when empty.
	GitBranch string `yaml:"git_branch,omitempty"`
	// MaxFileSize in bytes for any single knowledge file.
	MaxFileSize int64 `yaml:"max_file_size,omitempty"`
}

// ServerConfig configures the MCP server and how clients reach it.
type ServerConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
	// URL of a running server for clients. Empty means spawn `kbmcp serve`
	// over stdio.
	URL string `yaml:"url,omitempty"`
}

// ModelsConfig selects the vendor and model names.
type ModelsConfig struct {
	Provider    string  `yaml:"provider"`
	OpenAI      string  `yaml:"openai"`
	Gemini      string  `yaml:"gemini"`
	Temperature float64 `yaml:"temperature"`
	// OpenAIBaseURL points at an OpenAI-compatible endpoint.
	OpenAIBaseURL string `yaml:"openai_base_url,omitempty"`
}

// ConfigPath returns the config file path, honouring KBMCP_CONFIG_PATH.
func ConfigPath() (string, error) {
	if override := os.Getenv(ConfigPathEnv); override != "" {
		return override, nil
	}

	configDir := filepath.Join(xdg.ConfigHome, APP_NAME)
	configPath := filepath.Join(configDir, "config.yaml")

	logging.Debug("Determined config paths", "path", configPath)
	return configPath, nil
}

// DataDir returns the directory used for cloned knowledge repositories.
func DataDir() string {
	return filepath.Join(xdg.DataHome, APP_NAME)
}

// Load loads the config from the standard location.
// A missing file yields DefaultConfig.
func Load() (*Config, error) {
	configPath, exists := FindConfigFile()
	logging.Debug("Loading config from", "path", configPath)
	if !exists {
		cfg := DefaultConfig()
		return &cfg, nil
	}

	return LoadFrom(configPath)
}

// LoadFrom loads config from a specific path. Fields missing from the file
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	logging.Debug("Reading config file", "path", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FindConfigFile returns the path to the config file, and whether it exists.
func FindConfigFile() (string, bool) {
	primary, err := ConfigPath()
	if err != nil {
		logging.Error("Failed to get config path", "error", err)
		return "", false
	}

	if _, err := os.Stat(primary); err == nil {
		logging.Debug("Config found at primary path", "path", primary)
		return primary, true
	}

	return primary, false
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Version:  "1.0",
		InitTime: 0, // Will be set during first save
		Knowledge: KnowledgeConfig{
			Path:        filepath.Join("data", "kb.json"),
			MaxFileSize: DefaultMaxFileSize,
		},
		Server: ServerConfig{
			Name:      "KnowledgeBase",
			Version:   "1.0.0",
			Transport: TransportStdio,
			Addr:      ":8050",
		},
		Models: ModelsConfig{
			Provider:    ProviderGemini,
			OpenAI:      "gpt-4o",
			Gemini:      "gemini-2.0-flash",
			Temperature: 0.1,
		},
	}
}

// Validate checks enumerated fields and bounds.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportSSE, TransportHTTP:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Server.Transport)
	}

	switch c.Models.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Models.Provider)
	}

	if strings.TrimSpace(c.Knowledge.Path) == "" {
		return fmt.Errorf("%w: knowledge.path is required", ErrInvalidConfig)
	}

	if c.Knowledge.MaxFileSize <= 0 {
		return fmt.Errorf("%w: knowledge.max_file_size must be positive", ErrInvalidConfig)
	}

	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		return fmt.Errorf("%w: models.temperature must be within [0, 2]", ErrInvalidConfig)
	}

	return nil
}

// ModelName returns the configured model for provider.
func (c *Config) ModelName(provider string) string {
	if provider == ProviderOpenAI {
		return c.Models.OpenAI
	}
	return c.Models.Gemini
}

// Save writes the config to the standard location
func (c *Config) Save() error {
	configPath, _ := FindConfigFile()
	return c.SaveTo(configPath)
}

// SaveTo writes the config to a specific path
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	// Set init time if this is the first save
	if c.InitTime == 0 {
		c.InitTime = time.Now().Unix()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file with restrictive permissions (600) for security
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logging.Info("Configuration saved", "path", path)
	return nil
}
