package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/slighter12/calc-mcp-go/mcp"
)

// Transport types
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable_http"
)

// Config represents the MCP server and client configuration
type Config struct {
	Name        string      `json:"name" yaml:"name"`
	Version     string      `json:"version" yaml:"version"`
	Description string      `json:"description" yaml:"description"`
	Server      Server      `json:"server" yaml:"server"`
	Transports  []Transport `json:"transports" yaml:"transports"`
	Client      Client      `json:"client" yaml:"client"`
	Tools       Tools       `json:"tools" yaml:"tools"`
	Logging     Logging     `json:"logging" yaml:"logging"`
}

// Server represents server configuration
type Server struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Debug    bool   `json:"debug" yaml:"debug"`
	// Stateless disables sessions: no MCP-Session-Id is issued or required.
	Stateless bool `json:"stateless" yaml:"stateless"`
	// KeepAliveSeconds is the SSE comment interval on GET streams; 0 disables it.
	KeepAliveSeconds       int      `json:"keepalive_seconds" yaml:"keepalive_seconds"`
	ShutdownTimeoutSeconds int      `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
	Sessions               Sessions `json:"sessions" yaml:"sessions"`
}

// Sessions controls idle session expiry.
type Sessions struct {
	IdleTimeoutSeconds int    `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
	CleanupSchedule    string `json:"cleanup_schedule" yaml:"cleanup_schedule"`
}

// Transport represents a transport configuration
type Transport struct {
	Type    string `json:"type" yaml:"type"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Client represents the tool invoker configuration
type Client struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`
	Name           string            `json:"name" yaml:"name"`
	Version        string            `json:"version" yaml:"version"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Tools configures the built-in tool set.
type Tools struct {
	// Namespace is prefixed to every tool name as "<namespace>/<tool>".
	Namespace   string `json:"namespace" yaml:"namespace"`
	AssetRoot   string `json:"asset_root" yaml:"asset_root"`
	ImagePath   string `json:"image_path" yaml:"image_path"`
	WatchAssets bool   `json:"watch_assets" yaml:"watch_assets"`
}

// Logging represents logging configuration
type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Path   string `json:"path" yaml:"path"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Name:        "calc-mcp-go",
		Version:     "0.1.0",
		Description: "Example MCP tool server and client over streamable HTTP",
		Server: Server{
			Host:                   "127.0.0.1",
			Port:                   8080,
			Endpoint:               "/mcp",
			KeepAliveSeconds:       15,
			ShutdownTimeoutSeconds: 5,
			Sessions: Sessions{
				IdleTimeoutSeconds: 600,
				CleanupSchedule:    "@every 5m",
			},
		},
		Transports: []Transport{
			{Type: TransportStreamableHTTP, Enabled: true},
			{Type: TransportStdio, Enabled: false},
		},
		Client: Client{
			Endpoint:       "http://127.0.0.1:8080/mcp",
			Name:           "calc-mcp-client",
			Version:        "0.1.0",
			TimeoutSeconds: 30,
		},
		Tools: Tools{
			Namespace:   "calculator",
			AssetRoot:   ".",
			WatchAssets: true,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads the configuration from a JSON or YAML file
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return finish(cfg)
}

// LoadOrDefault loads path when it exists and falls back to defaults otherwise.
// Environment overrides apply in both cases.
func LoadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	return finish(NewConfig())
}

func finish(cfg *Config) (*Config, error) {
	// Override with environment variables (highest priority).
	applyEnvOverrides(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func encode(path string, cfg *Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// SaveConfig saves the configuration to a file
func SaveConfig(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := encode(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if portStr := os.Getenv("MCP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("warning: ignoring invalid MCP_PORT value %q: %v", portStr, err)
		}
	}

	if host := os.Getenv("MCP_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if debug := os.Getenv("MCP_DEBUG"); debug != "" {
		if parsed, err := strconv.ParseBool(debug); err == nil {
			cfg.Server.Debug = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_DEBUG value %q: %v", debug, err)
		}
	}

	if stateless := os.Getenv("MCP_STATELESS"); stateless != "" {
		if parsed, err := strconv.ParseBool(stateless); err == nil {
			cfg.Server.Stateless = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_STATELESS value %q: %v", stateless, err)
		}
	}

	if logLevel := os.Getenv("MCP_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("MCP_LOG_FORMAT"); logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	if logPath := os.Getenv("MCP_LOG_PATH"); logPath != "" {
		cfg.Logging.Path = logPath
	}

	if endpoint := os.Getenv("MCP_ENDPOINT"); endpoint != "" {
		cfg.Client.Endpoint = endpoint
	}

	// An explicitly empty namespace is meaningful, so presence is what counts.
	if namespace, ok := os.LookupEnv("MCP_TOOL_NAMESPACE"); ok {
		cfg.Tools.Namespace = namespace
	}

	if assetRoot := os.Getenv("MCP_ASSET_ROOT"); assetRoot != "" {
		cfg.Tools.AssetRoot = assetRoot
	}

	if imagePath := os.Getenv("MCP_IMAGE_PATH"); imagePath != "" {
		cfg.Tools.ImagePath = imagePath
	}
}

// Normalize canonicalizes config values so downstream validation and runtime
// logic operate on stable representations.
func (c *Config) Normalize() {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Server.Endpoint = strings.TrimSpace(c.Server.Endpoint)
	if c.Server.Endpoint == "" {
		c.Server.Endpoint = "/mcp"
	}
	c.Server.Sessions.CleanupSchedule = strings.TrimSpace(c.Server.Sessions.CleanupSchedule)
	if c.Server.Sessions.CleanupSchedule == "" {
		c.Server.Sessions.CleanupSchedule = "@every 5m"
	}
	if c.Server.Sessions.IdleTimeoutSeconds == 0 {
		c.Server.Sessions.IdleTimeoutSeconds = 600
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}
	c.Client.Endpoint = strings.TrimSpace(c.Client.Endpoint)
	c.Tools.Namespace = strings.Trim(strings.TrimSpace(c.Tools.Namespace), "/")
	c.Tools.AssetRoot = strings.TrimSpace(c.Tools.AssetRoot)
	if c.Tools.AssetRoot == "" {
		c.Tools.AssetRoot = "."
	}
	c.Tools.ImagePath = strings.TrimSpace(c.Tools.ImagePath)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Path = strings.TrimSpace(c.Logging.Path)
	for i := range c.Transports {
		c.Transports[i].Type = strings.ToLower(strings.TrimSpace(c.Transports[i].Type))
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid port number")
	}

	if c.Server.Host == "" {
		return errors.New("host cannot be empty")
	}

	if !strings.HasPrefix(c.Server.Endpoint, "/") {
		return fmt.Errorf("invalid endpoint path %q: must start with /", c.Server.Endpoint)
	}

	if c.Server.KeepAliveSeconds < 0 {
		return errors.New("keepalive seconds cannot be negative")
	}

	if c.Server.Sessions.IdleTimeoutSeconds <= 0 {
		return errors.New("session idle timeout must be positive")
	}

	if _, err := cron.ParseStandard(c.Server.Sessions.CleanupSchedule); err != nil {
		return fmt.Errorf("invalid session cleanup schedule %q: %w", c.Server.Sessions.CleanupSchedule, err)
	}

	if c.Client.Endpoint != "" {
		u, err := url.Parse(c.Client.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid client endpoint %q", c.Client.Endpoint)
		}
	}

	if c.Client.TimeoutSeconds < 0 {
		return errors.New("client timeout cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.New("invalid log level")
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return errors.New("invalid log format")
	}

	if len(c.Transports) == 0 {
		return errors.New("at least one transport must be enabled")
	}

	validTransportTypes := map[string]bool{
		TransportStdio:          true,
		TransportStreamableHTTP: true,
	}

	enabledTransports := 0
	for _, t := range c.Transports {
		if !validTransportTypes[t.Type] {
			return fmt.Errorf("invalid transport type: %s", t.Type)
		}
		if t.Enabled {
			enabledTransports++
		}
	}

	if enabledTransports == 0 {
		return errors.New("at least one transport must be enabled")
	}

	return nil
}

// TransportEnabled reports whether the transport of the given type is enabled.
func (c *Config) TransportEnabled(kind string) bool {
	for _, t := range c.Transports {
		if t.Type == kind && t.Enabled {
			return true
		}
	}
	return false
}

// ClientHeaders returns the configured client headers plus the protocol version.
func (c *Config) ClientHeaders() map[string]string {
	headers := make(map[string]string, len(c.Client.Headers)+1)
	for key, value := range c.Client.Headers {
		headers[key] = value
	}
	if _, ok := headers[mcp.HeaderProtocolVersion]; !ok {
		headers[mcp.HeaderProtocolVersion] = mcp.ProtocolVersion
	}
	return headers
}

// ResolveConfigPath returns the path that should be used for configuration.
func ResolveConfigPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv("MCP_CONFIG_PATH")); path != "" {
		return path, nil
	}

	for _, candidate := range []string{"config/mcp_config.json", "config/mcp_config.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".calc-mcp", "config", "mcp_config.json"), nil
}

// EnsureDefaultConfig creates a default config file if one does not exist.
func EnsureDefaultConfig(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path cannot be empty")
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	return SaveConfig(NewConfig(), path)
}
