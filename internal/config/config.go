package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Portal     Portal     `yaml:"portal"`
	Feeds      []Feed     `yaml:"feeds"`
	Extraction Extraction `yaml:"extraction"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

// Portal describes the school portal that publishes the notices page.
// Credentials are never stored in the file, only the names of the
// environment variables that hold them.
type Portal struct {
	Name           string `yaml:"name"`
	BaseURL        string `yaml:"base_url"`
	LoginPath      string `yaml:"login_path"`
	NoticesPath    string `yaml:"notices_path"`
	UsernameEnv    string `yaml:"username_env"`
	PasswordEnv    string `yaml:"password_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	DemoOnFailure  bool   `yaml:"demo_on_failure"`
}

type Feed struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type Extraction struct {
	MinLength         int      `yaml:"min_length"`
	MaxBatch          int      `yaml:"max_batch"`
	TitleMax          int      `yaml:"title_max"`
	BodyMax           int      `yaml:"body_max"`
	DefaultCategory   string   `yaml:"default_category"`
	DefaultSource     string   `yaml:"default_source"`
	Locators          []string `yaml:"locators"`
	StorePlaceholders bool     `yaml:"store_placeholders"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for circolari.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "circolari")
}

// DataDir returns the XDG data directory for circolari.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "circolari")
}

// ConfigEnv overrides the config search when no --config flag is given.
const ConfigEnv = "CIRCOLARI_CONFIG"

// ResolveConfigPath picks the first existing config among the explicit path,
// $CIRCOLARI_CONFIG, ~/.config/circolari/config.yaml and ./config.yaml. An
// explicit or env path that does not exist is an error, not a fallthrough.
func ResolveConfigPath(explicit string) (string, error) {
	for _, forced := range []string{explicit, os.Getenv(ConfigEnv)} {
		if forced == "" {
			continue
		}
		if _, err := os.Stat(forced); err != nil {
			return "", fmt.Errorf("config file not found: %s", forced)
		}
		return forced, nil
	}

	candidates := []string{filepath.Join(ConfigDir(), "config.yaml"), "config.yaml"}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no config file found in %s; run 'circolari init' to create one",
		strings.Join(candidates, ", "))
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Portal: Portal{
			Name:           "portal",
			LoginPath:      "/login",
			NoticesPath:    "/circolari",
			UsernameEnv:    "CIRCOLARI_USERNAME",
			PasswordEnv:    "CIRCOLARI_PASSWORD",
			TimeoutSeconds: 30,
		},
		Extraction: Extraction{
			MinLength:         20,
			MaxBatch:          50,
			TitleMax:          200,
			BodyMax:           5000,
			DefaultCategory:   "General",
			DefaultSource:     "unknown",
			Locators:          []string{"containers", "table_rows", "list_items"},
			StorePlaceholders: true,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// Debug reports whether per-fragment logging is enabled.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "DEBUG")
}

// Enabled reports whether a portal is configured at all.
func (p Portal) Enabled() bool {
	return strings.TrimSpace(p.BaseURL) != ""
}

// Credentials reads the username and password from the configured
// environment variables. Either may be empty.
func (p Portal) Credentials() (username, password string) {
	if p.UsernameEnv != "" {
		username = os.Getenv(p.UsernameEnv)
	}
	if p.PasswordEnv != "" {
		password = os.Getenv(p.PasswordEnv)
	}
	return username, password
}

// Timeout returns the HTTP timeout for portal requests.
func (p Portal) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
