package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dksnowdon/gomini/errors"
	"gopkg.in/yaml.v3"
)

// FilesystemAccess restricts what the filesystem tools may touch. Patterns
// are doublestar globs.
type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

// MCPServer describes a tool server to spawn and connect at startup.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// WebSearch tunes the web_search tool.
type WebSearch struct {
	Region     string `yaml:"region"`
	MaxResults int    `yaml:"max_results"`
}

type Config struct {
	LLMClient             string           `yaml:"llm"`
	Model                 string           `yaml:"model"`
	Persona               string           `yaml:"persona"`
	SafeModeFlag          *bool            `yaml:"safe_mode"`
	TrustMCPTools         bool             `yaml:"trust_mcp_tools"`
	CommandTimeoutSeconds int              `yaml:"command_timeout_seconds"`
	MCPServers            []MCPServer      `yaml:"mcp_servers"`
	FilesystemAccess      FilesystemAccess `yaml:"filesystem_access"`
	WebSearch             WebSearch        `yaml:"web_search"`
}

// LoadConfig loads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// Default .gomini directory to be hidden from the filesystem tools
	cfg.FilesystemAccess.Hidden = append(cfg.FilesystemAccess.Hidden, ".gomini", ".gomini/**")

	// Load user-level config first
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".gomini", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	// Load project-level config, overriding user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".gomini", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML, which gives a simple
	// merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

// SafeMode reports whether sensitive tools require confirmation. Unset means
// enabled; an explicit "safe_mode: false" is required to turn it off.
func (c *Config) SafeMode() bool {
	if c.SafeModeFlag == nil {
		return true
	}
	return *c.SafeModeFlag
}

// CommandTimeout returns the run_terminal execution bound.
func (c *Config) CommandTimeout() time.Duration {
	if c.CommandTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}
