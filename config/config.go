// Package config loads application settings and holds the handful of shared
// constants that bound the tool-use round loop.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Limits shared by every provider agent. A conversation that tool-calls
// forever is cut off at MaxToolRounds and the accumulated text returned with
// a warning marker.
const (
	MaxToolRounds = 5

	RequestTimeout  = 120 * time.Second
	ToolCallTimeout = 60 * time.Second
)

// UserConfig is the on-disk settings.toml shape.
type UserConfig struct {
	DataDirectory   string   `toml:"data_directory,omitempty"`
	DefaultModel    string   `toml:"default_model,omitempty"`
	OllamaHost      string   `toml:"ollama_host,omitempty"`
	OllamaModels    []string `toml:"ollama_models,omitempty"`
	DeepSeekBaseURL string   `toml:"deepseek_base_url,omitempty"`
	ToolServersFile string   `toml:"tool_servers_file,omitempty"`
	SystemPrompt    string   `toml:"system_prompt,omitempty"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDirectory   string
	DefaultModel    string
	OllamaHost      string
	OllamaModels    []string
	DeepSeekBaseURL string
	ToolServersFile string
	SystemPrompt    string
}

var Debug = false
var DebugLog *log.Logger

// DataDir returns the data directory with ~ expanded.
func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("AICHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if model := os.Getenv("AICHAT_DEFAULT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if host := os.Getenv("AICHAT_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if servers := os.Getenv("AICHAT_TOOL_SERVERS"); servers != "" {
		c.ToolServersFile = servers
	}
}

// CheckDebug reports whether debug logging is requested via AICHAT_DEBUG.
func CheckDebug() bool {
	debug := os.Getenv("AICHAT_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens debug.log in the data directory when AICHAT_DEBUG is set.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - the log may contain prompts and tool arguments
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (AICHAT_DEBUG=%s) ===", os.Getenv("AICHAT_DEBUG"))
}

// Load reads settings.toml from the config directory (if present), applies
// environment overrides and ensures the data directory exists.
func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory: "~/.local/share/aichat",
		DefaultModel:  "gpt-4o-mini",
		OllamaHost:    "http://localhost:11434",
	}

	settingsPath := GetSettingsFilePath()
	if FileExists(settingsPath) {
		var userCfg UserConfig
		if _, err := toml.DecodeFile(settingsPath, &userCfg); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
		if userCfg.DataDirectory != "" {
			cfg.DataDirectory = userCfg.DataDirectory
		}
		if userCfg.DefaultModel != "" {
			cfg.DefaultModel = userCfg.DefaultModel
		}
		if userCfg.OllamaHost != "" {
			cfg.OllamaHost = userCfg.OllamaHost
		}
		cfg.OllamaModels = userCfg.OllamaModels
		cfg.DeepSeekBaseURL = userCfg.DeepSeekBaseURL
		cfg.ToolServersFile = userCfg.ToolServersFile
		cfg.SystemPrompt = userCfg.SystemPrompt
	}

	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if cfg.ToolServersFile == "" {
		cfg.ToolServersFile = filepath.Join(dataDir, "tool_servers.json")
	}

	return cfg, nil
}

// Save writes the current configuration back to settings.toml.
func Save(cfg *Config) error {
	configDir := GetConfigDir()
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	userCfg := UserConfig{
		DataDirectory:   cfg.DataDirectory,
		DefaultModel:    cfg.DefaultModel,
		OllamaHost:      cfg.OllamaHost,
		OllamaModels:    cfg.OllamaModels,
		DeepSeekBaseURL: cfg.DeepSeekBaseURL,
		ToolServersFile: cfg.ToolServersFile,
		SystemPrompt:    cfg.SystemPrompt,
	}

	f, err := os.OpenFile(GetSettingsFilePath(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(userCfg); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	return nil
}
