package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// QualifiedNameSeparator joins a server name and a local tool name into a
// registry-wide unique tool name. Double underscore rather than a single
// slash: provider APIs restrict tool names to [a-zA-Z0-9_-] and bare tool
// names may legally contain single underscores or dashes.
const QualifiedNameSeparator = "__"

// ToolServerConfig describes one tool server: either a subprocess launched
// via Command+Args or a network endpoint at URL. Disabled entries are kept in
// the file but skipped at connect time.
type ToolServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`

	// Transport selects the wire protocol for remote servers: "sse" or
	// "streamable-http". Empty means sse.
	Transport string `json:"transport,omitempty"`

	Disabled bool `json:"disabled,omitempty"`

	// Optional extensions beyond tool listing.
	Prompts   bool `json:"prompts,omitempty"`
	Resources bool `json:"resources,omitempty"`
}

// IsRemote reports whether the server is reached over the network rather than
// launched as a subprocess.
func (sc ToolServerConfig) IsRemote() bool {
	return sc.URL != ""
}

type toolServersFile struct {
	Servers map[string]ToolServerConfig `json:"mcpServers"`
}

// LoadToolServers reads the tool server definitions from a JSON file keyed by
// server name. A missing file is not an error: tool use is simply unavailable.
//
// Invalid entries are rejected here rather than at call time: a malformed
// server definition is a configuration mistake and should abort startup.
func LoadToolServers(path string) (map[string]ToolServerConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]ToolServerConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tool servers config: %w", err)
	}

	// Accept both the claude-desktop-style {"mcpServers": {...}} wrapper and
	// a bare name->config mapping.
	var file toolServersFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tool servers config: %w", err)
	}
	if file.Servers == nil {
		if err := json.Unmarshal(data, &file.Servers); err != nil {
			return nil, fmt.Errorf("failed to parse tool servers config: %w", err)
		}
	}
	if file.Servers == nil {
		file.Servers = map[string]ToolServerConfig{}
	}

	for name, sc := range file.Servers {
		if err := ValidateServerName(name); err != nil {
			return nil, err
		}
		if sc.Command == "" && sc.URL == "" {
			return nil, fmt.Errorf("tool server %q: needs either command or url", name)
		}
		if sc.Command != "" && sc.URL != "" {
			return nil, fmt.Errorf("tool server %q: command and url are mutually exclusive", name)
		}
		switch sc.Transport {
		case "", "sse", "streamable-http":
		default:
			return nil, fmt.Errorf("tool server %q: unknown transport %q", name, sc.Transport)
		}
	}

	return file.Servers, nil
}

// ValidateServerName rejects names that would make qualified tool names
// ambiguous. The separator must never appear inside a server name.
func ValidateServerName(name string) error {
	if name == "" {
		return fmt.Errorf("tool server name must not be empty")
	}
	if strings.Contains(name, QualifiedNameSeparator) {
		return fmt.Errorf("tool server name %q must not contain %q", name, QualifiedNameSeparator)
	}
	return nil
}
