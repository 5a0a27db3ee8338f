package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	globalconfig "aichat/config"
	"aichat/model"
)

// Connector owns the connections to all configured tool servers and exposes
// their tools under qualified names ("server__tool"). One Connector is shared
// by every agent; all methods are safe for concurrent use.
type Connector struct {
	mu       sync.RWMutex
	servers  map[string]globalconfig.ToolServerConfig
	sessions map[string]serverSession
	tools    map[string][]mcptypes.Tool // per-server, unprefixed
}

func NewConnector(servers map[string]globalconfig.ToolServerConfig) *Connector {
	return &Connector{
		servers:  servers,
		sessions: make(map[string]serverSession),
		tools:    make(map[string][]mcptypes.Tool),
	}
}

// Connect starts every enabled server in parallel and caches its tool list.
// A server that fails to connect is reported in the returned map and skipped;
// the remaining servers stay usable.
func (c *Connector) Connect(ctx context.Context) map[string]error {
	type connResult struct {
		name    string
		session serverSession
		tools   []mcptypes.Tool
		err     error
	}

	var wg sync.WaitGroup
	results := make(chan connResult, len(c.servers))

	for name, cfg := range c.servers {
		if cfg.Disabled {
			if globalconfig.DebugLog != nil {
				globalconfig.DebugLog.Printf("[MCP] Skipping disabled tool server '%s'", name)
			}
			continue
		}

		wg.Add(1)
		go func(name string, cfg globalconfig.ToolServerConfig) {
			defer wg.Done()

			session, err := newSession(ctx, name, cfg)
			if err != nil {
				results <- connResult{name: name, err: err}
				return
			}

			tools, err := session.ListTools(ctx)
			if err != nil {
				session.Close()
				results <- connResult{name: name, err: fmt.Errorf("failed to list tools: %w", err)}
				return
			}

			results <- connResult{name: name, session: session, tools: tools}
		}(name, cfg)
	}

	wg.Wait()
	close(results)

	failed := make(map[string]error)

	c.mu.Lock()
	defer c.mu.Unlock()
	for r := range results {
		if r.err != nil {
			failed[r.name] = r.err
			if globalconfig.DebugLog != nil {
				globalconfig.DebugLog.Printf("[MCP] Tool server '%s' failed to connect: %v", r.name, r.err)
			}
			continue
		}
		c.sessions[r.name] = r.session
		c.tools[r.name] = r.tools
		if globalconfig.DebugLog != nil {
			globalconfig.DebugLog.Printf("[MCP] Tool server '%s' connected with %d tools", r.name, len(r.tools))
		}
	}

	return failed
}

// Tools returns every available tool under its qualified name, sorted for a
// stable order across calls. The returned slice is a copy.
func (c *Connector) Tools() []mcptypes.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []mcptypes.Tool
	for server, tools := range c.tools {
		for _, tool := range tools {
			qualified := tool
			qualified.Name = server + globalconfig.QualifiedNameSeparator + tool.Name
			all = append(all, qualified)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// HasTools reports whether any connected server exposes at least one tool.
func (c *Connector) HasTools() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, tools := range c.tools {
		if len(tools) > 0 {
			return true
		}
	}
	return false
}

// ConnectedServers returns the names of servers with a live session.
func (c *Connector) ConnectedServers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.sessions))
	for name := range c.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallTool executes a qualified tool call and always produces a result for
// the model: every failure mode (bad name, unknown server, transport error,
// server-reported error) is folded into a ToolCallResult with IsError set so
// the conversation can continue.
func (c *Connector) CallTool(ctx context.Context, qualifiedName string, args map[string]any, callID string) model.ToolCallResult {
	server, tool, err := SplitToolName(qualifiedName)
	if err != nil {
		return model.ErrorResult(callID, fmt.Sprintf("Error: %v", err))
	}

	c.mu.RLock()
	session, ok := c.sessions[server]
	c.mu.RUnlock()
	if !ok {
		return model.ErrorResult(callID, fmt.Sprintf("Error: %v: %s", ErrServerNotFound, server))
	}

	if globalconfig.DebugLog != nil {
		globalconfig.DebugLog.Printf("[MCP] Calling tool '%s' on server '%s'", tool, server)
	}

	callCtx, cancel := context.WithTimeout(ctx, globalconfig.ToolCallTimeout)
	defer cancel()

	result, err := session.CallTool(callCtx, tool, args)
	if err != nil {
		return model.ErrorResult(callID, fmt.Sprintf("Error executing tool %s: %v", qualifiedName, err))
	}

	return model.ToolCallResult{
		ID:      callID,
		Content: flattenContent(result.Content),
		IsError: result.IsError,
	}
}

// GetPrompt fetches a prompt from a server. Unlike tools, prompts are opt-in
// per server config.
func (c *Connector) GetPrompt(ctx context.Context, server, name string, args map[string]string) (*mcptypes.GetPromptResult, error) {
	session, err := c.capabilitySession(server, func(cfg globalconfig.ToolServerConfig) bool { return cfg.Prompts })
	if err != nil {
		return nil, err
	}
	return session.GetPrompt(ctx, name, args)
}

// ReadResource reads a resource from a server. Opt-in per server config, like
// prompts.
func (c *Connector) ReadResource(ctx context.Context, server, uri string) (*mcptypes.ReadResourceResult, error) {
	session, err := c.capabilitySession(server, func(cfg globalconfig.ToolServerConfig) bool { return cfg.Resources })
	if err != nil {
		return nil, err
	}
	return session.ReadResource(ctx, uri)
}

func (c *Connector) capabilitySession(server string, enabled func(globalconfig.ToolServerConfig) bool) (serverSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	session, ok := c.sessions[server]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, server)
	}
	if !enabled(c.servers[server]) {
		return nil, fmt.Errorf("%w: %s", ErrCapabilityDisabled, server)
	}
	return session, nil
}

// Refresh re-fetches the tool list from every connected server. Servers that
// fail keep their previous tool list.
func (c *Connector) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []string
	for name, session := range c.sessions {
		tools, err := session.ListTools(ctx)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		c.tools[name] = tools
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to refresh tools: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Close shuts down all sessions in parallel.
func (c *Connector) Close() {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[string]serverSession)
	c.tools = make(map[string][]mcptypes.Tool)
	c.mu.Unlock()

	var wg sync.WaitGroup
	for name, session := range sessions {
		wg.Add(1)
		go func(name string, session serverSession) {
			defer wg.Done()
			if err := session.Close(); err != nil && globalconfig.DebugLog != nil {
				globalconfig.DebugLog.Printf("[MCP] Error closing tool server '%s': %v", name, err)
			}
		}(name, session)
	}
	wg.Wait()
}

// SplitToolName separates a qualified tool name into its server and local
// tool parts.
func SplitToolName(qualifiedName string) (server, tool string, err error) {
	idx := strings.Index(qualifiedName, globalconfig.QualifiedNameSeparator)
	if idx <= 0 || idx+len(globalconfig.QualifiedNameSeparator) >= len(qualifiedName) {
		return "", "", fmt.Errorf("%w: %s", ErrMalformedToolName, qualifiedName)
	}
	return qualifiedName[:idx], qualifiedName[idx+len(globalconfig.QualifiedNameSeparator):], nil
}

// flattenContent reduces a tool result to plain text. Text blocks are joined
// with newlines; anything else is carried as its JSON encoding so the model
// still sees it.
func flattenContent(content []mcptypes.Content) string {
	var parts []string
	for _, block := range content {
		switch b := block.(type) {
		case mcptypes.TextContent:
			parts = append(parts, b.Text)
		case *mcptypes.TextContent:
			parts = append(parts, b.Text)
		default:
			data, err := json.Marshal(block)
			if err != nil {
				continue
			}
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}
