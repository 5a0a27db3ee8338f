package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	globalconfig "aichat/config"
)

// serverSession is one live connection to a tool server. The concrete type in
// production wraps an mcp-go client; tests substitute their own.
type serverSession interface {
	ListTools(ctx context.Context) ([]mcptypes.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error)
	GetPrompt(ctx context.Context, name string, args map[string]string) (*mcptypes.GetPromptResult, error)
	ReadResource(ctx context.Context, uri string) (*mcptypes.ReadResourceResult, error)
	Close() error
}

type clientSession struct {
	client *client.Client
}

// newSession starts and initializes a connection to one tool server. Local
// servers are launched as a subprocess over stdio; remote servers are reached
// over SSE or streamable HTTP depending on config.
func newSession(ctx context.Context, name string, cfg globalconfig.ToolServerConfig) (serverSession, error) {
	var mcpClient *client.Client
	var err error

	switch {
	case cfg.IsRemote():
		mcpClient, err = newRemoteClient(ctx, name, cfg)
	default:
		mcpClient, err = newLocalClient(name, cfg)
	}
	if err != nil {
		return nil, err
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: "2025-06-18",
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "aichat",
				Version: "1.0.0",
			},
		},
	}

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize tool server %s: %w", name, err)
	}

	return &clientSession{client: mcpClient}, nil
}

func newLocalClient(name string, cfg globalconfig.ToolServerConfig) (*client.Client, error) {
	// Start from the current process environment so PATH and friends survive.
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	mcpClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start tool server %s: %w", name, err)
	}

	if globalconfig.DebugLog != nil {
		globalconfig.DebugLog.Printf("[MCP] Started local tool server '%s' (%s)", name, cfg.Command)
	}

	return mcpClient, nil
}

func newRemoteClient(ctx context.Context, name string, cfg globalconfig.ToolServerConfig) (*client.Client, error) {
	// Env entries double as HTTP headers for remote servers.
	headers := make(map[string]string)
	for k, v := range cfg.Env {
		headers[k] = v
	}

	var mcpClient *client.Client
	var err error

	switch cfg.Transport {
	case "streamable-http":
		var opts []transport.StreamableHTTPCOption
		if len(headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(headers))
		}
		mcpClient, err = client.NewStreamableHttpClient(cfg.URL, opts...)
	case "sse", "":
		var opts []transport.ClientOption
		if len(headers) > 0 {
			opts = append(opts, transport.WithHeaders(headers))
		}
		mcpClient, err = client.NewSSEMCPClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("unknown transport type: %s", cfg.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote tool server %s: %w", name, err)
	}

	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start transport for %s: %w", name, err)
	}

	if globalconfig.DebugLog != nil {
		globalconfig.DebugLog.Printf("[MCP] Connected to remote tool server '%s' at %s", name, cfg.URL)
	}

	return mcpClient, nil
}

func (cs *clientSession) ListTools(ctx context.Context) ([]mcptypes.Tool, error) {
	result, err := cs.client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (cs *clientSession) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	return cs.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
}

func (cs *clientSession) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcptypes.GetPromptResult, error) {
	return cs.client.GetPrompt(ctx, mcptypes.GetPromptRequest{
		Params: mcptypes.GetPromptParams{
			Name:      name,
			Arguments: args,
		},
	})
}

func (cs *clientSession) ReadResource(ctx context.Context, uri string) (*mcptypes.ReadResourceResult, error) {
	return cs.client.ReadResource(ctx, mcptypes.ReadResourceRequest{
		Params: mcptypes.ReadResourceParams{
			URI: uri,
		},
	})
}

func (cs *clientSession) Close() error {
	return cs.client.Close()
}
