package mcp

import "errors"

var (
	// ErrMalformedToolName means a tool name did not contain the
	// server/tool separator and cannot be routed.
	ErrMalformedToolName = errors.New("malformed tool name")

	// ErrServerNotFound means the server part of a qualified tool name does
	// not match any connected server.
	ErrServerNotFound = errors.New("tool server not found")

	// ErrCapabilityDisabled means the server is connected but the requested
	// capability (prompts, resources) is not enabled in its config.
	ErrCapabilityDisabled = errors.New("capability not enabled for server")
)
