/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package hooks

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPRegistry adapts a guidance Provider's hooks onto an MCP server's tool
// surface: each lifecycle event is exposed as a callable tool so a runtime
// that only speaks MCP can still invoke gate checks before it acts.
type MCPRegistry struct {
	log    logr.Logger
	server *mcpsdk.Server
}

// NewMCPRegistry wraps an MCP server as a hooks.Registry.
func NewMCPRegistry(log logr.Logger, server *mcpsdk.Server) *MCPRegistry {
	return &MCPRegistry{log: log.WithName("hooks-mcp"), server: server}
}

// Register exposes one lifecycle hook as an MCP tool named
// "guidance.<event>", callable by the host runtime before it performs the
// corresponding action.
func (r *MCPRegistry) Register(event string, priority int, handler func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error)) error {
	toolName := "guidance." + event

	tool := &mcpsdk.Tool{
		Name:        toolName,
		Description: fmt.Sprintf("guidance gate check for the %s lifecycle event (priority %d)", event, priority),
	}

	mcpsdk.AddTool(r.server, tool, func(ctx context.Context, req *mcpsdk.CallToolRequest, args map[string]any) (*mcpsdk.CallToolResult, any, error) {
		out, err := handler(ctx, args)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})

	r.log.Info("registered guidance hook as MCP tool", "tool", toolName, "priority", priority)
	return nil
}
