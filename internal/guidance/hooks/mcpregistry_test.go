package hooks

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/marcus-qen/guidance/internal/guidance/gates"
)

func TestMCPRegistryExposesHooksAsTools(t *testing.T) {
	ctx := context.Background()

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "guidance-test", Version: "v0.1.0"}, nil)
	reg := NewMCPRegistry(logr.Discard(), server)

	p := New(gates.New(gates.Config{}))
	if err := p.RegisterAll(reg); err != nil {
		t.Fatal(err)
	}

	t1, t2 := mcpsdk.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer serverSession.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "guidance-client", Version: "v0.1.0"}, nil)
	clientSession, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer clientSession.Close()

	result, err := clientSession.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(result.Tools) != 5 {
		t.Fatalf("expected 5 registered lifecycle hooks, got %d", len(result.Tools))
	}

	callResult, err := clientSession.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "guidance.pre_command",
		Arguments: map[string]any{"command": "rm -rf /"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if callResult.IsError {
		t.Fatalf("unexpected tool error: %+v", callResult)
	}
}
