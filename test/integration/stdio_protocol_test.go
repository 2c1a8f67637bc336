package integration_test

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// TestStdioProtocolCompliance drives the built binary over stdio with the
// SDK client, the way an assistant host launches it.
func TestStdioProtocolCompliance(t *testing.T) {
	// Use the built binary; skip when it has not been built
	binaryPath := "./bin/presence"
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		// Try relative to test directory
		binaryPath = "../../bin/presence"
		if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
			t.Skip("Server binary not found. Run 'go build -o bin/presence ./cmd/server' first.")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Create command with a throwaway database
	cmd := exec.CommandContext(ctx, binaryPath, "serve", "--transport", "stdio")
	cmd.Env = append(os.Environ(),
		"PRESENCE_DB_PATH=:memory:",
		"PRESENCE_LOG_LEVEL=error",
	)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	// Spawn the server and initialize
	session, err := client.Connect(ctx, &sdkmcp.CommandTransport{Command: cmd}, nil)
	require.NoError(t, err, "Failed to connect to server")
	defer session.Close()

	// Verify initialize response
	t.Run("ServerInfo", func(t *testing.T) {
		initResult := session.InitializeResult()
		require.NotNil(t, initResult)
		require.NotNil(t, initResult.ServerInfo)
		require.Equal(t, "presence", initResult.ServerInfo.Name)
	})

	// Test tools/list
	t.Run("ListTools", func(t *testing.T) {
		tools, err := session.ListTools(ctx, nil)
		require.NoError(t, err, "tools/list failed")
		require.Len(t, tools.Tools, 5)

		toolNames := make(map[string]bool)
		for _, tool := range tools.Tools {
			toolNames[tool.Name] = true
		}
		for _, name := range []string{"apply_signal", "open_sessions", "group_report", "member_day", "member_month"} {
			require.True(t, toolNames[name], "missing tool %s", name)
		}
	})

	// Test tools/call opens a break
	t.Run("CallApplySignal", func(t *testing.T) {
		result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
			Name: "apply_signal",
			Arguments: map[string]any{
				"group_id":     -1001,
				"person_id":    42,
				"code":         "restroom",
				"display_name": "Ann",
			},
		})
		require.NoError(t, err, "tools/call apply_signal failed")
		require.False(t, result.IsError, "apply_signal returned error: %v", result)
		require.NotEmpty(t, result.Content)

		text, ok := result.Content[0].(*sdkmcp.TextContent)
		require.True(t, ok, "apply_signal should return text content")
		require.Equal(t, "Ann: Restroom started", text.Text)
	})
}
