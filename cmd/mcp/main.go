// Nexora MCP Server - Exposes fraud checks and alerts as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:       envOrDefault("NEXORA_API_URL", "http://localhost:8080"),
		SessionToken: os.Getenv("NEXORA_SESSION_TOKEN"),
	}

	if cfg.SessionToken == "" {
		fmt.Fprintln(os.Stderr, "NEXORA_SESSION_TOKEN not set; alert and protection tools will be rejected")
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
