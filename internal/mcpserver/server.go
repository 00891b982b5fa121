package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Nexora tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("nexora", "0.1.0")
	h := NewHandlers(NewClient(cfg))

	s.AddTool(ToolCheckEntityRisk, h.HandleCheckEntityRisk)
	s.AddTool(ToolAnalyzeContent, h.HandleAnalyzeContent)
	s.AddTool(ToolListPendingAlerts, h.HandleListPendingAlerts)
	s.AddTool(ToolAcknowledgeAlert, h.HandleAcknowledgeAlert)
	s.AddTool(ToolProtectEntity, h.HandleProtectEntity)

	return s
}
