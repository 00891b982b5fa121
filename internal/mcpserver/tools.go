package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Nexora MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolCheckEntityRisk = mcp.NewTool("check_entity_risk",
	mcp.WithDescription(
		"Check a phone number, email address or UPI handle against recent fraud reports. "+
			"Returns a risk level (safe, suspicious, high_risk), the report count "+
			"and the most reported fraud category. Use this before trusting an unknown sender."),
	mcp.WithString("entity",
		mcp.Required(),
		mcp.Description("The identifier to check (e.g. '+91 98765 43210', 'pay.me@upi')")),
	mcp.WithString("entity_type",
		mcp.Description("Optional hint for the identifier kind"),
		mcp.Enum("phone", "email", "upi", "unknown")),
)

var ToolAnalyzeContent = mcp.NewTool("analyze_content",
	mcp.WithDescription(
		"Scan a message for fraud patterns such as urgency, threats, impersonation, "+
			"payment requests and suspicious links. When a sender is given, the sender's "+
			"report history is combined into the overall risk."),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("The message text to analyze")),
	mcp.WithString("content_type",
		mcp.Description("Where the message came from"),
		mcp.Enum("sms", "email", "chat", "call_transcript", "other")),
	mcp.WithString("sender_entity",
		mcp.Description("Optional sender phone number, email or UPI handle")),
)

var ToolListPendingAlerts = mcp.NewTool("list_pending_alerts",
	mcp.WithDescription(
		"List threat alerts for the signed-in user that have not been acknowledged yet, newest first."),
)

var ToolAcknowledgeAlert = mcp.NewTool("acknowledge_alert",
	mcp.WithDescription(
		"Record the user's decision on a pending alert and move it to history."),
	mcp.WithString("alert_id",
		mcp.Required(),
		mcp.Description("The alert ID from list_pending_alerts")),
	mcp.WithString("action",
		mcp.Required(),
		mcp.Description("What the user decided"),
		mcp.Enum("blocked", "allowed", "reported", "dismissed")),
)

var ToolProtectEntity = mcp.NewTool("protect_entity",
	mcp.WithDescription(
		"Watch an identifier so the signed-in user is alerted whenever anyone checks it and it comes back high risk."),
	mcp.WithString("entity",
		mcp.Required(),
		mcp.Description("The identifier to watch")),
)
