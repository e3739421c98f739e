package mcp

import "github.com/mark3labs/mcp-go/mcp"

// getSummaryTool defines the get_summary MCP tool.
var getSummaryTool = mcp.NewTool("get_summary",
	mcp.WithDescription("Summarize the loaded audit export: log type, record count, parse quality, date range, and unique users, files and client addresses."),
)

// filterRecordsTool defines the filter_records MCP tool.
var filterRecordsTool = mcp.NewTool("filter_records",
	mcp.WithDescription("Filter the loaded audit records and return the matching entries, newest first. All parameters are optional and combine with AND."),
	mcp.WithString("users",
		mcp.Description("Comma-separated user principal names, matched case-insensitively"),
	),
	mcp.WithString("operations",
		mcp.Description("Comma-separated operation names, matched case-insensitively"),
	),
	mcp.WithString("files",
		mcp.Description("Substring matched against subject and folder"),
	),
	mcp.WithString("ips",
		mcp.Description("Comma-separated client IP patterns; * matches any run of characters (e.g. 203.0.113.*)"),
	),
	mcp.WithString("exclude_ips",
		mcp.Description("Comma-separated client IP patterns to exclude"),
	),
	mcp.WithString("countries",
		mcp.Description("Comma-separated country names or ISO codes (requires enriched records)"),
	),
	mcp.WithString("asns",
		mcp.Description("Comma-separated autonomous system numbers (requires enriched records)"),
	),
	mcp.WithString("start_date",
		mcp.Description("Inclusive start date, YYYY-MM-DD"),
	),
	mcp.WithString("end_date",
		mcp.Description("Inclusive end date, YYYY-MM-DD"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum entries to return (default 25, capped at 200)"),
	),
)

// patternTablesTool defines the pattern_tables MCP tool.
var patternTablesTool = mcp.NewTool("pattern_tables",
	mcp.WithDescription("Aggregate the loaded records into ranked pattern tables: user/IP, user/operation, operation/IP, user/operation/IP, countries and networks, each with severity bands. Accepts the same optional filters as filter_records."),
	mcp.WithString("users",
		mcp.Description("Comma-separated user principal names, matched case-insensitively"),
	),
	mcp.WithString("operations",
		mcp.Description("Comma-separated operation names, matched case-insensitively"),
	),
	mcp.WithString("files",
		mcp.Description("Substring matched against subject and folder"),
	),
	mcp.WithString("ips",
		mcp.Description("Comma-separated client IP patterns; * matches any run of characters"),
	),
	mcp.WithString("exclude_ips",
		mcp.Description("Comma-separated client IP patterns to exclude"),
	),
	mcp.WithString("start_date",
		mcp.Description("Inclusive start date, YYYY-MM-DD"),
	),
	mcp.WithString("end_date",
		mcp.Description("Inclusive end date, YYYY-MM-DD"),
	),
)

// lookupIPTool defines the lookup_ip MCP tool.
var lookupIPTool = mcp.NewTool("lookup_ip",
	mcp.WithDescription("Resolve one IP address to country and network (ASN) using the local range databases."),
	mcp.WithString("ip",
		mcp.Required(),
		mcp.Description("IPv4 address to resolve"),
	),
)
