package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pawprintlabs/pawprint/internal/geoip"
	"github.com/pawprintlabs/pawprint/internal/records"
)

func rec(user, op, ip, ts string) records.Record {
	r := records.Record{User: user, Operation: op, ClientIP: ip}
	if ts != "" {
		r.TimestampRaw = ts
		r.Timestamp, _ = records.ParseTimestamp(ts)
	}
	return r
}

func testDataset() Dataset {
	subject := rec("alice@contoso.com", "Send", "203.0.113.5", "2024-03-03T11:15:00")
	subject.Subject = "quarterly-report.docx"
	return Dataset{
		Filename: "audit.csv",
		LogType:  records.LogTypeExchange,
		Columns:  []string{"CreationDate", "MailboxOwnerUPN", "Operation", "ClientIP"},
		Stats:    records.ParseStats{TotalRows: 3},
		Records: []records.Record{
			subject,
			rec("alice@contoso.com", "Send", "203.0.113.5", "2024-03-02T10:00:00"),
			rec("bob@contoso.com", "MailItemsAccessed", "198.51.100.7", "2024-03-01T09:30:00"),
		},
	}
}

func newTestResolver(t *testing.T) *geoip.Resolver {
	t.Helper()
	geoRanges, _, err := geoip.LoadRangesCSV(strings.NewReader(
		"network,country_code,country_name,continent_code\n203.0.113.0/24,NL,Netherlands,EU\n",
	), geoip.KindCountry)
	if err != nil {
		t.Fatalf("LoadRangesCSV(country): %v", err)
	}
	asnRanges, _, err := geoip.LoadRangesCSV(strings.NewReader(
		"network,asn,as_name,as_domain\n203.0.113.0/24,64496,Example Carrier,example.net\n",
	), geoip.KindASN)
	if err != nil {
		t.Fatalf("LoadRangesCSV(asn): %v", err)
	}
	return geoip.NewResolver(geoRanges, asnRanges)
}

// extractText gets the text content from a CallToolResult.
func extractText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"get_summary", getSummaryTool, "get_summary"},
		{"filter_records", filterRecordsTool, "filter_records"},
		{"pattern_tables", patternTablesTool, "pattern_tables"},
		{"lookup_ip", lookupIPTool, "lookup_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	data := testDataset()
	srv := NewServer(data, nil)

	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if len(srv.data.Records) != 3 {
		t.Errorf("dataset records = %d, want 3", len(srv.data.Records))
	}
	if srv.resolver != nil {
		t.Error("resolver should stay nil when none is given")
	}
}

func TestHandleGetSummary(t *testing.T) {
	srv := NewServer(testDataset(), nil)
	ctx := context.Background()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := srv.handleGetSummary(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}

	text := extractText(result)
	for _, want := range []string{
		"File: audit.csv",
		"Log type: exchange",
		"Records: 3",
		"Unique users: 2",
		"Date range: 2024-03-01",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}

func TestHandleFilterRecords(t *testing.T) {
	srv := NewServer(testDataset(), nil)
	ctx := context.Background()

	t.Run("no filters", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleFilterRecords(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := extractText(result)
		if !strings.Contains(text, "Showing 3 of 3") {
			t.Errorf("expected all records:\n%s", text)
		}
		// Newest first.
		first := strings.Index(text, "2024-03-03T11:15:00")
		last := strings.Index(text, "2024-03-01T09:30:00")
		if first == -1 || last == -1 || first > last {
			t.Errorf("records not newest first:\n%s", text)
		}
	})

	t.Run("user filter case-insensitive", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"users": "BOB@CONTOSO.COM",
		}

		result, err := srv.handleFilterRecords(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := extractText(result)
		if !strings.Contains(text, "Showing 1 of 1") {
			t.Errorf("expected one record for bob:\n%s", text)
		}
		if !strings.Contains(text, "MailItemsAccessed") {
			t.Errorf("expected bob's operation:\n%s", text)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"users": "mallory@contoso.com",
		}

		result, err := srv.handleFilterRecords(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := extractText(result); got != "No records match the given filters." {
			t.Errorf("empty match text = %q", got)
		}
	})

	t.Run("limit truncates", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"limit": float64(1),
		}

		result, err := srv.handleFilterRecords(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := extractText(result)
		if !strings.Contains(text, "Showing 1 of 3") {
			t.Errorf("expected truncation to 1:\n%s", text)
		}
		if !strings.Contains(text, "2 more") {
			t.Errorf("expected overflow note:\n%s", text)
		}
	})
}

func TestHandlePatternTables(t *testing.T) {
	srv := NewServer(testDataset(), nil)
	ctx := context.Background()

	t.Run("all records", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handlePatternTables(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := extractText(result)
		for _, want := range []string{
			"Pattern tables over 3 record(s)",
			"User x IP",
			"User x Operation x IP",
			"alice@contoso.com",
			"[low]",
		} {
			if !strings.Contains(text, want) {
				t.Errorf("pattern output missing %q:\n%s", want, text)
			}
		}
	})

	t.Run("filtered down to nothing", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"operations": "HardDelete",
		}

		result, err := srv.handlePatternTables(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := extractText(result); got != "No records match the given filters." {
			t.Errorf("empty match text = %q", got)
		}
	})
}

func TestHandleLookupIP(t *testing.T) {
	ctx := context.Background()

	t.Run("known address", func(t *testing.T) {
		srv := NewServer(testDataset(), newTestResolver(t))
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"ip": "203.0.113.5",
		}

		result, err := srv.handleLookupIP(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		text := extractText(result)
		for _, want := range []string{"Netherlands", "64496", "Example Carrier"} {
			if !strings.Contains(text, want) {
				t.Errorf("lookup missing %q:\n%s", want, text)
			}
		}
	})

	t.Run("uncovered address", func(t *testing.T) {
		srv := NewServer(testDataset(), newTestResolver(t))
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"ip": "192.0.2.1",
		}

		result, err := srv.handleLookupIP(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(extractText(result), "not covered") {
			t.Errorf("expected uncovered note, got %q", extractText(result))
		}
	})

	t.Run("missing parameter", func(t *testing.T) {
		srv := NewServer(testDataset(), newTestResolver(t))
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleLookupIP(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing ip")
		}
	})

	t.Run("no databases loaded", func(t *testing.T) {
		srv := NewServer(testDataset(), nil)
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"ip": "203.0.113.5",
		}

		result, err := srv.handleLookupIP(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error when no resolver is configured")
		}
	})
}
