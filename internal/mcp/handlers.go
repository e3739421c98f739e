package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pawprintlabs/pawprint/internal/analysis"
	"github.com/pawprintlabs/pawprint/internal/geoip"
	"github.com/pawprintlabs/pawprint/internal/records"
)

const (
	defaultFilterLimit = 25
	maxFilterLimit     = 200
	tableTextLimit     = 10
)

// handleGetSummary reports the loaded export's headline numbers.
func (s *Server) handleGetSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view := analysis.Summary(s.data.LogType, s.data.Columns, s.data.Stats, s.data.Records)
	return mcp.NewToolResultText(formatSummary(s.data.Filename, view)), nil
}

// handleFilterRecords applies the request filters and renders the
// matching records, newest first.
func (s *Server) handleFilterRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultFilterLimit)
	if limit <= 0 {
		limit = defaultFilterLimit
	}
	if limit > maxFilterLimit {
		limit = maxFilterLimit
	}

	matched := filterFromRequest(request).Apply(s.data.Records)
	if len(matched) == 0 {
		return mcp.NewToolResultText("No records match the given filters."), nil
	}
	return mcp.NewToolResultText(formatRecords(matched, limit)), nil
}

// handlePatternTables aggregates the (optionally filtered) records
// into the ranked pattern tables.
func (s *Server) handlePatternTables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matched := filterFromRequest(request).Apply(s.data.Records)
	if len(matched) == 0 {
		return mcp.NewToolResultText("No records match the given filters."), nil
	}
	return mcp.NewToolResultText(formatPatterns(analysis.Patterns(matched), len(matched))), nil
}

// handleLookupIP resolves one address against the range databases.
func (s *Server) handleLookupIP(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ip, err := request.RequireString("ip")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: ip"), nil
	}
	if s.resolver == nil {
		return mcp.NewToolResultError("no geolocation databases loaded; run `pawprint geoip download` first"), nil
	}

	geo := s.resolver.LookupGeo(ip)
	asn := s.resolver.LookupASN(ip)
	if geo == nil && asn == nil {
		return mcp.NewToolResultText(fmt.Sprintf("%s is not covered by the loaded ranges.", ip)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("IP: %s\n", ip))
	if geo != nil {
		sb.WriteString(fmt.Sprintf("Country: %s (%s)\n", geo.CountryName, geo.CountryCode))
		if geo.ContinentCode != "" {
			sb.WriteString(fmt.Sprintf("Continent: %s\n", geo.ContinentCode))
		}
	}
	if asn != nil {
		sb.WriteString(fmt.Sprintf("Network: %s %s\n", asn.ASN, asn.ASName))
		if asn.ASDomain != "" {
			sb.WriteString(fmt.Sprintf("Domain: %s\n", asn.ASDomain))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// filterFromRequest maps the optional tool parameters onto a Filter.
func filterFromRequest(request mcp.CallToolRequest) analysis.Filter {
	return analysis.Filter{
		Users:      splitParam(request.GetString("users", "")),
		Operations: splitParam(request.GetString("operations", "")),
		Files:      request.GetString("files", ""),
		IPs:        request.GetString("ips", ""),
		ExcludeIPs: request.GetString("exclude_ips", ""),
		Countries:  splitParam(request.GetString("countries", "")),
		ASNs:       splitParam(request.GetString("asns", "")),
		StartDate:  request.GetString("start_date", ""),
		EndDate:    request.GetString("end_date", ""),
	}
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func formatSummary(filename string, view analysis.SummaryView) string {
	var sb strings.Builder
	if filename != "" {
		sb.WriteString(fmt.Sprintf("File: %s\n", filename))
	}
	sb.WriteString(fmt.Sprintf("Log type: %s\n", view.LogType))
	sb.WriteString(fmt.Sprintf("Records: %d\n", view.TotalRecords))
	if view.DateRange != nil {
		sb.WriteString(fmt.Sprintf("Date range: %s to %s\n", view.DateRange.First, view.DateRange.Last))
	}
	sb.WriteString(fmt.Sprintf("Unique users: %d\n", view.UniqueUsers))
	sb.WriteString(fmt.Sprintf("Unique files: %d\n", view.UniqueFiles))
	sb.WriteString(fmt.Sprintf("Unique client IPs: %d\n", view.UniqueIPs))

	stats := view.ParseStats
	if stats.SkippedRows > 0 || stats.JSONFailures > 0 || stats.TimestampFailures > 0 {
		sb.WriteString(fmt.Sprintf(
			"Data quality: %d rows skipped, %d payloads unparsable, %d timestamps unparsable\n",
			stats.SkippedRows, stats.JSONFailures, stats.TimestampFailures))
	}
	sb.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(view.Columns, ", ")))
	return sb.String()
}

func formatRecords(recs []records.Record, limit int) string {
	shown := len(recs)
	if shown > limit {
		shown = limit
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Showing %d of %d matching record(s), newest first:\n", shown, len(recs)))
	for i := 0; i < shown; i++ {
		sb.WriteString("\n")
		sb.WriteString(formatRecord(&recs[i]))
	}
	if len(recs) > limit {
		sb.WriteString(fmt.Sprintf("\n... %d more; narrow the filters or raise the limit.\n", len(recs)-limit))
	}
	return sb.String()
}

func formatRecord(rec *records.Record) string {
	ts := rec.TimestampRaw
	if ts == "" {
		ts = "undated"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s  %s", ts, rec.Operation))
	if rec.User != "" {
		sb.WriteString(fmt.Sprintf("  by %s", rec.User))
	}
	sb.WriteString("\n")
	if rec.Subject != "" {
		sb.WriteString(fmt.Sprintf("  subject: %s\n", rec.Subject))
	}
	if rec.Folder != "" {
		sb.WriteString(fmt.Sprintf("  folder: %s\n", rec.Folder))
	}
	if rec.ClientIP != "" {
		sb.WriteString(fmt.Sprintf("  client: %s", geoip.FormatIPDisplay(rec.ClientIP, rec.Geo)))
		if rec.ASN != nil {
			sb.WriteString(fmt.Sprintf(" (%s %s)", rec.ASN.ASN, rec.ASN.ASName))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatPatterns(report analysis.PatternReport, total int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pattern tables over %d record(s):\n", total))
	writeTable(&sb, "User x IP", report.UserIP)
	writeTable(&sb, "User x Operation", report.UserOperation)
	writeTable(&sb, "Operation x IP", report.OperationIP)
	writeTable(&sb, "User x Operation x IP", report.UserOperationIP)
	writeTable(&sb, "Countries", report.Countries)
	writeTable(&sb, "Networks", report.ASNs)
	return sb.String()
}

func writeTable(sb *strings.Builder, title string, table analysis.Table) {
	if len(table.Buckets) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("\n%s (%d distinct pattern(s)):\n", title, table.TotalPatterns))
	shown := len(table.Buckets)
	if shown > tableTextLimit {
		shown = tableTextLimit
	}
	for _, b := range table.Buckets[:shown] {
		sb.WriteString(fmt.Sprintf("  %4dx  [%s]  %s\n", b.Count, b.Severity, strings.Join(b.Key, "  ")))
	}
	if len(table.Buckets) > shown {
		sb.WriteString(fmt.Sprintf("  ... %d more\n", len(table.Buckets)-shown))
	}
}
