// Package mcp exposes a loaded audit export to AI agents over the
// Model Context Protocol on stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/pawprintlabs/pawprint/internal/geoip"
	"github.com/pawprintlabs/pawprint/internal/records"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Dataset is the record set the server answers questions about. It is
// loaded once at startup and never mutated.
type Dataset struct {
	Filename string
	LogType  string
	Columns  []string
	Stats    records.ParseStats
	Records  []records.Record
}

// Server wraps an MCP server exposing audit analysis tools.
type Server struct {
	data     Dataset
	resolver *geoip.Resolver
	mcp      *server.MCPServer
}

// NewServer creates an MCP server over the given dataset. The resolver
// may be nil, which disables the lookup_ip tool's data source.
func NewServer(data Dataset, resolver *geoip.Resolver) *Server {
	s := &Server{
		data:     data,
		resolver: resolver,
	}

	s.mcp = server.NewMCPServer(
		"pawprint",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers.
func (s *Server) registerTools() {
	s.mcp.AddTool(getSummaryTool, s.handleGetSummary)
	s.mcp.AddTool(filterRecordsTool, s.handleFilterRecords)
	s.mcp.AddTool(patternTablesTool, s.handlePatternTables)
	s.mcp.AddTool(lookupIPTool, s.handleLookupIP)
}

// Serve starts the MCP server on stdio. Stdout carries protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
