package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pawprintlabs/pawprint/internal/geoip"
	mcpserver "github.com/pawprintlabs/pawprint/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Loads one audit export and serves it to AI agents over the Model
Context Protocol on stdio: summary, filtered record listings, pattern
tables and IP lookups. Stdout carries the protocol; all diagnostics go
to stderr.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().String("file", "", "audit export to load (.csv or .csv.gz)")
	_ = mcpCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	file, _ := cmd.Flags().GetString("file")
	batch, err := readExport(file)
	if err != nil {
		return err
	}
	recs := batch.Normalize()
	data := mcpserver.Dataset{
		Filename: filepath.Base(file),
		LogType:  batch.LogType(),
		Columns:  batch.Columns,
		Stats:    batch.Stats,
		Records:  recs,
	}

	// Enrich upfront when databases are available so country and
	// network filters have data to match against.
	var resolver *geoip.Resolver
	if r, err := geoip.Open(cfg.GeoIPDir()); err == nil && r.Status().Ready {
		resolver = r
		if err := enrichRecords(cmd.Context(), recs, resolver, cfg.Analysis.ChunkSize); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(os.Stderr, "geoip databases not loaded; lookup_ip and country filters are unavailable")
	}

	mcpserver.Version = Version

	fmt.Fprintf(os.Stderr, "pawprint MCP server started on stdio (%s, %d records, %s)\n",
		data.Filename, len(recs), data.LogType)

	srv := mcpserver.NewServer(data, resolver)
	return srv.Serve()
}
