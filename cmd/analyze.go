package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/pawprintlabs/pawprint/internal/analysis"
	"github.com/pawprintlabs/pawprint/internal/enrich"
	"github.com/pawprintlabs/pawprint/internal/geoip"
	"github.com/pawprintlabs/pawprint/internal/progress"
	"github.com/pawprintlabs/pawprint/internal/records"
	"github.com/pawprintlabs/pawprint/internal/usermap"
	"github.com/pawprintlabs/pawprint/internal/walker"
)

var analyzeViews = []string{"summary", "files", "users", "exchange", "patterns"}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [files or globs...]",
	Short: "Analyze audit exports offline, without the server",
	Long: `Reads one or more audit export files (.csv or .csv.gz), normalizes
them into one record set and writes the requested analysis views as
JSON. Arguments may be files, directories or glob patterns such as
'exports/**/*.csv'; identical files are ingested once.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("out", "", "directory for per-view JSON files (stdout when empty)")
	analyzeCmd.Flags().StringSlice("views", []string{"summary", "patterns"},
		"views to compute: "+strings.Join(analyzeViews, ", "))
	analyzeCmd.Flags().Bool("geoip", false, "resolve client addresses against the local range databases")
	analyzeCmd.Flags().String("usermap", "", "CSV file of upn,display_name pairs")
	analyzeCmd.Flags().StringSlice("users", nil, "filter: user principal names")
	analyzeCmd.Flags().StringSlice("operations", nil, "filter: operation names")
	analyzeCmd.Flags().String("files", "", "filter: substring of subject or folder")
	analyzeCmd.Flags().String("ips", "", "filter: client IP patterns, * wildcards, comma-separated")
	analyzeCmd.Flags().String("exclude-ips", "", "filter: client IP patterns to exclude")
	analyzeCmd.Flags().StringSlice("countries", nil, "filter: country names or codes (needs --geoip)")
	analyzeCmd.Flags().StringSlice("asns", nil, "filter: AS numbers (needs --geoip)")
	analyzeCmd.Flags().String("start", "", "filter: inclusive start date, YYYY-MM-DD")
	analyzeCmd.Flags().String("end", "", "filter: inclusive end date, YYYY-MM-DD")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	views, _ := cmd.Flags().GetStringSlice("views")
	for _, view := range views {
		if !validView(view) {
			return fmt.Errorf("unknown view %q (choose from %s)", view, strings.Join(analyzeViews, ", "))
		}
	}

	files, err := walker.Expand(args)
	if err != nil {
		return err
	}

	columns, recs, stats, err := loadExports(files)
	if err != nil {
		return err
	}
	logType := records.DetectLogType(columns)
	fmt.Fprintf(os.Stderr, "Loaded %d records from %d file(s) (%s)\n", len(recs), len(files), logType)

	var mapper usermap.Map
	if mapFile, _ := cmd.Flags().GetString("usermap"); mapFile != "" {
		mapper, err = loadUserMap(mapFile)
		if err != nil {
			return err
		}
	}

	if enable, _ := cmd.Flags().GetBool("geoip"); enable {
		resolver, err := geoip.Open(cfg.GeoIPDir())
		if err != nil {
			return fmt.Errorf("loading geoip databases: %w", err)
		}
		if !resolver.Status().Ready {
			return fmt.Errorf("geoip databases missing under %s; run `pawprint geoip download` first", cfg.GeoIPDir())
		}
		if err := enrichRecords(cmd.Context(), recs, resolver, cfg.Analysis.ChunkSize); err != nil {
			return err
		}
	}

	filtered := analyzeFilter(cmd).Apply(recs)
	fmt.Fprintf(os.Stderr, "%d of %d records match the filters\n", len(filtered), len(recs))

	outDir, _ := cmd.Flags().GetString("out")
	return writeViews(outDir, views, func(view string) any {
		switch view {
		case "summary":
			return analysis.Summary(logType, columns, stats, filtered)
		case "files":
			return analysis.FileOperations(filtered, mapper)
		case "users":
			return analysis.UserActivity(filtered, mapper)
		case "exchange":
			return analysis.Exchange(filtered, mapper)
		default:
			return analysis.Patterns(filtered)
		}
	})
}

func validView(view string) bool {
	for _, v := range analyzeViews {
		if v == view {
			return true
		}
	}
	return false
}

// loadExports parses every file into one merged record set.
func loadExports(files []walker.FileInfo) ([]string, []records.Record, records.ParseStats, error) {
	var (
		columns []string
		recs    []records.Record
		stats   records.ParseStats
	)
	for _, file := range files {
		batch, err := readExport(file.Path)
		if err != nil {
			return nil, nil, stats, err
		}
		recs = append(recs, batch.Normalize()...)
		stats.Add(batch.Stats)
		columns = records.MergeColumns(columns, batch.Columns)
	}
	return columns, recs, stats, nil
}

func readExport(path string) (*records.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	batch, err := records.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return batch, nil
}

func loadUserMap(path string) (usermap.Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening usermap: %w", err)
	}
	defer f.Close()

	mapper, err := usermap.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing usermap %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "Loaded %d display names\n", mapper.Len())
	return mapper, nil
}

// enrichRecords runs the chunked enrichment with a terminal progress
// bar (line output under CI).
func enrichRecords(ctx context.Context, recs []records.Record, resolver *geoip.Resolver, chunkSize int) error {
	resolver.Precache(enrich.CollectIPs(recs))

	reporter := progress.NewReporter()
	reporter.Start(len(recs), "Resolving addresses")
	enriched, err := enrich.Enrich(ctx, recs, resolver, enrich.Options{
		ChunkSize: chunkSize,
		OnProgress: func(cp enrich.Checkpoint) {
			reporter.Update(cp.Done)
		},
	})
	reporter.Finish()
	if err != nil {
		return fmt.Errorf("enriching records: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Resolved %d client addresses\n", enriched)
	return nil
}

func analyzeFilter(cmd *cobra.Command) analysis.Filter {
	users, _ := cmd.Flags().GetStringSlice("users")
	operations, _ := cmd.Flags().GetStringSlice("operations")
	fileSub, _ := cmd.Flags().GetString("files")
	ips, _ := cmd.Flags().GetString("ips")
	excludeIPs, _ := cmd.Flags().GetString("exclude-ips")
	countries, _ := cmd.Flags().GetStringSlice("countries")
	asns, _ := cmd.Flags().GetStringSlice("asns")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	return analysis.Filter{
		Users:      users,
		Operations: operations,
		Files:      fileSub,
		IPs:        ips,
		ExcludeIPs: excludeIPs,
		Countries:  countries,
		ASNs:       asns,
		StartDate:  start,
		EndDate:    end,
	}
}

// writeViews renders each requested view, either one pretty-printed
// JSON file per view under dir or a single document on stdout.
func writeViews(dir string, views []string, build func(view string) any) error {
	if dir == "" {
		doc := make(map[string]any, len(views))
		for _, view := range views {
			doc[view] = build(view)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	for _, view := range views {
		payload, err := json.MarshalIndent(build(view), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s view: %w", view, err)
		}
		path := filepath.Join(dir, view+".json")
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	}
	return nil
}
