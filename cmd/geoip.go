package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pawprintlabs/pawprint/internal/config"
	"github.com/pawprintlabs/pawprint/internal/geoip"
)

var geoipCmd = &cobra.Command{
	Use:   "geoip",
	Short: "Manage the local IP range databases",
}

var geoipDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the country and ASN range databases",
	Long: `Fetches both range databases and stores them gzip-compressed under
the configured geoip directory. Existing databases are replaced only
after a complete download.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := downloadDatabases(cmd, cfg); err != nil {
			return err
		}
		resolver, err := geoip.Open(cfg.GeoIPDir())
		if err != nil {
			return err
		}
		printGeoIPStatus(cfg.GeoIPDir(), resolver.Status())
		return nil
	},
}

var geoipStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which range databases are loaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		resolver, err := geoip.Open(cfg.GeoIPDir())
		if err != nil {
			return err
		}
		printGeoIPStatus(cfg.GeoIPDir(), resolver.Status())
		return nil
	},
}

func init() {
	geoipCmd.AddCommand(geoipDownloadCmd)
	geoipCmd.AddCommand(geoipStatusCmd)
	rootCmd.AddCommand(geoipCmd)
}

func downloadDatabases(cmd *cobra.Command, cfg *config.Config) error {
	fmt.Println("Downloading IP range databases...")
	err := geoip.Download(cmd.Context(), geoip.DownloadOptions{
		Dir:        cfg.GeoIPDir(),
		CountryURL: cfg.GeoIP.CountryURL,
		ASNURL:     cfg.GeoIP.ASNURL,
		Timeout:    cfg.GeoIP.DownloadTimeout.Std(),
	})
	if err != nil {
		return fmt.Errorf("downloading databases: %w", err)
	}
	return nil
}

func printGeoIPStatus(dir string, status geoip.Status) {
	fmt.Printf("Database directory: %s\n", dir)
	printDatabase("Country", status.Country)
	printDatabase("ASN", status.ASN)
	if !status.Ready {
		fmt.Println("Run `pawprint geoip download` to fetch the missing databases.")
	}
}

func printDatabase(name string, db geoip.DatabaseStatus) {
	if !db.Loaded {
		fmt.Printf("%-8s not downloaded\n", name+":")
		return
	}
	if db.UpdatedAt != "" {
		fmt.Printf("%-8s %d ranges (%s, updated %s)\n", name+":", db.Ranges, db.Path, db.UpdatedAt)
		return
	}
	fmt.Printf("%-8s %d ranges (%s)\n", name+":", db.Ranges, db.Path)
}
