package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and saves the
// result to the given path. The second return reports whether the
// user asked for the geoip databases to be downloaded right away.
func RunWizard(path string) (*Config, bool, error) {
	fmt.Println("Welcome to pawprint! Let's set up your workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Listen address.
	addrPrompt := promptui.Prompt{
		Label:   "Listen address",
		Default: cfg.ListenAddr,
		Validate: func(s string) error {
			_, _, err := net.SplitHostPort(s)
			return err
		},
	}
	addr, err := addrPrompt.Run()
	if err != nil {
		return nil, false, fmt.Errorf("listen address: %w", err)
	}
	cfg.ListenAddr = addr

	// 2. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory (database, geoip files)",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, false, fmt.Errorf("data directory: %w", err)
	}
	cfg.DataDir = dataDir

	// 3. GeoIP enrichment.
	geoPrompt := promptui.Select{
		Label: "Enable IP geolocation enrichment",
		Items: []string{
			"yes - resolve client addresses to country and network",
			"no  - skip geolocation entirely",
		},
	}
	geoIdx, _, err := geoPrompt.Run()
	if err != nil {
		return nil, false, fmt.Errorf("geoip selection: %w", err)
	}
	cfg.GeoIP.Enabled = geoIdx == 0

	download := false
	if cfg.GeoIP.Enabled {
		downloadPrompt := promptui.Select{
			Label: "Download the range databases now (~100 MB)",
			Items: []string{"later", "now"},
		}
		downloadIdx, _, err := downloadPrompt.Run()
		if err != nil {
			return nil, false, fmt.Errorf("download selection: %w", err)
		}
		download = downloadIdx == 1
	}

	// 4. Analysis workers.
	workersPrompt := promptui.Prompt{
		Label:   "Background analysis workers",
		Default: strconv.Itoa(cfg.Analysis.Workers),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return fmt.Errorf("enter a number of at least 1")
			}
			return nil
		},
	}
	workersStr, err := workersPrompt.Run()
	if err != nil {
		return nil, false, fmt.Errorf("workers: %w", err)
	}
	cfg.Analysis.Workers, _ = strconv.Atoi(workersStr)

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, false, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	if cfg.GeoIP.Enabled && !download {
		fmt.Println("Run 'pawprint geoip download' before your first enriched analysis.")
	}
	return cfg, download, nil
}
