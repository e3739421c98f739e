// Package progress gives long CLI phases, mainly geolocation
// enrichment, a visible progress readout.
package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress during a long-running phase.
type Reporter interface {
	Start(total int, label string)
	Update(current int)
	Finish()
}

// NewReporter returns a TerminalReporter for interactive use, or a
// CIReporter when the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{}
	}
	return &TerminalReporter{}
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int, label string) {
	// Stdout stays reserved for analysis output and the MCP protocol.
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int) {
	if r.bar != nil {
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	total int
	label string
}

func (r *CIReporter) Start(total int, label string) {
	r.total = total
	r.label = label
	fmt.Fprintf(os.Stderr, "%s: 0/%d\n", label, total)
}

func (r *CIReporter) Update(current int) {
	fmt.Fprintf(os.Stderr, "%s: %d/%d\n", r.label, current, r.total)
}

func (r *CIReporter) Finish() {
	fmt.Fprintf(os.Stderr, "%s: done\n", r.label)
}

// NopReporter discards all updates, for quiet mode and tests.
type NopReporter struct{}

func (NopReporter) Start(total int, label string) {}
func (NopReporter) Update(current int)            {}
func (NopReporter) Finish()                       {}
