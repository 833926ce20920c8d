package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"rita/internal/config"
	"rita/internal/exitcode"
	"rita/internal/journal"
	"rita/internal/service"
)

func init() {
	Register(&ExportCmd{})
}

// ExportCmd implements the export command.
type ExportCmd struct {
	format string
	dest   string
}

// SetFormat sets the export format (for testing).
func (c *ExportCmd) SetFormat(format string) {
	c.format = format
}

// SetOutput sets the destination (for testing).
func (c *ExportCmd) SetOutput(dest string) {
	c.dest = dest
}

func (c *ExportCmd) Name() string      { return "export" }
func (c *ExportCmd) Aliases() []string { return []string{"download"} }
func (c *ExportCmd) Synopsis() string  { return "Download a finished scrape" }
func (c *ExportCmd) Usage() string {
	return "rita export [--format json|csv] [--output <file|gs://bucket/object>] <ref>"
}
func (c *ExportCmd) NeedsAuth() bool { return true }

func (c *ExportCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "format", "json", "")
	fs.StringVar(&c.dest, "output", "", "")
	fs.StringVar(&c.dest, "o", "", "")
}

func (c *ExportCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: exactly one task reference required")
		return exitcode.UserError
	}
	target, err := ParseTaskRef(args[0])
	if err != nil {
		return fail(errOut, err)
	}
	if target.Feature != journal.FeatureScrape {
		fmt.Fprintln(errOut, "error: only scraping results can be exported")
		return exitcode.UserError
	}
	format := strings.ToLower(strings.TrimSpace(c.format))
	if format == "" {
		format = "json"
	}

	ws, err := newWorkspace(ctx, cfg, svc, false)
	if err != nil {
		return fail(errOut, err)
	}
	defer ws.Close()

	data, err := ws.scraper.Export(ctx, target.ID, format)
	if err != nil {
		return fail(errOut, err)
	}

	if c.dest == "" || c.dest == "-" {
		if _, err := out.Write(data); err != nil {
			return fail(errOut, err)
		}
		return exitcode.Success
	}
	if err := ws.fetcher.Save(ctx, c.dest, data); err != nil {
		return fail(errOut, err)
	}
	info(cfg, errOut, "wrote %d bytes to %s", len(data), c.dest)
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
