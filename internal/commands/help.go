package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"rita/internal/config"
	"rita/internal/exitcode"
	"rita/internal/service"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "rita help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	fmt.Fprintln(out, "\nCommands:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, cmd := range DefaultRegistry.All() {
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.Name(), cmd.Synopsis())
	}
	tw.Flush()
	return exitcode.Success
}

const helpText = `Usage:
  rita chat [common flags] [--file <path>]... [--search-web] [--new] [message...]
  rita clear-chat [common flags] [--delete]
  rita scrape [common flags] --fields <a,b,...> [--model <name>] [--no-wait] <url>
  rita status [common flags] [--wait] <ref>
  rita watch [common flags] [--all] [<ref>...]
  rita history [common flags]
  rita rmhistory [common flags]
  rita export [common flags] [--format json|csv] [--output <file|gs://bucket/object>] <ref>
  rita analyze [common flags] [--no-wait] <video-url>
  rita videos [common flags]
  rita rmvideo [common flags] <id>...
  rita login [common flags] [--username <name>]
  rita logout [common flags]
  rita help
  rita version

Task references:
  12, s12, scrape/12   scraping task 12
  v3, video/3          video analysis 3

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
  --yes            Answer yes to confirmation prompts

Environment:
  RITA_BASE_URL, RITA_API_TOKEN, RITA_PASSWORD, RITA_POLL_INTERVAL,
  RITA_POLL_MAX_ATTEMPTS, RITA_POLL_TIMEOUT, RITA_MAX_FILES, RITA_MAX_FILE_SIZE,
  RITA_SCRAPE_MODEL, RITA_JOURNAL, RITA_GCS_CREDENTIALS, RITA_WATCH_CONCURRENCY
`
