package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"rita/internal/config"
	"rita/internal/exitcode"
	"rita/internal/feature"
	"rita/internal/journal"
	"rita/internal/output"
	"rita/internal/render"
	"rita/internal/service"
	"rita/internal/task"
)

func init() {
	Register(&ScrapeCmd{})
	Register(&StatusCmd{})
}

// ScrapeCmd implements the scrape command.
type ScrapeCmd struct {
	fields string
	model  string
	noWait bool
}

// SetFields sets the comma-separated field list (for testing).
func (c *ScrapeCmd) SetFields(fields string) {
	c.fields = fields
}

// SetNoWait sets the no-wait flag (for testing).
func (c *ScrapeCmd) SetNoWait(on bool) {
	c.noWait = on
}

func (c *ScrapeCmd) Name() string      { return "scrape" }
func (c *ScrapeCmd) Aliases() []string { return nil }
func (c *ScrapeCmd) Synopsis() string  { return "Extract fields from a web page" }
func (c *ScrapeCmd) Usage() string {
	return "rita scrape --fields <a,b,...> [--model <name>] [--no-wait] <url>"
}
func (c *ScrapeCmd) NeedsAuth() bool { return true }

func (c *ScrapeCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.fields, "fields", "", "")
	fs.StringVar(&c.model, "model", "", "")
	fs.BoolVar(&c.noWait, "no-wait", false, "")
}

func (c *ScrapeCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: exactly one url required")
		return exitcode.UserError
	}

	ws, err := newWorkspace(ctx, cfg, svc, false)
	if err != nil {
		return fail(errOut, err)
	}
	defer ws.Close()

	id, err := ws.scraper.Submit(ctx, task.ScrapeInput{
		URL:    args[0],
		Fields: task.ParseTags(c.fields),
		Model:  c.model,
	}, cfg.ScrapeModel)
	if err != nil {
		return fail(errOut, err)
	}

	if c.noWait {
		fmt.Fprintln(out, id)
		return exitcode.Success
	}
	info(cfg, errOut, "task %s submitted, waiting for the result...", id)
	return waitScrape(ctx, ws.scraper, id, out, errOut)
}

// waitScrape polls a scrape to the end and prints its usage and table.
func waitScrape(ctx context.Context, scraper *feature.Scraper, id service.TaskID, out, errOut io.Writer) int {
	st, err := scraper.Wait(ctx, id)
	if err != nil {
		return fail(errOut, err)
	}
	return printScrape(ctx, scraper, st, out, errOut)
}

func printScrape(ctx context.Context, scraper *feature.Scraper, st service.ScrapeStatus, out, errOut io.Writer) int {
	table, err := scraper.Result(ctx, st)
	if err != nil {
		return fail(errOut, err)
	}
	output.FormatUsage(out, render.NewUsageCard(st))
	fmt.Fprintln(out)
	output.FormatTable(out, table)
	return exitcode.Success
}

// StatusCmd implements the status command.
type StatusCmd struct {
	wait bool
}

// SetWait sets the wait flag (for testing).
func (c *StatusCmd) SetWait(on bool) {
	c.wait = on
}

func (c *StatusCmd) Name() string      { return "status" }
func (c *StatusCmd) Aliases() []string { return nil }
func (c *StatusCmd) Synopsis() string  { return "Show the state of a task" }
func (c *StatusCmd) Usage() string     { return "rita status [--wait] <ref>" }
func (c *StatusCmd) NeedsAuth() bool   { return true }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.wait, "wait", false, "")
	fs.BoolVar(&c.wait, "w", false, "")
}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: exactly one task reference required")
		return exitcode.UserError
	}
	target, err := ParseTaskRef(args[0])
	if err != nil {
		return fail(errOut, err)
	}

	ws, err := newWorkspace(ctx, cfg, svc, false)
	if err != nil {
		return fail(errOut, err)
	}
	defer ws.Close()

	if target.Feature == journal.FeatureVideo {
		return c.video(ctx, ws.analyzer, target.ID, out, errOut)
	}

	if c.wait {
		return waitScrape(ctx, ws.scraper, target.ID, out, errOut)
	}
	st, err := ws.scraper.Check(ctx, target.ID)
	if err != nil {
		return fail(errOut, err)
	}
	output.FormatScrapeStatus(out, st)
	switch st.Status {
	case service.StatusComplete:
		fmt.Fprintln(out)
		return printScrape(ctx, ws.scraper, st, out, errOut)
	case service.StatusFailed:
		if msg := strings.TrimSpace(st.ErrorMessage); msg != "" {
			fmt.Fprintf(out, "error: %s\n", msg)
		}
		return exitcode.BackendError
	}
	return exitcode.Success
}

func (c *StatusCmd) video(ctx context.Context, analyzer *feature.Analyzer, id service.TaskID, out, errOut io.Writer) int {
	var (
		st  service.VideoStatus
		err error
	)
	if c.wait {
		st, err = analyzer.Wait(ctx, id)
	} else {
		st, err = analyzer.Check(ctx, id)
	}
	if err != nil {
		return fail(errOut, err)
	}
	fmt.Fprintf(out, "video %s: %s\n", id, st.Status)
	switch st.Status {
	case service.StatusComplete:
		fmt.Fprintln(out)
		output.FormatAnalysis(out, render.NewAnalysisView(st.Analysis))
	case service.StatusFailed:
		msg := st.Error
		if msg == "" {
			msg = render.AnalysisFailedMessage
		}
		fmt.Fprintf(out, "error: %s\n", msg)
		return exitcode.BackendError
	}
	return exitcode.Success
}
