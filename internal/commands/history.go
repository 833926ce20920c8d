package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"rita/internal/config"
	"rita/internal/exitcode"
	"rita/internal/history"
	"rita/internal/output"
	"rita/internal/render"
	"rita/internal/service"
)

func init() {
	Register(&HistoryCmd{})
	Register(&RmHistoryCmd{})
}

// HistoryCmd implements the history command.
type HistoryCmd struct{}

func (c *HistoryCmd) Name() string      { return "history" }
func (c *HistoryCmd) Aliases() []string { return nil }
func (c *HistoryCmd) Synopsis() string  { return "List past scraping tasks" }
func (c *HistoryCmd) Usage() string     { return "rita history" }
func (c *HistoryCmd) NeedsAuth() bool   { return true }

func (c *HistoryCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HistoryCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	ws, err := newWorkspace(ctx, cfg, svc, false)
	if err != nil {
		return fail(errOut, err)
	}
	defer ws.Close()

	items, err := ws.scraper.History().Refresh(ctx)
	if err != nil {
		return fail(errOut, err)
	}
	output.FormatScrapeHistory(out, render.ScrapeRows(items))
	return exitcode.Success
}

// RmHistoryCmd implements the rmhistory command.
type RmHistoryCmd struct {
	in io.Reader
}

// SetInput sets the reader confirmation prompts read from (for testing).
func (c *RmHistoryCmd) SetInput(r io.Reader) {
	c.in = r
}

func (c *RmHistoryCmd) Name() string      { return "rmhistory" }
func (c *RmHistoryCmd) Aliases() []string { return []string{"clear-history"} }
func (c *RmHistoryCmd) Synopsis() string  { return "Delete the whole scraper history" }
func (c *RmHistoryCmd) Usage() string     { return "rita rmhistory [--yes]" }
func (c *RmHistoryCmd) NeedsAuth() bool   { return true }

func (c *RmHistoryCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmHistoryCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	ws, err := newWorkspace(ctx, cfg, svc, false)
	if err != nil {
		return fail(errOut, err)
	}
	defer ws.Close()

	mgr := ws.scraper.History()
	items, err := mgr.Refresh(ctx)
	if err != nil {
		return fail(errOut, err)
	}
	if len(items) == 0 {
		info(cfg, errOut, "history is already empty")
		return exitcode.Success
	}

	in := c.in
	if in == nil {
		in = os.Stdin
	}
	if _, err := mgr.Clear(ctx, confirmer(cfg, in, errOut, "history entries")); err != nil {
		if errors.Is(err, history.ErrDeclined) {
			return exitcode.UserError
		}
		return fail(errOut, err)
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
