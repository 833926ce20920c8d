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
	"rita/internal/journal"
	"rita/internal/output"
	"rita/internal/render"
	"rita/internal/service"
	"rita/internal/task"
)

func init() {
	Register(&AnalyzeCmd{})
	Register(&VideosCmd{})
	Register(&RmVideoCmd{})
}

// AnalyzeCmd implements the analyze command.
type AnalyzeCmd struct {
	noWait bool
}

// SetNoWait sets the no-wait flag (for testing).
func (c *AnalyzeCmd) SetNoWait(on bool) {
	c.noWait = on
}

func (c *AnalyzeCmd) Name() string      { return "analyze" }
func (c *AnalyzeCmd) Aliases() []string { return []string{"tiktok"} }
func (c *AnalyzeCmd) Synopsis() string  { return "Analyze a TikTok video" }
func (c *AnalyzeCmd) Usage() string     { return "rita analyze [--no-wait] <video-url>" }
func (c *AnalyzeCmd) NeedsAuth() bool   { return true }

func (c *AnalyzeCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.noWait, "no-wait", false, "")
}

func (c *AnalyzeCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: exactly one video url required")
		return exitcode.UserError
	}

	ws, err := newWorkspace(ctx, cfg, svc, false)
	if err != nil {
		return fail(errOut, err)
	}
	defer ws.Close()

	v, err := ws.analyzer.Submit(ctx, task.VideoInput{URL: args[0]})
	if err != nil {
		return fail(errOut, err)
	}
	output.FormatVideoCard(out, render.NewVideoCard(v))

	if c.noWait {
		info(cfg, errOut, "analysis continues as video %s (rita status v%s)", v.ID, v.ID)
		return exitcode.Success
	}
	info(cfg, errOut, "waiting for the analysis...")

	st, err := ws.analyzer.Wait(ctx, v.ID)
	if err != nil {
		return fail(errOut, err)
	}
	fmt.Fprintln(out)
	output.FormatAnalysis(out, render.NewAnalysisView(st.Analysis))
	return exitcode.Success
}

// VideosCmd implements the videos command.
type VideosCmd struct{}

func (c *VideosCmd) Name() string      { return "videos" }
func (c *VideosCmd) Aliases() []string { return nil }
func (c *VideosCmd) Synopsis() string  { return "List analyzed videos" }
func (c *VideosCmd) Usage() string     { return "rita videos" }
func (c *VideosCmd) NeedsAuth() bool   { return false }

func (c *VideosCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *VideosCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	ws, err := newWorkspace(ctx, cfg, svc, true)
	if err != nil {
		return fail(errOut, err)
	}
	defer ws.Close()

	mgr, err := ws.analyzer.History()
	if err != nil {
		return fail(errOut, err)
	}
	entries, err := mgr.Refresh(ctx)
	if err != nil {
		return fail(errOut, err)
	}
	rows := make([]render.VideoRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, render.NewVideoRow(string(e.ID), e.Description, e.Author, string(e.Status), e.URL))
	}
	output.FormatVideoHistory(out, rows)
	return exitcode.Success
}

// RmVideoCmd implements the rmvideo command.
type RmVideoCmd struct {
	in io.Reader
}

// SetInput sets the reader confirmation prompts read from (for testing).
func (c *RmVideoCmd) SetInput(r io.Reader) {
	c.in = r
}

func (c *RmVideoCmd) Name() string      { return "rmvideo" }
func (c *RmVideoCmd) Aliases() []string { return nil }
func (c *RmVideoCmd) Synopsis() string  { return "Delete analyzed videos" }
func (c *RmVideoCmd) Usage() string     { return "rita rmvideo [--yes] <id>..." }
func (c *RmVideoCmd) NeedsAuth() bool   { return true }

func (c *RmVideoCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmVideoCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: at least one video id required")
		return exitcode.UserError
	}

	ws, err := newWorkspace(ctx, cfg, svc, true)
	if err != nil {
		return fail(errOut, err)
	}
	defer ws.Close()

	mgr, err := ws.analyzer.History()
	if err != nil {
		return fail(errOut, err)
	}
	if _, err := mgr.Refresh(ctx); err != nil {
		return fail(errOut, err)
	}

	mgr.EnterSelection()
	seen := make(map[service.TaskID]bool, len(args))
	for _, a := range args {
		id := service.TaskID(videoID(a))
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := mgr.Toggle(id); err != nil {
			return fail(errOut, err)
		}
	}

	in := c.in
	if in == nil {
		in = os.Stdin
	}
	deleted, err := mgr.Delete(ctx, confirmer(cfg, in, errOut, "videos"))
	if err != nil {
		if errors.Is(err, history.ErrDeclined) {
			return exitcode.UserError
		}
		return fail(errOut, err)
	}
	info(cfg, errOut, "deleted %d video(s)", len(deleted))
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// videoID accepts both a bare id and the v<id> shorthand.
func videoID(ref string) string {
	if t, err := ParseTaskRef(ref); err == nil && t.Feature == journal.FeatureVideo {
		return string(t.ID)
	}
	return ref
}
