package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"rita/internal/config"
	"rita/internal/exitcode"
	"rita/internal/feature"
	"rita/internal/journal"
	"rita/internal/service"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd implements the watch command.
type WatchCmd struct {
	all bool
}

// SetAll sets the all flag (for testing).
func (c *WatchCmd) SetAll(on bool) {
	c.all = on
}

func (c *WatchCmd) Name() string      { return "watch" }
func (c *WatchCmd) Aliases() []string { return nil }
func (c *WatchCmd) Synopsis() string  { return "Wait for several tasks at once" }
func (c *WatchCmd) Usage() string     { return "rita watch [--all] [<ref>...]" }
func (c *WatchCmd) NeedsAuth() bool   { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.all, "all", false, "")
	fs.BoolVar(&c.all, "a", false, "")
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) == 0 && !c.all {
		return fail(errOut, ErrTaskRefRequired)
	}
	targets, err := ParseTaskRefs(args)
	if err != nil {
		return fail(errOut, err)
	}

	ws, err := newWorkspace(ctx, cfg, svc, c.all)
	if err != nil {
		return fail(errOut, err)
	}
	defer ws.Close()

	if c.all {
		pending, err := unfinished(ctx, ws.store)
		if err != nil {
			return fail(errOut, err)
		}
		targets = mergeTargets(targets, pending)
	}
	if len(targets) == 0 {
		info(cfg, errOut, "nothing to watch")
		return exitcode.Success
	}

	info(cfg, errOut, "watching %d task(s)...", len(targets))
	code := exitcode.Success
	watcher := feature.NewWatcher(ws.scraper, ws.analyzer, cfg.WatchConcurrency, cfg.Log())
	err = watcher.Run(ctx, targets, func(o feature.Outcome) {
		if o.Err != nil {
			fmt.Fprintf(out, "%s: %s\n", o.Target, o.Err)
			if oc := exitcode.FromError(o.Err); oc > code {
				code = oc
			}
			return
		}
		fmt.Fprintf(out, "%s: %s\n", o.Target, o.Status)
	})
	if err != nil {
		return fail(errOut, err)
	}
	return code
}

// unfinished lists the journaled tasks that have not reached a terminal
// state.
func unfinished(ctx context.Context, store journal.Store) ([]feature.Target, error) {
	var targets []feature.Target
	for _, f := range []journal.Feature{journal.FeatureScrape, journal.FeatureVideo} {
		entries, err := store.List(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.Status.Terminal() {
				targets = append(targets, feature.Target{Feature: f, ID: e.ID})
			}
		}
	}
	return targets, nil
}

func mergeTargets(a, b []feature.Target) []feature.Target {
	seen := make(map[feature.Target]bool, len(a))
	for _, t := range a {
		seen[t] = true
	}
	for _, t := range b {
		if !seen[t] {
			seen[t] = true
			a = append(a, t)
		}
	}
	return a
}
