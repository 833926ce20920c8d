package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"rita/internal/blob"
	"rita/internal/config"
	"rita/internal/exitcode"
	"rita/internal/feature"
	"rita/internal/journal"
	"rita/internal/service"
	"rita/internal/task"
)

// fail prints err and returns its exit code.
func fail(errOut io.Writer, err error) int {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(errOut, "error: cancelled")
	} else {
		fmt.Fprintf(errOut, "error: %s\n", err)
	}
	return exitcode.FromError(err)
}

// info prints a progress line unless quiet.
func info(cfg *config.Config, errOut io.Writer, format string, args ...any) {
	if cfg.Quiet {
		return
	}
	fmt.Fprintf(errOut, format+"\n", args...)
}

// pollOptions builds poller settings from the configuration.
func pollOptions(cfg *config.Config) task.Options {
	return task.Options{
		Interval:    cfg.Interval(),
		MaxAttempts: cfg.PollMaxAttempts,
		Timeout:     cfg.PollTimeout,
	}
}

// openJournal opens the configured task journal.
func openJournal(ctx context.Context, cfg *config.Config) (journal.Store, error) {
	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	return journal.Open(ctx, cfg.Journal, cfg.JournalPath())
}

// newFetcher creates a result fetcher. The bucket client is opened on
// first use and only when credentials are configured.
func newFetcher(cfg *config.Config, svc service.Service) *feature.Fetcher {
	if cfg.GCSCredentials == "" {
		return feature.NewFetcher(svc, nil)
	}
	return feature.NewFetcher(svc, func(ctx context.Context) (blob.Store, error) {
		return blob.NewGCS(ctx, cfg.GCSCredentials)
	})
}

// stdinIsTerminal reports whether prompts can be answered interactively.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirmer returns a confirmation prompt honouring --yes. Without --yes
// and without a terminal to ask on, the answer is no.
func confirmer(cfg *config.Config, in io.Reader, errOut io.Writer, what string) func(n int) bool {
	return func(n int) bool {
		if cfg.AssumeYes {
			return true
		}
		if !stdinIsTerminal() {
			fmt.Fprintln(errOut, "error: confirmation required (use --yes)")
			return false
		}
		fmt.Fprintf(errOut, "Delete %d %s? [y/N] ", n, what)
		line, _ := bufio.NewReader(in).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

// workspace bundles the feature surfaces a command works with.
type workspace struct {
	store    journal.Store
	fetcher  *feature.Fetcher
	scraper  *feature.Scraper
	analyzer *feature.Analyzer
}

// newWorkspace opens the journal and builds the surfaces. When needJournal
// is false a journal that cannot be opened only costs a warning.
func newWorkspace(ctx context.Context, cfg *config.Config, svc service.Service, needJournal bool) (*workspace, error) {
	store, err := openJournal(ctx, cfg)
	if err != nil {
		if needJournal {
			return nil, err
		}
		cfg.Log().Warn("journal unavailable", "error", err)
		store = nil
	}
	w := &workspace{store: store, fetcher: newFetcher(cfg, svc)}
	w.scraper = feature.NewScraper(svc, store, w.fetcher, pollOptions(cfg), cfg.Log())
	w.analyzer = feature.NewAnalyzer(svc, store, pollOptions(cfg), cfg.Log())
	return w, nil
}

// Close releases the journal and any bucket client.
func (w *workspace) Close() {
	if w.store != nil {
		w.store.Close()
	}
	w.fetcher.Close()
}
