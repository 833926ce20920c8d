package feature

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"rita/internal/journal"
	"rita/internal/logging"
	"rita/internal/service"
)

// Target is one task to follow.
type Target struct {
	Feature journal.Feature
	ID      service.TaskID
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.Feature, t.ID)
}

// Outcome is where a followed task ended up.
type Outcome struct {
	Target
	Status service.Status
	Err    error
}

// Watcher follows many tasks at once on a bounded worker pool.
type Watcher struct {
	scraper  *Scraper
	analyzer *Analyzer
	workers  int
	logger   *slog.Logger
}

// NewWatcher creates a watcher running at most workers polls at a time.
func NewWatcher(scraper *Scraper, analyzer *Analyzer, workers int, logger *slog.Logger) *Watcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{scraper: scraper, analyzer: analyzer, workers: workers, logger: logger}
}

// Run polls every target to a terminal state. report is called once per
// target, never concurrently, in completion order.
func (w *Watcher) Run(ctx context.Context, targets []Target, report func(Outcome)) error {
	pool, err := ants.NewPool(w.workers, ants.WithOptions(ants.Options{
		Nonblocking: false,
		PanicHandler: func(p any) {
			w.logger.Error("watch worker panicked", "panic", p)
		},
	}))
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, t := range targets {
		t := t // per-iteration copy; go.mod targets go 1.21 loop semantics
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			o := w.follow(ctx, t)
			mu.Lock()
			defer mu.Unlock()
			report(o)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Watcher) follow(ctx context.Context, t Target) Outcome {
	o := Outcome{Target: t}
	switch t.Feature {
	case journal.FeatureScrape:
		st, err := w.scraper.Wait(ctx, t.ID)
		o.Status, o.Err = st.Status, err
	case journal.FeatureVideo:
		st, err := w.analyzer.Wait(ctx, t.ID)
		o.Status, o.Err = st.Status, err
	default:
		o.Err = fmt.Errorf("unknown feature %q", t.Feature)
	}
	w.logger.Debug("watch finished", "target", t.String(), "status", string(o.Status), "error", o.Err)
	return o
}
