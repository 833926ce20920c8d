package feature

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "rita/internal/errors"
	"rita/internal/history"
	"rita/internal/journal"
	"rita/internal/logging"
	"rita/internal/render"
	"rita/internal/service"
	"rita/internal/task"
)

// Scraper is the web scraper surface.
type Scraper struct {
	svc     service.Service
	store   journal.Store
	fetcher *Fetcher
	poller  *task.Poller
	surface task.Surface
	logger  *slog.Logger
}

// NewScraper creates a scraper surface. store may be nil to skip the
// local journal.
func NewScraper(svc service.Service, store journal.Store, fetcher *Fetcher, opts task.Options, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Scraper{svc: svc, store: store, fetcher: fetcher, logger: logger}
	s.poller = task.NewPoller(s.status, opts, logger)
	return s
}

func (s *Scraper) status(ctx context.Context, id service.TaskID) (service.Task, error) {
	st, err := s.svc.ScrapeStatus(ctx, id)
	if err != nil {
		return service.Task{}, err
	}
	return service.Task{ID: id, Status: st.Status, Payload: st, Error: st.ErrorMessage}, nil
}

// Submit validates and starts a scraping task. The model falls back to
// defaultModel when the input names none.
func (s *Scraper) Submit(ctx context.Context, in task.ScrapeInput, defaultModel string) (service.TaskID, error) {
	if strings.TrimSpace(in.Model) == "" {
		in.Model = defaultModel
	}
	id, err := task.Submit(ctx, &s.surface, in, nil, func(ctx context.Context) (service.TaskID, error) {
		return s.svc.StartScrape(ctx, service.ScrapeRequest{
			URL:    strings.TrimSpace(in.URL),
			Fields: in.Fields.Items(),
			Model:  in.Model,
		})
	})
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	s.record(ctx, journal.Entry{
		Feature: journal.FeatureScrape, ID: id, URL: strings.TrimSpace(in.URL),
		Status: service.StatusPending, SubmittedAt: now, UpdatedAt: now,
	})
	return id, nil
}

// Wait polls id to a terminal state. The returned status is filled in
// whenever the backend answered, including for FAILED tasks.
func (s *Scraper) Wait(ctx context.Context, id service.TaskID) (service.ScrapeStatus, error) {
	t, err := s.poller.Wait(ctx, id)
	st, _ := t.Payload.(service.ScrapeStatus)
	if st.Status != "" {
		s.update(ctx, id, st.Status)
	}
	return st, err
}

// Check queries id once and records the answer.
func (s *Scraper) Check(ctx context.Context, id service.TaskID) (service.ScrapeStatus, error) {
	st, err := s.svc.ScrapeStatus(ctx, id)
	if err != nil {
		return service.ScrapeStatus{}, err
	}
	s.update(ctx, id, st.Status)
	return st, nil
}

// Track polls id in the background and makes it the surface's only
// active session; any previous session is cancelled first.
func (s *Scraper) Track(ctx context.Context, id service.TaskID, onComplete func(service.ScrapeStatus), onFailure func(service.ScrapeStatus, error)) *task.Session {
	sess := s.poller.Start(ctx, id,
		func(t service.Task) {
			st, _ := t.Payload.(service.ScrapeStatus)
			s.update(context.WithoutCancel(ctx), id, st.Status)
			if onComplete != nil {
				onComplete(st)
			}
		},
		func(t service.Task, err error) {
			st, _ := t.Payload.(service.ScrapeStatus)
			if st.Status != "" {
				s.update(context.WithoutCancel(ctx), id, st.Status)
			}
			if onFailure != nil {
				onFailure(st, err)
			}
		})
	s.surface.Attach(sess)
	return sess
}

// Surface returns the scraper's surface state.
func (s *Scraper) Surface() *task.Surface { return &s.surface }

// Result fetches the document of a finished scrape and builds its table.
func (s *Scraper) Result(ctx context.Context, st service.ScrapeStatus) (render.Table, error) {
	if st.Status != service.StatusComplete {
		return render.Table{}, apperrors.Validation(fmt.Sprintf("task %s is %s, not COMPLETE", st.ID, st.Status))
	}
	if st.JSONURL == "" {
		return render.Table{}, apperrors.Application(fmt.Sprintf("task %s has no result document", st.ID))
	}
	data, err := s.fetcher.Fetch(ctx, st.JSONURL)
	if err != nil {
		return render.Table{}, err
	}
	table, err := render.TableFromJSON(data)
	if err != nil {
		return render.Table{}, apperrors.New(apperrors.ErrCodeApplication, "result is not valid JSON", err)
	}
	return table, nil
}

// Export downloads a finished scrape as json or csv.
func (s *Scraper) Export(ctx context.Context, id service.TaskID, format string) ([]byte, error) {
	return s.svc.Download(ctx, id, format)
}

// History returns a manager over the backend's scraper history. It can
// only be cleared as a whole.
func (s *Scraper) History() *history.Manager[service.ScrapeHistoryItem] {
	return history.NewManager[service.ScrapeHistoryItem](scrapeHistory{s.svc},
		func(it service.ScrapeHistoryItem) service.TaskID { return it.ID })
}

type scrapeHistory struct {
	svc service.Service
}

func (h scrapeHistory) List(ctx context.Context) ([]service.ScrapeHistoryItem, error) {
	return h.svc.ScrapeHistory(ctx)
}

func (h scrapeHistory) Clear(ctx context.Context) (service.Ack, error) {
	return h.svc.DeleteScrapeHistory(ctx)
}

func (s *Scraper) record(ctx context.Context, e journal.Entry) {
	if s.store == nil {
		return
	}
	if err := s.store.Put(ctx, e); err != nil {
		s.logger.Warn("failed to record task", "feature", e.Feature, "task_id", string(e.ID), "error", err)
	}
}

// update refreshes the status of a task this client submitted. Tasks
// missing from the journal are left out of it.
func (s *Scraper) update(ctx context.Context, id service.TaskID, status service.Status) {
	if s.store == nil {
		return
	}
	err := s.store.UpdateStatus(ctx, journal.FeatureScrape, id, status)
	if err != nil && !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		s.logger.Warn("failed to record task status", "feature", journal.FeatureScrape, "task_id", string(id), "error", err)
	}
}
