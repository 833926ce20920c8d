package feature

import (
	"context"
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

// ErrNoJournal rejects analyzer history operations without a journal.
var ErrNoJournal = apperrors.Validation("the video history needs a journal (set RITA_JOURNAL)")

// Analyzer is the video analyzer surface.
type Analyzer struct {
	svc     service.Service
	store   journal.Store
	poller  *task.Poller
	surface task.Surface
	logger  *slog.Logger
}

// NewAnalyzer creates an analyzer surface. The analyzer history is kept in
// store; a nil store disables it.
func NewAnalyzer(svc service.Service, store journal.Store, opts task.Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.Discard()
	}
	a := &Analyzer{svc: svc, store: store, logger: logger}
	a.poller = task.NewPoller(a.status, opts, logger)
	return a
}

func (a *Analyzer) status(ctx context.Context, id service.TaskID) (service.Task, error) {
	st, err := a.svc.VideoStatus(ctx, id)
	if err != nil {
		return service.Task{}, err
	}
	t := service.Task{ID: id, Status: st.Status, Payload: st, Error: st.Error}
	if t.Status == service.StatusFailed && t.Error == "" {
		t.Error = render.AnalysisFailedMessage
	}
	return t, nil
}

// Submit validates and submits a video. The metadata comes back at once;
// the analysis continues on the backend.
func (a *Analyzer) Submit(ctx context.Context, in task.VideoInput) (service.Video, error) {
	url := strings.TrimSpace(in.URL)
	v, err := task.Submit(ctx, &a.surface, in, nil, func(ctx context.Context) (service.Video, error) {
		return a.svc.SubmitVideo(ctx, url)
	})
	if err != nil {
		return service.Video{}, err
	}

	if a.store != nil {
		now := time.Now().UTC()
		err := a.store.Put(ctx, journal.Entry{
			Feature: journal.FeatureVideo, ID: v.ID, URL: url, Status: service.StatusProcessing,
			Description: v.Description, Author: v.Author, SubmittedAt: now, UpdatedAt: now,
		})
		if err != nil {
			a.logger.Warn("failed to record video", "task_id", string(v.ID), "error", err)
		}
	}
	return v, nil
}

// Wait polls id to a terminal state.
func (a *Analyzer) Wait(ctx context.Context, id service.TaskID) (service.VideoStatus, error) {
	t, err := a.poller.Wait(ctx, id)
	st, _ := t.Payload.(service.VideoStatus)
	if st.Status != "" {
		a.update(ctx, id, st.Status)
	}
	return st, err
}

// Check queries id once and records the answer.
func (a *Analyzer) Check(ctx context.Context, id service.TaskID) (service.VideoStatus, error) {
	st, err := a.svc.VideoStatus(ctx, id)
	if err != nil {
		return service.VideoStatus{}, err
	}
	a.update(ctx, id, st.Status)
	return st, nil
}

// Track polls id in the background as the surface's only active session.
func (a *Analyzer) Track(ctx context.Context, id service.TaskID, onComplete func(service.VideoStatus), onFailure func(service.VideoStatus, error)) *task.Session {
	sess := a.poller.Start(ctx, id,
		func(t service.Task) {
			st, _ := t.Payload.(service.VideoStatus)
			a.update(context.WithoutCancel(ctx), id, st.Status)
			if onComplete != nil {
				onComplete(st)
			}
		},
		func(t service.Task, err error) {
			st, _ := t.Payload.(service.VideoStatus)
			if st.Status != "" {
				a.update(context.WithoutCancel(ctx), id, st.Status)
			}
			if onFailure != nil {
				onFailure(st, err)
			}
		})
	a.surface.Attach(sess)
	return sess
}

// Surface returns the analyzer's surface state.
func (a *Analyzer) Surface() *task.Surface { return &a.surface }

// History returns a manager over the journaled videos. Selected videos are
// deleted on the backend and then from the journal.
func (a *Analyzer) History() (*history.Manager[journal.Entry], error) {
	if a.store == nil {
		return nil, ErrNoJournal
	}
	return history.NewManager[journal.Entry](videoHistory{svc: a.svc, store: a.store, logger: a.logger},
		func(e journal.Entry) service.TaskID { return e.ID }), nil
}

func (a *Analyzer) update(ctx context.Context, id service.TaskID, status service.Status) {
	if a.store == nil {
		return
	}
	err := a.store.UpdateStatus(ctx, journal.FeatureVideo, id, status)
	if err != nil && !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		a.logger.Warn("failed to record video status", "task_id", string(id), "error", err)
	}
}

type videoHistory struct {
	svc    service.Service
	store  journal.Store
	logger *slog.Logger
}

func (h videoHistory) List(ctx context.Context) ([]journal.Entry, error) {
	return h.store.List(ctx, journal.FeatureVideo)
}

func (h videoHistory) Delete(ctx context.Context, ids []service.TaskID) (service.Ack, error) {
	ack, err := h.svc.DeleteVideos(ctx, ids)
	if err != nil {
		return service.Ack{}, err
	}
	if ack.OK() {
		if err := h.store.Delete(ctx, journal.FeatureVideo, ids); err != nil {
			h.logger.Warn("failed to drop deleted videos from journal", "error", err)
		}
	}
	return ack, nil
}
