package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "rita/internal/errors"
	"rita/internal/logging"
	"rita/internal/service"
)

// DefaultInterval is the period between status queries.
const DefaultInterval = 5 * time.Second

// StatusFunc queries the current state of a task.
type StatusFunc func(ctx context.Context, id service.TaskID) (service.Task, error)

// Options tunes a Poller. Zero values keep the dashboard's behaviour:
// a 5s interval, first query after one interval, no attempt or time ceiling.
type Options struct {
	Interval    time.Duration
	Immediate   bool
	MaxAttempts int
	Timeout     time.Duration
}

// Poller follows task ids to a terminal state.
type Poller struct {
	status StatusFunc
	opts   Options
	logger *slog.Logger
}

// NewPoller creates a poller. A nil logger discards.
func NewPoller(status StatusFunc, opts Options, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Poller{status: status, opts: opts, logger: logger}
}

// Wait polls id until it completes, fails, or ctx ends.
//
// A COMPLETE task is returned with a nil error. A FAILED task is returned
// together with an APPLICATION_ERROR carrying the backend's message. A
// failed query ends polling at once with no retry; transport failures are
// reported as "cannot reach server".
func (p *Poller) Wait(ctx context.Context, id service.TaskID) (service.Task, error) {
	return p.run(ctx, uuid.NewString(), id)
}

func (p *Poller) run(ctx context.Context, sessionID string, id service.TaskID) (service.Task, error) {
	log := p.logger.With("session", sessionID, "task_id", string(id))

	// A time.Ticker drops ticks while the loop is busy, so a query that
	// outlasts the interval never overlaps with the next one.
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if p.opts.Timeout > 0 {
		timer := time.NewTimer(p.opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	timedOut := func(attempts int) error {
		log.Warn("poll timed out", "attempts", attempts)
		return apperrors.New(apperrors.ErrCodeTimeout,
			fmt.Sprintf("task %s did not finish within %s", id, p.opts.Timeout), nil)
	}

	for attempt := 1; ; attempt++ {
		if attempt > 1 || !p.opts.Immediate {
			select {
			case <-ctx.Done():
				return service.Task{}, ctx.Err()
			case <-deadline:
				return service.Task{}, timedOut(attempt - 1)
			case <-ticker.C:
			}
		}
		// select picks at random when the tick and the deadline are both
		// ready; the deadline wins.
		select {
		case <-deadline:
			return service.Task{}, timedOut(attempt - 1)
		default:
		}

		log.Debug("polling", "attempt", attempt)
		t, err := p.status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return service.Task{}, ctx.Err()
			}
			log.Debug("status query failed", "attempt", attempt, "error", err)
			return service.Task{}, queryFailure(err)
		}

		switch t.Status {
		case service.StatusComplete:
			log.Debug("task complete", "attempt", attempt)
			return t, nil
		case service.StatusFailed:
			msg := t.Error
			if msg == "" {
				msg = "task failed"
			}
			log.Debug("task failed", "attempt", attempt, "reason", msg)
			return t, apperrors.Application(msg)
		}

		if p.opts.MaxAttempts > 0 && attempt >= p.opts.MaxAttempts {
			log.Warn("poll attempts exhausted", "attempts", attempt)
			return t, apperrors.New(apperrors.ErrCodeTimeout,
				fmt.Sprintf("task %s still %s after %d attempts", id, t.Status, attempt), nil)
		}
	}
}

// queryFailure keeps application errors as they are and reduces anything
// else to a connectivity failure.
func queryFailure(err error) error {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeApplication, apperrors.ErrCodeNotFound, apperrors.ErrCodeUnauthorized:
		return err
	}
	return apperrors.New(apperrors.ErrCodeTransport, "cannot reach server", err)
}

// Session is one in-flight polling loop for one task id.
type Session struct {
	ID     string
	TaskID service.TaskID

	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
	settled   bool
}

// Start polls id in the background. Exactly one of onComplete or onFailure
// runs when the task reaches a terminal state or polling fails. Neither
// runs once the session has been cancelled, even if a response was
// already in flight.
func (p *Poller) Start(ctx context.Context, id service.TaskID, onComplete func(service.Task), onFailure func(service.Task, error)) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:     uuid.NewString(),
		TaskID: id,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer cancel()

		t, err := p.run(ctx, s.ID, id)
		if errors.Is(err, context.Canceled) {
			return
		}
		if !s.settle() {
			p.logger.Debug("discarding late result", "session", s.ID, "task_id", string(id))
			return
		}
		if err != nil {
			if onFailure != nil {
				onFailure(t, err)
			}
			return
		}
		if onComplete != nil {
			onComplete(t)
		}
	}()

	return s
}

// settle marks the session finished unless it was cancelled first.
func (s *Session) settle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.settled {
		return false
	}
	s.settled = true
	return true
}

// Cancel stops future ticks and suppresses any pending callback.
// Cancelling a settled session has no effect.
func (s *Session) Cancel() {
	s.mu.Lock()
	if !s.settled {
		s.cancelled = true
	}
	s.mu.Unlock()
	s.cancel()
}

// Active reports whether the session is still polling.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.cancelled && !s.settled
}

// Done is closed when the polling goroutine has exited and any callback
// has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
