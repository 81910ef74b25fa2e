// Package app runs the foreground side: it keeps the routine queue filled
// from the store and the worker, while a presentation layer resolves the
// prompts.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/logger"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/notifier"
	"github.com/julianstephens/routined/internal/planner"
	"github.com/julianstephens/routined/internal/queue"
	"github.com/julianstephens/routined/internal/storage"
	"github.com/julianstephens/routined/internal/utils"
)

// Worker is the background scheduler as seen from the foreground.
type Worker interface {
	planner.Scheduler
	Events() <-chan notifier.StartRoutineEvent
}

type Options struct {
	UserID       string
	PollInterval time.Duration
	Now          func() time.Time
}

// Runner owns one queue for one foreground session.
type Runner struct {
	store   storage.Provider
	worker  Worker
	planner *planner.Planner
	queue   *queue.Queue

	userID string
	poll   time.Duration
	now    func() time.Time
}

// NewRunner wires a session. worker may be nil when no background scheduler
// is reachable; the queue then relies on polling alone.
func NewRunner(store storage.Provider, worker Worker, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Runner{
		store:  store,
		worker: worker,
		queue:  queue.New(store, queue.WithClock(opts.Now)),
		userID: opts.UserID,
		poll:   opts.PollInterval,
		now:    opts.Now,
	}
	if worker != nil {
		r.planner = planner.New(store, worker)
	}
	return r
}

// Queue exposes the session queue to the presentation layer.
func (r *Runner) Queue() *queue.Queue {
	return r.queue
}

func (r *Runner) location() *time.Location {
	settings, err := r.store.GetSettings()
	if err != nil {
		return time.Local
	}
	loc, err := utils.LoadLocation(settings.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Refresh plans today's notifications and loads every overdue and due
// prompt. Planning failures are logged; the queue is still filled.
func (r *Runner) Refresh(ctx context.Context) error {
	now := r.now().In(r.location())

	if r.planner != nil {
		if _, err := r.planner.Plan(ctx, r.userID, now); err != nil {
			logger.Warn("Planning notifications failed", "error", err)
		}
	}

	overdue, err := r.queue.LoadOverdueRoutines(r.userID, now)
	if err != nil {
		return fmt.Errorf("failed to load overdue routines: %w", err)
	}
	due, err := r.queue.LoadDueRoutines(r.userID, now)
	if err != nil {
		return fmt.Errorf("failed to load due routines: %w", err)
	}
	if overdue+due > 0 {
		logger.Info("Queued routine prompts", "overdue", overdue, "due", due)
	}
	return nil
}

// HandleStart queues a start prompt for the routine named by a
// START_ROUTINE event, creating today's execution if needed.
func (r *Runner) HandleStart(routineID string) error {
	routine, err := r.store.GetRoutine(routineID)
	if err != nil {
		return fmt.Errorf("failed to load routine %s: %w", routineID, err)
	}
	loc := r.location()
	date := utils.DateString(r.now().In(loc))
	exec, err := r.store.EnsureExecution(routine, date)
	if err != nil {
		return fmt.Errorf("failed to prepare routine %s for %s: %w", routineID, date, err)
	}
	if exec.Status != models.StatusPending {
		logger.Info("Routine already handled today", "routine", routineID, "status", exec.Status)
		return nil
	}
	item, err := queue.ItemFor(routine, exec, models.QueueStart, loc)
	if err != nil {
		return err
	}
	if r.queue.AddToQueue(item) {
		logger.Info("Queued routine start", "routine", routineID, "execution", exec.ID)
	}
	return nil
}

// Run refreshes immediately, then on every poll tick, and queues start
// events from the worker until ctx ends. The queue is cleared on return
// without touching execution state.
func (r *Runner) Run(ctx context.Context) error {
	defer r.queue.ClearQueue()

	if err := r.Refresh(ctx); err != nil {
		return err
	}

	var tick <-chan time.Time
	if r.poll > 0 {
		ticker := time.NewTicker(r.poll)
		defer ticker.Stop()
		tick = ticker.C
	}
	var events <-chan notifier.StartRoutineEvent
	if r.worker != nil {
		events = r.worker.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			if err := r.Refresh(ctx); err != nil {
				logger.Warn("Refresh failed", "error", err)
			}
		case ev, ok := <-events:
			if !ok {
				logger.Warn("Worker connection lost, continuing with polling only")
				events = nil
				continue
			}
			if err := r.HandleStart(ev.RoutineID); err != nil {
				if errors.Is(err, rerrors.ErrNotScheduled) || errors.Is(err, rerrors.ErrNotFound) {
					logger.Info("Ignoring start request", "routine", ev.RoutineID, "error", err)
					continue
				}
				logger.Warn("Start request failed", "routine", ev.RoutineID, "error", err)
			}
		}
	}
}
