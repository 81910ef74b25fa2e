// Package planner turns today's routine occurrences into notification
// requests for the background scheduler.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/routined/internal/logger"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/utils"
)

// Store is the part of the routine store the planner reads.
type Store interface {
	GetSettings() (models.Settings, error)
	GetRoutines(userID string, includeInactive bool) ([]models.Routine, error)
	GetExecutionsForDate(userID, date string) ([]models.Execution, error)
	EnsureExecution(r models.Routine, date string) (models.Execution, error)
}

// Scheduler accepts notification requests. The worker client implements it
// over the socket.
type Scheduler interface {
	Schedule(ctx context.Context, req models.NotificationRequest) error
	Cancel(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]models.NotificationRequest, error)
}

// Result counts what one Plan call changed.
type Result struct {
	Scheduled int
	Canceled  int
	Skipped   int
}

type Planner struct {
	store     Store
	scheduler Scheduler
}

func New(store Store, scheduler Scheduler) *Planner {
	return &Planner{store: store, scheduler: scheduler}
}

// Plan ensures today's executions exist and keeps one start and one end
// request per open execution. Requests for resolved executions and for
// routines that are no longer active are canceled. Prompts whose time has
// already passed are left to the foreground queue.
func (p *Planner) Plan(ctx context.Context, userID string, now time.Time) (Result, error) {
	var res Result

	settings, err := p.store.GetSettings()
	if err != nil {
		return res, fmt.Errorf("failed to get settings: %w", err)
	}
	loc, err := utils.LoadLocation(settings.Timezone)
	if err != nil {
		return res, err
	}
	now = now.In(loc)
	date := utils.DateString(now)

	routines, err := p.store.GetRoutines(userID, false)
	if err != nil {
		return res, fmt.Errorf("failed to get routines: %w", err)
	}
	byID := make(map[string]models.Routine, len(routines))
	for _, r := range utils.OccurrencesOn(routines, now) {
		if _, err := p.store.EnsureExecution(r, date); err != nil {
			logger.Warn("Could not create execution", "routine", r.ID, "date", date, "error", err)
			continue
		}
		byID[r.ID] = r
	}

	execs, err := p.store.GetExecutionsForDate(userID, date)
	if err != nil {
		return res, fmt.Errorf("failed to get executions for %s: %w", date, err)
	}

	wanted := make(map[string]bool)
	// stale executions are closed or belong to routines no longer active today
	stale := make(map[string]bool)
	var errs []error
	for _, e := range execs {
		r, ok := byID[e.RoutineID]
		if !ok || e.Status.IsTerminal() {
			stale[e.ID] = true
		}
		if !ok {
			continue
		}
		for _, req := range Requests(r, e, settings, loc) {
			if !req.ScheduledTime.After(now) {
				res.Skipped++
				continue
			}
			wanted[req.ID] = true
			if err := p.scheduler.Schedule(ctx, req); err != nil {
				errs = append(errs, fmt.Errorf("schedule %s: %w", req.ID, err))
				continue
			}
			res.Scheduled++
		}
	}

	pending, err := p.scheduler.ListPending(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list pending: %w", err))
		return res, errors.Join(errs...)
	}
	for _, req := range pending {
		if req.ExecutionID == "" || wanted[req.ID] {
			continue
		}
		if !req.ScheduledTime.After(now) && !stale[req.ExecutionID] {
			// due now; the next sweep shows it
			continue
		}
		if err := p.scheduler.Cancel(ctx, req.ID); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", req.ID, err))
			continue
		}
		res.Canceled++
	}

	logger.Info("Planned notifications", "date", date, "scheduled", res.Scheduled, "canceled", res.Canceled, "skipped", res.Skipped)
	return res, errors.Join(errs...)
}

// Requests builds the start and end requests wanted for e under settings.
// Resolved executions want none; an execution already in progress only
// wants its end prompt.
func Requests(r models.Routine, e models.Execution, settings models.Settings, loc *time.Location) []models.NotificationRequest {
	if e.Status.IsTerminal() {
		return nil
	}
	var out []models.NotificationRequest

	if settings.NotifyStart && e.Status == models.StatusPending {
		if start, err := utils.ScheduledAt(e, loc); err == nil {
			out = append(out, models.NotificationRequest{
				ID:            models.RequestID(e.ID, models.NotificationTypeStart),
				Title:         r.Title,
				Body:          startMessage(r.Title, e.ScheduledTime, settings.StartOffsetMin),
				ScheduledTime: start.Add(-time.Duration(settings.StartOffsetMin) * time.Minute),
				RoutineID:     r.ID,
				ExecutionID:   e.ID,
				Type:          models.NotificationTypeStart,
			})
		}
	}

	if settings.NotifyEnd && e.EndTime != "" {
		if end, err := utils.EffectiveEndAt(e, loc); err == nil {
			out = append(out, models.NotificationRequest{
				ID:            models.RequestID(e.ID, models.NotificationTypeEnd),
				Title:         r.Title,
				Body:          endMessage(r.Title, e.EndTime, settings.EndOffsetMin),
				ScheduledTime: end.Add(-time.Duration(settings.EndOffsetMin) * time.Minute),
				RoutineID:     r.ID,
				ExecutionID:   e.ID,
				Type:          models.NotificationTypeEnd,
			})
		}
	}
	return out
}

func startMessage(title, at string, offset int) string {
	if offset == 0 {
		return fmt.Sprintf("Starting now: %s (%s)", title, at)
	}
	return fmt.Sprintf("Upcoming: %s starts in %d min (%s)", title, offset, at)
}

func endMessage(title, at string, offset int) string {
	if offset == 0 {
		return fmt.Sprintf("Ending now: %s (%s)", title, at)
	}
	return fmt.Sprintf("Ending soon: %s ends in %d min (%s)", title, offset, at)
}
