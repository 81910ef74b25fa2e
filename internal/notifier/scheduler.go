package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/julianstephens/routined/internal/constants"
	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/logger"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/validation"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithAlarms arms a one-shot timer per request so it fires on time instead of
// waiting for the next periodic sweep.
func WithAlarms(enabled bool) Option {
	return func(s *Scheduler) { s.alarms = enabled }
}

// WithSweepInterval sets the period of the check-routines wake.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// Scheduler owns persisted notification requests and turns them into
// notifications once they are due. It runs in the worker process, apart from
// any foreground app, and never changes execution state.
type Scheduler struct {
	store      RequestStore
	presenter  Presenter
	dispatcher Dispatcher
	opener     Opener

	now      func() time.Time
	alarms   bool
	interval time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	baseCtx context.Context
	cron    *cron.Cron

	sweepMu sync.Mutex
}

// New builds a scheduler. A nil dispatcher reaches nobody and a nil opener
// only logs.
func New(store RequestStore, presenter Presenter, dispatcher Dispatcher, opener Opener, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      store,
		presenter:  presenter,
		dispatcher: dispatcher,
		opener:     opener,
		now:        time.Now,
		interval:   constants.DefaultSweepInterval,
		timers:     make(map[string]*time.Timer),
		baseCtx:    context.Background(),
	}
	if s.dispatcher == nil {
		s.dispatcher = NopDispatcher{}
	}
	if s.opener == nil {
		s.opener = LogOpener{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs an opportunistic sweep, re-arms alarms for persisted requests
// and begins the periodic check-routines wake.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return nil
	}
	s.baseCtx = ctx
	c := cron.New()
	s.cron = c
	s.mu.Unlock()

	if _, err := s.Wake(ctx, Wake{Trigger: constants.TriggerActivate}); err != nil {
		logger.Warn("Startup sweep failed", "error", err)
	}
	if s.alarms {
		pending, err := s.store.List(ctx)
		if !rerrors.Soft("list pending requests", err) {
			for _, req := range pending {
				s.arm(req)
			}
		}
	}

	every := "@every " + s.interval.String()
	_, err := c.AddFunc(every, func() {
		if _, err := s.Wake(ctx, Wake{Trigger: constants.TriggerPeriodicSync, Tag: constants.TagCheckRoutines}); err != nil {
			logger.Warn("Periodic sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule periodic sweep %q: %w", every, err)
	}
	c.Start()
	logger.Info("Scheduler started", "interval", s.interval, "alarms", s.alarms)
	return nil
}

// Stop halts the periodic wake and disarms every alarm.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Schedule persists req, replacing any request with the same ID, and arms its
// alarm. Persistence failures are logged, not returned.
func (s *Scheduler) Schedule(ctx context.Context, req models.NotificationRequest) error {
	if err := validation.Struct(req); err != nil {
		return fmt.Errorf("invalid notification request: %w", err)
	}
	rerrors.Soft("persist notification request", s.store.Put(ctx, req), "id", req.ID)
	NotificationsScheduled.Inc()
	if s.alarms {
		s.arm(req)
	}
	logger.Debug("Notification scheduled", "id", req.ID, "at", req.ScheduledTime)
	return nil
}

// Cancel drops the request and its alarm. Unknown IDs are fine.
func (s *Scheduler) Cancel(ctx context.Context, id string) {
	rerrors.Soft("delete notification request", s.store.Delete(ctx, id), "id", id)
	s.disarm(id)
	NotificationsCanceled.Inc()
	logger.Debug("Notification canceled", "id", id)
}

// ListPending returns every persisted request, soonest first.
func (s *Scheduler) ListPending(ctx context.Context) ([]models.NotificationRequest, error) {
	return s.store.List(ctx)
}

// Sweep shows every request due at now and deletes the ones shown. A request
// whose presentation fails stays for the next sweep. Returns how many were
// shown.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (int, error) {
	return s.sweep(ctx, now, "manual")
}

func (s *Scheduler) sweep(ctx context.Context, now time.Time, trigger string) (int, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	SweepsTotal.WithLabelValues(trigger).Inc()
	pending, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing notification requests: %w", err)
	}

	shown, remaining := 0, 0
	for _, req := range pending {
		if !req.IsDue(now) {
			remaining++
			continue
		}
		if err := s.presenter.Present(ctx, NotificationFor(req)); err != nil {
			NotificationsFailed.WithLabelValues("sweep").Inc()
			logger.Warn("Notification not shown, keeping request", "id", req.ID, "error", err)
			remaining++
			continue
		}
		NotificationsShown.WithLabelValues("sweep").Inc()
		shown++
		rerrors.Soft("delete shown request", s.store.Delete(ctx, req.ID), "id", req.ID)
		s.disarm(req.ID)
	}
	PendingRequests.Set(float64(remaining))
	if shown > 0 {
		logger.Info("Sweep presented notifications", "shown", shown, "remaining", remaining, "trigger", trigger)
	}
	return shown, nil
}

// ShowImmediate presents n now without touching the store.
func (s *Scheduler) ShowImmediate(ctx context.Context, n models.Notification) error {
	if err := validation.Struct(n); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}
	if err := s.presenter.Present(ctx, n); err != nil {
		NotificationsFailed.WithLabelValues("immediate").Inc()
		return err
	}
	NotificationsShown.WithLabelValues("immediate").Inc()
	return nil
}

// NotificationFor builds what the user sees for req.
func NotificationFor(req models.NotificationRequest) models.Notification {
	return models.Notification{
		Title: req.Title,
		Body:  req.Body,
		Tag:   req.Tag(),
		Actions: []models.NotificationAction{
			{Action: constants.ActionStart, Title: "Start"},
			{Action: constants.ActionDismiss, Title: "Dismiss"},
		},
		Data: map[string]string{
			models.DataRoutineID:   req.RoutineID,
			models.DataExecutionID: req.ExecutionID,
			models.DataType:        req.Type,
		},
	}
}

// Click is a user interaction with a shown notification. An empty Action is a
// click on the notification body.
type Click struct {
	Action string            `json:"action"`
	Data   map[string]string `json:"data,omitempty"`
}

// HandleClick routes a notification interaction. "start" with a routine ID
// asks connected foregrounds to begin the routine and falls back to opening
// /routines?start=<id> when none is listening. Other clicks open /routines;
// "dismiss" does nothing.
func (s *Scheduler) HandleClick(ctx context.Context, click Click) error {
	if click.Action == constants.ActionDismiss {
		return nil
	}
	routineID := strings.TrimSpace(click.Data[models.DataRoutineID])
	if click.Action != constants.ActionStart || routineID == "" {
		return s.opener.Open(ctx, RoutinesURL(""))
	}

	target := RoutinesURL(routineID)
	env, err := NewEnvelope(MsgStartRoutine, "", StartRoutineEvent{RoutineID: routineID, URL: target})
	if err != nil {
		return err
	}
	delivered, err := s.dispatcher.Dispatch(ctx, env)
	if err != nil {
		logger.Warn("Dispatch to foreground failed", "routine", routineID, "error", err)
	}
	if delivered > 0 {
		logger.Debug("Start routine dispatched", "routine", routineID, "clients", delivered)
		return nil
	}
	return s.opener.Open(ctx, target)
}

type pushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Tag   string            `json:"tag"`
	Data  map[string]string `json:"data"`
}

// HandlePush shows a server push. JSON payloads supply title/body/tag/data;
// anything else becomes the body under the default title. A push is never
// dropped.
func (s *Scheduler) HandlePush(ctx context.Context, payload []byte) error {
	n := models.Notification{Title: constants.DefaultPushTitle, Body: constants.DefaultPushBody}

	var p pushPayload
	if err := json.Unmarshal(payload, &p); err == nil {
		if p.Title != "" {
			n.Title = p.Title
		}
		if p.Body != "" {
			n.Body = p.Body
		}
		n.Tag = p.Tag
		n.Data = p.Data
	} else if text := strings.TrimSpace(string(payload)); text != "" {
		logger.Debug("Push payload is not JSON, using it as body", "error", err)
		n.Body = text
	}
	if n.Data[models.DataRoutineID] != "" {
		n.Actions = []models.NotificationAction{
			{Action: constants.ActionStart, Title: "Start"},
			{Action: constants.ActionDismiss, Title: "Dismiss"},
		}
	}

	if err := s.presenter.Present(ctx, n); err != nil {
		NotificationsFailed.WithLabelValues("push").Inc()
		return err
	}
	NotificationsShown.WithLabelValues("push").Inc()
	return nil
}

// HandleMessage executes one protocol message. GET_SCHEDULED replies with a
// ScheduledList; the others reply with nil.
func (s *Scheduler) HandleMessage(ctx context.Context, msg Message) (interface{}, error) {
	switch m := msg.(type) {
	case ScheduleNotification:
		return nil, s.Schedule(ctx, m.Request)
	case CancelNotification:
		s.Cancel(ctx, m.ID)
		return nil, nil
	case GetScheduled:
		pending, err := s.ListPending(ctx)
		if err != nil {
			return nil, err
		}
		if pending == nil {
			pending = []models.NotificationRequest{}
		}
		return ScheduledList{Notifications: pending}, nil
	case ShowImmediate:
		return nil, s.ShowImmediate(ctx, m.Notification)
	default:
		return nil, fmt.Errorf("%w: %T", rerrors.ErrUnknownMessage, msg)
	}
}

// HandleEnvelope decodes env, runs it and frames the reply under env's ID.
func (s *Scheduler) HandleEnvelope(ctx context.Context, env Envelope) Envelope {
	reply, err := s.handleEnvelope(ctx, env)
	if err != nil {
		logger.Warn("Message failed", "type", env.Type, "id", env.ID, "error", err)
		out, _ := NewEnvelope(MsgError, env.ID, ErrorPayload{Message: err.Error()})
		return out
	}
	return reply
}

func (s *Scheduler) handleEnvelope(ctx context.Context, env Envelope) (Envelope, error) {
	msg, err := DecodeMessage(env)
	if err != nil {
		return Envelope{}, err
	}
	payload, err := s.HandleMessage(ctx, msg)
	if err != nil {
		return Envelope{}, err
	}
	if list, ok := payload.(ScheduledList); ok {
		return NewEnvelope(MsgScheduled, env.ID, list)
	}
	return NewEnvelope(MsgAck, env.ID, nil)
}

// Wake is one background trigger delivery.
type Wake struct {
	Trigger constants.Trigger
	// Tag names periodic-sync and sync registrations.
	Tag string
	// Payload carries the push body, the message envelope or the click.
	Payload []byte
}

// Wake processes one trigger to completion. Message wakes return the reply
// envelope.
func (s *Scheduler) Wake(ctx context.Context, w Wake) (interface{}, error) {
	switch w.Trigger {
	case constants.TriggerInstall, constants.TriggerActivate:
		_, err := s.sweep(ctx, s.now(), string(w.Trigger))
		return nil, err
	case constants.TriggerPeriodicSync:
		if w.Tag != constants.TagCheckRoutines {
			logger.Debug("Ignoring periodic sync", "tag", w.Tag)
			return nil, nil
		}
		_, err := s.sweep(ctx, s.now(), string(w.Trigger))
		return nil, err
	case constants.TriggerSync:
		if w.Tag == constants.TagSyncRoutines {
			logger.Debug("Routine sync requested; nothing to sync")
		}
		return nil, nil
	case constants.TriggerPush:
		return nil, s.HandlePush(ctx, w.Payload)
	case constants.TriggerMessage:
		env, err := UnmarshalEnvelope(w.Payload)
		if err != nil {
			return nil, fmt.Errorf("invalid message: %w", err)
		}
		return s.HandleEnvelope(ctx, env), nil
	case constants.TriggerNotificationClick:
		var click Click
		if err := json.Unmarshal(w.Payload, &click); err != nil {
			return nil, fmt.Errorf("invalid click payload: %w", err)
		}
		return nil, s.HandleClick(ctx, click)
	default:
		return nil, fmt.Errorf("unknown trigger %q", w.Trigger)
	}
}

// arm (re)sets the one-shot alarm for req.
func (s *Scheduler) arm(req models.NotificationRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(req)
}

// armLocked must run with s.mu held. A superseded timer that already fired
// leaves its replacement in the map.
func (s *Scheduler) armLocked(req models.NotificationRequest) {
	delay := req.ScheduledTime.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	if t, ok := s.timers[req.ID]; ok {
		t.Stop()
	}

	id := req.ID
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.timers[id] == timer {
			delete(s.timers, id)
		}
		ctx := s.baseCtx
		s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if _, err := s.sweep(ctx, s.now(), "alarm"); err != nil {
			logger.Warn("Alarm sweep failed", "id", id, "error", err)
		}
	})
	s.timers[id] = timer
}

func (s *Scheduler) disarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// ArmedAlarms reports how many alarms are waiting.
func (s *Scheduler) ArmedAlarms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
