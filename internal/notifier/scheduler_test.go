package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/julianstephens/routined/internal/constants"
	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/models"
)

func newTestScheduler(t *testing.T, store RequestStore, opts ...Option) (*Scheduler, *recordingPresenter, *fakeDispatcher, *fakeOpener) {
	t.Helper()
	p := &recordingPresenter{}
	d := &fakeDispatcher{}
	o := &fakeOpener{}
	opts = append([]Option{WithClock(func() time.Time { return baseTime })}, opts...)
	return New(store, p, d, o, opts...), p, d, o
}

func TestScheduleIsIdempotentPerID(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestScheduler(t, newMemoryStore(t))

	if err := s.Schedule(ctx, testRequest("e1:start", baseTime.Add(time.Hour))); err != nil {
		t.Fatalf("Schedule() failed: %v", err)
	}
	later := testRequest("e1:start", baseTime.Add(2*time.Hour))
	later.Body = "updated"
	if err := s.Schedule(ctx, later); err != nil {
		t.Fatalf("Schedule() failed: %v", err)
	}

	pending, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListPending() = %d requests, want 1", len(pending))
	}
	if pending[0].Body != "updated" || !pending[0].ScheduledTime.Equal(later.ScheduledTime) {
		t.Errorf("second Schedule() did not overwrite: %+v", pending[0])
	}
}

func TestScheduleRejectsInvalidRequest(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, newMemoryStore(t))
	if err := s.Schedule(context.Background(), models.NotificationRequest{ID: "x"}); err == nil {
		t.Error("Schedule() should reject a request without title and time")
	}
}

func TestScheduleSwallowsPersistenceErrors(t *testing.T) {
	store := &flakyStore{RequestStore: newMemoryStore(t), failPut: true}
	s, _, _, _ := newTestScheduler(t, store, WithAlarms(true))
	defer s.Stop()

	if err := s.Schedule(context.Background(), testRequest("e1:start", baseTime.Add(time.Hour))); err != nil {
		t.Errorf("Schedule() error = %v, want nil", err)
	}
	if s.ArmedAlarms() != 1 {
		t.Errorf("alarm should still be armed, got %d", s.ArmedAlarms())
	}
}

func TestSweepFiresOnce(t *testing.T) {
	ctx := context.Background()
	s, p, _, _ := newTestScheduler(t, newMemoryStore(t))

	_ = s.Schedule(ctx, testRequest("e1:start", baseTime.Add(-time.Minute)))
	_ = s.Schedule(ctx, testRequest("e1:end", baseTime))
	_ = s.Schedule(ctx, testRequest("e2:start", baseTime.Add(time.Minute)))

	shown, err := s.Sweep(ctx, baseTime)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if shown != 2 {
		t.Errorf("Sweep() shown = %d, want 2", shown)
	}

	shown, _ = s.Sweep(ctx, baseTime)
	if shown != 0 {
		t.Errorf("second Sweep() shown = %d, want 0", shown)
	}
	if p.count() != 2 {
		t.Errorf("presenter saw %d notifications, want 2", p.count())
	}

	pending, _ := s.ListPending(ctx)
	if len(pending) != 1 || pending[0].ID != "e2:start" {
		t.Errorf("only the future request should remain, got %+v", pending)
	}
}

func TestSweepKeepsRequestWhenPresentationFails(t *testing.T) {
	ctx := context.Background()
	s, p, _, _ := newTestScheduler(t, newMemoryStore(t))
	_ = s.Schedule(ctx, testRequest("e1:start", baseTime))

	p.setFail(errors.New("permission denied"))
	shown, err := s.Sweep(ctx, baseTime)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if shown != 0 {
		t.Errorf("Sweep() shown = %d, want 0", shown)
	}
	if pending, _ := s.ListPending(ctx); len(pending) != 1 {
		t.Fatalf("request should be retained, got %d", len(pending))
	}

	p.setFail(nil)
	if shown, _ := s.Sweep(ctx, baseTime); shown != 1 {
		t.Errorf("retry Sweep() shown = %d, want 1", shown)
	}
}

func TestSweepShowsEvenWhenDeleteFails(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{RequestStore: newMemoryStore(t)}
	s, p, _, _ := newTestScheduler(t, store)
	_ = s.Schedule(ctx, testRequest("e1:start", baseTime))

	store.failDelete = true
	shown, err := s.Sweep(ctx, baseTime)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if shown != 1 || p.count() != 1 {
		t.Errorf("notification should be shown despite delete failure: shown=%d presented=%d", shown, p.count())
	}
}

func TestNotificationFor(t *testing.T) {
	n := NotificationFor(testRequest("e1:start", baseTime))
	if n.Tag != "r1-e1-start" {
		t.Errorf("Tag = %q, want r1-e1-start", n.Tag)
	}
	if len(n.Actions) != 2 || n.Actions[0].Action != constants.ActionStart || n.Actions[1].Action != constants.ActionDismiss {
		t.Errorf("Actions = %+v", n.Actions)
	}
	if n.Data[models.DataRoutineID] != "r1" || n.Data[models.DataExecutionID] != "e1" || n.Data[models.DataType] != "start" {
		t.Errorf("Data = %+v", n.Data)
	}

	bare := NotificationFor(models.NotificationRequest{ID: "adhoc", Title: "x", ScheduledTime: baseTime})
	if bare.Tag != "adhoc" {
		t.Errorf("Tag without ids = %q, want request id", bare.Tag)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	s, p, _, _ := newTestScheduler(t, newMemoryStore(t), WithAlarms(true))
	defer s.Stop()

	_ = s.Schedule(ctx, testRequest("e1:start", baseTime.Add(time.Hour)))
	s.Cancel(ctx, "e1:start")
	s.Cancel(ctx, "never-scheduled")

	if pending, _ := s.ListPending(ctx); len(pending) != 0 {
		t.Errorf("ListPending() after cancel = %d", len(pending))
	}
	if s.ArmedAlarms() != 0 {
		t.Errorf("ArmedAlarms() = %d, want 0", s.ArmedAlarms())
	}
	if shown, _ := s.Sweep(ctx, baseTime.Add(2*time.Hour)); shown != 0 || p.count() != 0 {
		t.Error("canceled request must never be shown")
	}
}

func TestRearmWhileFiringKeepsNewAlarm(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, newMemoryStore(t), WithAlarms(true))
	defer s.Stop()

	// The first alarm fires at once and waits on the lock while the request
	// is re-armed for later.
	s.mu.Lock()
	s.armLocked(testRequest("e1:start", baseTime.Add(-time.Minute)))
	time.Sleep(50 * time.Millisecond)
	s.armLocked(testRequest("e1:start", baseTime.Add(time.Hour)))
	s.mu.Unlock()

	time.Sleep(100 * time.Millisecond)
	if got := s.ArmedAlarms(); got != 1 {
		t.Fatalf("ArmedAlarms() = %d, want the re-armed alarm kept", got)
	}
	s.Cancel(context.Background(), "e1:start")
	if got := s.ArmedAlarms(); got != 0 {
		t.Errorf("ArmedAlarms() after cancel = %d, want 0", got)
	}
}

func TestAlarmFiresSweep(t *testing.T) {
	ctx := context.Background()
	p := &recordingPresenter{}
	s := New(newMemoryStore(t), p, nil, nil, WithAlarms(true))
	defer s.Stop()

	_ = s.Schedule(ctx, testRequest("e1:start", time.Now().Add(20*time.Millisecond)))

	deadline := time.Now().Add(2 * time.Second)
	for p.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if p.count() != 1 {
		t.Fatalf("alarm did not present the notification")
	}
	if pending, _ := s.ListPending(ctx); len(pending) != 0 {
		t.Errorf("fired request should be deleted, %d remain", len(pending))
	}
}

func TestHandleClick(t *testing.T) {
	tests := []struct {
		name       string
		clients    int
		click      Click
		wantSent   int
		wantOpened []string
	}{
		{
			name:     "start with foreground connected",
			clients:  1,
			click:    Click{Action: constants.ActionStart, Data: map[string]string{models.DataRoutineID: "r1"}},
			wantSent: 1,
		},
		{
			name:       "start without foreground opens the routine",
			click:      Click{Action: constants.ActionStart, Data: map[string]string{models.DataRoutineID: "r1"}},
			wantOpened: []string{"/routines?start=r1"},
		},
		{
			name:       "start without routine id",
			clients:    1,
			click:      Click{Action: constants.ActionStart},
			wantOpened: []string{"/routines"},
		},
		{
			name:       "body click",
			click:      Click{Data: map[string]string{models.DataRoutineID: "r1"}},
			wantOpened: []string{"/routines"},
		},
		{
			name:    "dismiss",
			clients: 1,
			click:   Click{Action: constants.ActionDismiss, Data: map[string]string{models.DataRoutineID: "r1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, d, o := newTestScheduler(t, newMemoryStore(t))
			d.clients = tt.clients

			if err := s.HandleClick(context.Background(), tt.click); err != nil {
				t.Fatalf("HandleClick() failed: %v", err)
			}
			if len(d.sent) != tt.wantSent {
				t.Errorf("dispatched %d events, want %d", len(d.sent), tt.wantSent)
			}
			if len(o.opened) != len(tt.wantOpened) {
				t.Fatalf("opened %v, want %v", o.opened, tt.wantOpened)
			}
			for i := range tt.wantOpened {
				if o.opened[i] != tt.wantOpened[i] {
					t.Errorf("opened[%d] = %q, want %q", i, o.opened[i], tt.wantOpened[i])
				}
			}
			if tt.wantSent > 0 {
				env := d.sent[0]
				if env.Type != MsgStartRoutine {
					t.Errorf("event type = %q, want %q", env.Type, MsgStartRoutine)
				}
				var ev StartRoutineEvent
				if err := json.Unmarshal(env.Payload, &ev); err != nil {
					t.Fatalf("decode event: %v", err)
				}
				if ev.RoutineID != "r1" || ev.URL != "/routines?start=r1" {
					t.Errorf("event = %+v", ev)
				}
			}
		})
	}
}

func TestHandlePush(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantTitle string
		wantBody  string
	}{
		{name: "json", payload: `{"title":"Gym","body":"Go now","tag":"t1"}`, wantTitle: "Gym", wantBody: "Go now"},
		{name: "json missing fields", payload: `{"tag":"t1"}`, wantTitle: constants.DefaultPushTitle, wantBody: constants.DefaultPushBody},
		{name: "plain text", payload: "Drink water", wantTitle: constants.DefaultPushTitle, wantBody: "Drink water"},
		{name: "broken json", payload: `{"title":`, wantTitle: constants.DefaultPushTitle, wantBody: `{"title":`},
		{name: "empty", payload: "", wantTitle: constants.DefaultPushTitle, wantBody: constants.DefaultPushBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p, _, _ := newTestScheduler(t, newMemoryStore(t))
			if err := s.HandlePush(context.Background(), []byte(tt.payload)); err != nil {
				t.Fatalf("HandlePush() failed: %v", err)
			}
			if p.count() != 1 {
				t.Fatalf("push must always be shown, got %d", p.count())
			}
			got := p.shown[0]
			if got.Title != tt.wantTitle || got.Body != tt.wantBody {
				t.Errorf("shown %q / %q, want %q / %q", got.Title, got.Body, tt.wantTitle, tt.wantBody)
			}
		})
	}
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()
	s, p, _, _ := newTestScheduler(t, newMemoryStore(t))

	if _, err := s.HandleMessage(ctx, ScheduleNotification{Request: testRequest("e1:start", baseTime.Add(time.Hour))}); err != nil {
		t.Fatalf("SCHEDULE_NOTIFICATION failed: %v", err)
	}
	reply, err := s.HandleMessage(ctx, GetScheduled{})
	if err != nil {
		t.Fatalf("GET_SCHEDULED failed: %v", err)
	}
	list, ok := reply.(ScheduledList)
	if !ok || len(list.Notifications) != 1 {
		t.Fatalf("GET_SCHEDULED reply = %#v", reply)
	}
	if _, err := s.HandleMessage(ctx, CancelNotification{ID: "e1:start"}); err != nil {
		t.Fatalf("CANCEL_NOTIFICATION failed: %v", err)
	}
	reply, _ = s.HandleMessage(ctx, GetScheduled{})
	if list := reply.(ScheduledList); len(list.Notifications) != 0 {
		t.Errorf("request should be canceled, got %d", len(list.Notifications))
	}
	if _, err := s.HandleMessage(ctx, ShowImmediate{Notification: models.Notification{Title: "Now"}}); err != nil {
		t.Fatalf("SHOW_IMMEDIATE failed: %v", err)
	}
	if p.count() != 1 {
		t.Errorf("SHOW_IMMEDIATE presented %d, want 1", p.count())
	}
}

func TestWakeMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestScheduler(t, newMemoryStore(t))

	env, err := EncodeMessage(ScheduleNotification{Request: testRequest("e1:start", baseTime.Add(time.Hour))}, "req-1")
	if err != nil {
		t.Fatalf("EncodeMessage() failed: %v", err)
	}
	data, _ := env.Marshal()
	out, err := s.Wake(ctx, Wake{Trigger: constants.TriggerMessage, Payload: data})
	if err != nil {
		t.Fatalf("Wake(message) failed: %v", err)
	}
	reply := out.(Envelope)
	if reply.Type != MsgAck || reply.ID != "req-1" {
		t.Errorf("reply = %s/%s, want ACK/req-1", reply.Type, reply.ID)
	}

	bad, _ := NewEnvelope("REBOOT", "req-2", nil)
	data, _ = bad.Marshal()
	out, _ = s.Wake(ctx, Wake{Trigger: constants.TriggerMessage, Payload: data})
	if reply := out.(Envelope); reply.Type != MsgError || reply.ID != "req-2" {
		t.Errorf("unknown type reply = %s/%s, want ERROR/req-2", reply.Type, reply.ID)
	}
}

func TestWakeTriggers(t *testing.T) {
	ctx := context.Background()
	s, p, _, _ := newTestScheduler(t, newMemoryStore(t))

	_ = s.Schedule(ctx, testRequest("a", baseTime))
	if _, err := s.Wake(ctx, Wake{Trigger: constants.TriggerSync, Tag: constants.TagSyncRoutines}); err != nil {
		t.Fatalf("sync wake failed: %v", err)
	}
	if p.count() != 0 {
		t.Error("sync-routines must not sweep")
	}
	if _, err := s.Wake(ctx, Wake{Trigger: constants.TriggerPeriodicSync, Tag: "other"}); err != nil {
		t.Fatalf("periodic wake failed: %v", err)
	}
	if p.count() != 0 {
		t.Error("unknown periodic tag must not sweep")
	}
	if _, err := s.Wake(ctx, Wake{Trigger: constants.TriggerPeriodicSync, Tag: constants.TagCheckRoutines}); err != nil {
		t.Fatalf("check-routines wake failed: %v", err)
	}
	if p.count() != 1 {
		t.Errorf("check-routines should sweep, presented %d", p.count())
	}

	_ = s.Schedule(ctx, testRequest("b", baseTime))
	if _, err := s.Wake(ctx, Wake{Trigger: constants.TriggerInstall}); err != nil {
		t.Fatalf("install wake failed: %v", err)
	}
	if p.count() != 2 {
		t.Errorf("install should sweep, presented %d", p.count())
	}

	if _, err := s.Wake(ctx, Wake{Trigger: "bogus"}); err == nil {
		t.Error("unknown trigger should fail")
	}
}

func TestDecodeMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		payload string
		wantErr error
	}{
		{name: "schedule missing id", typ: MsgScheduleNotification, payload: `{"title":"x","scheduledTime":"2024-01-15T07:00:00Z"}`},
		{name: "schedule missing time", typ: MsgScheduleNotification, payload: `{"id":"a","title":"x"}`},
		{name: "cancel missing id", typ: MsgCancelNotification, payload: `{}`},
		{name: "show missing title", typ: MsgShowImmediate, payload: `{"body":"x"}`},
		{name: "missing payload", typ: MsgCancelNotification},
		{name: "unknown", typ: "PING", payload: `{}`, wantErr: rerrors.ErrUnknownMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Envelope{Type: tt.typ, ID: "x"}
			if tt.payload != "" {
				env.Payload = json.RawMessage(tt.payload)
			}
			_, err := DecodeMessage(env)
			if err == nil {
				t.Fatal("DecodeMessage() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	msg, err := DecodeMessage(Envelope{Type: MsgGetScheduled, ID: "x"})
	if err != nil || Type(msg) != MsgGetScheduled {
		t.Errorf("GET_SCHEDULED without payload: %v, %v", msg, err)
	}
}

func TestStartAndStop(t *testing.T) {
	ctx := context.Background()
	s, p, _, _ := newTestScheduler(t, newMemoryStore(t), WithAlarms(true), WithSweepInterval(time.Hour))

	_ = s.Schedule(ctx, testRequest("due", baseTime.Add(-time.Minute)))
	_ = s.Schedule(ctx, testRequest("later", baseTime.Add(24*time.Hour)))
	s.Stop()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer s.Stop()
	if p.count() != 1 {
		t.Errorf("startup sweep presented %d, want 1", p.count())
	}
	if s.ArmedAlarms() != 1 {
		t.Errorf("Start() should re-arm the remaining request, armed=%d", s.ArmedAlarms())
	}
}
