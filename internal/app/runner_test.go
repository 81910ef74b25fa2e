package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/notifier"
	"github.com/julianstephens/routined/internal/queue"
	"github.com/julianstephens/routined/internal/storage/sqlite"
)

type fakeWorker struct {
	mu      sync.Mutex
	pending map[string]models.NotificationRequest
	events  chan notifier.StartRoutineEvent
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{
		pending: make(map[string]models.NotificationRequest),
		events:  make(chan notifier.StartRoutineEvent, 4),
	}
}

func (w *fakeWorker) Schedule(_ context.Context, req models.NotificationRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[req.ID] = req
	return nil
}

func (w *fakeWorker) Cancel(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, id)
	return nil
}

func (w *fakeWorker) ListPending(_ context.Context) ([]models.NotificationRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []models.NotificationRequest
	for _, r := range w.pending {
		out = append(out, r)
	}
	return out, nil
}

func (w *fakeWorker) Events() <-chan notifier.StartRoutineEvent {
	return w.events
}

func (w *fakeWorker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func setupStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "routined.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	settings := models.DefaultSettings()
	settings.Timezone = "UTC"
	if err := store.SaveSettings(settings); err != nil {
		t.Fatal(err)
	}
	return store
}

func addRoutine(t *testing.T, store *sqlite.Store, id, start, end string) {
	t.Helper()
	r := models.Routine{
		ID:        id,
		UserID:    "local",
		Title:     "Routine " + id,
		Days:      []time.Weekday{time.Monday},
		StartTime: start,
		EndTime:   end,
		Category:  models.CategoryStudy,
		Priority:  models.PriorityLow,
		Active:    true,
	}
	if err := store.AddRoutine(r); err != nil {
		t.Fatalf("AddRoutine() failed: %v", err)
	}
}

// 2024-01-15 is a Monday.
func mondayAt(hhmm string) func() time.Time {
	t, _ := time.ParseInLocation("2006-01-02 15:04", "2024-01-15 "+hhmm, time.UTC)
	return func() time.Time { return t }
}

func TestRefresh(t *testing.T) {
	store := setupStore(t)
	addRoutine(t, store, "over", "07:00", "08:00")
	addRoutine(t, store, "now", "08:30", "10:00")
	addRoutine(t, store, "later", "11:00", "12:00")
	worker := newFakeWorker()

	r := NewRunner(store, worker, Options{UserID: "local", Now: mondayAt("09:00")})
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}

	snap := r.Queue().Snapshot()
	if snap.Current == nil || snap.Current.RoutineID != "over" || snap.Current.QueueType != models.QueueEnd {
		t.Fatalf("current = %+v, want end prompt for over", snap.Current)
	}
	if len(snap.Items) != 1 || snap.Items[0].RoutineID != "now" || snap.Items[0].QueueType != models.QueueStart {
		t.Errorf("backlog = %+v, want start prompt for now", snap.Items)
	}
	// now:end (10:00), later:start, later:end
	if worker.count() != 3 {
		t.Errorf("scheduled %d requests, want 3", worker.count())
	}
}

func TestRefresh_WithoutWorker(t *testing.T) {
	store := setupStore(t)
	addRoutine(t, store, "over", "07:00", "08:00")

	r := NewRunner(store, nil, Options{UserID: "local", Now: mondayAt("09:00")})
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if r.Queue().Snapshot().State != queue.StateDraining {
		t.Error("overdue routine should be queued without a worker")
	}
}

func TestHandleStart(t *testing.T) {
	store := setupStore(t)
	addRoutine(t, store, "gym", "18:00", "19:00")
	r := NewRunner(store, newFakeWorker(), Options{UserID: "local", Now: mondayAt("09:00")})

	if err := r.HandleStart("gym"); err != nil {
		t.Fatalf("HandleStart() failed: %v", err)
	}
	cur := r.Queue().Snapshot().Current
	if cur == nil || cur.RoutineID != "gym" || cur.QueueType != models.QueueStart {
		t.Fatalf("current = %+v", cur)
	}
	if err := r.HandleStart("gym"); err != nil {
		t.Fatalf("second HandleStart() failed: %v", err)
	}
	if n := len(r.Queue().Snapshot().Items); n != 0 {
		t.Errorf("duplicate start queued, backlog = %d", n)
	}

	if err := r.Queue().StartRoutine(cur.ExecutionID); err != nil {
		t.Fatal(err)
	}
	if err := r.HandleStart("gym"); err != nil {
		t.Fatalf("HandleStart() after start failed: %v", err)
	}
	if r.Queue().Snapshot().Current != nil {
		t.Error("started routine must not be queued again")
	}

	if err := r.HandleStart("missing"); err == nil {
		t.Error("unknown routine should fail")
	}
}

func TestRun_EventsAndShutdown(t *testing.T) {
	store := setupStore(t)
	addRoutine(t, store, "gym", "18:00", "19:00")
	worker := newFakeWorker()
	r := NewRunner(store, worker, Options{UserID: "local", Now: mondayAt("09:00"), PollInterval: time.Hour})

	queued := make(chan queue.Snapshot, 4)
	unsub := r.Queue().Subscribe(func(s queue.Snapshot) { queued <- s })
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	worker.events <- notifier.StartRoutineEvent{RoutineID: "gym", URL: "/routines?start=gym"}
	select {
	case s := <-queued:
		if s.Current == nil || s.Current.RoutineID != "gym" {
			t.Errorf("snapshot = %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("start event never reached the queue")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop")
	}
	if r.Queue().Snapshot().State != queue.StateIdle {
		t.Error("queue should be cleared on shutdown")
	}
	execs, _ := store.GetExecutionsForDate("local", "2024-01-15")
	for _, e := range execs {
		if e.Status != models.StatusPending {
			t.Errorf("shutdown changed execution %s to %s", e.ID, e.Status)
		}
	}
}
