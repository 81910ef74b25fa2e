package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/routined/internal/models"
)

type recordingPresenter struct {
	mu    sync.Mutex
	shown []models.Notification
	fail  error
}

func (p *recordingPresenter) Present(_ context.Context, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.shown = append(p.shown, n)
	return nil
}

func (p *recordingPresenter) setFail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

func (p *recordingPresenter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.shown)
}

type fakeDispatcher struct {
	clients int
	sent    []Envelope
}

func (d *fakeDispatcher) Dispatch(_ context.Context, env Envelope) (int, error) {
	if d.clients == 0 {
		return 0, nil
	}
	d.sent = append(d.sent, env)
	return d.clients, nil
}

type fakeOpener struct {
	opened []string
}

func (o *fakeOpener) Open(_ context.Context, path string) error {
	o.opened = append(o.opened, path)
	return nil
}

// flakyStore fails writes on demand while delegating everything else.
type flakyStore struct {
	RequestStore
	failPut    bool
	failDelete bool
}

func (s *flakyStore) Put(ctx context.Context, req models.NotificationRequest) error {
	if s.failPut {
		return errors.New("disk full")
	}
	return s.RequestStore.Put(ctx, req)
}

func (s *flakyStore) Delete(ctx context.Context, id string) error {
	if s.failDelete {
		return errors.New("disk full")
	}
	return s.RequestStore.Delete(ctx, id)
}

func newMemoryStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenMemoryStore()
	if err != nil {
		t.Fatalf("OpenMemoryStore() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var baseTime = time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC)

func testRequest(id string, at time.Time) models.NotificationRequest {
	return models.NotificationRequest{
		ID:            id,
		Title:         "Academia",
		Body:          "Time to start",
		ScheduledTime: at,
		RoutineID:     "r1",
		ExecutionID:   "e1",
		Type:          models.NotificationTypeStart,
	}
}
