// Package queue holds the foreground routine queue: the single authority for
// which routine prompt is on screen. Exactly one item is current at a time and
// the backlog keeps the order it was loaded in.
package queue

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/logger"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/utils"
)

// ExecutionStore is the part of the routine store the queue needs.
type ExecutionStore interface {
	GetRoutines(userID string, includeInactive bool) ([]models.Routine, error)
	GetExecution(id string) (models.Execution, error)
	GetExecutionsForDate(userID, date string) ([]models.Execution, error)
	EnsureExecution(r models.Routine, date string) (models.Execution, error)
	UpdateExecution(models.Execution) error
}

type State string

const (
	StateIdle     State = "idle"
	StateDraining State = "draining"
)

// Snapshot is the queue as observers see it.
type Snapshot struct {
	Items   []models.QueueItem `json:"items"`
	Current *models.QueueItem  `json:"current,omitempty"`
	State   State              `json:"state"`
}

type Option func(*Queue)

// WithClock replaces time.Now for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

type Queue struct {
	store ExecutionStore
	now   func() time.Time

	mu      sync.Mutex
	items   []models.QueueItem
	current *models.QueueItem

	subMu  sync.Mutex
	subs   []subscriber
	nextID int
}

func New(store ExecutionStore, opts ...Option) *Queue {
	q := &Queue{store: store, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Subscribe registers fn to receive a snapshot after every state change. The
// returned func removes it.
func (q *Queue) Subscribe(fn func(Snapshot)) func() {
	q.subMu.Lock()
	defer q.subMu.Unlock()
	q.nextID++
	id := q.nextID
	q.subs = append(q.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			q.subMu.Lock()
			defer q.subMu.Unlock()
			for i, s := range q.subs {
				if s.id == id {
					q.subs = append(q.subs[:i], q.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (q *Queue) notify(snap Snapshot) {
	q.subMu.Lock()
	subs := make([]subscriber, len(q.subs))
	copy(subs, q.subs)
	q.subMu.Unlock()
	for _, s := range subs {
		s.fn(snap)
	}
}

// Snapshot returns a copy of the current queue state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() Snapshot {
	snap := Snapshot{
		Items: make([]models.QueueItem, len(q.items)),
		State: StateIdle,
	}
	copy(snap.Items, q.items)
	if q.current != nil {
		cur := *q.current
		snap.Current = &cur
		snap.State = StateDraining
	}
	return snap
}

// LoadOverdueRoutines creates today's missing executions and queues an end
// prompt for every pending one whose effective end has passed. Items are
// ordered by scheduled start. Returns how many were added.
func (q *Queue) LoadOverdueRoutines(userID string, now time.Time) (int, error) {
	items, err := q.collect(userID, now, models.QueueEnd, func(e models.Execution) bool {
		return e.Status == models.StatusPending && utils.IsOverdueForClosure(e, now)
	})
	if err != nil {
		return 0, err
	}
	return q.enqueue(items), nil
}

// LoadDueRoutines queues a start prompt for every pending execution whose
// start has arrived but whose effective end has not.
func (q *Queue) LoadDueRoutines(userID string, now time.Time) (int, error) {
	items, err := q.collect(userID, now, models.QueueStart, func(e models.Execution) bool {
		return utils.IsDue(e, now) && !utils.IsOverdueForClosure(e, now)
	})
	if err != nil {
		return 0, err
	}
	return q.enqueue(items), nil
}

func (q *Queue) collect(userID string, now time.Time, qt models.QueueType, match func(models.Execution) bool) ([]models.QueueItem, error) {
	routines, err := q.store.GetRoutines(userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load routines: %w", err)
	}
	date := utils.DateString(now)
	for _, r := range utils.OccurrencesOn(routines, now) {
		if _, err := q.store.EnsureExecution(r, date); err != nil {
			logger.Warn("Could not create execution", "routine", r.ID, "date", date, "error", err)
		}
	}

	execs, err := q.store.GetExecutionsForDate(userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load executions for %s: %w", date, err)
	}

	byID := make(map[string]models.Routine, len(routines))
	for _, r := range routines {
		byID[r.ID] = r
	}
	var items []models.QueueItem
	for _, e := range execs {
		r, ok := byID[e.RoutineID]
		if !ok || !match(e) {
			continue
		}
		item, err := ItemFor(r, e, qt, now.Location())
		if err != nil {
			logger.Warn("Skipping execution with bad time", "execution", e.ID, "error", err)
			continue
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ScheduledAt.Before(items[j].ScheduledAt)
	})
	return items, nil
}

// ItemFor builds the queue item prompting for e.
func ItemFor(r models.Routine, e models.Execution, qt models.QueueType, loc *time.Location) (models.QueueItem, error) {
	at, err := utils.ScheduledAt(e, loc)
	if err != nil {
		return models.QueueItem{}, err
	}
	return models.QueueItem{
		ExecutionID: e.ID,
		RoutineID:   r.ID,
		Title:       r.Title,
		StartTime:   e.ScheduledTime,
		EndTime:     e.EndTime,
		Category:    r.Category,
		QueueType:   qt,
		ScheduledAt: at,
	}, nil
}

func (q *Queue) enqueue(items []models.QueueItem) int {
	q.mu.Lock()
	added := 0
	for _, item := range items {
		if q.appendLocked(item) {
			added++
		}
	}
	if added > 0 && q.current == nil {
		q.advanceLocked()
	}
	snap := q.snapshotLocked()
	q.mu.Unlock()

	if added > 0 {
		q.notify(snap)
	}
	return added
}

// AddToQueue appends item unless the same execution and prompt type is
// already queued or current. Returns whether it was added.
func (q *Queue) AddToQueue(item models.QueueItem) bool {
	return q.enqueue([]models.QueueItem{item}) == 1
}

func (q *Queue) appendLocked(item models.QueueItem) bool {
	key := item.Key()
	if q.current != nil && q.current.Key() == key {
		return false
	}
	for _, existing := range q.items {
		if existing.Key() == key {
			return false
		}
	}
	q.items = append(q.items, item)
	return true
}

// ProcessNext moves the head of the backlog into current, or goes idle when
// the backlog is empty.
func (q *Queue) ProcessNext() {
	q.mu.Lock()
	q.advanceLocked()
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.notify(snap)
}

func (q *Queue) advanceLocked() {
	if len(q.items) == 0 {
		q.current = nil
		return
	}
	head := q.items[0]
	q.items = q.items[1:]
	q.current = &head
}

// StartRoutine moves the current execution to in_progress and advances. It is
// a no-op when executionID is not current.
func (q *Queue) StartRoutine(executionID string) error {
	return q.resolve(executionID, models.StatusInProgress)
}

// MarkAsProcessed closes the current execution as done or not_done and
// advances. It is a no-op when executionID is not current.
func (q *Queue) MarkAsProcessed(executionID string, completed bool) error {
	to := models.StatusNotDone
	if completed {
		to = models.StatusDone
	}
	return q.resolve(executionID, to)
}

// CancelRoutine closes the current execution as not_done and advances.
func (q *Queue) CancelRoutine(executionID string) error {
	return q.resolve(executionID, models.StatusNotDone)
}

// resolve applies a transition to the current execution. Store failures keep
// the current item in place. An item whose execution can no longer make the
// transition is discarded, and the error is still returned.
func (q *Queue) resolve(executionID string, to models.ExecutionStatus) error {
	q.mu.Lock()
	if q.current == nil || q.current.ExecutionID != executionID {
		q.mu.Unlock()
		logger.Debug("Ignoring transition for non-current execution", "execution", executionID, "status", to)
		return nil
	}

	exec, err := q.store.GetExecution(executionID)
	if err != nil {
		q.mu.Unlock()
		return fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}
	if err := exec.Transition(to, q.now()); err != nil {
		if !errors.Is(err, rerrors.ErrInvalidTransition) {
			q.mu.Unlock()
			return err
		}
		logger.Warn("Discarding stale queue item", "execution", executionID, "status", exec.Status, "wanted", to)
		q.advanceLocked()
		snap := q.snapshotLocked()
		q.mu.Unlock()
		q.notify(snap)
		return err
	}
	if err := q.store.UpdateExecution(exec); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("failed to save execution %s: %w", executionID, err)
	}
	logger.Info("Execution resolved", "execution", executionID, "status", to)

	if to.IsTerminal() {
		q.dropLocked(executionID)
	}
	q.advanceLocked()
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.notify(snap)
	return nil
}

// dropLocked removes every backlog item for executionID.
func (q *Queue) dropLocked(executionID string) {
	kept := q.items[:0]
	for _, it := range q.items {
		if it.ExecutionID != executionID {
			kept = append(kept, it)
		}
	}
	q.items = kept
}

// ClearQueue drops every queued and current item. Execution state is left
// alone: nothing is marked not_done.
func (q *Queue) ClearQueue() {
	q.mu.Lock()
	q.items = nil
	q.current = nil
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.notify(snap)
}
