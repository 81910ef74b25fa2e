package prompts

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/routined/internal/app"
	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/queue"
)

// Answer is the user's response to one prompt.
type Answer string

const (
	AnswerStart   Answer = "start"
	AnswerSkip    Answer = "skip"
	AnswerDone    Answer = "done"
	AnswerNotDone Answer = "not_done"
	// AnswerQuit ends the session and leaves the execution pending.
	AnswerQuit Answer = "quit"
)

// Answerer asks the user about item.
type Answerer func(ctx context.Context, item models.QueueItem) (Answer, error)

var errQuit = errors.New("session ended by user")

// Session presents the queue's current prompt until the queue is idle or the
// user quits.
type Session struct {
	Runner *app.Runner
	Answer Answerer
	Out    io.Writer
}

// Run drives the queue. With once set it loads what is due now, answers it
// and returns; otherwise it keeps the runner polling and listening for start
// events until ctx ends or the user quits.
func (s *Session) Run(ctx context.Context, startID string, once bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := s.Runner.Queue()
	changed := make(chan struct{}, 1)
	unsub := q.Subscribe(func(queue.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsub()

	if startID != "" {
		if err := s.Runner.HandleStart(startID); err != nil {
			fmt.Fprintf(s.Out, "⚠ Could not queue routine %s: %v\n", startID, err)
		}
	}

	if once {
		defer q.ClearQueue()
		if err := s.Runner.Refresh(ctx); err != nil {
			return err
		}
		err := s.drain(ctx)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err == nil {
			fmt.Fprintln(s.Out, "Nothing else is due.")
		}
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- s.Runner.Run(ctx) }()
	fmt.Fprintln(s.Out, "Waiting for routines. Press Ctrl+C to stop.")

	for {
		select {
		case <-ctx.Done():
			return <-runErr
		case err := <-runErr:
			return err
		case <-changed:
			if err := s.drain(ctx); err != nil {
				cancel()
				runE := <-runErr
				if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
					return runE
				}
				return err
			}
		}
	}
}

// drain answers prompts until the queue is idle. A stale item (its execution
// was closed elsewhere) is reported and skipped. Any other failed transition
// keeps the item current; drain then waits for the next change.
func (s *Session) drain(ctx context.Context) error {
	q := s.Runner.Queue()
	for {
		cur := q.Snapshot().Current
		if cur == nil {
			return nil
		}
		answer, err := s.Answer(ctx, *cur)
		if err != nil {
			return err
		}
		if answer == AnswerQuit {
			return errQuit
		}
		if err := Apply(q, *cur, answer); err != nil {
			fmt.Fprintf(s.Out, "⚠ %s: %v\n", cur.Title, err)
			if errors.Is(err, rerrors.ErrInvalidTransition) {
				continue
			}
			return nil
		}
		fmt.Fprintf(s.Out, "✓ %s: %s\n", cur.Title, describe(answer))
	}
}

// Apply maps an answer onto the queue transition for item.
func Apply(q *queue.Queue, item models.QueueItem, answer Answer) error {
	switch item.QueueType {
	case models.QueueStart:
		switch answer {
		case AnswerStart:
			return q.StartRoutine(item.ExecutionID)
		case AnswerSkip:
			return q.CancelRoutine(item.ExecutionID)
		}
	case models.QueueEnd:
		switch answer {
		case AnswerDone:
			return q.MarkAsProcessed(item.ExecutionID, true)
		case AnswerNotDone:
			return q.MarkAsProcessed(item.ExecutionID, false)
		}
	}
	return fmt.Errorf("answer %q does not apply to a %s prompt", answer, item.QueueType)
}

func describe(a Answer) string {
	switch a {
	case AnswerStart:
		return "started"
	case AnswerSkip:
		return "skipped"
	case AnswerDone:
		return "done"
	case AnswerNotDone:
		return "not done"
	default:
		return string(a)
	}
}

// Options lists the answers offered for a prompt type.
func Options(qt models.QueueType) []huh.Option[Answer] {
	if qt == models.QueueEnd {
		return []huh.Option[Answer]{
			huh.NewOption("Done", AnswerDone),
			huh.NewOption("Not done", AnswerNotDone),
			huh.NewOption("Ask me later", AnswerQuit),
		}
	}
	return []huh.Option[Answer]{
		huh.NewOption("Start now", AnswerStart),
		huh.NewOption("Skip today", AnswerSkip),
		huh.NewOption("Ask me later", AnswerQuit),
	}
}

// HuhAnswerer prompts on the terminal. Aborting the form counts as quit.
func HuhAnswerer(ctx context.Context, item models.QueueItem) (Answer, error) {
	title := "Time to start: " + item.Title
	desc := "Scheduled " + item.StartTime
	if item.QueueType == models.QueueEnd {
		title = "Did you finish " + item.Title + "?"
		if item.EndTime != "" {
			desc = "Window " + item.StartTime + "-" + item.EndTime
		}
	}

	var answer Answer
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Answer]().
				Title(title).
				Description(desc).
				Options(Options(item.QueueType)...).
				Value(&answer),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return AnswerQuit, nil
		}
		return "", err
	}
	return answer, nil
}
