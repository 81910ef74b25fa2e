package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/routined/internal/models"
)

// Presenter hands a notification to the OS (or whatever stands in for it).
// An error means the user did not see it.
type Presenter interface {
	Present(ctx context.Context, n models.Notification) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, n models.Notification) error

func (f PresenterFunc) Present(ctx context.Context, n models.Notification) error {
	return f(ctx, n)
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	actionStyle = lipgloss.NewStyle().Faint(true)
)

// ConsolePresenter renders notifications as boxes on a writer. Used on
// headless hosts and for dry runs.
type ConsolePresenter struct {
	w io.Writer
}

func NewConsolePresenter(w io.Writer) *ConsolePresenter {
	return &ConsolePresenter{w: w}
}

func (p *ConsolePresenter) Present(_ context.Context, n models.Notification) error {
	lines := []string{titleStyle.Render(n.Title)}
	if n.Body != "" {
		lines = append(lines, n.Body)
	}
	if len(n.Actions) > 0 {
		labels := make([]string, len(n.Actions))
		for i, a := range n.Actions {
			labels[i] = "[" + a.Title + "]"
		}
		lines = append(lines, actionStyle.Render(strings.Join(labels, " ")))
	}
	_, err := fmt.Fprintln(p.w, boxStyle.Render(strings.Join(lines, "\n")))
	return err
}

// MultiPresenter tries each presenter in order and stops at the first
// success.
type MultiPresenter []Presenter

func (m MultiPresenter) Present(ctx context.Context, n models.Notification) error {
	if len(m) == 0 {
		return errors.New("no presenter configured")
	}
	var errs []error
	for _, p := range m {
		err := p.Present(ctx, n)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
