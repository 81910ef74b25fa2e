package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/routined/internal/client"
	"github.com/julianstephens/routined/internal/config"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/storage"
	"github.com/julianstephens/routined/internal/utils"
)

type Context struct {
	Store storage.Provider
	// SettingsPath is the worker YAML file; empty means the default.
	SettingsPath string
	Out          io.Writer
	Now          func() time.Time

	cfg *config.Config
}

// NewContext builds the command context with stdout and the wall clock.
func NewContext(store storage.Provider, settingsPath string) *Context {
	return &Context{
		Store:        store,
		SettingsPath: settingsPath,
		Out:          os.Stdout,
		Now:          time.Now,
	}
}

// Config loads the worker configuration once per invocation.
func (c *Context) Config() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg, err := config.Load(c.SettingsPath)
	if err != nil {
		return cfg, err
	}
	c.cfg = &cfg
	return cfg, nil
}

// SetConfig pins the configuration, bypassing the settings file.
func (c *Context) SetConfig(cfg config.Config) {
	c.cfg = &cfg
}

// Location is the timezone from the routine store settings.
func (c *Context) Location() (*time.Location, error) {
	settings, err := c.Store.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return utils.LoadLocation(settings.Timezone)
}

// Today returns the current time in the configured timezone.
func (c *Context) Today() (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	return c.Now().In(loc), nil
}

// DialWorker opens the foreground channel to the running worker.
func (c *Context) DialWorker(ctx context.Context) (*client.Client, error) {
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}
	cl, err := client.Dial(ctx, cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("worker not reachable at %s (is `routined worker` running?): %w", cfg.Listen, err)
	}
	return cl, nil
}

// Printf writes to the command output.
func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out(), format, args...)
}

// Println writes a line to the command output.
func (c *Context) Println(args ...interface{}) {
	fmt.Fprintln(c.out(), args...)
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// storeless lists the commands that never open the routine database.
var storeless = []string{
	"init", "worker", "sweep", "pending", "schedule", "cancel", "push", "config", "keyring",
}

// NeedsStore reports whether the kong command path (e.g. "routine add <title>")
// runs against a loaded routine store.
func NeedsStore(command string) bool {
	first := strings.Fields(command)
	if len(first) == 0 {
		return false
	}
	for _, name := range storeless {
		if first[0] == name {
			return false
		}
	}
	return true
}

var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	StatusStyles = map[models.ExecutionStatus]lipgloss.Style{
		models.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		models.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		models.StatusDone:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		models.StatusNotDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// FormatStatus colors an execution status for terminal output.
func FormatStatus(s models.ExecutionStatus) string {
	style, ok := StatusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}
