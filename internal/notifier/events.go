package notifier

import (
	"context"
	"errors"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/julianstephens/routined/internal/constants"
	"github.com/julianstephens/routined/internal/logger"
)

// Dispatcher fans an event out to connected foreground apps and reports how
// many received it. Delivery is at most once; foregrounds poll as well.
type Dispatcher interface {
	Dispatch(ctx context.Context, env Envelope) (int, error)
}

// Opener opens a fresh app view at a path such as /routines?start=<id>.
type Opener interface {
	Open(ctx context.Context, path string) error
}

// NopDispatcher reaches nobody.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Envelope) (int, error) { return 0, nil }

// RoutinesURL builds the app path for the routines view, optionally asking
// it to start routineID.
func RoutinesURL(routineID string) string {
	if routineID == "" {
		return constants.RoutinesPath
	}
	q := url.Values{}
	q.Set(constants.RoutineStartParam, routineID)
	return constants.RoutinesPath + "?" + q.Encode()
}

// BrowserOpener opens paths on the worker's HTTP surface with the platform
// URL handler.
type BrowserOpener struct {
	BaseURL string
	// run is swapped out in tests.
	run func(ctx context.Context, name string, args ...string) error
}

func NewBrowserOpener(baseURL string) *BrowserOpener {
	return &BrowserOpener{
		BaseURL: strings.TrimRight(baseURL, "/"),
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Start()
		},
	}
}

func (o *BrowserOpener) Open(ctx context.Context, path string) error {
	if o.BaseURL == "" {
		return errors.New("opener has no base URL")
	}
	target := o.BaseURL + path
	var err error
	switch runtime.GOOS {
	case "darwin":
		err = o.run(ctx, "open", target)
	case "windows":
		err = o.run(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		err = o.run(ctx, "xdg-open", target)
	}
	if err != nil {
		return err
	}
	logger.Info("Opened app view", "url", target)
	return nil
}

// LogOpener only records the request; used when no desktop is attached.
type LogOpener struct{}

func (LogOpener) Open(_ context.Context, path string) error {
	logger.Info("App view requested", "path", path)
	return nil
}
