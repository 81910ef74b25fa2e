package notifications

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/config"
	"github.com/julianstephens/routined/internal/logger"
	"github.com/julianstephens/routined/internal/notifier"
	"github.com/julianstephens/routined/internal/server"
)

// WorkerCmd runs the background notification scheduler and its HTTP surface
// until interrupted.
type WorkerCmd struct {
	Listen    string `help:"Listen address (host:port), overriding the config file."`
	Presenter string `help:"Presenter (tray|console|auto), overriding the config file."`
	NoAlarms  bool   `help:"Rely on the periodic sweep only." name:"no-alarms"`
}

func (c *WorkerCmd) Run(ctx *cli.Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}
	if c.Presenter != "" {
		cfg.Presenter = c.Presenter
	}
	if c.NoAlarms {
		cfg.Alarms = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}
	ctx.Printf("routined worker listening on %s (requests: %s, presenter: %s)\n",
		ln.Addr(), cfg.Requests.Backend, cfg.Presenter)
	return RunWorker(runCtx, cfg, ln, ctx.Out)
}

// RunWorker serves the scheduler on ln until ctx ends. Console notifications
// go to out.
func RunWorker(ctx context.Context, cfg config.Config, ln net.Listener, out io.Writer) error {
	store, err := OpenRequestStore(cfg.Requests)
	if err != nil {
		ln.Close()
		return err
	}
	defer store.Close()

	presenter, err := NewPresenter(cfg.Presenter, out)
	if err != nil {
		ln.Close()
		return err
	}

	hub := server.NewHub()
	sched := notifier.New(store, presenter, hub, notifier.NewBrowserOpener(cfg.BaseURL()),
		notifier.WithAlarms(cfg.Alarms),
		notifier.WithSweepInterval(cfg.SweepInterval),
	)
	if err := sched.Start(ctx); err != nil {
		ln.Close()
		return err
	}
	defer sched.Stop()

	logger.Info("Worker started", "addr", ln.Addr().String(), "backend", cfg.Requests.Backend, "presenter", cfg.Presenter)
	return server.New(sched, hub).Serve(ctx, ln)
}

// OpenRequestStore opens the configured notification request backend.
func OpenRequestStore(cfg config.Requests) (notifier.RequestStore, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		return notifier.NewRedisStore(cfg.RedisURL, cfg.RedisKey)
	case config.BackendBadger, "":
		if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create requests dir: %w", err)
		}
		return notifier.OpenBadgerStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown requests backend %q", cfg.Backend)
	}
}

// NewPresenter builds the named presenter. auto tries the tray app and falls
// back to the terminal.
func NewPresenter(name string, out io.Writer) (notifier.Presenter, error) {
	switch name {
	case config.PresenterTray:
		return notifier.NewTrayPresenter(), nil
	case config.PresenterConsole:
		return notifier.NewConsolePresenter(out), nil
	case config.PresenterAuto, "":
		return notifier.MultiPresenter{notifier.NewTrayPresenter(), notifier.NewConsolePresenter(out)}, nil
	default:
		return nil, fmt.Errorf("unknown presenter %q", name)
	}
}
