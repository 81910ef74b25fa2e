package prompts

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/routined/internal/app"
	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/logger"
)

// QueueCmd is the foreground: it works through due routine prompts one at a
// time.
type QueueCmd struct {
	Start   string `help:"Queue this routine's start prompt first (the target of a notification click)."`
	Offline bool   `help:"Do not connect to the worker; no planning and no start events."`
	Once    bool   `help:"Answer what is due now and exit instead of waiting."`
}

func (c *QueueCmd) Run(ctx *cli.Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var worker app.Worker
	if !c.Offline {
		cl, err := ctx.DialWorker(runCtx)
		if err != nil {
			logger.Warn("Running without worker", "error", err)
			ctx.Println(cli.MutedStyle.Render("Worker not reachable; notifications will not be planned."))
		} else {
			defer cl.Close()
			worker = cl
		}
	}

	runner := app.NewRunner(ctx.Store, worker, app.Options{
		UserID:       cfg.UserID,
		PollInterval: cfg.PollInterval,
		Now:          ctx.Now,
	})
	session := &Session{Runner: runner, Answer: HuhAnswerer, Out: ctx.Out}
	return session.Run(runCtx, c.Start, c.Once)
}
