package executions

import (
	"fmt"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/models"
)

// ExecMarkCmd resolves an execution outside the queue, e.g. one missed while
// no foreground was running.
type ExecMarkCmd struct {
	ID     string `arg:"" help:"Execution ID."`
	Status string `arg:"" enum:"in_progress,done,not_done" help:"New status (in_progress|done|not_done)."`
}

func (c *ExecMarkCmd) Run(ctx *cli.Context) error {
	exec, err := ctx.Store.GetExecution(c.ID)
	if err != nil {
		return fmt.Errorf("execution not found: %w", err)
	}
	if err := exec.Transition(models.ExecutionStatus(c.Status), ctx.Now()); err != nil {
		return err
	}
	if err := ctx.Store.UpdateExecution(exec); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	ctx.Printf("✓ Execution %s on %s is now %s\n", exec.ID, exec.Date, cli.FormatStatus(exec.Status))
	return nil
}
