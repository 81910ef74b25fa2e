package routines

import (
	"fmt"

	"github.com/julianstephens/routined/internal/cli"
)

type RoutineDeleteCmd struct {
	ID string `arg:"" help:"Routine ID to delete."`
}

func (c *RoutineDeleteCmd) Run(ctx *cli.Context) error {
	routine, err := ctx.Store.GetRoutine(c.ID)
	if err != nil {
		return fmt.Errorf("routine not found: %w", err)
	}
	if err := ctx.Store.DeleteRoutine(c.ID); err != nil {
		return fmt.Errorf("failed to delete routine: %w", err)
	}
	ctx.Printf("✓ Routine deleted: %s (%s)\n", routine.Title, routine.Window())
	return nil
}
