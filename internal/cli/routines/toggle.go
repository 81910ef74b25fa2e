package routines

import (
	"fmt"

	"github.com/julianstephens/routined/internal/cli"
)

type RoutineToggleCmd struct {
	ID string `arg:"" help:"Routine ID to activate or deactivate."`
}

func (c *RoutineToggleCmd) Run(ctx *cli.Context) error {
	routine, err := ctx.Store.GetRoutine(c.ID)
	if err != nil {
		return fmt.Errorf("routine not found: %w", err)
	}
	if err := ctx.Store.SetRoutineActive(c.ID, !routine.Active); err != nil {
		return err
	}
	state := "activated"
	if routine.Active {
		state = "deactivated"
	}
	ctx.Printf("✓ Routine %s: %s\n", state, routine.Title)
	return nil
}
